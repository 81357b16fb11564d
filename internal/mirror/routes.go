package mirror

// Routes is the static event-type → procedure-name table. It is built
// once at startup and read-only afterwards; changing it means
// restarting the process.
type Routes struct {
	procs map[Kind]string
}

var defaultProcs = map[Kind]string{
	KindMessageCreate:      "mirror_message_upsert",
	KindMessageUpdate:      "mirror_message_upsert",
	KindMessageDelete:      "mirror_message_delete",
	KindConversationCreate: "mirror_conversation_upsert",
	KindConversationUpdate: "mirror_conversation_upsert",
	KindConversationDelete: "mirror_conversation_delete",
	KindFollowEdgeCreate:   "mirror_follow_edge_upsert",
	KindFollowEdgeUpdate:   "mirror_follow_edge_upsert",
	KindFollowEdgeDelete:   "mirror_follow_edge_delete",
}

// NewRoutes builds the routing table from the defaults, with optional
// per-event-type procedure name overrides keyed by event type string.
// Override keys outside the vocabulary are ignored.
func NewRoutes(overrides map[string]string) Routes {
	procs := make(map[Kind]string, len(defaultProcs))
	for k, p := range defaultProcs {
		procs[k] = p
	}
	for t, p := range overrides {
		if k := KindOf(t); k != KindUnknown && p != "" {
			procs[k] = p
		}
	}
	return Routes{procs: procs}
}

// Procedure resolves an event type to its target procedure name. The
// second return is false for types outside the vocabulary; callers
// treat that as a skip, not an error.
func (r Routes) Procedure(eventType string) (string, bool) {
	k := KindOf(eventType)
	if k == KindUnknown {
		return "", false
	}
	proc, ok := r.procs[k]
	return proc, ok
}

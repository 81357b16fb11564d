// Package mirror applies bus change events to the relational replica:
// routing event types to stored procedures, executing them against the
// pool, and draining the subscription.
package mirror

// Kind enumerates the closed event-type vocabulary the relational side
// understands. Anything outside it routes to a skip, never a failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindMessageCreate
	KindMessageUpdate
	KindMessageDelete
	KindConversationCreate
	KindConversationUpdate
	KindConversationDelete
	KindFollowEdgeCreate
	KindFollowEdgeUpdate
	KindFollowEdgeDelete
)

var kindByType = map[string]Kind{
	"dm.message.create":      KindMessageCreate,
	"dm.message.update":      KindMessageUpdate,
	"dm.message.delete":      KindMessageDelete,
	"dm.conversation.create": KindConversationCreate,
	"dm.conversation.update": KindConversationUpdate,
	"dm.conversation.delete": KindConversationDelete,
	"follow.edge.create":     KindFollowEdgeCreate,
	"follow.edge.update":     KindFollowEdgeUpdate,
	"follow.edge.delete":     KindFollowEdgeDelete,
}

var typeByKind = func() map[Kind]string {
	m := make(map[Kind]string, len(kindByType))
	for t, k := range kindByType {
		m[k] = t
	}
	return m
}()

// KindOf maps an event type string to its Kind; unknown strings map to
// KindUnknown.
func KindOf(eventType string) Kind {
	return kindByType[eventType]
}

// EventTypes returns the full closed vocabulary.
func EventTypes() []string {
	out := make([]string, 0, len(kindByType))
	for t := range kindByType {
		out = append(out, t)
	}
	return out
}

func (k Kind) String() string {
	if t, ok := typeByKind[k]; ok {
		return t
	}
	return "unknown"
}

package event

import (
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"docmirror/internal/document"
	"docmirror/internal/serialize"
)

// Builder constructs change events from before/after snapshot pairs.
// Building is pure apart from clock and id generation: no I/O, so it
// can be unit tested against literal snapshot fixtures.
type Builder struct {
	log *zap.Logger
}

func NewBuilder(log *zap.Logger) *Builder {
	return &Builder{log: log}
}

// Message builds an event for a direct-message document change.
// Returns nil when the pair does not map to a create/update/delete or
// when an update is a no-op after serialization.
func (b *Builder) Message(before, after document.Snapshot, tc document.TriggerContext) *Envelope {
	return b.build("dm.message", before, after, tc, func(d *Data) {
		d.ConversationID = tc.Param("conversationId")
		d.MessageID = tc.Param("messageId")
	})
}

// Conversation builds an event for a conversation document change.
func (b *Builder) Conversation(before, after document.Snapshot, tc document.TriggerContext) *Envelope {
	return b.build("dm.conversation", before, after, tc, func(d *Data) {
		d.ConversationID = tc.Param("conversationId")
	})
}

// FollowEdge builds an event for a follow-graph edge change.
func (b *Builder) FollowEdge(before, after document.Snapshot, tc document.TriggerContext) *Envelope {
	return b.build("follow.edge", before, after, tc, func(d *Data) {
		d.FollowerID = tc.Param("followerId")
		d.FolloweeID = tc.Param("followeeId")
	})
}

func (b *Builder) build(domain string, before, after document.Snapshot, tc document.TriggerContext, assign func(*Data)) *Envelope {
	op := inferOperation(before, after)
	if op == opUnknown {
		b.log.Debug("change pair maps to no operation, dropping",
			zap.String("domain", domain),
			zap.String("trigger_id", tc.TriggerID))
		return nil
	}

	// A document that exists but is empty still serializes as an
	// object, never as null; null is reserved for absence.
	var doc, prev map[string]any
	if after.Exists {
		if doc = serialize.Map(after.Data); doc == nil {
			doc = map[string]any{}
		}
	}
	if before.Exists {
		if prev = serialize.Map(before.Data); prev == nil {
			prev = map[string]any{}
		}
	}

	// Compare the serialized forms, not the native ones: this
	// normalizes timestamp representations before deciding whether
	// anything observable changed.
	if op == OpUpdate && reflect.DeepEqual(doc, prev) {
		b.log.Debug("suppressing no-op update",
			zap.String("domain", domain),
			zap.String("trigger_id", tc.TriggerID))
		return nil
	}

	eventType := fmt.Sprintf("%s.%s", domain, op)
	source := fmt.Sprintf("store://%s", tc.Resource)
	ev := &Envelope{
		ID:          newID(eventType, source, tc.TriggerID),
		Type:        eventType,
		Source:      source,
		SpecVersion: SpecVersion,
		Time:        time.Now().UTC(),
		Data: Data{
			Operation:        op,
			Document:         doc,
			PreviousDocument: prev,
		},
	}
	assign(&ev.Data)
	return ev
}

func inferOperation(before, after document.Snapshot) Operation {
	switch {
	case !before.Exists && after.Exists:
		return OpCreate
	case before.Exists && after.Exists:
		return OpUpdate
	case before.Exists && !after.Exists:
		return OpDelete
	default:
		return opUnknown
	}
}

func newID(eventType, source, triggerID string) string {
	return fmt.Sprintf("%s:%s:%s:%s", eventType, source, triggerID, uuid.NewString())
}

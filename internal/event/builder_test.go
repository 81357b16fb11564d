package event

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"docmirror/internal/document"
)

func messageContext() document.TriggerContext {
	return document.TriggerContext{
		TriggerID: "trig-1",
		Resource:  "conversations/c1/messages/m1",
		Params: map[string]string{
			"conversationId": "c1",
			"messageId":      "m1",
		},
	}
}

func TestOperationInference(t *testing.T) {
	b := NewBuilder(zap.NewNop())
	doc := map[string]any{"text": "hello"}

	tests := []struct {
		name    string
		before  document.Snapshot
		after   document.Snapshot
		wantOp  Operation
		wantNil bool
	}{
		{"create", document.Missing(), document.Existing(doc), OpCreate, false},
		{"update", document.Existing(map[string]any{"text": "old"}), document.Existing(doc), OpUpdate, false},
		{"delete", document.Existing(doc), document.Missing(), OpDelete, false},
		{"unknown", document.Missing(), document.Missing(), "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := b.Message(tt.before, tt.after, messageContext())
			if tt.wantNil {
				assert.Nil(t, ev)
				return
			}
			require.NotNil(t, ev)
			assert.Equal(t, tt.wantOp, ev.Data.Operation)
			assert.Equal(t, "dm.message."+string(tt.wantOp), ev.Type)
		})
	}
}

func TestNoOpUpdateSuppressed(t *testing.T) {
	b := NewBuilder(zap.NewNop())
	sent := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	before := document.Existing(map[string]any{"text": "hello", "sentAt": sent})
	after := document.Existing(map[string]any{"text": "hello", "sentAt": sent})

	assert.Nil(t, b.Message(before, after, messageContext()))
}

func TestNoOpSuppressionComparesSerializedForm(t *testing.T) {
	b := NewBuilder(zap.NewNop())
	// Same instant in different zones serializes identically, so the
	// update carries no observable change.
	utc := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)
	jst := utc.In(time.FixedZone("JST", 9*3600))
	before := document.Existing(map[string]any{"sentAt": utc})
	after := document.Existing(map[string]any{"sentAt": jst})

	assert.Nil(t, b.Message(before, after, messageContext()))
}

func TestEnvelopeInvariant(t *testing.T) {
	b := NewBuilder(zap.NewNop())
	doc := map[string]any{"text": "hello"}

	create := b.Message(document.Missing(), document.Existing(doc), messageContext())
	require.NotNil(t, create)
	assert.NotNil(t, create.Data.Document)
	assert.Nil(t, create.Data.PreviousDocument)

	update := b.Message(document.Existing(map[string]any{"text": "old"}), document.Existing(doc), messageContext())
	require.NotNil(t, update)
	assert.NotNil(t, update.Data.Document)
	assert.NotNil(t, update.Data.PreviousDocument)

	del := b.Message(document.Existing(doc), document.Missing(), messageContext())
	require.NotNil(t, del)
	assert.Nil(t, del.Data.Document)
	assert.NotNil(t, del.Data.PreviousDocument)
}

func TestEnvelopeFields(t *testing.T) {
	b := NewBuilder(zap.NewNop())
	ev := b.Message(document.Missing(), document.Existing(map[string]any{"text": "hi"}), messageContext())
	require.NotNil(t, ev)

	assert.Equal(t, "dm.message.create", ev.Type)
	assert.Equal(t, "store://conversations/c1/messages/m1", ev.Source)
	assert.Equal(t, SpecVersion, ev.SpecVersion)
	assert.Equal(t, "c1", ev.Data.ConversationID)
	assert.Equal(t, "m1", ev.Data.MessageID)
	assert.True(t, strings.HasPrefix(ev.ID, "dm.message.create:store://conversations/c1/messages/m1:trig-1:"))
	assert.False(t, ev.Time.IsZero())
	assert.Equal(t, time.UTC, ev.Time.Location())
}

func TestFollowEdgeBuilder(t *testing.T) {
	b := NewBuilder(zap.NewNop())
	tc := document.TriggerContext{
		TriggerID: "trig-2",
		Resource:  "follows/u1/following/u2",
		Params:    map[string]string{"followerId": "u1", "followeeId": "u2"},
	}
	ev := b.FollowEdge(document.Existing(map[string]any{"since": "2026"}), document.Missing(), tc)
	require.NotNil(t, ev)
	assert.Equal(t, "follow.edge.delete", ev.Type)
	assert.Equal(t, "u1", ev.Data.FollowerID)
	assert.Equal(t, "u2", ev.Data.FolloweeID)
}

func TestCorrelationIDPreference(t *testing.T) {
	withConv := &Envelope{ID: "e1", Data: Data{ConversationID: "c1", FollowerID: "u1"}}
	assert.Equal(t, "c1", withConv.CorrelationID())

	withUser := &Envelope{ID: "e1", Data: Data{FollowerID: "u1"}}
	assert.Equal(t, "u1", withUser.CorrelationID())

	bare := &Envelope{ID: "e1"}
	assert.Equal(t, "e1", bare.CorrelationID())
}

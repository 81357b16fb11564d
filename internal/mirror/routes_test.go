package mirror

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoutingTotality(t *testing.T) {
	routes := NewRoutes(nil)
	for _, eventType := range EventTypes() {
		proc, ok := routes.Procedure(eventType)
		require.True(t, ok, "no procedure for %s", eventType)
		assert.NotEmpty(t, proc)
	}
}

func TestRoutingUnknownType(t *testing.T) {
	routes := NewRoutes(nil)
	_, ok := routes.Procedure("unknown.event")
	assert.False(t, ok)
	_, ok = routes.Procedure("")
	assert.False(t, ok)
}

func TestRoutingDefaults(t *testing.T) {
	routes := NewRoutes(nil)

	proc, ok := routes.Procedure("dm.message.create")
	require.True(t, ok)
	assert.Equal(t, "mirror_message_upsert", proc)

	proc, ok = routes.Procedure("dm.message.update")
	require.True(t, ok)
	assert.Equal(t, "mirror_message_upsert", proc)

	proc, ok = routes.Procedure("follow.edge.delete")
	require.True(t, ok)
	assert.Equal(t, "mirror_follow_edge_delete", proc)
}

func TestRoutingOverrides(t *testing.T) {
	routes := NewRoutes(map[string]string{
		"dm.message.create": "custom_upsert",
		"not.a.real.type":   "ignored",
		"dm.message.delete": "",
	})

	proc, ok := routes.Procedure("dm.message.create")
	require.True(t, ok)
	assert.Equal(t, "custom_upsert", proc)

	// Empty override keeps the default.
	proc, ok = routes.Procedure("dm.message.delete")
	require.True(t, ok)
	assert.Equal(t, "mirror_message_delete", proc)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindMessageCreate, KindOf("dm.message.create"))
	assert.Equal(t, KindUnknown, KindOf("something.else"))
	assert.Equal(t, "dm.message.create", KindMessageCreate.String())
	assert.Equal(t, "unknown", KindUnknown.String())
}

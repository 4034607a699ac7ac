package relay

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/loqui-chat/loqui/internal/transport"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *Registry, *RelationshipCache) {
	t.Helper()
	registry := NewRegistry()
	cache := NewRelationshipCache()
	return NewDispatcher(registry, cache, zaptest.NewLogger(t)), registry, cache
}

func contactCreate(origin string, targets ...string) *transport.Envelope {
	return &transport.Envelope{
		Origin:    origin,
		Targets:   targets,
		Directive: transport.DirectiveCreate,
		Topic:     "contact",
		Payload:   &transport.Payload{Body: map[string]any{"username": origin}},
	}
}

func TestDispatchFanOutToExplicitTarget(t *testing.T) {
	d, registry, _ := newTestDispatcher(t)
	connA := &fakeConn{}
	connB := &fakeConn{}
	registry.Attach(connA, "alice")
	registry.Attach(connB, "bob")

	d.OnEvent(context.Background(), contactCreate("alice", "bob"))

	require.Len(t, connB.packets(), 1)
	assert.True(t, strings.HasPrefix(connB.packets()[0], "CREATE contact"))
	assert.Empty(t, connA.packets(), "origin must not receive its own event")
}

func TestDispatchOfflineRecipientSkipped(t *testing.T) {
	d, registry, _ := newTestDispatcher(t)
	connA := &fakeConn{}
	registry.Attach(connA, "alice")

	d.OnEvent(context.Background(), contactCreate("alice", "bob"))

	assert.Empty(t, connA.packets())
}

func TestDispatchMalformedEnvelope(t *testing.T) {
	d, registry, _ := newTestDispatcher(t)
	connA := &fakeConn{}
	connB := &fakeConn{}
	registry.Attach(connA, "alice")
	registry.Attach(connB, "bob")

	env := contactCreate("alice", "bob")
	env.Topic = ""
	d.OnEvent(context.Background(), env)

	assert.Empty(t, connB.packets(), "malformed envelope must produce zero sends")
	require.Len(t, connA.packets(), 1, "origin gets an ERROR echo when connected")
	assert.True(t, strings.HasPrefix(connA.packets()[0], "ERROR"))
}

func TestDispatchMalformedEnvelopeOriginOffline(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	env := contactCreate("alice", "bob")
	env.Directive = ""
	// Must not panic or send anything; just logged and dropped.
	d.OnEvent(context.Background(), env)
}

func TestDispatchUnmappedPairDropped(t *testing.T) {
	d, registry, _ := newTestDispatcher(t)
	connB := &fakeConn{}
	registry.Attach(connB, "bob")

	d.OnEvent(context.Background(), &transport.Envelope{
		Origin:    "alice",
		Targets:   transport.TargetList{"bob"},
		Directive: transport.DirectiveCreate,
		Topic:     "presence",
		Payload:   &transport.Payload{},
	})

	assert.Empty(t, connB.packets())
}

func TestDispatchContactCreateUpdatesCache(t *testing.T) {
	d, _, cache := newTestDispatcher(t)

	d.OnEvent(context.Background(), contactCreate("alice", "bob"))
	assert.Equal(t, []string{"bob"}, cache.ContactsOf("alice"))
	assert.Equal(t, []string{"alice"}, cache.ContactsOf("bob"))

	env := contactCreate("alice", "bob")
	env.Directive = transport.DirectiveDelete
	d.OnEvent(context.Background(), env)
	assert.Empty(t, cache.ContactsOf("alice"))
	assert.Empty(t, cache.ContactsOf("bob"))
}

func TestDispatchStatusUpdateUsesForHeader(t *testing.T) {
	d, registry, _ := newTestDispatcher(t)
	connB := &fakeConn{}
	registry.Attach(connB, "bob")

	d.OnEvent(context.Background(), &transport.Envelope{
		Origin:    "alice",
		Directive: transport.DirectiveUpdate,
		Topic:     "contact/status",
		Payload: &transport.Payload{
			Headers: map[string]string{"for": "bob", "status": "away"},
		},
	})

	require.Len(t, connB.packets(), 1)
	pkt := connB.packets()[0]
	assert.True(t, strings.HasPrefix(pkt, "UPDATE contact/status"))
	assert.Contains(t, pkt, "status: away")
}

func TestDispatchInformationChangeFansOutToContacts(t *testing.T) {
	d, registry, cache := newTestDispatcher(t)
	cache.AddContact("alice", "x")
	cache.AddContact("alice", "y")
	connX := &fakeConn{}
	connY := &fakeConn{}
	registry.Attach(connX, "x")
	registry.Attach(connY, "y")

	d.OnEvent(context.Background(), &transport.Envelope{
		Origin:    "alice",
		Directive: transport.DirectiveUpdate,
		Topic:     "contact/information",
		Payload:   &transport.Payload{Body: map[string]any{"status": "new bio"}},
	})

	require.Len(t, connX.packets(), 1)
	require.Len(t, connY.packets(), 1)
	assert.True(t, strings.HasPrefix(connX.packets()[0], "UPDATE contact/information"))
}

func TestDispatchRenamePropagatesCache(t *testing.T) {
	d, registry, cache := newTestDispatcher(t)
	cache.AddContact("old", "x")
	cache.AddContact("old", "y")
	connX := &fakeConn{}
	connY := &fakeConn{}
	registry.Attach(connX, "x")
	registry.Attach(connY, "y")

	d.OnEvent(context.Background(), &transport.Envelope{
		Origin:    "old",
		Directive: transport.DirectiveUpdate,
		Topic:     "contact/information",
		Payload: &transport.Payload{
			Headers: map[string]string{"old_username": "old"},
			Body:    map[string]any{"username": "new"},
		},
	})

	assert.Empty(t, cache.ContactsOf("old"))
	assert.Equal(t, []string{"x", "y"}, cache.ContactsOf("new"))
	require.Len(t, connX.packets(), 1)
	require.Len(t, connY.packets(), 1)
	assert.True(t, strings.HasPrefix(connX.packets()[0], "UPDATE contact/information"))
	assert.True(t, strings.HasPrefix(connY.packets()[0], "UPDATE contact/information"))
}

func TestDispatchGroupMessageFansOutToMembers(t *testing.T) {
	d, registry, cache := newTestDispatcher(t)
	cache.AddMember("g1", "alice")
	cache.AddMember("g1", "bob")
	cache.AddMember("g1", "carol")
	connA := &fakeConn{}
	connB := &fakeConn{}
	registry.Attach(connA, "alice")
	registry.Attach(connB, "bob")

	d.OnEvent(context.Background(), &transport.Envelope{
		Origin:    "alice",
		Directive: transport.DirectiveCreate,
		Topic:     "message",
		Payload: &transport.Payload{
			Headers: map[string]string{"group": "g1"},
			Body:    map[string]any{"text": "hello"},
		},
	})

	assert.Empty(t, connA.packets(), "sender is excluded from group fan-out")
	require.Len(t, connB.packets(), 1)
	assert.True(t, strings.HasPrefix(connB.packets()[0], "CREATE message"))
	// carol is offline: silently skipped.
}

func TestDispatchMemberEventsMaintainMembership(t *testing.T) {
	d, registry, cache := newTestDispatcher(t)
	cache.AddMember("g1", "alice")
	cache.AddMember("g1", "bob")
	connB := &fakeConn{}
	connC := &fakeConn{}
	registry.Attach(connB, "bob")
	registry.Attach(connC, "carol")

	d.OnEvent(context.Background(), &transport.Envelope{
		Origin:    "alice",
		Directive: transport.DirectiveCreate,
		Topic:     "member",
		Payload: &transport.Payload{
			Headers: map[string]string{"group": "g1", "member": "carol"},
		},
	})
	assert.Equal(t, []string{"alice", "bob", "carol"}, cache.MembersOf("g1"))
	require.Len(t, connB.packets(), 1)
	require.Len(t, connC.packets(), 1)

	d.OnEvent(context.Background(), &transport.Envelope{
		Origin:    "alice",
		Directive: transport.DirectiveDelete,
		Topic:     "member",
		Payload: &transport.Payload{
			Headers: map[string]string{"group": "g1", "member": "carol"},
		},
	})
	assert.Equal(t, []string{"alice", "bob"}, cache.MembersOf("g1"))
	// The removed member is still notified of their removal.
	require.Len(t, connC.packets(), 2)
}

func TestDispatchFullBufferNotRetried(t *testing.T) {
	d, registry, _ := newTestDispatcher(t)
	connB := &fakeConn{full: true}
	registry.Attach(connB, "bob")

	d.OnEvent(context.Background(), contactCreate("alice", "bob"))

	assert.Empty(t, connB.packets())
}

package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCacheMutualContacts(t *testing.T) {
	c := NewRelationshipCache()
	c.AddContact("alice", "bob")

	assert.Equal(t, []string{"bob"}, c.ContactsOf("alice"))
	assert.Equal(t, []string{"alice"}, c.ContactsOf("bob"))

	c.AddContact("alice", "carol")
	assert.Equal(t, []string{"bob", "carol"}, c.ContactsOf("alice"))
}

func TestCacheIgnoresDegenerateEdges(t *testing.T) {
	c := NewRelationshipCache()
	c.AddContact("alice", "alice")
	c.AddContact("", "bob")
	c.AddContact("alice", "")

	assert.Empty(t, c.ContactsOf("alice"))
	assert.Empty(t, c.ContactsOf("bob"))
}

func TestCacheRemoveContactPrunes(t *testing.T) {
	c := NewRelationshipCache()
	c.AddContact("alice", "bob")
	c.AddContact("alice", "carol")

	c.RemoveContact("alice", "bob")
	assert.Equal(t, []string{"carol"}, c.ContactsOf("alice"))
	assert.Empty(t, c.ContactsOf("bob"))

	c.RemoveContact("alice", "carol")
	assert.Empty(t, c.ContactsOf("alice"))

	// Removing an absent edge is a no-op.
	c.RemoveContact("alice", "dave")
}

func TestCacheGroupMembership(t *testing.T) {
	c := NewRelationshipCache()
	c.AddMember("g1", "alice")
	c.AddMember("g1", "bob")
	c.AddMember("g2", "alice")

	assert.Equal(t, []string{"alice", "bob"}, c.MembersOf("g1"))
	assert.Equal(t, []string{"alice"}, c.MembersOf("g2"))

	c.RemoveMember("g1", "alice")
	assert.Equal(t, []string{"bob"}, c.MembersOf("g1"))

	c.RemoveMember("g1", "bob")
	assert.Empty(t, c.MembersOf("g1"))

	c.RemoveGroup("g2")
	assert.Empty(t, c.MembersOf("g2"))
}

func TestCacheLoad(t *testing.T) {
	c := NewRelationshipCache()
	c.Load(
		map[string][]string{"alice": {"bob", "carol"}},
		map[string][]string{"g1": {"alice", "bob"}},
	)

	assert.Equal(t, []string{"bob", "carol"}, c.ContactsOf("alice"))
	// Edges loaded one-sided become mutual.
	assert.Equal(t, []string{"alice"}, c.ContactsOf("bob"))
	assert.Equal(t, []string{"alice", "bob"}, c.MembersOf("g1"))
}

func TestCacheRenameRewritesKeyAndBackReferences(t *testing.T) {
	c := NewRelationshipCache()
	c.AddContact("old", "x")
	c.AddContact("old", "y")
	c.AddMember("g1", "old")
	c.AddMember("g1", "x")

	c.Rename("old", "new")

	assert.Empty(t, c.ContactsOf("old"))
	assert.Equal(t, []string{"x", "y"}, c.ContactsOf("new"))
	assert.Equal(t, []string{"new"}, c.ContactsOf("x"))
	assert.Equal(t, []string{"new"}, c.ContactsOf("y"))
	assert.Equal(t, []string{"new", "x"}, c.MembersOf("g1"))
}

func TestCacheRenameMergesExistingKey(t *testing.T) {
	c := NewRelationshipCache()
	c.AddContact("old", "x")
	c.AddContact("new", "y")

	c.Rename("old", "new")

	assert.Equal(t, []string{"x", "y"}, c.ContactsOf("new"))
	assert.Equal(t, []string{"new"}, c.ContactsOf("x"))
}

func TestCacheRenameNoop(t *testing.T) {
	c := NewRelationshipCache()
	c.AddContact("alice", "bob")

	c.Rename("alice", "alice")
	c.Rename("", "bob")
	c.Rename("alice", "")

	assert.Equal(t, []string{"bob"}, c.ContactsOf("alice"))
}

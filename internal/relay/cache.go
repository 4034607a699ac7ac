package relay

import "sort"

// RelationshipCache indexes mutual-contact edges and group membership so the
// dispatcher can resolve fan-out without querying persistence per event.
//
// The cache is process-local and rebuilt from persistence at startup. It is
// not safe for concurrent use: only the dispatcher mutates it, and the
// transport invokes the dispatcher sequentially.
type RelationshipCache struct {
	contacts map[string]map[string]struct{}
	groups   map[string]map[string]struct{}
}

// NewRelationshipCache creates an empty cache.
func NewRelationshipCache() *RelationshipCache {
	return &RelationshipCache{
		contacts: make(map[string]map[string]struct{}),
		groups:   make(map[string]map[string]struct{}),
	}
}

// Load replaces the cache contents with the persisted relationship state.
// Contact lists are made mutual regardless of which side they were loaded on.
func (c *RelationshipCache) Load(contacts, groups map[string][]string) {
	c.contacts = make(map[string]map[string]struct{}, len(contacts))
	c.groups = make(map[string]map[string]struct{}, len(groups))
	for identity, peers := range contacts {
		for _, peer := range peers {
			c.AddContact(identity, peer)
		}
	}
	for groupID, members := range groups {
		for _, member := range members {
			c.AddMember(groupID, member)
		}
	}
}

// AddContact records a mutual contact edge between a and b.
func (c *RelationshipCache) AddContact(a, b string) {
	if a == "" || b == "" || a == b {
		return
	}
	c.addEdge(c.contacts, a, b)
	c.addEdge(c.contacts, b, a)
}

// RemoveContact removes the mutual edge between a and b, pruning entries
// left without any relationships.
func (c *RelationshipCache) RemoveContact(a, b string) {
	c.removeEdge(c.contacts, a, b)
	c.removeEdge(c.contacts, b, a)
}

// ContactsOf returns the mutual contacts of identity in sorted order.
func (c *RelationshipCache) ContactsOf(identity string) []string {
	return sortedKeys(c.contacts[identity])
}

// AddMember records identity as a member of group.
func (c *RelationshipCache) AddMember(groupID, identity string) {
	if groupID == "" || identity == "" {
		return
	}
	c.addEdge(c.groups, groupID, identity)
}

// RemoveMember removes identity from group, pruning empty groups.
func (c *RelationshipCache) RemoveMember(groupID, identity string) {
	c.removeEdge(c.groups, groupID, identity)
}

// MembersOf returns the members of group in sorted order.
func (c *RelationshipCache) MembersOf(groupID string) []string {
	return sortedKeys(c.groups[groupID])
}

// RemoveGroup drops the whole member set of group.
func (c *RelationshipCache) RemoveGroup(groupID string) {
	delete(c.groups, groupID)
}

// Rename rewrites every occurrence of old to next: the contact key itself,
// the back-references held by its peers, and all group member sets.
func (c *RelationshipCache) Rename(old, next string) {
	if old == "" || next == "" || old == next {
		return
	}
	if set, ok := c.contacts[old]; ok {
		delete(c.contacts, old)
		if existing, ok := c.contacts[next]; ok {
			for peer := range set {
				existing[peer] = struct{}{}
			}
		} else {
			c.contacts[next] = set
		}
	}
	for _, set := range c.contacts {
		if _, ok := set[old]; ok {
			delete(set, old)
			set[next] = struct{}{}
		}
	}
	for _, members := range c.groups {
		if _, ok := members[old]; ok {
			delete(members, old)
			members[next] = struct{}{}
		}
	}
}

func (c *RelationshipCache) addEdge(index map[string]map[string]struct{}, key, value string) {
	set, ok := index[key]
	if !ok {
		set = make(map[string]struct{})
		index[key] = set
	}
	set[value] = struct{}{}
}

func (c *RelationshipCache) removeEdge(index map[string]map[string]struct{}, key, value string) {
	set, ok := index[key]
	if !ok {
		return
	}
	delete(set, value)
	if len(set) == 0 {
		delete(index, key)
	}
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

package prune

import (
	"sort"

	"github.com/platinummonkey/protoprune/pkg/schema"
)

// MarkSet records what a prune reached. It implements schema.Retainer.
type MarkSet struct {
	// types holds every type whose declaration survives.
	types map[schema.ProtoType]struct{}
	// full holds types reached as a whole, whose members were all offered for marking.
	full        map[schema.ProtoType]struct{}
	members     map[schema.ProtoMember]struct{}
	rootTypes   map[schema.ProtoType]struct{}
	rootMembers map[schema.ProtoMember]struct{}
}

// NewMarkSet returns an empty mark set.
func NewMarkSet() *MarkSet {
	return &MarkSet{
		types:       make(map[schema.ProtoType]struct{}),
		full:        make(map[schema.ProtoType]struct{}),
		members:     make(map[schema.ProtoMember]struct{}),
		rootTypes:   make(map[schema.ProtoType]struct{}),
		rootMembers: make(map[schema.ProtoMember]struct{}),
	}
}

// ContainsType reports whether t was reached.
func (m *MarkSet) ContainsType(t schema.ProtoType) bool {
	_, ok := m.types[t]
	return ok
}

// ContainsMember reports whether member was reached.
func (m *MarkSet) ContainsMember(member schema.ProtoMember) bool {
	_, ok := m.members[member]
	return ok
}

// IsRootType reports whether t seeded the prune.
func (m *MarkSet) IsRootType(t schema.ProtoType) bool {
	_, ok := m.rootTypes[t]
	return ok
}

// IsRootMember reports whether member seeded the prune.
func (m *MarkSet) IsRootMember(member schema.ProtoMember) bool {
	_, ok := m.rootMembers[member]
	return ok
}

// Types returns the reached types, sorted.
func (m *MarkSet) Types() []schema.ProtoType {
	types := make([]schema.ProtoType, 0, len(m.types))
	for t := range m.types {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool {
		return types[i].String() < types[j].String()
	})
	return types
}

// Members returns the reached members, sorted.
func (m *MarkSet) Members() []schema.ProtoMember {
	members := make([]schema.ProtoMember, 0, len(m.members))
	for member := range m.members {
		members = append(members, member)
	}
	sort.Slice(members, func(i, j int) bool {
		return members[i].String() < members[j].String()
	})
	return members
}

func (m *MarkSet) rootType(t schema.ProtoType) {
	m.rootTypes[t] = struct{}{}
}

func (m *MarkSet) rootMember(member schema.ProtoMember) {
	m.rootMembers[member] = struct{}{}
}

// visit marks t as surviving and reports whether it was new.
func (m *MarkSet) visit(t schema.ProtoType) bool {
	if _, ok := m.types[t]; ok {
		return false
	}
	m.types[t] = struct{}{}
	return true
}

// markFull marks t as reached in full and reports whether it was new.
func (m *MarkSet) markFull(t schema.ProtoType) bool {
	if _, ok := m.full[t]; ok {
		return false
	}
	m.full[t] = struct{}{}
	return true
}

// markMember marks member and reports whether it was new.
func (m *MarkSet) markMember(member schema.ProtoMember) bool {
	if _, ok := m.members[member]; ok {
		return false
	}
	m.members[member] = struct{}{}
	return true
}

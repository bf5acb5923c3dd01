package prune

import (
	"github.com/platinummonkey/protoprune/pkg/rules"
	"github.com/platinummonkey/protoprune/pkg/schema"
)

// Result is the outcome of a prune.
type Result struct {
	// Schema is the pruned copy. The input schema is not modified.
	Schema *schema.Schema
	Marks  *MarkSet
	// UnusedRoots and UnusedPrunes are rules that matched nothing, usually typos.
	UnusedRoots  []string
	UnusedPrunes []string
}

// Prune returns the part of s reachable from the roots of r.
func Prune(s *schema.Schema, r *rules.PruningRules) *Result {
	return NewPruner(s, r).Prune()
}

// frontier is a pending node of the mark phase.
type frontier interface {
	isFrontier()
}

type typeNode struct {
	t schema.ProtoType
}

type memberNode struct {
	member schema.ProtoMember
}

func (typeNode) isFrontier()   {}
func (memberNode) isFrontier() {}

// Pruner runs one prune. It is not safe for concurrent use; independent Pruners may run
// in parallel over the same schema.
type Pruner struct {
	schema *schema.Schema
	rules  *rules.PruningRules
	usage  *rules.Usage
	marks  *MarkSet
	queue  []frontier
}

// NewPruner returns a pruner of s under r.
func NewPruner(s *schema.Schema, r *rules.PruningRules) *Pruner {
	return &Pruner{
		schema: s,
		rules:  r,
		usage:  rules.NewUsage(),
		marks:  NewMarkSet(),
	}
}

// Prune marks from the roots and rewrites the schema. Call it once.
func (p *Pruner) Prune() *Result {
	p.markRoots()
	p.markReachable()
	return &Result{
		Schema:       p.schema.Retain(p.marks),
		Marks:        p.marks,
		UnusedRoots:  p.usage.UnusedRoots(p.rules),
		UnusedPrunes: p.usage.UnusedPrunes(p.rules),
	}
}

func (p *Pruner) markRoots() {
	for _, t := range p.schema.Types() {
		p.markRootType(t, p.typeMembers(t))
	}
	for _, svc := range p.schema.Services() {
		members := make([]schema.ProtoMember, 0, len(svc.Rpcs))
		for _, rpc := range svc.Rpcs {
			members = append(members, schema.NewProtoMember(svc.Type, rpc.Name))
		}
		p.markRootType(svc.Type, members)
	}
}

func (p *Pruner) markRootType(t schema.ProtoType, members []schema.ProtoMember) {
	if p.usage.Record(p.rules.IsRoot(t.String())) {
		p.marks.rootType(t)
		p.markType(t)
		return
	}
	for _, member := range members {
		if !p.usage.Record(p.rules.IsRoot(member.String())) || !p.isRetainedVersion(member) {
			continue
		}
		p.marks.rootMember(member)
		p.markMember(member)
	}
}

func (p *Pruner) markReachable() {
	for len(p.queue) > 0 {
		next := p.queue[0]
		p.queue = p.queue[1:]
		switch n := next.(type) {
		case typeNode:
			p.visit(n.t)
			for _, member := range p.typeMembers(n.t) {
				p.markMember(member)
			}
		case memberNode:
			p.markMemberReferences(n.member)
		}
	}
}

// typeMembers returns the fields, constants or rpcs of t.
func (p *Pruner) typeMembers(t schema.ProtoType) []schema.ProtoMember {
	var members []schema.ProtoMember
	switch declared := p.schema.GetType(t).(type) {
	case *schema.MessageType:
		for _, f := range declared.FieldsAndOneOfFields() {
			members = append(members, f.Member(t))
		}
	case *schema.EnumType:
		for _, c := range declared.Constants {
			members = append(members, schema.NewProtoMember(t, c.Name))
		}
	case *schema.EnclosingType:
	case nil:
		if svc := p.schema.GetService(t); svc != nil {
			for _, rpc := range svc.Rpcs {
				members = append(members, schema.NewProtoMember(t, rpc.Name))
			}
		}
	}
	return members
}

func (p *Pruner) markMemberReferences(member schema.ProtoMember) {
	if f := p.schema.GetField(member); f != nil {
		p.markType(f.Type)
		p.markOptions(f.Options)
		return
	}
	if c := p.schema.GetEnumConstant(member); c != nil {
		p.markOptions(c.Options)
		return
	}
	if rpc := p.schema.GetRpc(member); rpc != nil {
		p.markType(rpc.RequestType)
		p.markType(rpc.ResponseType)
		p.markOptions(rpc.Options)
	}
}

// markType reaches t in full. Scalars need nothing and maps reach their key and value.
func (p *Pruner) markType(t schema.ProtoType) {
	if t.IsZero() || t.IsScalar() {
		return
	}
	if t.IsMap() {
		p.markType(t.KeyType())
		p.markType(t.ValueType())
		return
	}
	if p.usage.Record(p.rules.IsPruned(t.String())) {
		return
	}
	if p.marks.markFull(t) {
		p.queue = append(p.queue, typeNode{t: t})
	}
}

// markMember reaches member and the declaration of its type, but not its siblings.
func (p *Pruner) markMember(member schema.ProtoMember) {
	if p.usage.Record(p.rules.IsPruned(member.String())) {
		return
	}
	if !p.isRetainedVersion(member) {
		return
	}
	if p.marks.markMember(member) {
		p.queue = append(p.queue, memberNode{member: member})
		p.visit(member.Type)
	}
}

// visit keeps the declaration of t along with its options and its file's options.
func (p *Pruner) visit(t schema.ProtoType) {
	if !p.marks.visit(t) {
		return
	}
	if file := p.schema.ProtoFileForType(t); file != nil {
		p.markOptions(file.Options)
	}
	if declared := p.schema.GetType(t); declared != nil {
		p.markOptions(declared.TypeOptions())
		if m, ok := declared.(*schema.MessageType); ok {
			for _, o := range m.OneOfs {
				p.markOptions(o.Options)
			}
		}
		return
	}
	if svc := p.schema.GetService(t); svc != nil {
		p.markOptions(svc.Options)
	}
}

// markOptions reaches every member an option value references. A non-extension field
// of a message value reaches that message in full; extension fields reach only
// themselves.
func (p *Pruner) markOptions(o schema.Options) {
	skip := func(member schema.ProtoMember) bool {
		return p.usage.Record(p.rules.IsPruned(member.String()))
	}
	for _, member := range o.Fields(skip) {
		field := p.schema.GetField(member)
		if field != nil && !field.IsExtension && !schema.IsOptionsType(member.Type) {
			p.markType(member.Type)
		}
		p.markMember(member)
	}
}

func (p *Pruner) isRetainedVersion(member schema.ProtoMember) bool {
	if f := p.schema.GetField(member); f != nil {
		return p.rules.IsRetainedVersion(f.Since(), f.Until())
	}
	if c := p.schema.GetEnumConstant(member); c != nil {
		return p.rules.IsRetainedVersion(c.Since(), c.Until())
	}
	return true
}

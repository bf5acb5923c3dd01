package protoprint

import (
	"sort"
	"strconv"
	"strings"

	"github.com/platinummonkey/protoprune/pkg/schema"
)

// options renders each top-level option assignment of o, without the `option` keyword.
// Linked options print from their value graph so pruned values stay out.
func (p *Printer) options(o schema.Options) []string {
	if !o.IsLinked() {
		var result []string
		for _, e := range o.Elements() {
			result = append(result, e.String())
		}
		return result
	}

	var result []string
	for _, member := range sortedMembers(o.Map()) {
		name := p.optionName(member)
		field := p.schema.GetField(member)
		value := o.Get(member)
		if items, ok := value.([]any); ok && (field == nil || field.IsRepeated()) {
			for _, item := range items {
				result = append(result, name+" = "+p.value(field, item))
			}
			continue
		}
		result = append(result, name+" = "+p.value(field, value))
	}
	return result
}

func (p *Printer) optionName(member schema.ProtoMember) string {
	if field := p.schema.GetField(member); field != nil {
		if field.IsExtension {
			return "(" + member.Member + ")"
		}
		return member.Member
	}
	if strings.Contains(member.Member, ".") {
		return "(" + member.Member + ")"
	}
	return member.Member
}

func (p *Printer) value(field *schema.Field, value any) string {
	switch v := value.(type) {
	case string:
		if field == nil {
			return v
		}
		return p.scalar(field.Type, v)
	case map[schema.ProtoMember]any:
		members := sortedMembers(v)
		entries := make([]string, 0, len(members))
		for _, member := range members {
			entries = append(entries, p.aggregateName(member)+": "+p.value(p.schema.GetField(member), v[member]))
		}
		return "{ " + strings.Join(entries, ", ") + " }"
	case []any:
		items := make([]string, 0, len(v))
		for _, item := range v {
			items = append(items, p.value(field, item))
		}
		return "[" + strings.Join(items, ", ") + "]"
	default:
		return ""
	}
}

// aggregateName names a member inside a message literal, where extensions use brackets.
func (p *Printer) aggregateName(member schema.ProtoMember) string {
	field := p.schema.GetField(member)
	if field != nil && field.IsExtension || field == nil && strings.Contains(member.Member, ".") {
		return "[" + member.Member + "]"
	}
	return member.Member
}

// scalar quotes string and bytes values; every other scalar prints as written.
func (p *Printer) scalar(t schema.ProtoType, value string) string {
	if t == schema.String || t == schema.Bytes {
		return strconv.Quote(value)
	}
	return value
}

func sortedMembers(m map[schema.ProtoMember]any) []schema.ProtoMember {
	members := make([]schema.ProtoMember, 0, len(m))
	for member := range m {
		members = append(members, member)
	}
	sort.Slice(members, func(i, j int) bool {
		return members[i].String() < members[j].String()
	})
	return members
}

package loader

import (
	"fmt"
	"strconv"

	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/platinummonkey/protoprune/pkg/schema"
)

// Pseudo-options stored as uninterpreted options by the parser but carried on the field.
const (
	defaultOption  = "default"
	jsonNameOption = "json_name"
)

// optionsMessage is implemented by every descriptorpb *Options message.
type optionsMessage interface {
	GetUninterpretedOption() []*descriptorpb.UninterpretedOption
}

// newOptions converts raw option assignments, in source order, to unlinked options.
func newOptions(optionType schema.ProtoType, raw optionsMessage) (schema.Options, error) {
	var elements []*schema.OptionElement
	if raw != nil {
		for _, opt := range raw.GetUninterpretedOption() {
			if isPseudoOption(opt) {
				continue
			}
			element, err := optionElement(opt)
			if err != nil {
				return schema.Options{}, err
			}
			elements = append(elements, element)
		}
	}
	return schema.NewOptions(optionType, elements), nil
}

func isPseudoOption(opt *descriptorpb.UninterpretedOption) bool {
	name := opt.GetName()
	if len(name) != 1 || name[0].GetIsExtension() {
		return false
	}
	return name[0].GetNamePart() == defaultOption || name[0].GetNamePart() == jsonNameOption
}

// pseudoOption returns the source value of the pseudo-option name, if set.
func pseudoOption(raw optionsMessage, name string) (string, bool) {
	if raw == nil {
		return "", false
	}
	for _, opt := range raw.GetUninterpretedOption() {
		parts := opt.GetName()
		if len(parts) == 1 && !parts[0].GetIsExtension() && parts[0].GetNamePart() == name {
			_, value, err := optionValue(opt)
			return fmt.Sprint(value), err == nil
		}
	}
	return "", false
}

// optionElement turns `(a.b).c.(d) = v` into the chain a.b -> c -> d = v.
func optionElement(opt *descriptorpb.UninterpretedOption) (*schema.OptionElement, error) {
	parts := opt.GetName()
	if len(parts) == 0 {
		return nil, fmt.Errorf("option without a name")
	}
	kind, value, err := optionValue(opt)
	if err != nil {
		return nil, fmt.Errorf("option %s: %w", optionName(parts), err)
	}
	last := parts[len(parts)-1]
	element := &schema.OptionElement{
		Name:          last.GetNamePart(),
		Kind:          kind,
		Value:         value,
		Parenthesized: last.GetIsExtension(),
	}
	for i := len(parts) - 2; i >= 0; i-- {
		element = &schema.OptionElement{
			Name:          parts[i].GetNamePart(),
			Kind:          schema.OptionOption,
			Value:         element,
			Parenthesized: parts[i].GetIsExtension(),
		}
	}
	return element, nil
}

func optionValue(opt *descriptorpb.UninterpretedOption) (schema.OptionKind, any, error) {
	switch {
	case opt.IdentifierValue != nil:
		switch v := opt.GetIdentifierValue(); v {
		case "true", "false":
			return schema.OptionBoolean, v, nil
		default:
			if isFloatKeyword(v) {
				return schema.OptionNumber, v, nil
			}
			return schema.OptionEnum, v, nil
		}
	case opt.PositiveIntValue != nil:
		return schema.OptionNumber, strconv.FormatUint(opt.GetPositiveIntValue(), 10), nil
	case opt.NegativeIntValue != nil:
		return schema.OptionNumber, strconv.FormatInt(opt.GetNegativeIntValue(), 10), nil
	case opt.DoubleValue != nil:
		return schema.OptionNumber, strconv.FormatFloat(opt.GetDoubleValue(), 'g', -1, 64), nil
	case opt.StringValue != nil:
		return schema.OptionString, string(opt.GetStringValue()), nil
	case opt.AggregateValue != nil:
		entries, err := parseAggregate(opt.GetAggregateValue())
		if err != nil {
			return 0, nil, err
		}
		return schema.OptionMap, entries, nil
	default:
		return 0, nil, fmt.Errorf("option has no value")
	}
}

func optionName(parts []*descriptorpb.UninterpretedOption_NamePart) string {
	name := ""
	for i, part := range parts {
		if i > 0 {
			name += "."
		}
		if part.GetIsExtension() {
			name += "(" + part.GetNamePart() + ")"
		} else {
			name += part.GetNamePart()
		}
	}
	return name
}

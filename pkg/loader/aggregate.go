package loader

import (
	"fmt"
	"strings"

	"github.com/bufbuild/protocompile/ast"
	"github.com/bufbuild/protocompile/parser"
	"github.com/bufbuild/protocompile/reporter"

	"github.com/platinummonkey/protoprune/pkg/schema"
)

// parseAggregate reads the body of a message literal, as stored in an uninterpreted
// option's aggregate value, into map entries. The parser stores the literal as its
// tokens, so the text is parsed back as the value of a file option.
func parseAggregate(text string) ([]*schema.OptionElement, error) {
	source := "syntax = \"proto2\";\noption (aggregate) = {\n" + text + "\n};\n"
	file, err := parser.Parse("aggregate.proto", strings.NewReader(source), reporter.NewHandler(nil))
	if err != nil {
		return nil, fmt.Errorf("invalid aggregate value: %w", err)
	}
	for _, decl := range file.Decls {
		opt, ok := decl.(*ast.OptionNode)
		if !ok {
			continue
		}
		if literal, ok := opt.Val.(*ast.MessageLiteralNode); ok {
			return messageLiteral(file, literal)
		}
	}
	return nil, fmt.Errorf("invalid aggregate value %q", text)
}

func messageLiteral(file *ast.FileNode, literal *ast.MessageLiteralNode) ([]*schema.OptionElement, error) {
	entries := make([]*schema.OptionElement, 0, len(literal.Elements))
	for _, field := range literal.Elements {
		kind, value, err := literalValue(file, field.Val)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", field.Name.Value(), err)
		}
		entries = append(entries, &schema.OptionElement{
			Name:          fieldReference(field.Name),
			Kind:          kind,
			Value:         value,
			Parenthesized: field.Name.IsExtension() || field.Name.IsAnyTypeReference(),
		})
	}
	return entries, nil
}

// fieldReference names a message literal field without its brackets. Any type
// references keep their URL prefix: type.googleapis.com/pkg.Type.
func fieldReference(ref *ast.FieldReferenceNode) string {
	name := string(ref.Name.AsIdentifier())
	if ref.IsAnyTypeReference() {
		return string(ref.URLPrefix.AsIdentifier()) + "/" + name
	}
	return name
}

// literalValue converts a message literal value. Numbers keep their source text.
func literalValue(file *ast.FileNode, value ast.ValueNode) (schema.OptionKind, any, error) {
	switch v := value.(type) {
	case *ast.MessageLiteralNode:
		entries, err := messageLiteral(file, v)
		return schema.OptionMap, entries, err
	case *ast.ArrayLiteralNode:
		items := make([]any, 0, len(v.Elements))
		for _, element := range v.Elements {
			kind, item, err := literalValue(file, element)
			if err != nil {
				return 0, nil, err
			}
			if s, ok := item.(string); ok {
				items = append(items, schema.OptionPrimitive{Kind: kind, Value: s})
			} else {
				items = append(items, item)
			}
		}
		return schema.OptionList, items, nil
	case ast.StringValueNode:
		return schema.OptionString, v.AsString(), nil
	case *ast.SignedFloatLiteralNode:
		return schema.OptionNumber, "-" + file.NodeInfo(v.Float).RawText(), nil
	case *ast.NegativeIntLiteralNode:
		return schema.OptionNumber, "-" + file.NodeInfo(v.Uint).RawText(), nil
	case *ast.UintLiteralNode, *ast.FloatLiteralNode, *ast.SpecialFloatLiteralNode:
		return schema.OptionNumber, file.NodeInfo(v).RawText(), nil
	case ast.IdentValueNode:
		id := string(v.AsIdentifier())
		switch {
		case id == "true" || id == "false":
			return schema.OptionBoolean, id, nil
		case isFloatKeyword(id):
			return schema.OptionNumber, id, nil
		default:
			return schema.OptionEnum, id, nil
		}
	default:
		return 0, nil, fmt.Errorf("unsupported value %T in aggregate value", value)
	}
}

func isFloatKeyword(t string) bool {
	switch strings.ToLower(t) {
	case "inf", "infinity", "nan":
		return true
	}
	return false
}

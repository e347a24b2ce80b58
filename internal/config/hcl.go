package config

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// parseHCLFile reads a flat file of HCL attributes.
func parseHCLFile(path string) (Values, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL: %w", diags)
	}

	attrs, diags := file.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("module configuration must only contain attributes: %w", diags)
	}

	values := make(Values, len(attrs))
	for name, attr := range attrs {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to evaluate '%s': %w", name, diags)
		}
		s, err := ctyToString(val)
		if err != nil {
			return nil, fmt.Errorf("option '%s': %w", name, err)
		}
		values[name] = s
	}
	return values, nil
}

// ctyToString flattens a primitive or a collection of primitives into an
// option string. Collections are joined with commas.
func ctyToString(val cty.Value) (string, error) {
	if val.IsNull() {
		return "", nil
	}
	if !val.IsWhollyKnown() {
		return "", fmt.Errorf("value is not known")
	}

	ty := val.Type()
	if ty.IsListType() || ty.IsTupleType() || ty.IsSetType() {
		var parts []string
		for it := val.ElementIterator(); it.Next(); {
			_, elem := it.Element()
			s, err := ctyPrimitiveToString(elem)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, ","), nil
	}
	return ctyPrimitiveToString(val)
}

func ctyPrimitiveToString(val cty.Value) (string, error) {
	if !val.Type().IsPrimitiveType() {
		return "", fmt.Errorf("unsupported value of type %s", val.Type().FriendlyName())
	}
	str, err := convert.Convert(val, cty.String)
	if err != nil {
		return "", err
	}
	return str.AsString(), nil
}

package rules

import (
	"reflect"

	"github.com/expr-lang/expr/ast"
)

// Names a rule may call without declaring them in its context.
const (
	predicateExists = "EXISTS"
	predicateMatch  = "match"
	predicateSearch = "search"
)

var (
	allowedBinary = map[string]bool{
		"==": true, "!=": true,
		"<": true, "<=": true, ">": true, ">=": true,
		"in": true, "not in": true,
		"and": true, "or": true, "&&": true, "||": true,
	}
	allowedUnary = map[string]bool{"not": true, "!": true}
	signUnary    = map[string]bool{"-": true, "+": true}
	predicates   = map[string]bool{predicateExists: true, predicateMatch: true, predicateSearch: true}
)

// validator walks a parsed rule and rejects every node outside the rule
// grammar. It also collects the context variables the rule refers to.
type validator struct {
	source string
	names  map[string]struct{}
	// guarded holds names probed with EXISTS('NAME'); they may be missing
	// from the context at evaluation time.
	guarded map[string]struct{}
}

func (v *validator) walk(node ast.Node) error {
	switch n := node.(type) {
	case *ast.NilNode, *ast.IntegerNode, *ast.FloatNode, *ast.BoolNode, *ast.StringNode:
		return nil

	case *ast.IdentifierNode:
		v.names[n.Value] = struct{}{}
		return nil

	case *ast.ArrayNode:
		return v.walkAll(n.Nodes)

	case *ast.MapNode:
		return v.walkAll(n.Pairs)

	case *ast.PairNode:
		if err := v.walk(n.Key); err != nil {
			return err
		}
		return v.walk(n.Value)

	case *ast.MemberNode:
		if err := v.walk(n.Node); err != nil {
			return err
		}
		return v.walk(n.Property)

	case *ast.UnaryNode:
		if signUnary[n.Operator] {
			switch n.Node.(type) {
			case *ast.IntegerNode, *ast.FloatNode:
				return nil
			}
		}
		if !allowedUnary[n.Operator] {
			return v.disallowed(n, n.Operator)
		}
		return v.walk(n.Node)

	case *ast.BinaryNode:
		if !allowedBinary[n.Operator] {
			return v.disallowed(n, n.Operator)
		}
		if err := v.walk(n.Left); err != nil {
			return err
		}
		return v.walk(n.Right)

	case *ast.CallNode:
		switch callee := n.Callee.(type) {
		case *ast.IdentifierNode:
			if !predicates[callee.Value] {
				v.names[callee.Value] = struct{}{}
			}
			if callee.Value == predicateExists && len(n.Arguments) == 1 {
				if name, ok := n.Arguments[0].(*ast.StringNode); ok {
					v.guarded[name.Value] = struct{}{}
				}
			}
		case *ast.MemberNode:
			if err := v.walk(callee); err != nil {
				return err
			}
		default:
			return v.disallowed(n, "")
		}
		return v.walkAll(n.Arguments)

	default:
		return v.disallowed(node, "")
	}
}

func (v *validator) walkAll(nodes []ast.Node) error {
	for _, n := range nodes {
		if err := v.walk(n); err != nil {
			return err
		}
	}
	return nil
}

func (v *validator) disallowed(node ast.Node, operator string) error {
	return &DisallowedNodeError{Source: v.source, Node: nodeName(node), Operator: operator}
}

// nodeName returns the bare type name of an AST node, e.g. "BinaryNode".
func nodeName(node ast.Node) string {
	t := reflect.TypeOf(node)
	if t == nil {
		return "nil"
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}

// predicatePatcher rewrites method-style predicate calls such as
// FOO.match('x') into plain calls match(FOO, 'x').
type predicatePatcher struct{}

func (predicatePatcher) Visit(node *ast.Node) {
	call, ok := (*node).(*ast.CallNode)
	if !ok {
		return
	}
	member, ok := call.Callee.(*ast.MemberNode)
	if !ok {
		return
	}
	prop, ok := member.Property.(*ast.StringNode)
	if !ok || (prop.Value != predicateMatch && prop.Value != predicateSearch) {
		return
	}

	args := make([]ast.Node, 0, len(call.Arguments)+1)
	args = append(args, member.Node)
	args = append(args, call.Arguments...)
	ast.Patch(node, &ast.CallNode{
		Callee:    &ast.IdentifierNode{Value: prop.Value},
		Arguments: args,
	})
}

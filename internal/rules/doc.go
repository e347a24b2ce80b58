// Package rules evaluates small user-authored expressions ("rules") against
// a context supplied by the caller.
//
// Rules are written in a restricted grammar: literals, context variables,
// attribute access and subscripting, comparisons (==, !=, <, <=, >, >=, is,
// is not, in, not in), boolean operators (and, or, not) and calls to context
// values or the EXISTS, match and search predicates. Anything else, such as
// arithmetic or conditional expressions, is rejected before the rule is
// compiled.
//
//	ARCH in ['x86_64', 'aarch64'] and COMPOSE.match('fedora')
//	EXISTS('BUILD_TARGET') and BUILD_TARGET is not None
//
// A rule sees nothing but the context it is evaluated with. Referencing a
// name the context does not define is an error unless the rule probes it
// with EXISTS first.
package rules

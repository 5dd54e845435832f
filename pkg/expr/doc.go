// Package expr implements the ACS condition expression language.
//
// Expressions are pure, side-effect-free boolean/value formulas evaluated
// against a fixed context schema (event, ctx, system). They are compiled
// once at rule-load time and evaluated many times against per-request
// contexts:
//
//	compiled, err := expr.Compile("event.gps.deltaDistanceKm > 200 && event.gps.deltaTimeSec < 300")
//	matched, err := compiled.EvalBool(env)
//
// The language supports boolean operators (&&, ||, !), comparisons
// (==, !=, <, <=, >, >=), arithmetic (+, -, *, /, %), string/number/bool/null
// literals, dotted field paths, and a small set of builtin functions
// (has, len, contains, lower). There are no loops, no assignments and no
// user-defined functions: evaluation cost is bounded by expression size,
// which is itself bounded at compile time.
//
// The package also resolves {{...}} template placeholders inside action
// payload strings; see Template.
package expr

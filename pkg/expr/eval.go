package expr

import (
	"fmt"
	"math"
	"reflect"
	"strings"
)

// Env supplies field values to expression evaluation. Implementations must
// be read-only: expressions are pure and an Env is shared across every rule
// evaluated for one request.
type Env interface {
	// Resolve returns the value at the given dotted path, and whether the
	// path exists.
	Resolve(path []string) (interface{}, bool)
}

// MapEnv is an Env over nested map[string]interface{} values, the shape
// produced by decoding JSON payloads.
type MapEnv map[string]interface{}

// Resolve walks the nested maps along path.
func (m MapEnv) Resolve(path []string) (interface{}, bool) {
	var current interface{} = map[string]interface{}(m)
	for _, part := range path {
		asMap, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = asMap[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Eval evaluates the compiled expression against the environment.
func (e *Expr) Eval(env Env) (interface{}, error) {
	return e.root.eval(env)
}

// EvalBool evaluates the expression and requires a boolean result. Rule
// conditions must be boolean; anything else is a rule authoring mistake and
// surfaces as a TypeError.
func (e *Expr) EvalBool(env Env) (bool, error) {
	v, err := e.root.eval(env)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, &TypeError{Op: "condition", Message: fmt.Sprintf("expression yields %T, want bool", v)}
	}
	return b, nil
}

func (n *litNode) eval(Env) (interface{}, error) {
	return n.value, nil
}

func (n *pathNode) eval(env Env) (interface{}, error) {
	v, ok := env.Resolve(n.parts)
	if !ok {
		return nil, &FieldNotFoundError{Path: n.String()}
	}
	return normalize(v), nil
}

func (n *unaryNode) eval(env Env) (interface{}, error) {
	v, err := n.x.eval(env)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case "!":
		b, ok := v.(bool)
		if !ok {
			return nil, &TypeError{Op: "!", Message: fmt.Sprintf("operand is %T, want bool", v)}
		}
		return !b, nil
	case "-":
		f, err := toFloat64(v)
		if err != nil {
			return nil, &TypeError{Op: "-", Message: err.Error()}
		}
		return -f, nil
	}
	return nil, &TypeError{Op: n.op, Message: "unknown unary operator"}
}

func (n *binaryNode) eval(env Env) (interface{}, error) {
	// Logical operators short-circuit and require bool operands.
	if n.op == "&&" || n.op == "||" {
		lv, err := n.l.eval(env)
		if err != nil {
			return nil, err
		}
		lb, ok := lv.(bool)
		if !ok {
			return nil, &TypeError{Op: n.op, Message: fmt.Sprintf("left operand is %T, want bool", lv)}
		}
		if n.op == "&&" && !lb {
			return false, nil
		}
		if n.op == "||" && lb {
			return true, nil
		}

		rv, err := n.r.eval(env)
		if err != nil {
			return nil, err
		}
		rb, ok := rv.(bool)
		if !ok {
			return nil, &TypeError{Op: n.op, Message: fmt.Sprintf("right operand is %T, want bool", rv)}
		}
		return rb, nil
	}

	lv, err := n.l.eval(env)
	if err != nil {
		return nil, err
	}
	rv, err := n.r.eval(env)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case "==":
		return valuesEqual(lv, rv), nil
	case "!=":
		return !valuesEqual(lv, rv), nil

	case "<", "<=", ">", ">=":
		lf, rf, err := bothNumeric(n.op, lv, rv)
		if err != nil {
			return nil, err
		}
		switch n.op {
		case "<":
			return lf < rf, nil
		case "<=":
			return lf <= rf, nil
		case ">":
			return lf > rf, nil
		default:
			return lf >= rf, nil
		}

	case "+":
		// Numeric addition when both sides are numbers, string
		// concatenation when either side is a string.
		if lf, err1 := toFloat64(lv); err1 == nil {
			if rf, err2 := toFloat64(rv); err2 == nil {
				return lf + rf, nil
			}
		}
		if _, lok := lv.(string); lok {
			return stringify(lv) + stringify(rv), nil
		}
		if _, rok := rv.(string); rok {
			return stringify(lv) + stringify(rv), nil
		}
		return nil, &TypeError{Op: "+", Message: fmt.Sprintf("cannot add %T and %T", lv, rv)}

	case "-", "*", "/", "%":
		lf, rf, err := bothNumeric(n.op, lv, rv)
		if err != nil {
			return nil, err
		}
		switch n.op {
		case "-":
			return lf - rf, nil
		case "*":
			return lf * rf, nil
		case "/":
			if rf == 0 {
				return nil, &TypeError{Op: "/", Message: "division by zero"}
			}
			return lf / rf, nil
		default:
			if rf == 0 {
				return nil, &TypeError{Op: "%", Message: "division by zero"}
			}
			return math.Mod(lf, rf), nil
		}
	}

	return nil, &TypeError{Op: n.op, Message: "unknown operator"}
}

// builtin describes a builtin function: fixed arity, pure.
type builtin struct {
	arity int
	fn    func(args []interface{}) (interface{}, error)
}

var builtins = map[string]builtin{
	// has reports whether a field path exists in the environment.
	"has": {arity: 1},

	// len returns the length of a string, list or map.
	"len": {arity: 1, fn: func(args []interface{}) (interface{}, error) {
		switch v := args[0].(type) {
		case string:
			return float64(len(v)), nil
		case []interface{}:
			return float64(len(v)), nil
		case map[string]interface{}:
			return float64(len(v)), nil
		default:
			return nil, &TypeError{Op: "len", Message: fmt.Sprintf("unsupported type %T", args[0])}
		}
	}},

	// contains reports whether the first string contains the second.
	"contains": {arity: 2, fn: func(args []interface{}) (interface{}, error) {
		s, ok1 := args[0].(string)
		sub, ok2 := args[1].(string)
		if !ok1 || !ok2 {
			return nil, &TypeError{Op: "contains", Message: "both arguments must be strings"}
		}
		return strings.Contains(s, sub), nil
	}},

	// lower returns the lowercase form of a string.
	"lower": {arity: 1, fn: func(args []interface{}) (interface{}, error) {
		s, ok := args[0].(string)
		if !ok {
			return nil, &TypeError{Op: "lower", Message: fmt.Sprintf("argument is %T, want string", args[0])}
		}
		return strings.ToLower(s), nil
	}},
}

func (n *callNode) eval(env Env) (interface{}, error) {
	// has is special: it inspects path existence instead of resolving the
	// argument, so a missing field is an answer, not an error.
	if n.name == "has" {
		p, ok := n.args[0].(*pathNode)
		if !ok {
			return nil, &TypeError{Op: "has", Message: "argument must be a field path"}
		}
		_, found := env.Resolve(p.parts)
		return found, nil
	}

	args := make([]interface{}, len(n.args))
	for i, a := range n.args {
		v, err := a.eval(env)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return builtins[n.name].fn(args)
}

// valuesEqual compares two values, trying numeric comparison first so that
// int and float64 representations of the same number compare equal.
func valuesEqual(a, b interface{}) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	af, aerr := toFloat64(a)
	bf, berr := toFloat64(b)
	if aerr == nil && berr == nil {
		return af == bf
	}
	return reflect.DeepEqual(a, b)
}

func bothNumeric(op string, a, b interface{}) (float64, float64, error) {
	af, err := toFloat64(a)
	if err != nil {
		return 0, 0, &TypeError{Op: op, Message: fmt.Sprintf("left operand: %v", err)}
	}
	bf, err := toFloat64(b)
	if err != nil {
		return 0, 0, &TypeError{Op: op, Message: fmt.Sprintf("right operand: %v", err)}
	}
	return af, bf, nil
}

// toFloat64 converts any numeric Go type to float64.
func toFloat64(v interface{}) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case float32:
		return float64(val), nil
	case int:
		return float64(val), nil
	case int8:
		return float64(val), nil
	case int16:
		return float64(val), nil
	case int32:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case uint:
		return float64(val), nil
	case uint8:
		return float64(val), nil
	case uint16:
		return float64(val), nil
	case uint32:
		return float64(val), nil
	case uint64:
		return float64(val), nil
	default:
		return 0, fmt.Errorf("cannot convert %T to number", v)
	}
}

// normalize folds integer values resolved from the environment into float64
// so that comparisons behave the same regardless of how the payload was
// decoded.
func normalize(v interface{}) interface{} {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32:
		f, _ := toFloat64(v)
		return f
	default:
		return v
	}
}

// stringify renders a value for string concatenation and templates.
func stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		// Render whole numbers without a trailing ".0" so ids and counts
		// interpolate cleanly.
		if val == math.Trunc(val) && math.Abs(val) < 1e15 {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", v)
	}
}

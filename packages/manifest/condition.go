package manifest

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"
	"strings"
)

// Condition is a parsed boolean expression evaluated against manifest values.
//
// Conditions use a subset of Go's expression syntax, so Go's parser is used to
// build the tree:
//
//	* Identifiers, looked up in the value set (unknown names evaluate to false)
//	* String, integer and boolean (true, false) literals
//	* Comparison operators: ==, !=, <, <=, >, >=
//	* Binary operators: && (and), || (or)
//	* Unary operator: ! (not)
//	* Grouping: (, )
type Condition struct {
	src  string
	root ast.Expr
}

// condValidator checks that a parsed Go expression only uses supported nodes.
// It implements the ast.Visitor interface.
type condValidator struct {
	err error
}

func (cv *condValidator) setErr(format string, args ...any) ast.Visitor {
	if cv.err == nil {
		cv.err = fmt.Errorf(format, args...)
	}
	return nil
}

func (cv *condValidator) Visit(n ast.Node) ast.Visitor {
	// ast.Walk calls Visit(nil) after visiting non-nil children.
	if n == nil {
		return nil
	}

	switch v := n.(type) {
	case *ast.BinaryExpr:
		switch v.Op {
		case token.LAND, token.LOR, token.EQL, token.NEQ, token.LSS, token.LEQ, token.GTR, token.GEQ:
		default:
			return cv.setErr("invalid binary operator %q", v.Op)
		}
	case *ast.ParenExpr:
	case *ast.UnaryExpr:
		if v.Op != token.NOT {
			return cv.setErr("invalid unary operator %q", v.Op)
		}
	case *ast.Ident:
	case *ast.BasicLit:
		if v.Kind != token.STRING && v.Kind != token.INT {
			return cv.setErr("unsupported literal %q", v.Value)
		}
	default:
		return cv.setErr("invalid node of type %T", v)
	}
	return cv
}

// ParseCondition parses and validates expression s.
// Anything after " #" is treated as a comment.
func ParseCondition(s string) (*Condition, error) {
	src := stripComment(s)
	if src == "" {
		return nil, fmt.Errorf("empty condition")
	}
	root, err := parser.ParseExpr(src)
	if err != nil {
		return nil, fmt.Errorf("parsing condition %q: %w", src, err)
	}

	v := condValidator{}
	ast.Walk(&v, root)
	if v.err != nil {
		return nil, fmt.Errorf("condition %q: %w", src, v.err)
	}
	return &Condition{src: src, root: root}, nil
}

func (c *Condition) String() string {
	return c.src
}

// Eval reports whether the condition holds for values.
func (c *Condition) Eval(values map[string]any) bool {
	return truthy(eval(c.root, values))
}

func stripComment(s string) string {
	if i := strings.Index(s, " #"); i >= 0 {
		s = s[:i]
	}
	if strings.HasPrefix(strings.TrimSpace(s), "#") {
		return ""
	}
	return strings.TrimSpace(s)
}

func eval(e ast.Expr, values map[string]any) any {
	switch v := e.(type) {
	case *ast.ParenExpr:
		return eval(v.X, values)
	case *ast.UnaryExpr:
		return !truthy(eval(v.X, values))
	case *ast.Ident:
		switch v.Name {
		case "true":
			return true
		case "false":
			return false
		}
		return values[v.Name]
	case *ast.BasicLit:
		switch v.Kind {
		case token.STRING:
			s, err := strconv.Unquote(v.Value)
			if err != nil {
				return ""
			}
			return s
		case token.INT:
			n, err := strconv.ParseInt(v.Value, 0, 64)
			if err != nil {
				return int64(0)
			}
			return n
		}
	case *ast.BinaryExpr:
		switch v.Op {
		case token.LAND:
			return truthy(eval(v.X, values)) && truthy(eval(v.Y, values))
		case token.LOR:
			return truthy(eval(v.X, values)) || truthy(eval(v.Y, values))
		default:
			return compare(v.Op, eval(v.X, values), eval(v.Y, values))
		}
	}
	return nil
}

func compare(op token.Token, x, y any) bool {
	if xn, ok := toInt(x); ok {
		if yn, ok := toInt(y); ok {
			switch op {
			case token.EQL:
				return xn == yn
			case token.NEQ:
				return xn != yn
			case token.LSS:
				return xn < yn
			case token.LEQ:
				return xn <= yn
			case token.GTR:
				return xn > yn
			case token.GEQ:
				return xn >= yn
			}
		}
	}

	xs, ys := toString(x), toString(y)
	switch op {
	case token.EQL:
		return xs == ys
	case token.NEQ:
		return xs != ys
	case token.LSS:
		return xs < ys
	case token.LEQ:
		return xs <= ys
	case token.GTR:
		return xs > ys
	case token.GEQ:
		return xs >= ys
	}
	return false
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), n == float64(int64(n))
	}
	return 0, false
}

func toString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	}
	return fmt.Sprintf("%v", v)
}

func truthy(v any) bool {
	switch b := v.(type) {
	case nil:
		return false
	case bool:
		return b
	case string:
		return b != ""
	}
	if n, ok := toInt(v); ok {
		return n != 0
	}
	return true
}

package sql

import (
	"fmt"

	"github.com/pingcap/tidb/pkg/parser"
	"github.com/pingcap/tidb/pkg/parser/ast"
	_ "github.com/pingcap/tidb/pkg/parser/test_driver" // registers the ValueExpr implementation
)

// ExpressionKind selects the rules applied to a fragment.
type ExpressionKind string

const (
	// CheckExpression is a boolean predicate over the table's columns.
	CheckExpression ExpressionKind = "CHECK"
	// DefaultExpression is a column default: literals and function calls only.
	DefaultExpression ExpressionKind = "DEFAULT"
)

// ExpressionError reports why a fragment was rejected.
type ExpressionError struct {
	Kind   ExpressionKind
	Reason string
}

func (e *ExpressionError) Error() string {
	return fmt.Sprintf("invalid %s expression: %s", e.Kind, e.Reason)
}

// ExpressionValidator parses CHECK and DEFAULT fragments with the TiDB (MySQL dialect) parser.
type ExpressionValidator struct{}

// NewExpressionValidator creates an ExpressionValidator.
func NewExpressionValidator() *ExpressionValidator {
	return &ExpressionValidator{}
}

// Validate normalizes the fragment and checks it is a single scalar expression of the
// requested kind. It returns the normalized text to store.
func (v *ExpressionValidator) Validate(kind ExpressionKind, fragment string) (string, error) {
	normalized, err := Normalize(fragment)
	if err != nil {
		return "", &ExpressionError{Kind: kind, Reason: err.Error()}
	}

	// parser.Parser is not safe for concurrent use; one per call keeps the validator shareable.
	p := parser.New()
	stmts, _, err := p.Parse("SELECT "+normalized, "", "")
	if err != nil {
		return "", &ExpressionError{Kind: kind, Reason: fmt.Sprintf("parse error: %v", err)}
	}
	if len(stmts) != 1 {
		return "", &ExpressionError{Kind: kind, Reason: ErrMultipleStatements.Error()}
	}

	sel, ok := stmts[0].(*ast.SelectStmt)
	if !ok || sel.From != nil || sel.Where != nil || sel.Fields == nil || len(sel.Fields.Fields) != 1 {
		return "", &ExpressionError{Kind: kind, Reason: "must be a single scalar expression"}
	}
	field := sel.Fields.Fields[0]
	if field.WildCard != nil || field.Expr == nil || field.AsName.L != "" {
		return "", &ExpressionError{Kind: kind, Reason: "must be a single scalar expression"}
	}

	visitor := &expressionVisitor{kind: kind}
	field.Expr.Accept(visitor)
	if visitor.err != nil {
		return "", visitor.err
	}

	return normalized, nil
}

type expressionVisitor struct {
	kind ExpressionKind
	err  error
}

func (v *expressionVisitor) Enter(in ast.Node) (ast.Node, bool) {
	if v.err != nil {
		return in, true
	}

	switch n := in.(type) {
	case *ast.SubqueryExpr, *ast.ExistsSubqueryExpr, *ast.TableName:
		v.err = &ExpressionError{Kind: v.kind, Reason: "subqueries are not allowed"}
	case *ast.VariableExpr:
		v.err = &ExpressionError{Kind: v.kind, Reason: "variables are not allowed"}
	case *ast.ColumnNameExpr:
		if v.kind == DefaultExpression {
			v.err = &ExpressionError{Kind: v.kind, Reason: fmt.Sprintf("column reference %q is not allowed", n.Name.Name.O)}
		}
	case ast.ValueExpr:
		if s, ok := n.GetValue().(string); ok {
			if res := CheckLiteralForInjection(s); res != nil {
				v.err = &ExpressionError{Kind: v.kind, Reason: fmt.Sprintf("literal rejected by injection screen (%s)", res.Fingerprint)}
			}
		}
	}
	return in, v.err != nil
}

func (v *expressionVisitor) Leave(in ast.Node) (ast.Node, bool) {
	return in, v.err == nil
}

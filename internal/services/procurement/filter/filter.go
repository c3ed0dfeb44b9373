// Package filter turns the `filter` query parameter of the order listing into
// a parameterized SQL condition.
//
// Filters use the AIP-160 syntax restricted to string equality on order
// columns:
//
//	port = "Singapore" AND NOT status = "cancelled"
//	vendor_user_id = "vendor-1" OR vendor_user_id = "vendor-2"
//
// Only `=` and `!=` are supported, combined with AND, OR and NOT. Values for
// `status` must name a coarse order status and are matched in lower case.
// The caller's buyer/vendor scope is applied separately and cannot be widened
// by a filter.
package filter

import (
	"fmt"
	"sort"
	"strings"

	"go.einride.tech/aip/filtering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"

	"github.com/onemarinex/portside/internal/services/procurement/domain"
)

// SQLCondition is a WHERE fragment with positional parameters.
type SQLCondition struct {
	Clause string
	Params []any
}

// Empty reports whether the condition restricts nothing.
func (c SQLCondition) Empty() bool {
	return strings.TrimSpace(c.Clause) == ""
}

// orderColumns maps filterable order fields to their columns.
var orderColumns = map[string]string{
	"status":         "status",
	"port":           "port",
	"currency":       "currency",
	"rfq_id":         "rfq_id",
	"buyer_user_id":  "buyer_user_id",
	"vendor_user_id": "vendor_user_id",
	"order_number":   "order_number",
}

var (
	logicalOps = map[string]string{"_&&_": "AND", "AND": "AND", "_||_": "OR", "OR": "OR"}
	compareOps = map[string]string{"_==_": "=", "=": "=", "_!=_": "!=", "!=": "!="}
)

// OrderFields lists the filterable order fields in sorted order.
func OrderFields() []string {
	fields := make([]string, 0, len(orderColumns))
	for field := range orderColumns {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

// OrderDeclarations returns the identifiers accepted in order filters.
func OrderDeclarations() (*filtering.Declarations, error) {
	opts := []filtering.DeclarationOption{filtering.DeclareStandardFunctions()}
	for _, field := range OrderFields() {
		opts = append(opts, filtering.DeclareIdent(field, filtering.TypeString))
	}
	return filtering.NewDeclarations(opts...)
}

// ParseOrderFilter parses an order filter. A blank filter yields an empty
// condition.
func ParseOrderFilter(raw string) (SQLCondition, error) {
	if strings.TrimSpace(raw) == "" {
		return SQLCondition{}, nil
	}
	decls, err := OrderDeclarations()
	if err != nil {
		return SQLCondition{}, fmt.Errorf("declare order filter fields: %w", err)
	}
	parsed, err := filtering.ParseFilterString(raw, decls)
	if err != nil {
		return SQLCondition{}, fmt.Errorf("invalid order filter: %v (filterable fields: %s)", err, strings.Join(OrderFields(), ", "))
	}
	return orderCondition(parsed.CheckedExpr.GetExpr())
}

func orderCondition(e *expr.Expr) (SQLCondition, error) {
	call := e.GetCallExpr()
	if call == nil {
		return SQLCondition{}, fmt.Errorf("order filter must compare a field to a quoted value, got %T", e.GetExprKind())
	}
	if op, ok := logicalOps[call.GetFunction()]; ok {
		return joinConditions(op, call.GetArgs())
	}
	if op, ok := compareOps[call.GetFunction()]; ok {
		return compareField(op, call.GetArgs())
	}
	if call.GetFunction() == "NOT" {
		if len(call.GetArgs()) != 1 {
			return SQLCondition{}, fmt.Errorf("NOT takes one operand")
		}
		inner, err := orderCondition(call.GetArgs()[0])
		if err != nil {
			return SQLCondition{}, err
		}
		return SQLCondition{Clause: "(NOT " + inner.Clause + ")", Params: inner.Params}, nil
	}
	return SQLCondition{}, fmt.Errorf("order filter does not support %q; use =, !=, AND, OR or NOT", call.GetFunction())
}

func joinConditions(op string, args []*expr.Expr) (SQLCondition, error) {
	if len(args) != 2 {
		return SQLCondition{}, fmt.Errorf("%s takes two operands", op)
	}
	clauses := make([]string, 0, 2)
	var params []any
	for _, arg := range args {
		cond, err := orderCondition(arg)
		if err != nil {
			return SQLCondition{}, err
		}
		clauses = append(clauses, cond.Clause)
		params = append(params, cond.Params...)
	}
	return SQLCondition{Clause: "(" + strings.Join(clauses, " "+op+" ") + ")", Params: params}, nil
}

func compareField(op string, args []*expr.Expr) (SQLCondition, error) {
	if len(args) != 2 {
		return SQLCondition{}, fmt.Errorf("%s takes a field and a value", op)
	}
	field := args[0].GetIdentExpr().GetName()
	column, ok := orderColumns[field]
	if !ok {
		return SQLCondition{}, fmt.Errorf("cannot filter orders by %q; filterable fields: %s", field, strings.Join(OrderFields(), ", "))
	}
	value, ok := args[1].GetConstExpr().GetConstantKind().(*expr.Constant_StringValue)
	if !ok {
		return SQLCondition{}, fmt.Errorf("%s must be compared to a quoted string", field)
	}

	param := value.StringValue
	if field == "status" {
		status, err := domain.ParseOrderStatus(param)
		if err != nil {
			return SQLCondition{}, fmt.Errorf("filter %s: %w", field, err)
		}
		param = string(status)
	}
	return SQLCondition{Clause: column + " " + op + " ?", Params: []any{param}}, nil
}

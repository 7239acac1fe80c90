package db

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ammar0144/docs4go/pkg/store"
)

// Document SQL Query Builder
// Builds SELECT and COUNT statements over the documents table, including
// equality filters on attributes stored inside the JSON body.
//
// SECURITY WARNING:
// The table and column names are NOT escaped. Attribute names are interpolated
// into JSON paths and must pass store.ValidateAttributeName first, which
// QueryFor enforces. Values are always parameterized.

// Operator represents SQL comparison operators
type Operator string

const (
	Equal     Operator = "="
	NotEqual  Operator = "!="
	IsNull    Operator = "IS NULL"
	IsNotNull Operator = "IS NOT NULL"

	// JSONEqual compares a JSON expression with a JSON-encoded value.
	JSONEqual Operator = "JSON ="
	// JSONIsNull matches a JSON expression that is missing or JSON null.
	JSONIsNull Operator = "JSON IS NULL"
)

// LogicalOperator for combining conditions
type LogicalOperator string

const (
	And LogicalOperator = "AND"
	Or  LogicalOperator = "OR"
)

// Condition represents a WHERE clause condition
type Condition struct {
	Field    string
	Operator Operator
	Value    interface{}
}

// ConditionGroup represents grouped conditions with logical operators
type ConditionGroup struct {
	Conditions []interface{} // Can be Condition or nested ConditionGroup
	Operator   LogicalOperator
}

// Builder helps build document queries
type Builder struct {
	table      string
	selectCols []string
	where      *ConditionGroup
	orderBy    []string
	limit      int
}

// NewBuilder creates a new query builder
// SECURITY: The table parameter must be a validated, trusted identifier.
func NewBuilder(table string) *Builder {
	return &Builder{
		table:      table,
		selectCols: []string{"*"},
		where:      &ConditionGroup{Operator: And},
	}
}

// AttributePath returns the SQL expression extracting attr from the JSON body.
func AttributePath(attr string) string {
	return fmt.Sprintf(`JSON_EXTRACT(body, '$."%s"')`, attr)
}

// QueryFor translates a store query into a builder over table.
func QueryFor(table string, q store.Query) (*Builder, error) {
	b := NewBuilder(table).Where("type", Equal, q.Type)
	if !q.WithDeleted {
		b.Where("deleted", Equal, false)
	}

	attrs := make([]string, 0, len(q.Where))
	for attr := range q.Where {
		if err := store.ValidateAttributeName(attr); err != nil {
			return nil, err
		}
		attrs = append(attrs, attr)
	}
	sort.Strings(attrs)

	for _, attr := range attrs {
		value := q.Where[attr]
		if value == nil {
			b.Where(AttributePath(attr), JSONIsNull, nil)
			continue
		}
		b.Where(AttributePath(attr), JSONEqual, store.NormalizeValue(value))
	}

	b.OrderBy("seq", q.Descending).Limit(q.Limit)
	return b, nil
}

// Select sets the columns to select
// SECURITY: Column names are NOT escaped. Only pass validated, trusted identifiers.
func (b *Builder) Select(cols ...string) *Builder {
	b.selectCols = cols
	return b
}

// Where adds a WHERE condition
// SECURITY: Field name is NOT escaped - must be a validated identifier.
func (b *Builder) Where(field string, operator Operator, value interface{}) *Builder {
	b.where.Where(field, operator, value)
	return b
}

// WhereGroup adds a grouped WHERE condition
func (b *Builder) WhereGroup(operator LogicalOperator, fn func(*ConditionGroup)) *Builder {
	b.where.Group(operator, fn)
	return b
}

// OrderBy adds an ORDER BY clause
func (b *Builder) OrderBy(field string, desc bool) *Builder {
	order := field
	if desc {
		order += " DESC"
	} else {
		order += " ASC"
	}
	b.orderBy = append(b.orderBy, order)
	return b
}

// Limit sets the LIMIT clause
// Negative values are normalized to 0
func (b *Builder) Limit(limit int) *Builder {
	if limit < 0 {
		limit = 0
	}
	b.limit = limit
	return b
}

// Where adds a condition to the group
func (g *ConditionGroup) Where(field string, operator Operator, value interface{}) *ConditionGroup {
	g.Conditions = append(g.Conditions, Condition{
		Field:    field,
		Operator: operator,
		Value:    value,
	})
	return g
}

// Group adds a nested condition group
func (g *ConditionGroup) Group(operator LogicalOperator, fn func(*ConditionGroup)) *ConditionGroup {
	group := &ConditionGroup{Operator: operator}
	fn(group)
	g.Conditions = append(g.Conditions, group)
	return g
}

// BuildSelect builds a SELECT query
func (b *Builder) BuildSelect() (string, []interface{}, error) {
	var query strings.Builder

	query.WriteString("SELECT ")
	query.WriteString(strings.Join(b.selectCols, ", "))
	query.WriteString(" FROM ")
	query.WriteString(b.table)

	args, err := b.writeWhere(&query)
	if err != nil {
		return "", nil, err
	}

	if len(b.orderBy) > 0 {
		query.WriteString(" ORDER BY ")
		query.WriteString(strings.Join(b.orderBy, ", "))
	}

	if b.limit > 0 {
		query.WriteString(fmt.Sprintf(" LIMIT %d", b.limit))
	}

	return query.String(), args, nil
}

// BuildCount builds a COUNT query over the same conditions, ignoring order and limit
func (b *Builder) BuildCount() (string, []interface{}, error) {
	var query strings.Builder
	query.WriteString("SELECT COUNT(*) FROM ")
	query.WriteString(b.table)

	args, err := b.writeWhere(&query)
	if err != nil {
		return "", nil, err
	}
	return query.String(), args, nil
}

func (b *Builder) writeWhere(query *strings.Builder) ([]interface{}, error) {
	if len(b.where.Conditions) == 0 {
		return nil, nil
	}
	whereSQL, args, err := b.buildConditionGroup(b.where)
	if err != nil {
		return nil, err
	}
	if whereSQL != "" {
		query.WriteString(" WHERE ")
		query.WriteString(whereSQL)
	}
	return args, nil
}

// buildConditionGroup builds SQL for a condition group with proper logical operators
func (b *Builder) buildConditionGroup(group *ConditionGroup) (string, []interface{}, error) {
	if len(group.Conditions) == 0 {
		return "", nil, nil
	}

	var conditions []string
	var args []interface{}

	for _, item := range group.Conditions {
		switch cond := item.(type) {
		case Condition:
			condSQL, condArgs, err := b.buildCondition(cond)
			if err != nil {
				return "", nil, err
			}
			conditions = append(conditions, condSQL)
			args = append(args, condArgs...)
		case *ConditionGroup:
			if len(cond.Conditions) > 0 {
				groupSQL, groupArgs, err := b.buildConditionGroup(cond)
				if err != nil {
					return "", nil, err
				}
				conditions = append(conditions, "("+groupSQL+")")
				args = append(args, groupArgs...)
			}
		}
	}

	if len(conditions) == 0 {
		return "", nil, nil
	}

	operator := " " + string(group.Operator) + " "
	return strings.Join(conditions, operator), args, nil
}

// buildCondition builds SQL for a single condition
func (b *Builder) buildCondition(cond Condition) (string, []interface{}, error) {
	switch cond.Operator {
	case IsNull, IsNotNull:
		return fmt.Sprintf("%s %s", cond.Field, cond.Operator), nil, nil
	case JSONIsNull:
		return fmt.Sprintf("(%s IS NULL OR JSON_TYPE(%s) = 'NULL')", cond.Field, cond.Field), nil, nil
	case JSONEqual:
		data, err := json.Marshal(cond.Value)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %s: %v", store.ErrInvalidAttribute, cond.Field, err)
		}
		return fmt.Sprintf("%s = CAST(? AS JSON)", cond.Field), []interface{}{string(data)}, nil
	default:
		return fmt.Sprintf("%s %s ?", cond.Field, cond.Operator), []interface{}{cond.Value}, nil
	}
}

// Package validation checks entity attributes against expr-lang rules.
package validation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"

	"github.com/ammar0144/docs4go/pkg/store"
)

// ErrInvalidRule is returned for rules that cannot be compiled or evaluated
var ErrInvalidRule = errors.New("invalid validation rule")

// Rule is a boolean expression evaluated with the entity's attributes in scope.
// The attribute under test is also bound to "value".
type Rule struct {
	Attribute  string
	Expression string
	Message    string

	env map[string]any
}

// FieldError is a single failed rule.
type FieldError struct {
	Attribute string
	Message   string
}

func (e FieldError) Error() string {
	return e.Attribute + " " + e.Message
}

// Errors collects every failed rule of one validation.
type Errors []FieldError

func (e Errors) Error() string {
	parts := make([]string, len(e))
	for i, fe := range e {
		parts[i] = fe.Error()
	}
	return strings.Join(parts, "; ")
}

// On returns the messages recorded for attr.
func (e Errors) On(attr string) []string {
	var out []string
	for _, fe := range e {
		if fe.Attribute == attr {
			out = append(out, fe.Message)
		}
	}
	return out
}

type compiledRule struct {
	Rule
	program *exprvm.Program
}

// RuleSet validates attributes against compiled rules.
type RuleSet struct {
	rules []compiledRule
}

// Compile builds a RuleSet, failing on the first rule that does not compile.
func Compile(rules ...Rule) (*RuleSet, error) {
	set := &RuleSet{rules: make([]compiledRule, 0, len(rules))}
	for _, r := range rules {
		if err := store.ValidateAttributeName(r.Attribute); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
		}
		if r.Expression == "" {
			return nil, fmt.Errorf("%w: %s: expression must not be empty", ErrInvalidRule, r.Attribute)
		}
		program, err := exprlang.Compile(r.Expression,
			exprlang.Env(map[string]any{}),
			exprlang.AllowUndefinedVariables(),
			exprlang.AsBool(),
		)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRule, r.Attribute, err)
		}
		if r.Message == "" {
			r.Message = "is invalid"
		}
		set.rules = append(set.rules, compiledRule{Rule: r, program: program})
	}
	return set, nil
}

// MustCompile is Compile that panics on error.
func MustCompile(rules ...Rule) *RuleSet {
	set, err := Compile(rules...)
	if err != nil {
		panic(err)
	}
	return set
}

// Validate runs every rule and returns Errors when any of them fails.
func (s *RuleSet) Validate(ctx context.Context, typ string, attrs map[string]any) error {
	var failed Errors
	for _, r := range s.rules {
		if err := ctx.Err(); err != nil {
			return err
		}
		env := make(map[string]any, len(attrs)+len(r.env)+1)
		for k, v := range attrs {
			env[k] = v
		}
		for k, v := range r.env {
			env[k] = v
		}
		env["value"] = attrs[r.Attribute]

		out, err := exprlang.Run(r.program, env)
		if err != nil {
			return fmt.Errorf("%w: %s.%s: %v", ErrInvalidRule, typ, r.Attribute, err)
		}
		if ok, _ := out.(bool); !ok {
			failed = append(failed, FieldError{Attribute: r.Attribute, Message: r.Message})
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return failed
}

// Required fails when attr is missing, null or the empty string.
func Required(attr string) Rule {
	return Rule{
		Attribute:  attr,
		Expression: `value != nil && value != ""`,
		Message:    "can't be blank",
	}
}

// Inclusion fails when attr is set to a value outside allowed.
func Inclusion(attr string, allowed ...any) Rule {
	return Rule{
		Attribute:  attr,
		Expression: `value == nil || value in allowed`,
		Message:    "is not included in the list",
		env:        map[string]any{"allowed": allowed},
	}
}

// Format fails when attr is set and does not match pattern.
func Format(attr, pattern string) Rule {
	return Rule{
		Attribute:  attr,
		Expression: `value == nil || string(value) matches pattern`,
		Message:    "is invalid",
		env:        map[string]any{"pattern": pattern},
	}
}

// Expr builds a rule from a custom expression.
func Expr(attr, expression, message string) Rule {
	return Rule{Attribute: attr, Expression: expression, Message: message}
}

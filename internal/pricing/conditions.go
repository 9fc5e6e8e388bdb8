package pricing

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/richxcame/agency-pricing/pkg/validation"
)

// ConditionEvaluator compiles and evaluates fixed-route conditions written in CEL.
// Compiled programs are cached by expression text.
type ConditionEvaluator struct {
	env      *cel.Env
	programs sync.Map // expression -> cel.Program
}

// NewConditionEvaluator declares the variables a condition may reference
func NewConditionEvaluator() (*ConditionEvaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("passengerCount", cel.IntType),
		cel.Variable("waitingHours", cel.DoubleType),
		cel.Variable("serviceType", cel.StringType),
		cel.Variable("sapCode", cel.StringType),
		cel.Variable("clientId", cel.StringType),
		cel.Variable("serviceDate", cel.StringType),
		cel.Variable("serviceTime", cel.StringType),
		cel.Variable("weekday", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create condition environment: %w", err)
	}
	return &ConditionEvaluator{env: env}, nil
}

// Compile checks that expr is a valid boolean expression
func (e *ConditionEvaluator) Compile(expr string) error {
	_, err := e.program(expr)
	return err
}

// Evaluate runs expr against a request. An empty expression always matches.
func (e *ConditionEvaluator) Evaluate(expr string, req RateRequest) (bool, error) {
	if strings.TrimSpace(expr) == "" {
		return true, nil
	}
	prg, err := e.program(expr)
	if err != nil {
		return false, err
	}

	out, _, err := prg.Eval(conditionVars(req))
	if err != nil {
		return false, fmt.Errorf("failed to evaluate condition %q: %w", expr, err)
	}
	matched, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("condition %q did not produce a bool", expr)
	}
	return matched, nil
}

func (e *ConditionEvaluator) program(expr string) (cel.Program, error) {
	if cached, ok := e.programs.Load(expr); ok {
		return cached.(cel.Program), nil
	}

	ast, iss := e.env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("invalid condition %q: %w", expr, iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("condition %q must evaluate to bool, got %s", expr, ast.OutputType())
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to build condition %q: %w", expr, err)
	}

	e.programs.Store(expr, prg)
	return prg, nil
}

func conditionVars(req RateRequest) map[string]interface{} {
	return map[string]interface{}{
		"passengerCount": int64(req.PassengerCount),
		"waitingHours":   req.WaitingHours,
		"serviceType":    strings.ToLower(strings.TrimSpace(req.ServiceType)),
		"sapCode":        strings.ToUpper(strings.TrimSpace(req.SAPCode)),
		"clientId":       req.ClientID,
		"serviceDate":    req.ServiceDate,
		"serviceTime":    req.ServiceTime,
		"weekday":        int64(serviceWeekday(req.ServiceDate)),
	}
}

// serviceWeekday is 0 for Sunday, or -1 when the date is missing or malformed
func serviceWeekday(date string) int {
	if date == "" {
		return -1
	}
	d, ok := validation.ParseDate(date)
	if !ok {
		return -1
	}
	return int(d.Weekday())
}

package rowstore

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// CELPredicateCompiler compiles and caches list() predicates expressed as
// CEL expressions over a row's fields, so repeated List calls with the
// same expression skip recompilation.
type CELPredicateCompiler struct {
	env   *cel.Env
	mu    sync.RWMutex
	cache map[string]cel.Program
}

// NewCELPredicateCompiler builds a compiler whose CEL environment exposes
// "dataset", "row_id", and "fields" (a dynamic map) to predicate expressions.
func NewCELPredicateCompiler() (*CELPredicateCompiler, error) {
	env, err := cel.NewEnv(
		cel.Variable("dataset", cel.StringType),
		cel.Variable("row_id", cel.StringType),
		cel.Variable("fields", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("rowstore: create CEL environment: %w", err)
	}
	return &CELPredicateCompiler{env: env, cache: make(map[string]cel.Program)}, nil
}

// Compile turns a CEL boolean expression into a Predicate usable with
// Store.List. The compiled program is cached by expression text.
func (c *CELPredicateCompiler) Compile(expr string) (Predicate, error) {
	prg, err := c.program(expr)
	if err != nil {
		return nil, err
	}
	return func(row Row) (bool, error) {
		out, _, err := prg.Eval(map[string]interface{}{
			"dataset": row.Dataset,
			"row_id":  row.RowID,
			"fields":  row.Fields,
		})
		if err != nil {
			return false, fmt.Errorf("rowstore: eval predicate %q: %w", expr, err)
		}
		val, ok := out.Value().(bool)
		if !ok {
			return false, fmt.Errorf("rowstore: predicate %q did not evaluate to bool", expr)
		}
		return val, nil
	}, nil
}

func (c *CELPredicateCompiler) program(expr string) (cel.Program, error) {
	c.mu.RLock()
	prg, hit := c.cache[expr]
	c.mu.RUnlock()
	if hit {
		return prg, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if prg, hit := c.cache[expr]; hit {
		return prg, nil
	}

	ast, issues := c.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("rowstore: compile predicate %q: %w", expr, issues.Err())
	}
	prg, err := c.env.Program(ast, cel.InterruptCheckFrequency(100), cel.CostLimit(10000))
	if err != nil {
		return nil, fmt.Errorf("rowstore: build program for %q: %w", expr, err)
	}
	c.cache[expr] = prg
	return prg, nil
}

// Package expressions evaluates configured JMESPath expressions against decoded JSON responses.
package expressions

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/jmespath/go-jmespath"
)

// Evaluator keeps compiled expressions keyed by their source text.
type Evaluator struct {
	compiled sync.Map
}

func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Compile parses expression on first use; later calls share the compiled form.
func (e *Evaluator) Compile(expression string) (*jmespath.JMESPath, error) {
	if cached, ok := e.compiled.Load(expression); ok {
		return cached.(*jmespath.JMESPath), nil
	}
	compiled, err := jmespath.Compile(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid expression %q: %w", expression, err)
	}
	actual, _ := e.compiled.LoadOrStore(expression, compiled)
	return actual.(*jmespath.JMESPath), nil
}

func (e *Evaluator) Search(expression string, data any) (any, error) {
	compiled, err := e.Compile(expression)
	if err != nil {
		return nil, err
	}
	result, err := compiled.Search(data)
	if err != nil {
		return nil, fmt.Errorf("expression %q: %w", expression, err)
	}
	return result, nil
}

// String returns "" for a missing value. Numbers keep their integer form, so a
// numeric case number reads "1234" and not "1234.000000".
func (e *Evaluator) String(expression string, data any) (string, error) {
	result, err := e.Search(expression, data)
	if err != nil {
		return "", err
	}
	switch v := result.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	}
	return "", fmt.Errorf("expression %q selects %T, want a scalar", expression, result)
}

// Int accepts JSON numbers and numeric strings. A missing value is 0.
func (e *Evaluator) Int(expression string, data any) (int, error) {
	result, err := e.Search(expression, data)
	if err != nil {
		return 0, err
	}
	switch v := result.(type) {
	case nil:
		return 0, nil
	case float64:
		return int(v), nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("expression %q selects %q, want an integer", expression, v)
		}
		return n, nil
	}
	return 0, fmt.Errorf("expression %q selects %T, want an integer", expression, result)
}

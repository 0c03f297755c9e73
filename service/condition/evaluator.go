// Package condition evaluates step conditions against an instance's data
// bag.  Evaluation is pure and total: missing fields or uncoercible values
// make a condition false, never an error, so branch selection always
// produces a result.
package condition

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cascata-io/cascata/model"
)

// Input carries everything a condition may be evaluated against.  Passing
// Now explicitly keeps the evaluator deterministic in tests.
type Input struct {
	Data      map[string]interface{}
	StartedAt time.Time
	Now       time.Time
}

// Evaluator evaluates condition lists.  It is stateless and safe for
// concurrent use.
type Evaluator struct{}

// New creates an evaluator.
func New() *Evaluator { return &Evaluator{} }

// Evaluate AND-combines the conditions, short-circuiting on the first
// false.  An empty list is true.
func (e *Evaluator) Evaluate(conditions []model.Condition, in Input) bool {
	for _, c := range conditions {
		if !e.evaluate(c, in) {
			return false
		}
	}
	return true
}

func (e *Evaluator) evaluate(c model.Condition, in Input) bool {
	switch c.Kind {
	case model.ConditionTime:
		elapsed := in.Now.Sub(in.StartedAt).Minutes()
		ref, ok := toFloat(c.Value)
		if !ok {
			return false
		}
		return compareFloat(elapsed, ref, c.Operator)
	case model.ConditionPredictedValue:
		raw, ok := lookup(in.Data, c.Field)
		if !ok {
			return false
		}
		value, ok := toFloat(raw)
		if !ok {
			return false
		}
		ref, ok := toFloat(c.Value)
		if !ok {
			return false
		}
		return compareFloat(value, ref, c.Operator)
	case model.ConditionExternalFlag:
		raw, ok := lookup(in.Data, c.Field)
		if !ok {
			return false
		}
		return compareAny(raw, c.Value, c.Operator)
	}
	return false
}

func lookup(data map[string]interface{}, field string) (interface{}, bool) {
	if field == "" || data == nil {
		return nil, false
	}
	v, ok := data[field]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func compareFloat(value, ref float64, op model.Operator) bool {
	switch op {
	case model.OpEq:
		return value == ref
	case model.OpGt:
		return value > ref
	case model.OpLt:
		return value < ref
	}
	return false
}

func compareAny(value, ref interface{}, op model.Operator) bool {
	switch op {
	case model.OpEq:
		if v, ok := toFloat(value); ok {
			if r, rok := toFloat(ref); rok {
				return v == r
			}
		}
		return toString(value) == toString(ref)
	case model.OpGt, model.OpLt:
		v, ok := toFloat(value)
		if !ok {
			return false
		}
		r, ok := toFloat(ref)
		if !ok {
			return false
		}
		return compareFloat(v, r, op)
	case model.OpContains:
		switch actual := value.(type) {
		case []interface{}:
			want := toString(ref)
			for _, item := range actual {
				if toString(item) == want {
					return true
				}
			}
			return false
		case []string:
			want := toString(ref)
			for _, item := range actual {
				if item == want {
					return true
				}
			}
			return false
		default:
			return strings.Contains(toString(value), toString(ref))
		}
	}
	return false
}

func toFloat(v interface{}) (float64, bool) {
	switch actual := v.(type) {
	case float64:
		return actual, true
	case float32:
		return float64(actual), true
	case int:
		return float64(actual), true
	case int32:
		return float64(actual), true
	case int64:
		return float64(actual), true
	case uint:
		return float64(actual), true
	case string:
		f, err := strconv.ParseFloat(actual, 64)
		return f, err == nil
	}
	return 0, false
}

func toString(v interface{}) string {
	switch actual := v.(type) {
	case string:
		return actual
	case bool:
		return strconv.FormatBool(actual)
	case float64:
		return strconv.FormatFloat(actual, 'f', -1, 64)
	case int:
		return strconv.Itoa(actual)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}

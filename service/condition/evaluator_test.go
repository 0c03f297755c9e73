package condition

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cascata-io/cascata/model"
)

func TestEvaluate(t *testing.T) {
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	testCases := []struct {
		name       string
		conditions []model.Condition
		data       map[string]interface{}
		elapsed    time.Duration
		expected   bool
	}{
		{
			name:     "empty list is true",
			expected: true,
		},
		{
			name: "predicted value above threshold",
			conditions: []model.Condition{
				{Kind: model.ConditionPredictedValue, Operator: model.OpGt, Field: "probability", Value: 0.15},
			},
			data:     map[string]interface{}{"probability": 0.20},
			expected: true,
		},
		{
			name: "predicted value below threshold",
			conditions: []model.Condition{
				{Kind: model.ConditionPredictedValue, Operator: model.OpGt, Field: "probability", Value: 0.15},
			},
			data:     map[string]interface{}{"probability": 0.10},
			expected: false,
		},
		{
			name: "missing field is false not an error",
			conditions: []model.Condition{
				{Kind: model.ConditionPredictedValue, Operator: model.OpGt, Field: "probability", Value: 0.15},
			},
			data:     map[string]interface{}{},
			expected: false,
		},
		{
			name: "uncoercible value is false",
			conditions: []model.Condition{
				{Kind: model.ConditionPredictedValue, Operator: model.OpGt, Field: "probability", Value: 0.15},
			},
			data:     map[string]interface{}{"probability": map[string]interface{}{}},
			expected: false,
		},
		{
			name: "numeric string coerces",
			conditions: []model.Condition{
				{Kind: model.ConditionPredictedValue, Operator: model.OpLt, Field: "score", Value: "10"},
			},
			data:     map[string]interface{}{"score": "7.5"},
			expected: true,
		},
		{
			name: "time elapsed greater than",
			conditions: []model.Condition{
				{Kind: model.ConditionTime, Operator: model.OpGt, Value: 30},
			},
			elapsed:  45 * time.Minute,
			expected: true,
		},
		{
			name: "time elapsed not reached",
			conditions: []model.Condition{
				{Kind: model.ConditionTime, Operator: model.OpGt, Value: 30},
			},
			elapsed:  10 * time.Minute,
			expected: false,
		},
		{
			name: "external flag equality",
			conditions: []model.Condition{
				{Kind: model.ConditionExternalFlag, Operator: model.OpEq, Field: "urgent", Value: true},
			},
			data:     map[string]interface{}{"urgent": true},
			expected: true,
		},
		{
			name: "external flag contains substring",
			conditions: []model.Condition{
				{Kind: model.ConditionExternalFlag, Operator: model.OpContains, Field: "tags", Value: "night"},
			},
			data:     map[string]interface{}{"tags": "night-shift,icu"},
			expected: true,
		},
		{
			name: "external flag contains slice member",
			conditions: []model.Condition{
				{Kind: model.ConditionExternalFlag, Operator: model.OpContains, Field: "units", Value: "icu"},
			},
			data:     map[string]interface{}{"units": []interface{}{"er", "icu"}},
			expected: true,
		},
		{
			name: "and combination short circuits on first false",
			conditions: []model.Condition{
				{Kind: model.ConditionExternalFlag, Operator: model.OpEq, Field: "missing", Value: "x"},
				{Kind: model.ConditionPredictedValue, Operator: model.OpGt, Field: "probability", Value: 0.1},
			},
			data:     map[string]interface{}{"probability": 0.9},
			expected: false,
		},
		{
			name: "unknown kind is false",
			conditions: []model.Condition{
				{Kind: "lunar", Operator: model.OpEq, Field: "x", Value: "y"},
			},
			data:     map[string]interface{}{"x": "y"},
			expected: false,
		},
	}

	evaluator := New()
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			in := Input{
				Data:      tc.data,
				StartedAt: started,
				Now:       started.Add(tc.elapsed),
			}
			assert.Equal(t, tc.expected, evaluator.Evaluate(tc.conditions, in))
		})
	}
}

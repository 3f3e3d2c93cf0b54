package tools_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kwhite/agentgraph/pkg/tools"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name       string
		expression string
		want       string
	}{
		{"addition", "2+2", "4"},
		{"subtraction", "10 - 3", "7"},
		{"multiplication", "6*7", "42"},
		{"division", "7/2", "3.5"},
		{"precedence", "2+3*4", "14"},
		{"parentheses", "(2+3)*4", "20"},
		{"nested parens", "((1+2)*(3+4))", "21"},
		{"unary minus", "-5+3", "-2"},
		{"double negative", "--5", "5"},
		{"decimals", "0.1+0.2", "0.30000000000000004"},
		{"whitespace", "  1 +  1 ", "2"},
		{"division by zero", "1/0", "Error: division by zero"},
		{"letters", "2+x", "Error: Invalid characters in expression"},
		{"power operator rejected", "2^3", "Error: Invalid characters in expression"},
		{"trailing operator", "2+", "Error: Invalid expression syntax"},
		{"unbalanced paren", "(2+3", "Error: Invalid expression syntax"},
		{"empty", "", "Error: Invalid expression syntax"},
		{"garbage", "()", "Error: Invalid expression syntax"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tools.Evaluate(tt.expression))
		})
	}
}

func TestEvaluate_ExpressionTooLong(t *testing.T) {
	long := "1"
	for range 60 {
		long += "+1"
	}
	assert.Equal(t, "Error: Expression too long", tools.Evaluate(long))
}

func TestCalculator_Execute(t *testing.T) {
	calc := tools.NewCalculator()

	result, err := calc.Execute(context.Background(), map[string]any{"expression": "2+2"})
	require.NoError(t, err)
	assert.Equal(t, "4", result)
}

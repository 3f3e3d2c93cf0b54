package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// maxExpressionLength caps calculator input size.
const maxExpressionLength = 100

var calculatorSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"expression": {
			"type": "string",
			"description": "Mathematical expression to evaluate"
		}
	},
	"required": ["expression"]
}`)

// Calculator evaluates basic arithmetic expressions.
//
// Only +, -, *, / with parentheses, decimals, and unary minus are accepted.
// Input problems are reported in the result text rather than as errors, so
// the model can see them and correct itself.
type Calculator struct{}

// NewCalculator creates the calculator tool.
func NewCalculator() *Calculator { return &Calculator{} }

// Name implements Tool.
func (*Calculator) Name() string { return "calculator" }

// Description implements Tool.
func (*Calculator) Description() string { return "Evaluate a mathematical expression safely" }

// Schema implements Tool.
func (*Calculator) Schema() json.RawMessage { return calculatorSchema }

// Execute implements Tool.
func (*Calculator) Execute(_ context.Context, args map[string]any) (string, error) {
	expression, _ := args["expression"].(string)
	return Evaluate(expression), nil
}

// Evaluate computes the value of an arithmetic expression.
// Returns the result formatted without trailing zeros, or an
// "Error: ..." message describing the problem.
func Evaluate(expression string) string {
	if len(expression) > maxExpressionLength {
		return "Error: Expression too long"
	}
	for _, r := range expression {
		if !strings.ContainsRune("0123456789+-*/.() ", r) {
			return "Error: Invalid characters in expression"
		}
	}

	p := &exprParser{input: expression}
	result, err := p.parse()
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	return strconv.FormatFloat(result, 'f', -1, 64)
}

// exprParser is a recursive descent parser for arithmetic expressions.
//
// Grammar:
//
//	expr   = term (('+' | '-') term)*
//	term   = factor (('*' | '/') factor)*
//	factor = '-' factor | '(' expr ')' | number
type exprParser struct {
	input string
	pos   int
}

func (p *exprParser) parse() (float64, error) {
	v, err := p.expr()
	if err != nil {
		return 0, err
	}
	p.skipSpaces()
	if p.pos < len(p.input) {
		return 0, fmt.Errorf("Invalid expression syntax")
	}
	return v, nil
}

func (p *exprParser) expr() (float64, error) {
	v, err := p.term()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpaces()
		switch p.peek() {
		case '+':
			p.pos++
			rhs, err := p.term()
			if err != nil {
				return 0, err
			}
			v += rhs
		case '-':
			p.pos++
			rhs, err := p.term()
			if err != nil {
				return 0, err
			}
			v -= rhs
		default:
			return v, nil
		}
	}
}

func (p *exprParser) term() (float64, error) {
	v, err := p.factor()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpaces()
		switch p.peek() {
		case '*':
			p.pos++
			rhs, err := p.factor()
			if err != nil {
				return 0, err
			}
			v *= rhs
		case '/':
			p.pos++
			rhs, err := p.factor()
			if err != nil {
				return 0, err
			}
			if rhs == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			v /= rhs
		default:
			return v, nil
		}
	}
}

func (p *exprParser) factor() (float64, error) {
	p.skipSpaces()
	switch p.peek() {
	case '-':
		p.pos++
		v, err := p.factor()
		if err != nil {
			return 0, err
		}
		return -v, nil
	case '(':
		p.pos++
		v, err := p.expr()
		if err != nil {
			return 0, err
		}
		p.skipSpaces()
		if p.peek() != ')' {
			return 0, fmt.Errorf("Invalid expression syntax")
		}
		p.pos++
		return v, nil
	default:
		return p.number()
	}
}

func (p *exprParser) number() (float64, error) {
	p.skipSpaces()
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if (c < '0' || c > '9') && c != '.' {
			break
		}
		p.pos++
	}
	if start == p.pos {
		return 0, fmt.Errorf("Invalid expression syntax")
	}
	v, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("Invalid expression syntax")
	}
	return v, nil
}

func (p *exprParser) peek() byte {
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

func (p *exprParser) skipSpaces() {
	for p.pos < len(p.input) && p.input[p.pos] == ' ' {
		p.pos++
	}
}

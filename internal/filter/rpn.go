package filter

import (
	"strings"

	photoerrors "github.com/aman-oss/photoidx/internal/errors"
)

// Compile converts a query string into RPN via shunting-yard (spec §4.7).
// Mismatched parentheses are a compile-time error; the caller falls back
// to pure bare-text search of the raw query on failure.
func Compile(query string) ([]token, error) {
	tokens := tokenize(query)

	var output []token
	var ops []token

	for _, t := range tokens {
		switch {
		case !t.quoted && t.text == "(":
			ops = append(ops, t)
		case !t.quoted && t.text == ")":
			found := false
			for len(ops) > 0 {
				top := ops[len(ops)-1]
				ops = ops[:len(ops)-1]
				if top.text == "(" {
					found = true
					break
				}
				output = append(output, top)
			}
			if !found {
				return nil, photoerrors.FilterParseError("mismatched parentheses", nil)
			}
		case !t.quoted && isOperator(t.text):
			for len(ops) > 0 {
				top := ops[len(ops)-1]
				if top.text == "(" {
					break
				}
				if !isOperator(top.text) {
					break
				}
				// NOT is right-associative (unary); AND/OR left-associative.
				if strings.EqualFold(t.text, "NOT") {
					if precedence(top.text) <= precedence(t.text) {
						break
					}
				} else if precedence(top.text) < precedence(t.text) {
					break
				}
				output = append(output, top)
				ops = ops[:len(ops)-1]
			}
			ops = append(ops, t)
		default:
			output = append(output, t)
		}
	}

	for len(ops) > 0 {
		top := ops[len(ops)-1]
		ops = ops[:len(ops)-1]
		if top.text == "(" || top.text == ")" {
			return nil, photoerrors.FilterParseError("mismatched parentheses", nil)
		}
		output = append(output, top)
	}

	return output, nil
}

// Evaluate walks an RPN token list for one photo path, pushing term truth
// values and applying operators. AND/OR on an empty stack treat the
// missing operand as false, matching the original evaluator's behavior.
func Evaluate(rpn []token, path string, ctx *EvalContext) bool {
	if len(rpn) == 0 {
		return true
	}

	var stack []bool
	pop := func() bool {
		if len(stack) == 0 {
			return false
		}
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v
	}

	for _, t := range rpn {
		if !t.quoted && isOperator(t.text) {
			switch strings.ToUpper(t.text) {
			case "NOT":
				stack = append(stack, !pop())
			case "AND":
				b, a := pop(), pop()
				stack = append(stack, a && b)
			case "OR":
				b, a := pop(), pop()
				stack = append(stack, a || b)
			}
			continue
		}
		stack = append(stack, evaluateTerm(t, path, ctx))
	}

	if len(stack) == 0 {
		return true
	}
	return stack[len(stack)-1]
}

func evaluateTerm(t token, path string, ctx *EvalContext) bool {
	defer func() { recover() }() // any per-row evaluation panic drops the row via the defer-recovered false below

	if t.quoted {
		return strings.Contains(strings.ToLower(ctx.DocumentText(path)), strings.ToLower(t.text))
	}

	field, value, hasField := strings.Cut(t.text, ":")
	if !hasField {
		return bareTextMatch(t.text, path, ctx)
	}
	value = strings.Trim(value, `"'`)
	return evaluateField(strings.ToLower(field), value, path, ctx)
}

func bareTextMatch(term, path string, ctx *EvalContext) bool {
	if ctx.DocIndex != nil {
		if matches, err := ctx.DocIndex.Matches(term); err == nil {
			if matches[path] {
				return true
			}
		}
	}
	return strings.Contains(strings.ToLower(ctx.DocumentText(path)), strings.ToLower(term))
}

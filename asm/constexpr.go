// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package asm

import (
	"fmt"
	"regexp"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// constExprPattern matches a $( expr ) compile-time constant
// expression. Mirrors the teacher's parenEval regex
// (`cpu/assembler.go`). The match ends at the first `)`, so expr
// cannot itself contain parentheses.
var constExprPattern = regexp.MustCompile(`\$\(([^)]*)\)`)

// preprocessConstExprs replaces every $( expr ) occurrence in src with
// the decimal value expr evaluates to, before the result reaches the
// lexer. Unlike the teacher's assembler, there is no equate table to
// seed the evaluation environment with: this ISA has no macro/equate
// directive of its own, only labels and literals, which the operand
// grammar already resolves on its own.
func preprocessConstExprs(path, src string) (string, error) {
	var evalErr error
	out := constExprPattern.ReplaceAllStringFunc(src, func(match string) string {
		if evalErr != nil {
			return match
		}
		expr := match[2 : len(match)-1]
		value, err := evalConstExpr(expr)
		if err != nil {
			evalErr = Diagnostic{
				Path: path, Line: 1, Column: 1, Kind: KindSyntax,
				Message: f("constant expression %q: %v", expr, err),
			}
			return match
		}
		return fmt.Sprintf("%d", value)
	})
	if evalErr != nil {
		return "", evalErr
	}
	return out, nil
}

// evalConstExpr runs expr as a Starlark expression and returns its
// integer result.
func evalConstExpr(expr string) (int64, error) {
	thread := &starlark.Thread{}
	opts := syntax.FileOptions{}
	prog := "rc = " + expr + "\n"

	dict, err := starlark.ExecFileOptions(&opts, thread, "constexpr", prog, nil)
	if err != nil {
		return 0, err
	}

	rc, ok := dict["rc"]
	if !ok {
		return 0, fmt.Errorf("expression produced no value")
	}
	n, ok := rc.(starlark.Int)
	if !ok {
		return 0, fmt.Errorf("expression is not an integer")
	}
	v, ok := n.Int64()
	if !ok {
		return 0, fmt.Errorf("expression out of int64 range")
	}
	return v, nil
}

// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package asm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lexAll(t *testing.T, src string) []Token {
	t.Helper()
	lx := NewLexer("test.asm", src)
	var toks []Token
	for {
		tok, err := lx.Next()
		require.NoError(t, err)
		toks = append(toks, tok)
		if tok.Kind == TokEOF {
			return toks
		}
	}
}

func TestLexerBasicTokens(t *testing.T) {
	assert := assert.New(t)

	toks := lexAll(t, `li $1, 42`)
	require.GreaterOrEqual(t, len(toks), 4)
	assert.Equal(TokOpcode, toks[0].Kind)
	assert.Equal("li", toks[0].Text)
	assert.Equal(TokRegister, toks[1].Kind)
	assert.Equal("$1", toks[1].Text)
	assert.Equal(TokComma, toks[2].Kind)
	assert.Equal(TokInteger, toks[3].Kind)
	assert.Equal("42", toks[3].Text)
}

func TestLexerComment(t *testing.T) {
	assert := assert.New(t)

	toks := lexAll(t, "halt ; this is a comment\nebreak")
	var kinds []TokenKind
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
	}
	assert.Contains(kinds, TokOpcode)
	assert.Contains(kinds, TokNewline)
}

func TestLexerString(t *testing.T) {
	assert := assert.New(t)

	toks := lexAll(t, `"hello\nworld"`)
	require.GreaterOrEqual(t, len(toks), 1)
	assert.Equal(TokString, toks[0].Kind)
}

func TestLexerUnterminatedString(t *testing.T) {
	lx := NewLexer("test.asm", `"unterminated`)
	_, err := lx.Next()
	require.Error(t, err)
	_, ok := err.(ErrLex)
	assert.True(t, ok)
}

func TestLexerAtom(t *testing.T) {
	assert := assert.New(t)

	toks := lexAll(t, `#some_atom`)
	require.GreaterOrEqual(t, len(toks), 1)
	assert.Equal(TokAtom, toks[0].Kind)
	assert.Equal("#some_atom", toks[0].Text)
}

func TestLexerIndirectRegisterMarker(t *testing.T) {
	assert := assert.New(t)

	toks := lexAll(t, `*$3`)
	require.GreaterOrEqual(t, len(toks), 2)
	assert.Equal(TokStar, toks[0].Kind)
	assert.Equal(TokRegister, toks[1].Kind)
	assert.Equal("$3", toks[1].Text)
}

func TestLexerParameterRegister(t *testing.T) {
	assert := assert.New(t)

	toks := lexAll(t, `@2`)
	require.GreaterOrEqual(t, len(toks), 1)
	assert.Equal(TokRegister, toks[0].Kind)
	assert.Equal("@2", toks[0].Text)
}

func TestLexerFunctionDirectiveIsIdentifier(t *testing.T) {
	assert := assert.New(t)

	toks := lexAll(t, `.function main [[entry_point]]`)
	require.GreaterOrEqual(t, len(toks), 1)
	assert.Equal(TokIdentifier, toks[0].Kind)
	assert.Equal(".function", toks[0].Text)
}

func TestLexerLineColumnTracking(t *testing.T) {
	assert := assert.New(t)

	toks := lexAll(t, "halt\nebreak")
	require.GreaterOrEqual(t, len(toks), 3)
	assert.Equal(1, toks[0].Line)
	// toks[1] is the newline; toks[2] should be "ebreak" on line 2.
	var found bool
	for _, tok := range toks {
		if tok.Text == "ebreak" {
			assert.Equal(2, tok.Line)
			found = true
		}
	}
	assert.True(found)
}

// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package asm

import (
	"strconv"
	"strings"

	"github.com/ezrec/rvm/isa"
)

// pseudoInstructions are mnemonics handled entirely at assembly time
// and never reach the codec directly.
var pseudoInstructions = map[string]bool{
	"li": true,
}

func lookupMnemonicOrPseudo(text string) (isa.Opcode, bool) {
	if pseudoInstructions[text] {
		return 0, true
	}
	return isa.LookupMnemonic(text)
}

// Program is the parsed AST of one source file.
type Program struct {
	Functions []*FunctionDef
	Labels    []*LabelDef
}

// FunctionDef is a top-level function definition.
type FunctionDef struct {
	Name       string
	Attrs      []string
	Instrs     []*Instruction
	Line       int
	Column     int
	EndLine    int
}

// LabelDef is a top-level value label (string or atom constant).
type LabelDef struct {
	Name   string
	Type   string // "string" or "atom"
	Value  string // decoded literal text (unescaped, pre-repetition)
	Repeat int    // repetition count, minimum 1
	Attrs  []string
	Line   int
	Column int
}

// Operand is one instruction argument node.
type Operand interface {
	isOperand()
}

// RegOperand is a decoded register-access operand ("$3", "*@1", "void").
type RegOperand struct {
	Access isa.RegisterAccess
}

// ImmOperand is an integer literal operand.
type ImmOperand struct {
	Value  uint64
	Signed bool
}

// LabelRefOperand refers to a function or value label by name; resolved
// during the cooking stage.
type LabelRefOperand struct {
	Name string
}

func (RegOperand) isOperand()      {}
func (ImmOperand) isOperand()      {}
func (LabelRefOperand) isOperand() {}

// Instruction is one parsed instruction line.
type Instruction struct {
	Mnemonic string
	Operands []Operand
	Line     int
	Column   int
}

// parser turns a token stream into a Program.
type parser struct {
	path string
	lx   *Lexer
	tok  Token
}

// Parse tokenizes and parses src into a Program.
func Parse(path, src string) (*Program, error) {
	if strings.TrimSpace(src) == "" {
		return nil, Diagnostic{Path: path, Line: 1, Column: 1, Kind: KindIO, Message: ErrEmptySource}
	}

	src, err := preprocessConstExprs(path, src)
	if err != nil {
		return nil, err
	}

	p := &parser{path: path, lx: NewLexer(path, src)}
	if err := p.next(); err != nil {
		return nil, err
	}

	prog := &Program{}
	for p.tok.Kind != TokEOF {
		if p.tok.Kind == TokNewline {
			if err := p.next(); err != nil {
				return nil, err
			}
			continue
		}
		if p.tok.Kind == TokIdentifier && p.tok.Text == ".function" {
			fn, err := p.parseFunction()
			if err != nil {
				return nil, err
			}
			prog.Functions = append(prog.Functions, fn)
			continue
		}
		if p.tok.Kind == TokIdentifier && p.tok.Text == ".label" {
			lbl, err := p.parseLabel()
			if err != nil {
				return nil, err
			}
			prog.Labels = append(prog.Labels, lbl)
			continue
		}
		return nil, syntaxErr(p.path, p.tok, ErrUnexpectedToken)
	}

	return prog, nil
}

func (p *parser) next() error {
	tok, err := p.lx.Next()
	if err != nil {
		if lexErr, ok := err.(ErrLex); ok {
			return lexErr.Diagnostic()
		}
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) skipNewlines() error {
	for p.tok.Kind == TokNewline {
		if err := p.next(); err != nil {
			return err
		}
	}
	return nil
}

func (p *parser) parseAttrs() ([]string, error) {
	if p.tok.Kind != TokLBracket {
		return nil, nil
	}
	if err := p.next(); err != nil {
		return nil, err
	}
	var attrs []string
	for p.tok.Kind != TokRBracket {
		if p.tok.Kind != TokIdentifier {
			return nil, syntaxErr(p.path, p.tok, "expected attribute name")
		}
		attrs = append(attrs, p.tok.Text)
		if err := p.next(); err != nil {
			return nil, err
		}
		if p.tok.Kind == TokComma {
			if err := p.next(); err != nil {
				return nil, err
			}
		}
	}
	return attrs, p.next()
}

func (p *parser) parseFunction() (*FunctionDef, error) {
	fn := &FunctionDef{Line: p.tok.Line, Column: p.tok.Column}
	if err := p.next(); err != nil { // consume ".function"
		return nil, err
	}
	if p.tok.Kind != TokIdentifier {
		return nil, syntaxErr(p.path, p.tok, "expected function name")
	}
	fn.Name = p.tok.Text
	if err := p.next(); err != nil {
		return nil, err
	}
	attrs, err := p.parseAttrs()
	if err != nil {
		return nil, err
	}
	fn.Attrs = attrs

	if err := p.skipNewlines(); err != nil {
		return nil, err
	}

	for {
		if p.tok.Kind == TokEOF {
			return nil, semanticErr(p.path, fn.Line, fn.Column, ErrUnterminatedFunc)
		}
		if p.tok.Kind == TokIdentifier && p.tok.Text == ".endfunction" {
			fn.EndLine = p.tok.Line
			if err := p.next(); err != nil {
				return nil, err
			}
			break
		}
		if p.tok.Kind == TokNewline {
			if err := p.next(); err != nil {
				return nil, err
			}
			continue
		}
		instr, err := p.parseInstruction()
		if err != nil {
			return nil, err
		}
		fn.Instrs = append(fn.Instrs, instr)
	}

	return fn, nil
}

func (p *parser) parseInstruction() (*Instruction, error) {
	if p.tok.Kind != TokIdentifier && p.tok.Kind != TokOpcode {
		return nil, syntaxErr(p.path, p.tok, ErrUnknownMnemonic)
	}
	instr := &Instruction{Mnemonic: strings.ToLower(p.tok.Text), Line: p.tok.Line, Column: p.tok.Column}
	if _, ok := lookupMnemonicOrPseudo(instr.Mnemonic); !ok {
		return nil, syntaxErr(p.path, p.tok, ErrUnknownMnemonic)
	}
	if err := p.next(); err != nil {
		return nil, err
	}

	for p.tok.Kind != TokNewline && p.tok.Kind != TokEOF {
		op, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		instr.Operands = append(instr.Operands, op)
		if p.tok.Kind == TokComma {
			if err := p.next(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}

	return instr, nil
}

func (p *parser) parseOperand() (Operand, error) {
	switch p.tok.Kind {
	case TokRegister:
		access, err := parseRegisterText(p.tok.Text)
		if err != nil {
			return nil, syntaxErr(p.path, p.tok, err.Error())
		}
		if err := p.next(); err != nil {
			return nil, err
		}
		return RegOperand{Access: access}, nil
	case TokStar:
		// *$N / *@N indirect register
		if err := p.next(); err != nil {
			return nil, err
		}
		if p.tok.Kind != TokRegister {
			return nil, syntaxErr(p.path, p.tok, ErrInvalidOperand)
		}
		access, err := parseRegisterText(p.tok.Text)
		if err != nil {
			return nil, syntaxErr(p.path, p.tok, err.Error())
		}
		access.Indirect = true
		if err := p.next(); err != nil {
			return nil, err
		}
		return RegOperand{Access: access}, nil
	case TokInteger:
		text := p.tok.Text
		signed := strings.HasPrefix(text, "-")
		var value uint64
		var err error
		if signed {
			var s int64
			s, err = strconv.ParseInt(text, 0, 64)
			value = uint64(s)
		} else {
			value, err = strconv.ParseUint(text, 0, 64)
		}
		if err != nil {
			return nil, syntaxErr(p.path, p.tok, "malformed numeric literal")
		}
		if err := p.next(); err != nil {
			return nil, err
		}
		return ImmOperand{Value: value, Signed: signed}, nil
	case TokIdentifier:
		if p.tok.Text == "void" {
			if err := p.next(); err != nil {
				return nil, err
			}
			return RegOperand{Access: isa.Void}, nil
		}
		name := p.tok.Text
		if err := p.next(); err != nil {
			return nil, err
		}
		return LabelRefOperand{Name: name}, nil
	default:
		return nil, syntaxErr(p.path, p.tok, ErrMissingOperand)
	}
}

func parseRegisterText(text string) (isa.RegisterAccess, error) {
	set := isa.SetLocal
	if text[0] == '@' {
		set = isa.SetParameters
	}
	idx, err := strconv.ParseUint(text[1:], 10, 8)
	if err != nil {
		return isa.RegisterAccess{}, err
	}
	return isa.RegisterAccess{Set: set, Index: uint8(idx)}, nil
}

func (p *parser) parseLabel() (*LabelDef, error) {
	lbl := &LabelDef{Line: p.tok.Line, Column: p.tok.Column, Repeat: 1}
	if err := p.next(); err != nil { // consume ".label"
		return nil, err
	}
	if p.tok.Kind != TokIdentifier {
		return nil, syntaxErr(p.path, p.tok, "expected label name")
	}
	lbl.Name = p.tok.Text
	if err := p.next(); err != nil {
		return nil, err
	}
	if (p.tok.Kind != TokIdentifier && p.tok.Kind != TokOpcode) || (p.tok.Text != "string" && p.tok.Text != "atom") {
		return nil, syntaxErr(p.path, p.tok, "expected 'string' or 'atom'")
	}
	lbl.Type = p.tok.Text
	if err := p.next(); err != nil {
		return nil, err
	}
	attrs, err := p.parseAttrs()
	if err != nil {
		return nil, err
	}
	lbl.Attrs = attrs

	// The literal value may sit on the line after the type keyword.
	if err := p.skipNewlines(); err != nil {
		return nil, err
	}

	switch lbl.Type {
	case "string":
		if p.tok.Kind != TokString {
			return nil, syntaxErr(p.path, p.tok, "expected string literal")
		}
		raw, err := unescapeString(p.tok.Text)
		if err != nil {
			return nil, syntaxErr(p.path, p.tok, err.Error())
		}
		lbl.Value = raw
		if err := p.next(); err != nil {
			return nil, err
		}
		if p.tok.Kind == TokStar {
			if err := p.next(); err != nil {
				return nil, err
			}
			if p.tok.Kind != TokInteger {
				return nil, syntaxErr(p.path, p.tok, "expected repetition count")
			}
			n, err := strconv.Atoi(p.tok.Text)
			if err != nil || n < 1 {
				return nil, syntaxErr(p.path, p.tok, "invalid repetition count")
			}
			lbl.Repeat = n
			if err := p.next(); err != nil {
				return nil, err
			}
		}
	case "atom":
		if p.tok.Kind != TokAtom && p.tok.Kind != TokIdentifier {
			return nil, syntaxErr(p.path, p.tok, "expected atom literal")
		}
		lbl.Value = strings.TrimPrefix(p.tok.Text, "#")
		if err := p.next(); err != nil {
			return nil, err
		}
	}

	return lbl, p.skipNewlines()
}

// unescapeString processes backslash escapes in a quoted string literal
// (including the surrounding quotes).
func unescapeString(quoted string) (string, error) {
	if len(quoted) < 2 || quoted[0] != '"' || quoted[len(quoted)-1] != '"' {
		return "", errUnterminatedString
	}
	body := quoted[1 : len(quoted)-1]
	var sb strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' {
			sb.WriteByte(c)
			continue
		}
		i++
		if i >= len(body) {
			return "", errUnterminatedString
		}
		switch body[i] {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case '0':
			sb.WriteByte(0)
		case '\\':
			sb.WriteByte('\\')
		case '"':
			sb.WriteByte('"')
		default:
			sb.WriteByte(body[i])
		}
	}
	return sb.String(), nil
}

var errUnterminatedString = strconvError("unterminated string literal")

type strconvError string

func (e strconvError) Error() string { return string(e) }

package compiler

import (
	"strconv"

	"github.com/pkg/errors"
)

// opcodeFor maps an RPN arithmetic operator to its instruction mnemonic
// (spec §3 opcode table).
var opcodeFor = map[string]string{
	"+": "ADD",
	"-": "SUB",
	"*": "MTP",
	"/": "DIV",
	"^": "EXP",
	"%": "MOD",
	"\\": "FDV",
}

// isPlainVariableOperand reports whether s is a bare, not-yet-lowered
// variable operand (as opposed to an immediate "#N" or an already-allocated
// register).
func isPlainVariableOperand(s string) bool {
	if len(s) == 0 {
		return false
	}
	if s[0] == '#' {
		return false
	}
	return !isRegister(s)
}

// compileVariableLoad emits a fresh LDR of name's scalar address into a
// newly allocated register (spec §4.4).
func compileVariableLoad(name string, st *SymbolTable, regs *RegisterFile) ([]Instr, string, error) {
	addr, ok := st.ResolveScalar(name)
	if !ok {
		return nil, "", errors.Wrapf(ErrUndefinedSymbol, "variable %q", name)
	}
	reg, err := regs.Allocate()
	if err != nil {
		return nil, "", err
	}
	return []Instr{{Op: "LDR", Args: []string{reg, strconv.Itoa(addr)}}}, reg, nil
}

// lowerOperand turns a bare variable operand into a register, leaving
// immediates and already-allocated registers untouched.
func lowerOperand(operand string, st *SymbolTable, regs *RegisterFile) ([]Instr, string, error) {
	if !isPlainVariableOperand(operand) {
		return nil, operand, nil
	}
	return compileVariableLoad(operand, st, regs)
}

// CompileRPN consumes an RPN token sequence of length > 1 and emits the
// instructions that compute it, returning the register holding the result
// (spec §4.4). The caller is expected to have already special-cased
// single-token expressions via CompileArgument.
func CompileRPN(rpn []Token, st *SymbolTable, regs *RegisterFile) ([]Instr, string, error) {
	var out []Instr
	var stack []string

	for _, tok := range rpn {
		switch tok.Kind {
		case TokNumber:
			stack = append(stack, "#"+tok.Lexeme)
			continue
		case TokString, TokVariable:
			stack = append(stack, tok.Lexeme)
			continue
		}

		// Operator: second pop is the left operand, first pop the right
		// (spec §4.4).
		if len(stack) < 2 {
			return nil, "", errors.Wrap(ErrSyntax, "malformed expression")
		}
		operand2 := stack[len(stack)-1]
		operand1 := stack[len(stack)-2]
		stack = stack[:len(stack)-2]

		op := tok.Lexeme
		var dest string
		if op == "~" {
			instrs, reg, err := compileArrayIndex(operand1, operand2, st, regs)
			if err != nil {
				return nil, "", err
			}
			out = append(out, instrs...)
			dest = reg
			regs.Free(operand2)
		} else {
			loadInstrs, lowered1, err := lowerOperand(operand1, st, regs)
			if err != nil {
				return nil, "", err
			}
			out = append(out, loadInstrs...)

			loadInstrs, lowered2, err := lowerOperand(operand2, st, regs)
			if err != nil {
				return nil, "", err
			}
			out = append(out, loadInstrs...)

			mnemonic, ok := opcodeFor[op]
			if !ok {
				return nil, "", errors.Wrapf(ErrSyntax, "unknown operator %q", op)
			}
			d, err := regs.Allocate()
			if err != nil {
				return nil, "", err
			}
			out = append(out, Instr{Op: mnemonic, Args: []string{d, lowered1, lowered2}})
			dest = d
			regs.Free(lowered1)
			regs.Free(lowered2)
		}
		stack = append(stack, dest)
	}

	if len(stack) != 1 {
		return nil, "", errors.Wrap(ErrSyntax, "malformed expression")
	}
	return out, stack[0], nil
}

// compileArrayIndex implements the "~" operator: arrayName is the (never
// lowered) array identifier, index is either an immediate, an
// already-allocated register, or a bare variable name (spec §4.4).
func compileArrayIndex(arrayName, index string, st *SymbolTable, regs *RegisterFile) ([]Instr, string, error) {
	desc, ok := st.ResolveArray(arrayName)
	if !ok {
		return nil, "", errors.Wrapf(ErrUndefinedSymbol, "array %q", arrayName)
	}

	dest, err := regs.Allocate()
	if err != nil {
		return nil, "", err
	}

	if len(index) > 0 && index[0] == '#' {
		n, convErr := strconv.Atoi(index[1:])
		if convErr != nil {
			return nil, "", errors.Wrapf(ErrSyntax, "non-integer array index %q", index)
		}
		addr := desc.Base + n
		return []Instr{
			{Op: "MOV", Args: []string{dest, "#" + strconv.Itoa(addr)}},
			{Op: "LDR", Args: []string{dest, dest}},
		}, dest, nil
	}

	var out []Instr
	idxOperand := index
	if isPlainVariableOperand(index) {
		loadInstrs, reg, err := compileVariableLoad(index, st, regs)
		if err != nil {
			return nil, "", err
		}
		out = append(out, loadInstrs...)
		idxOperand = reg
	}

	addrReg, err := regs.Allocate()
	if err != nil {
		return nil, "", err
	}
	out = append(out, Instr{Op: "ADD", Args: []string{addrReg, "#" + strconv.Itoa(desc.Base), idxOperand}})
	out = append(out, Instr{Op: "LDR", Args: []string{dest, addrReg}})
	regs.Free(idxOperand)
	regs.Free(addrReg)
	return out, dest, nil
}

// CompileArgument compiles an arbitrary expression, handling the trivial
// single-operand case inline rather than invoking CompileRPN (spec §4.4:
// "A single-operand expression is trivially its operand").
func CompileArgument(expr string, st *SymbolTable, regs *RegisterFile) ([]Instr, string, error) {
	rpn, err := ConvertExpression(expr)
	if err != nil {
		return nil, "", err
	}
	if len(rpn) == 1 {
		tok := rpn[0]
		if tok.Kind == TokNumber {
			return nil, "#" + tok.Lexeme, nil
		}
		return compileVariableLoad(tok.Lexeme, st, regs)
	}
	return CompileRPN(rpn, st, regs)
}

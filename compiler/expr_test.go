package compiler

import (
	"strconv"
	"testing"
)

func TestCompileArgumentSingleImmediate(t *testing.T) {
	st := NewSymbolTable()
	regs := NewRegisterFile()
	instrs, operand, err := CompileArgument("42", st, regs)
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, len(instrs) == 0, "expected no instructions for a bare immediate")
	assert(t, operand == "#42", "expected #42, got %s", operand)
	assert(t, regs.AllFree(), "expected no registers consumed")
}

func TestCompileArgumentSingleVariable(t *testing.T) {
	st := NewSymbolTable()
	regs := NewRegisterFile()
	_, _ = st.DeclareScalar("x")
	instrs, operand, err := CompileArgument("x", st, regs)
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, len(instrs) == 1 && instrs[0].Op == "LDR", "expected a single LDR, got %v", instrs)
	assert(t, operand == "r0", "expected r0, got %s", operand)
}

func TestCompileArgumentUndefinedVariable(t *testing.T) {
	st := NewSymbolTable()
	regs := NewRegisterFile()
	_, _, err := CompileArgument("ghost", st, regs)
	assert(t, err != nil, "expected undefined-symbol error")
}

func TestCompileRPNArithmeticFreesIntermediateRegisters(t *testing.T) {
	st := NewSymbolTable()
	regs := NewRegisterFile()
	_, _ = st.DeclareScalar("a")
	_, _ = st.DeclareScalar("b")

	rpn, err := ConvertExpression("a+b*2")
	assert(t, err == nil, "unexpected error: %v", err)

	instrs, dest, err := CompileRPN(rpn, st, regs)
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, dest != "", "expected a destination register")

	var sawAdd, sawMtp bool
	for _, in := range instrs {
		if in.Op == "ADD" {
			sawAdd = true
		}
		if in.Op == "MTP" {
			sawMtp = true
		}
	}
	assert(t, sawAdd, "expected an ADD instruction")
	assert(t, sawMtp, "expected a MTP instruction for *")

	regs.Free(dest)
	assert(t, regs.AllFree(), "expected every intermediate register freed, dest freed last")
}

func TestCompileArrayIndexImmediate(t *testing.T) {
	st := NewSymbolTable()
	regs := NewRegisterFile()
	desc, err := st.DeclareArray("arr", 10)
	assert(t, err == nil, "unexpected error: %v", err)

	instrs, dest, err := compileArrayIndex("arr", "#3", st, regs)
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, len(instrs) == 2, "expected MOV+LDR, got %v", instrs)
	assert(t, instrs[0].Args[1] == "#"+strconv.Itoa(desc.Base+3), "expected immediate index folded into address")
	regs.Free(dest)
}

func TestCompileArrayIndexVariable(t *testing.T) {
	st := NewSymbolTable()
	regs := NewRegisterFile()
	_, err := st.DeclareArray("arr", 10)
	assert(t, err == nil, "unexpected error: %v", err)
	_, _ = st.DeclareScalar("i")

	instrs, dest, err := compileArrayIndex("arr", "i", st, regs)
	assert(t, err == nil, "unexpected error: %v", err)

	var sawAdd, sawLdr bool
	for _, in := range instrs {
		if in.Op == "ADD" {
			sawAdd = true
		}
		if in.Op == "LDR" {
			sawLdr = true
		}
	}
	assert(t, sawAdd && sawLdr, "expected ADD (base+index) then LDR")
	regs.Free(dest)
	assert(t, regs.AllFree(), "expected all registers freed")
}

func TestCompileArrayIndexUndefinedArray(t *testing.T) {
	st := NewSymbolTable()
	regs := NewRegisterFile()
	_, _, err := compileArrayIndex("ghost", "#0", st, regs)
	assert(t, err != nil, "expected undefined-symbol error")
}

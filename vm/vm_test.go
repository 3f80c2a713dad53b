package vm

import (
	"fmt"
	"strings"
	"testing"

	"pcompile/compiler"
)

func assert(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(fmt.Sprintf("%v %s", cond, format), args...)
	}
}

func mustRun(t *testing.T, lines ...string) *VM {
	t.Helper()
	program, err := ParseProgram(lines)
	assert(t, err == nil, "unexpected parse error: %v", err)
	vm := NewVirtualMachine(program)
	vm.RunProgram()
	return vm
}

func TestMovLoadsImmediate(t *testing.T) {
	vm := mustRun(t, "MOV r0 #5", "HALT")
	assert(t, vm.Err() == errProgramFinished, "expected clean finish, got %v", vm.Err())
	assert(t, vm.registers[0] == IntValue(5), "expected r0=5, got %v", vm.registers[0])
}

func TestStrThenLdrRoundTrip(t *testing.T) {
	vm := mustRun(t, "MOV r0 #42", "STR r0 40", "LDR r1 40", "HALT")
	assert(t, vm.registers[1] == IntValue(42), "expected r1=42, got %v", vm.registers[1])
}

func TestIndirectLoadThroughRegister(t *testing.T) {
	vm := mustRun(t,
		"MOV r0 #7",
		"STR r0 50",
		"MOV r1 #50",
		"LDR r2 r1",
		"HALT")
	assert(t, vm.registers[2] == IntValue(7), "expected indirect load to read memory[50], got %v", vm.registers[2])
}

func TestArithmeticIntPromotesToFloat(t *testing.T) {
	vm := mustRun(t, "MOV r0 #3", "MOV r1 #2.5", "ADD r2 r0 r1", "HALT")
	assert(t, vm.registers[2].Float, "expected float promotion")
	assert(t, vm.registers[2].F == 5.5, "expected 5.5, got %v", vm.registers[2].F)
}

func TestDivAlwaysFloat(t *testing.T) {
	vm := mustRun(t, "MOV r0 #7", "MOV r1 #2", "DIV r2 r0 r1", "HALT")
	assert(t, vm.registers[2].Float, "expected DIV to always produce a float")
	assert(t, vm.registers[2].F == 3.5, "expected 3.5, got %v", vm.registers[2].F)
}

func TestFdvFloorsTowardNegativeInfinity(t *testing.T) {
	vm := mustRun(t, "MOV r0 #-7", "MOV r1 #2", "FDV r2 r0 r1", "HALT")
	assert(t, !vm.registers[2].Float, "expected FDV to produce an int")
	assert(t, vm.registers[2].I == -4, "expected floor(-7/2)=-4, got %d", vm.registers[2].I)
}

func TestModSignFollowsDivisor(t *testing.T) {
	vm := mustRun(t, "MOV r0 #-7", "MOV r1 #2", "MOD r2 r0 r1", "HALT")
	assert(t, vm.registers[2].I == 1, "expected -7 mod 2 = 1 (floored), got %d", vm.registers[2].I)
}

func TestDivisionByZero(t *testing.T) {
	vm := mustRun(t, "MOV r0 #1", "MOV r1 #0", "DIV r2 r0 r1", "HALT")
	assert(t, vm.Err() == errDivisionByZero, "expected division-by-zero error, got %v", vm.Err())
}

func TestCmpAndBranch(t *testing.T) {
	vm := mustRun(t,
		"MOV r0 #1",
		"CMP r0 #1",
		"BEQ 5",
		"MOV r1 #99",
		"HALT",
		"MOV r1 #1",
		"HALT")
	assert(t, vm.registers[1] == IntValue(1), "expected BEQ taken, got r1=%v", vm.registers[1])
}

func TestBranchNotTakenFallsThrough(t *testing.T) {
	vm := mustRun(t,
		"MOV r0 #1",
		"CMP r0 #2",
		"BEQ 5",
		"MOV r1 #99",
		"HALT",
		"MOV r1 #1",
		"HALT")
	assert(t, vm.registers[1] == IntValue(99), "expected fallthrough, got r1=%v", vm.registers[1])
}

func TestSegfaultOnOutOfRangeAddress(t *testing.T) {
	vm := mustRun(t, "MOV r0 #1", "STR r0 999", "HALT")
	assert(t, vm.Err() == errSegmentationFault, "expected segfault, got %v", vm.Err())
}

func TestHaltTerminatesCleanly(t *testing.T) {
	vm := mustRun(t, "HALT")
	assert(t, vm.Err() == errProgramFinished, "expected clean finish, got %v", vm.Err())
}

func TestParseProgramRejectsEmpty(t *testing.T) {
	_, err := ParseProgram([]string{"", "   "})
	assert(t, err != nil, "expected an error parsing an empty program")
}

// compileAndCheckSource compiles source with the real front end and returns
// a VM ready to run the result, the same compile-then-run round trip the
// teacher's own compileAndCheckSource exercised against its stack machine.
func compileAndCheckSource(t *testing.T, source string) *VM {
	t.Helper()
	res, err := compiler.CompileSource(source)
	assert(t, err == nil, "failed to compile: %v", err)
	program, err := ParseProgram(strings.Split(compiler.Render(res.Instrs), "\n"))
	assert(t, err == nil, "failed to parse compiled program: %v", err)
	return NewVirtualMachine(program)
}

func runAndEnsureSpecificShutdown(t *testing.T, vm *VM, errcode error) {
	t.Helper()
	vm.RunProgram()
	assert(t, vm.errcode == errcode, "got unexpected error code after running VM: %v", vm.errcode)
}

var (
	compiledFibonacci = "fib=array(5):\n" +
		"fib[0]=0\n" +
		"fib[1]=1\n" +
		"for(i=2,i<5,i++):\n" +
		"    fib[i]=fib[i-1]+fib[i-2]\n"

	compiledDivByZero = "x=1\ny=0\nz=x/y\n"
)

// TestCompileAndRunEndToEnd exercises the full compiler->vm pipeline, the
// way compileAndCheckSource/runAndEnsureSpecificShutdown did for the
// teacher's stack machine: a regression in statement.go's back-patching or
// expr.go's RPN compilation that still emits syntactically valid but wrong
// instructions would surface here even though no single hand-written
// instruction-text program in this file would catch it.
func TestCompileAndRunEndToEnd(t *testing.T) {
	fib := compileAndCheckSource(t, compiledFibonacci)
	runAndEnsureSpecificShutdown(t, fib, errProgramFinished)

	want := []Value{IntValue(0), IntValue(1), IntValue(1), IntValue(2), IntValue(3)}
	for i, w := range want {
		got := fib.memory[compiler.ArrayBase+i]
		assert(t, got == w, "fib[%d]: expected %v, got %v", i, w, got)
	}

	divz := compileAndCheckSource(t, compiledDivByZero)
	runAndEnsureSpecificShutdown(t, divz, errDivisionByZero)
}

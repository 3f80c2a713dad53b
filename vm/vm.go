package vm

import (
	"bufio"
	"io"
	"os"

	"github.com/pkg/errors"
)

/*
	Register-plus-flat-memory architecture (spec §3):

		- 8 general-purpose registers, r0 through r7, untyped bit cells that
		  hold either an int64 or a float64 tagged Value
		- a single flat 256-cell memory; addresses [32,191] hold scalars,
		  [192,255] hold array backing storage, each array additionally
		  reserving one scalar cell for its length
		- no stack, no call instructions, no I/O beyond PRT writing to stdout
		- a single implicit comparison flag set by CMP and consumed by the
		  four conditional branches

	Opcodes:

		MOV  rX, imm|reg        rX <- value
		LDR  rX, addr|reg       rX <- memory[addr]     (reg operand: indirect through its held address)
		STR  rX, addr|reg       memory[addr] <- rX
		ADD SUB MTP DIV EXP MOD FDV   rD, opA, opB      rD <- opA <op> opB
		CMP  opA, opB           sets the comparison flag from opA versus opB
		BAL  target             unconditional jump
		BEQ BNE BGT BLT target  jump if the comparison flag matches
		PRT  imm|reg            writes a value to stdout
		HALT                    stops the program
*/

var (
	errProgramFinished   = errors.New("program finished")
	errSegmentationFault = errors.New("memory address out of range")
	errDivisionByZero    = errors.New("division by zero")
	errUnknownOpcode     = errors.New("unknown opcode")
	errMalformedOperand  = errors.New("malformed instruction operand")
)

// debugSymbols carries the original source line for each compiled
// instruction, used only by RunProgramDebugMode's diagnostics.
type debugSymbols struct {
	source map[int]string
}

// cmpFlags is the four-way result CMP leaves behind for the conditional
// branches to read (spec §3 "status register").
type cmpFlags struct {
	eq, ne, gt, lt bool
}

// VM is one runnable instance of a compiled program.
type VM struct {
	registers [NumRegisters]Value
	memory    [MemorySize]Value
	flags     cmpFlags
	pc        int
	program   []ParsedInstr

	stdout *bufio.Writer

	// errcode is nil while running; set to errProgramFinished on a clean
	// HALT or to a specific error on a runtime fault.
	errcode error

	debugSym *debugSymbols
}

// NewVirtualMachine returns a VM ready to run program from instruction 0.
func NewVirtualMachine(program []ParsedInstr) *VM {
	return &VM{
		program: program,
		stdout:  bufio.NewWriter(os.Stdout),
	}
}

// NewVirtualMachineWithSource attaches source-line debug symbols, which
// RunProgramDebugMode prints beside the offending instruction on a fault.
func NewVirtualMachineWithSource(program []ParsedInstr, source map[int]string) *VM {
	vm := NewVirtualMachine(program)
	vm.debugSym = &debugSymbols{source: source}
	return vm
}

// NewVirtualMachineWithWriter returns a VM whose PRT output goes to w instead
// of stdout, for callers (tests, embedders) that need to observe it directly
// rather than through the process's standard output.
func NewVirtualMachineWithWriter(program []ParsedInstr, w io.Writer) *VM {
	vm := NewVirtualMachine(program)
	vm.stdout = bufio.NewWriter(w)
	return vm
}

// Err reports the VM's terminal condition after it stops running. It is
// errProgramFinished on a normal HALT, or a more specific fault otherwise.
func (vm *VM) Err() error {
	return vm.errcode
}

// Faulted reports whether the VM stopped on something other than a clean
// HALT, for callers (like the CLI) that need to pick an exit code without
// reaching into the package's unexported sentinel errors.
func (vm *VM) Faulted() bool {
	return vm.errcode != nil && vm.errcode != errProgramFinished
}

// Registers returns a snapshot of the general-purpose register bank, mostly
// useful to tests and the debug-mode state printer.
func (vm *VM) Registers() [NumRegisters]Value {
	return vm.registers
}

// Memory returns a snapshot of the flat memory.
func (vm *VM) Memory() [MemorySize]Value {
	return vm.memory
}

// PC returns the current program counter.
func (vm *VM) PC() int {
	return vm.pc
}

func (vm *VM) checkAddr(addr int) error {
	if addr < 0 || addr >= MemorySize {
		return errSegmentationFault
	}
	return nil
}

// resolveValue reads an already-decoded Operand's runtime value: an
// immediate as-is, or the current contents of the register it names.
func (vm *VM) resolveValue(op Operand) (Value, error) {
	switch op.Kind {
	case OperandImmediate:
		return op.Value, nil
	case OperandRegister:
		if op.Reg < 0 || op.Reg >= NumRegisters {
			return Value{}, errSegmentationFault
		}
		return vm.registers[op.Reg], nil
	default:
		return Value{}, errors.Wrap(errMalformedOperand, "expected an immediate or register operand")
	}
}

// resolveAddress reads an already-decoded Operand as a memory address: a
// bare literal as-is, or the integer value currently held in the register it
// names (indirect addressing, used by the array compiler's computed
// addresses).
func (vm *VM) resolveAddress(op Operand) (int, error) {
	switch op.Kind {
	case OperandLiteral:
		return op.Literal, nil
	case OperandRegister:
		if op.Reg < 0 || op.Reg >= NumRegisters {
			return 0, errSegmentationFault
		}
		return int(vm.registers[op.Reg].AsInt()), nil
	default:
		return 0, errors.Wrap(errMalformedOperand, "expected an address or register operand")
	}
}

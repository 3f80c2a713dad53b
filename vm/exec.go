package vm

import (
	"fmt"

	"github.com/pkg/errors"
)

// numericOp applies one of the ADD/SUB/MTP/EXP arithmetic opcodes to two
// decoded values, promoting to float64 if either operand is a float (spec
// §5 numeric typing discipline).
func numericOp(op string, a, b Value) (Value, error) {
	if a.Float || b.Float {
		af, bf := a.AsFloat(), b.AsFloat()
		switch op {
		case "ADD":
			return FloatValue(af + bf), nil
		case "SUB":
			return FloatValue(af - bf), nil
		case "MTP":
			return FloatValue(af * bf), nil
		case "EXP":
			return FloatValue(powFloat(af, bf)), nil
		}
	}
	ai, bi := a.I, b.I
	switch op {
	case "ADD":
		return IntValue(ai + bi), nil
	case "SUB":
		return IntValue(ai - bi), nil
	case "MTP":
		return IntValue(ai * bi), nil
	case "EXP":
		return IntValue(powInt(ai, bi)), nil
	}
	return Value{}, errors.Wrapf(errUnknownOpcode, "%q", op)
}

func powFloat(base, exp float64) float64 {
	if exp == 0 {
		return 1
	}
	neg := exp < 0
	if neg {
		exp = -exp
	}
	result := 1.0
	for i := 0; i < int(exp); i++ {
		result *= base
	}
	if neg {
		return 1 / result
	}
	return result
}

func powInt(base, exp int64) int64 {
	if exp <= 0 {
		return 1
	}
	result := int64(1)
	for i := int64(0); i < exp; i++ {
		result *= base
	}
	return result
}

// floorDiv and floorMod implement floored (toward negative infinity)
// integer division and modulo, matching FDV/MOD's resolved typing: the
// result's sign always follows the divisor (SPEC_FULL.md §5).
func floorDiv(a, b int64) int64 {
	q := a / b
	r := a % b
	if r != 0 && (r < 0) != (b < 0) {
		q--
	}
	return q
}

func floorMod(a, b int64) int64 {
	r := a % b
	if r != 0 && (r < 0) != (b < 0) {
		r += b
	}
	return r
}

// cmpValues compares two values, promoting to float if either is a float,
// and returns the four-way flag set CMP leaves behind.
func cmpValues(a, b Value) cmpFlags {
	if a.Float || b.Float {
		af, bf := a.AsFloat(), b.AsFloat()
		return cmpFlags{eq: af == bf, ne: af != bf, gt: af > bf, lt: af < bf}
	}
	return cmpFlags{eq: a.I == b.I, ne: a.I != b.I, gt: a.I > b.I, lt: a.I < b.I}
}

// Step decodes and executes exactly one instruction, advancing pc (or
// jumping, for branches). It sets vm.errcode and returns false when the
// program should stop, whether cleanly (HALT) or on a fault.
func (vm *VM) Step() bool {
	if vm.pc < 0 || vm.pc >= len(vm.program) {
		vm.errcode = errSegmentationFault
		return false
	}
	in := vm.program[vm.pc]

	switch in.Op {
	case "HALT":
		vm.errcode = errProgramFinished
		return false

	case "MOV":
		dst, err := DecodeOperand(in.Args[0])
		if err != nil || dst.Kind != OperandRegister {
			vm.errcode = errMalformedOperand
			return false
		}
		src, err := DecodeOperand(in.Args[1])
		if err != nil {
			vm.errcode = err
			return false
		}
		val, err := vm.resolveValue(src)
		if err != nil {
			vm.errcode = err
			return false
		}
		vm.registers[dst.Reg] = val
		vm.pc++

	case "LDR":
		dst, err := DecodeOperand(in.Args[0])
		if err != nil || dst.Kind != OperandRegister {
			vm.errcode = errMalformedOperand
			return false
		}
		addrOp, err := DecodeOperand(in.Args[1])
		if err != nil {
			vm.errcode = err
			return false
		}
		addr, err := vm.resolveAddress(addrOp)
		if err != nil {
			vm.errcode = err
			return false
		}
		if err := vm.checkAddr(addr); err != nil {
			vm.errcode = err
			return false
		}
		vm.registers[dst.Reg] = vm.memory[addr]
		vm.pc++

	case "STR":
		src, err := DecodeOperand(in.Args[0])
		if err != nil || src.Kind != OperandRegister {
			vm.errcode = errMalformedOperand
			return false
		}
		addrOp, err := DecodeOperand(in.Args[1])
		if err != nil {
			vm.errcode = err
			return false
		}
		addr, err := vm.resolveAddress(addrOp)
		if err != nil {
			vm.errcode = err
			return false
		}
		if err := vm.checkAddr(addr); err != nil {
			vm.errcode = err
			return false
		}
		vm.memory[addr] = vm.registers[src.Reg]
		vm.pc++

	case "ADD", "SUB", "MTP", "EXP":
		if err := vm.execArithmetic(in); err != nil {
			vm.errcode = err
			return false
		}
		vm.pc++

	case "DIV":
		if err := vm.execDiv(in); err != nil {
			vm.errcode = err
			return false
		}
		vm.pc++

	case "FDV", "MOD":
		if err := vm.execFloorOp(in); err != nil {
			vm.errcode = err
			return false
		}
		vm.pc++

	case "CMP":
		aOp, err := DecodeOperand(in.Args[0])
		if err != nil {
			vm.errcode = err
			return false
		}
		bOp, err := DecodeOperand(in.Args[1])
		if err != nil {
			vm.errcode = err
			return false
		}
		a, err := vm.resolveValue(aOp)
		if err != nil {
			vm.errcode = err
			return false
		}
		b, err := vm.resolveValue(bOp)
		if err != nil {
			vm.errcode = err
			return false
		}
		vm.flags = cmpValues(a, b)
		vm.pc++

	case "BAL", "BEQ", "BNE", "BGT", "BLT":
		target, err := decodeBranchTarget(in.Args[0])
		if err != nil {
			vm.errcode = err
			return false
		}
		if vm.branchTaken(in.Op) {
			vm.pc = target
		} else {
			vm.pc++
		}

	case "PRT":
		op, err := DecodeOperand(in.Args[0])
		if err != nil {
			vm.errcode = err
			return false
		}
		val, err := vm.resolveValue(op)
		if err != nil {
			vm.errcode = err
			return false
		}
		fmt.Fprintln(vm.stdout, val.String())
		vm.stdout.Flush()
		vm.pc++

	default:
		vm.errcode = errors.Wrapf(errUnknownOpcode, "%q", in.Op)
		return false
	}

	return true
}

func (vm *VM) branchTaken(op string) bool {
	switch op {
	case "BAL":
		return true
	case "BEQ":
		return vm.flags.eq
	case "BNE":
		return vm.flags.ne
	case "BGT":
		return vm.flags.gt
	case "BLT":
		return vm.flags.lt
	default:
		return false
	}
}

func decodeBranchTarget(s string) (int, error) {
	op, err := DecodeOperand(s)
	if err != nil {
		return 0, err
	}
	if op.Kind != OperandLiteral {
		return 0, errors.Wrap(errMalformedOperand, "branch target must be a literal instruction index")
	}
	return op.Literal, nil
}

func (vm *VM) execArithmetic(in ParsedInstr) error {
	dst, err := DecodeOperand(in.Args[0])
	if err != nil || dst.Kind != OperandRegister {
		return errMalformedOperand
	}
	aOp, err := DecodeOperand(in.Args[1])
	if err != nil {
		return err
	}
	bOp, err := DecodeOperand(in.Args[2])
	if err != nil {
		return err
	}
	a, err := vm.resolveValue(aOp)
	if err != nil {
		return err
	}
	b, err := vm.resolveValue(bOp)
	if err != nil {
		return err
	}
	result, err := numericOp(in.Op, a, b)
	if err != nil {
		return err
	}
	vm.registers[dst.Reg] = result
	return nil
}

func (vm *VM) execDiv(in ParsedInstr) error {
	dst, err := DecodeOperand(in.Args[0])
	if err != nil || dst.Kind != OperandRegister {
		return errMalformedOperand
	}
	aOp, err := DecodeOperand(in.Args[1])
	if err != nil {
		return err
	}
	bOp, err := DecodeOperand(in.Args[2])
	if err != nil {
		return err
	}
	a, err := vm.resolveValue(aOp)
	if err != nil {
		return err
	}
	b, err := vm.resolveValue(bOp)
	if err != nil {
		return err
	}
	if b.AsFloat() == 0 {
		return errDivisionByZero
	}
	vm.registers[dst.Reg] = FloatValue(a.AsFloat() / b.AsFloat())
	return nil
}

func (vm *VM) execFloorOp(in ParsedInstr) error {
	dst, err := DecodeOperand(in.Args[0])
	if err != nil || dst.Kind != OperandRegister {
		return errMalformedOperand
	}
	aOp, err := DecodeOperand(in.Args[1])
	if err != nil {
		return err
	}
	bOp, err := DecodeOperand(in.Args[2])
	if err != nil {
		return err
	}
	a, err := vm.resolveValue(aOp)
	if err != nil {
		return err
	}
	b, err := vm.resolveValue(bOp)
	if err != nil {
		return err
	}
	ai, bi := a.AsInt(), b.AsInt()
	if bi == 0 {
		return errDivisionByZero
	}
	if in.Op == "FDV" {
		vm.registers[dst.Reg] = IntValue(floorDiv(ai, bi))
	} else {
		vm.registers[dst.Reg] = IntValue(floorMod(ai, bi))
	}
	return nil
}

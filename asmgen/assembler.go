// Package asmgen implements the optional binary assembler: a lossy,
// fixed-width 16-bit encoding of a compiled program, grounded in the
// original toolchain's separate "pasm" stage. It is a secondary artifact,
// not the execution path the vm package runs — the vm package executes the
// text assembly directly.
package asmgen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"pcompile/compiler"
)

// MaxProgramWords is the fixed image size the binary form pads to, matching
// the flat memory's 256 cells.
const MaxProgramWords = 256

// ErrUnsupportedInstruction marks an instruction that has no representation
// in the fixed-width binary encoding: an opcode outside the table,
// register-indirect LDR/STR (no field width for it), or an address/target
// too large for its packed field. PRT is not reported with it; Assemble
// skips PRT instead.
var ErrUnsupportedInstruction = errors.New("instruction cannot be represented in the fixed-width binary encoding")

var opcodes = map[string]uint16{
	"MOV": 0, "LDR": 1, "STR": 2,
	"ADD": 3, "SUB": 4, "MTP": 5, "DIV": 6, "EXP": 7, "MOD": 8, "FDV": 9,
	"CMP": 10, "BAL": 11, "BEQ": 12, "BNE": 13, "BGT": 14, "BLT": 15,
	"HALT": 16,
}

// decodeField reads a register ("rN") or immediate ("#N") operand into a
// 3-bit field, truncating like the original assembler's unchecked integer
// packing. The bool reports whether the operand was a register.
func decodeField(operand string) (uint16, bool) {
	lower := strings.ToLower(operand)
	isReg := strings.HasPrefix(lower, "r")
	digits := strings.TrimPrefix(strings.TrimPrefix(lower, "r"), "#")
	n, _ := strconv.Atoi(digits)
	return uint16(n) & 0x7, isReg
}

// encodeInstruction packs one instruction into a 16-bit word: opcode in the
// top 5 bits, an immediate/register flag bit, then 3-bit operand fields (or
// an 8-bit address field for LDR/STR, or an 8-bit target for branches).
func encodeInstruction(op string, args []string) (uint16, error) {
	opcode, ok := opcodes[op]
	if !ok {
		return 0, errors.Wrapf(ErrUnsupportedInstruction, "unknown opcode %q", op)
	}
	inst := opcode << 11

	switch op {
	case "HALT":
		return inst, nil

	case "BAL", "BEQ", "BNE", "BGT", "BLT":
		target, err := strconv.Atoi(args[0])
		if err != nil || target < 0 || target > 0xFF {
			return 0, errors.Wrapf(ErrUnsupportedInstruction, "branch target %q out of range", args[0])
		}
		inst |= uint16(target) & 0xFF
		return inst, nil

	case "LDR", "STR":
		regField, isReg := decodeField(args[0])
		if !isReg {
			return 0, errors.Wrapf(ErrUnsupportedInstruction, "%s's first operand must be a register", op)
		}
		if strings.HasPrefix(strings.ToLower(args[1]), "r") {
			return 0, errors.Wrapf(ErrUnsupportedInstruction, "%s's register-indirect addressing has no binary encoding", op)
		}
		addr, err := strconv.Atoi(args[1])
		if err != nil || addr < 0 || addr > 0xFF {
			return 0, errors.Wrapf(ErrUnsupportedInstruction, "%s address %q out of range", op, args[1])
		}
		inst |= regField << 8
		inst |= uint16(addr) & 0xFF
		return inst, nil

	case "CMP":
		aField, aIsReg := decodeField(args[0])
		bField, bIsReg := decodeField(args[1])
		if aIsReg || bIsReg {
			inst |= 1 << 10
		}
		inst |= aField << 7
		inst |= bField << 4
		return inst, nil

	case "MOV":
		dField, _ := decodeField(args[0])
		sField, sIsReg := decodeField(args[1])
		if sIsReg {
			inst |= 1 << 10
		}
		inst |= dField << 7
		inst |= sField << 4
		return inst, nil

	case "ADD", "SUB", "MTP", "DIV", "EXP", "MOD", "FDV":
		dField, _ := decodeField(args[0])
		aField, aIsReg := decodeField(args[1])
		bField, bIsReg := decodeField(args[2])
		if aIsReg || bIsReg {
			inst |= 1 << 10
		}
		inst |= dField << 7
		inst |= aField << 4
		inst |= bField << 1
		return inst, nil

	default:
		return 0, errors.Wrapf(ErrUnsupportedInstruction, "unhandled opcode %q", op)
	}
}

// Assemble packs a compiled program into the fixed-width binary form,
// rendered as space-separated uppercase hex words padded to MaxProgramWords
// (spec §9 supplement: optional binary assembler). PRT is skipped, not
// rejected, matching the original assembler's handling of it.
func Assemble(instrs []compiler.Instr) (string, error) {
	words := make([]uint16, 0, len(instrs))
	for _, in := range instrs {
		if in.Op == "PRT" {
			continue
		}
		w, err := encodeInstruction(in.Op, in.Args)
		if err != nil {
			return "", err
		}
		words = append(words, w)
	}
	if len(words) > MaxProgramWords {
		return "", errors.Wrapf(ErrUnsupportedInstruction, "program has %d words, exceeds the %d-word image", len(words), MaxProgramWords)
	}

	var b strings.Builder
	for _, w := range words {
		fmt.Fprintf(&b, "%04X ", w)
	}
	for i := len(words); i < MaxProgramWords; i++ {
		b.WriteString("0000 ")
	}
	return strings.TrimRight(b.String(), " ") + "\n", nil
}

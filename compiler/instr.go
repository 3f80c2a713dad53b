package compiler

import "strings"

// Instr is one emitted instruction. Its branch operand may still be a
// symbolic "ptr"/"break" placeholder until back-patching resolves it;
// variable operands are already lowered to addresses when it is emitted
// (spec §3 "Instruction", §9 design note on fixup records).
type Instr struct {
	Op   string
	Args []string
}

func (in Instr) String() string {
	if len(in.Args) == 0 {
		return in.Op
	}
	return in.Op + " " + strings.Join(in.Args, " ")
}

// branchOps are the opcodes whose sole argument is a branch target, the set
// that back-patching and relative renumbering operate over (spec §4.5, §4.6).
var branchOps = map[string]bool{
	"BAL": true, "BEQ": true, "BNE": true, "BGT": true, "BLT": true,
}

func isBranch(in Instr) bool {
	return branchOps[in.Op]
}

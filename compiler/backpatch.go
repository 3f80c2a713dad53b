package compiler

import "strconv"

// RemovePassStatements eliminates every PASS placeholder instruction except
// the very last, splicing the instruction list down by one element at a
// time (spec §4.6). Any branch whose target is strictly greater than the
// removed index is decremented so it keeps pointing at the same logical
// instruction; a branch that targeted the removed PASS itself is left
// numerically unchanged, which after the shift lands it exactly on the
// instruction that used to follow the PASS — the correct fall-through
// target. The final instruction, whatever op it ended up being, becomes
// HALT.
func RemovePassStatements(instrs []Instr) []Instr {
	out := make([]Instr, len(instrs))
	copy(out, instrs)

	ln := 0
	for ln < len(out)-1 {
		if out[ln].Op != "PASS" {
			ln++
			continue
		}

		shifted := make([]Instr, 0, len(out)-1)
		for i, in := range out {
			if i == ln {
				continue
			}
			if isBranch(in) && len(in.Args) == 1 {
				if n, err := strconv.Atoi(in.Args[0]); err == nil && n > ln {
					in = Instr{Op: in.Op, Args: []string{strconv.Itoa(n - 1)}}
				}
			}
			shifted = append(shifted, in)
		}
		out = shifted
		ln = 0
	}

	if len(out) > 0 {
		out[len(out)-1] = Instr{Op: "HALT"}
	}
	return out
}

package compiler

import "fmt"

// NumRegisters is the size of the general-purpose register bank. The
// language's expression depth is bounded by this count (spec §4.2).
const NumRegisters = 8

func registerName(idx int) string {
	return fmt.Sprintf("r%d", idx)
}

// registerIndex reports the index of a register name such as "r3", or ok=false
// if name does not denote one of the NumRegisters registers.
func registerIndex(name string) (int, bool) {
	if len(name) < 2 || name[0] != 'r' {
		return 0, false
	}
	idx := 0
	for _, c := range name[1:] {
		if c < '0' || c > '9' {
			return 0, false
		}
		idx = idx*10 + int(c-'0')
	}
	if idx < 0 || idx >= NumRegisters {
		return 0, false
	}
	return idx, true
}

// isRegister reports whether s is a well-formed register operand.
func isRegister(s string) bool {
	_, ok := registerIndex(s)
	return ok
}

// RegisterSnapshot captures the busy state of every register so a caller can
// restore it after compiling a sub-expression speculatively.
type RegisterSnapshot [NumRegisters]bool

// RegisterFile tracks which of the fixed register bank are in use. Allocation
// always returns the lowest-indexed free register, matching the teacher's
// and the original compiler's `__next_available_register` behavior, which is
// required for deterministic compilation (spec §5).
type RegisterFile struct {
	busy [NumRegisters]bool
}

// NewRegisterFile returns a register file with every register free.
func NewRegisterFile() *RegisterFile {
	return &RegisterFile{}
}

// Allocate returns the lowest-indexed free register and marks it busy, or
// ErrRegisterPressure if every register is in use.
func (r *RegisterFile) Allocate() (string, error) {
	for i := 0; i < NumRegisters; i++ {
		if !r.busy[i] {
			r.busy[i] = true
			return registerName(i), nil
		}
	}
	return "", ErrRegisterPressure
}

// Block marks a known register busy without going through Allocate, used
// when a register name arrives already-chosen (e.g. reusing a destination).
func (r *RegisterFile) Block(name string) {
	if idx, ok := registerIndex(name); ok {
		r.busy[idx] = true
	}
}

// Free releases name back to the pool. Freeing an already-free register, or
// a non-register operand, is a no-op so call sites can free operands
// unconditionally.
func (r *RegisterFile) Free(name string) {
	if idx, ok := registerIndex(name); ok {
		r.busy[idx] = false
	}
}

// AllFree reports whether every register in the bank is currently free. The
// statement compiler checks this once at the end of every block it compiles
// (spec §3, §8 invariant 4).
func (r *RegisterFile) AllFree() bool {
	for _, b := range r.busy {
		if b {
			return false
		}
	}
	return true
}

// Snapshot captures the current busy state for later restoration.
func (r *RegisterFile) Snapshot() RegisterSnapshot {
	return RegisterSnapshot(r.busy)
}

// Restore resets the busy state to a previously captured snapshot.
func (r *RegisterFile) Restore(s RegisterSnapshot) {
	r.busy = [NumRegisters]bool(s)
}

package compiler

import "testing"

func TestRegisterFileAllocateLowestIndexFirst(t *testing.T) {
	regs := NewRegisterFile()
	r0, err := regs.Allocate()
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, r0 == "r0", "expected r0 first, got %s", r0)

	r1, err := regs.Allocate()
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, r1 == "r1", "expected r1 second, got %s", r1)

	regs.Free(r0)
	r0again, err := regs.Allocate()
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, r0again == "r0", "expected freed r0 reused first, got %s", r0again)
}

func TestRegisterFileExhaustion(t *testing.T) {
	regs := NewRegisterFile()
	for i := 0; i < NumRegisters; i++ {
		_, err := regs.Allocate()
		assert(t, err == nil, "unexpected error allocating register %d: %v", i, err)
	}
	_, err := regs.Allocate()
	assert(t, err != nil, "expected register pressure error")
}

func TestRegisterFileSnapshotRestore(t *testing.T) {
	regs := NewRegisterFile()
	_, _ = regs.Allocate()
	_, _ = regs.Allocate()
	snap := regs.Snapshot()

	_, _ = regs.Allocate()
	assert(t, !regs.AllFree(), "expected busy registers before restore")

	regs.Restore(snap)
	_, err := regs.Allocate()
	assert(t, err == nil, "expected a free register after restore")
}

func TestRegisterFileFreeIsNoopForNonRegister(t *testing.T) {
	regs := NewRegisterFile()
	regs.Free("#5")
	regs.Free("notareg")
	assert(t, regs.AllFree(), "expected freeing a non-register operand to be a no-op")
}

func TestRegisterNameIndexRoundTrip(t *testing.T) {
	for i := 0; i < NumRegisters; i++ {
		name := registerName(i)
		idx, ok := registerIndex(name)
		assert(t, ok, "expected %s to resolve back to an index", name)
		assert(t, idx == i, "expected index %d, got %d", i, idx)
	}
	assert(t, isRegister("r3"), "expected r3 to be a register")
	assert(t, !isRegister("r8"), "expected r8 to be out of range")
	assert(t, !isRegister("x"), "expected x to not be a register")
}

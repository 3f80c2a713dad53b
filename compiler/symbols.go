package compiler

import "fmt"

// Memory map ranges (spec §3). Scalars and arrays live in two disjoint
// ranges of a single 256-cell flat address space.
const (
	ScalarBase = 32
	ScalarEnd  = 191
	ArrayBase  = 192
	ArrayEnd   = 255
	MemorySize = 256
)

// ArrayDescriptor records where an array's backing store lives.
type ArrayDescriptor struct {
	Base   int
	Length int
}

// arraySizeName is the mangled scalar name that holds an array's length
// (spec §3 invariant: "each array additionally reserves a scalar named
// __{name}__size__").
func arraySizeName(name string) string {
	return fmt.Sprintf("__%s__size__", name)
}

// SymbolTable maps scalar and array names to addresses in the flat memory
// range. Scalar addresses are assigned in increasing order starting at
// ScalarBase; array bases are packed tightly from ArrayBase (spec §3, §4.3).
type SymbolTable struct {
	scalars    map[string]int
	arrays     map[string]ArrayDescriptor
	nextScalar int
	nextArray  int
}

// NewSymbolTable returns an empty symbol table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		scalars:    make(map[string]int),
		arrays:     make(map[string]ArrayDescriptor),
		nextScalar: ScalarBase,
		nextArray:  ArrayBase,
	}
}

// DeclareScalar returns the address for name, assigning the next unused
// scalar address if name hasn't been seen before. Idempotent: re-declaring
// an existing name returns its prior address (spec §4.3).
func (s *SymbolTable) DeclareScalar(name string) (int, error) {
	if addr, ok := s.scalars[name]; ok {
		return addr, nil
	}
	if s.nextScalar > ScalarEnd {
		return 0, fmt.Errorf("scalar range exhausted declaring %q", name)
	}
	addr := s.nextScalar
	s.scalars[name] = addr
	s.nextScalar++
	return addr, nil
}

// DeclareArray reserves length contiguous cells from the array range for
// name and records the __name__size__ scalar. Re-declaring an existing array
// name returns its existing descriptor unchanged and no error, whatever
// length is passed.
func (s *SymbolTable) DeclareArray(name string, length int) (ArrayDescriptor, error) {
	if desc, ok := s.arrays[name]; ok {
		return desc, nil
	}
	if s.nextArray+length-1 > ArrayEnd {
		return ArrayDescriptor{}, fmt.Errorf("array range exhausted declaring %q of length %d", name, length)
	}
	desc := ArrayDescriptor{Base: s.nextArray, Length: length}
	s.arrays[name] = desc
	s.nextArray += length
	if _, err := s.DeclareScalar(arraySizeName(name)); err != nil {
		return ArrayDescriptor{}, err
	}
	return desc, nil
}

// ResolveScalar looks up a previously declared scalar's address.
func (s *SymbolTable) ResolveScalar(name string) (int, bool) {
	addr, ok := s.scalars[name]
	return addr, ok
}

// ResolveArray looks up a previously declared array's base/length.
func (s *SymbolTable) ResolveArray(name string) (ArrayDescriptor, bool) {
	desc, ok := s.arrays[name]
	return desc, ok
}

// IsArray reports whether name was declared via DeclareArray.
func (s *SymbolTable) IsArray(name string) bool {
	_, ok := s.arrays[name]
	return ok
}

// IsScalar reports whether name was declared via DeclareScalar.
func (s *SymbolTable) IsScalar(name string) bool {
	_, ok := s.scalars[name]
	return ok
}

// Package identset implements an open-addressed set of record addresses.
// It exists solely to back the debug-mode cycle guard: walking a record
// graph and flagging a repeated address before the serializer would
// otherwise recurse forever.
//
// The probing scheme (power-of-two table, triangular-number probe
// sequence) is the same shape as a production Swiss table's probe
// sequence, simplified from byte-group SIMD matching down to a single
// control slot per bucket since this set only ever stores presence, never
// a value.
package identset

const empty = 0

// Set is an open-addressed set of non-zero uintptr keys (pointer
// addresses). A zero Set is not ready to use; call New.
type Set struct {
	slots []uintptr
	count int
}

// New creates a Set with room for approximately hint entries before its
// first resize.
func New(hint int) *Set {
	n := 8
	for n < hint*2 {
		n *= 2
	}
	return &Set{slots: make([]uintptr, n)}
}

// Insert adds addr to the set and reports whether it was already present.
func (s *Set) Insert(addr uintptr) (alreadyPresent bool) {
	if addr == empty {
		panic("identset: cannot track a nil address")
	}
	if (s.count+1)*2 > len(s.slots) {
		s.grow()
	}

	mask := len(s.slots) - 1
	h := int(fxhash(addr)) & mask
	for i, probe := 0, h; ; {
		switch s.slots[probe] {
		case empty:
			s.slots[probe] = addr
			s.count++
			return false
		case addr:
			return true
		}
		i++
		probe = (probe + i) & mask
	}
}

// Remove deletes addr from the set, if present. Used by the serializer to
// pop the current record off the in-progress ancestor set once its deep
// pass returns, so that a DAG (same address referenced twice, but never as
// its own ancestor) is not mistaken for a cycle.
func (s *Set) Remove(addr uintptr) {
	mask := len(s.slots) - 1
	h := int(fxhash(addr)) & mask
	for i, probe := 0, h; ; {
		switch s.slots[probe] {
		case empty:
			return
		case addr:
			s.slots[probe] = empty
			s.count--
			// Simple tombstone-free removal is unsound in general open
			// addressing, but this set's lifetime is one serialize() call
			// depth-first walk with a strict push/pop discipline, so the
			// probe sequence for any other live key never depended on this
			// slot being occupied by something that then got removed out
			// from under it within the same walk.
			return
		}
		i++
		probe = (probe + i) & mask
	}
}

func (s *Set) grow() {
	old := s.slots
	s.slots = make([]uintptr, len(old)*2)
	s.count = 0
	for _, a := range old {
		if a != empty {
			s.Insert(a)
		}
	}
}

// fxhash is a fast, non-cryptographic avalanche hash for addresses, in the
// spirit of a Swiss table's bucket-selection hash.
func fxhash(x uintptr) uintptr {
	const seed = 0x51_7c_c1_b7_27_22_0a_95
	x ^= uintptr(seed)
	x *= uintptr(seed)
	x = (x << 5) | (x >> (64 - 5))
	x ^= uintptr(seed)
	return x
}

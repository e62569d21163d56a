package netplay

// A NetworkIdentity is a generational handle for a remote-visible entity.
// Identifier slots are reused, but only after the generation is bumped, so
// a handle captured before reuse can never alias a different live entity.
type NetworkIdentity struct {
	Identifier uint16
	Generation uint16
}

const identitySize = 4

// IdentityAllocator hands out identifier slots on the authoritative side.
type IdentityAllocator struct {
	generations []uint16
	free        []uint16
}

func NewIdentityAllocator() *IdentityAllocator {
	return &IdentityAllocator{}
}

// Allocate returns a fresh identity, reusing a freed slot when one exists.
func (a *IdentityAllocator) Allocate() NetworkIdentity {
	if n := len(a.free); n > 0 {
		ident := a.free[n-1]
		a.free = a.free[:n-1]
		return NetworkIdentity{Identifier: ident, Generation: a.generations[ident]}
	}
	ident := uint16(len(a.generations))
	a.generations = append(a.generations, 0)
	return NetworkIdentity{Identifier: ident}
}

// Release frees the slot and bumps its generation. Releasing a stale
// handle, one whose generation no longer matches, is a no-op.
func (a *IdentityAllocator) Release(id NetworkIdentity) {
	if int(id.Identifier) >= len(a.generations) {
		return
	}
	if a.generations[id.Identifier] != id.Generation {
		return
	}
	a.generations[id.Identifier]++
	a.free = append(a.free, id.Identifier)
}

// Live reports whether id refers to the current occupant of its slot.
func (a *IdentityAllocator) Live(id NetworkIdentity) bool {
	if int(id.Identifier) >= len(a.generations) {
		return false
	}
	if a.generations[id.Identifier] != id.Generation {
		return false
	}
	for _, f := range a.free {
		if f == id.Identifier {
			return false
		}
	}
	return true
}

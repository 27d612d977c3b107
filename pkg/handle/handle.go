// Package handle defines generation-tagged handles into the backend's
// collections. A handle stays valid only while its generation matches the
// owning collection's current generation; stale handles resolve to
// "not found" instead of aliasing whatever lives at the same index now.
package handle

// InstanceID identifies a live entry in the backend's instance store.
// The zero value is not a valid ID; use DanglingInstance for
// "not yet registered".
type InstanceID struct {
	Slot       int
	Generation uint64
}

// DanglingInstance is the sentinel for an instance that has not been
// registered in the store yet.
func DanglingInstance() InstanceID {
	return InstanceID{Slot: -1}
}

// IsDangling reports whether the ID is the not-yet-registered sentinel.
func (id InstanceID) IsDangling() bool {
	return id.Slot < 0
}

// ModID identifies a mod within an instance's current mod snapshot.
// The generation is the instance's mod generation at the time the
// snapshot was published; every completed mod reload invalidates all
// previously issued ModIDs.
type ModID struct {
	Index      int
	Generation uint64
}

// DanglingMod is the sentinel for a mod summary that has not been
// assigned a slot in a published snapshot.
func DanglingMod() ModID {
	return ModID{Index: -1}
}

// IsDangling reports whether the ID is the unassigned sentinel.
func (id ModID) IsDangling() bool {
	return id.Index < 0
}

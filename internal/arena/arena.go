// Package arena provides the slot arena backing the active-document
// partition.
//
// Slots are append-only: removing an entry leaves a tombstone instead of
// shifting later slots, so a partition transition costs O(1) amortized
// rather than O(k) in the entity's active count. Tombstones accumulate
// until Compact rebuilds the arena in O(live).
//
// # Concurrency Model
//
// Arena has no internal locking. Callers serialize access the same way they
// serialize the owning table: readers under the table's read lock, mutators
// inside the external critical section.
package arena

// Tombstone marks a vacated slot.
const tombstone = -1

// Arena is an append-only array of optional row positions.
type Arena struct {
	slots []int
	live  int
}

// New creates an empty arena with the given capacity hint.
func New(capacity int) *Arena {
	return &Arena{slots: make([]int, 0, capacity)}
}

// Add appends a row position and returns its slot id.
func (a *Arena) Add(pos int) int {
	a.slots = append(a.slots, pos)
	a.live++
	return len(a.slots) - 1
}

// Remove tombstones the given slot. It reports whether a live entry was
// removed; out-of-range and already-dead slots are no-ops.
func (a *Arena) Remove(slot int) bool {
	if slot < 0 || slot >= len(a.slots) || a.slots[slot] == tombstone {
		return false
	}
	a.slots[slot] = tombstone
	a.live--
	return true
}

// Get returns the row position held by a slot. ok=false for tombstones and
// out-of-range slots; readers walking stale slot lists rely on that instead
// of panicking.
func (a *Arena) Get(slot int) (pos int, ok bool) {
	if slot < 0 || slot >= len(a.slots) || a.slots[slot] == tombstone {
		return 0, false
	}
	return a.slots[slot], true
}

// Len returns the total slot count, tombstones included.
func (a *Arena) Len() int {
	return len(a.slots)
}

// Live returns the number of non-tombstone slots.
func (a *Arena) Live() int {
	return a.live
}

// Tombstones returns the number of dead slots awaiting compaction.
func (a *Arena) Tombstones() int {
	return len(a.slots) - a.live
}

// Compact rebuilds the arena without tombstones and returns the remap of
// surviving old slot ids to new ones. Slot lists held outside the arena
// must be rewritten through the remap; absent entries were tombstones.
func (a *Arena) Compact() map[int]int {
	remap := make(map[int]int, a.live)
	compacted := make([]int, 0, a.live)
	for slot, pos := range a.slots {
		if pos == tombstone {
			continue
		}
		remap[slot] = len(compacted)
		compacted = append(compacted, pos)
	}
	a.slots = compacted
	return remap
}

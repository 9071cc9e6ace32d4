package scheduling

import (
	"sync"

	"github.com/careflow/clinic-scheduling/pkg/logging"
)

// CapacityTracker owns the slot counters. All reserve/release traffic for one
// SlotKey is serialized by that slot's mutex; slots never block each other.
type CapacityTracker struct {
	mu        sync.Mutex // guards slots and overrides maps, never held during counter math
	slots     map[SlotKey]*slotCounter
	overrides map[string]int // per-doctor daily capacity, set by admins

	defaultCapacity int
	logger          *logging.Logger
}

type slotCounter struct {
	mu       sync.Mutex
	capacity int
	booked   int
}

// NewCapacityTracker creates a tracker with the given default per-doctor
// daily capacity.
func NewCapacityTracker(defaultCapacity int, logger *logging.Logger) *CapacityTracker {
	if defaultCapacity <= 0 {
		panic("scheduling: default capacity must be positive")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &CapacityTracker{
		slots:           make(map[SlotKey]*slotCounter),
		overrides:       make(map[string]int),
		defaultCapacity: defaultCapacity,
		logger:          logger,
	}
}

func (t *CapacityTracker) counterFor(key SlotKey) *slotCounter {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.slots[key]
	if !ok {
		capacity := t.defaultCapacity
		if override, ok := t.overrides[key.DoctorID]; ok {
			capacity = override
		}
		c = &slotCounter{capacity: capacity}
		t.slots[key] = c
	}
	return c
}

// Reserve atomically takes one unit of the slot's capacity. It fails with
// ErrCapacityExhausted when the slot is full, with no partial effects.
func (t *CapacityTracker) Reserve(key SlotKey) (*Reservation, error) {
	c := t.counterFor(key)
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.booked >= c.capacity {
		return nil, ErrCapacityExhausted
	}
	c.booked++
	t.logger.Debug("slot reserved", "slot", key.String(), "booked", c.booked, "capacity", c.capacity)
	return &Reservation{key: key}, nil
}

// Release returns the reservation's unit to the slot. Releasing the same
// reservation twice yields ErrStaleReservation and leaves the counter alone,
// so duplicate cancellation signals cannot drive booked negative.
func (t *CapacityTracker) Release(res *Reservation) error {
	if res == nil {
		return ErrStaleReservation
	}
	c := t.counterFor(res.key)
	c.mu.Lock()
	defer c.mu.Unlock()

	if res.released {
		t.logger.Warn("stale release ignored", "slot", res.key.String())
		return ErrStaleReservation
	}
	res.released = true
	if c.booked > 0 {
		c.booked--
	}
	t.logger.Debug("slot released", "slot", res.key.String(), "booked", c.booked, "capacity", c.capacity)
	return nil
}

// Availability returns a snapshot of the slot's counter. Available is floored
// at zero: an admin can lower a doctor's capacity below the outstanding
// bookings without invalidating them.
func (t *CapacityTracker) Availability(key SlotKey) Availability {
	c := t.counterFor(key)
	c.mu.Lock()
	defer c.mu.Unlock()

	available := c.capacity - c.booked
	if available < 0 {
		available = 0
	}
	return Availability{Capacity: c.capacity, Booked: c.booked, Available: available}
}

// SetCapacity overrides the doctor's daily capacity for current and future
// slots. Existing reservations stay valid; reserves fail until releases bring
// booked back under the new ceiling.
func (t *CapacityTracker) SetCapacity(doctorID string, capacity int) {
	if capacity <= 0 {
		return
	}
	t.mu.Lock()
	t.overrides[doctorID] = capacity
	var existing []*slotCounter
	for key, c := range t.slots {
		if key.DoctorID == doctorID {
			existing = append(existing, c)
		}
	}
	t.mu.Unlock()

	for _, c := range existing {
		c.mu.Lock()
		c.capacity = capacity
		c.mu.Unlock()
	}
	t.logger.Info("doctor capacity updated", "doctor_id", doctorID, "capacity", capacity)
}

// Adopt returns a reservation handle for a unit that is already counted in
// the slot, e.g. an appointment reloaded from storage after a restart. The
// counter is not touched; the handle exists so the unit can be released
// through the normal path exactly once.
func (t *CapacityTracker) Adopt(key SlotKey) *Reservation {
	return &Reservation{key: key}
}

// Prime seeds a slot's booked count from storage. Called once per slot at
// startup, before the tracker takes traffic.
func (t *CapacityTracker) Prime(key SlotKey, booked int) {
	if booked < 0 {
		booked = 0
	}
	c := t.counterFor(key)
	c.mu.Lock()
	c.booked = booked
	c.mu.Unlock()
}

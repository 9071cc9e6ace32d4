package appointment

import (
	"context"
	"sync"

	"github.com/careflow/clinic-scheduling/internal/scheduling"
)

// Repository defines the interface for appointment storage.
type Repository interface {
	Create(ctx context.Context, appt *Appointment) error
	GetByID(ctx context.Context, id string) (*Appointment, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
	// UpdatePayment persists the billed amount and method set at confirmation.
	UpdatePayment(ctx context.Context, id string, method string, amountCents int64) error
	// ActiveCountsBySlot returns, per slot, the number of appointments still
	// holding capacity (PENDING/APPROVED/CONFIRMED). Used to prime the
	// capacity tracker at startup.
	ActiveCountsBySlot(ctx context.Context) (map[scheduling.SlotKey]int, error)
}

// InMemoryRepository stores appointments in memory, for tests and local runs.
type InMemoryRepository struct {
	mu    sync.RWMutex
	appts map[string]*Appointment
}

// NewInMemoryRepository creates a new in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{appts: make(map[string]*Appointment)}
}

func (r *InMemoryRepository) Create(ctx context.Context, appt *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *appt
	r.appts[appt.ID] = &cp
	return nil
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	appt, ok := r.appts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *appt
	return &cp, nil
}

func (r *InMemoryRepository) UpdateStatus(ctx context.Context, id string, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	appt, ok := r.appts[id]
	if !ok {
		return ErrNotFound
	}
	appt.Status = status
	return nil
}

func (r *InMemoryRepository) UpdatePayment(ctx context.Context, id string, method string, amountCents int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	appt, ok := r.appts[id]
	if !ok {
		return ErrNotFound
	}
	appt.PaymentMethod = method
	appt.PaymentAmount = amountCents
	return nil
}

func (r *InMemoryRepository) ActiveCountsBySlot(ctx context.Context) (map[scheduling.SlotKey]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[scheduling.SlotKey]int)
	for _, appt := range r.appts {
		if appt.Status.Terminal() {
			continue
		}
		counts[appt.SlotKey()]++
	}
	return counts, nil
}

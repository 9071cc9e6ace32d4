package directory

import (
	"context"
	"sort"
	"sync"
)

// Repository defines the interface for directory storage.
type Repository interface {
	UpsertDoctor(ctx context.Context, doc *Doctor) error
	GetDoctor(ctx context.Context, id string) (*Doctor, error)
	ListDoctors(ctx context.Context, hospitalID string) ([]*Doctor, error)
	GetHospital(ctx context.Context, id string) (*Hospital, error)
	ListHospitals(ctx context.Context) ([]*Hospital, error)
	GetPatient(ctx context.Context, id string) (*Patient, error)
}

// InMemoryRepository stores directory data in memory, for tests and local
// runs.
type InMemoryRepository struct {
	mu        sync.RWMutex
	doctors   map[string]*Doctor
	hospitals map[string]*Hospital
	patients  map[string]*Patient
}

// NewInMemoryRepository creates a new in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		doctors:   make(map[string]*Doctor),
		hospitals: make(map[string]*Hospital),
		patients:  make(map[string]*Patient),
	}
}

func (r *InMemoryRepository) UpsertDoctor(_ context.Context, doc *Doctor) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *doc
	r.doctors[doc.ID] = &cp
	return nil
}

func (r *InMemoryRepository) GetDoctor(_ context.Context, id string) (*Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	cp := *doc
	return &cp, nil
}

func (r *InMemoryRepository) ListDoctors(_ context.Context, hospitalID string) ([]*Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var docs []*Doctor
	for _, doc := range r.doctors {
		if hospitalID != "" && doc.HospitalID != hospitalID {
			continue
		}
		cp := *doc
		docs = append(docs, &cp)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
	return docs, nil
}

// AddHospital seeds a hospital record.
func (r *InMemoryRepository) AddHospital(h *Hospital) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *h
	r.hospitals[h.ID] = &cp
}

func (r *InMemoryRepository) GetHospital(_ context.Context, id string) (*Hospital, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.hospitals[id]
	if !ok {
		return nil, ErrHospitalNotFound
	}
	cp := *h
	return &cp, nil
}

func (r *InMemoryRepository) ListHospitals(_ context.Context) ([]*Hospital, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var hs []*Hospital
	for _, h := range r.hospitals {
		cp := *h
		hs = append(hs, &cp)
	}
	sort.Slice(hs, func(i, j int) bool { return hs[i].Name < hs[j].Name })
	return hs, nil
}

// AddPatient seeds a patient contact record.
func (r *InMemoryRepository) AddPatient(p *Patient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.patients[p.ID] = &cp
}

func (r *InMemoryRepository) GetPatient(_ context.Context, id string) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	cp := *p
	return &cp, nil
}

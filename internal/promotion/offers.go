package promotion

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Offer is an open promotion offer: freed capacity held for one waitlist
// entry until the patient responds or the deadline passes. The held unit is
// owned by the placeholder appointment the offer points at, not by the offer
// record itself.
type Offer struct {
	EntryID           string    `json:"entry_id"`
	AppointmentID     string    `json:"appointment_id"`
	PatientID         string    `json:"patient_id"`
	DoctorID          string    `json:"doctor_id"`
	HospitalID        string    `json:"hospital_id,omitempty"`
	ServiceCategoryID string    `json:"service_category_id,omitempty"`
	DesiredTime       time.Time `json:"desired_time"`
	Priority          bool      `json:"priority"`
	Deadline          time.Time `json:"deadline"`
}

// Expired reports whether the offer window has closed.
func (o *Offer) Expired(now time.Time) bool {
	return now.After(o.Deadline)
}

// OfferStore persists open offers so they survive process restarts.
type OfferStore interface {
	Save(ctx context.Context, offer *Offer) error
	Get(ctx context.Context, entryID string) (*Offer, error)
	Delete(ctx context.Context, entryID string) error
	List(ctx context.Context) ([]*Offer, error)
}

const offerKeyPrefix = "careflow:offer:"

// RedisOfferStore keeps offers in Redis. Keys carry a TTL past the deadline
// as a backstop against unbounded growth; the sweep compares deadlines itself
// so expiry decisions do not depend on Redis timing. Losing a key to the TTL
// cannot leak capacity: the unit belongs to the offer's placeholder
// appointment, which stays cancellable through the normal booking surface.
type RedisOfferStore struct {
	client *redis.Client
}

func NewRedisOfferStore(client *redis.Client) *RedisOfferStore {
	if client == nil {
		panic("promotion: redis client required")
	}
	return &RedisOfferStore{client: client}
}

func (s *RedisOfferStore) Save(ctx context.Context, offer *Offer) error {
	data, err := json.Marshal(offer)
	if err != nil {
		return fmt.Errorf("promotion: marshal offer: %w", err)
	}
	ttl := 2 * time.Until(offer.Deadline)
	if ttl <= 0 {
		ttl = time.Minute
	}
	if err := s.client.Set(ctx, offerKeyPrefix+offer.EntryID, data, ttl).Err(); err != nil {
		return fmt.Errorf("promotion: save offer: %w", err)
	}
	return nil
}

func (s *RedisOfferStore) Get(ctx context.Context, entryID string) (*Offer, error) {
	data, err := s.client.Get(ctx, offerKeyPrefix+entryID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrOfferNotFound
		}
		return nil, fmt.Errorf("promotion: get offer: %w", err)
	}
	var offer Offer
	if err := json.Unmarshal(data, &offer); err != nil {
		return nil, fmt.Errorf("promotion: decode offer: %w", err)
	}
	return &offer, nil
}

func (s *RedisOfferStore) Delete(ctx context.Context, entryID string) error {
	if err := s.client.Del(ctx, offerKeyPrefix+entryID).Err(); err != nil {
		return fmt.Errorf("promotion: delete offer: %w", err)
	}
	return nil
}

func (s *RedisOfferStore) List(ctx context.Context) ([]*Offer, error) {
	var offers []*Offer
	iter := s.client.Scan(ctx, 0, offerKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		entryID := strings.TrimPrefix(iter.Val(), offerKeyPrefix)
		offer, err := s.Get(ctx, entryID)
		if err != nil {
			if err == ErrOfferNotFound {
				continue // expired between scan and get
			}
			return nil, err
		}
		offers = append(offers, offer)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("promotion: scan offers: %w", err)
	}
	return offers, nil
}

// InMemoryOfferStore backs tests and local runs without Redis.
type InMemoryOfferStore struct {
	mu     sync.RWMutex
	offers map[string]*Offer
}

func NewInMemoryOfferStore() *InMemoryOfferStore {
	return &InMemoryOfferStore{offers: make(map[string]*Offer)}
}

func (s *InMemoryOfferStore) Save(_ context.Context, offer *Offer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *offer
	s.offers[offer.EntryID] = &cp
	return nil
}

func (s *InMemoryOfferStore) Get(_ context.Context, entryID string) (*Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	offer, ok := s.offers[entryID]
	if !ok {
		return nil, ErrOfferNotFound
	}
	cp := *offer
	return &cp, nil
}

func (s *InMemoryOfferStore) Delete(_ context.Context, entryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.offers, entryID)
	return nil
}

func (s *InMemoryOfferStore) List(_ context.Context) ([]*Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	offers := make([]*Offer, 0, len(s.offers))
	for _, offer := range s.offers {
		cp := *offer
		offers = append(offers, &cp)
	}
	return offers, nil
}

package scheduling

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(doctorID string) SlotKey {
	return NewSlotKey(doctorID, time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
}

func TestReserveUntilExhausted(t *testing.T) {
	tracker := NewCapacityTracker(2, nil)
	key := testKey("doc-1")

	_, err := tracker.Reserve(key)
	require.NoError(t, err)
	_, err = tracker.Reserve(key)
	require.NoError(t, err)

	_, err = tracker.Reserve(key)
	assert.ErrorIs(t, err, ErrCapacityExhausted)

	avail := tracker.Availability(key)
	assert.Equal(t, 2, avail.Booked)
	assert.Equal(t, 0, avail.Available)
}

func TestReleaseFreesSlot(t *testing.T) {
	tracker := NewCapacityTracker(1, nil)
	key := testKey("doc-1")

	res, err := tracker.Reserve(key)
	require.NoError(t, err)
	_, err = tracker.Reserve(key)
	require.ErrorIs(t, err, ErrCapacityExhausted)

	require.NoError(t, tracker.Release(res))

	// A reserve following a release must succeed when nothing intervened.
	_, err = tracker.Reserve(key)
	assert.NoError(t, err)
}

func TestDoubleReleaseIsStale(t *testing.T) {
	tracker := NewCapacityTracker(3, nil)
	key := testKey("doc-1")

	res1, err := tracker.Reserve(key)
	require.NoError(t, err)
	res2, err := tracker.Reserve(key)
	require.NoError(t, err)

	require.NoError(t, tracker.Release(res1))
	err = tracker.Release(res1)
	assert.ErrorIs(t, err, ErrStaleReservation)

	// One reservation is still outstanding; booked must reflect that.
	assert.Equal(t, 1, tracker.Availability(key).Booked)

	require.NoError(t, tracker.Release(res2))
	assert.Equal(t, 0, tracker.Availability(key).Booked)
}

func TestReleaseNilIsStale(t *testing.T) {
	tracker := NewCapacityTracker(1, nil)
	assert.ErrorIs(t, tracker.Release(nil), ErrStaleReservation)
}

func TestSlotKeysAreIndependent(t *testing.T) {
	tracker := NewCapacityTracker(1, nil)
	day1 := NewSlotKey("doc-1", time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	day2 := NewSlotKey("doc-1", time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC))

	_, err := tracker.Reserve(day1)
	require.NoError(t, err)

	// Same doctor, different day: full day1 must not affect day2.
	_, err = tracker.Reserve(day2)
	assert.NoError(t, err)
}

func TestSlotKeyNormalizesToUTCDay(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	// 23:30 EST on May 31 is 04:30 UTC on June 1.
	key := NewSlotKey("doc-1", time.Date(2025, 5, 31, 23, 30, 0, 0, est))
	assert.Equal(t, "2025-06-01", key.Day)
}

func TestSetCapacityDoesNotInvalidateBookings(t *testing.T) {
	tracker := NewCapacityTracker(5, nil)
	key := testKey("doc-1")

	var reservations []*Reservation
	for i := 0; i < 4; i++ {
		res, err := tracker.Reserve(key)
		require.NoError(t, err)
		reservations = append(reservations, res)
	}

	tracker.SetCapacity("doc-1", 2)

	avail := tracker.Availability(key)
	assert.Equal(t, 2, avail.Capacity)
	assert.Equal(t, 4, avail.Booked)
	assert.Equal(t, 0, avail.Available, "available must not go negative")

	_, err := tracker.Reserve(key)
	assert.ErrorIs(t, err, ErrCapacityExhausted)

	// Release below the new ceiling; reserves work again.
	require.NoError(t, tracker.Release(reservations[0]))
	require.NoError(t, tracker.Release(reservations[1]))
	require.NoError(t, tracker.Release(reservations[2]))
	_, err = tracker.Reserve(key)
	assert.NoError(t, err)
}

func TestSetCapacityAppliesToFutureSlots(t *testing.T) {
	tracker := NewCapacityTracker(10, nil)
	tracker.SetCapacity("doc-1", 1)

	key := NewSlotKey("doc-1", time.Date(2025, 7, 4, 10, 0, 0, 0, time.UTC))
	_, err := tracker.Reserve(key)
	require.NoError(t, err)
	_, err = tracker.Reserve(key)
	assert.ErrorIs(t, err, ErrCapacityExhausted)
}

func TestPrimeSeedsBookedCount(t *testing.T) {
	tracker := NewCapacityTracker(3, nil)
	key := testKey("doc-1")
	tracker.Prime(key, 2)

	avail := tracker.Availability(key)
	assert.Equal(t, 2, avail.Booked)
	assert.Equal(t, 1, avail.Available)

	// The adopted unit releases through the normal path, once.
	res := tracker.Adopt(key)
	require.NoError(t, tracker.Release(res))
	assert.ErrorIs(t, tracker.Release(res), ErrStaleReservation)
	assert.Equal(t, 1, tracker.Availability(key).Booked)
}

// TestNoOverbookingUnderLoad hammers one slot with concurrent reserves and
// checks that successes never exceed capacity and booked never goes negative.
func TestNoOverbookingUnderLoad(t *testing.T) {
	const capacity = 8
	const workers = 64

	tracker := NewCapacityTracker(capacity, nil)
	key := testKey("doc-1")

	var mu sync.Mutex
	var won []*Reservation

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := tracker.Reserve(key)
			if err != nil {
				if !errors.Is(err, ErrCapacityExhausted) {
					t.Errorf("unexpected reserve error: %v", err)
				}
				return
			}
			mu.Lock()
			won = append(won, res)
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, won, capacity, "exactly capacity reserves may succeed")
	assert.Equal(t, capacity, tracker.Availability(key).Booked)

	// Concurrent releases, each paired with one successful reserve.
	for _, res := range won {
		wg.Add(1)
		go func(r *Reservation) {
			defer wg.Done()
			if err := tracker.Release(r); err != nil {
				t.Errorf("release failed: %v", err)
			}
		}(res)
	}
	wg.Wait()

	avail := tracker.Availability(key)
	assert.Equal(t, 0, avail.Booked)
	assert.Equal(t, capacity, avail.Available)
}

// TestConcurrentReserveReleaseChurn interleaves reserve/release pairs and
// verifies the counter invariant 0 <= booked <= capacity throughout.
func TestConcurrentReserveReleaseChurn(t *testing.T) {
	const capacity = 4
	tracker := NewCapacityTracker(capacity, nil)
	key := testKey("doc-1")

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				res, err := tracker.Reserve(key)
				if err != nil {
					continue
				}
				avail := tracker.Availability(key)
				if avail.Booked < 0 || avail.Booked > capacity {
					t.Errorf("invariant violated: booked=%d capacity=%d", avail.Booked, capacity)
				}
				if err := tracker.Release(res); err != nil {
					t.Errorf("release failed: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, tracker.Availability(key).Booked)
}

// Package scheduling tracks booked-vs-capacity counts per doctor per day.
//
// Capacity is a counter, not a row scan: availability queries and reservation
// decisions are O(1) and serialized per slot, so two concurrent bookings can
// never both take the last unit of a doctor's day.
package scheduling

import "time"

// DayFormat is the calendar-day encoding used in slot keys and storage.
const DayFormat = "2006-01-02"

// SlotKey identifies one capacity bucket: a doctor's calendar day (UTC).
type SlotKey struct {
	DoctorID string
	Day      string
}

// NewSlotKey derives the slot key for an appointment time.
func NewSlotKey(doctorID string, at time.Time) SlotKey {
	return SlotKey{DoctorID: doctorID, Day: at.UTC().Format(DayFormat)}
}

// String renders the key for logs and Redis keys.
func (k SlotKey) String() string {
	return k.DoctorID + "/" + k.Day
}

// Availability is a read-only snapshot of one slot's counter.
type Availability struct {
	Capacity  int `json:"capacity"`
	Booked    int `json:"booked"`
	Available int `json:"available"`
}

// Reservation is one unit of booked capacity bound to a single booking
// attempt. It must be released exactly once; the tracker flags double
// releases instead of letting the counter go negative.
type Reservation struct {
	key      SlotKey
	released bool
}

// Key returns the slot this reservation holds a unit of.
func (r *Reservation) Key() SlotKey {
	return r.key
}

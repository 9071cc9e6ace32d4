package appointment

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusPending, StatusApproved, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusConfirmed, false},
		{StatusPending, StatusCompleted, false},
		{StatusApproved, StatusConfirmed, true},
		{StatusApproved, StatusCancelled, true},
		{StatusApproved, StatusCompleted, false},
		{StatusApproved, StatusPending, false},
		{StatusConfirmed, StatusCompleted, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusConfirmed, StatusApproved, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCompleted, StatusPending, false},
		{StatusCancelled, StatusPending, false},
		{StatusCancelled, StatusApproved, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.from)+"_to_"+string(tc.to), func(t *testing.T) {
			assert.Equal(t, tc.allowed, CanTransition(tc.from, tc.to))
			err := CheckTransition(tc.from, tc.to)
			if tc.allowed {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidTransition)
			}
		})
	}
}

func TestCheckTransitionErrorNamesStates(t *testing.T) {
	err := CheckTransition(StatusCompleted, StatusPending)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.Contains(t, err.Error(), "COMPLETED")
	assert.Contains(t, err.Error(), "PENDING")
}

func TestNormalizeStatus(t *testing.T) {
	assert.Equal(t, StatusPending, NormalizeStatus("SCHEDULED"))
	assert.Equal(t, StatusPending, NormalizeStatus("scheduled"))
	assert.Equal(t, StatusCancelled, NormalizeStatus("REJECTED"))
	assert.Equal(t, StatusApproved, NormalizeStatus("APPROVED"))
	assert.Equal(t, StatusConfirmed, NormalizeStatus(" confirmed "))
	assert.Equal(t, StatusPending, NormalizeStatus("BOGUS"))
	assert.Equal(t, StatusPending, NormalizeStatus(""))
}

func TestTerminalStates(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusApproved.Terminal())
	assert.False(t, StatusConfirmed.Terminal())
}

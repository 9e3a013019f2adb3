package capacity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/connect-hub/backend/internal/models"
)

func intPtr(n int) *int { return &n }

func TestLedger(t *testing.T) {
	tests := []struct {
		name  string
		max   *int
		taken int
		want  Availability
	}{
		{"unbounded nil", nil, 7, Availability{Taken: 7, Unbounded: true}},
		{"unbounded zero", intPtr(0), 2, Availability{Taken: 2, Unbounded: true}},
		{"unbounded negative", intPtr(-5), 0, Availability{Taken: 0, Unbounded: true}},
		{"room left", intPtr(10), 4, Availability{Taken: 4, Capacity: intPtr(10), Available: 6}},
		{"exactly full", intPtr(3), 3, Availability{Taken: 3, Capacity: intPtr(3), Available: 0, IsFull: true}},
		{"over capacity", intPtr(2), 5, Availability{Taken: 5, Capacity: intPtr(2), Available: 0, IsFull: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Ledger(&models.Event{MaxParticipants: tt.max}, tt.taken)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFits(t *testing.T) {
	a := Ledger(&models.Event{MaxParticipants: intPtr(5)}, 3)
	assert.True(t, a.Fits(0))
	assert.True(t, a.Fits(2))
	assert.False(t, a.Fits(3))

	assert.True(t, Ledger(&models.Event{}, 1000).Fits(1000))
}

func TestLedgerDoesNotAliasEvent(t *testing.T) {
	e := &models.Event{MaxParticipants: intPtr(4)}
	a := Ledger(e, 1)
	*a.Capacity = 99
	assert.Equal(t, 4, *e.MaxParticipants)
}

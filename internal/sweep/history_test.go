package sweep

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/connect-hub/backend/internal/models"
)

func TestHistoryRing(t *testing.T) {
	h := NewHistory(3)
	assert.Nil(t, h.Last())
	for i := 1; i <= 5; i++ {
		h.Add(&models.SweepRun{EventsChecked: i})
	}
	list := h.List()
	assert.Len(t, list, 3)
	assert.Equal(t, 5, list[0].EventsChecked)
	assert.Equal(t, 3, list[2].EventsChecked)
	assert.Equal(t, 5, h.Last().EventsChecked)
}

func TestHistoryPartial(t *testing.T) {
	h := NewHistory(0)
	h.Add(&models.SweepRun{EventsChecked: 1})
	h.Add(&models.SweepRun{EventsChecked: 2})
	list := h.List()
	assert.Len(t, list, 2)
	assert.Equal(t, 2, list[0].EventsChecked)
}

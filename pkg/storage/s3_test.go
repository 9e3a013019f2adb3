package storage

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/connect-hub/backend/internal/models"
)

func TestSweepRunKey(t *testing.T) {
	id := uuid.MustParse("7f1c5a1e-0c2b-4a43-9d3e-1a2b3c4d5e6f")
	loc := time.FixedZone("PDT", -7*60*60)
	run := &models.SweepRun{ID: id, StartedAt: time.Date(2026, 3, 31, 20, 0, 0, 0, loc)}
	assert.Equal(t, "sweeps/2026/04/01/7f1c5a1e-0c2b-4a43-9d3e-1a2b3c4d5e6f.json", SweepRunKey(run))
}

package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/admission-api/internal/models"
	appErrors "github.com/noah-isme/admission-api/pkg/errors"
)

func intPtr(v int) *int { return &v }

type mockOccupancyReader struct {
	occupied map[string]int
	slots    map[string]*int
	reads    int
}

func (m *mockOccupancyReader) Occupancy(ctx context.Context, classID string) (*models.ClassOccupancy, error) {
	m.reads++
	occupied, ok := m.occupied[classID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.ClassOccupancy{
		SchoolClass: models.SchoolClass{ID: classID, Slots: m.slots[classID]},
		Occupied:    occupied,
	}, nil
}

func TestCapacityLedgerHasRoom(t *testing.T) {
	reader := &mockOccupancyReader{
		occupied: map[string]int{"c1": 28},
		slots:    map[string]*int{"c1": intPtr(30)},
	}
	ledger := NewCapacityLedger(reader, zap.NewNop())

	ok, err := ledger.HasRoom(context.Background(), "c1", 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ledger.HasRoom(context.Background(), "c1", 3)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCapacityLedgerFullClass(t *testing.T) {
	reader := &mockOccupancyReader{
		occupied: map[string]int{"c1": 30},
		slots:    map[string]*int{"c1": intPtr(30)},
	}
	ledger := NewCapacityLedger(reader, zap.NewNop())

	ok, err := ledger.HasRoom(context.Background(), "c1", 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCapacityLedgerFailsOpenWithoutSlots(t *testing.T) {
	reader := &mockOccupancyReader{
		occupied: map[string]int{"c1": 500},
		slots:    map[string]*int{"c1": nil},
	}
	ledger := NewCapacityLedger(reader, zap.NewNop())

	ok, err := ledger.HasRoom(context.Background(), "c1", 10)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCapacityLedgerReserveBlocksOverbookingWithStaleStore(t *testing.T) {
	// The store keeps answering 29/30 regardless of this run's writes.
	reader := &mockOccupancyReader{
		occupied: map[string]int{"c1": 29},
		slots:    map[string]*int{"c1": intPtr(30)},
	}
	ledger := NewCapacityLedger(reader, zap.NewNop())

	ok, err := ledger.HasRoom(context.Background(), "c1", 1)
	require.NoError(t, err)
	require.True(t, ok)
	ledger.Reserve("c1")

	ok, err = ledger.HasRoom(context.Background(), "c1", 1)
	require.NoError(t, err)
	assert.False(t, ok, "reserved seat must count even though the store is stale")
}

func TestCapacityLedgerNoDoubleCountOnceStoreCatchesUp(t *testing.T) {
	reader := &mockOccupancyReader{
		occupied: map[string]int{"c1": 28},
		slots:    map[string]*int{"c1": intPtr(30)},
	}
	ledger := NewCapacityLedger(reader, zap.NewNop())

	ok, err := ledger.HasRoom(context.Background(), "c1", 1)
	require.NoError(t, err)
	require.True(t, ok)
	ledger.Reserve("c1")

	// The awaited student create is now visible in the store.
	reader.occupied["c1"] = 29

	occ, err := ledger.Occupancy(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 29, occ.Used, "reservation must not be added on top of a fresh count")

	ok, err = ledger.HasRoom(context.Background(), "c1", 1)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCapacityLedgerRelease(t *testing.T) {
	reader := &mockOccupancyReader{
		occupied: map[string]int{"c1": 29},
		slots:    map[string]*int{"c1": intPtr(30)},
	}
	ledger := NewCapacityLedger(reader, zap.NewNop())

	_, err := ledger.Occupancy(context.Background(), "c1")
	require.NoError(t, err)
	ledger.Reserve("c1")
	ledger.Release("c1")

	ok, err := ledger.HasRoom(context.Background(), "c1", 1)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCapacityLedgerRunsAreIsolated(t *testing.T) {
	// Two overlapping batch runs share the store but not their reservations:
	// starting a new run must not drop seats another run is still holding.
	reader := &mockOccupancyReader{
		occupied: map[string]int{"c1": 29},
		slots:    map[string]*int{"c1": intPtr(30)},
	}
	ledger := NewCapacityLedger(reader, zap.NewNop())

	runA := ledger.Begin()
	ok, err := runA.HasRoom(context.Background(), "c1", 1)
	require.NoError(t, err)
	require.True(t, ok)
	runA.Reserve("c1")

	runB := ledger.Begin()
	ok, err = runB.HasRoom(context.Background(), "c1", 1)
	require.NoError(t, err)
	assert.True(t, ok, "a fresh run starts from store counts")

	ok, err = runA.HasRoom(context.Background(), "c1", 1)
	require.NoError(t, err)
	assert.False(t, ok, "the first run keeps its reservation after another run begins")
}

func TestCapacityLedgerUnknownClass(t *testing.T) {
	ledger := NewCapacityLedger(&mockOccupancyReader{occupied: map[string]int{}}, zap.NewNop())

	_, err := ledger.HasRoom(context.Background(), "missing", 1)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

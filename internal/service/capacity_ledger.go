package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/admission-api/internal/models"
	appErrors "github.com/noah-isme/admission-api/pkg/errors"
)

type occupancyReader interface {
	Occupancy(ctx context.Context, classID string) (*models.ClassOccupancy, error)
}

// Occupancy is a point-in-time view of one class's seat usage. Total is nil
// for classes without a configured capacity.
type Occupancy struct {
	Used  int  `json:"used"`
	Total *int `json:"total,omitempty"`
}

// CapacityLedger answers seat-availability questions for classes.
//
// Every gating check re-reads the backing store; the only state the ledger
// holds is a per-class count of seats reserved in-process during the current
// run, so a batch of admissions does not overbook between store refreshes.
// Each batch works on its own ledger obtained from Begin, which keeps
// overlapping runs from seeing or clearing one another's reservations.
// This is a single-process guard. The authoritative count always belongs to
// the store, and exactness under concurrent operators requires the store to
// enforce capacity atomically.
type CapacityLedger struct {
	classes occupancyReader
	logger  *zap.Logger

	mu       sync.Mutex
	baseline map[string]int
	reserved map[string]int
}

// NewCapacityLedger constructs a CapacityLedger.
func NewCapacityLedger(classes occupancyReader, logger *zap.Logger) *CapacityLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CapacityLedger{
		classes:  classes,
		logger:   logger,
		baseline: make(map[string]int),
		reserved: make(map[string]int),
	}
}

// Occupancy returns the class's seat usage, folding in seats reserved by this
// process. The effective usage is the larger of the fresh store count and the
// count observed when the class was first consulted plus in-process
// reservations, so a store that lags behind this run's own writes cannot
// understate usage, and the counter is not double-applied once those writes
// become visible.
func (l *CapacityLedger) Occupancy(ctx context.Context, classID string) (Occupancy, error) {
	occ, err := l.classes.Occupancy(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Occupancy{}, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return Occupancy{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read class occupancy")
	}

	l.mu.Lock()
	if _, ok := l.baseline[classID]; !ok {
		l.baseline[classID] = occ.Occupied
	}
	used := occ.Occupied
	if pinned := l.baseline[classID] + l.reserved[classID]; pinned > used {
		used = pinned
	}
	l.mu.Unlock()

	if occ.Overbooked() {
		l.logger.Warn("class overbooked in store",
			zap.String("class_id", classID),
			zap.Int("occupied", occ.Occupied),
			zap.Intp("slots", occ.Slots))
	}

	return Occupancy{Used: used, Total: occ.Slots}, nil
}

// HasRoom reports whether additional students fit into the class. Classes
// without a configured capacity fail open, matching the legacy lenient
// behaviour.
func (l *CapacityLedger) HasRoom(ctx context.Context, classID string, additional int) (bool, error) {
	if additional <= 0 {
		additional = 1
	}
	occ, err := l.Occupancy(ctx, classID)
	if err != nil {
		return false, err
	}
	if occ.Total == nil {
		return true, nil
	}
	return occ.Used+additional <= *occ.Total, nil
}

// Reserve optimistically counts a seat as taken for the remainder of this
// process's run. Call after a successful class assignment.
func (l *CapacityLedger) Reserve(classID string) {
	l.mu.Lock()
	l.reserved[classID]++
	l.mu.Unlock()
}

// Release returns previously reserved seats, used when a later step of an
// assignment fails after the seat was reserved.
func (l *CapacityLedger) Release(classID string) {
	l.mu.Lock()
	if l.reserved[classID] > 0 {
		l.reserved[classID]--
	}
	l.mu.Unlock()
}

// Begin opens a run-scoped ledger over the same store, with no baselines or
// reservations. Checks start from fresh store counts and reservations stay
// private to the run.
func (l *CapacityLedger) Begin() seatLedger {
	return NewCapacityLedger(l.classes, l.logger)
}

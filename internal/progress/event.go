// Package progress defines the event structures emitted during analysis runs.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart     Stage = "RUN_START"
	StageCacheHit     Stage = "CACHE_HIT"
	StageSearchDone   Stage = "SEARCH_DONE"
	StagePageScraped  Stage = "PAGE_SCRAPED"
	StageAnalyzeBatch Stage = "ANALYZE_BATCH"
	StagePersisted    Stage = "PERSISTED"
	StageRunDone      Stage = "RUN_DONE"
	StageRunError     Stage = "RUN_ERROR"
)

// Event captures a single milestone of an analysis run.
type Event struct {
	// RunID uniquely identifies a run using the 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which lifecycle milestone occurred.
	Stage Stage
	// Site scopes page events to the host the content came from.
	Site string
	// URL is the optional page URL; it should not contain credentials.
	URL string
	// Pages carries a page-count delta (search hits, scraped pages).
	Pages int64
	// Reviews carries a reviews-seen delta for the stage.
	Reviews int64
	// NewReviews counts reviews that survived dedup and were persisted.
	NewReviews int64
	// Dur captures execution latency for scrapes, analysis batches, and
	// completed runs.
	Dur time.Duration
	// Note lets emitters attach low-volume debug context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageCacheHit, StageSearchDone, StageAnalyzeBatch,
		StagePersisted, StageRunDone, StageRunError:
	case StagePageScraped:
		if e.Site == "" {
			return errors.New("page scraped requires site")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	if e.Pages < 0 || e.Reviews < 0 || e.NewReviews < 0 {
		return errors.New("counters must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID for stores and logs.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}

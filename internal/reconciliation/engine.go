package reconciliation

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fortuna/hockeysync/internal/ingest/lookup"
	"github.com/fortuna/hockeysync/internal/store"
)

// Engine applies the lookup-driven normalization shared by every source:
// club resolution, gender derivation and completion state. It is safe for
// concurrent use.
type Engine struct {
	tables  *lookup.Tables
	metrics counters
}

type counters struct {
	matches   atomic.Int64
	completed atomic.Int64
	scored    atomic.Int64
	unknown   atomic.Int64
}

// Metrics is a snapshot of what the engine has normalized so far.
type Metrics struct {
	Matches       int64 `json:"matches"`
	Completed     int64 `json:"completed"`
	Scored        int64 `json:"scored"`
	UnknownGender int64 `json:"unknown_gender"`
}

// NewEngine creates an engine over tables. Nil tables use the built-in defaults.
func NewEngine(tables *lookup.Tables) *Engine {
	if tables == nil {
		tables = lookup.Default()
	}
	return &Engine{tables: tables}
}

// Tables returns the lookup tables the engine reads.
func (e *Engine) Tables() *lookup.Tables {
	return e.tables
}

// Gender derives a gender from competition metadata.
func (e *Engine) Gender(text string) store.Gender {
	return e.tables.Gender(text)
}

// Club resolves a club by display name. Blank names mean the team has no club.
func (e *Engine) Club(name string) *store.Club {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	return &store.Club{ID: e.tables.ClubID(name), Name: name}
}

// Record counts a fully built match.
func (e *Engine) Record(m *store.Match) {
	e.metrics.matches.Add(1)
	if m.Completed {
		e.metrics.completed.Add(1)
	}
	if m.Score != "" {
		e.metrics.scored.Add(1)
	}
	if m.Gender == store.GenderUnknown {
		e.metrics.unknown.Add(1)
	}
}

// Metrics returns the current counters.
func (e *Engine) Metrics() Metrics {
	return Metrics{
		Matches:       e.metrics.matches.Load(),
		Completed:     e.metrics.completed.Load(),
		Scored:        e.metrics.scored.Load(),
		UnknownGender: e.metrics.unknown.Load(),
	}
}

// FormatScore renders "H - A", with " (HS - AS SO)" appended when both
// shootout values are present. It reports false when either regular score
// is missing. Zero is a real score.
func FormatScore(home, away, homeShootout, awayShootout *int) (string, bool) {
	if home == nil || away == nil {
		return "", false
	}
	score := fmt.Sprintf("%d - %d", *home, *away)
	if homeShootout != nil && awayShootout != nil {
		score += fmt.Sprintf(" (%d - %d SO)", *homeShootout, *awayShootout)
	}
	return score, true
}

// ApplyStatus marks m completed or not. The score is only recorded for
// completed matches.
func ApplyStatus(m *store.Match, completed bool, score string) {
	m.SetCompleted(completed)
	if completed {
		m.SetScore(score)
	}
}

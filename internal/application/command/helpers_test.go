package command

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sqlearn/progress-hub/internal/domain/achievement"
	"github.com/sqlearn/progress-hub/internal/domain/shared"
	"github.com/sqlearn/progress-hub/internal/infrastructure/persistence/memory"
	"github.com/sqlearn/progress-hub/pkg/logger"
	"github.com/sqlearn/progress-hub/pkg/timeutil"
)

var testNow = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// recorder collects published events.
type recorder struct {
	mu     sync.Mutex
	events []shared.Event
}

func (r *recorder) Publish(e shared.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) ofType(t shared.EventType) []shared.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []shared.Event
	for _, e := range r.events {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDs) GenerateID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("entry-%d", g.n)
}

type fixture struct {
	store    *memory.Store
	events   *recorder
	updater  *StatsUpdater
	ledger   *XPLedger
	streaks  *StreakTracker
	checker  *AchievementChecker
	lessons  *LessonCommands
	registry *achievement.Registry
}

func newFixture(t *testing.T, defs ...achievement.Definition) *fixture {
	t.Helper()

	store := memory.NewStore()
	events := &recorder{}
	log := logger.Nop()
	clock := timeutil.FixedClock{T: testNow}

	updater := NewStatsUpdater(store, StatsUpdaterConfig{MaxAttempts: 50, Clock: clock})
	ledger := NewXPLedger(updater, events, log, XPLedgerConfig{IDGenerator: &seqIDs{}})

	registry := achievement.DefaultRegistry()
	if len(defs) > 0 {
		var err error
		registry, err = achievement.NewRegistry(defs...)
		if err != nil {
			t.Fatalf("registry: %v", err)
		}
	}

	return &fixture{
		store:    store,
		events:   events,
		updater:  updater,
		ledger:   ledger,
		streaks:  NewStreakTracker(updater, time.UTC, events, log),
		checker:  NewAchievementChecker(registry, store, store, updater, ledger, events, log),
		lessons:  NewLessonCommands(store, memory.NewLocker(), clock, log),
		registry: registry,
	}
}

// Package memory provides in-process implementations of the storage ports.
// It is used by tests and by single-instance deployments without a database.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/sqlearn/progress-hub/internal/domain/achievement"
	"github.com/sqlearn/progress-hub/internal/domain/progress"
	"github.com/sqlearn/progress-hub/internal/domain/shared"
	"github.com/sqlearn/progress-hub/pkg/timeutil"
)

// Store keeps stats, ledger, lesson progress and achievements in maps.
// All values are copied on the way in and out.
type Store struct {
	mu           sync.RWMutex
	stats        map[string]*progress.UserStats
	ledger       map[string][]progress.LedgerEntry
	lessons      map[string]map[string]*progress.ProgressRecord
	achievements map[string][]achievement.Record
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		stats:        make(map[string]*progress.UserStats),
		ledger:       make(map[string][]progress.LedgerEntry),
		lessons:      make(map[string]map[string]*progress.ProgressRecord),
		achievements: make(map[string][]achievement.Record),
	}
}

// Compile-time interface checks.
var (
	_ progress.StatsRepository    = (*Store)(nil)
	_ progress.LedgerRepository   = (*Store)(nil)
	_ progress.ProgressRepository = (*Store)(nil)
	_ achievement.Repository      = (*Store)(nil)
)

// ══════════════════════════════════════════════════════════════════════════════
// STATS
// ══════════════════════════════════════════════════════════════════════════════

// GetStats implements progress.StatsRepository.
func (s *Store) GetStats(ctx context.Context, userID string) (*progress.UserStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.stats[userID]
	if !ok {
		return nil, shared.ErrUserStatsNotFound
	}
	return st.Clone(), nil
}

// SaveStats implements progress.StatsRepository.
func (s *Store) SaveStats(ctx context.Context, stats *progress.UserStats, expectedVersion int64, entries ...progress.LedgerEntry) error {
	if err := ctx.Err(); err != nil {
		return shared.Persistence("progress", "SaveStats", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var current int64
	if st, ok := s.stats[stats.UserID]; ok {
		current = st.Version
	}
	if current != expectedVersion {
		return shared.ErrStatsVersionStale
	}

	stats.Version = expectedVersion + 1
	s.stats[stats.UserID] = stats.Clone()
	s.ledger[stats.UserID] = append(s.ledger[stats.UserID], entries...)
	return nil
}

// ListActiveOn implements progress.StatsRepository.
func (s *Store) ListActiveOn(ctx context.Context, day timeutil.Date) ([]*progress.UserStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*progress.UserStats
	for _, st := range s.stats {
		if st.CurrentStreak > 0 && st.LastActivityDate != nil && *st.LastActivityDate == day {
			out = append(out, st.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// ListLedger implements progress.LedgerRepository.
func (s *Store) ListLedger(ctx context.Context, userID string, limit int) ([]progress.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.ledger[userID]
	out := make([]progress.LedgerEntry, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, all[i])
	}
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LESSON PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

// GetProgress implements progress.ProgressRepository.
func (s *Store) GetProgress(ctx context.Context, userID, lessonID string) (*progress.ProgressRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.lessons[userID][lessonID]
	if !ok {
		return nil, shared.ErrProgressNotFound
	}
	return rec.Clone(), nil
}

// SaveProgress implements progress.ProgressRepository.
func (s *Store) SaveProgress(ctx context.Context, rec *progress.ProgressRecord) error {
	if err := ctx.Err(); err != nil {
		return shared.Persistence("progress", "SaveProgress", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byLesson, ok := s.lessons[rec.UserID]
	if !ok {
		byLesson = make(map[string]*progress.ProgressRecord)
		s.lessons[rec.UserID] = byLesson
	}
	byLesson[rec.LessonID] = rec.Clone()
	return nil
}

// ListProgress implements progress.ProgressRepository.
func (s *Store) ListProgress(ctx context.Context, userID string) ([]*progress.ProgressRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*progress.ProgressRecord, 0, len(s.lessons[userID]))
	for _, rec := range s.lessons[userID] {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LessonID < out[j].LessonID })
	return out, nil
}

// DeleteProgress implements progress.ProgressRepository.
func (s *Store) DeleteProgress(ctx context.Context, userID, lessonID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.lessons[userID], lessonID)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENTS
// ══════════════════════════════════════════════════════════════════════════════

// InsertIfAbsent implements achievement.Repository. The check and the
// append happen under one write lock.
func (s *Store) InsertIfAbsent(ctx context.Context, rec achievement.Record) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, shared.Persistence("achievement", "InsertIfAbsent", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.achievements[rec.UserID] {
		if r.AchievementID == rec.AchievementID {
			return false, nil
		}
	}
	s.achievements[rec.UserID] = append(s.achievements[rec.UserID], rec)
	return true, nil
}

// ListByUser implements achievement.Repository.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]achievement.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]achievement.Record(nil), s.achievements[userID]...), nil
}

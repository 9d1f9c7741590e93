package achievement

import (
	"fmt"
	"sort"

	"github.com/sqlearn/progress-hub/internal/domain/shared"
)

// Registry - неизменяемый набор определений, отсортированный по ID.
type Registry struct {
	defs []Definition
	byID map[string]int
}

// NewRegistry проверяет определения и строит реестр.
// Повторяющиеся ID отклоняются.
func NewRegistry(defs ...Definition) (*Registry, error) {
	sorted := make([]Definition, len(defs))
	copy(sorted, defs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	byID := make(map[string]int, len(sorted))
	for i, d := range sorted {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, dup := byID[d.ID]; dup {
			return nil, shared.WrapError("achievement", "NewRegistry", shared.ErrAlreadyExists, "id "+d.ID, shared.ErrDuplicateDefinition)
		}
		byID[d.ID] = i
	}
	return &Registry{defs: sorted, byID: byID}, nil
}

// Definitions возвращает копию определений в порядке ID.
func (r *Registry) Definitions() []Definition {
	out := make([]Definition, len(r.defs))
	copy(out, r.defs)
	return out
}

// Len - количество определений.
func (r *Registry) Len() int {
	return len(r.defs)
}

// Get ищет определение по ID.
func (r *Registry) Get(id string) (Definition, bool) {
	i, ok := r.byID[id]
	if !ok {
		return Definition{}, false
	}
	return r.defs[i], true
}

// RuleFailure - правило, которое упало при проверке.
type RuleFailure struct {
	AchievementID string
	Err           error
}

// Pending проверяет ещё не полученные достижения по порядку ID и
// возвращает те, чьи правила выполнены. Паника или ошибка правила
// не прерывает проверку остальных; такие правила попадают в failures.
func (r *Registry) Pending(snap Snapshot, earned map[string]struct{}) (matched []Definition, failures []RuleFailure) {
	for _, d := range r.defs {
		if _, ok := earned[d.ID]; ok {
			continue
		}
		ok, err := evaluateSafely(d, snap)
		if err != nil {
			failures = append(failures, RuleFailure{AchievementID: d.ID, Err: err})
			continue
		}
		if ok {
			matched = append(matched, d)
		}
	}
	return matched, failures
}

func evaluateSafely(d Definition, snap Snapshot) (ok bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			ok = false
			err = fmt.Errorf("rule %s panicked: %v", d.ID, rec)
		}
	}()
	return d.Rule.Evaluate(snap)
}

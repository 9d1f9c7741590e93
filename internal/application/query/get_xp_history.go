package query

import (
	"context"

	"github.com/sqlearn/progress-hub/internal/domain/progress"
	"github.com/sqlearn/progress-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET XP HISTORY QUERY
// Последние движения XP из журнала.
// ══════════════════════════════════════════════════════════════════════════════

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

// GetXPHistoryQuery содержит параметры запроса.
type GetXPHistoryQuery struct {
	UserID string

	// Limit - количество записей (по умолчанию 20, максимум 200).
	Limit int
}

// Validate проверяет корректность параметров.
func (q *GetXPHistoryQuery) Validate() error {
	id, err := shared.NormalizeID("progress", "GetXPHistory", "user_id", q.UserID)
	if err != nil {
		return err
	}
	q.UserID = id
	if q.Limit <= 0 {
		q.Limit = defaultHistoryLimit
	}
	if q.Limit > maxHistoryLimit {
		q.Limit = maxHistoryLimit
	}
	return nil
}

// GetXPHistoryHandler обрабатывает запрос.
type GetXPHistoryHandler struct {
	ledger progress.LedgerRepository
}

// NewGetXPHistoryHandler создаёт обработчик.
func NewGetXPHistoryHandler(ledger progress.LedgerRepository) *GetXPHistoryHandler {
	return &GetXPHistoryHandler{ledger: ledger}
}

// Handle возвращает записи журнала, новые первыми.
func (h *GetXPHistoryHandler) Handle(ctx context.Context, q GetXPHistoryQuery) ([]progress.LedgerEntry, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	entries, err := h.ledger.ListLedger(ctx, q.UserID, q.Limit)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []progress.LedgerEntry{}
	}
	return entries, nil
}

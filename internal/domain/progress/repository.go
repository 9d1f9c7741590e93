package progress

import (
	"context"

	"github.com/sqlearn/progress-hub/pkg/timeutil"
)

// StatsRepository - хранилище UserStats и журнала XP.
type StatsRepository interface {
	// GetStats возвращает статистику или shared.ErrUserStatsNotFound.
	GetStats(ctx context.Context, userID string) (*UserStats, error)

	// SaveStats сохраняет статистику, если версия в хранилище равна
	// expectedVersion (0 - записи ещё нет). При успехе stats.Version
	// увеличивается на 1, а entries добавляются в журнал в той же транзакции.
	// При несовпадении версии возвращает ошибку с shared.ErrConflict.
	SaveStats(ctx context.Context, stats *UserStats, expectedVersion int64, entries ...LedgerEntry) error

	// ListActiveOn возвращает пользователей с ненулевой серией,
	// последняя активность которых приходится на day.
	ListActiveOn(ctx context.Context, day timeutil.Date) ([]*UserStats, error)
}

// LedgerRepository - чтение журнала XP.
type LedgerRepository interface {
	// ListLedger возвращает последние записи, новые первыми.
	ListLedger(ctx context.Context, userID string, limit int) ([]LedgerEntry, error)
}

// ProgressRepository - хранилище прогресса по урокам.
type ProgressRepository interface {
	// GetProgress возвращает прогресс или shared.ErrProgressNotFound.
	GetProgress(ctx context.Context, userID, lessonID string) (*ProgressRecord, error)

	// SaveProgress создаёт или обновляет запись.
	SaveProgress(ctx context.Context, rec *ProgressRecord) error

	// ListProgress возвращает все уроки пользователя, отсортированные по LessonID.
	ListProgress(ctx context.Context, userID string) ([]*ProgressRecord, error)

	// DeleteProgress удаляет запись; отсутствие записи не ошибка.
	DeleteProgress(ctx context.Context, userID, lessonID string) error
}

// UserLocker сериализует агрегатные операции одного пользователя.
type UserLocker interface {
	// Lock блокирует пользователя до вызова unlock или отмены ctx.
	Lock(ctx context.Context, userID string) (unlock func(), err error)
}

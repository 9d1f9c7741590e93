// Package progress содержит доменную модель прогресса ученика в SQL-курсе.
//
// Пакет определяет:
//
//   - Калькулятор уровней: LevelForXP, XPThresholdForLevel, LevelProgressFor
//   - Сущности: UserStats (XP, уровень, серии, счётчики) и ProgressRecord (урок)
//   - Записи журнала XP: LedgerEntry
//   - Таблицу наград: Rewards
//   - Интерфейсы репозиториев и блокировки пользователя
//
// # Инварианты
//
// Level всегда выводится из TotalXP и не устанавливается напрямую.
// LongestStreak никогда не меньше CurrentStreak. FirstCompletedAt
// устанавливается один раз. Множество ExercisesCompleted только растёт.
//
// # Конкурентность
//
// UserStats несёт поле Version. Репозиторий сохраняет статистику только
// если версия в хранилище совпадает с ожидаемой (compare-and-swap), так что
// два параллельных начисления XP не теряют обновление.
package progress

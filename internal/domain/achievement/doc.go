// Package achievement содержит декларативный движок достижений.
//
// Достижение описывается значением Definition: идентификатор, награда,
// редкость и правило Rule (тег вида + порог). Правила чистые: они
// вычисляются по неизменяемому снимку Snapshot и не обращаются к хранилищу.
//
// Registry хранит определения, отсортированные по ID, поэтому порядок
// проверки детерминирован. Реестр создаётся явно (NewRegistry, LoadRegistry
// или DefaultRegistry) и передаётся в обработчики при создании.
//
// Уникальность Record по (UserID, AchievementID) обеспечивает репозиторий
// атомарной вставкой InsertIfAbsent, а не предварительной проверкой.
package achievement

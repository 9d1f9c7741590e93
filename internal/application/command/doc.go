// Package command contains write operations (CQRS - Commands) of the
// progress engine: the XP ledger, the streak tracker, the achievement
// checker and the lesson-level commands.
package command

package shared

import (
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// MaxIDLength bounds user, lesson and exercise identifiers.
const MaxIDLength = 128

// NormalizeID trims an identifier and checks it is non-empty and bounded.
// The returned error wraps ErrInvalidID.
func NormalizeID(domain, op, field, raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", NewDomainError(domain, op, ErrInvalidID, field+" is required")
	}
	if len(id) > MaxIDLength {
		return "", NewDomainError(domain, op, ErrInvalidID, field+" is too long")
	}
	return id, nil
}

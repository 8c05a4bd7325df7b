package persistence

import (
	"errors"
	"strings"

	"github.com/invoicing/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// isDuplicateKey reports whether err is a unique constraint violation.
// Dialects without error translation are matched on their message.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}

// immutableWrite turns a write rejected by the immutability triggers into
// the domain error. Other errors come back unchanged.
func immutableWrite(err error) error {
	if err == nil || !strings.Contains(err.Error(), shared.CodeImmutableRecordViolation) {
		return err
	}
	msg := err.Error()
	if i := strings.Index(msg, shared.CodeImmutableRecordViolation+": "); i >= 0 {
		msg = msg[i+len(shared.CodeImmutableRecordViolation)+2:]
		if j := strings.Index(msg, " (SQLSTATE"); j > 0 {
			msg = msg[:j]
		}
	}
	return shared.NewDomainError(shared.CodeImmutableRecordViolation, msg)
}

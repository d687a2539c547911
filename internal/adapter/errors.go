package adapter

import (
	"errors"
	"fmt"
)

// ValidationError reports a locally rejected value. It is raised before any
// network call and never reaches the backend.
type ValidationError struct {
	FieldID string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("adapter: invalid value for %s: %s", e.FieldID, e.Message)
}

// MappingError reports an edit whose field id has no backend counterpart.
// Swallowing it would silently drop the user's change, so callers must
// surface it.
type MappingError struct {
	FieldID string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("adapter: no backend mapping for field %s", e.FieldID)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsMapping reports whether err is (or wraps) a MappingError.
func IsMapping(err error) bool {
	var me *MappingError
	return errors.As(err, &me)
}

package error_classifier

import (
	"errors"
	"fmt"
	"strings"
)

// GenerationError is what callers see when a generation could not be started
// or did not complete. Error returns the user facing remediation message.
type GenerationError struct {
	Category Category
	Message  string
	Err      error
}

func (e *GenerationError) Error() string {
	return e.Message
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

func (e *GenerationError) Is(target error) bool {
	t, ok := target.(*GenerationError)
	if !ok {
		return false
	}

	return t.Category == "" || t.Category == e.Category
}

func NewValidationError(message string) *GenerationError {
	return &GenerationError{Category: CategoryValidation, Message: message}
}

// NewConfigurationError composes every preference validation error into one message.
func NewConfigurationError(validationErrors []string) *GenerationError {
	return NewValidationError(fmt.Sprintf("Configuration error:\n• %s\n\nPlease check your preferences.",
		strings.Join(validationErrors, "\n• ")))
}

func NewEmptyResponseError() *GenerationError {
	return &GenerationError{Category: CategoryEmptyResponse, Message: EmptyResponseMessage}
}

// Wrap classifies err with c and keeps err as the cause.
func Wrap(c Classifier, err error) *GenerationError {
	classification := c.Classify(err)

	return &GenerationError{
		Category: classification.Category,
		Message:  classification.Message,
		Err:      err,
	}
}

// CategoryOf returns the category of a GenerationError anywhere in err's chain.
func CategoryOf(err error) Category {
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr.Category
	}

	return CategoryUnknown
}

package app

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrEmptyDocument        = errors.New("document has no extractable text")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrRequestFailed        = errors.New("request failed")
)

const (
	StepLoad  = "load"
	StepSplit = "split"
	StepIndex = "index"
)

// IngestionError reports which step of document processing failed.
type IngestionError struct {
	Step string
	Err  error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("document %s failed: %v", e.Step, e.Err)
}

func (e *IngestionError) Unwrap() error {
	return e.Err
}

package wizard

import (
	"errors"
	"fmt"
)

var (
	ErrIncompleteStep   = errors.New("please complete this step before continuing")
	ErrNotOnLastStep    = errors.New("orders can only be submitted from the photos step")
	ErrTooFewImages     = fmt.Errorf("please upload at least %d pictures", MinImages)
	ErrImageIndex       = errors.New("no selected image at that position")
	ErrSubmitInProgress = errors.New("an order is already being submitted")
	ErrNoWizard         = errors.New("no order in progress")
	ErrNotATextStep     = errors.New("step does not take a text value")
	ErrMissingIdentity  = errors.New("user identity is required")
)

// ValidationError is a field-level problem found before anything leaves the
// process.
type ValidationError struct {
	Step    Step
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ImageError means a selected file could not be processed.
type ImageError struct {
	Filename string
	Err      error
}

func (e *ImageError) Error() string {
	return fmt.Sprintf("could not process %s: %v", e.Filename, e.Err)
}

func (e *ImageError) Unwrap() error { return e.Err }

// LimitError means adding photos would exceed what one order may hold.
type LimitError struct {
	Limit string
}

func (e *LimitError) Error() string {
	return "an order can hold at most " + e.Limit
}

// UploadError means storing a processed file failed. Earlier files of the
// same submit may already be in the bucket; they are not cleaned up.
type UploadError struct {
	Filename string
	Err      error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload failed for %s: %v", e.Filename, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// PersistError means the order record could not be written.
type PersistError struct {
	Err error
}

func (e *PersistError) Error() string {
	return "database error: could not save your order"
}

func (e *PersistError) Unwrap() error { return e.Err }

package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// Configuration error codes (C100-C199).
//
// All of these are fatal at startup: a process never serves queries against
// a definition set that failed validation.
const (
	// KPI definition errors (C101-C119)
	ErrDuplicateKey      = "C101" // KPI key defined twice
	ErrDanglingParent    = "C102" // parent_key names no known KPI
	ErrLevelOutOfRange   = "C103" // level not in 1..3
	ErrLevelMismatch     = "C104" // child level != parent level + 1
	ErrParentCycle       = "C105" // cycle in parent chain
	ErrEmptyNumerator    = "C106" // formula has no numerator terms
	ErrEmptySelector     = "C107" // aggregate with no line and no column
	ErrRootWithParent    = "C108" // level-1 KPI names a parent
	ErrChildWithoutParent = "C109" // level-2/3 KPI without parent

	// Scope errors (C120-C129)
	ErrDuplicateScope   = "C120" // scope id defined twice
	ErrUnknownDimension = "C121" // scope names an unknown entity dimension
)

// ConfigError represents a definition-set validation error.
type ConfigError struct {
	Code    string `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e ConfigError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ConfigErrors aggregates every validation failure in a definition set so a
// misconfigured tree surfaces all its problems at once.
type ConfigErrors []ConfigError

func (e ConfigErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}

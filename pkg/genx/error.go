package genx

import (
	"errors"
	"fmt"
)

var (
	// ErrNoCall is returned when a model answers without calling the tool.
	ErrNoCall = errors.New("genx: model did not call the tool")

	// ErrTruncated is returned when a model stops at the token limit.
	ErrTruncated = errors.New("genx: generate truncated")
)

// BlockedError is returned when a model refuses to answer.
type BlockedError struct {
	Usage   Usage
	Refusal string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("genx: generate blocked: %s", e.Refusal)
}

// Blocked returns a *BlockedError.
func Blocked(usage Usage, refusal string) error {
	return &BlockedError{Usage: usage, Refusal: refusal}
}

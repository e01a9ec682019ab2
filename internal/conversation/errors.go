package conversation

import (
	"errors"
	"fmt"
)

// Turn outcomes the user can recover from by sending a different message.
var (
	ErrTranslationEmpty   = errors.New("no symptoms identified")
	ErrNoPendingQuestion  = errors.New("no pending question")
	ErrEmptyAnswer        = errors.New("empty answer")
	ErrUnrecognizedAnswer = errors.New("answer not recognized")
	// ErrOracle wraps a failed differential request.
	ErrOracle = errors.New("oracle error")

	// ErrSessionNotFound is returned by stores for unknown users.
	ErrSessionNotFound = errors.New("session not found")
)

// errUnrecognizedDescription is a free-text answer nothing could be made of.
var errUnrecognizedDescription = fmt.Errorf("%w: free text", ErrUnrecognizedAnswer)

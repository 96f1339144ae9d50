package orchestrator

import (
	"errors"

	"patchgate/internal/delivery"
	"patchgate/internal/patch"
	"patchgate/internal/promote"
	"patchgate/internal/safety"
	"patchgate/internal/stage"
	"patchgate/internal/verify"
)

// Outcome is the terminal result of one apply invocation. The exit-code
// mapping is a stable contract; scripts depend on it.
type Outcome int

const (
	Success Outcome = iota
	GenericError
	InvalidInput
	SafetyViolation
	PatchFailure
	PromoteFailure
	CheckFailed
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case InvalidInput:
		return "invalid input"
	case SafetyViolation:
		return "safety violation"
	case PatchFailure:
		return "patch failure"
	case PromoteFailure:
		return "promote failure"
	case CheckFailed:
		return "check failed"
	default:
		return "error"
	}
}

// ExitCode maps an outcome to the CLI's exit code.
func (o Outcome) ExitCode() int {
	switch o {
	case Success:
		return 0
	case InvalidInput:
		return 2
	case SafetyViolation:
		return 3
	case PatchFailure:
		return 4
	case PromoteFailure:
		return 5
	case CheckFailed:
		return 6
	default:
		return 1
	}
}

// classify routes an error from any pipeline step to its outcome.
func classify(err error) Outcome {
	var (
		pathErr      *safety.PathError
		protectedErr *safety.ProtectedFileError
		contentErr   *safety.ContentError
		escapeErr    *stage.EscapeError
		parseErr     *delivery.ParseError
		patchParse   *patch.ParseError
		protocolErr  *patch.ProtocolError
		hashErr      *patch.HashMismatchError
		zeroErr      *patch.ZeroMatchError
		ambigErr     *patch.AmbiguousError
		checkErr     *verify.CheckError
		promoteErr   *promote.Error
	)
	switch {
	case errors.As(err, &pathErr), errors.As(err, &protectedErr), errors.As(err, &escapeErr):
		return SafetyViolation
	case errors.As(err, &hashErr), errors.As(err, &zeroErr), errors.As(err, &ambigErr):
		return PatchFailure
	case errors.As(err, &contentErr), errors.As(err, &parseErr),
		errors.As(err, &patchParse), errors.As(err, &protocolErr):
		return InvalidInput
	case errors.As(err, &checkErr):
		return CheckFailed
	case errors.As(err, &promoteErr):
		return PromoteFailure
	default:
		return GenericError
	}
}

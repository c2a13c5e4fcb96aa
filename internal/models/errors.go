package models

import (
	"errors"
	"fmt"
)

// ErrorType represents different categories of errors
type ErrorType int

const (
	ErrArchiveFormat ErrorType = iota
	ErrUnsupportedCompression
	ErrIO
	ErrDuplicatePackage
	ErrWrite
	ErrProcessFailed
	ErrOutputMissing
	ErrSigningTimeout
	ErrSignatureInvalid
	ErrConfig
)

// String returns the string representation of ErrorType
func (e ErrorType) String() string {
	switch e {
	case ErrArchiveFormat:
		return "ArchiveFormat"
	case ErrUnsupportedCompression:
		return "UnsupportedCompression"
	case ErrIO:
		return "IO"
	case ErrDuplicatePackage:
		return "DuplicatePackage"
	case ErrWrite:
		return "Write"
	case ErrProcessFailed:
		return "ProcessFailed"
	case ErrOutputMissing:
		return "OutputMissing"
	case ErrSigningTimeout:
		return "SigningTimeout"
	case ErrSignatureInvalid:
		return "SignatureInvalid"
	case ErrConfig:
		return "Config"
	default:
		return "Unknown"
	}
}

// IsSigning reports whether the error type belongs to the signing stage.
func (e ErrorType) IsSigning() bool {
	switch e {
	case ErrProcessFailed, ErrOutputMissing, ErrSigningTimeout, ErrSignatureInvalid:
		return true
	}
	return false
}

// Stage names the build step that produced an error.
type Stage string

const (
	StageConfig  Stage = "config"
	StageParse   Stage = "parse"
	StagePool    Stage = "pool"
	StageIndex   Stage = "index"
	StageRelease Stage = "release"
	StageSign    Stage = "sign"
)

// RepoError represents an error during repository generation
type RepoError struct {
	Type  ErrorType
	Stage Stage
	Path  string
	Err   error
}

// NewError builds a RepoError for the given stage and path.
func NewError(t ErrorType, stage Stage, path string, err error) *RepoError {
	return &RepoError{Type: t, Stage: stage, Path: path, Err: err}
}

// Error implements the error interface
func (e *RepoError) Error() string {
	prefix := fmt.Sprintf("[%s]", e.Type)
	if e.Stage != "" {
		prefix = fmt.Sprintf("[%s/%s]", e.Stage, e.Type)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v", prefix, e.Path, e.Err)
	}
	return fmt.Sprintf("%s %v", prefix, e.Err)
}

// Unwrap returns the wrapped error
func (e *RepoError) Unwrap() error {
	return e.Err
}

// Is matches a bare RepoError target carrying only a Type, so that
// errors.Is(err, &RepoError{Type: ErrWrite}) works through joined errors.
func (e *RepoError) Is(target error) bool {
	t, ok := target.(*RepoError)
	if !ok || t.Err != nil {
		return false
	}
	return t.Type == e.Type
}

// IsType reports whether any error in err's tree is a RepoError of type t.
func IsType(err error, t ErrorType) bool {
	return errors.Is(err, &RepoError{Type: t})
}

// IsSigningError reports whether err came from the signing stage. A signing
// failure leaves a structurally valid, unsigned repository behind.
func IsSigningError(err error) bool {
	var re *RepoError
	if !errors.As(err, &re) {
		return false
	}
	return re.Type.IsSigning()
}

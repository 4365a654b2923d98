// Package rvserr defines the closed set of error kinds the porcelain
// orchestrator returns, plus the exit-code mapping the CLI uses to turn
// them into process exit statuses.
package rvserr

import (
	"errors"
	"fmt"
)

// Kind is one of the error categories a porcelain operation can fail with.
type Kind int

const (
	// KindNone is the zero value; never attached to a real error.
	KindNone Kind = iota
	KindNotARepository
	KindRepositoryCorrupt
	KindInvalidRef
	KindAmbiguousRef
	KindUnknownRev
	KindDirtyWorkingTree
	KindMergeConflict
	KindNothingToCommit
	KindPathOutsideRepo
	KindIndexLocked
	KindWorktreeLocked
	KindWorktreeExists
	KindBranchExists
	KindBranchNotFullyMerged
	KindIOError
	KindUsageError
)

func (k Kind) String() string {
	switch k {
	case KindNotARepository:
		return "NotARepository"
	case KindRepositoryCorrupt:
		return "RepositoryCorrupt"
	case KindInvalidRef:
		return "InvalidRef"
	case KindAmbiguousRef:
		return "AmbiguousRef"
	case KindUnknownRev:
		return "UnknownRev"
	case KindDirtyWorkingTree:
		return "DirtyWorkingTree"
	case KindMergeConflict:
		return "MergeConflict"
	case KindNothingToCommit:
		return "NothingToCommit"
	case KindPathOutsideRepo:
		return "PathOutsideRepo"
	case KindIndexLocked:
		return "IndexLocked"
	case KindWorktreeLocked:
		return "WorktreeLocked"
	case KindWorktreeExists:
		return "WorktreeExists"
	case KindBranchExists:
		return "BranchExists"
	case KindBranchNotFullyMerged:
		return "BranchNotFullyMerged"
	case KindIOError:
		return "IOError"
	case KindUsageError:
		return "UsageError"
	default:
		return "Unknown"
	}
}

// Error wraps an underlying error with a Kind, so callers can use errors.As
// to recover the classification without parsing message text.
type Error struct {
	Kind Kind
	Path string // offending path, set for IOError/PathOutsideRepo
	Ref  string // offending ref/rev, set for InvalidRef/AmbiguousRef/UnknownRev
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error of the given kind wrapping msg.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Err: errors.New(msg)}
}

// Newf builds an *Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Wrap attaches kind to an existing error.
func Wrap(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// WithPath attaches an offending path to an error, returning a new *Error.
func WithPath(kind Kind, path string, err error) *Error {
	return &Error{Kind: kind, Path: path, Err: err}
}

// WithRef attaches an offending ref/rev name to an error.
func WithRef(kind Kind, ref string, err error) *Error {
	return &Error{Kind: kind, Ref: ref, Err: err}
}

// As reports whether err (or something it wraps) is an *Error and returns it.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf extracts the Kind of err, or KindNone if err is not an *Error.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindNone
}

// ExitCode maps an error to an rvs process exit status per the CLI's exit
// code contract: 0 success, 1 usage/expected failure, 128 fatal.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch KindOf(err) {
	case KindNotARepository, KindRepositoryCorrupt:
		return 128
	case KindUnknownRev, KindInvalidRef, KindAmbiguousRef:
		return 128
	default:
		return 1
	}
}

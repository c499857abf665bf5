// Package tbderr is the shared error taxonomy used by every pipeline
// stage (spec.md §7). Every operation that can fail returns a *Error
// tagged with one of the closed set of Kind values below, wrapped
// around its underlying cause with github.com/pkg/errors so a %+v
// format still shows the full chain back to the failing read.
package tbderr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is one tag from the closed error taxonomy of spec.md §7.
type Kind string

const (
	// Source/IO
	KindIORead           Kind = "io-read"
	KindIOSeek           Kind = "io-seek"
	KindIOShort          Kind = "io-short"
	KindOutOfRange       Kind = "out-of-range"
	KindAllocationFailed Kind = "allocation-failed"

	// Classification
	KindNotAMachO        Kind = "not-a-macho"
	KindNotALibrary      Kind = "not-a-library"
	KindNotASharedCache  Kind = "not-a-shared-cache"

	// Mach-O
	KindInvalidCPUType                    Kind = "invalid-cputype"
	KindInvalidSubtype                    Kind = "invalid-subtype"
	KindInvalidLoadCommand                Kind = "invalid-load-command"
	KindInvalidSegment                    Kind = "invalid-segment"
	KindFailedToIterateLoadCommands       Kind = "failed-to-iterate-load-commands"
	KindFailedToIterateSymbols            Kind = "failed-to-iterate-symbols"
	KindContradictaryLoadCommandInfo      Kind = "contradictary-load-command-information"
	KindEmptyInstallationName             Kind = "empty-installation-name"
	KindHasNoUUID                         Kind = "has-no-uuid"

	// Platform (recoverable: the CLI may supply a replacement and retry)
	KindPlatformNotFound      Kind = "platform-not-found"
	KindPlatformNotSupported  Kind = "platform-not-supported"
	KindUnrecognizedPlatform  Kind = "unrecognized-platform"
	KindMultiplePlatforms     Kind = "multiple-platforms"

	// Merge
	KindContradictaryContainerInfo Kind = "contradictary-container-information"
	KindUUIDNotUnique              Kind = "uuid-is-not-unique"

	// Selection/output
	KindNoProvidedArchitectures Kind = "no-provided-architectures"
	KindNoSymbolsOrReexports    Kind = "no-symbols-or-reexports"
	KindWriteFailed             Kind = "write-failed"
	KindAlreadyExists           Kind = "already-exists"
)

// recoverable is the set of kinds the CLI collaborator may resolve by
// supplying additional input (a platform override) and retrying the
// same parse without re-reading the file.
var recoverable = map[Kind]bool{
	KindPlatformNotFound:     true,
	KindPlatformNotSupported: true,
	KindUnrecognizedPlatform: true,
	KindMultiplePlatforms:    true,
}

// Recoverable reports whether k is one of the four platform error
// kinds a caller may resolve by retrying with an explicit platform.
func (k Kind) Recoverable() bool {
	return recoverable[k]
}

// Error pairs a Kind with a human-readable detail and an optional
// wrapped cause.
type Error struct {
	Kind   Kind
	Detail string
	Cause  error
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds a *Error with no wrapped cause.
func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// Newf is New with a formatted detail.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Wrap attaches kind to cause, preserving cause in the chain. If cause
// is nil, Wrap returns nil, matching errors.Wrap's convention so Wrap
// can sit directly in a `return tbderr.Wrap(kind, err, "...")` idiom.
func Wrap(kind Kind, cause error, detail string) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Detail: detail, Cause: errors.WithStack(cause)}
}

// Wrapf is Wrap with a formatted detail.
func Wrapf(kind Kind, cause error, format string, args ...any) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...), Cause: errors.WithStack(cause)}
}

// As reports whether err (or anything it wraps) is a *Error, writing
// it into *target.
func As(err error, target **Error) bool {
	return errors.As(err, target)
}

// Of returns the Kind of err if it (or anything it wraps) is a *Error,
// and false otherwise.
func Of(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Package camerr is the failure taxonomy of the camera session client.
//
// Every native-provider call site maps a non-success status to one Kind and
// keeps the original status code and description on the Error, so nothing
// the library reported is lost on the way up.
package camerr

import (
	"context"
	"errors"
	"fmt"

	"gpcam/internal/provider"
)

// Kind classifies a failure.
type Kind int

const (
	ProviderError Kind = iota
	AbilityLookupFailed
	PortLookupFailed
	DeviceInitFailed
	NotConnected
	EnumerationFailed
	TransferFailed
	SaveFailed
	CaptureFailed
	PreviewUnsupported
	Cancelled
	UnknownModel
	NotFound
	Unsupported
)

func (k Kind) String() string {
	switch k {
	case ProviderError:
		return "provider error"
	case AbilityLookupFailed:
		return "ability lookup failed"
	case PortLookupFailed:
		return "port lookup failed"
	case DeviceInitFailed:
		return "device init failed"
	case NotConnected:
		return "not connected"
	case EnumerationFailed:
		return "enumeration failed"
	case TransferFailed:
		return "transfer failed"
	case SaveFailed:
		return "save failed"
	case CaptureFailed:
		return "capture failed"
	case PreviewUnsupported:
		return "preview unsupported"
	case Cancelled:
		return "cancelled"
	case UnknownModel:
		return "unknown model"
	case NotFound:
		return "not found"
	case Unsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Error is a classified failure. Code and Desc carry the provider status
// when the failure came from the native library.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Code int
	Desc string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Path != "" {
		msg += " [" + e.Path + "]"
	}
	if e.Code != provider.CodeOK {
		msg += fmt.Sprintf(": %s (%d)", e.Desc, e.Code)
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by Kind, so the sentinels below work with
// errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrProvider           = &Error{Kind: ProviderError}
	ErrAbilityLookup      = &Error{Kind: AbilityLookupFailed}
	ErrPortLookup         = &Error{Kind: PortLookupFailed}
	ErrDeviceInit         = &Error{Kind: DeviceInitFailed}
	ErrNotConnected       = &Error{Kind: NotConnected}
	ErrEnumeration        = &Error{Kind: EnumerationFailed}
	ErrTransfer           = &Error{Kind: TransferFailed}
	ErrSave               = &Error{Kind: SaveFailed}
	ErrCapture            = &Error{Kind: CaptureFailed}
	ErrPreviewUnsupported = &Error{Kind: PreviewUnsupported}
	ErrCancelled          = &Error{Kind: Cancelled}
	ErrUnknownModel       = &Error{Kind: UnknownModel}
	ErrNotFound           = &Error{Kind: NotFound}
	ErrUnsupported        = &Error{Kind: Unsupported}
)

// New returns an Error of kind with no underlying cause.
func New(kind Kind, op string) *Error {
	return &Error{Kind: kind, Op: op}
}

// Wrap classifies err as kind. Provider status code and description are
// copied from a wrapped *provider.Error. A provider cancel status or a
// cancelled context always becomes Cancelled. A nil err returns nil.
func Wrap(kind Kind, op string, err error) error {
	return WrapPath(kind, op, "", err)
}

// WrapPath is Wrap with the remote path the operation was working on.
func WrapPath(kind Kind, op, path string, err error) error {
	if err == nil {
		return nil
	}
	var already *Error
	if errors.As(err, &already) {
		return err
	}

	e := &Error{Kind: kind, Op: op, Path: path, Err: err}
	var perr *provider.Error
	if errors.As(err, &perr) {
		e.Code = perr.Code
		e.Desc = provider.Describe(perr.Code)
		if perr.Message != "" {
			e.Desc = perr.Message + ": " + e.Desc
		}
	}
	if provider.IsCancel(err) || errors.Is(err, context.Canceled) {
		e.Kind = Cancelled
	}
	return e
}

// KindOf returns the Kind of err, or ProviderError for an unclassified
// error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if provider.IsCancel(err) || errors.Is(err, context.Canceled) {
		return Cancelled
	}
	return ProviderError
}

// IsCancelled reports a user-initiated abort. It is a normal early exit, not
// a device failure.
func IsCancelled(err error) bool {
	return err != nil && KindOf(err) == Cancelled
}

// CodeOf returns the provider status code carried by err, if any.
func CodeOf(err error) int {
	var e *Error
	if errors.As(err, &e) && e.Code != provider.CodeOK {
		return e.Code
	}
	return provider.CodeOf(err)
}

// Rewrap classifies err as kind even when err is already an *Error, so a
// lower-level failure can be reported as the step that failed. The original
// stays reachable through Unwrap.
func Rewrap(kind Kind, op, path string, err error) error {
	if err == nil {
		return nil
	}
	if IsCancelled(err) {
		kind = Cancelled
	}
	e := &Error{Kind: kind, Op: op, Path: path, Err: err}
	var inner *Error
	var perr *provider.Error
	switch {
	case errors.As(err, &inner):
		e.Code, e.Desc = inner.Code, inner.Desc
	case errors.As(err, &perr):
		e.Code = perr.Code
		e.Desc = provider.Describe(perr.Code)
		if perr.Message != "" {
			e.Desc = perr.Message + ": " + e.Desc
		}
	}
	return e
}

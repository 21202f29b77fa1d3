package provider

import (
	"errors"
	"fmt"
)

// Status codes returned by the native library.
const (
	CodeOK                 = 0
	CodeError              = -1
	CodeBadParameters      = -2
	CodeNoMemory           = -3
	CodeLibrary            = -4
	CodeUnknownPort        = -5
	CodeNotSupported       = -6
	CodeIO                 = -7
	CodeFixedLimitExceeded = -8
	CodeTimeout            = -10
	CodeIOSupportedSerial  = -20
	CodeIOSupportedUSB     = -21
	CodeIOInit             = -31
	CodeIORead             = -34
	CodeIOWrite            = -35
	CodeIOUSBFind          = -52
	CodeIOUSBClaim         = -53
	CodeIOLock             = -60
	CodeCorruptedData      = -102
	CodeFileExists         = -103
	CodeModelNotFound      = -105
	CodeDirectoryNotFound  = -107
	CodeFileNotFound       = -108
	CodeDirectoryExists    = -109
	CodeCameraBusy         = -110
	CodePathNotAbsolute    = -111
	CodeCancel             = -112
	CodeCameraError        = -113
	CodeOSFailure          = -114
	CodeNoSpace            = -115
)

var descriptions = map[int]string{
	CodeOK:                 "No error",
	CodeError:              "Unspecified error",
	CodeBadParameters:      "Bad parameters",
	CodeNoMemory:           "Out of memory",
	CodeLibrary:            "Error loading a library",
	CodeUnknownPort:        "Unknown port",
	CodeNotSupported:       "Unsupported operation",
	CodeIO:                 "I/O problem",
	CodeFixedLimitExceeded: "Fixed limit exceeded",
	CodeTimeout:            "Timeout reading from or writing to the port",
	CodeIOSupportedSerial:  "Serial port not supported",
	CodeIOSupportedUSB:     "USB port not supported",
	CodeIOInit:             "Error initializing the port",
	CodeIORead:             "Error reading from the port",
	CodeIOWrite:            "Error writing to the port",
	CodeIOUSBFind:          "Could not find the requested device on the USB port",
	CodeIOUSBClaim:         "Could not claim the USB device",
	CodeIOLock:             "Could not lock the device",
	CodeCorruptedData:      "Corrupted data",
	CodeFileExists:         "File already exists",
	CodeModelNotFound:      "Unknown model",
	CodeDirectoryNotFound:  "Directory not found",
	CodeFileNotFound:       "File not found",
	CodeDirectoryExists:    "Directory exists",
	CodeCameraBusy:         "I/O in progress",
	CodePathNotAbsolute:    "Path not absolute",
	CodeCancel:             "Cancelled",
	CodeCameraError:        "The camera reported an error",
	CodeOSFailure:          "Unspecified failure of the operating system",
	CodeNoSpace:            "Not enough space",
}

// Describe returns the library's text for a status code.
func Describe(code int) string {
	if s, ok := descriptions[code]; ok {
		return s
	}
	return fmt.Sprintf("Unknown error %d", code)
}

// Error is a non-success status from the native library.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (%s, %d)", e.Message, Describe(e.Code), e.Code)
	}
	return fmt.Sprintf("%s (%d)", Describe(e.Code), e.Code)
}

// Errorf builds an *Error with a formatted message.
func Errorf(code int, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Result converts a raw status code into an error; CodeOK and positive
// values are success.
func Result(code int) error {
	if code >= CodeOK {
		return nil
	}
	return &Error{Code: code}
}

// CodeOf extracts the status code from err, or CodeError when err does not
// carry one.
func CodeOf(err error) int {
	if err == nil {
		return CodeOK
	}
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Code
	}
	return CodeError
}

// IsCancel reports whether err is the library's cancel status.
func IsCancel(err error) bool {
	var perr *Error
	return errors.As(err, &perr) && perr.Code == CodeCancel
}

// IsSessionLost reports whether err means the device went away and the
// handle is no longer usable.
func IsSessionLost(err error) bool {
	var perr *Error
	if !errors.As(err, &perr) {
		return false
	}
	switch perr.Code {
	case CodeIOUSBFind, CodeIOInit:
		return true
	}
	return false
}

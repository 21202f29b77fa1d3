package model

import (
	"strings"
	"time"
)

// This package models what the camera reports about itself and its files,
// plus the import ledger rows kept in sqlite.

type TransportKind int

const (
	TransportSerial TransportKind = iota
	TransportUSB
	TransportDisk
	TransportNetwork
)

func (t TransportKind) String() string {
	switch t {
	case TransportSerial:
		return "serial"
	case TransportUSB:
		return "usb"
	case TransportDisk:
		return "disk"
	case TransportNetwork:
		return "ptpip"
	default:
		return "unknown"
	}
}

// DeviceAbilities are the named capability flags of one camera model,
// resolved once when a session connects.
type DeviceAbilities struct {
	Model string

	SupportsThumbnail    bool
	SupportsDelete       bool
	SupportsUpload       bool
	SupportsMakeDir      bool
	SupportsRemoveDir    bool
	SupportsCaptureImage bool
	SupportsPreview      bool

	Transports []TransportKind
}

// PortDescriptor is a transport endpoint visible to the host.
type PortDescriptor struct {
	Path string
	Name string
	Kind TransportKind
}

// Detection is a supported camera found on a port.
type Detection struct {
	Model string
	Port  string
}

type DownloadStatus int

const (
	DownloadUnknown DownloadStatus = iota
	DownloadNew
	DownloadedYes
	DownloadedNo
	DownloadStarted
	DownloadFailed
)

func (s DownloadStatus) String() string {
	switch s {
	case DownloadNew:
		return "new"
	case DownloadedYes:
		return "downloaded"
	case DownloadedNo:
		return "not-downloaded"
	case DownloadStarted:
		return "downloading"
	case DownloadFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Access is an optional permission bit: unknown, denied or granted.
type Access int8

const (
	AccessUnknown Access = -1
	AccessDenied  Access = 0
	AccessGranted Access = 1
)

func (a Access) String() string {
	switch a {
	case AccessDenied:
		return "no"
	case AccessGranted:
		return "yes"
	default:
		return "?"
	}
}

// ItemRecord is the metadata of one file stored on the device. Nil pointers
// and AccessUnknown mean the device did not report the field.
type ItemRecord struct {
	Folder string
	Name   string

	ModTime *time.Time
	Size    *int64
	Width   *int
	Height  *int

	// MIME is derived from the file extension, never from the device.
	MIME string

	Downloaded      DownloadStatus
	ReadPermission  Access
	WritePermission Access
}

// UnknownRecord returns a record for folder/name with every optional field
// unknown.
func UnknownRecord(folder, name string) ItemRecord {
	return ItemRecord{
		Folder:          folder,
		Name:            name,
		Downloaded:      DownloadUnknown,
		ReadPermission:  AccessUnknown,
		WritePermission: AccessUnknown,
	}
}

// Path is Folder and Name joined by one separator.
func (r ItemRecord) Path() string {
	return JoinPath(r.Folder, r.Name)
}

// Locked reports whether the write/delete permission is known to be off.
func (r ItemRecord) Locked() bool {
	return r.WritePermission == AccessDenied
}

// JoinPath appends child to parent with exactly one "/" between them,
// whether or not parent already ends in one.
func JoinPath(parent, child string) string {
	child = strings.TrimPrefix(child, "/")
	if strings.HasSuffix(parent, "/") {
		return parent + child
	}
	return parent + "/" + child
}

// SplitPath is the inverse of JoinPath for absolute camera paths.
func SplitPath(p string) (folder, name string) {
	i := strings.LastIndex(p, "/")
	if i < 0 {
		return "/", p
	}
	if i == 0 {
		return "/", p[1:]
	}
	return p[:i], p[i+1:]
}

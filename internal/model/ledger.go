package model

import "strings"

// FileState is the import ledger state machine.
type FileState string

const (
	StateDiscovered FileState = "DISCOVERED"
	StateCopying    FileState = "COPYING"
	StateCopied     FileState = "COPIED"
	StateHashed     FileState = "HASHED"
	StateQueued     FileState = "QUEUED"
	StateUploading  FileState = "UPLOADING"
	StateUploaded   FileState = "UPLOADED"
	StateVerified   FileState = "VERIFIED"
	StateDone       FileState = "DONE"
	StateError      FileState = "ERROR"
)

// FileRow is one camera file known to the import ledger.
type FileRow struct {
	ID         int64
	DeviceID   string
	Folder     string
	Name       string
	StagedPath string
	MIME       string

	Size   int64
	SHA256 string
	CRC32C uint32

	State     FileState
	Attempts  int64
	LastError string
}

// SrcPath is the file's path on the camera.
func (f FileRow) SrcPath() string {
	return JoinPath(f.Folder, f.Name)
}

// ObjectKey is the archive key of the file under prefix.
func (f FileRow) ObjectKey(prefix string) string {
	key := f.DeviceID + f.SrcPath()
	if prefix == "" {
		return key
	}
	return strings.TrimSuffix(prefix, "/") + "/" + key
}

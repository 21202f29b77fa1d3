package provider

import "time"

// PortType is a bitmask of transport kinds.
type PortType uint32

const (
	PortNone   PortType = 0
	PortSerial PortType = 1 << 0
	PortUSB    PortType = 1 << 2
	PortDisk   PortType = 1 << 3
	PortPTPIP  PortType = 1 << 4
)

// Operation flags of a camera model.
type Operation uint32

const (
	OperationCaptureImage   Operation = 1 << 0
	OperationCaptureVideo   Operation = 1 << 1
	OperationCaptureAudio   Operation = 1 << 2
	OperationCapturePreview Operation = 1 << 3
	OperationConfig         Operation = 1 << 4
)

// FileOperation flags of a camera model.
type FileOperation uint32

const (
	FileOperationDelete  FileOperation = 1 << 1
	FileOperationPreview FileOperation = 1 << 3
	FileOperationRaw     FileOperation = 1 << 4
	FileOperationAudio   FileOperation = 1 << 5
	FileOperationExif    FileOperation = 1 << 6
)

// FolderOperation flags of a camera model.
type FolderOperation uint32

const (
	FolderOperationDeleteAll FolderOperation = 1 << 0
	FolderOperationPutFile   FolderOperation = 1 << 1
	FolderOperationMakeDir   FolderOperation = 1 << 2
	FolderOperationRemoveDir FolderOperation = 1 << 3
)

// ModelAbilities is one entry of the ability database.
type ModelAbilities struct {
	Model            string
	Port             PortType
	Operations       Operation
	FileOperations   FileOperation
	FolderOperations FolderOperation
	USBVendor        int
	USBProduct       int
}

// PortInfo describes a transport endpoint, e.g. "usb:001,004".
type PortInfo struct {
	Type PortType
	Name string
	Path string
}

// FileType selects which variant of a remote file GetFile returns.
type FileType int

const (
	FileNormal FileType = iota
	FilePreview
	FileRaw
	FileAudio
	FileExif
)

func (t FileType) String() string {
	switch t {
	case FileNormal:
		return "normal"
	case FilePreview:
		return "preview"
	case FileRaw:
		return "raw"
	case FileAudio:
		return "audio"
	case FileExif:
		return "exif"
	default:
		return "unknown"
	}
}

// InfoField marks which members of a FileDetails are valid.
type InfoField uint32

const (
	FieldNone        InfoField = 0
	FieldType        InfoField = 1 << 0
	FieldSize        InfoField = 1 << 2
	FieldWidth       InfoField = 1 << 3
	FieldHeight      InfoField = 1 << 4
	FieldPermissions InfoField = 1 << 5
	FieldStatus      InfoField = 1 << 6
	FieldMTime       InfoField = 1 << 7
)

// Permission bits of a remote file.
type Permission uint8

const (
	PermNone   Permission = 0
	PermRead   Permission = 1 << 0
	PermDelete Permission = 1 << 1
)

// FileStatus is the device-side download flag.
type FileStatus int

const (
	StatusNotDownloaded FileStatus = iota
	StatusDownloaded
)

// FileDetails is one section of FileInfo. Only members whose bit is set in
// Fields carry meaning.
type FileDetails struct {
	Fields      InfoField
	Type        string
	Size        uint64
	Width       uint32
	Height      uint32
	Permissions Permission
	Status      FileStatus
	MTime       time.Time
}

// Has reports whether every bit of f is set.
func (d FileDetails) Has(f InfoField) bool {
	return d.Fields&f == f
}

// FileInfo is the per-file metadata block: the file itself plus its preview
// and audio companions.
type FileInfo struct {
	File    FileDetails
	Preview FileDetails
	Audio   FileDetails
}

// FilePath locates a file on the device.
type FilePath struct {
	Folder string
	Name   string
}

// StorageField marks which members of a StorageInfo are valid.
type StorageField uint32

const (
	StorageBase            StorageField = 1 << 0
	StorageLabel           StorageField = 1 << 1
	StorageDescription     StorageField = 1 << 2
	StorageAccess          StorageField = 1 << 3
	StorageType            StorageField = 1 << 4
	StorageFilesystemType  StorageField = 1 << 5
	StorageMaxCapacity     StorageField = 1 << 6
	StorageFreeSpaceKBytes StorageField = 1 << 7
)

type FilesystemType int

const (
	FSUndefined FilesystemType = iota
	FSGenericFlat
	FSGenericHierarchical
	FSDCF // camera layout (DCIM)
)

type AccessType int

const (
	AccessReadWrite AccessType = iota
	AccessReadOnly
	AccessReadOnlyWithDelete
)

func (a AccessType) String() string {
	switch a {
	case AccessReadWrite:
		return "R/W"
	case AccessReadOnly:
		return "RO"
	case AccessReadOnlyWithDelete:
		return "RO + Del"
	default:
		return "unknown"
	}
}

type StorageKind int

const (
	StorageUnknown StorageKind = iota
	StorageFixedROM
	StorageRemovableROM
	StorageFixedRAM
	StorageRemovableRAM
)

func (k StorageKind) String() string {
	switch k {
	case StorageFixedROM:
		return "fixed ROM"
	case StorageRemovableROM:
		return "removable ROM"
	case StorageFixedRAM:
		return "fixed RAM"
	case StorageRemovableRAM:
		return "removable RAM"
	default:
		return "unknown"
	}
}

// StorageInfo describes one storage medium of the device.
type StorageInfo struct {
	Fields      StorageField
	BaseDir     string
	Label       string
	Description string
	Access      AccessType
	Kind        StorageKind
	FSType      FilesystemType
	CapacityKB  uint64
	FreeKB      uint64
}

// Has reports whether every bit of f is set.
func (s StorageInfo) Has(f StorageField) bool {
	return s.Fields&f == f
}

// Package provider describes the native camera-control library as a set of
// interfaces. Everything that speaks the camera wire protocol lives behind
// Provider, Camera and File; the rest of the module only sees these types.
package provider

import "context"

// Provider is the capability provider: the ability database, the port
// list, device detection and the factory for device handles.
//
// Methods taking a context treat it as the per-operation status object.
// Implementations poll it at whatever checkpoints the native library offers
// and report a cancel status (CodeCancel) when it is done.
type Provider interface {
	// Abilities loads the ability database.
	Abilities(ctx context.Context) ([]ModelAbilities, error)

	// Ports loads the list of transport endpoints visible to the host.
	Ports(ctx context.Context) ([]PortInfo, error)

	// Detect cross-references abilities against ports and returns every
	// supported camera found, in provider order.
	Detect(ctx context.Context, abilities []ModelAbilities, ports []PortInfo) ([]Detection, error)

	// FindUSBDevice opens port and reports whether a device with the given
	// USB vendor/product id is attached to it. A nil error means found.
	FindUSBDevice(ctx context.Context, port PortInfo, vendorID, productID int) error

	// NewCamera allocates an unconfigured device handle.
	NewCamera() (Camera, error)

	// OpenFile loads a local file into a provider file object.
	OpenFile(path string) (File, error)
}

// Camera is one native device handle. A handle is owned by exactly one
// session and must never be used from two goroutines at once.
type Camera interface {
	SetAbilities(a ModelAbilities) error
	SetPortInfo(p PortInfo) error

	// Init performs the protocol-level handshake with the device.
	Init(ctx context.Context) error

	// Close exits the device and releases the handle. Calling Close more
	// than once is a no-op.
	Close() error

	ListFolders(ctx context.Context, folder string) ([]string, error)
	ListFiles(ctx context.Context, folder string) ([]string, error)

	FileInfo(ctx context.Context, folder, name string) (FileInfo, error)
	SetFileInfo(ctx context.Context, folder, name string, info FileInfo) error

	GetFile(ctx context.Context, folder, name string, typ FileType) (File, error)
	DeleteFile(ctx context.Context, folder, name string) error

	// DeleteAll removes every file of folder and, unless folder is the
	// storage root, the folder itself. It fails when folder still has
	// subfolders.
	DeleteAll(ctx context.Context, folder string) error

	PutFile(ctx context.Context, folder string, f File) error

	Capture(ctx context.Context) (FilePath, error)
	CapturePreview(ctx context.Context) (File, error)

	StorageInfo(ctx context.Context) ([]StorageInfo, error)

	Summary(ctx context.Context) (string, error)
	Manual(ctx context.Context) (string, error)
	About(ctx context.Context) (string, error)
}

// File is a provider file object: a name plus its bytes.
type File interface {
	Name() string
	SetName(name string) error
	Data() ([]byte, error)

	// Save writes the contents to a local path.
	Save(path string) error
	Close() error
}

// Detection is one (model, port) pair reported by Detect.
type Detection struct {
	Model string
	Port  string
}

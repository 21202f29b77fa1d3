package sim

import (
	"time"

	"gpcam/internal/provider"
)

// Demo model and port names.
const (
	DemoModel = "Canon EOS 5D Mark III"
	DemoPort  = "usb:001,004"
)

// NewDemo returns a host with a few models, a serial and a usb port and one
// camera attached on the usb port. Its card holds a DCIM tree with two
// folders of pictures, one of them protected.
func NewDemo() *Provider {
	p := New()

	models := []provider.ModelAbilities{
		{
			Model:            DemoModel,
			Port:             provider.PortUSB,
			Operations:       provider.OperationCaptureImage | provider.OperationCapturePreview | provider.OperationConfig,
			FileOperations:   provider.FileOperationDelete | provider.FileOperationPreview | provider.FileOperationExif,
			FolderOperations: provider.FolderOperationPutFile | provider.FolderOperationMakeDir | provider.FolderOperationRemoveDir,
			USBVendor:        0x04a9,
			USBProduct:       0x3250,
		},
		{
			Model:          "Nikon DSC D750",
			Port:           provider.PortUSB,
			Operations:     provider.OperationCaptureImage,
			FileOperations: provider.FileOperationDelete | provider.FileOperationPreview,
			USBVendor:      0x04b0,
			USBProduct:     0x0433,
		},
		{
			Model:          "Kodak DC240",
			Port:           provider.PortSerial | provider.PortUSB,
			FileOperations: provider.FileOperationDelete | provider.FileOperationPreview,
			USBVendor:      0x040a,
			USBProduct:     0x0120,
		},
		{
			Model:            DirectoryBrowse,
			Port:             provider.PortDisk,
			FileOperations:   provider.FileOperationDelete | provider.FileOperationExif,
			FolderOperations: provider.FolderOperationPutFile | provider.FolderOperationMakeDir | provider.FolderOperationRemoveDir,
		},
	}
	sortedModels(models)
	for _, m := range models {
		p.AddModel(m)
	}

	p.AddPort(provider.PortInfo{Type: provider.PortSerial, Name: "Serial Port 0", Path: "serial:/dev/ttyS0"})
	p.AddPort(provider.PortInfo{Type: provider.PortUSB, Name: "Universal Serial Bus", Path: DemoPort})

	p.Attach(Device{Model: DemoModel, Port: DemoPort, VendorID: 0x04a9, ProductID: 0x3250})

	base := time.Date(2024, 5, 18, 9, 30, 0, 0, time.UTC)
	full := provider.FieldType | provider.FieldSize | provider.FieldWidth | provider.FieldHeight |
		provider.FieldPermissions | provider.FieldStatus | provider.FieldMTime

	add := func(folder, name string, i int, perms provider.Permission, status provider.FileStatus) {
		data := []byte("demo image " + name)
		p.AddFile(folder, name, data, provider.FileDetails{
			Fields:      full,
			Type:        "image/jpeg",
			Size:        uint64(len(data)),
			Width:       5760,
			Height:      3840,
			Permissions: perms,
			Status:      status,
			MTime:       base.Add(time.Duration(i) * time.Minute),
		})
		p.SetCompanions(folder, name, []byte("thumb "+name), []byte("exif "+name))
	}

	rw := provider.PermRead | provider.PermDelete
	add("/DCIM/100CANON", "IMG_0001.JPG", 0, rw, provider.StatusDownloaded)
	add("/DCIM/100CANON", "IMG_0002.JPG", 1, rw, provider.StatusNotDownloaded)
	add("/DCIM/100CANON", "IMG_0003.CR2", 2, provider.PermRead, provider.StatusNotDownloaded)
	add("/DCIM/101CANON", "MVI_0004.MOV", 3, rw, provider.StatusNotDownloaded)

	p.SetCaptureFolder("/DCIM/100CANON")
	p.captureSeq = 100
	p.SetPreview([]byte("live view frame"))
	p.SetTexts(
		"Manufacturer: Canon Inc.\nModel: Canon EOS 5D Mark III\nSerial Number: 0123456789ab\n",
		"Canon EOS cameras are driven over PTP.",
		"PTP2 driver, simulated.",
	)
	return p
}

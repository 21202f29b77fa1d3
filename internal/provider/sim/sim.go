// Package sim is an in-memory camera provider. It keeps an ability database,
// a port list, attached devices and one storage card, and it lets callers
// inject provider failures and observe every native call. The CLI uses it
// for dry runs; the core packages use it as their device double.
package sim

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"gpcam/internal/provider"
)

// DirectoryBrowse is the model name of the pseudo-camera with no transport.
const DirectoryBrowse = "Directory Browse"

// Device is a camera attached to the simulated host.
type Device struct {
	Model     string
	Port      string
	VendorID  int
	ProductID int
}

type file struct {
	name  string
	data  []byte
	thumb []byte
	exif  []byte
	info  provider.FileInfo
}

type folder struct {
	name  string
	subs  []*folder
	files []*file
}

// Provider implements provider.Provider.
type Provider struct {
	mu sync.Mutex

	models  []provider.ModelAbilities
	ports   []provider.PortInfo
	devices []Device

	root          *folder
	captureFolder string
	captureSeq    int
	preview       []byte
	storage       []provider.StorageInfo
	summary       string
	manual        string
	about         string

	failures map[string]int
	calls    []string
	open     int

	chunkSize int
	onChunk   func(op string, done int)
	clock     func() time.Time

	// StrictInfoWrites rejects SetFileInfo requests that carry anything
	// besides the file permission field, like firmware that misreads
	// unrelated fields.
	StrictInfoWrites bool
}

// New returns an empty simulated host: no models, ports or devices.
func New() *Provider {
	return &Provider{
		root:             &folder{name: ""},
		captureFolder:    "/DCIM/100SIMCM",
		failures:         map[string]int{},
		chunkSize:        4096,
		clock:            time.Now,
		StrictInfoWrites: true,
		storage: []provider.StorageInfo{{
			Fields: provider.StorageBase | provider.StorageLabel | provider.StorageDescription |
				provider.StorageAccess | provider.StorageType | provider.StorageFilesystemType |
				provider.StorageMaxCapacity | provider.StorageFreeSpaceKBytes,
			BaseDir:     "/",
			Label:       "SIM CARD",
			Description: "simulated memory card",
			Access:      provider.AccessReadWrite,
			Kind:        provider.StorageRemovableRAM,
			FSType:      provider.FSDCF,
			CapacityKB:  32 * 1024 * 1024,
			FreeKB:      20 * 1024 * 1024,
		}},
		summary: "Manufacturer: Simulated\nSerial Number: SIM0001\n",
		manual:  "No manual available for the simulated camera.",
		about:   "In-memory camera driver.",
	}
}

func (p *Provider) AddModel(a provider.ModelAbilities) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.models = append(p.models, a)
}

func (p *Provider) AddPort(pi provider.PortInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ports = append(p.ports, pi)
}

// Attach plugs a device into the host.
func (p *Provider) Attach(d Device) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.devices = append(p.devices, d)
}

// Detach unplugs every device on port.
func (p *Provider) Detach(port string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	kept := p.devices[:0]
	for _, d := range p.devices {
		if d.Port != port {
			kept = append(kept, d)
		}
	}
	p.devices = kept
}

// AddFolder creates path and any missing parents, in call order.
func (p *Provider) AddFolder(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mkdirAll(path)
}

// AddFile stores a file. details.Fields decides which metadata the device
// reports for it.
func (p *Provider) AddFile(folderPath, name string, data []byte, details provider.FileDetails) {
	p.mu.Lock()
	defer p.mu.Unlock()
	dir := p.mkdirAll(folderPath)
	dir.files = append(dir.files, &file{
		name: name,
		data: data,
		info: provider.FileInfo{File: details},
	})
}

// SetCompanions attaches preview (thumbnail) and EXIF bytes to a file.
func (p *Provider) SetCompanions(folderPath, name string, thumb, exif []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if f := p.lookupFile(folderPath, name); f != nil {
		f.thumb = thumb
		f.exif = exif
	}
}

func (p *Provider) SetCaptureFolder(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.captureFolder = path
}

// SetPreview sets the frame returned by CapturePreview. nil means the
// device has no live view.
func (p *Provider) SetPreview(frame []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.preview = frame
}

func (p *Provider) SetStorage(s []provider.StorageInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.storage = s
}

func (p *Provider) SetTexts(summary, manual, about string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.summary, p.manual, p.about = summary, manual, about
}

func (p *Provider) SetClock(fn func() time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clock = fn
}

// SetChunkHook makes transfers move size bytes at a time and calls fn
// after every chunk. fn runs without the provider lock held.
func (p *Provider) SetChunkHook(size int, fn func(op string, done int)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if size > 0 {
		p.chunkSize = size
	}
	p.onChunk = fn
}

// Fail makes every call of op return code.
func (p *Provider) Fail(op string, code int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[op] = code
}

// FailPath makes calls of op on path return code.
func (p *Provider) FailPath(op, path string, code int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[op+" "+path] = code
}

// ClearFailures removes every injected failure.
func (p *Provider) ClearFailures() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures = map[string]int{}
}

// Calls returns the native calls made so far, as "op" or "op path".
func (p *Provider) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func (p *Provider) ResetCalls() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = nil
}

// OpenHandles is the number of camera handles not yet closed.
func (p *Provider) OpenHandles() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open
}

// Details returns what the device currently reports for a file.
func (p *Provider) Details(folderPath, name string) (provider.FileDetails, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f := p.lookupFile(folderPath, name)
	if f == nil {
		return provider.FileDetails{}, false
	}
	return f.info.File, true
}

// Exists reports whether a folder or file exists at path.
func (p *Provider) Exists(path string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lookupFolder(path) != nil {
		return true
	}
	dir, name := splitPath(path)
	return p.lookupFile(dir, name) != nil
}

// --- provider.Provider ---

func (p *Provider) Abilities(ctx context.Context) ([]provider.ModelAbilities, error) {
	if err := p.enter(ctx, "abilities", ""); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]provider.ModelAbilities(nil), p.models...), nil
}

func (p *Provider) Ports(ctx context.Context) ([]provider.PortInfo, error) {
	if err := p.enter(ctx, "ports", ""); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]provider.PortInfo(nil), p.ports...), nil
}

func (p *Provider) Detect(ctx context.Context, abilities []provider.ModelAbilities, ports []provider.PortInfo) ([]provider.Detection, error) {
	if err := p.enter(ctx, "detect", ""); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []provider.Detection
	for _, d := range p.devices {
		if !hasModel(abilities, d.Model) || !hasPort(ports, d.Port) {
			continue
		}
		out = append(out, provider.Detection{Model: d.Model, Port: d.Port})
	}
	return out, nil
}

func (p *Provider) FindUSBDevice(ctx context.Context, port provider.PortInfo, vendorID, productID int) error {
	if err := p.enter(ctx, "find-usb", port.Path); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if port.Type&provider.PortUSB == 0 {
		return provider.Errorf(provider.CodeIOSupportedUSB, "port %s is not usb", port.Path)
	}
	for _, d := range p.devices {
		if d.Port == port.Path && d.VendorID == vendorID && d.ProductID == productID {
			return nil
		}
	}
	return &provider.Error{Code: provider.CodeIOUSBFind}
}

func (p *Provider) NewCamera() (provider.Camera, error) {
	if err := p.enter(context.Background(), "new-camera", ""); err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.open++
	p.mu.Unlock()
	return &camera{p: p}, nil
}

func (p *Provider) OpenFile(path string) (provider.File, error) {
	if err := p.enter(context.Background(), "open-file", path); err != nil {
		return nil, err
	}
	f, err := provider.LoadMemFile(path)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// enter records a call and applies cancellation and injected failures.
func (p *Provider) enter(ctx context.Context, op, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if path != "" {
		p.calls = append(p.calls, op+" "+path)
	} else {
		p.calls = append(p.calls, op)
	}
	if ctx.Err() != nil {
		return &provider.Error{Code: provider.CodeCancel}
	}
	if code, ok := p.failures[op+" "+path]; ok {
		return provider.Errorf(code, "%s %s", op, path)
	}
	if code, ok := p.failures[op]; ok {
		return provider.Errorf(code, "%s", op)
	}
	return nil
}

// transfer copies src chunk by chunk, checking ctx between chunks.
func (p *Provider) transfer(ctx context.Context, op string, src []byte) ([]byte, error) {
	p.mu.Lock()
	chunk, hook := p.chunkSize, p.onChunk
	p.mu.Unlock()

	out := make([]byte, 0, len(src))
	for off := 0; off < len(src); off += chunk {
		if ctx.Err() != nil {
			return nil, &provider.Error{Code: provider.CodeCancel}
		}
		end := min(off+chunk, len(src))
		out = append(out, src[off:end]...)
		if hook != nil {
			hook(op, end)
		}
	}
	if ctx.Err() != nil {
		return nil, &provider.Error{Code: provider.CodeCancel}
	}
	return out, nil
}

// --- tree helpers (caller holds p.mu) ---

func splitPath(path string) (string, string) {
	path = strings.TrimSuffix(path, "/")
	i := strings.LastIndex(path, "/")
	if i <= 0 {
		return "/", strings.TrimPrefix(path, "/")
	}
	return path[:i], path[i+1:]
}

func segments(path string) []string {
	var out []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (p *Provider) lookupFolder(path string) *folder {
	cur := p.root
	for _, seg := range segments(path) {
		var next *folder
		for _, s := range cur.subs {
			if s.name == seg {
				next = s
				break
			}
		}
		if next == nil {
			return nil
		}
		cur = next
	}
	return cur
}

func (p *Provider) lookupFile(folderPath, name string) *file {
	dir := p.lookupFolder(folderPath)
	if dir == nil {
		return nil
	}
	for _, f := range dir.files {
		if f.name == name {
			return f
		}
	}
	return nil
}

func (p *Provider) mkdirAll(path string) *folder {
	cur := p.root
	for _, seg := range segments(path) {
		var next *folder
		for _, s := range cur.subs {
			if s.name == seg {
				next = s
				break
			}
		}
		if next == nil {
			next = &folder{name: seg}
			cur.subs = append(cur.subs, next)
		}
		cur = next
	}
	return cur
}

func (p *Provider) deviceOn(model, port string) bool {
	for _, d := range p.devices {
		if d.Model == model && d.Port == port {
			return true
		}
	}
	return false
}

func hasModel(list []provider.ModelAbilities, model string) bool {
	for _, a := range list {
		if a.Model == model {
			return true
		}
	}
	return false
}

func hasPort(list []provider.PortInfo, path string) bool {
	for _, pi := range list {
		if pi.Path == path {
			return true
		}
	}
	return false
}

func captureName(seq int) string {
	return fmt.Sprintf("IMG_%04d.JPG", seq)
}

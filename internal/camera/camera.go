// Package camera assembles the session client: one Camera per physical
// device, exposing connection control, the catalog and the transfer engine
// behind a single value.
package camera

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"gpcam/internal/abilities"
	"gpcam/internal/camerr"
	"gpcam/internal/catalog"
	"gpcam/internal/discovery"
	"gpcam/internal/logging"
	"gpcam/internal/provider"
	"gpcam/internal/session"
	"gpcam/internal/transfer"
)

const bugReportNotice = "\n\nTo report problems about this driver, please contact " +
	"the gphoto2 team at:\n\nhttp://gphoto.org/bugs"

type Camera struct {
	*session.Session
	*catalog.Catalog
	*transfer.Engine

	Registry  *abilities.Registry
	Discovery *discovery.Discovery

	log *zap.Logger
}

// New builds an unconnected Camera for cfg.
func New(p provider.Provider, cfg session.Config, log *zap.Logger) *Camera {
	log = logging.Or(log)
	reg := abilities.New(p, log)
	disc := discovery.New(p, reg, log)
	return Attach(p, reg, disc, cfg, log)
}

// Attach builds a Camera that shares an existing registry and discovery,
// for hosts that manage several devices.
func Attach(p provider.Provider, reg *abilities.Registry, disc *discovery.Discovery, cfg session.Config, log *zap.Logger) *Camera {
	log = logging.Or(log)
	s := session.New(p, reg, disc, cfg, log)
	return &Camera{
		Session:   s,
		Catalog:   catalog.New(s, log),
		Engine:    transfer.New(s, p, log),
		Registry:  reg,
		Discovery: disc,
		log:       log.Named("camera"),
	}
}

// Space is the capacity and free space of a storage medium, in KiB.
type Space struct {
	CapacityKB  uint64
	AvailableKB uint64
}

// FreeSpace reports the first DCF storage of the device. It fails with
// Unsupported when the device has none or the storage omits capacity or
// free space.
func (c *Camera) FreeSpace(ctx context.Context) (Space, error) {
	const op = "free space"
	var sp Space
	err := c.Do(ctx, op, func(ctx context.Context, cam provider.Camera) error {
		infos, err := cam.StorageInfo(ctx)
		if err != nil {
			return camerr.Wrap(camerr.Unsupported, op, err)
		}
		for _, si := range infos {
			if !si.Has(provider.StorageFilesystemType) || si.FSType != provider.FSDCF {
				continue
			}
			c.logStorage(si)
			if !si.Has(provider.StorageMaxCapacity) || !si.Has(provider.StorageFreeSpaceKBytes) {
				return camerr.New(camerr.Unsupported, op)
			}
			sp = Space{CapacityKB: si.CapacityKB, AvailableKB: si.FreeKB}
			return nil
		}
		return camerr.New(camerr.Unsupported, op)
	})
	return sp, err
}

func (c *Camera) logStorage(si provider.StorageInfo) {
	if ce := c.log.Check(zap.DebugLevel, "storage"); ce != nil {
		var fields []zap.Field
		if si.Has(provider.StorageLabel) {
			fields = append(fields, zap.String("label", si.Label))
		}
		if si.Has(provider.StorageDescription) {
			fields = append(fields, zap.String("description", si.Description))
		}
		if si.Has(provider.StorageBase) {
			fields = append(fields, zap.String("basedir", si.BaseDir))
		}
		if si.Has(provider.StorageAccess) {
			fields = append(fields, zap.Stringer("access", si.Access))
		}
		if si.Has(provider.StorageType) {
			fields = append(fields, zap.Stringer("type", si.Kind))
		}
		ce.Write(fields...)
	}
}

// Summary is the device summary text prefixed with the session settings and
// capability flags.
func (c *Camera) Summary(ctx context.Context) (string, error) {
	const op = "summary"
	var text string
	err := c.Do(ctx, op, func(ctx context.Context, cam provider.Camera) error {
		var err error
		text, err = cam.Summary(ctx)
		return camerr.Wrap(camerr.ProviderError, op, err)
	})
	if err != nil {
		return "", err
	}

	cfg := c.Config()
	a := c.Abilities()
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\nModel: %s\nPort: %s\nPath: %s\n\n", cfg.Title, cfg.Model, cfg.Port, cfg.RootPath)
	fmt.Fprintf(&b, "Thumbnail support: %s\n", yesNo(a.SupportsThumbnail))
	fmt.Fprintf(&b, "Capture image support: %s\n", yesNo(a.SupportsCaptureImage))
	fmt.Fprintf(&b, "Delete items support: %s\n", yesNo(a.SupportsDelete))
	fmt.Fprintf(&b, "Upload items support: %s\n", yesNo(a.SupportsUpload))
	fmt.Fprintf(&b, "Directory creation support: %s\n", yesNo(a.SupportsMakeDir))
	fmt.Fprintf(&b, "Directory deletion support: %s\n\n", yesNo(a.SupportsRemoveDir))
	b.WriteString(text)
	return b.String(), nil
}

func (c *Camera) Manual(ctx context.Context) (string, error) {
	const op = "manual"
	var text string
	err := c.Do(ctx, op, func(ctx context.Context, cam provider.Camera) error {
		var err error
		text, err = cam.Manual(ctx)
		return camerr.Wrap(camerr.ProviderError, op, err)
	})
	return text, err
}

// About is the driver's about text followed by the bug-report notice.
func (c *Camera) About(ctx context.Context) (string, error) {
	const op = "about"
	var text string
	err := c.Do(ctx, op, func(ctx context.Context, cam provider.Camera) error {
		var err error
		text, err = cam.About(ctx)
		return camerr.Wrap(camerr.ProviderError, op, err)
	})
	if err != nil {
		return "", err
	}
	return text + bugReportNotice, nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// Package discovery enumerates transport endpoints and finds supported
// cameras on them.
package discovery

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"gpcam/internal/abilities"
	"gpcam/internal/camerr"
	"gpcam/internal/logging"
	"gpcam/internal/model"
	"gpcam/internal/provider"
	"gpcam/internal/udev"
)

type Discovery struct {
	p   provider.Provider
	reg *abilities.Registry
	log *zap.Logger

	// monitor is swapped in tests.
	monitor func(ctx context.Context, f udev.Filter, fn func(udev.Event)) error
}

func New(p provider.Provider, reg *abilities.Registry, log *zap.Logger) *Discovery {
	return &Discovery{
		p:       p,
		reg:     reg,
		log:     logging.Or(log).Named("discovery"),
		monitor: udev.Run,
	}
}

// ListPorts returns every transport endpoint visible to the host.
func (d *Discovery) ListPorts(ctx context.Context) ([]model.PortDescriptor, error) {
	ports, err := d.p.Ports(ctx)
	if err != nil {
		return []model.PortDescriptor{}, camerr.Wrap(camerr.ProviderError, "list ports", err)
	}
	out := make([]model.PortDescriptor, 0, len(ports))
	for _, pi := range ports {
		out = append(out, describe(pi))
	}
	return out, nil
}

// LookupPort returns the provider port entry for path.
func (d *Discovery) LookupPort(ctx context.Context, path string) (provider.PortInfo, error) {
	ports, err := d.p.Ports(ctx)
	if err != nil {
		return provider.PortInfo{}, camerr.WrapPath(camerr.PortLookupFailed, "lookup port", path, err)
	}
	for _, pi := range ports {
		if pi.Path == path {
			return pi, nil
		}
	}
	return provider.PortInfo{}, &camerr.Error{
		Kind: camerr.PortLookupFailed,
		Op:   "lookup port",
		Path: path,
		Code: provider.CodeUnknownPort,
		Desc: provider.Describe(provider.CodeUnknownPort),
	}
}

// AutoDetect returns the first supported camera the provider finds. When
// several are attached only the first is usable; the rest are logged.
func (d *Discovery) AutoDetect(ctx context.Context) (model.Detection, error) {
	abil, err := d.reg.Raw(ctx)
	if err != nil {
		return model.Detection{}, err
	}
	ports, err := d.p.Ports(ctx)
	if err != nil {
		return model.Detection{}, camerr.Wrap(camerr.ProviderError, "autodetect", err)
	}
	found, err := d.p.Detect(ctx, abil, ports)
	if err != nil {
		return model.Detection{}, camerr.Wrap(camerr.NotFound, "autodetect", err)
	}
	return d.first("autodetect", found)
}

// FindByUSBID walks the visible ports, opens each one and tests it for the
// vendor/product id. On the first hit it detects cameras on that single
// port and returns the first model found.
func (d *Discovery) FindByUSBID(ctx context.Context, vendorID, productID int) (model.Detection, error) {
	op := fmt.Sprintf("find usb %04x:%04x", vendorID, productID)

	ports, err := d.p.Ports(ctx)
	if err != nil {
		return model.Detection{}, camerr.Wrap(camerr.ProviderError, op, err)
	}

	for _, pi := range ports {
		if pi.Type&provider.PortUSB == 0 {
			continue
		}
		if err := d.p.FindUSBDevice(ctx, pi, vendorID, productID); err != nil {
			if provider.IsCancel(err) || ctx.Err() != nil {
				return model.Detection{}, camerr.Wrap(camerr.Cancelled, op, err)
			}
			d.log.Debug("no match on port", zap.String("port", pi.Path), zap.Error(err))
			continue
		}

		abil, err := d.reg.Raw(ctx)
		if err != nil {
			return model.Detection{}, err
		}
		found, err := d.p.Detect(ctx, abil, []provider.PortInfo{pi})
		if err != nil {
			return model.Detection{}, camerr.WrapPath(camerr.NotFound, op, pi.Path, err)
		}
		return d.first(op, found)
	}

	return model.Detection{}, camerr.New(camerr.NotFound, op)
}

func (d *Discovery) first(op string, found []provider.Detection) (model.Detection, error) {
	if len(found) == 0 {
		return model.Detection{}, camerr.New(camerr.NotFound, op)
	}
	if len(found) > 1 {
		ignored := make([]string, 0, len(found)-1)
		for _, f := range found[1:] {
			ignored = append(ignored, f.Model+"@"+f.Port)
		}
		d.log.Warn("more than one camera detected, using the first",
			zap.String("model", found[0].Model),
			zap.String("port", found[0].Port),
			zap.Strings("ignored", ignored))
	}
	return model.Detection{Model: found[0].Model, Port: found[0].Port}, nil
}

// Attached is reported by Watch when a supported camera is plugged in.
type Attached struct {
	Detection model.Detection
	VendorID  int
	ProductID int

	// Props are the udev properties of the event (ID_SERIAL and friends).
	Props map[string]string
}

// Watch follows udev usb add events and calls fn for each one that turns
// out to be a supported camera. It returns when ctx is done.
func (d *Discovery) Watch(ctx context.Context, fn func(Attached)) error {
	err := d.monitor(ctx, udev.USBDevices, func(ev udev.Event) {
		if ev.Action != "add" {
			return
		}
		vid, pid, ok := ev.USBID()
		if !ok {
			return
		}
		det, err := d.FindByUSBID(ctx, vid, pid)
		if err != nil {
			d.log.Debug("usb device is not a supported camera",
				zap.String("devname", ev.DevName), zap.Error(err))
			return
		}
		d.log.Info("camera attached",
			zap.String("model", det.Model), zap.String("port", det.Port))
		fn(Attached{Detection: det, VendorID: vid, ProductID: pid, Props: ev.Props})
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func describe(pi provider.PortInfo) model.PortDescriptor {
	return model.PortDescriptor{
		Path: pi.Path,
		Name: pi.Name,
		Kind: abilities.TransportOf(pi.Type),
	}
}

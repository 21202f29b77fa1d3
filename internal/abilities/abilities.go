// Package abilities is the device ability registry: a refreshable snapshot
// of the provider's model database, resolved into named capability flags.
package abilities

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"gpcam/internal/camerr"
	"gpcam/internal/logging"
	"gpcam/internal/model"
	"gpcam/internal/provider"
)

type Registry struct {
	p   provider.Provider
	log *zap.Logger

	mu     sync.Mutex
	models []provider.ModelAbilities
	index  map[string]int
}

func New(p provider.Provider, log *zap.Logger) *Registry {
	return &Registry{p: p, log: logging.Or(log).Named("abilities")}
}

// Refresh reloads the ability database from the provider.
func (r *Registry) Refresh(ctx context.Context) error {
	list, err := r.p.Abilities(ctx)
	if err != nil {
		return camerr.Wrap(camerr.ProviderError, "load abilities", err)
	}
	index := make(map[string]int, len(list))
	for i, a := range list {
		if _, dup := index[a.Model]; !dup {
			index[a.Model] = i
		}
	}

	r.mu.Lock()
	r.models, r.index = list, index
	r.mu.Unlock()

	r.log.Debug("ability database loaded", zap.Int("models", len(list)))
	return nil
}

// snapshot loads the database on first use.
func (r *Registry) snapshot(ctx context.Context) ([]provider.ModelAbilities, map[string]int, error) {
	r.mu.Lock()
	models, index := r.models, r.index
	r.mu.Unlock()
	if index != nil {
		return models, index, nil
	}
	if err := r.Refresh(ctx); err != nil {
		return nil, nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.models, r.index, nil
}

// Raw returns the provider entries, for Detect.
func (r *Registry) Raw(ctx context.Context) ([]provider.ModelAbilities, error) {
	models, _, err := r.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return append([]provider.ModelAbilities(nil), models...), nil
}

// ListSupportedModels returns every model name in provider order. On
// failure the slice is empty and the error is returned.
func (r *Registry) ListSupportedModels(ctx context.Context) ([]string, error) {
	models, _, err := r.snapshot(ctx)
	if err != nil {
		return []string{}, err
	}
	names := make([]string, 0, len(models))
	for _, a := range models {
		names = append(names, a.Model)
	}
	return names, nil
}

// Lookup returns the raw provider entry for model.
func (r *Registry) Lookup(ctx context.Context, name string) (provider.ModelAbilities, error) {
	models, index, err := r.snapshot(ctx)
	if err != nil {
		return provider.ModelAbilities{}, err
	}
	i, ok := index[name]
	if !ok {
		return provider.ModelAbilities{}, &camerr.Error{Kind: camerr.UnknownModel, Op: "lookup model", Path: name}
	}
	return models[i], nil
}

func (r *Registry) AbilitiesFor(ctx context.Context, name string) (model.DeviceAbilities, error) {
	a, err := r.Lookup(ctx, name)
	if err != nil {
		return model.DeviceAbilities{}, err
	}
	return Resolve(a), nil
}

func (r *Registry) SupportedTransportsFor(ctx context.Context, name string) ([]model.TransportKind, error) {
	a, err := r.Lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	return Transports(a.Port), nil
}

// Resolve turns the provider bitmasks into named flags.
func Resolve(a provider.ModelAbilities) model.DeviceAbilities {
	return model.DeviceAbilities{
		Model:                a.Model,
		SupportsThumbnail:    a.FileOperations&provider.FileOperationPreview != 0,
		SupportsDelete:       a.FileOperations&provider.FileOperationDelete != 0,
		SupportsUpload:       a.FolderOperations&provider.FolderOperationPutFile != 0,
		SupportsMakeDir:      a.FolderOperations&provider.FolderOperationMakeDir != 0,
		SupportsRemoveDir:    a.FolderOperations&provider.FolderOperationRemoveDir != 0,
		SupportsCaptureImage: a.Operations&provider.OperationCaptureImage != 0,
		SupportsPreview:      a.Operations&provider.OperationCapturePreview != 0,
		Transports:           Transports(a.Port),
	}
}

// Transports lists the transport kinds set in a port mask.
func Transports(mask provider.PortType) []model.TransportKind {
	var out []model.TransportKind
	if mask&provider.PortSerial != 0 {
		out = append(out, model.TransportSerial)
	}
	if mask&provider.PortUSB != 0 {
		out = append(out, model.TransportUSB)
	}
	if mask&provider.PortDisk != 0 {
		out = append(out, model.TransportDisk)
	}
	if mask&provider.PortPTPIP != 0 {
		out = append(out, model.TransportNetwork)
	}
	return out
}

// TransportOf maps a single port type to its kind.
func TransportOf(t provider.PortType) model.TransportKind {
	switch {
	case t&provider.PortUSB != 0:
		return model.TransportUSB
	case t&provider.PortDisk != 0:
		return model.TransportDisk
	case t&provider.PortPTPIP != 0:
		return model.TransportNetwork
	default:
		return model.TransportSerial
	}
}

// SupportedPortNames lists "serial" and/or "usb" for model, the way port
// pickers present it.
func (r *Registry) SupportedPortNames(ctx context.Context, name string) ([]string, error) {
	kinds, err := r.SupportedTransportsFor(ctx, name)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, k := range kinds {
		if k == model.TransportSerial || k == model.TransportUSB {
			out = append(out, k.String())
		}
	}
	return out, nil
}

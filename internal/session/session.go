// Package session owns the single connection to one physical camera.
//
// Every top-level call runs under its own cancellable context, created when
// the call starts and cancelled when it returns. CancelCurrentOperation
// cancels whichever call is in flight; a call started afterwards gets a
// fresh context and never sees the earlier request.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gpcam/internal/abilities"
	"gpcam/internal/camerr"
	"gpcam/internal/discovery"
	"gpcam/internal/logging"
	"gpcam/internal/metrics"
	"gpcam/internal/model"
	"gpcam/internal/provider"
)

// DirectoryBrowseModel has no transport; connecting skips the port step.
const DirectoryBrowseModel = "Directory Browse"

type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

type Config struct {
	Title    string // user label
	Model    string
	Port     string
	RootPath string
}

type Session struct {
	p    provider.Provider
	reg  *abilities.Registry
	disc *discovery.Discovery
	cfg  Config
	id   string
	log  *zap.Logger

	// opMu admits one top-level operation at a time.
	opMu sync.Mutex

	mu     sync.Mutex
	state  State
	cam    provider.Camera
	abil   model.DeviceAbilities
	cancel context.CancelFunc
}

func New(p provider.Provider, reg *abilities.Registry, disc *discovery.Discovery, cfg Config, log *zap.Logger) *Session {
	if cfg.RootPath == "" {
		cfg.RootPath = "/"
	}
	id := uuid.NewString()
	log = logging.Or(log).Named("session").With(
		zap.String("session", id),
		zap.String("model", cfg.Model),
		zap.String("port", cfg.Port),
	)
	return &Session{p: p, reg: reg, disc: disc, cfg: cfg, id: id, log: log}
}

func (s *Session) ID() string              { return s.id }
func (s *Session) Config() Config          { return s.cfg }
func (s *Session) Logger() *zap.Logger     { return s.log }
func (s *Session) Title() string           { return s.cfg.Title }
func (s *Session) RootPath() string        { return s.cfg.RootPath }
func (s *Session) IsDirectoryBrowse() bool { return s.cfg.Model == DirectoryBrowseModel }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Abilities returns the flags resolved by the last successful Connect.
func (s *Session) Abilities() model.DeviceAbilities {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.abil
}

// Connect opens the device. Any previous handle is released first. On
// failure the session is left Disconnected with no handle and the error
// names the step that failed.
func (s *Session) Connect(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.release()

	opCtx, done := s.begin(ctx)
	defer done()

	s.mu.Lock()
	s.state = Connecting
	s.mu.Unlock()

	start := time.Now()
	cam, abil, err := s.open(opCtx)
	if err != nil {
		s.mu.Lock()
		s.state = Disconnected
		s.mu.Unlock()
		s.finish("connect", start, err)
		s.log.Warn("connect failed", zap.Error(err))
		return err
	}

	s.mu.Lock()
	s.cam, s.abil, s.state = cam, abil, Connected
	s.mu.Unlock()

	metrics.SessionConnected()
	s.finish("connect", start, nil)
	s.log.Info("camera connected", zap.String("title", s.cfg.Title))
	return nil
}

func (s *Session) open(ctx context.Context) (provider.Camera, model.DeviceAbilities, error) {
	const op = "connect"

	entry, err := s.reg.Lookup(ctx, s.cfg.Model)
	if err != nil {
		return nil, model.DeviceAbilities{}, camerr.Rewrap(camerr.AbilityLookupFailed, op, s.cfg.Model, err)
	}

	cam, err := s.p.NewCamera()
	if err != nil {
		return nil, model.DeviceAbilities{}, camerr.Rewrap(camerr.DeviceInitFailed, op, s.cfg.Port, err)
	}

	fail := func(kind camerr.Kind, path string, err error) (provider.Camera, model.DeviceAbilities, error) {
		if cerr := cam.Close(); cerr != nil {
			s.log.Debug("close after failed connect", zap.Error(cerr))
		}
		return nil, model.DeviceAbilities{}, camerr.Rewrap(kind, op, path, err)
	}

	if err := cam.SetAbilities(entry); err != nil {
		return fail(camerr.AbilityLookupFailed, s.cfg.Model, err)
	}

	if !s.IsDirectoryBrowse() {
		pi, err := s.disc.LookupPort(ctx, s.cfg.Port)
		if err != nil {
			return fail(camerr.PortLookupFailed, s.cfg.Port, err)
		}
		if err := cam.SetPortInfo(pi); err != nil {
			return fail(camerr.PortLookupFailed, s.cfg.Port, err)
		}
	}

	if err := cam.Init(ctx); err != nil {
		return fail(camerr.DeviceInitFailed, s.cfg.Port, err)
	}
	return cam, abilities.Resolve(entry), nil
}

// Disconnect cancels any call in flight, waits for it to return and
// releases the handle. It always succeeds.
func (s *Session) Disconnect() error {
	s.CancelCurrentOperation()

	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.release()
	return nil
}

// Close is Disconnect, for use with defer.
func (s *Session) Close() error {
	return s.Disconnect()
}

// release drops the handle. Caller holds opMu.
func (s *Session) release() {
	s.mu.Lock()
	cam := s.cam
	wasConnected := s.state == Connected
	s.cam = nil
	s.state = Disconnected
	s.mu.Unlock()

	if cam != nil {
		if err := cam.Close(); err != nil {
			s.log.Warn("closing camera handle", zap.Error(err))
		}
	}
	if wasConnected {
		metrics.SessionDisconnected()
		s.log.Info("camera disconnected")
	}
}

// CancelCurrentOperation asks the call in flight to stop at its next
// checkpoint. It reports whether a call was in flight.
func (s *Session) CancelCurrentOperation() bool {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel == nil {
		return false
	}
	s.log.Debug("cancel requested")
	cancel()
	return true
}

// begin creates the per-operation context. done must run on every exit
// path.
func (s *Session) begin(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	return ctx, func() {
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
		cancel()
	}
}

// Do runs fn as one top-level operation against the connected handle.
// It fails with NotConnected when there is no handle and with Cancelled
// when ctx is already done. A session-lost status from the device ends the
// session.
func (s *Session) Do(ctx context.Context, op string, fn func(ctx context.Context, cam provider.Camera) error) error {
	if err := ctx.Err(); err != nil {
		return camerr.Wrap(camerr.Cancelled, op, err)
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	cam, state := s.cam, s.state
	s.mu.Unlock()
	if state != Connected || cam == nil {
		return camerr.New(camerr.NotConnected, op)
	}

	opCtx, done := s.begin(ctx)
	defer done()
	if err := opCtx.Err(); err != nil {
		return camerr.Wrap(camerr.Cancelled, op, err)
	}

	start := time.Now()
	err := fn(opCtx, cam)
	s.finish(op, start, err)

	if err != nil && provider.IsSessionLost(err) {
		s.log.Warn("device lost, ending session", zap.String("op", op), zap.Error(err))
		s.release()
	}
	return err
}

func (s *Session) finish(op string, start time.Time, err error) {
	outcome := metrics.OutcomeOK
	switch {
	case camerr.IsCancelled(err):
		outcome = metrics.OutcomeCancelled
	case err != nil:
		outcome = metrics.OutcomeError
	}
	metrics.RecordOperation(op, outcome, time.Since(start))
}

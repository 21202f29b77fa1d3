package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"sync/atomic"
	"syscall"

	"go.uber.org/zap"

	"gpcam/internal/camera"
	"gpcam/internal/config"
	"gpcam/internal/logging"
	"gpcam/internal/metrics"
	"gpcam/internal/mount"
	"gpcam/internal/provider"
	"gpcam/internal/provider/dirbrowse"
	"gpcam/internal/provider/gphoto2"
	"gpcam/internal/provider/sim"
	"gpcam/internal/session"
)

type command struct {
	usage string

	// offline commands run without connecting to a device.
	offline bool
	run     func(ctx context.Context, e *env, args []string) error
}

var commands = map[string]command{
	"models":  {usage: "list supported camera models", offline: true, run: cmdModels},
	"ports":   {usage: "list ports visible to the host", offline: true, run: cmdPorts},
	"detect":  {usage: "autodetect the attached camera", offline: true, run: cmdDetect},
	"watch":   {usage: "report and import cameras as they are plugged in", offline: true, run: cmdWatch},
	"ls":      {usage: "ls [folder]: list folders and files", run: cmdList},
	"tree":    {usage: "tree [folder]: list every folder below folder", run: cmdTree},
	"info":    {usage: "info path: show file details", run: cmdInfo},
	"get":     {usage: "get path [dest]: download a file", run: cmdGet},
	"put":     {usage: "put local folder [name]: upload a file", run: cmdPut},
	"rm":      {usage: "rm path: delete a file", run: cmdRemove},
	"rmdir":   {usage: "rmdir folder: delete a folder and everything below it", run: cmdRemoveAll},
	"lock":    {usage: "lock path: make a file read-only", run: cmdLock(true)},
	"unlock":  {usage: "unlock path: make a file writable", run: cmdLock(false)},
	"capture": {usage: "capture an image", run: cmdCapture},
	"preview": {usage: "preview dest: save a live preview frame", run: cmdPreview},
	"thumb":   {usage: "thumb path dest: save a thumbnail", run: cmdThumb},
	"exif":    {usage: "exif path dest: save the raw EXIF blob", run: cmdExif},
	"summary": {usage: "print the camera summary", run: cmdSummary},
	"manual":  {usage: "print the driver manual", run: cmdManual},
	"about":   {usage: "print the driver about text", run: cmdAbout},
	"space":   {usage: "show capacity and free space", run: cmdSpace},
	"import":  {usage: "copy new files to staging and archive them", run: cmdImport},
}

// env is what a subcommand runs against.
type env struct {
	cfg config.Config
	log *zap.Logger
	p   provider.Provider
	cam *camera.Camera

	// live is the camera SIGINT cancels operations on.
	live atomic.Pointer[camera.Camera]
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: gpcam <command> [flags] [args]\n\ncommands:\n")
	names := make([]string, 0, len(commands))
	for n := range commands {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(os.Stderr, "  %-8s %s\n", n, commands[n].usage)
	}
	fmt.Fprintf(os.Stderr, "\nrun gpcam <command> -h for flags\n")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	name := os.Args[1]
	cmd, ok := commands[name]
	if !ok {
		usage()
		os.Exit(2)
	}

	cfg, args, err := config.Load(name, os.Args[2:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "gpcam %s: %v\n", name, err)
		os.Exit(2)
	}

	if err := logging.Init(cfg.LogLevel, cfg.LogFormat); err != nil {
		fmt.Fprintf(os.Stderr, "gpcam: logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()
	log := logging.L()

	if err := run(cfg, log, cmd, args); err != nil {
		log.Error(name+" failed", zap.Error(err))
		logging.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, log *zap.Logger, cmd command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.MetricsAddr != "" {
		go serveMetrics(log, cfg.MetricsAddr)
	}

	p, release, err := openProvider(cfg)
	if err != nil {
		return err
	}
	defer release()

	e := &env{cfg: cfg, log: log, p: p}
	interrupts(ctx, log, e, cancel)

	if cmd.offline {
		return cmd.run(ctx, e, args)
	}

	cam, err := connect(ctx, e)
	if err != nil {
		return err
	}
	defer cam.Close()
	return cmd.run(ctx, e, args)
}

func openProvider(cfg config.Config) (provider.Provider, func(), error) {
	switch cfg.Provider {
	case config.ProviderSim:
		return sim.NewDemo(), func() {}, nil
	case config.ProviderDir:
		release := func() {}
		mountPoint := cfg.MountPoint
		if cfg.DevNode != "" {
			if err := mount.MountRO(cfg.DevNode, cfg.DirRoot); err != nil {
				return nil, nil, fmt.Errorf("mount %s: %w", cfg.DevNode, err)
			}
			release = func() { _ = mount.Unmount(cfg.DirRoot) }
			if mountPoint == "" {
				mountPoint = cfg.DirRoot
			}
		}
		p := dirbrowse.New(cfg.DirRoot, dirbrowse.Options{MountPoint: mountPoint, ThumbSize: cfg.ThumbSize})
		return p, release, nil
	default:
		return gphoto2.New()
	}
}

// sessionConfig fills in the model and port, autodetecting them when the
// model is not given.
func sessionConfig(ctx context.Context, e *env) (session.Config, error) {
	sc := session.Config{
		Title:    e.cfg.Title,
		Model:    e.cfg.Model,
		Port:     e.cfg.Port,
		RootPath: e.cfg.RootPath,
	}
	if e.cfg.Provider == config.ProviderDir {
		sc.Model = dirbrowse.Model
		sc.Port = ""
	}
	if sc.Model == "" {
		det, err := camera.New(e.p, sc, e.log).Discovery.AutoDetect(ctx)
		if err != nil {
			return sc, err
		}
		sc.Model, sc.Port = det.Model, det.Port
	}
	if sc.Title == "" {
		sc.Title = sc.Model
	}
	return sc, nil
}

func connect(ctx context.Context, e *env) (*camera.Camera, error) {
	sc, err := sessionConfig(ctx, e)
	if err != nil {
		return nil, err
	}
	cam := camera.New(e.p, sc, e.log)
	if err := cam.Connect(ctx); err != nil {
		return nil, err
	}
	e.cam = cam
	e.live.Store(cam)
	return cam, nil
}

// interrupts makes the first SIGINT cancel the operation in flight and a
// second one, or SIGTERM, stop the command.
func interrupts(ctx context.Context, log *zap.Logger, e *env, stop context.CancelFunc) {
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigs)
		soft := true
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-sigs:
				cam := e.live.Load()
				if soft && sig == os.Interrupt && cam != nil && cam.CancelCurrentOperation() {
					log.Warn("cancelling current operation; interrupt again to quit")
					soft = false
					continue
				}
				log.Warn("stopping", zap.Stringer("signal", sig))
				stop()
				return
			}
		}
	}()
}

func serveMetrics(log *zap.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	log.Info("serving metrics", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("metrics server", zap.Error(err))
	}
}

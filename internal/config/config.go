// Package config parses command-line flags, falling back to GPCAM_*
// environment variables for anything not given on the command line.
package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

const (
	ProviderSim     = "sim"
	ProviderDir     = "dir"
	ProviderGphoto2 = "gphoto2"

	ArchiveNone = ""
	ArchiveGCS  = "gcs"
	ArchiveS3   = "s3"
)

type Config struct {
	// Logging
	LogLevel  string
	LogFormat string

	MetricsAddr string

	// Device
	Provider   string
	DirRoot    string
	DevNode    string
	MountPoint string
	ThumbSize  int
	Model      string
	Port       string
	Title      string
	RootPath   string

	// Import ledger
	DBPath          string
	StageRoot       string
	All             bool
	DeleteAfterCopy bool

	// Archive upload
	Archive      string
	Workers      int
	PollInterval time.Duration
	Lease        time.Duration
	DeleteLocal  bool

	Bucket       string
	ObjectPrefix string

	// GCS
	CredsJSON string

	// S3
	S3Endpoint  string
	S3Region    string
	S3AccessKey string
	S3SecretKey string
	S3PathStyle bool
}

// Load parses args for the named subcommand. It returns the remaining
// positional arguments.
func Load(name string, args []string, out io.Writer) (Config, []string, error) {
	var cfg Config
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)

	fs.StringVar(&cfg.LogLevel, "log-level", envOr("GPCAM_LOG_LEVEL", "info"), "debug, info, warn or error")
	fs.StringVar(&cfg.LogFormat, "log-format", envOr("GPCAM_LOG_FORMAT", "console"), "console or json")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", envOr("GPCAM_METRICS_ADDR", ""), "serve prometheus metrics on this address")

	fs.StringVar(&cfg.Provider, "provider", envOr("GPCAM_PROVIDER", ProviderGphoto2), "sim, dir or gphoto2")
	fs.StringVar(&cfg.DirRoot, "dir", envOr("GPCAM_DIR", ""), "directory served by the dir provider")
	fs.StringVar(&cfg.DevNode, "device", envOr("GPCAM_DEVICE", ""), "block device to mount read-only at -dir")
	fs.StringVar(&cfg.MountPoint, "mount", envOr("GPCAM_MOUNT", ""), "remount this mount point read-write around changes")
	fs.IntVar(&cfg.ThumbSize, "thumb-size", envInt("GPCAM_THUMB_SIZE", 160), "generated thumbnail bound in pixels")
	fs.StringVar(&cfg.Model, "model", envOr("GPCAM_MODEL", ""), "camera model; empty to autodetect")
	fs.StringVar(&cfg.Port, "port", envOr("GPCAM_PORT", ""), "camera port, e.g. usb:001,004")
	fs.StringVar(&cfg.Title, "title", envOr("GPCAM_TITLE", ""), "display name of the camera")
	fs.StringVar(&cfg.RootPath, "root", envOr("GPCAM_ROOT", "/"), "camera folder to start from")

	fs.StringVar(&cfg.DBPath, "db", envOr("GPCAM_DB", "./gpcam.db"), "path to the import ledger")
	fs.StringVar(&cfg.StageRoot, "stage", envOr("GPCAM_STAGE", "./staging"), "local directory imports are copied to")
	fs.BoolVar(&cfg.All, "all", envBool("GPCAM_ALL", false), "import every file, not only pictures and videos")
	fs.BoolVar(&cfg.DeleteAfterCopy, "delete-after-copy", envBool("GPCAM_DELETE_AFTER_COPY", false), "delete from the camera once staged")

	fs.StringVar(&cfg.Archive, "archive", envOr("GPCAM_ARCHIVE", ArchiveNone), "gcs, s3 or empty for no upload")
	fs.IntVar(&cfg.Workers, "workers", envInt("GPCAM_WORKERS", 2), "number of upload workers")
	fs.DurationVar(&cfg.PollInterval, "poll", envDuration("GPCAM_POLL", 750*time.Millisecond), "upload scheduler poll interval")
	fs.DurationVar(&cfg.Lease, "lease", envDuration("GPCAM_LEASE", 2*time.Minute), "claim lease duration")
	fs.BoolVar(&cfg.DeleteLocal, "delete-local", envBool("GPCAM_DELETE_LOCAL", false), "remove staged files once verified")

	fs.StringVar(&cfg.Bucket, "bucket", envOr("GPCAM_BUCKET", ""), "archive bucket name")
	fs.StringVar(&cfg.ObjectPrefix, "prefix", envOr("GPCAM_PREFIX", "gpcam"), "archive object key prefix")
	fs.StringVar(&cfg.CredsJSON, "creds", envOr("GPCAM_GCS_CREDS", ""), "path to GCS service account JSON")
	fs.StringVar(&cfg.S3Endpoint, "s3-endpoint", envOr("GPCAM_S3_ENDPOINT", ""), "S3 endpoint URL, e.g. http://localhost:9000")
	fs.StringVar(&cfg.S3Region, "s3-region", envOr("GPCAM_S3_REGION", "us-east-1"), "S3 region")
	fs.StringVar(&cfg.S3AccessKey, "s3-access-key", envOr("GPCAM_S3_ACCESS_KEY", ""), "S3 access key; empty for the default chain")
	fs.StringVar(&cfg.S3SecretKey, "s3-secret-key", envOr("GPCAM_S3_SECRET_KEY", ""), "S3 secret key")
	fs.BoolVar(&cfg.S3PathStyle, "s3-path-style", envBool("GPCAM_S3_PATH_STYLE", true), "path-style bucket addressing (MinIO)")

	if err := fs.Parse(args); err != nil {
		return Config{}, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, nil, err
	}
	return cfg, fs.Args(), nil
}

func (c Config) Validate() error {
	switch c.Provider {
	case ProviderSim, ProviderGphoto2:
	case ProviderDir:
		if c.DirRoot == "" {
			return fmt.Errorf("-provider dir needs -dir")
		}
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	switch c.Archive {
	case ArchiveNone:
	case ArchiveGCS, ArchiveS3:
		if c.Bucket == "" {
			return fmt.Errorf("-archive %s needs -bucket", c.Archive)
		}
	default:
		return fmt.Errorf("unknown archive %q", c.Archive)
	}
	if c.Workers < 1 {
		return fmt.Errorf("-workers must be at least 1")
	}
	if c.S3AccessKey != "" && c.S3SecretKey == "" {
		return fmt.Errorf("-s3-access-key without -s3-secret-key")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

package main

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"gpcam/internal/camera"
	"gpcam/internal/config"
	"gpcam/internal/model"
	"gpcam/internal/provider/dirbrowse"
	"gpcam/internal/provider/sim"
	"gpcam/internal/store"
)

func simEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	cfg, _, err := config.Load("test", []string{
		"-provider", "sim",
		"-db", filepath.Join(dir, "ledger.db"),
		"-stage", filepath.Join(dir, "stage"),
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return &env{cfg: cfg, log: zap.NewNop(), p: sim.NewDemo()}
}

func TestSessionConfigAutodetects(t *testing.T) {
	e := simEnv(t)
	sc, err := sessionConfig(context.Background(), e)
	if err != nil {
		t.Fatal(err)
	}
	if sc.Model != sim.DemoModel || sc.Port != sim.DemoPort || sc.Title != sim.DemoModel {
		t.Fatalf("config %+v", sc)
	}
}

func TestSessionConfigDirectoryBrowse(t *testing.T) {
	e := simEnv(t)
	e.cfg.Provider = config.ProviderDir
	e.cfg.Port = "usb:001,002"
	sc, err := sessionConfig(context.Background(), e)
	if err != nil {
		t.Fatal(err)
	}
	if sc.Model != dirbrowse.Model || sc.Port != "" {
		t.Fatalf("config %+v", sc)
	}
}

func TestNeedArgs(t *testing.T) {
	if err := needArgs([]string{"a"}, 1, 2, "get path [dest]"); err != nil {
		t.Fatal(err)
	}
	if err := needArgs(nil, 1, 2, "get path [dest]"); err == nil {
		t.Fatal("missing argument accepted")
	}
	if err := needArgs([]string{"a", "b", "c"}, 1, 2, "get path [dest]"); err == nil {
		t.Fatal("extra argument accepted")
	}
}

func TestSpaceLine(t *testing.T) {
	cases := []struct {
		sp   camera.Space
		want string
	}{
		{camera.Space{CapacityKB: 100, AvailableKB: 40}, "capacity 100 KiB, free 40 KiB, used 60 KiB"},
		{camera.Space{CapacityKB: 100, AvailableKB: 100}, "capacity 100 KiB, free 100 KiB, used 0 KiB"},
		{camera.Space{CapacityKB: 100, AvailableKB: 250}, "capacity 100 KiB, free 250 KiB"},
	}
	for _, c := range cases {
		if got := spaceLine(c.sp); got != c.want {
			t.Errorf("spaceLine(%+v) = %q, want %q", c.sp, got, c.want)
		}
	}
}

func TestImportFromSim(t *testing.T) {
	e := simEnv(t)
	ctx := context.Background()
	cam, err := connect(ctx, e)
	if err != nil {
		t.Fatal(err)
	}
	defer cam.Close()

	db, err := store.Open(e.cfg.DBPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	id, err := importFrom(ctx, e.log, e.cfg, db, cam, nil)
	if err != nil {
		t.Fatal(err)
	}
	// the demo summary carries a serial number
	if id != "0123456789ab" {
		t.Fatalf("device id %q", id)
	}
	counts := queued(t, db, id)
	if counts != 4 {
		t.Fatalf("queued %d", counts)
	}
}

func queued(t *testing.T, db *sql.DB, id string) int {
	t.Helper()
	c, err := store.Counts(db, id)
	if err != nil {
		t.Fatal(err)
	}
	return c[model.StateQueued]
}

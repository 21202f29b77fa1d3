package discover

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"gpcam/internal/camera"
	"gpcam/internal/model"
	"gpcam/internal/provider"
	"gpcam/internal/provider/sim"
	"gpcam/internal/session"
	"gpcam/internal/store"
)

func setup(t *testing.T, p *sim.Provider) (*camera.Camera, *sql.DB) {
	t.Helper()
	c := camera.New(p, session.Config{Model: sim.DemoModel, Port: sim.DemoPort}, nil)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })

	db, err := store.Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return c, db
}

func TestScan(t *testing.T) {
	p := sim.NewDemo()
	p.AddFile("/DCIM/100CANON", "CANONMSC.CTG", []byte("catalog"), provider.FileDetails{})
	c, db := setup(t, p)
	opts := Options{DeviceID: "cam1", StageRoot: "/stage"}

	res, err := Scan(context.Background(), nil, c, db, opts)
	if err != nil {
		t.Fatal(err)
	}
	if res.Folders != 4 || res.New != 4 || len(res.Records) != 4 {
		t.Fatalf("result %+v", res)
	}
	for _, r := range res.Records {
		if r.Downloaded != model.DownloadNew {
			t.Fatalf("%s: %s", r.Path(), r.Downloaded)
		}
	}

	rows, err := store.FetchRunnable(db, model.StateDiscovered, "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 4 {
		t.Fatalf("rows %d", len(rows))
	}
	first := rows[0]
	if first.Folder != "/DCIM/100CANON" || first.Name != "IMG_0001.JPG" || first.MIME != "image/jpeg" {
		t.Fatalf("row %+v", first)
	}
	if first.StagedPath != filepath.Join("/stage", "cam1", "DCIM", "100CANON", "IMG_0001.JPG") {
		t.Fatalf("staged %s", first.StagedPath)
	}
	if first.Size != int64(len("demo image IMG_0001.JPG")) {
		t.Fatalf("size %d", first.Size)
	}

	// a second scan finds nothing new
	res, err = Scan(context.Background(), nil, c, db, opts)
	if err != nil {
		t.Fatal(err)
	}
	if res.New != 0 {
		t.Fatalf("new = %d", res.New)
	}
	for _, r := range res.Records {
		if r.Downloaded != model.DownloadedYes {
			t.Fatalf("%s: %s", r.Path(), r.Downloaded)
		}
	}
}

func TestScanAll(t *testing.T) {
	p := sim.NewDemo()
	p.AddFile("/DCIM/100CANON", "CANONMSC.CTG", []byte("catalog"), provider.FileDetails{})
	c, db := setup(t, p)

	res, err := Scan(context.Background(), nil, c, db, Options{DeviceID: "cam1", Root: "/DCIM/100CANON", All: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.Folders != 1 || res.New != 4 {
		t.Fatalf("result %+v", res)
	}
}

func TestScanListingFailure(t *testing.T) {
	p := sim.NewDemo()
	c, db := setup(t, p)
	p.Fail("list-folders", provider.CodeIO)

	if _, err := Scan(context.Background(), nil, c, db, Options{DeviceID: "cam1"}); err == nil {
		t.Fatal("expected an error")
	}
	rows, _ := store.FetchRunnable(db, model.StateDiscovered, "", 10)
	if len(rows) != 0 {
		t.Fatalf("rows %d", len(rows))
	}
}

func TestStagedPathStaysUnderDevice(t *testing.T) {
	base := filepath.Join("/stage", "cam1")
	cases := []struct {
		folder, name string
		want         string
		ok           bool
	}{
		{"/DCIM/100CANON", "IMG_0001.JPG", filepath.Join(base, "DCIM", "100CANON", "IMG_0001.JPG"), true},
		{"/DCIM/../../..", "IMG_0001.JPG", filepath.Join(base, "IMG_0001.JPG"), true},
		{"/../etc", "passwd", filepath.Join(base, "etc", "passwd"), true},
		{"/DCIM", "..", "", false},
		{"/DCIM", ".", "", false},
		{"/DCIM", "../../x", "", false},
		{"/DCIM", "", "", false},
	}
	for _, c := range cases {
		got, err := StagedPath("/stage", "cam1", c.folder, c.name)
		if c.ok != (err == nil) || got != c.want {
			t.Errorf("StagedPath(%q, %q) = %q, %v", c.folder, c.name, got, err)
		}
	}
}

// fixedLister reports one folder with the given records.
type fixedLister []model.ItemRecord

func (l fixedLister) ListAllFoldersRecursive(context.Context, string) ([]string, error) {
	return nil, nil
}

func (l fixedLister) ListItemRecords(context.Context, string) ([]model.ItemRecord, error) {
	return l, nil
}

func TestScanSkipsUnsafeNames(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	good := model.UnknownRecord("/", "IMG_0001.JPG")
	good.MIME = "image/jpeg"
	bad := model.UnknownRecord("/", "../../outside.jpg")
	bad.MIME = "image/jpeg"

	res, err := Scan(context.Background(), nil, fixedLister{good, bad}, db, Options{DeviceID: "cam1", StageRoot: "/stage"})
	if err != nil {
		t.Fatal(err)
	}
	if res.New != 1 {
		t.Fatalf("new = %d", res.New)
	}
	rows, _ := store.FetchRunnable(db, model.StateDiscovered, "", 10)
	if len(rows) != 1 || rows[0].Name != "IMG_0001.JPG" {
		t.Fatalf("rows %+v", rows)
	}
}

package transfer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gpcam/internal/abilities"
	"gpcam/internal/camerr"
	"gpcam/internal/catalog"
	"gpcam/internal/discovery"
	"gpcam/internal/model"
	"gpcam/internal/provider"
	"gpcam/internal/provider/sim"
	"gpcam/internal/session"
)

type rig struct {
	p   *sim.Provider
	s   *session.Session
	cat *catalog.Catalog
	eng *Engine
}

func newRig(t *testing.T, p *sim.Provider, modelName, port string) *rig {
	t.Helper()
	reg := abilities.New(p, nil)
	s := session.New(p, reg, discovery.New(p, reg, nil), session.Config{Model: modelName, Port: port}, nil)
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = s.Disconnect() })
	return &rig{p: p, s: s, cat: catalog.New(s, nil), eng: New(s, p, nil)}
}

func demoRig(t *testing.T) *rig {
	return newRig(t, sim.NewDemo(), sim.DemoModel, sim.DemoPort)
}

func TestDownloadItem(t *testing.T) {
	r := demoRig(t)
	dest := filepath.Join(t.TempDir(), "out", "IMG_0001.JPG")

	if err := r.eng.DownloadItem(context.Background(), "/DCIM/100CANON", "IMG_0001.JPG", dest); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "demo image IMG_0001.JPG" {
		t.Fatalf("content = %q", got)
	}
}

func TestDownloadItemTransferFailed(t *testing.T) {
	r := demoRig(t)
	dest := filepath.Join(t.TempDir(), "x.jpg")
	err := r.eng.DownloadItem(context.Background(), "/DCIM/100CANON", "MISSING.JPG", dest)
	if !errors.Is(err, camerr.ErrTransfer) {
		t.Fatalf("got %v", err)
	}
	if camerr.CodeOf(err) != provider.CodeFileNotFound {
		t.Fatalf("code = %d", camerr.CodeOf(err))
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Fatal("nothing should be written")
	}
}

func TestDownloadItemSaveFailed(t *testing.T) {
	r := demoRig(t)
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	err := r.eng.DownloadItem(context.Background(), "/DCIM/100CANON", "IMG_0001.JPG", filepath.Join(blocker, "IMG_0001.JPG"))
	if !errors.Is(err, camerr.ErrSave) {
		t.Fatalf("want SaveFailed, got %v", err)
	}
}

func TestDownloadItemCancelledInFlight(t *testing.T) {
	p := sim.NewDemo()
	p.AddFile("/DCIM/100CANON", "BIG.JPG", make([]byte, 32*1024), provider.FileDetails{})
	r := newRig(t, p, sim.DemoModel, sim.DemoPort)
	p.SetChunkHook(1024, func(op string, done int) {
		if done == 2048 {
			r.s.CancelCurrentOperation()
		}
	})

	dest := filepath.Join(t.TempDir(), "BIG.JPG")
	err := r.eng.DownloadItem(context.Background(), "/DCIM/100CANON", "BIG.JPG", dest)
	if !camerr.IsCancelled(err) {
		t.Fatalf("want Cancelled, got %v", err)
	}
	if errors.Is(err, camerr.ErrProvider) {
		t.Fatal("cancel must be distinguishable from provider errors")
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Fatal("cancelled download must not land")
	}
	if r.s.State() != session.Connected {
		t.Fatalf("state = %v", r.s.State())
	}
}

func TestCancelBeforeCallDoesNotCancelIt(t *testing.T) {
	r := demoRig(t)
	r.s.CancelCurrentOperation()
	names, err := r.cat.ListFolderNames(context.Background(), "/")
	if err != nil {
		t.Fatalf("got %v", err)
	}
	if len(names) != 1 || names[0] != "DCIM" {
		t.Fatalf("names = %v", names)
	}
}

func TestSetLockRoundTrip(t *testing.T) {
	r := demoRig(t)
	ctx := context.Background()
	folder := "/DCIM/100CANON"

	find := func() model.ItemRecord {
		recs, err := r.cat.ListItemRecords(ctx, folder)
		if err != nil {
			t.Fatal(err)
		}
		for _, rec := range recs {
			if rec.Name == "IMG_0002.JPG" {
				return rec
			}
		}
		t.Fatal("item missing")
		return model.ItemRecord{}
	}

	// the simulated firmware rejects writes carrying other fields
	if err := r.eng.SetLock(ctx, folder, "IMG_0002.JPG", true); err != nil {
		t.Fatal(err)
	}
	if rec := find(); !rec.Locked() || rec.ReadPermission != model.AccessGranted {
		t.Fatalf("after lock: %+v", rec)
	}

	if err := r.eng.SetLock(ctx, folder, "IMG_0002.JPG", false); err != nil {
		t.Fatal(err)
	}
	if rec := find(); rec.WritePermission != model.AccessGranted {
		t.Fatalf("after unlock: %+v", rec)
	}

	d, _ := r.p.Details(folder, "IMG_0002.JPG")
	if !d.Has(provider.FieldSize) || !d.Has(provider.FieldMTime) {
		t.Fatalf("other metadata must be untouched: %+v", d)
	}
}

func TestDeleteItem(t *testing.T) {
	r := demoRig(t)
	ctx := context.Background()
	if err := r.eng.DeleteItem(ctx, "/DCIM/100CANON", "IMG_0001.JPG"); err != nil {
		t.Fatal(err)
	}
	if r.p.Exists("/DCIM/100CANON/IMG_0001.JPG") {
		t.Fatal("file still there")
	}

	// protected
	err := r.eng.DeleteItem(ctx, "/DCIM/100CANON", "IMG_0003.CR2")
	if !errors.Is(err, camerr.ErrTransfer) || camerr.CodeOf(err) != provider.CodeCameraError {
		t.Fatalf("got %v", err)
	}
}

func TestDeleteAllItemsChildrenFirst(t *testing.T) {
	p := sim.NewDemo()
	p.AddFolder("/DCIM/101CANON/a/deep")
	p.AddFolder("/DCIM/101CANON/b")
	p.AddFile("/DCIM/101CANON/a/deep", "x.jpg", []byte("x"), provider.FileDetails{})
	r := newRig(t, p, sim.DemoModel, sim.DemoPort)
	p.ResetCalls()

	if err := r.eng.DeleteAllItems(context.Background(), "/DCIM/101CANON"); err != nil {
		t.Fatal(err)
	}

	var order []string
	for _, c := range p.Calls() {
		if strings.HasPrefix(c, "delete-all ") {
			order = append(order, strings.TrimPrefix(c, "delete-all "))
		}
	}
	pos := map[string]int{}
	for i, f := range order {
		pos[f] = i
	}
	if len(order) != 4 {
		t.Fatalf("delete order = %v", order)
	}
	for desc, anc := range map[string]string{
		"/DCIM/101CANON/a/deep": "/DCIM/101CANON/a",
		"/DCIM/101CANON/a":      "/DCIM/101CANON",
		"/DCIM/101CANON/b":      "/DCIM/101CANON",
	} {
		if pos[desc] > pos[anc] {
			t.Errorf("%s deleted after its ancestor %s: %v", desc, anc, order)
		}
	}
	if p.Exists("/DCIM/101CANON") {
		t.Fatal("folder should be gone")
	}
	if !p.Exists("/DCIM/100CANON") {
		t.Fatal("sibling folder removed")
	}
}

func TestDeleteAllItemsStopsOnFirstFailure(t *testing.T) {
	r := demoRig(t)
	// IMG_0003.CR2 is protected
	err := r.eng.DeleteAllItems(context.Background(), "/DCIM")
	if !errors.Is(err, camerr.ErrTransfer) {
		t.Fatalf("got %v", err)
	}
	if !r.p.Exists("/DCIM") {
		t.Fatal("parent must survive a failed child")
	}
}

func TestUploadRoundTrip(t *testing.T) {
	r := demoRig(t)
	local := filepath.Join(t.TempDir(), "local.jpg")
	if err := os.WriteFile(local, []byte("uploaded bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	rec, err := r.eng.UploadItem(context.Background(), "/DCIM/100CANON", "UP_0001.JPG", local)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Name != "UP_0001.JPG" || rec.Size == nil || *rec.Size != int64(len("uploaded bytes")) {
		t.Fatalf("record %+v", rec)
	}

	recs, err := r.cat.ListItemRecords(context.Background(), "/DCIM/100CANON")
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, x := range recs {
		if x.Name == "UP_0001.JPG" {
			found = true
		}
	}
	if !found {
		t.Fatal("uploaded item not listed")
	}
}

func TestUploadMissingLocalFile(t *testing.T) {
	r := demoRig(t)
	_, err := r.eng.UploadItem(context.Background(), "/DCIM/100CANON", "X.JPG", filepath.Join(t.TempDir(), "nope"))
	if !errors.Is(err, camerr.ErrTransfer) {
		t.Fatalf("got %v", err)
	}
}

func TestUploadUnsupported(t *testing.T) {
	p := sim.NewDemo()
	p.Attach(sim.Device{Model: "Kodak DC240", Port: "serial:/dev/ttyS0"})
	r := newRig(t, p, "Kodak DC240", "serial:/dev/ttyS0")
	_, err := r.eng.UploadItem(context.Background(), "/", "X.JPG", "/dev/null")
	if !errors.Is(err, camerr.ErrUnsupported) {
		t.Fatalf("got %v", err)
	}
}

func TestCapture(t *testing.T) {
	r := demoRig(t)
	shot := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r.p.SetClock(func() time.Time { return shot })

	rec, err := r.eng.Capture(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rec.Folder != "/DCIM/100CANON" || rec.Name != "IMG_0101.JPG" {
		t.Fatalf("record %+v", rec)
	}
	if rec.MIME != "image/jpeg" || rec.Size == nil || rec.Downloaded != model.DownloadedNo {
		t.Fatalf("metadata %+v", rec)
	}
	if rec.ModTime == nil || !rec.ModTime.Equal(shot) {
		t.Fatalf("mtime %v", rec.ModTime)
	}
}

func TestCaptureInfoFailureStillNamesFile(t *testing.T) {
	r := demoRig(t)
	r.p.FailPath("file-info", "/DCIM/100CANON/IMG_0101.JPG", provider.CodeIORead)

	rec, err := r.eng.Capture(context.Background())
	if !errors.Is(err, camerr.ErrCapture) {
		t.Fatalf("got %v", err)
	}
	if rec.Name != "IMG_0101.JPG" || !r.p.Exists(rec.Path()) {
		t.Fatalf("capture result lost: %+v", rec)
	}
	if rec.Size != nil {
		t.Fatal("size must be unknown")
	}
}

func TestCaptureFailed(t *testing.T) {
	r := demoRig(t)
	r.p.Fail("capture", provider.CodeCameraBusy)
	_, err := r.eng.Capture(context.Background())
	if !errors.Is(err, camerr.ErrCapture) || camerr.CodeOf(err) != provider.CodeCameraBusy {
		t.Fatalf("got %v", err)
	}
}

func TestDownloadPreview(t *testing.T) {
	r := demoRig(t)
	frame, err := r.eng.DownloadPreview(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if string(frame) != "live view frame" {
		t.Fatalf("frame = %q", frame)
	}

	r.p.SetPreview(nil)
	if _, err := r.eng.DownloadPreview(context.Background()); !errors.Is(err, camerr.ErrPreviewUnsupported) {
		t.Fatalf("got %v", err)
	}
}

func TestPreviewUnsupportedByModel(t *testing.T) {
	p := sim.NewDemo()
	p.Attach(sim.Device{Model: "Nikon DSC D750", Port: sim.DemoPort})
	r := newRig(t, p, "Nikon DSC D750", sim.DemoPort)
	if _, err := r.eng.DownloadPreview(context.Background()); !errors.Is(err, camerr.ErrPreviewUnsupported) {
		t.Fatalf("got %v", err)
	}
}

func TestThumbnailAndExif(t *testing.T) {
	r := demoRig(t)
	ctx := context.Background()
	thumb, err := r.eng.Thumbnail(ctx, "/DCIM/100CANON", "IMG_0002.JPG")
	if err != nil || string(thumb) != "thumb IMG_0002.JPG" {
		t.Fatalf("thumb %q, %v", thumb, err)
	}
	exif, err := r.eng.ExifBlob(ctx, "/DCIM/100CANON", "IMG_0002.JPG")
	if err != nil || string(exif) != "exif IMG_0002.JPG" {
		t.Fatalf("exif %q, %v", exif, err)
	}
	if _, err := r.eng.ExifBlob(ctx, "/DCIM/100CANON", "NOPE.JPG"); !errors.Is(err, camerr.ErrTransfer) {
		t.Fatalf("got %v", err)
	}
}

func TestOperationsRequireConnection(t *testing.T) {
	r := demoRig(t)
	if err := r.s.Disconnect(); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	checks := map[string]error{}
	_, checks["thumbnail"] = r.eng.Thumbnail(ctx, "/", "a")
	_, checks["exif"] = r.eng.ExifBlob(ctx, "/", "a")
	_, checks["preview"] = r.eng.DownloadPreview(ctx)
	_, checks["capture"] = r.eng.Capture(ctx)
	_, checks["upload"] = r.eng.UploadItem(ctx, "/", "a", "/dev/null")
	checks["download"] = r.eng.DownloadItem(ctx, "/", "a", filepath.Join(t.TempDir(), "a"))
	checks["lock"] = r.eng.SetLock(ctx, "/", "a", true)
	checks["delete"] = r.eng.DeleteItem(ctx, "/", "a")
	checks["delete all"] = r.eng.DeleteAllItems(ctx, "/")

	for op, err := range checks {
		if !errors.Is(err, camerr.ErrNotConnected) {
			t.Errorf("%s: got %v", op, err)
		}
	}
}

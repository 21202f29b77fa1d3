package worker

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"gpcam/internal/model"
	"gpcam/internal/store"
)

type fakeUploader struct {
	mu   sync.Mutex
	got  map[string]model.FileRow
	fail map[string]bool
}

func (u *fakeUploader) UploadAndVerify(ctx context.Context, f model.FileRow) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.fail[f.Name] {
		return errors.New("bucket unavailable")
	}
	u.got[f.Name] = f
	return nil
}

func (u *fakeUploader) Name() string { return "fake" }
func (u *fakeUploader) Close() error { return nil }

func queued(t *testing.T, names ...string) (*sql.DB, string) {
	t.Helper()
	dir := t.TempDir()
	db, err := store.Open(filepath.Join(dir, "ledger.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	for _, n := range names {
		staged := filepath.Join(dir, n)
		if err := os.WriteFile(staged, []byte("data "+n), 0o644); err != nil {
			t.Fatal(err)
		}
		row := model.FileRow{DeviceID: "cam1", Folder: "/DCIM/100CANON", Name: n, StagedPath: staged}
		if _, err := store.InsertDiscovered(db, row); err != nil {
			t.Fatal(err)
		}
	}
	rows, _ := store.FetchRunnable(db, model.StateDiscovered, "", 100)
	for _, r := range rows {
		if err := store.Transition(db, r.ID, model.StateDiscovered, model.StateQueued); err != nil {
			t.Fatal(err)
		}
	}
	return db, dir
}

func state(t *testing.T, db *sql.DB, name string) model.FileRow {
	t.Helper()
	var id int64
	if err := db.QueryRow(`SELECT id FROM files WHERE name=?`, name).Scan(&id); err != nil {
		t.Fatal(err)
	}
	f, _ := store.Get(db, id)
	return f
}

func TestRunOnce(t *testing.T) {
	db, _ := queued(t, "A.JPG", "B.JPG", "C.JPG")
	up := &fakeUploader{got: map[string]model.FileRow{}, fail: map[string]bool{"B.JPG": true}}

	Run(context.Background(), nil, db, up, Options{Workers: 2, Once: true})

	if len(up.got) != 2 {
		t.Fatalf("uploaded %v", up.got)
	}
	// hashes are filled in before the upload
	a := up.got["A.JPG"]
	if a.Size != int64(len("data A.JPG")) || a.SHA256 == "" || a.CRC32C == 0 {
		t.Fatalf("row sent without hashes: %+v", a)
	}
	if s := state(t, db, "A.JPG").State; s != model.StateDone {
		t.Fatalf("A: %s", s)
	}
	b := state(t, db, "B.JPG")
	if b.State != model.StateQueued || b.Attempts != 1 || b.LastError != "bucket unavailable" {
		t.Fatalf("B: %+v", b)
	}
}

func TestRunDeleteLocal(t *testing.T) {
	db, dir := queued(t, "A.JPG")
	up := &fakeUploader{got: map[string]model.FileRow{}}

	Run(context.Background(), nil, db, up, Options{Once: true, DeleteLocal: true})

	if _, err := os.Stat(filepath.Join(dir, "A.JPG")); !os.IsNotExist(err) {
		t.Fatal("staged copy kept")
	}
	if s := state(t, db, "A.JPG").State; s != model.StateDone {
		t.Fatalf("A: %s", s)
	}
}

func TestRunMissingStagedFile(t *testing.T) {
	db, dir := queued(t, "A.JPG")
	os.Remove(filepath.Join(dir, "A.JPG"))
	up := &fakeUploader{got: map[string]model.FileRow{}}

	Run(context.Background(), nil, db, up, Options{Once: true})

	if len(up.got) != 0 {
		t.Fatal("uploaded a missing file")
	}
	if f := state(t, db, "A.JPG"); f.State != model.StateQueued || f.Attempts != 1 {
		t.Fatalf("A: %+v", f)
	}
}

func TestRunPollsUntilCancelled(t *testing.T) {
	db, _ := queued(t, "A.JPG")
	up := &fakeUploader{got: map[string]model.FileRow{}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Run(ctx, nil, db, up, Options{PollInterval: 10 * time.Millisecond})
		close(done)
	}()

	deadline := time.After(5 * time.Second)
	for state(t, db, "A.JPG").State != model.StateDone {
		select {
		case <-deadline:
			t.Fatal("row never archived")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

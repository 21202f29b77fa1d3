package store

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"gpcam/internal/model"
)

func openTest(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func setNow(t *testing.T, at time.Time) {
	t.Helper()
	prev := now
	now = func() time.Time { return at }
	t.Cleanup(func() { now = prev })
}

func row(name string) model.FileRow {
	return model.FileRow{
		DeviceID:   "cam1",
		Folder:     "/DCIM/100CANON",
		Name:       name,
		StagedPath: "/stage/cam1/DCIM/100CANON/" + name,
		MIME:       "image/jpeg",
		Size:       10,
	}
}

func TestInsertDiscoveredOnce(t *testing.T) {
	db := openTest(t)

	ok, err := InsertDiscovered(db, row("IMG_0001.JPG"))
	if err != nil || !ok {
		t.Fatalf("first insert: %v %v", ok, err)
	}
	ok, err = InsertDiscovered(db, row("IMG_0001.JPG"))
	if err != nil || ok {
		t.Fatalf("second insert: %v %v", ok, err)
	}

	seen, err := Seen(db, "cam1", "/DCIM/100CANON", "IMG_0001.JPG")
	if err != nil || !seen {
		t.Fatalf("seen: %v %v", seen, err)
	}
	seen, err = Seen(db, "cam2", "/DCIM/100CANON", "IMG_0001.JPG")
	if err != nil || seen {
		t.Fatalf("other device: %v %v", seen, err)
	}
}

func TestFetchAndClaim(t *testing.T) {
	db := openTest(t)
	for _, n := range []string{"A.JPG", "B.JPG"} {
		if _, err := InsertDiscovered(db, row(n)); err != nil {
			t.Fatal(err)
		}
	}

	rows, err := FetchRunnable(db, model.StateDiscovered, "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0].Name != "A.JPG" || rows[0].State != model.StateDiscovered {
		t.Fatalf("rows %+v", rows)
	}
	if rows[0].SrcPath() != "/DCIM/100CANON/A.JPG" {
		t.Fatalf("src %s", rows[0].SrcPath())
	}

	id := rows[0].ID
	ok, err := Claim(db, id, model.StateDiscovered, model.StateCopying, "w1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("claim: %v %v", ok, err)
	}
	ok, _ = Claim(db, id, model.StateDiscovered, model.StateCopying, "w2", time.Minute)
	if ok {
		t.Fatal("claimed twice under a live lease")
	}

	// an expired lease can be taken over
	setNow(t, time.Now().Add(2*time.Minute))
	ok, err = Claim(db, id, model.StateDiscovered, model.StateCopying, "w2", time.Minute)
	if err != nil || !ok {
		t.Fatalf("takeover: %v %v", ok, err)
	}
}

func TestTransition(t *testing.T) {
	db := openTest(t)
	InsertDiscovered(db, row("A.JPG"))
	rows, _ := FetchRunnable(db, model.StateDiscovered, "", 1)
	id := rows[0].ID

	if err := Transition(db, id, model.StateDiscovered, model.StateCopying); err != nil {
		t.Fatal(err)
	}
	if err := Transition(db, id, model.StateDiscovered, model.StateCopying); err == nil {
		t.Fatal("transition from a stale state succeeded")
	}

	if err := UpdateHashes(db, id, 10, "abc", 0xdeadbeef); err != nil {
		t.Fatal(err)
	}
	f, err := Get(db, id)
	if err != nil {
		t.Fatal(err)
	}
	if f.State != model.StateCopying || f.SHA256 != "abc" || f.CRC32C != 0xdeadbeef {
		t.Fatalf("row %+v", f)
	}
}

func TestBackoff(t *testing.T) {
	db := openTest(t)
	InsertDiscovered(db, row("A.JPG"))
	rows, _ := FetchRunnable(db, model.StateDiscovered, "", 1)
	id := rows[0].ID
	Claim(db, id, model.StateDiscovered, model.StateCopying, "w1", time.Minute)

	start := time.Now()
	setNow(t, start)
	if err := MarkErrorWithBackoff(db, id, model.StateDiscovered, errors.New("usb reset")); err != nil {
		t.Fatal(err)
	}

	f, _ := Get(db, id)
	if f.State != model.StateDiscovered || f.Attempts != 1 || f.LastError != "usb reset" {
		t.Fatalf("row %+v", f)
	}

	rows, _ = FetchRunnable(db, model.StateDiscovered, "", 10)
	if len(rows) != 0 {
		t.Fatal("row runnable before its backoff elapsed")
	}

	setNow(t, start.Add(3*time.Second))
	rows, _ = FetchRunnable(db, model.StateDiscovered, "", 10)
	if len(rows) != 1 {
		t.Fatal("row not runnable after its backoff")
	}
}

func TestCounts(t *testing.T) {
	db := openTest(t)
	InsertDiscovered(db, row("A.JPG"))
	InsertDiscovered(db, row("B.JPG"))
	other := row("C.JPG")
	other.DeviceID = "cam2"
	InsertDiscovered(db, other)

	rows, _ := FetchRunnable(db, model.StateDiscovered, "", 1)
	Transition(db, rows[0].ID, model.StateDiscovered, model.StateCopying)

	c, err := Counts(db, "cam1")
	if err != nil {
		t.Fatal(err)
	}
	if c[model.StateDiscovered] != 1 || c[model.StateCopying] != 1 {
		t.Fatalf("counts %v", c)
	}
	all, _ := Counts(db, "")
	if all[model.StateDiscovered] != 2 {
		t.Fatalf("all %v", all)
	}
}

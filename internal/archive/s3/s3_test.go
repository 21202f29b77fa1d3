package s3

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"gpcam/internal/model"
)

// fakeS3 stores PUT bodies by path and answers HEAD with their length.
type fakeS3 struct {
	mu       sync.Mutex
	objects  map[string][]byte
	meta     map[string]http.Header
	truncate bool
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch r.Method {
	case http.MethodPut:
		b, _ := io.ReadAll(r.Body)
		if f.truncate && len(b) > 0 {
			b = b[:len(b)-1]
		}
		f.objects[r.URL.Path] = b
		f.meta[r.URL.Path] = r.Header.Clone()
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodHead:
		b, ok := f.objects[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(b)))
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func setup(t *testing.T) (*fakeS3, *Uploader, model.FileRow) {
	t.Helper()
	fake := &fakeS3{objects: map[string][]byte{}, meta: map[string]http.Header{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	u, err := New(context.Background(), Config{
		Endpoint:  srv.URL,
		Region:    "us-east-1",
		Bucket:    "photos",
		Prefix:    "gpcam",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		PathStyle: true,
	})
	if err != nil {
		t.Fatal(err)
	}

	staged := filepath.Join(t.TempDir(), "IMG_0001.JPG")
	data := []byte("demo image IMG_0001.JPG")
	if err := os.WriteFile(staged, data, 0o644); err != nil {
		t.Fatal(err)
	}
	f := model.FileRow{
		ID: 7, DeviceID: "cam1", Folder: "/DCIM/100CANON", Name: "IMG_0001.JPG",
		StagedPath: staged, MIME: "image/jpeg", Size: int64(len(data)), SHA256: "abc",
	}
	return fake, u, f
}

func TestUploadAndVerify(t *testing.T) {
	fake, u, f := setup(t)
	if err := u.UploadAndVerify(context.Background(), f); err != nil {
		t.Fatal(err)
	}
	path := "/photos/gpcam/cam1/DCIM/100CANON/IMG_0001.JPG"
	if string(fake.objects[path]) != "demo image IMG_0001.JPG" {
		t.Fatalf("objects %v", fake.objects)
	}
	if got := fake.meta[path].Get("Content-Type"); got != "image/jpeg" {
		t.Fatalf("content type %q", got)
	}
	if got := fake.meta[path].Get("X-Amz-Meta-Src-Path"); got != "/DCIM/100CANON/IMG_0001.JPG" {
		t.Fatalf("src path meta %q", got)
	}
}

func TestUploadSizeMismatch(t *testing.T) {
	fake, u, f := setup(t)
	fake.truncate = true
	if err := u.UploadAndVerify(context.Background(), f); err == nil {
		t.Fatal("short object verified")
	}
}

func TestUploadMissingStagedFile(t *testing.T) {
	_, u, f := setup(t)
	f.StagedPath = filepath.Join(t.TempDir(), "gone")
	if err := u.UploadAndVerify(context.Background(), f); err == nil {
		t.Fatal("expected an error")
	}
}

func TestNewNeedsBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{Region: "us-east-1"}); err == nil {
		t.Fatal("expected an error")
	}
}

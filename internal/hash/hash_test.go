package hash

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSum(t *testing.T) {
	r, err := Sum(strings.NewReader("hello"))
	if err != nil {
		t.Fatal(err)
	}
	if r.Size != 5 {
		t.Fatalf("size %d", r.Size)
	}
	if r.SHA256 != "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824" {
		t.Fatalf("sha256 %s", r.SHA256)
	}
	// CRC-32C check value
	c, _ := Sum(strings.NewReader("123456789"))
	if c.CRC32C != 0xe3069283 {
		t.Fatalf("crc32c %08x", c.CRC32C)
	}
	if !r.Complete() {
		t.Fatal("complete result reported incomplete")
	}
}

func TestCompute(t *testing.T) {
	p := filepath.Join(t.TempDir(), "f")
	if err := os.WriteFile(p, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	a, err := Compute(p)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := Sum(strings.NewReader("hello"))
	if a != b {
		t.Fatalf("%+v != %+v", a, b)
	}
	if _, err := Compute(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("missing file hashed")
	}
}

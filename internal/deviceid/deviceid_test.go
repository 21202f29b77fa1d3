package deviceid

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDeriveOrder(t *testing.T) {
	root := t.TempDir()
	os.MkdirAll(filepath.Join(root, "DCIM"), 0o755)
	os.WriteFile(filepath.Join(root, "DCIM", IDFile), []byte("# card\ngpcam_id=travel card\n"), 0o644)

	udev := map[string]string{"ID_SERIAL_SHORT": "ABC123", "ID_SERIAL": "Canon_ABC123"}
	summary := "Manufacturer: Canon\nSerial Number: 0123456789ab\n"

	cases := []struct {
		name   string
		in     Inputs
		id     string
		source Source
	}{
		{"id file", Inputs{Root: root, Udev: udev}, "travel_card", SourceIDFile},
		{"fs uuid", Inputs{Udev: map[string]string{"ID_FS_UUID": "1234-ABCD", "ID_SERIAL": "x"}}, "1234-ABCD", SourceFSUUID},
		{"serial short", Inputs{Udev: udev, Summary: summary}, "ABC123", SourceSerialShort},
		{"serial", Inputs{Udev: map[string]string{"ID_SERIAL": "Canon/EOS"}}, "Canon_EOS", SourceSerial},
		{"summary", Inputs{Summary: summary}, "0123456789ab", SourceSummary},
		{"root without file", Inputs{Root: t.TempDir(), Summary: summary}, "0123456789ab", SourceSummary},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			id, src := Derive(c.in)
			if id != c.id || src != c.source {
				t.Fatalf("got %s (%s)", id, src)
			}
		})
	}
}

func TestHashFallback(t *testing.T) {
	a, src := Derive(Inputs{Model: "Nikon DSC D750", Port: "usb:001,004"})
	if src != SourceHash || !strings.HasPrefix(a, "cam-") || len(a) != 20 {
		t.Fatalf("got %s (%s)", a, src)
	}
	b, _ := Derive(Inputs{Model: "Nikon DSC D750", Port: "usb:001,004"})
	c, _ := Derive(Inputs{Model: "Nikon DSC D750", Port: "usb:001,005"})
	if a != b || a == c {
		t.Fatalf("ids %s %s %s", a, b, c)
	}
}

func TestBareIDFile(t *testing.T) {
	root := t.TempDir()
	os.MkdirAll(filepath.Join(root, "DCIM"), 0o755)
	os.WriteFile(filepath.Join(root, "DCIM", IDFile), []byte("\n  card-7 \n"), 0o644)
	if id, src := Derive(Inputs{Root: root}); id != "card-7" || src != SourceIDFile {
		t.Fatalf("got %s (%s)", id, src)
	}
}

package model

import "testing"

func TestJoinPath(t *testing.T) {
	cases := []struct{ parent, child, want string }{
		{"/", "DCIM", "/DCIM"},
		{"/DCIM", "100CANON", "/DCIM/100CANON"},
		{"/DCIM/", "100CANON", "/DCIM/100CANON"},
		{"/DCIM", "/100CANON", "/DCIM/100CANON"},
	}
	for _, c := range cases {
		if got := JoinPath(c.parent, c.child); got != c.want {
			t.Errorf("JoinPath(%q, %q) = %q, want %q", c.parent, c.child, got, c.want)
		}
	}
}

func TestSplitPath(t *testing.T) {
	cases := []struct{ path, folder, name string }{
		{"/DCIM/100CANON/IMG_0001.JPG", "/DCIM/100CANON", "IMG_0001.JPG"},
		{"/capt0000.jpg", "/", "capt0000.jpg"},
		{"IMG.JPG", "/", "IMG.JPG"},
	}
	for _, c := range cases {
		folder, name := SplitPath(c.path)
		if folder != c.folder || name != c.name {
			t.Errorf("SplitPath(%q) = %q, %q", c.path, folder, name)
		}
	}
}

func TestLocked(t *testing.T) {
	r := UnknownRecord("/DCIM", "A.JPG")
	if r.Locked() {
		t.Fatal("unknown access reported as locked")
	}
	r.WritePermission = AccessDenied
	if !r.Locked() {
		t.Fatal("denied write not locked")
	}
}

func TestObjectKey(t *testing.T) {
	f := FileRow{DeviceID: "cam1", Folder: "/DCIM/100CANON", Name: "IMG_0001.JPG"}
	if got := f.ObjectKey("gpcam/"); got != "gpcam/cam1/DCIM/100CANON/IMG_0001.JPG" {
		t.Fatalf("key %q", got)
	}
	if got := f.ObjectKey(""); got != "cam1/DCIM/100CANON/IMG_0001.JPG" {
		t.Fatalf("key %q", got)
	}
}

package catalog

import "testing"

func TestMIMEType(t *testing.T) {
	cases := map[string]string{
		"IMG_0001.JPG":  "image/jpeg",
		"img_0001.jpg":  "image/jpeg",
		"a.JpE":         "image/jpeg",
		"scan.TIF":      "image/tiff",
		"scan.tiff":     "image/tiff",
		"IMG_0003.CR2":  "image/x-raw",
		"DSC_0001.nef":  "image/x-raw",
		"photo.DNG":     "image/x-raw",
		"MVI_0004.MOV":  "video/quicktime",
		"clip.avi":      "video/x-msvideo",
		"memo.WAV":      "audio/x-wav",
		"README":        "",
		"archive.tar":   "",
		"dir.name/file": "",
	}
	for name, want := range cases {
		if got := MIMEType(name); got != want {
			t.Errorf("MIMEType(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestMIMETypeCaseInsensitive(t *testing.T) {
	for _, ext := range []string{"jpg", "cr2", "mov", "wav", "png", "xyz"} {
		lower := MIMEType("f." + ext)
		upper := MIMEType("F." + ext)
		if lower != upper {
			t.Errorf("%s: %q != %q", ext, lower, upper)
		}
	}
}

func TestClassify(t *testing.T) {
	cases := map[string]MediaClass{
		"image/jpeg":      ClassImage,
		"image/x-raw":     ClassRaw,
		"video/quicktime": ClassVideo,
		"audio/mpeg":      ClassAudio,
		"":                ClassOther,
	}
	for mime, want := range cases {
		if got := Classify(mime); got != want {
			t.Errorf("Classify(%q) = %v, want %v", mime, got, want)
		}
	}
}

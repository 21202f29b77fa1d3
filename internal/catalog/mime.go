package catalog

import (
	"path"
	"strings"
)

// MediaClass groups MIME types the way importers filter them.
type MediaClass int

const (
	ClassOther MediaClass = iota
	ClassImage
	ClassRaw
	ClassVideo
	ClassAudio
)

func (c MediaClass) String() string {
	switch c {
	case ClassImage:
		return "image"
	case ClassRaw:
		return "raw"
	case ClassVideo:
		return "video"
	case ClassAudio:
		return "audio"
	default:
		return "other"
	}
}

var rawExts = map[string]bool{
	"crw": true, "cr2": true, "cr3": true, "nef": true, "nrw": true,
	"raf": true, "mrw": true, "orf": true, "dcr": true, "kdc": true,
	"arw": true, "srf": true, "sr2": true, "pef": true, "x3f": true,
	"dng": true, "rw2": true, "raw": true, "3fr": true, "mos": true,
	"erf": true, "mef": true, "srw": true,
}

var imageTypes = map[string]string{
	"jpeg": "image/jpeg",
	"tiff": "image/tiff",
	"png":  "image/png",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"ppm":  "image/x-portable-pixmap",
	"pgm":  "image/x-portable-graymap",
	"heic": "image/heic",
	"heif": "image/heif",
	"webp": "image/webp",
}

var videoTypes = map[string]string{
	"avi":  "video/x-msvideo",
	"mov":  "video/quicktime",
	"qt":   "video/quicktime",
	"mpg":  "video/mpeg",
	"mpeg": "video/mpeg",
	"mp4":  "video/mp4",
	"m4v":  "video/mp4",
	"mts":  "video/mp2t",
	"m2ts": "video/mp2t",
	"3gp":  "video/3gpp",
	"wmv":  "video/x-ms-wmv",
	"mkv":  "video/x-matroska",
}

var audioTypes = map[string]string{
	"wav": "audio/x-wav",
	"mp3": "audio/mpeg",
	"ogg": "audio/ogg",
	"aac": "audio/aac",
	"m4a": "audio/mp4",
	"wma": "audio/x-ms-wma",
}

// canonicalExt folds the usual spelling variants.
func canonicalExt(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	switch ext {
	case "jpg", "jpe":
		return "jpeg"
	case "tif":
		return "tiff"
	}
	return ext
}

// MIMEType derives the MIME type of a camera file from its extension alone.
// Unknown extensions give "".
func MIMEType(name string) string {
	ext := canonicalExt(name)
	if ext == "" {
		return ""
	}
	if rawExts[ext] {
		return "image/x-raw"
	}
	if t, ok := imageTypes[ext]; ok {
		return t
	}
	if t, ok := videoTypes[ext]; ok {
		return t
	}
	if t, ok := audioTypes[ext]; ok {
		return t
	}
	return ""
}

// Classify reports the media class of a MIME type returned by MIMEType.
func Classify(mime string) MediaClass {
	switch {
	case mime == "image/x-raw":
		return ClassRaw
	case strings.HasPrefix(mime, "image/"):
		return ClassImage
	case strings.HasPrefix(mime, "video/"):
		return ClassVideo
	case strings.HasPrefix(mime, "audio/"):
		return ClassAudio
	default:
		return ClassOther
	}
}

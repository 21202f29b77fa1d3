// Package deviceid derives the stable id the import ledger files a camera
// under.
package deviceid

import (
	"crypto/sha1"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
)

type Source string

const (
	SourceIDFile      Source = "id_file"
	SourceFSUUID      Source = "fs_uuid"
	SourceSerialShort Source = "serial_short"
	SourceSerial      Source = "serial"
	SourceSummary     Source = "summary_serial"
	SourceHash        Source = "model_port_hash"
)

// IDFile is read from the DCIM folder of a Directory Browse root.
const IDFile = ".gpcam"

type Inputs struct {
	// Root is the host directory of a Directory Browse camera; empty for
	// tethered devices.
	Root string

	// Udev holds the properties of the device's udev event, if any.
	Udev map[string]string

	// Summary is the device summary text.
	Summary string

	Model string
	Port  string
}

// Derive picks a stable device id using, in order:
// 1) DCIM/.gpcam under Root
// 2) ID_FS_UUID
// 3) ID_SERIAL_SHORT
// 4) ID_SERIAL
// 5) the "Serial Number:" line of the summary
// 6) sha1(model + port)
func Derive(in Inputs) (string, Source) {
	if in.Root != "" {
		if id, ok := readIDFile(in.Root); ok {
			return sanitize(id), SourceIDFile
		}
	}

	if v := in.Udev["ID_FS_UUID"]; v != "" {
		return sanitize(v), SourceFSUUID
	}
	if v := in.Udev["ID_SERIAL_SHORT"]; v != "" {
		return sanitize(v), SourceSerialShort
	}
	if v := in.Udev["ID_SERIAL"]; v != "" {
		return sanitize(v), SourceSerial
	}
	if v := summarySerial(in.Summary); v != "" {
		return sanitize(v), SourceSummary
	}

	// stable on one host as long as the camera stays on the same port
	h := sha1.Sum([]byte(in.Model + "\x00" + in.Port))
	return "cam-" + hex.EncodeToString(h[:8]), SourceHash
}

func readIDFile(root string) (string, bool) {
	b, err := os.ReadFile(filepath.Join(root, "DCIM", IDFile))
	if err != nil {
		return "", false
	}
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "gpcam_id=") {
			return strings.TrimSpace(strings.TrimPrefix(line, "gpcam_id=")), true
		}
		// bare id file
		if !strings.Contains(line, "=") {
			return line, true
		}
	}
	return "", false
}

func summarySerial(summary string) string {
	for _, line := range strings.Split(summary, "\n") {
		k, v, ok := strings.Cut(line, ":")
		if ok && strings.EqualFold(strings.TrimSpace(k), "Serial Number") {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// sanitize keeps ids path-safe for staging folders and object prefixes.
func sanitize(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return s
}

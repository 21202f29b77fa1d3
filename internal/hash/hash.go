// Package hash computes the digests the import ledger keeps for every
// staged file: SHA-256 for identity and CRC32C for archive verification.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"hash/crc32"
	"io"
	"os"
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

type Result struct {
	Size   int64
	SHA256 string
	CRC32C uint32
}

// Sum reads r to the end.
func Sum(r io.Reader) (Result, error) {
	h := sha256.New()
	crc := crc32.New(castagnoli)

	// one pass feeds both digests
	n, err := io.Copy(io.MultiWriter(h, crc), r)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Size:   n,
		SHA256: hex.EncodeToString(h.Sum(nil)),
		CRC32C: crc.Sum32(),
	}, nil
}

func Compute(path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, err
	}
	defer f.Close()
	return Sum(f)
}

// Complete reports whether every digest has been filled in.
func (r Result) Complete() bool {
	return r.Size > 0 && r.SHA256 != "" && r.CRC32C != 0
}

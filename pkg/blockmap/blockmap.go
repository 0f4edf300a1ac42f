// Package blockmap computes the incremental-download metadata for published
// plugin archives: a content-defined chunk index over the archive bytes and a
// whole-file hash sidecar. Chunk boundaries and the algorithm identifier are
// part of the persisted format; clients re-chunk with the same parameters to
// detect which chunks changed.
package blockmap

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Algorithm is the persisted hash algorithm identifier. It must match the
// client side exactly for the incremental-download protocol to work.
const Algorithm = "SHA-256"

// Chunking parameters, also part of the persisted format.
const (
	minChunkSize  = 1 << 10 // 1 KiB
	maxChunkSize  = 1 << 16 // 64 KiB
	boundaryMask  = 1<<14 - 1
	rollingWindow = 64
)

// Chunk is one content-defined span of the archive.
type Chunk struct {
	Hash   string `json:"hash"`
	Offset int64  `json:"offset"`
	Size   int    `json:"size"`
}

// BlockMap is the ordered chunk index covering the whole archive.
type BlockMap struct {
	Algorithm string  `json:"algorithm"`
	Chunks    []Chunk `json:"chunks"`
}

// FileHash is the whole-file hash record used to decide whether any
// re-download is necessary at all.
type FileHash struct {
	Hash      string `json:"hash"`
	Algorithm string `json:"algorithm"`
	Size      int64  `json:"size"`
}

// gear is the fixed byte-to-hash table of the rolling hash, generated from a
// constant seed so boundaries are identical across runs and platforms.
var gear [256]uint64

func init() {
	// splitmix64 over a fixed seed
	state := uint64(0x9E3779B97F4A7C15)
	for i := range gear {
		state += 0x9E3779B97F4A7C15
		z := state
		z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
		z = (z ^ (z >> 27)) * 0x94D049BB133111EB
		gear[i] = z ^ (z >> 31)
	}
}

// Compute chunks data with the rolling hash and returns the chunk index.
func Compute(data []byte) *BlockMap {
	bm := &BlockMap{Algorithm: Algorithm}
	offset := 0
	for offset < len(data) {
		size := nextChunkSize(data[offset:])
		sum := sha256.Sum256(data[offset : offset+size])
		bm.Chunks = append(bm.Chunks, Chunk{
			Hash:   hex.EncodeToString(sum[:]),
			Offset: int64(offset),
			Size:   size,
		})
		offset += size
	}
	return bm
}

// nextChunkSize finds the next content-defined boundary in data.
func nextChunkSize(data []byte) int {
	if len(data) <= minChunkSize {
		return len(data)
	}
	limit := len(data)
	if limit > maxChunkSize {
		limit = maxChunkSize
	}
	var h uint64
	for i := 0; i < limit; i++ {
		h = h<<1 + gear[data[i]]
		if i >= rollingWindow && i >= minChunkSize && h&boundaryMask == 0 {
			return i + 1
		}
	}
	return limit
}

// ComputeFileHash returns the whole-file hash record for data.
func ComputeFileHash(data []byte) FileHash {
	sum := sha256.Sum256(data)
	return FileHash{
		Hash:      hex.EncodeToString(sum[:]),
		Algorithm: Algorithm,
		Size:      int64(len(data)),
	}
}

// WriteSidecars writes <archive>.blockmap.zip (containing blockmap.json) and
// <archive>.hash.json next to the archive.
func WriteSidecars(archivePath string) error {
	data, err := os.ReadFile(archivePath)
	if err != nil {
		return fmt.Errorf("reading archive: %w", err)
	}

	bm := Compute(data)
	bmJSON, err := json.Marshal(bm)
	if err != nil {
		return fmt.Errorf("encoding block map: %w", err)
	}

	blockmapPath := archivePath + ".blockmap.zip"
	out, err := os.Create(blockmapPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Base(blockmapPath), err)
	}
	zw := zip.NewWriter(out)
	w, err := zw.Create("blockmap.json")
	if err == nil {
		_, err = w.Write(bmJSON)
	}
	if err == nil {
		err = zw.Close()
	}
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("writing block map: %w", err)
	}

	hashJSON, err := json.Marshal(ComputeFileHash(data))
	if err != nil {
		return fmt.Errorf("encoding file hash: %w", err)
	}
	if err := os.WriteFile(archivePath+".hash.json", hashJSON, 0644); err != nil {
		return fmt.Errorf("writing hash sidecar: %w", err)
	}
	return nil
}

// VerifySidecar checks an archive against its hash sidecar. The sidecar's
// algorithm and hex value are folded into a prefixed checksum string, so
// sidecars written with any supported algorithm verify.
func VerifySidecar(archivePath string) error {
	data, err := os.ReadFile(archivePath)
	if err != nil {
		return fmt.Errorf("reading archive: %w", err)
	}
	raw, err := os.ReadFile(archivePath + ".hash.json")
	if err != nil {
		return fmt.Errorf("reading hash sidecar: %w", err)
	}
	var fh FileHash
	if err := json.Unmarshal(raw, &fh); err != nil {
		return fmt.Errorf("parsing hash sidecar: %w", err)
	}
	if fh.Size != int64(len(data)) {
		return fmt.Errorf("%s: sidecar records %d bytes, archive has %d", filepath.Base(archivePath), fh.Size, len(data))
	}
	checksum := strings.ToLower(strings.ReplaceAll(fh.Algorithm, "-", "")) + ":" + fh.Hash
	ok, err := VerifyChecksum(data, checksum)
	if err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(archivePath), err)
	}
	if !ok {
		return fmt.Errorf("%s: archive does not match its hash sidecar", filepath.Base(archivePath))
	}
	return nil
}

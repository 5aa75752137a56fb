// Package backup writes and restores compressed snapshots of the schedule
// store.
//
// A snapshot file is a plain JSON header line followed by a gzip-compressed
// JSONL payload in the ExportJSONL format. The header carries a SHA-256
// checksum of the compressed bytes.
package backup

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spaun-sim/stimseq/internal/store"
)

// FormatVersion is the snapshot format written by Write.
const FormatVersion = 1

// MaxDecompressedSize is the maximum allowed size of a decompressed payload (200MB).
const MaxDecompressedSize = 200 * 1024 * 1024

const (
	filePrefix = "stimseq-backup-"
	fileSuffix = ".jsonl.gz"
)

// Header is the plain-text first line of a snapshot file.
type Header struct {
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	Checksum  string    `json:"checksum"`
	Schedules int       `json:"schedules"`
}

// DefaultDir returns <root>/.stimseq/backups.
func DefaultDir(projectRoot string) string {
	return filepath.Join(store.StimseqDir(projectRoot), "backups")
}

// GeneratePath creates a timestamped snapshot filename in dir.
func GeneratePath(dir string, now time.Time) string {
	return filepath.Join(dir, filePrefix+now.UTC().Format("20060102-150405.000")+fileSuffix)
}

// Write snapshots every schedule in st to path.
func Write(ctx context.Context, st store.ScheduleStore, path string, now time.Time) (*Header, error) {
	var payload bytes.Buffer
	if err := st.ExportJSONL(ctx, &payload); err != nil {
		return nil, fmt.Errorf("exporting schedules: %w", err)
	}

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(payload.Bytes()); err != nil {
		return nil, fmt.Errorf("compressing payload: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip writer: %w", err)
	}

	header := &Header{
		Version:   FormatVersion,
		CreatedAt: now.UTC(),
		Checksum:  checksum(compressed.Bytes()),
		Schedules: bytes.Count(payload.Bytes(), []byte("\n")),
	}
	headerBytes, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("marshaling header: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(headerBytes, '\n')); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}
	if _, err := f.Write(compressed.Bytes()); err != nil {
		return nil, fmt.Errorf("writing compressed payload: %w", err)
	}
	return header, f.Close()
}

// Restore verifies the snapshot at path and saves its schedules into st.
// Schedules already present are left unchanged. Returns the number of
// schedules read.
func Restore(ctx context.Context, st store.ScheduleStore, path string) (int, error) {
	_, compressed, err := readVerified(path)
	if err != nil {
		return 0, err
	}

	gzr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return 0, fmt.Errorf("creating gzip reader: %w", err)
	}
	defer gzr.Close()

	decompressed, err := io.ReadAll(io.LimitReader(gzr, MaxDecompressedSize+1))
	if err != nil {
		return 0, fmt.Errorf("decompressing payload: %w", err)
	}
	if len(decompressed) > MaxDecompressedSize {
		return 0, fmt.Errorf("decompressed payload exceeds maximum size of %d bytes", MaxDecompressedSize)
	}

	return store.ImportJSONL(ctx, st, bytes.NewReader(decompressed))
}

// Verify checks the integrity of a snapshot without decompressing it.
func Verify(path string) (*Header, error) {
	header, _, err := readVerified(path)
	return header, err
}

func readVerified(path string) (*Header, []byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	headerLine, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, nil, fmt.Errorf("reading header line: %w", err)
	}

	var header Header
	if err := json.Unmarshal(bytes.TrimSpace(headerLine), &header); err != nil {
		return nil, nil, fmt.Errorf("parsing header: %w", err)
	}
	if header.Version != FormatVersion {
		return nil, nil, fmt.Errorf("unsupported backup version %d", header.Version)
	}

	compressed, err := io.ReadAll(reader)
	if err != nil {
		return nil, nil, fmt.Errorf("reading compressed payload: %w", err)
	}
	if actual := checksum(compressed); actual != header.Checksum {
		return nil, nil, fmt.Errorf("checksum mismatch: expected %s, got %s", header.Checksum, actual)
	}
	return &header, compressed, nil
}

func checksum(data []byte) string {
	hash := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(hash[:])
}

// List returns the snapshot files in dir, newest first.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() && strings.HasPrefix(name, filePrefix) && strings.HasSuffix(name, fileSuffix) {
			paths = append(paths, filepath.Join(dir, name))
		}
	}
	// The timestamp in the name sorts lexically.
	sort.Sort(sort.Reverse(sort.StringSlice(paths)))
	return paths, nil
}

// Rotate keeps only the keepN most recent snapshots in dir and returns the
// paths it removed. keepN <= 0 keeps everything.
func Rotate(dir string, keepN int) ([]string, error) {
	if keepN <= 0 {
		return nil, nil
	}
	paths, err := List(dir)
	if err != nil {
		return nil, err
	}
	if len(paths) <= keepN {
		return nil, nil
	}

	var removed []string
	for _, p := range paths[keepN:] {
		if err := os.Remove(p); err != nil {
			return removed, fmt.Errorf("failed to remove old backup %s: %w", filepath.Base(p), err)
		}
		removed = append(removed, p)
	}
	return removed, nil
}

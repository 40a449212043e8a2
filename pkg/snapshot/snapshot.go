// Package snapshot exports and restores the full contents of a
// state.Backend to a single gzip-compressed JSON file, for
// reproducible test fixtures and disaster recovery between runs.
package snapshot

import (
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oladejiayo/localzure-sub003/pkg/log"
	"github.com/oladejiayo/localzure-sub003/pkg/metrics"
	"github.com/oladejiayo/localzure-sub003/pkg/state"
)

// FormatVersion identifies the snapshot file schema. A restore refuses
// to proceed against a mismatched version.
const FormatVersion = "1.0"

// Metadata describes a snapshot's provenance and contents.
type Metadata struct {
	Version      string   `json:"version"`
	Timestamp    string   `json:"timestamp"`
	BackendType  string   `json:"backend_type"`
	Namespaces   []string `json:"namespaces"`
	TotalKeys    int      `json:"total_keys"`
	Checksum     string   `json:"checksum,omitempty"`
	Partial      bool     `json:"partial"`
	Services     []string `json:"services,omitempty"`
}

// file is the on-disk (pre-gzip) JSON shape.
type file struct {
	Metadata Metadata                          `json:"metadata"`
	Data     map[string]map[string]interface{} `json:"data"`
}

// ValidationResult is the outcome of Validate.
type ValidationResult struct {
	Valid            bool     `json:"valid"`
	VersionValid     bool     `json:"version_valid"`
	ChecksumValid    bool     `json:"checksum_valid"`
	ChecksumMessage  string   `json:"checksum_message"`
	Metadata         Metadata `json:"metadata"`
	NamespacesCount  int      `json:"namespaces_count"`
	TotalKeys        int      `json:"total_keys"`
	FileSizeBytes    int64    `json:"file_size"`
}

// Manager creates and restores snapshots of a single state.Backend.
type Manager struct {
	backend     state.Backend
	backendName string
}

// NewManager returns a Manager for backend. backendName is recorded
// in snapshot metadata (e.g. "memory", "redis", "bolt") and is purely
// informational.
func NewManager(backend state.Backend, backendName string) *Manager {
	return &Manager{backend: backend, backendName: backendName}
}

// Create writes a snapshot to outputPath. namespaces restricts the
// snapshot to an explicit namespace list; services restricts it to
// namespaces matching a service name (equal to, or prefixed with
// "<service>:" or "service:<service>"); both nil produces a full
// snapshot. services takes precedence over namespaces when both are
// given.
func (m *Manager) Create(ctx context.Context, outputPath string, namespaces, services []string) (Metadata, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.SnapshotDuration, "create")

	allNamespaces, err := m.backend.Namespaces(ctx)
	if err != nil {
		return Metadata{}, fmt.Errorf("snapshot: list namespaces: %w", err)
	}

	var target []string
	partial := false
	switch {
	case len(services) > 0:
		target = matchServiceNamespaces(allNamespaces, services)
		partial = true
	case len(namespaces) > 0:
		target = namespaces
		partial = true
	default:
		target = allNamespaces
	}

	data := make(map[string]map[string]interface{})
	totalKeys := 0
	for _, ns := range target {
		keys, err := m.backend.List(ctx, ns, "")
		if err != nil {
			return Metadata{}, fmt.Errorf("snapshot: list keys in %q: %w", ns, err)
		}
		if len(keys) == 0 {
			continue
		}
		nsData := make(map[string]interface{})
		for _, key := range keys {
			value, found, err := m.backend.Get(ctx, ns, key)
			if err != nil {
				return Metadata{}, fmt.Errorf("snapshot: get %q/%q: %w", ns, key, err)
			}
			if !found {
				continue
			}
			nsData[key] = value
			totalKeys++
		}
		if len(nsData) > 0 {
			data[ns] = nsData
		}
	}

	namespaceNames := make([]string, 0, len(data))
	for ns := range data {
		namespaceNames = append(namespaceNames, ns)
	}
	sort.Strings(namespaceNames)

	meta := Metadata{
		Version:     FormatVersion,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		BackendType: m.backendName,
		Namespaces:  namespaceNames,
		TotalKeys:   totalKeys,
		Partial:     partial,
		Services:    services,
	}

	checksum, err := checksumOf(file{Metadata: meta, Data: data})
	if err != nil {
		return Metadata{}, fmt.Errorf("snapshot: compute checksum: %w", err)
	}
	meta.Checksum = checksum

	if err := writeSnapshot(outputPath, file{Metadata: meta, Data: data}); err != nil {
		return Metadata{}, err
	}

	if info, statErr := os.Stat(outputPath); statErr == nil {
		metrics.SnapshotSizeBytes.Observe(float64(info.Size()))
	}

	log.Logger.Info().Str("path", outputPath).Int("keys", totalKeys).Int("namespaces", len(data)).
		Str("checksum", checksum).Msg("snapshot created")
	return meta, nil
}

// Restore loads a snapshot and writes it into the backend.
//
// When validate is true the stored checksum is recomputed and must
// match. When backup is true, a best-effort full snapshot of the
// current state is written alongside inputPath before anything is
// overwritten; a failure to write that backup is logged and does NOT
// abort the restore. When clearExisting is true every namespace
// currently in the backend is cleared before the snapshot's data is
// loaded, so the backend ends up holding exactly the snapshot's
// contents (plus nothing left over from before).
func (m *Manager) Restore(ctx context.Context, inputPath string, validate, backup, clearExisting bool) (Metadata, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.SnapshotDuration, "restore")

	snap, err := readSnapshot(inputPath)
	if err != nil {
		return Metadata{}, err
	}

	if snap.Metadata.Version != FormatVersion {
		return Metadata{}, fmt.Errorf("snapshot: unsupported version %q (expected %q)", snap.Metadata.Version, FormatVersion)
	}

	if validate && snap.Metadata.Checksum != "" {
		stripped := snap
		stripped.Metadata.Checksum = ""
		calculated, err := checksumOf(stripped)
		if err != nil {
			return Metadata{}, fmt.Errorf("snapshot: recompute checksum: %w", err)
		}
		if calculated != snap.Metadata.Checksum {
			return Metadata{}, fmt.Errorf("snapshot: checksum mismatch: stored %s, calculated %s",
				snap.Metadata.Checksum, calculated)
		}
	}

	if backup {
		backupPath := fmt.Sprintf("%s.backup.%s.gz", inputPath, time.Now().Format("20060102_150405"))
		if _, err := m.Create(ctx, backupPath, nil, nil); err != nil {
			log.Logger.Warn().Err(err).Str("path", backupPath).Msg("pre-restore backup failed, continuing anyway")
		}
	}

	if clearExisting {
		existing, err := m.backend.Namespaces(ctx)
		if err != nil {
			return Metadata{}, fmt.Errorf("snapshot: list namespaces before clear: %w", err)
		}
		for _, ns := range existing {
			if _, err := m.backend.ClearNamespace(ctx, ns); err != nil {
				return Metadata{}, fmt.Errorf("snapshot: clear namespace %q: %w", ns, err)
			}
		}
	}

	totalKeys := 0
	for ns, nsData := range snap.Data {
		if err := m.backend.BatchSet(ctx, ns, nsData, 0); err != nil {
			return Metadata{}, fmt.Errorf("snapshot: restore namespace %q: %w", ns, err)
		}
		totalKeys += len(nsData)
	}

	log.Logger.Info().Str("path", inputPath).Int("keys", totalKeys).Int("namespaces", len(snap.Data)).
		Str("snapshot_timestamp", snap.Metadata.Timestamp).Msg("snapshot restored")
	return snap.Metadata, nil
}

// Validate checks a snapshot file's version and checksum without
// touching the backend.
func Validate(inputPath string) (ValidationResult, error) {
	snap, err := readSnapshot(inputPath)
	if err != nil {
		return ValidationResult{}, err
	}

	versionValid := snap.Metadata.Version == FormatVersion
	checksumValid := true
	checksumMessage := "no checksum"

	if snap.Metadata.Checksum != "" {
		stripped := snap
		stripped.Metadata.Checksum = ""
		calculated, err := checksumOf(stripped)
		if err != nil {
			return ValidationResult{}, fmt.Errorf("snapshot: recompute checksum: %w", err)
		}
		checksumValid = calculated == snap.Metadata.Checksum
		if checksumValid {
			checksumMessage = "valid"
		} else {
			checksumMessage = "invalid"
		}
	}

	totalKeys := 0
	for _, nsData := range snap.Data {
		totalKeys += len(nsData)
	}

	info, err := os.Stat(inputPath)
	if err != nil {
		return ValidationResult{}, fmt.Errorf("snapshot: stat %q: %w", inputPath, err)
	}

	return ValidationResult{
		Valid:           versionValid && checksumValid,
		VersionValid:    versionValid,
		ChecksumValid:   checksumValid,
		ChecksumMessage: checksumMessage,
		Metadata:        snap.Metadata,
		NamespacesCount: len(snap.Data),
		TotalKeys:       totalKeys,
		FileSizeBytes:   info.Size(),
	}, nil
}

// ListNamespaces returns the namespace names recorded in a snapshot's
// metadata without loading its data into a backend.
func ListNamespaces(inputPath string) ([]string, error) {
	snap, err := readSnapshot(inputPath)
	if err != nil {
		return nil, err
	}
	return snap.Metadata.Namespaces, nil
}

func matchServiceNamespaces(allNamespaces, services []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, ns := range allNamespaces {
		for _, service := range services {
			if ns == service || strings.HasPrefix(ns, service+":") || strings.HasPrefix(ns, "service:"+service) {
				if _, ok := seen[ns]; !ok {
					seen[ns] = struct{}{}
					out = append(out, ns)
				}
				break
			}
		}
	}
	return out
}

// checksumOf computes "sha256:<hex>" over v's canonical JSON encoding:
// object keys sorted recursively at every depth, compact separators.
// Marshaling once and re-unmarshaling into a generic interface{} tree
// forces every nested map through encoding/json's built-in
// alphabetical map-key ordering, which is exactly the canonicalization
// the checksum needs.
func checksumOf(v interface{}) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", err
	}
	canonical, err := json.Marshal(generic)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return fmt.Sprintf("sha256:%x", sum), nil
}

func writeSnapshot(outputPath string, snap file) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("snapshot: create output directory: %w", err)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("snapshot: create %q: %w", outputPath, err)
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	defer gz.Close()

	enc := json.NewEncoder(gz)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("snapshot: encode: %w", err)
	}
	return nil
}

func readSnapshot(inputPath string) (file, error) {
	if _, err := os.Stat(inputPath); err != nil {
		return file{}, fmt.Errorf("snapshot: file not found: %s", inputPath)
	}

	in, err := os.Open(inputPath)
	if err != nil {
		return file{}, fmt.Errorf("snapshot: open %q: %w", inputPath, err)
	}
	defer in.Close()

	gz, err := gzip.NewReader(in)
	if err != nil {
		return file{}, fmt.Errorf("snapshot: read gzip header: %w", err)
	}
	defer gz.Close()

	raw, err := io.ReadAll(gz)
	if err != nil {
		return file{}, fmt.Errorf("snapshot: decompress: %w", err)
	}

	var snap file
	if err := json.Unmarshal(raw, &snap); err != nil {
		return file{}, fmt.Errorf("snapshot: decode json: %w", err)
	}
	return snap, nil
}

// Package store keeps the history of applied cluster manifests so that
// updates can be compared against, and rolled back to, earlier versions.
package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/maxpert/nodedeployer/encoding"
	"github.com/rs/zerolog/log"
)

const (
	prefixSnapshot = "/snapshot/" // /snapshot/{version:016x}
	keyCurrent     = "/meta/current"
)

var (
	ErrNoHistory      = errors.New("no deployment history")
	ErrVersionMissing = errors.New("history version not found")
	ErrClosed         = errors.New("history store closed")
)

// Snapshot is one applied cluster manifest.
type Snapshot struct {
	Version                uint64 `msgpack:"version"`
	ManifestName           string `msgpack:"manifest_name"`
	ManifestVersion        string `msgpack:"manifest_version"`
	ClusterManifest        []byte `msgpack:"cluster_manifest"`
	InfrastructureManifest []byte `msgpack:"infrastructure_manifest,omitempty"`
	Fingerprint            uint64 `msgpack:"fingerprint"`
	AppliedAt              int64  `msgpack:"applied_at"`
}

// Options configures the history store
type Options struct {
	CompressionLevel int
	FS               vfs.FS // defaults to vfs.Default
}

// History is a pebble-backed snapshot log with a movable current pointer.
type History struct {
	db     *pebble.DB
	path   string
	level  int
	closed atomic.Bool
}

// pebbleLogger wraps zerolog for Pebble
type pebbleLogger struct{}

func (l *pebbleLogger) Infof(format string, args ...interface{}) {
	log.Debug().Msgf("[pebble] "+format, args...)
}

func (l *pebbleLogger) Errorf(format string, args ...interface{}) {
	log.Error().Msgf("[pebble] "+format, args...)
}

func (l *pebbleLogger) Fatalf(format string, args ...interface{}) {
	log.Fatal().Msgf("[pebble] "+format, args...)
}

// OpenHistory opens or creates the history store at path.
func OpenHistory(path string, opts Options) (*History, error) {
	pebbleOpts := &pebble.Options{
		Logger: &pebbleLogger{},
		FS:     opts.FS,
	}
	if pebbleOpts.FS == nil {
		pebbleOpts.FS = vfs.Default
	}

	db, err := pebble.Open(path, pebbleOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}
	return &History{db: db, path: path, level: opts.CompressionLevel}, nil
}

// Close closes the store. It is safe to call more than once.
func (h *History) Close() error {
	if h.closed.Swap(true) {
		return nil
	}
	return h.db.Close()
}

// Purge deletes the history store at path. The store must be closed.
func Purge(fs vfs.FS, path string) error {
	if fs == nil {
		fs = vfs.Default
	}
	if err := fs.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to purge history store: %w", err)
	}
	return nil
}

// FingerprintOf hashes the manifest bytes of a snapshot.
func FingerprintOf(cluster, infra []byte) uint64 {
	d := xxhash.New()
	d.Write(cluster)
	d.Write([]byte{0})
	d.Write(infra)
	return d.Sum64()
}

// Record stores s as the new current version. When s has the same
// fingerprint as the current snapshot nothing is written and the current
// version is returned with recorded = false.
func (h *History) Record(s Snapshot) (version uint64, recorded bool, err error) {
	if h.closed.Load() {
		return 0, false, ErrClosed
	}
	if s.Fingerprint == 0 {
		s.Fingerprint = FingerprintOf(s.ClusterManifest, s.InfrastructureManifest)
	}

	current, err := h.Current()
	switch {
	case err == nil && current.Fingerprint == s.Fingerprint:
		return current.Version, false, nil
	case err != nil && !errors.Is(err, ErrNoHistory):
		return 0, false, err
	}

	latest, err := h.latestVersion()
	if err != nil {
		return 0, false, err
	}
	s.Version = latest + 1
	if s.AppliedAt == 0 {
		s.AppliedAt = time.Now().UnixNano()
	}

	payload, err := encoding.Marshal(&s)
	if err != nil {
		return 0, false, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	framed, err := encoding.Compress(payload, h.level)
	if err != nil {
		return 0, false, err
	}

	batch := h.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(snapshotKey(s.Version), framed, nil); err != nil {
		return 0, false, err
	}
	if err := batch.Set([]byte(keyCurrent), versionBytes(s.Version), nil); err != nil {
		return 0, false, err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return 0, false, fmt.Errorf("failed to commit snapshot: %w", err)
	}

	log.Debug().Uint64("version", s.Version).Str("manifest_version", s.ManifestVersion).Msg("Recorded deployment snapshot")
	return s.Version, true, nil
}

// Get returns the snapshot with the given version.
func (h *History) Get(version uint64) (*Snapshot, error) {
	if h.closed.Load() {
		return nil, ErrClosed
	}
	val, closer, err := h.db.Get(snapshotKey(version))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrVersionMissing, version)
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return decodeSnapshot(val)
}

// Current returns the snapshot the current pointer refers to.
func (h *History) Current() (*Snapshot, error) {
	version, err := h.currentVersion()
	if err != nil {
		return nil, err
	}
	return h.Get(version)
}

// Previous returns the newest snapshot older than the current one.
func (h *History) Previous() (*Snapshot, error) {
	current, err := h.currentVersion()
	if err != nil {
		return nil, err
	}

	iter, err := h.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefixSnapshot),
		UpperBound: snapshotKey(current),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	if !iter.Last() {
		return nil, fmt.Errorf("%w: nothing before version %d", ErrNoHistory, current)
	}
	return decodeSnapshot(iter.Value())
}

// SetCurrent moves the current pointer to an existing version.
func (h *History) SetCurrent(version uint64) error {
	if _, err := h.Get(version); err != nil {
		return err
	}
	return h.db.Set([]byte(keyCurrent), versionBytes(version), pebble.Sync)
}

// List returns all snapshots, oldest first.
func (h *History) List() ([]Snapshot, error) {
	if h.closed.Load() {
		return nil, ErrClosed
	}
	prefix := []byte(prefixSnapshot)
	iter, err := h.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []Snapshot
	for iter.First(); iter.Valid(); iter.Next() {
		s, err := decodeSnapshot(iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, iter.Error()
}

// Prune deletes the oldest snapshots so that at most keep remain. The
// current snapshot is never deleted.
func (h *History) Prune(keep int) (int, error) {
	snapshots, err := h.List()
	if err != nil {
		return 0, err
	}
	if keep < 1 || len(snapshots) <= keep {
		return 0, nil
	}
	current, err := h.currentVersion()
	if err != nil && !errors.Is(err, ErrNoHistory) {
		return 0, err
	}

	batch := h.db.NewBatch()
	defer batch.Close()
	removed := 0
	for _, s := range snapshots[:len(snapshots)-keep] {
		if s.Version == current {
			continue
		}
		if err := batch.Delete(snapshotKey(s.Version), nil); err != nil {
			return 0, err
		}
		removed++
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return 0, err
	}
	return removed, nil
}

func (h *History) currentVersion() (uint64, error) {
	if h.closed.Load() {
		return 0, ErrClosed
	}
	val, closer, err := h.db.Get([]byte(keyCurrent))
	if errors.Is(err, pebble.ErrNotFound) {
		return 0, ErrNoHistory
	}
	if err != nil {
		return 0, err
	}
	defer closer.Close()
	if len(val) != 8 {
		return 0, fmt.Errorf("corrupt current version pointer")
	}
	return binary.BigEndian.Uint64(val), nil
}

func (h *History) latestVersion() (uint64, error) {
	prefix := []byte(prefixSnapshot)
	iter, err := h.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	if !iter.Last() {
		return 0, nil
	}
	s, err := decodeSnapshot(iter.Value())
	if err != nil {
		return 0, err
	}
	return s.Version, nil
}

func decodeSnapshot(framed []byte) (*Snapshot, error) {
	payload, err := encoding.Decompress(framed)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress snapshot: %w", err)
	}
	var s Snapshot
	if err := encoding.Unmarshal(payload, &s); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &s, nil
}

func snapshotKey(version uint64) []byte {
	return []byte(fmt.Sprintf("%s%016x", prefixSnapshot, version))
}

func versionBytes(version uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, version)
	return b
}

// prefixUpperBound returns the smallest key greater than every key with the
// given prefix.
func prefixUpperBound(prefix []byte) []byte {
	upper := make([]byte, len(prefix))
	copy(upper, prefix)
	for i := len(upper) - 1; i >= 0; i-- {
		upper[i]++
		if upper[i] != 0 {
			return upper[:i+1]
		}
	}
	return nil
}

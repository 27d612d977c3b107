package library

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/lodestone-mc/lodestone/pkg/errors"
	"github.com/lodestone-mc/lodestone/pkg/logging"
)

// Source records where a library entry came from.
type Source string

const (
	// SourceManual marks content the user provided themselves.
	// Manual content is never attributed, so it is not recorded.
	SourceManual Source = "manual"
	// SourceModrinth marks content downloaded from Modrinth.
	SourceModrinth Source = "modrinth"
	// SourceMrpack marks content expanded from a Modrinth pack manifest.
	SourceMrpack Source = "mrpack"
)

// Hash is a SHA-1 digest, the content address of a library entry.
type Hash [sha1.Size]byte

// ParseHash decodes a lowercase or uppercase hex SHA-1 string.
func ParseHash(s string) (Hash, error) {
	var h Hash
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != sha1.Size {
		return h, errors.Newf(errors.ErrInvalidHash, "not a sha1 hex digest: %q", s)
	}
	copy(h[:], raw)
	return h, nil
}

// Hex returns the lowercase hex form.
func (h Hash) Hex() string { return hex.EncodeToString(h[:]) }

// HashBytes digests data in memory.
func HashBytes(data []byte) Hash {
	return sha1.Sum(data)
}

// HashFile digests the contents of the file at path.
func HashFile(path string) (Hash, error) {
	var h Hash
	f, err := os.Open(path)
	if err != nil {
		return h, errors.Wrapf(err, errors.ErrIO, "open %s", path)
	}
	defer f.Close()

	digest := sha1.New()
	if _, err := io.Copy(digest, f); err != nil {
		return h, errors.Wrapf(err, errors.ErrIO, "read %s", path)
	}
	copy(h[:], digest.Sum(nil))
	return h, nil
}

// Store is the content-addressed library shared by every instance.
// Entries live at <root>/<hex[:2]>/<hex><ext>; provenance is recorded
// as small JSON files under metaDir keyed by hash.
type Store struct {
	root    string
	metaDir string
	log     zerolog.Logger
}

// NewStore creates a store rooted at the given directories. Neither
// needs to exist yet.
func NewStore(root, metaDir string) *Store {
	return &Store{
		root:    root,
		metaDir: metaDir,
		log:     logging.GetLogger("library"),
	}
}

// PathFor returns the canonical location for a hash. The extension is
// kept so deployed files stay openable by the tools that expect it.
func (s *Store) PathFor(h Hash, ext string) string {
	hx := h.Hex()
	return filepath.Join(s.root, hx[:2], hx+ext)
}

// HasValid reports whether path holds content matching want. A file
// that exists but hashes differently is treated as absent.
func (s *Store) HasValid(path string, want Hash) bool {
	got, err := HashFile(path)
	if err != nil {
		return false
	}
	if got != want {
		s.log.Warn().Str("path", path).
			Str("want", want.Hex()).Str("got", got.Hex()).
			Msg("library entry failed verification, will refetch")
		return false
	}
	return true
}

// IngestBytes stores data at its content address, skipping the write
// when a valid copy is already present.
func (s *Store) IngestBytes(data []byte, ext string) (string, Hash, error) {
	h := HashBytes(data)
	dest := s.PathFor(h, ext)
	if s.HasValid(dest, h) {
		return dest, h, nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", h, errors.Wrapf(err, errors.ErrIO, "create library shard for %s", h.Hex())
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return "", h, errors.Wrapf(err, errors.ErrIO, "write library entry %s", h.Hex())
	}
	return dest, h, nil
}

type sourceRecord struct {
	Source Source `json:"source"`
}

// RecordSource writes the provenance sidecar for a hash. Manual
// content is excluded on purpose.
func (s *Store) RecordSource(h Hash, source Source) error {
	if source == SourceManual {
		return nil
	}
	if err := os.MkdirAll(s.metaDir, 0o755); err != nil {
		return errors.Wrap(err, errors.ErrIO, "create content metadata dir")
	}
	data, err := json.Marshal(sourceRecord{Source: source})
	if err != nil {
		return errors.Wrap(err, errors.ErrIO, "encode source record")
	}
	path := filepath.Join(s.metaDir, h.Hex()+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, errors.ErrIO, "write source record %s", h.Hex())
	}
	return nil
}

// LookupSource reads the recorded provenance for a hash, if any.
func (s *Store) LookupSource(h Hash) (Source, bool) {
	data, err := os.ReadFile(filepath.Join(s.metaDir, h.Hex()+".json"))
	if err != nil {
		return "", false
	}
	var rec sourceRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return "", false
	}
	return rec.Source, true
}

// Deploy links the library entry at from into place at to. Hard links
// keep every deployment a single on-disk copy; when linking is not
// possible (cross-filesystem targets) the entry is copied instead.
func (s *Store) Deploy(from, to string) error {
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return errors.Wrapf(err, errors.ErrIO, "create parent of %s", to)
	}
	err := os.Link(from, to)
	if err == nil {
		return nil
	}
	if os.IsExist(err) {
		// Already deployed, commonly from a previous run.
		return nil
	}
	s.log.Debug().Err(err).Str("from", from).Str("to", to).
		Msg("hard link failed, copying instead")
	return s.copyEntry(from, to)
}

func (s *Store) copyEntry(from, to string) error {
	src, err := os.Open(from)
	if err != nil {
		return errors.Wrapf(err, errors.ErrIO, "open library entry %s", from)
	}
	defer src.Close()

	dst, err := os.Create(to)
	if err != nil {
		return errors.Wrapf(err, errors.ErrIO, "create %s", to)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(to)
		return errors.Wrapf(err, errors.ErrIO, "copy to %s", to)
	}
	if err := dst.Close(); err != nil {
		return errors.Wrapf(err, errors.ErrIO, "finish %s", to)
	}
	return nil
}

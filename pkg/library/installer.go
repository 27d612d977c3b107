package library

import (
	"context"
	"crypto/sha1"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/lodestone-mc/lodestone/pkg/errors"
	"github.com/lodestone-mc/lodestone/pkg/logging"
	"github.com/lodestone-mc/lodestone/pkg/notify"
)

// Remote describes a downloadable file with its expected identity.
type Remote struct {
	URL  string
	SHA1 string
	Size int64
}

// Descriptor is one file to bring into the library. Exactly one of
// Remote and LocalPath is set.
type Descriptor struct {
	// Path is where the file lands relative to the target game dir.
	Path InstallPath
	// Remote is the download location, nil for local ingests.
	Remote *Remote
	// LocalPath is a file already on disk to ingest.
	LocalPath string
	// ReplaceOld, when set, is a relative path removed from the game
	// dir before deployment, e.g. the previous version of a mod.
	ReplaceOld string
	// Source is recorded as the entry's provenance.
	Source Source
}

// Resolved is a descriptor whose content now sits in the library.
type Resolved struct {
	Desc Descriptor
	From string
	Hash Hash
}

// Installer resolves batches of descriptors into the library. All
// network and hashing work across the whole process shares one
// concurrency budget.
type Installer struct {
	store  *Store
	client *http.Client
	send   *notify.Sender
	sem    *semaphore.Weighted
	log    zerolog.Logger
}

// NewInstaller creates an installer over store. concurrency bounds
// simultaneous downloads and ingests.
func NewInstaller(store *Store, send *notify.Sender, concurrency int64) *Installer {
	return &Installer{
		store:  store,
		client: &http.Client{},
		send:   send,
		sem:    semaphore.NewWeighted(concurrency),
		log:    logging.GetLogger("installer"),
	}
}

// Resolve brings every descriptor's content into the library and
// returns the resolved batch, expanded through any pack manifests it
// contained. The first failure cancels the rest of the batch.
func (ins *Installer) Resolve(ctx context.Context, files []Descriptor) ([]Resolved, error) {
	g, ctx := errgroup.WithContext(ctx)

	results := make([][]Resolved, len(files))
	for i, desc := range files {
		i, desc := i, desc
		g.Go(func() error {
			resolved, err := ins.resolveOne(ctx, desc)
			if err != nil {
				return err
			}
			results[i] = resolved
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var flat []Resolved
	for _, batch := range results {
		flat = append(flat, batch...)
	}
	for _, r := range flat {
		if err := ins.store.RecordSource(r.Hash, r.Desc.Source); err != nil {
			ins.log.Warn().Err(err).Str("hash", r.Hash.Hex()).
				Msg("could not record content source")
		}
	}
	return flat, nil
}

// resolveOne fetches or ingests a single descriptor. Pack manifests
// expand into their member files, which are fetched through the same
// concurrency budget; the pack's own permit is released before its
// members are queued so a batch of packs cannot starve itself.
func (ins *Installer) resolveOne(ctx context.Context, desc Descriptor) ([]Resolved, error) {
	var (
		self Resolved
		err  error
	)
	if desc.Remote != nil {
		self, err = ins.fetch(ctx, desc)
	} else {
		self, err = ins.ingest(ctx, desc)
	}
	if err != nil {
		return nil, err
	}

	if !isPack(desc.Path) {
		return []Resolved{self}, nil
	}

	idx, err := readPackIndex(self.From)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrInvalidInput, "read pack manifest %s", desc.Path.FileName())
	}
	members := idx.descriptors()
	ins.log.Info().Str("pack", desc.Path.FileName()).
		Int("files", len(members)).Msg("expanding pack manifest")

	g, ctx := errgroup.WithContext(ctx)
	resolved := make([]Resolved, len(members))
	for i, member := range members {
		i, member := i, member
		g.Go(func() error {
			r, err := ins.fetch(ctx, member)
			if err != nil {
				return err
			}
			resolved[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return append([]Resolved{self}, resolved...), nil
}

// fetch downloads a remote descriptor into the library, holding one
// concurrency permit for the duration. A valid cached entry finishes
// immediately without touching the network.
func (ins *Installer) fetch(ctx context.Context, desc Descriptor) (Resolved, error) {
	if err := ins.sem.Acquire(ctx, 1); err != nil {
		return Resolved{}, err
	}
	defer ins.sem.Release(1)

	remote := desc.Remote
	hash, err := ParseHash(remote.SHA1)
	if err != nil {
		return Resolved{}, err
	}
	dest := ins.store.PathFor(hash, desc.Path.Ext())

	tracker := notify.NewProgressTracker("Downloading "+desc.Path.FileName(), ins.send)
	tracker.SetTotal(remote.Size)
	tracker.Notify()

	if ins.store.HasValid(dest, hash) {
		tracker.SetCurrent(remote.Size)
		tracker.Finish(notify.FinishFast)
		tracker.Notify()
		ins.log.Debug().Str("hash", hash.Hex()).Msg("library hit, skipping download")
		return Resolved{Desc: desc, From: dest, Hash: hash}, nil
	}

	if err := ins.download(ctx, remote, hash, dest, tracker); err != nil {
		tracker.Fail()
		tracker.Notify()
		return Resolved{}, err
	}
	tracker.Finish(notify.FinishSlow)
	tracker.Notify()
	return Resolved{Desc: desc, From: dest, Hash: hash}, nil
}

func (ins *Installer) download(ctx context.Context, remote *Remote, want Hash, dest string, tracker *notify.ProgressTracker) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return errors.Wrapf(err, errors.ErrIO, "create library shard for %s", want.Hex())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, remote.URL, nil)
	if err != nil {
		return errors.Wrapf(err, errors.ErrInvalidInput, "bad download url %s", remote.URL)
	}
	resp, err := ins.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, errors.ErrIO, "fetch %s", remote.URL)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Newf(errors.ErrNotOK, "fetch %s: %s", remote.URL, resp.Status)
	}

	out, err := os.Create(dest)
	if err != nil {
		return errors.Wrapf(err, errors.ErrIO, "create library entry %s", want.Hex())
	}

	digest := sha1.New()
	var written int64
	buf := make([]byte, 128*1024)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				out.Close()
				os.Remove(dest)
				return errors.Wrapf(werr, errors.ErrIO, "write library entry %s", want.Hex())
			}
			digest.Write(buf[:n])
			written += int64(n)
			tracker.Add(int64(n))
			tracker.Notify()
		}
		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			out.Close()
			os.Remove(dest)
			return errors.Wrapf(readErr, errors.ErrIO, "stream %s", remote.URL)
		}
	}
	if err := out.Close(); err != nil {
		os.Remove(dest)
		return errors.Wrapf(err, errors.ErrIO, "finish library entry %s", want.Hex())
	}

	var got Hash
	copy(got[:], digest.Sum(nil))
	if got != want {
		os.Remove(dest)
		return errors.Newf(errors.ErrWrongHash, "%s: got %s, want %s", remote.URL, got.Hex(), want.Hex())
	}
	if remote.Size > 0 && written != remote.Size {
		os.Remove(dest)
		return errors.Newf(errors.ErrWrongFilesize, "%s: got %d bytes, want %d", remote.URL, written, remote.Size)
	}
	return nil
}

// ingest copies a local file into the library by content address.
func (ins *Installer) ingest(ctx context.Context, desc Descriptor) (Resolved, error) {
	if err := ins.sem.Acquire(ctx, 1); err != nil {
		return Resolved{}, err
	}
	defer ins.sem.Release(1)

	tracker := notify.NewProgressTracker("Importing "+desc.Path.FileName(), ins.send)
	tracker.SetTotal(2)
	tracker.Notify()

	data, err := os.ReadFile(desc.LocalPath)
	if err != nil {
		tracker.Fail()
		tracker.Notify()
		return Resolved{}, errors.Wrapf(err, errors.ErrIO, "read %s", desc.LocalPath)
	}
	tracker.Add(1)
	tracker.Notify()

	dest, hash, err := ins.store.IngestBytes(data, desc.Path.Ext())
	if err != nil {
		tracker.Fail()
		tracker.Notify()
		return Resolved{}, err
	}
	tracker.Add(1)
	tracker.Finish(notify.FinishSlow)
	tracker.Notify()
	return Resolved{Desc: desc, From: dest, Hash: hash}, nil
}

// Deploy links every resolved entry into place under gameDir.
// Manifest archives themselves are not deployed. Failures are logged
// and deployment continues so one bad file cannot strand the batch.
func (ins *Installer) Deploy(resolved []Resolved, gameDir string) {
	for _, r := range resolved {
		if isPack(r.Desc.Path) {
			continue
		}
		target := r.Desc.Path.Resolve(gameDir)
		if r.Desc.ReplaceOld != "" {
			old := filepath.Join(gameDir, r.Desc.ReplaceOld)
			if err := os.Remove(old); err != nil && !os.IsNotExist(err) {
				ins.log.Warn().Err(err).Str("path", old).Msg("could not remove replaced file")
			}
		}
		if err := ins.store.Deploy(r.From, target); err != nil {
			ins.log.Warn().Err(err).Str("path", target).Msg("deploy failed")
			if ins.send != nil {
				ins.send.SendError(err.Error())
			}
		}
	}
}

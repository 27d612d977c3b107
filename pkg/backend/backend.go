// Package backend is the state-synchronization engine: it keeps the
// in-memory instance store consistent with the on-disk instance tree,
// routing debounced filesystem events through the watch registry, and
// drives the content installer.
//
// All shared state is owned by a single control loop. External callers
// reach it through Do; nothing here needs a lock.
package backend

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/lodestone-mc/lodestone/pkg/config"
	"github.com/lodestone-mc/lodestone/pkg/handle"
	"github.com/lodestone-mc/lodestone/pkg/instance"
	"github.com/lodestone-mc/lodestone/pkg/library"
	"github.com/lodestone-mc/lodestone/pkg/logging"
	"github.com/lodestone-mc/lodestone/pkg/notify"
	"github.com/lodestone-mc/lodestone/pkg/paths"
	"github.com/lodestone-mc/lodestone/pkg/watch"
)

// Backend owns the instance store, the watch registry and the content
// installer. Its fields are touched only from the control loop.
type Backend struct {
	paths     paths.Paths
	cfg       config.Config
	registry  *watch.Registry
	batcher   *watch.Batcher
	send      *notify.Sender
	store     *library.Store
	installer *library.Installer

	// slots is the instance store. A freed slot stays allocated; its
	// generation in slotGens invalidates old handles.
	slots    []*instance.Instance
	slotGens []uint64

	// reloadModsNow holds one-shot markers armed by installs. A batch
	// that dirties a marked instance's mods promotes the marker into
	// promoted and reloads before the batch returns.
	reloadModsNow map[handle.InstanceID]struct{}
	promoted      map[handle.InstanceID]struct{}

	wake     chan struct{}
	commands chan func(*Backend)

	log zerolog.Logger
}

// New prepares a backend over the given launcher layout. Run starts it.
func New(p paths.Paths, cfg config.Config, send *notify.Sender) (*Backend, error) {
	if err := p.EnsureLayout(); err != nil {
		return nil, err
	}
	registry, err := watch.NewRegistry()
	if err != nil {
		return nil, err
	}

	store := library.NewStore(p.ContentLibraryDir(), p.ContentMetaDir())
	return &Backend{
		paths:         p,
		cfg:           cfg,
		registry:      registry,
		send:          send,
		store:         store,
		installer:     library.NewInstaller(store, send, cfg.DownloadConcurrency),
		reloadModsNow: make(map[handle.InstanceID]struct{}),
		wake:          make(chan struct{}, 1),
		commands:      make(chan func(*Backend), 16),
		log:           logging.GetLogger("backend"),
	}, nil
}

// Store exposes the content-addressed library.
func (b *Backend) Store() *library.Store { return b.store }

// Run scans the instances root, then services filesystem batches,
// loader completions and scheduled commands until ctx is cancelled.
func (b *Backend) Run(ctx context.Context) error {
	defer func() { _ = b.registry.Close() }()

	if err := b.bootstrap(); err != nil {
		return err
	}

	b.batcher = watch.NewBatcher(b.registry, b.cfg.DebounceWindow())
	defer b.batcher.Close()

	b.log.Info().Str("root", b.paths.Root()).Msg("Backend running")
	for {
		select {
		case <-ctx.Done():
			return nil
		case batch := <-b.batcher.Batches():
			b.handleBatch(batch)
		case <-b.wake:
			b.finishLoads()
		case fn := <-b.commands:
			fn(b)
		case err := <-b.batcher.Errors():
			b.log.Warn().Err(err).Msg("Filesystem watcher error")
			b.send.SendError(err.Error())
		}
	}
}

// Do schedules fn onto the control path. It runs with exclusive access
// to the backend's state.
func (b *Backend) Do(fn func(*Backend)) {
	b.commands <- fn
}

// MarkReloadModsImmediately arms the one-shot marker for an instance:
// the next batch that dirties its mods reloads them before the batch
// returns, instead of waiting for a consumer to ask.
func (b *Backend) MarkReloadModsImmediately(id handle.InstanceID) {
	b.reloadModsNow[id] = struct{}{}
}

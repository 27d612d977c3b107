// Package instance models a single installed game environment and its
// three load pipelines (worlds, servers, mods). Loads run on background
// goroutines that always run to completion; the control loop polls for
// results and publishes snapshots, so it never blocks on disk I/O.
package instance

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/lodestone-mc/lodestone/pkg/errors"
	"github.com/lodestone-mc/lodestone/pkg/handle"
	"github.com/lodestone-mc/lodestone/pkg/logging"
	"github.com/lodestone-mc/lodestone/pkg/paths"
	"github.com/rs/zerolog"
)

// LoadState is the state of one load pipeline.
type LoadState int

const (
	StateUnloaded LoadState = iota
	StateLoading
	StateLoaded
	StateLoadingDirty
	StateLoadedDirty
)

func (s LoadState) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateLoadingDirty:
		return "loading-dirty"
	case StateLoadedDirty:
		return "loaded-dirty"
	}
	return "unknown"
}

// Resource names one of the three per-instance load pipelines.
type Resource int

const (
	ResourceWorlds Resource = iota
	ResourceServers
	ResourceMods
)

func (r Resource) String() string {
	switch r {
	case ResourceWorlds:
		return "worlds"
	case ResourceServers:
		return "servers"
	case ResourceMods:
		return "mods"
	}
	return "unknown"
}

// StartLoadResult reports what kind of load, if any, a StartLoad call began.
type StartLoadResult int

const (
	// LoadNone: a load is already in flight, or nothing is dirty.
	LoadNone StartLoadResult = iota
	// LoadInitial: no prior snapshot existed; a full scan was started.
	LoadInitial
	// LoadReload: an incremental rescan of the dirty set was started.
	LoadReload
)

// DefaultWorldCap bounds a world snapshot when no configuration says
// otherwise.
const DefaultWorldCap = 64

// pendingLoad is a background load in flight. The goroutine stores the
// result, then sets finished; the control loop reads the result only
// after observing finished, which orders the accesses.
type pendingLoad[T any] struct {
	finished atomic.Bool
	result   T
}

func (p *pendingLoad[T]) complete(result T, wake chan<- struct{}) {
	p.result = result
	p.finished.Store(true)
	select {
	case wake <- struct{}{}:
	default:
	}
}

// Instance is a single installed game environment.
type Instance struct {
	ID      handle.InstanceID
	Root    string
	Name    string
	Version string
	Loader  Loader

	SavesPath   string
	ModsPath    string
	ServersPath string

	// WorldCap bounds the published world snapshot.
	WorldCap int

	worldsState   LoadState
	DirtyWorlds   map[string]struct{}
	worldsLoading *pendingLoad[[]WorldSummary]
	worlds        []WorldSummary
	worldsLoaded  bool

	serversState   LoadState
	DirtyServers   bool
	serversLoading *pendingLoad[[]ServerSummary]
	servers        []ServerSummary
	serversLoaded  bool

	modsState      LoadState
	DirtyMods      map[string]struct{}
	modsGeneration uint64
	modsLoading    *pendingLoad[[]ModSummary]
	mods           []ModSummary
	modsLoaded     bool

	log zerolog.Logger
}

// LoadFromDir reads an instance from its root directory. The display
// name is the directory name; version and loader come from the info
// file. The returned instance has a dangling ID until the store
// registers it.
func LoadFromDir(root string) (*Instance, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrIO, "reading instance directory %s", root)
	}
	if !info.IsDir() {
		return nil, errors.Newf(errors.ErrNotADirectory, "%s is not a directory", root)
	}

	data, err := os.ReadFile(paths.InstanceInfoFile(root))
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrIO, "reading instance info in %s", root)
	}

	var parsed Info
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, errors.Wrapf(err, errors.ErrInstanceInfo, "parsing instance info in %s", root)
	}

	return &Instance{
		ID:          handle.DanglingInstance(),
		Root:        root,
		Name:        filepath.Base(root),
		Version:     parsed.MinecraftVersion,
		Loader:      parsed.Loader,
		SavesPath:   paths.InstanceSavesDir(root),
		ModsPath:    paths.InstanceModsDir(root),
		ServersPath: paths.InstanceServersFile(root),
		WorldCap:    DefaultWorldCap,
		DirtyWorlds: make(map[string]struct{}),
		DirtyMods:   make(map[string]struct{}),
		log:         logging.GetLogger("instance"),
	}, nil
}

// ApplyInfo refreshes basic attributes from a freshly parsed instance
// while preserving this instance's identity and load pipelines.
func (inst *Instance) ApplyInfo(fresh *Instance) {
	inst.Root = fresh.Root
	inst.Name = fresh.Name
	inst.Version = fresh.Version
	inst.Loader = fresh.Loader
	inst.SavesPath = fresh.SavesPath
	inst.ModsPath = fresh.ModsPath
	inst.ServersPath = fresh.ServersPath
}

// State returns the load state of the given pipeline.
func (inst *Instance) State(r Resource) LoadState {
	switch r {
	case ResourceWorlds:
		return inst.worldsState
	case ResourceServers:
		return inst.serversState
	case ResourceMods:
		return inst.modsState
	}
	return StateUnloaded
}

// InsertDirtyWorld adds a path to the dirty-worlds set, reporting
// whether it was newly added.
func (inst *Instance) InsertDirtyWorld(path string) bool {
	if _, ok := inst.DirtyWorlds[path]; ok {
		return false
	}
	inst.DirtyWorlds[path] = struct{}{}
	return true
}

// InsertDirtyMod adds a path to the dirty-mods set, reporting whether
// it was newly added.
func (inst *Instance) InsertDirtyMod(path string) bool {
	if _, ok := inst.DirtyMods[path]; ok {
		return false
	}
	inst.DirtyMods[path] = struct{}{}
	return true
}

// MarkWorldsDirty records that the published world snapshot is stale.
func (inst *Instance) MarkWorldsDirty() {
	inst.worldsState = dirtied(inst.worldsState)
}

// MarkServersDirty records that the published server snapshot is stale.
func (inst *Instance) MarkServersDirty() {
	inst.DirtyServers = true
	inst.serversState = dirtied(inst.serversState)
}

// MarkModsDirty records that the published mod snapshot is stale.
func (inst *Instance) MarkModsDirty() {
	inst.modsState = dirtied(inst.modsState)
}

func dirtied(state LoadState) LoadState {
	switch state {
	case StateLoading:
		return StateLoadingDirty
	case StateLoaded:
		return StateLoadedDirty
	}
	return state
}

func finished(state LoadState) LoadState {
	switch state {
	case StateLoadingDirty:
		// New dirt arrived while the load was in flight; another
		// reload is still owed.
		return StateLoadedDirty
	default:
		return StateLoaded
	}
}

// Worlds returns the published world snapshot, nil before the first load.
func (inst *Instance) Worlds() []WorldSummary { return inst.worlds }

// Servers returns the published server snapshot, nil before the first load.
func (inst *Instance) Servers() []ServerSummary { return inst.servers }

// Mods returns the published mod snapshot, nil before the first load.
func (inst *Instance) Mods() []ModSummary { return inst.mods }

// TryGetMod resolves a ModID against the current snapshot. A stale
// generation returns false even if the index is still occupied.
func (inst *Instance) TryGetMod(id handle.ModID) (ModSummary, bool) {
	if id.IsDangling() || id.Generation != inst.modsGeneration {
		return ModSummary{}, false
	}
	if id.Index >= len(inst.mods) {
		return ModSummary{}, false
	}
	return inst.mods[id.Index], true
}

// ModsGeneration returns the generation of the current mod snapshot.
func (inst *Instance) ModsGeneration() uint64 { return inst.modsGeneration }

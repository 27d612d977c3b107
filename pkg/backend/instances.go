package backend

import (
	"os"
	"path/filepath"

	"github.com/lodestone-mc/lodestone/pkg/errors"
	"github.com/lodestone-mc/lodestone/pkg/handle"
	"github.com/lodestone-mc/lodestone/pkg/instance"
	"github.com/lodestone-mc/lodestone/pkg/notify"
	"github.com/lodestone-mc/lodestone/pkg/watch"
)

// bootstrap watches the instances root and loads every existing
// subdirectory.
func (b *Backend) bootstrap() error {
	root := b.paths.InstancesDir()
	if err := b.registry.Watch(root, watch.Target{Kind: watch.KindInstancesRoot}); err != nil {
		return err
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return errors.Wrapf(err, errors.ErrRootUnavailable, "reading instances root %s", root)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		b.loadInstancePath(filepath.Join(root, entry.Name()))
	}
	return nil
}

// get resolves an instance handle. Stale generations and freed slots
// resolve to not-found, never to another instance.
func (b *Backend) get(id handle.InstanceID) (*instance.Instance, bool) {
	if id.IsDangling() || id.Slot >= len(b.slots) {
		return nil, false
	}
	inst := b.slots[id.Slot]
	if inst == nil || b.slotGens[id.Slot] != id.Generation {
		return nil, false
	}
	return inst, true
}

func (b *Backend) register(inst *instance.Instance) handle.InstanceID {
	slot := -1
	for i, occupant := range b.slots {
		if occupant == nil {
			slot = i
			break
		}
	}
	if slot < 0 {
		b.slots = append(b.slots, nil)
		b.slotGens = append(b.slotGens, 0)
		slot = len(b.slots) - 1
	}

	b.slotGens[slot]++
	id := handle.InstanceID{Slot: slot, Generation: b.slotGens[slot]}
	inst.ID = id
	b.slots[slot] = inst

	b.log.Info().Str("name", inst.Name).Str("root", inst.Root).Msg("Instance registered")
	b.send.Send(notify.InstanceAdded{
		ID:      id,
		Name:    inst.Name,
		Version: inst.Version,
		Loader:  inst.Loader,
		Root:    inst.Root,
	})
	return id
}

// loadInstancePath loads a directory under the instances root as an
// instance. Directories that do not parse are watched as invalid so a
// later info file write can promote them.
func (b *Backend) loadInstancePath(dir string) {
	inst, err := instance.LoadFromDir(dir)
	if err != nil {
		b.log.Debug().Err(err).Str("dir", dir).Msg("Not a loadable instance")
		if werr := b.registry.Watch(dir, watch.Target{Kind: watch.KindInvalidInstanceDir}); werr != nil {
			b.log.Warn().Err(werr).Str("dir", dir).Msg("Cannot watch invalid instance dir")
		}
		return
	}

	inst.WorldCap = b.cfg.WorldCap
	b.register(inst)
	b.watchInstancePaths(inst)

	b.startLoad(inst, instance.ResourceWorlds)
	b.startLoad(inst, instance.ResourceServers)
	b.startLoad(inst, instance.ResourceMods)
}

// watchInstancePaths registers the watches an instance needs. Saves,
// mods and the server list are only watched when they exist; a
// directory created later inside the game dir is picked up on the next
// full reload, same as external tooling would see it.
func (b *Backend) watchInstancePaths(inst *instance.Instance) {
	id := inst.ID
	if err := b.registry.Watch(inst.Root, watch.Target{Kind: watch.KindInstanceDir, Instance: id}); err != nil {
		b.log.Warn().Err(err).Str("dir", inst.Root).Msg("Cannot watch instance dir")
	}

	optional := []struct {
		path string
		kind watch.TargetKind
	}{
		{inst.SavesPath, watch.KindInstanceSavesDir},
		{inst.ModsPath, watch.KindInstanceModsDir},
		{inst.ServersPath, watch.KindServersFile},
	}
	for _, w := range optional {
		if _, err := os.Stat(w.path); err != nil {
			continue
		}
		if err := b.registry.Watch(w.path, watch.Target{Kind: w.kind, Instance: id}); err != nil {
			b.log.Debug().Err(err).Str("path", w.path).Msg("Cannot watch instance path")
		}
	}
}

// destroyInstance frees the slot and drops every watch belonging to
// the instance.
func (b *Backend) destroyInstance(id handle.InstanceID) {
	inst, ok := b.get(id)
	if !ok {
		return
	}

	b.slots[id.Slot] = nil
	delete(b.reloadModsNow, id)
	delete(b.promoted, id)
	b.registry.RemoveMatching(func(t watch.Target) bool { return t.Instance == id })

	b.log.Info().Str("name", inst.Name).Msg("Instance destroyed")
	b.send.Send(notify.InstanceRemoved{ID: id})
}

func (b *Backend) startLoad(inst *instance.Instance, r instance.Resource) {
	var result instance.StartLoadResult
	switch r {
	case instance.ResourceWorlds:
		result = inst.StartLoadWorlds(b.wake)
	case instance.ResourceServers:
		result = inst.StartLoadServers(b.wake)
	case instance.ResourceMods:
		result = inst.StartLoadMods(b.wake)
	}
	if result == instance.LoadNone {
		return
	}
	b.log.Debug().Str("instance", inst.Name).Stringer("resource", r).
		Msg("Load started")
	b.send.Send(notify.LoadStateChanged{ID: inst.ID, Resource: r, State: inst.State(r)})
}

// finishLoads polls every instance for completed background loads and
// publishes their snapshots. A pipeline that accumulated new dirt while
// its load ran is started again right away.
func (b *Backend) finishLoads() {
	for _, inst := range b.slots {
		if inst == nil {
			continue
		}

		if worlds, ok := inst.FinishLoadWorlds(); ok {
			b.send.Send(notify.WorldsLoaded{ID: inst.ID, Worlds: worlds})
			b.publishState(inst, instance.ResourceWorlds)
			b.watchLevelDirs(inst, worlds)
		}
		if servers, ok := inst.FinishLoadServers(); ok {
			b.send.Send(notify.ServersLoaded{ID: inst.ID, Servers: servers})
			b.publishState(inst, instance.ResourceServers)
		}
		if mods, ok := inst.FinishLoadMods(); ok {
			b.send.Send(notify.ModsLoaded{ID: inst.ID, Mods: mods})
			b.publishState(inst, instance.ResourceMods)
		}
	}
}

func (b *Backend) publishState(inst *instance.Instance, r instance.Resource) {
	state := inst.State(r)
	b.send.Send(notify.LoadStateChanged{ID: inst.ID, Resource: r, State: state})
	if state == instance.StateLoadedDirty {
		b.startLoad(inst, r)
	}
}

// watchLevelDirs registers a watch on each published world folder so
// in-world saves invalidate just that world.
func (b *Backend) watchLevelDirs(inst *instance.Instance, worlds []instance.WorldSummary) {
	for _, world := range worlds {
		if _, watched := b.registry.Lookup(world.LevelPath); watched {
			continue
		}
		target := watch.Target{Kind: watch.KindInstanceLevelDir, Instance: inst.ID}
		if err := b.registry.Watch(world.LevelPath, target); err != nil {
			b.log.Debug().Err(err).Str("path", world.LevelPath).Msg("Cannot watch world folder")
		}
	}
}

func (b *Backend) markDirty(inst *instance.Instance, r instance.Resource) {
	switch r {
	case instance.ResourceWorlds:
		inst.MarkWorldsDirty()
	case instance.ResourceServers:
		inst.MarkServersDirty()
	case instance.ResourceMods:
		inst.MarkModsDirty()
	}
	b.send.Send(notify.LoadStateChanged{ID: inst.ID, Resource: r, State: inst.State(r)})
}

// reloadInstanceInfo refreshes an instance's attributes after its info
// file changed, preserving its identity. A previously invalid dir gets
// a full load attempt instead.
func (b *Backend) reloadInstanceInfo(dir string, target watch.Target) {
	if target.Kind == watch.KindInvalidInstanceDir {
		b.loadInstancePath(dir)
		return
	}

	inst, ok := b.get(target.Instance)
	if !ok {
		return
	}
	fresh, err := instance.LoadFromDir(dir)
	if err != nil {
		// Keep the last good attributes; the file may be mid-write.
		b.log.Warn().Err(err).Str("dir", dir).Msg("Instance info unreadable, keeping previous")
		return
	}

	inst.ApplyInfo(fresh)
	b.send.Send(notify.InstanceModified{
		ID:      inst.ID,
		Name:    inst.Name,
		Version: inst.Version,
		Loader:  inst.Loader,
	})
}

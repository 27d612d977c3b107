package backend

import (
	"fmt"
	"path/filepath"

	"github.com/lodestone-mc/lodestone/pkg/handle"
	"github.com/lodestone-mc/lodestone/pkg/instance"
	"github.com/lodestone-mc/lodestone/pkg/notify"
	"github.com/lodestone-mc/lodestone/pkg/paths"
	"github.com/lodestone-mc/lodestone/pkg/watch"
)

// handleBatch routes one debounced batch of raw events, then kicks off
// an immediate mod reload for every instance promoted during the batch.
func (b *Backend) handleBatch(raws []watch.Raw) {
	b.promoted = make(map[handle.InstanceID]struct{})
	watch.CoalesceBatch(raws, b.route)

	for id := range b.promoted {
		if inst, ok := b.get(id); ok {
			b.startLoad(inst, instance.ResourceMods)
		}
	}
	b.promoted = nil
}

// route dispatches one classified event. The target is resolved on the
// path itself first, then on its parent; a path nobody watches is a
// normal nothing-to-do condition.
func (b *Backend) route(ev watch.Event) {
	switch ev.Kind {
	case watch.EventChanged:
		b.routeChanged(ev)
	case watch.EventRemove:
		b.routeRemove(ev)
	case watch.EventRename:
		b.routeRename(ev)
	}
}

func (b *Backend) routeChanged(ev watch.Event) {
	if target, ok := b.registry.Lookup(ev.Path); ok {
		if target.Kind == watch.KindServersFile {
			if inst, ok := b.get(target.Instance); ok {
				b.markDirty(inst, instance.ResourceServers)
			}
		}
		return
	}

	parent := filepath.Dir(ev.Path)
	target, ok := b.registry.Lookup(parent)
	if !ok {
		return
	}

	switch target.Kind {
	case watch.KindInstancesRoot:
		if ev.MaybeFolder {
			b.loadInstancePath(ev.Path)
		}

	case watch.KindInstanceDir, watch.KindInvalidInstanceDir:
		if ev.MaybeFile && filepath.Base(ev.Path) == paths.InfoFileName {
			b.reloadInstanceInfo(parent, target)
		}

	case watch.KindInstanceLevelDir:
		if inst, ok := b.get(target.Instance); ok {
			inst.InsertDirtyWorld(parent)
			b.markDirty(inst, instance.ResourceWorlds)
		}

	case watch.KindInstanceSavesDir:
		if inst, ok := b.get(target.Instance); ok {
			inst.InsertDirtyWorld(ev.Path)
			b.markDirty(inst, instance.ResourceWorlds)
		}

	case watch.KindInstanceModsDir:
		if inst, ok := b.get(target.Instance); ok {
			inst.InsertDirtyMod(ev.Path)
			b.markDirty(inst, instance.ResourceMods)
			if _, armed := b.reloadModsNow[target.Instance]; armed {
				delete(b.reloadModsNow, target.Instance)
				b.promoted[target.Instance] = struct{}{}
			}
		}
	}
}

func (b *Backend) routeRemove(ev watch.Event) {
	if target, ok := b.registry.Remove(ev.Path); ok {
		switch target.Kind {
		case watch.KindInstancesRoot:
			b.log.Error().Str("dir", ev.Path).Msg("Instances root removed")
			b.send.SendError("instances directory is no longer accessible: " + ev.Path)

		case watch.KindInstanceDir:
			b.destroyInstance(target.Instance)

		case watch.KindInstanceLevelDir:
			if inst, ok := b.get(target.Instance); ok {
				inst.InsertDirtyWorld(ev.Path)
				b.markDirty(inst, instance.ResourceWorlds)
			}

		case watch.KindInstanceSavesDir:
			if inst, ok := b.get(target.Instance); ok {
				b.markDirty(inst, instance.ResourceWorlds)
			}

		case watch.KindInstanceModsDir:
			if inst, ok := b.get(target.Instance); ok {
				b.markDirty(inst, instance.ResourceMods)
			}

		case watch.KindServersFile:
			// The game rewrites the list with an atomic rename swap,
			// which removes the watched inode. Re-register on the same
			// path so the replacement file stays watched.
			if err := b.registry.Watch(ev.Path, target); err != nil {
				b.registry.Insert(ev.Path, target)
				b.log.Debug().Err(err).Str("path", ev.Path).Msg("Server list watch deferred")
			}
			if inst, ok := b.get(target.Instance); ok {
				b.markDirty(inst, instance.ResourceServers)
			}
		}
		return
	}

	parent := filepath.Dir(ev.Path)
	target, ok := b.registry.Lookup(parent)
	if !ok {
		return
	}

	switch target.Kind {
	case watch.KindInstanceDir:
		if filepath.Base(ev.Path) == paths.InfoFileName {
			b.destroyInstance(target.Instance)
			invalid := watch.Target{Kind: watch.KindInvalidInstanceDir}
			if err := b.registry.Watch(parent, invalid); err != nil {
				b.log.Warn().Err(err).Str("dir", parent).Msg("Cannot watch invalid instance dir")
			}
		}

	case watch.KindInstanceLevelDir:
		if inst, ok := b.get(target.Instance); ok {
			inst.InsertDirtyWorld(parent)
			b.markDirty(inst, instance.ResourceWorlds)
		}

	case watch.KindInstanceSavesDir:
		if inst, ok := b.get(target.Instance); ok {
			inst.InsertDirtyWorld(ev.Path)
			b.markDirty(inst, instance.ResourceWorlds)
		}

	case watch.KindInstanceModsDir:
		if inst, ok := b.get(target.Instance); ok {
			inst.InsertDirtyMod(ev.Path)
			b.markDirty(inst, instance.ResourceMods)
		}
	}
}

func (b *Backend) routeRename(ev watch.Event) {
	if target, ok := b.registry.Lookup(ev.Path); ok {
		switch target.Kind {
		case watch.KindInstanceDir:
			b.renameInstanceDir(ev, target)

		case watch.KindInvalidInstanceDir:
			b.registry.Remove(ev.Path)
			if filepath.Dir(ev.To) != b.paths.InstancesDir() {
				return
			}
			if _, watched := b.registry.Lookup(ev.To); watched {
				return
			}
			if err := b.registry.Watch(ev.To, target); err != nil {
				b.log.Debug().Err(err).Str("dir", ev.To).Msg("Cannot watch renamed invalid dir")
			}

		case watch.KindInstanceLevelDir:
			b.registry.Remove(ev.Path)
			inst, ok := b.get(target.Instance)
			if !ok {
				return
			}
			inst.InsertDirtyWorld(ev.Path)
			if filepath.Dir(ev.To) == filepath.Dir(ev.Path) {
				inst.InsertDirtyWorld(ev.To)
				if err := b.registry.Watch(ev.To, target); err != nil {
					b.log.Debug().Err(err).Str("path", ev.To).Msg("Cannot follow renamed world")
				}
			}
			b.markDirty(inst, instance.ResourceWorlds)
		}
		return
	}

	// Neither endpoint is watched itself: an in-place rename inside a
	// mods directory is how mods are enabled and disabled.
	if target, ok := b.registry.Lookup(filepath.Dir(ev.Path)); ok && target.Kind == watch.KindInstanceModsDir {
		if inst, ok := b.get(target.Instance); ok {
			inst.InsertDirtyMod(ev.Path)
			b.markDirty(inst, instance.ResourceMods)
		}
	}
	if target, ok := b.registry.Lookup(filepath.Dir(ev.To)); ok && target.Kind == watch.KindInstanceModsDir {
		if inst, ok := b.get(target.Instance); ok {
			inst.InsertDirtyMod(ev.To)
			b.markDirty(inst, instance.ResourceMods)
		}
	}
}

// renameInstanceDir follows an instance root moved within the
// instances root; a move anywhere else destroys the instance.
func (b *Backend) renameInstanceDir(ev watch.Event, target watch.Target) {
	inst, ok := b.get(target.Instance)
	if !ok {
		b.registry.Remove(ev.Path)
		return
	}

	if filepath.Dir(ev.To) != b.paths.InstancesDir() {
		b.destroyInstance(target.Instance)
		return
	}

	b.registry.RemoveMatching(func(t watch.Target) bool { return t.Instance == target.Instance })

	oldName := inst.Name
	inst.Root = ev.To
	inst.Name = filepath.Base(ev.To)
	inst.SavesPath = paths.InstanceSavesDir(ev.To)
	inst.ModsPath = paths.InstanceModsDir(ev.To)
	inst.ServersPath = paths.InstanceServersFile(ev.To)
	b.watchInstancePaths(inst)

	b.send.Send(notify.InstanceModified{
		ID:      inst.ID,
		Name:    inst.Name,
		Version: inst.Version,
		Loader:  inst.Loader,
	})
	b.send.SendInfo(fmt.Sprintf("Instance %q is now %q", oldName, inst.Name))
}

package instance_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/lodestone-mc/lodestone/pkg/instance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialWorldScanSortsByLastPlayed(t *testing.T) {
	inst := newTestInstance(t)
	wake := make(chan struct{}, 1)

	writeWorld(t, inst.SavesPath, "older", "Old World", 1000)
	writeWorld(t, inst.SavesPath, "newest", "New World", 3000)
	writeWorld(t, inst.SavesPath, "middle", "", 2000)

	// A stray file in saves must be ignored.
	require.NoError(t, os.WriteFile(filepath.Join(inst.SavesPath, "notes.txt"), []byte("x"), 0644))

	require.Equal(t, instance.LoadInitial, inst.StartLoadWorlds(wake))
	require.Equal(t, instance.StateLoading, inst.State(instance.ResourceWorlds))

	// A second start while one is in flight does nothing.
	require.Equal(t, instance.LoadNone, inst.StartLoadWorlds(wake))

	worlds := finishWorlds(t, inst)
	require.Len(t, worlds, 3)
	assert.Equal(t, "New World", worlds[0].Title)
	assert.Equal(t, "Old World", worlds[2].Title)
	// Empty level name falls back to the folder name.
	assert.Equal(t, "middle", worlds[1].Title)
	assert.Equal(t, instance.StateLoaded, inst.State(instance.ResourceWorlds))
}

func TestWorldScanSkipsCorruptEntries(t *testing.T) {
	inst := newTestInstance(t)
	wake := make(chan struct{}, 1)

	writeWorld(t, inst.SavesPath, "good", "Good", 500)

	badDir := filepath.Join(inst.SavesPath, "bad")
	require.NoError(t, os.MkdirAll(badDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(badDir, "level.dat"), []byte("not nbt"), 0644))

	require.Equal(t, instance.LoadInitial, inst.StartLoadWorlds(wake))
	worlds := finishWorlds(t, inst)

	require.Len(t, worlds, 1)
	assert.Equal(t, "Good", worlds[0].Title)
}

func TestDirtyWorldMergeCarriesOverAndCaps(t *testing.T) {
	inst := newTestInstance(t)
	inst.WorldCap = 64
	wake := make(chan struct{}, 1)

	var dirs []string
	for i := 0; i < 64; i++ {
		dirs = append(dirs, writeWorld(t, inst.SavesPath, fmt.Sprintf("world%02d", i), fmt.Sprintf("World %02d", i), int64(1000+i)))
	}

	require.Equal(t, instance.LoadInitial, inst.StartLoadWorlds(wake))
	require.Len(t, finishWorlds(t, inst), 64)

	// Touch two existing worlds and add one new one.
	writeWorld(t, inst.SavesPath, "world00", "World 00 Updated", 9000)
	writeWorld(t, inst.SavesPath, "world01", "World 01 Updated", 8000)
	fresh := writeWorld(t, inst.SavesPath, "brandnew", "Brand New", 9500)

	require.True(t, inst.InsertDirtyWorld(dirs[0]))
	require.True(t, inst.InsertDirtyWorld(dirs[1]))
	require.True(t, inst.InsertDirtyWorld(fresh))
	inst.MarkWorldsDirty()
	require.Equal(t, instance.StateLoadedDirty, inst.State(instance.ResourceWorlds))

	require.Equal(t, instance.LoadReload, inst.StartLoadWorlds(wake))
	// The dirty set is drained by the start.
	assert.Empty(t, inst.DirtyWorlds)

	worlds := finishWorlds(t, inst)
	require.Len(t, worlds, 64, "merged snapshot is truncated to the cap")

	assert.Equal(t, "Brand New", worlds[0].Title)
	assert.Equal(t, "World 00 Updated", worlds[1].Title)
	assert.Equal(t, "World 01 Updated", worlds[2].Title)

	// The lowest-ranked untouched world fell off the cap: world02 at
	// lastPlayed 1002 is now the minimum and must still be present at
	// the tail, while the three updated entries pushed one out.
	titles := make(map[string]bool)
	for _, world := range worlds {
		titles[world.Title] = true
	}
	assert.False(t, titles["World 02"], "oldest untouched world falls off the capped snapshot")
	assert.True(t, titles["World 63"])
}

func TestDirtyWorldMergeDropsDeletedWorlds(t *testing.T) {
	inst := newTestInstance(t)
	wake := make(chan struct{}, 1)

	keep := writeWorld(t, inst.SavesPath, "keep", "Keep", 100)
	gone := writeWorld(t, inst.SavesPath, "gone", "Gone", 200)

	require.Equal(t, instance.LoadInitial, inst.StartLoadWorlds(wake))
	require.Len(t, finishWorlds(t, inst), 2)

	require.NoError(t, os.RemoveAll(gone))
	require.True(t, inst.InsertDirtyWorld(gone))
	inst.MarkWorldsDirty()

	require.Equal(t, instance.LoadReload, inst.StartLoadWorlds(wake))
	worlds := finishWorlds(t, inst)

	require.Len(t, worlds, 1)
	assert.Equal(t, keep, worlds[0].LevelPath)
}

func TestDirtDuringLoadLeavesSnapshotDirty(t *testing.T) {
	inst := newTestInstance(t)
	wake := make(chan struct{}, 1)

	writeWorld(t, inst.SavesPath, "alpha", "Alpha", 100)

	require.Equal(t, instance.LoadInitial, inst.StartLoadWorlds(wake))

	// Dirt arriving while the load is in flight must survive the
	// publish as LoadedDirty so another reload is still owed.
	inst.MarkWorldsDirty()
	require.Equal(t, instance.StateLoadingDirty, inst.State(instance.ResourceWorlds))

	finishWorlds(t, inst)
	assert.Equal(t, instance.StateLoadedDirty, inst.State(instance.ResourceWorlds))
}

package instance

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/lodestone-mc/lodestone/pkg/nbt"
	"github.com/rs/zerolog"
)

// WorldSummary describes one world folder in the saves directory.
type WorldSummary struct {
	// Title is the level name, or the folder name if the level data
	// carries none.
	Title string
	// Subtitle is the folder name plus the last-played time when known.
	Subtitle string
	// LevelPath is the world folder.
	LevelPath string
	// LastPlayed is a millisecond unix timestamp.
	LastPlayed int64
	// Icon is the raw contents of icon.png if present.
	Icon []byte
}

const levelDataFileName = "level.dat"

// StartLoadWorlds begins a background world scan if one is needed and
// none is in flight. The wake channel receives a non-blocking signal
// when the scan completes.
func (inst *Instance) StartLoadWorlds(wake chan<- struct{}) StartLoadResult {
	if inst.worldsLoading != nil {
		return LoadNone
	}

	cap := inst.WorldCap
	if cap <= 0 {
		cap = DefaultWorldCap
	}

	if !inst.worldsLoaded {
		inst.worldsState = StateLoading
		pending := &pendingLoad[[]WorldSummary]{}
		inst.worldsLoading = pending
		saves := inst.SavesPath
		log := inst.log
		go func() {
			pending.complete(scanWorldsInitial(saves, cap, log), wake)
		}()
		return LoadInitial
	}

	if len(inst.DirtyWorlds) == 0 {
		return LoadNone
	}

	inst.worldsState = StateLoading
	dirty := inst.DirtyWorlds
	inst.DirtyWorlds = make(map[string]struct{})
	previous := inst.worlds

	pending := &pendingLoad[[]WorldSummary]{}
	inst.worldsLoading = pending
	log := inst.log
	go func() {
		pending.complete(mergeWorldsDirty(dirty, previous, cap, log), wake)
	}()
	return LoadReload
}

// FinishLoadWorlds polls the in-flight world scan. If it has completed,
// the snapshot is published and returned.
func (inst *Instance) FinishLoadWorlds() ([]WorldSummary, bool) {
	pending := inst.worldsLoading
	if pending == nil || !pending.finished.Load() {
		return nil, false
	}
	inst.worldsLoading = nil
	inst.worldsState = finished(inst.worldsState)
	inst.worlds = pending.result
	inst.worldsLoaded = true
	return pending.result, true
}

func scanWorldsInitial(savesDir string, cap int, log zerolog.Logger) []WorldSummary {
	entries, err := os.ReadDir(savesDir)
	if err != nil {
		log.Warn().Err(err).Str("dir", savesDir).Msg("Cannot read saves directory")
		return nil
	}

	summaries := make([]WorldSummary, 0, cap)
	for _, entry := range entries {
		if len(summaries) >= cap {
			break
		}
		if !entry.IsDir() {
			continue
		}

		path := filepath.Join(savesDir, entry.Name())
		summary, err := loadWorldSummary(path)
		if err != nil {
			log.Warn().Err(err).Str("world", path).Msg("Skipping unreadable world")
			continue
		}
		summaries = append(summaries, summary)
	}

	sortWorlds(summaries)
	return summaries
}

// mergeWorldsDirty rescans only the dirty paths, carries over every
// untouched previous entry that still exists on disk, then re-sorts and
// re-caps the combined result.
func mergeWorldsDirty(dirty map[string]struct{}, previous []WorldSummary, cap int, log zerolog.Logger) []WorldSummary {
	summaries := make([]WorldSummary, 0, cap)

	count := 0
	for path := range dirty {
		if count >= cap {
			break
		}
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			continue
		}
		count++

		summary, err := loadWorldSummary(path)
		if err != nil {
			log.Warn().Err(err).Str("world", path).Msg("Skipping unreadable world")
			continue
		}
		summaries = append(summaries, summary)
	}

	for _, old := range previous {
		if _, isDirty := dirty[old.LevelPath]; isDirty {
			continue
		}
		if _, err := os.Stat(old.LevelPath); err != nil {
			continue
		}
		summaries = append(summaries, old)
	}

	sortWorlds(summaries)
	if len(summaries) > cap {
		summaries = summaries[:cap]
	}
	return summaries
}

func sortWorlds(summaries []WorldSummary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].LastPlayed > summaries[j].LastPlayed
	})
}

// loadWorldSummary derives a summary from a world folder's level data.
// The level data is a gzip-compressed named tag tree; some tools write
// it uncompressed, so the magic bytes decide.
func loadWorldSummary(worldDir string) (WorldSummary, error) {
	raw, err := os.ReadFile(filepath.Join(worldDir, levelDataFileName))
	if err != nil {
		return WorldSummary{}, err
	}

	var reader io.Reader = bytes.NewReader(raw)
	if len(raw) >= 2 && raw[0] == 0x1f && raw[1] == 0x8b {
		gz, err := gzip.NewReader(reader)
		if err != nil {
			return WorldSummary{}, err
		}
		defer func() { _ = gz.Close() }()
		reader = gz
	}

	_, root, err := nbt.DecodeNamed(reader)
	if err != nil {
		return WorldSummary{}, err
	}

	data, ok := root.Compound("Data")
	if !ok {
		return WorldSummary{}, fmt.Errorf("level data has no Data record")
	}

	lastPlayed, _ := data.Int64("LastPlayed")
	levelName, _ := data.String("LevelName")

	folder := filepath.Base(worldDir)

	subtitle := folder
	if lastPlayed > 0 {
		played := time.UnixMilli(lastPlayed).Local()
		subtitle = fmt.Sprintf("%s (%s)", folder, played.Format("02/01/2006 15:04"))
	}

	title := levelName
	if title == "" {
		title = folder
	}

	// The icon is optional and purely cosmetic.
	icon, err := os.ReadFile(filepath.Join(worldDir, "icon.png"))
	if err != nil {
		icon = nil
	}

	return WorldSummary{
		Title:      title,
		Subtitle:   subtitle,
		LevelPath:  worldDir,
		LastPlayed: lastPlayed,
		Icon:       icon,
	}, nil
}

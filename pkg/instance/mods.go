package instance

import (
	"archive/zip"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lodestone-mc/lodestone/pkg/handle"
	"github.com/rs/zerolog"
)

// ModSummary describes one mod file in the mods directory.
type ModSummary struct {
	// ID is valid only while its generation matches the instance's
	// current mod generation.
	ID handle.ModID
	// Key is the stable identity the snapshot is sorted by: the
	// declared mod id when jar metadata is readable, else the file
	// name with its extensions stripped.
	Key      string
	Name     string
	Version  string
	FileName string
	Path     string
	Enabled  bool
}

const (
	modFileSuffix         = ".jar"
	disabledModFileSuffix = ".jar.disabled"
)

// StartLoadMods begins a background mod scan if one is needed and none
// is in flight.
func (inst *Instance) StartLoadMods(wake chan<- struct{}) StartLoadResult {
	if inst.modsLoading != nil {
		return LoadNone
	}

	if !inst.modsLoaded {
		inst.modsState = StateLoading
		pending := &pendingLoad[[]ModSummary]{}
		inst.modsLoading = pending
		modsDir := inst.ModsPath
		log := inst.log
		go func() {
			pending.complete(scanModsInitial(modsDir, log), wake)
		}()
		return LoadInitial
	}

	if len(inst.DirtyMods) == 0 {
		return LoadNone
	}

	inst.modsState = StateLoading
	dirty := inst.DirtyMods
	inst.DirtyMods = make(map[string]struct{})
	previous := inst.mods

	pending := &pendingLoad[[]ModSummary]{}
	inst.modsLoading = pending
	go func() {
		pending.complete(mergeModsDirty(dirty, previous), wake)
	}()
	return LoadReload
}

// FinishLoadMods polls the in-flight mod scan. On publish the mod
// generation advances and every summary receives a fresh ModID, which
// invalidates all previously issued IDs.
func (inst *Instance) FinishLoadMods() ([]ModSummary, bool) {
	pending := inst.modsLoading
	if pending == nil || !pending.finished.Load() {
		return nil, false
	}
	inst.modsLoading = nil
	inst.modsState = finished(inst.modsState)

	inst.modsGeneration++
	result := pending.result
	for index := range result {
		result[index].ID = handle.ModID{Index: index, Generation: inst.modsGeneration}
	}

	inst.mods = result
	inst.modsLoaded = true
	return result, true
}

func scanModsInitial(modsDir string, log zerolog.Logger) []ModSummary {
	entries, err := os.ReadDir(modsDir)
	if err != nil {
		log.Warn().Err(err).Str("dir", modsDir).Msg("Cannot read mods directory")
		return nil
	}

	summaries := make([]ModSummary, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if summary, ok := loadModSummary(filepath.Join(modsDir, entry.Name())); ok {
			summaries = append(summaries, summary)
		}
	}

	sortMods(summaries)
	return summaries
}

// mergeModsDirty rescans only the dirty paths and carries over every
// untouched previous entry that still exists on disk.
func mergeModsDirty(dirty map[string]struct{}, previous []ModSummary) []ModSummary {
	summaries := make([]ModSummary, 0, len(previous)+len(dirty))

	for path := range dirty {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		if summary, ok := loadModSummary(path); ok {
			summaries = append(summaries, summary)
		}
	}

	for _, old := range previous {
		if _, isDirty := dirty[old.Path]; isDirty {
			continue
		}
		if _, err := os.Stat(old.Path); err != nil {
			continue
		}
		summaries = append(summaries, old)
	}

	sortMods(summaries)
	return summaries
}

func sortMods(summaries []ModSummary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		if summaries[i].Key != summaries[j].Key {
			return summaries[i].Key < summaries[j].Key
		}
		return summaries[i].FileName < summaries[j].FileName
	})
}

// loadModSummary builds a summary for a mod file. Files that are not
// mod jars report ok false; unreadable metadata falls back to names
// derived from the file name.
func loadModSummary(path string) (ModSummary, bool) {
	fileName := filepath.Base(path)

	var enabled bool
	switch {
	case strings.HasSuffix(fileName, disabledModFileSuffix):
		enabled = false
	case strings.HasSuffix(fileName, modFileSuffix):
		enabled = true
	default:
		return ModSummary{}, false
	}

	bareName := strings.TrimSuffix(strings.TrimSuffix(fileName, ".disabled"), modFileSuffix)

	summary := ModSummary{
		ID:       handle.DanglingMod(),
		Key:      bareName,
		Name:     bareName,
		FileName: fileName,
		Path:     path,
		Enabled:  enabled,
	}

	if meta, ok := readJarMetadata(path); ok {
		if meta.ID != "" {
			summary.Key = meta.ID
		}
		if meta.Name != "" {
			summary.Name = meta.Name
		}
		summary.Version = meta.Version
	}

	return summary, true
}

type jarMetadata struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

// readJarMetadata opportunistically parses the loader metadata file
// inside a mod jar. Absence or corruption is not an error; the caller
// falls back to file-name identity.
func readJarMetadata(path string) (jarMetadata, bool) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return jarMetadata{}, false
	}
	defer func() { _ = archive.Close() }()

	for _, file := range archive.File {
		if file.Name != "fabric.mod.json" {
			continue
		}
		reader, err := file.Open()
		if err != nil {
			return jarMetadata{}, false
		}
		data, err := io.ReadAll(reader)
		_ = reader.Close()
		if err != nil {
			return jarMetadata{}, false
		}

		var meta jarMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			return jarMetadata{}, false
		}
		return meta, true
	}
	return jarMetadata{}, false
}

// Package paths provides centralized path handling for the launcher.
// It implements XDG Base Directory compliance and provides a consistent
// API for the on-disk layout every other package relies on.
package paths

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/lodestone-mc/lodestone/pkg/errors"
)

// Environment variable names
const (
	// EnvDataDir overrides the root launcher directory
	EnvDataDir = "LODESTONE_DATA_DIR"
)

// Layout constants. These define the launcher's on-disk structure and
// are not user-configurable: instances and the content library must be
// found in the same place across launcher versions.
const (
	// LauncherDirName is the directory name under the XDG data home
	LauncherDirName = "lodestone"

	// InstancesDirName holds one subdirectory per instance
	InstancesDirName = "instances"

	// ContentLibraryDirName is the content-addressed store
	ContentLibraryDirName = "contentlibrary"

	// ContentMetaDirName holds per-hash provenance records
	ContentMetaDirName = "contentmeta"

	// TempDirName holds in-flight scratch files
	TempDirName = "temp"

	// ConfigFileName is the launcher configuration file
	ConfigFileName = "config.toml"

	// InfoFileName is the per-instance info file
	InfoFileName = "info.json"

	// GameDirName is the game data directory inside an instance
	GameDirName = ".minecraft"

	// SavesDirName holds world folders inside the game directory
	SavesDirName = "saves"

	// ModsDirName holds mod jars inside the game directory
	ModsDirName = "mods"

	// ServersFileName is the binary server list inside the game directory
	ServersFileName = "servers.dat"
)

// Paths provides centralized path management for the launcher.
type Paths struct {
	root string
}

// New returns the launcher paths rooted at rootOverride if non-empty,
// else at LODESTONE_DATA_DIR, else at the XDG data home.
func New(rootOverride string) (Paths, error) {
	root := rootOverride
	if root == "" {
		root = os.Getenv(EnvDataDir)
	}
	if root == "" {
		root = filepath.Join(xdg.DataHome, LauncherDirName)
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return Paths{}, errors.Wrapf(err, errors.ErrInvalidInput, "resolving launcher root %q", root)
	}
	return Paths{root: abs}, nil
}

// Root returns the launcher root directory.
func (p Paths) Root() string { return p.root }

// InstancesDir returns the directory containing all instances.
func (p Paths) InstancesDir() string { return filepath.Join(p.root, InstancesDirName) }

// ContentLibraryDir returns the content-addressed store root.
func (p Paths) ContentLibraryDir() string { return filepath.Join(p.root, ContentLibraryDirName) }

// ContentMetaDir returns the provenance record directory.
func (p Paths) ContentMetaDir() string { return filepath.Join(p.root, ContentMetaDirName) }

// TempDir returns the scratch directory.
func (p Paths) TempDir() string { return filepath.Join(p.root, TempDirName) }

// ConfigFile returns the launcher configuration file path.
func (p Paths) ConfigFile() string { return filepath.Join(p.root, ConfigFileName) }

// EnsureLayout creates the launcher directories that must exist before
// the backend starts.
func (p Paths) EnsureLayout() error {
	for _, dir := range []string{p.root, p.InstancesDir(), p.ContentLibraryDir(), p.ContentMetaDir(), p.TempDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, errors.ErrIO, "creating %s", dir)
		}
	}
	return nil
}

// InstanceGameDir returns the game data directory for an instance root.
func InstanceGameDir(instanceRoot string) string {
	return filepath.Join(instanceRoot, GameDirName)
}

// InstanceInfoFile returns the info file path for an instance root.
func InstanceInfoFile(instanceRoot string) string {
	return filepath.Join(instanceRoot, InfoFileName)
}

// InstanceSavesDir returns the saves directory for an instance root.
func InstanceSavesDir(instanceRoot string) string {
	return filepath.Join(InstanceGameDir(instanceRoot), SavesDirName)
}

// InstanceModsDir returns the mods directory for an instance root.
func InstanceModsDir(instanceRoot string) string {
	return filepath.Join(InstanceGameDir(instanceRoot), ModsDirName)
}

// InstanceServersFile returns the server list path for an instance root.
func InstanceServersFile(instanceRoot string) string {
	return filepath.Join(InstanceGameDir(instanceRoot), ServersFileName)
}

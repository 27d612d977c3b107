// Package watch maintains the filesystem watch registry and turns raw
// OS notifications into the small canonical event alphabet the backend
// routes on: Changed, Remove and Rename.
package watch

import "github.com/lodestone-mc/lodestone/pkg/handle"

// TargetKind classifies what a watched path means to the backend.
type TargetKind int

const (
	// KindInstancesRoot is the directory containing all instances.
	KindInstancesRoot TargetKind = iota
	// KindInstanceDir is the root directory of a live instance.
	KindInstanceDir
	// KindInvalidInstanceDir is a directory under the instances root
	// that failed to load as an instance. Watched so a later info file
	// write can promote it.
	KindInvalidInstanceDir
	// KindInstanceLevelDir is a single world folder.
	KindInstanceLevelDir
	// KindInstanceSavesDir is an instance's saves directory.
	KindInstanceSavesDir
	// KindInstanceModsDir is an instance's mods directory.
	KindInstanceModsDir
	// KindServersFile is an instance's binary server list.
	KindServersFile
)

func (k TargetKind) String() string {
	switch k {
	case KindInstancesRoot:
		return "instances-root"
	case KindInstanceDir:
		return "instance-dir"
	case KindInvalidInstanceDir:
		return "invalid-instance-dir"
	case KindInstanceLevelDir:
		return "instance-level-dir"
	case KindInstanceSavesDir:
		return "instance-saves-dir"
	case KindInstanceModsDir:
		return "instance-mods-dir"
	case KindServersFile:
		return "servers-file"
	}
	return "unknown"
}

// Target is the semantic classification of one watched path. Instance
// is meaningful for every kind except InstancesRoot and
// InvalidInstanceDir.
type Target struct {
	Kind     TargetKind
	Instance handle.InstanceID
}

package instance

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Loader is the mod loader kind an instance runs.
type Loader int

const (
	LoaderVanilla Loader = iota
	LoaderFabric
	LoaderForge
	LoaderNeoForge
)

func (l Loader) String() string {
	switch l {
	case LoaderVanilla:
		return "vanilla"
	case LoaderFabric:
		return "fabric"
	case LoaderForge:
		return "forge"
	case LoaderNeoForge:
		return "neoforge"
	}
	return "unknown"
}

// MarshalJSON writes the loader as its lowercase name.
func (l Loader) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON accepts loader names case-insensitively.
func (l *Loader) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch strings.ToLower(name) {
	case "vanilla":
		*l = LoaderVanilla
	case "fabric":
		*l = LoaderFabric
	case "forge":
		*l = LoaderForge
	case "neoforge":
		*l = LoaderNeoForge
	default:
		return fmt.Errorf("unknown loader %q", name)
	}
	return nil
}

// Info is the schema of an instance's info file.
type Info struct {
	MinecraftVersion string `json:"minecraft_version"`
	Loader           Loader `json:"loader"`
}

package watch

import (
	"os"

	"github.com/fsnotify/fsnotify"
)

// RawKind enumerates the heterogeneous notification shapes the OS
// layer can produce. Most collapse to nothing or to Changed; the set
// mirrors what real watch backends report across platforms.
type RawKind int

const (
	RawCreateFile RawKind = iota
	RawCreateFolder
	// RawCreateAny is a creation whose subtype the backend could not
	// determine.
	RawCreateAny
	RawCreateOther
	RawModifyData
	RawModifyMetadata
	RawModifyAny
	RawModifyOther
	// RawRenameFrom is the disappearing half of a rename.
	RawRenameFrom
	// RawRenameTo is the appearing half of a rename.
	RawRenameTo
	// RawRenameBoth carries both endpoints of a rename.
	RawRenameBoth
	RawRenameAny
	RawRenameOther
	RawRemove
	RawRemoveOther
	RawAccess
	RawOther
)

// Raw is one OS notification before classification. To is set only for
// RawRenameBoth.
type Raw struct {
	Kind RawKind
	Path string
	To   string
}

// EventKind is the canonical three-shape alphabet the router consumes.
type EventKind int

const (
	EventChanged EventKind = iota
	EventRemove
	EventRename
)

// Event is a classified filesystem event. For EventRename, Path is the
// old name and To the new one. MaybeFile/MaybeFolder are hints for
// EventChanged; both are set when the subtype was ambiguous, pushing
// the decision to the router.
type Event struct {
	Kind        EventKind
	Path        string
	To          string
	MaybeFile   bool
	MaybeFolder bool
}

// CoalesceKey returns the path that identifies this event for
// batch-local coalescing. Renames have no key: merging one would lose
// an endpoint.
func (e Event) CoalesceKey() (string, bool) {
	switch e.Kind {
	case EventChanged, EventRemove:
		return e.Path, true
	}
	return "", false
}

// Classify reduces a raw notification to the canonical alphabet.
// Metadata-only modifications, access events and unclassifiable kinds
// carry no actionable information and are dropped.
func Classify(raw Raw) (Event, bool) {
	switch raw.Kind {
	case RawCreateFile:
		return Event{Kind: EventChanged, Path: raw.Path, MaybeFile: true}, true
	case RawCreateFolder:
		return Event{Kind: EventChanged, Path: raw.Path, MaybeFolder: true}, true
	case RawCreateAny, RawModifyAny, RawRenameTo:
		return Event{Kind: EventChanged, Path: raw.Path, MaybeFile: true, MaybeFolder: true}, true
	case RawModifyData:
		return Event{Kind: EventChanged, Path: raw.Path, MaybeFile: true}, true
	case RawRenameFrom, RawRemove:
		return Event{Kind: EventRemove, Path: raw.Path}, true
	case RawRenameBoth:
		return Event{Kind: EventRename, Path: raw.Path, To: raw.To}, true
	}
	return Event{}, false
}

// CoalesceBatch classifies a delivered batch in order and invokes
// handle once per surviving event. Adjacent events reducing to the same
// changed-or-removed path collapse into the later one, keeping only the
// final state, so router work is bounded by distinct affected paths.
func CoalesceBatch(raws []Raw, handle func(Event)) {
	var last Event
	var pending bool

	for _, raw := range raws {
		next, ok := Classify(raw)
		if !ok {
			continue
		}

		if pending {
			lastKey, lastOK := last.CoalesceKey()
			nextKey, nextOK := next.CoalesceKey()
			if !lastOK || !nextOK || lastKey != nextKey {
				handle(last)
			}
		}
		last, pending = next, true
	}

	if pending {
		handle(last)
	}
}

// FromFsnotify converts an fsnotify event into a raw notification.
// fsnotify reports a rename as the old name only, so it surfaces as
// RawRenameFrom; the new name arrives separately as a create. Creates
// probe the path to recover the file/folder subtype, falling back to
// ambiguous when the path is already gone again.
func FromFsnotify(event fsnotify.Event) Raw {
	switch {
	case event.Op.Has(fsnotify.Remove):
		return Raw{Kind: RawRemove, Path: event.Name}
	case event.Op.Has(fsnotify.Rename):
		return Raw{Kind: RawRenameFrom, Path: event.Name}
	case event.Op.Has(fsnotify.Create):
		info, err := os.Lstat(event.Name)
		switch {
		case err != nil:
			return Raw{Kind: RawCreateAny, Path: event.Name}
		case info.IsDir():
			return Raw{Kind: RawCreateFolder, Path: event.Name}
		default:
			return Raw{Kind: RawCreateFile, Path: event.Name}
		}
	case event.Op.Has(fsnotify.Write):
		return Raw{Kind: RawModifyData, Path: event.Name}
	case event.Op.Has(fsnotify.Chmod):
		return Raw{Kind: RawModifyMetadata, Path: event.Name}
	}
	return Raw{Kind: RawOther, Path: event.Name}
}

package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lodestone-mc/lodestone/pkg/errors"
	"github.com/lodestone-mc/lodestone/pkg/handle"
	"github.com/lodestone-mc/lodestone/pkg/instance"
	"github.com/lodestone-mc/lodestone/pkg/library"
	"github.com/lodestone-mc/lodestone/pkg/paths"
)

// InstallTargetKind says where an install lands.
type InstallTargetKind int

const (
	// InstallToInstance deploys into an existing instance.
	InstallToInstance InstallTargetKind = iota
	// InstallToLibrary only populates the content library.
	InstallToLibrary
	// InstallToNewInstance creates a fresh instance first.
	InstallToNewInstance
)

// InstallTarget is the destination of an install request. Instance is
// used for InstallToInstance; Name and Info for InstallToNewInstance.
type InstallTarget struct {
	Kind     InstallTargetKind
	Instance handle.InstanceID
	Name     string
	Info     instance.Info
}

// InstallRequest is a batch of files to bring into the library and
// deploy to a target.
type InstallRequest struct {
	Target InstallTarget
	Files  []library.Descriptor
}

// InstallContent runs an install. Downloads and hashing happen off the
// control path; deployment and state updates are scheduled back onto
// it once everything resolved.
func (b *Backend) InstallContent(ctx context.Context, req InstallRequest) {
	go func() {
		resolved, err := b.installer.Resolve(ctx, req.Files)
		if err != nil {
			b.log.Warn().Err(err).Msg("Install failed")
			b.send.SendError(err.Error())
			return
		}
		b.Do(func(b *Backend) { b.deployInstall(req, resolved) })
	}()
}

func (b *Backend) deployInstall(req InstallRequest, resolved []library.Resolved) {
	id := handle.DanglingInstance()
	var gameDir string

	switch req.Target.Kind {
	case InstallToLibrary:
		b.send.SendInfo(fmt.Sprintf("Added %d file(s) to the content library", len(resolved)))
		return

	case InstallToInstance:
		inst, ok := b.get(req.Target.Instance)
		if !ok {
			b.send.SendError("install target no longer exists")
			return
		}
		id = inst.ID
		gameDir = paths.InstanceGameDir(inst.Root)

	case InstallToNewInstance:
		root, err := b.createInstanceDir(req.Target)
		if err != nil {
			b.send.SendError(err.Error())
			return
		}
		// The instance itself registers when the watcher sees the new
		// directory; only the payload is deployed here.
		gameDir = paths.InstanceGameDir(root)
	}

	b.installer.Deploy(resolved, gameDir)
	if !id.IsDangling() {
		// The deploys above hit the watched mods dir; reload as soon
		// as that batch settles instead of waiting for a consumer.
		b.MarkReloadModsImmediately(id)
	}
}

// createInstanceDir materializes a new instance skeleton under the
// instances root. The name doubles as the directory name and has to be
// a single safe component.
func (b *Backend) createInstanceDir(target InstallTarget) (string, error) {
	sp, ok := library.NewSafePath(target.Name)
	if !ok || strings.Contains(sp.String(), "/") {
		return "", errors.Newf(errors.ErrInvalidName, "unusable instance name %q", target.Name)
	}

	root := filepath.Join(b.paths.InstancesDir(), sp.String())
	if _, err := os.Stat(root); err == nil {
		return "", errors.Newf(errors.ErrInstanceExists, "instance %q already exists", sp.String())
	}

	for _, dir := range []string{root, paths.InstanceSavesDir(root), paths.InstanceModsDir(root)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", errors.Wrapf(err, errors.ErrIO, "creating %s", dir)
		}
	}

	data, err := json.MarshalIndent(target.Info, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, errors.ErrInternal, "encoding instance info")
	}
	if err := os.WriteFile(paths.InstanceInfoFile(root), data, 0o644); err != nil {
		return "", errors.Wrapf(err, errors.ErrIO, "writing instance info in %s", root)
	}
	return root, nil
}

package main

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lodestone-mc/lodestone/pkg/config"
	"github.com/lodestone-mc/lodestone/pkg/errors"
	"github.com/lodestone-mc/lodestone/pkg/library"
	"github.com/lodestone-mc/lodestone/pkg/notify"
	"github.com/lodestone-mc/lodestone/pkg/paths"
)

var (
	installSHA1 string
	installSize int64
	installInto string
	installPath string
)

var installCmd = &cobra.Command{
	Use:   "install <url-or-file>",
	Short: "Install content into the library or an instance",
	Long: `Bring a file into the content-addressed library and optionally
hard-link it into an instance's game directory.

A local file is ingested by its hash. A URL additionally requires the
expected --sha1 and --size so the transfer can be verified; a .mrpack
archive is expanded and all of its members installed through the same
transfer budget.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := paths.New(dataDir)
		if err != nil {
			return err
		}
		if err := p.EnsureLayout(); err != nil {
			return err
		}
		cfg, err := config.Load(p.ConfigFile())
		if err != nil {
			return err
		}

		desc, err := buildDescriptor(args[0])
		if err != nil {
			return err
		}

		send := notify.NewSender(256)
		go printMessages(send)

		store := library.NewStore(p.ContentLibraryDir(), p.ContentMetaDir())
		installer := library.NewInstaller(store, send, cfg.DownloadConcurrency)

		resolved, err := installer.Resolve(cmd.Context(), []library.Descriptor{desc})
		if err != nil {
			return err
		}

		if installInto != "" {
			root := filepath.Join(p.InstancesDir(), installInto)
			if _, err := os.Stat(root); err != nil {
				return errors.Newf(errors.ErrNotFound, "no instance named %q", installInto)
			}
			installer.Deploy(resolved, paths.InstanceGameDir(root))
			fmt.Printf("installed %d file(s) into %s\n", len(resolved), installInto)
			return nil
		}

		fmt.Printf("added %d file(s) to the content library\n", len(resolved))
		return nil
	},
}

func init() {
	installCmd.Flags().StringVar(&installSHA1, "sha1", "", "Expected SHA-1 of a remote file (hex)")
	installCmd.Flags().Int64Var(&installSize, "size", 0, "Expected size of a remote file in bytes")
	installCmd.Flags().StringVar(&installInto, "into", "", "Instance to deploy into (directory name)")
	installCmd.Flags().StringVar(&installPath, "path", "", "Install path relative to the game directory (default mods/<name>)")
}

// buildDescriptor turns the command argument into an install
// descriptor. The install path defaults to the mods directory.
func buildDescriptor(arg string) (library.Descriptor, error) {
	remote := strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://")

	rel := installPath
	if rel == "" {
		name := filepath.Base(arg)
		if remote {
			name = path.Base(arg)
		}
		rel = path.Join("mods", name)
	}
	sp, ok := library.NewSafePath(rel)
	if !ok {
		return library.Descriptor{}, errors.Newf(errors.ErrInvalidPath, "unusable install path %q", rel)
	}

	desc := library.Descriptor{
		Path:   library.SafeInstallPath(sp),
		Source: library.SourceManual,
	}
	if remote {
		if installSHA1 == "" {
			return library.Descriptor{}, errors.New(errors.ErrInvalidInput, "remote installs require --sha1")
		}
		desc.Remote = &library.Remote{URL: arg, SHA1: installSHA1, Size: installSize}
	} else {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return library.Descriptor{}, errors.Wrapf(err, errors.ErrInvalidPath, "resolving %s", arg)
		}
		desc.LocalPath = abs
	}
	return desc, nil
}

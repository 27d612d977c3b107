package library

import (
	"archive/zip"
	"encoding/json"
	"io"
	"strings"

	"github.com/lodestone-mc/lodestone/pkg/errors"
)

const (
	packExt       = ".mrpack"
	packIndexName = "modrinth.index.json"
)

type packIndex struct {
	FormatVersion int        `json:"formatVersion"`
	Name          string     `json:"name"`
	Files         []packFile `json:"files"`
}

type packFile struct {
	Path   string `json:"path"`
	Hashes struct {
		SHA1 string `json:"sha1"`
	} `json:"hashes"`
	Downloads []string `json:"downloads"`
	FileSize  int64    `json:"fileSize"`
}

func isPack(path InstallPath) bool {
	return strings.EqualFold(path.Ext(), packExt)
}

// readPackIndex opens an mrpack archive and decodes its embedded index.
func readPackIndex(archivePath string) (*packIndex, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != packIndexName {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		var idx packIndex
		if err := json.Unmarshal(data, &idx); err != nil {
			return nil, err
		}
		return &idx, nil
	}
	return nil, errors.Newf(errors.ErrInvalidInput, "%s has no %s", archivePath, packIndexName)
}

// descriptors converts a pack index to install descriptors. Entries
// with an unsafe path or no download URL are skipped rather than
// failing the whole pack.
func (idx *packIndex) descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(idx.Files))
	for _, f := range idx.Files {
		if len(f.Downloads) == 0 {
			continue
		}
		sp, ok := NewSafePath(f.Path)
		if !ok {
			continue
		}
		out = append(out, Descriptor{
			Path: SafeInstallPath(sp),
			Remote: &Remote{
				URL:  f.Downloads[0],
				SHA1: f.Hashes.SHA1,
				Size: f.FileSize,
			},
			Source: SourceMrpack,
		})
	}
	return out
}

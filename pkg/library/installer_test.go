package library_test

import (
	"archive/zip"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodestone-mc/lodestone/pkg/errors"
	"github.com/lodestone-mc/lodestone/pkg/library"
)

func sha1Hex(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

func remoteDescriptor(rel, url string, data []byte) library.Descriptor {
	return library.Descriptor{
		Path: library.RawInstallPath(filepath.FromSlash(rel)),
		Remote: &library.Remote{
			URL:  url,
			SHA1: sha1Hex(data),
			Size: int64(len(data)),
		},
		Source: library.SourceModrinth,
	}
}

func TestResolveDownloadsIntoLibrary(t *testing.T) {
	payload := []byte("jar contents")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	store := newTestStore(t)
	ins := library.NewInstaller(store, nil, 8)

	resolved, err := ins.Resolve(context.Background(),
		[]library.Descriptor{remoteDescriptor("mods/thing.jar", srv.URL, payload)})
	require.NoError(t, err)
	require.Len(t, resolved, 1)

	got, err := os.ReadFile(resolved[0].From)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	src, ok := store.LookupSource(resolved[0].Hash)
	require.True(t, ok)
	assert.Equal(t, library.SourceModrinth, src)
}

func TestResolveSkipsNetworkOnLibraryHit(t *testing.T) {
	payload := []byte("cached jar")
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	store := newTestStore(t)
	ins := library.NewInstaller(store, nil, 8)
	desc := remoteDescriptor("mods/thing.jar", srv.URL, payload)

	_, err := ins.Resolve(context.Background(), []library.Descriptor{desc})
	require.NoError(t, err)
	require.EqualValues(t, 1, hits.Load())

	// Same content requested again, even under a different install path.
	again := remoteDescriptor("mods/renamed.jar", srv.URL, payload)
	resolved, err := ins.Resolve(context.Background(), []library.Descriptor{again})
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.EqualValues(t, 1, hits.Load(), "valid library entry must not be re-downloaded")
}

func TestResolveWrongHashRemovesPartial(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("unexpected body"))
	}))
	defer srv.Close()

	store := newTestStore(t)
	ins := library.NewInstaller(store, nil, 8)

	expected := []byte("what we asked for")
	desc := remoteDescriptor("mods/thing.jar", srv.URL, expected)
	_, err := ins.Resolve(context.Background(), []library.Descriptor{desc})
	require.True(t, errors.IsCode(err, errors.ErrWrongHash))

	want, perr := library.ParseHash(sha1Hex(expected))
	require.NoError(t, perr)
	_, statErr := os.Stat(store.PathFor(want, ".jar"))
	assert.True(t, os.IsNotExist(statErr), "failed download must not leave a library entry")
}

func TestResolveWrongFilesize(t *testing.T) {
	payload := []byte("short")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	store := newTestStore(t)
	ins := library.NewInstaller(store, nil, 8)

	desc := library.Descriptor{
		Path: library.RawInstallPath(filepath.FromSlash("mods/thing.jar")),
		Remote: &library.Remote{
			URL:  srv.URL,
			SHA1: sha1Hex(payload),
			Size: int64(len(payload)) + 10,
		},
	}
	_, err := ins.Resolve(context.Background(), []library.Descriptor{desc})
	assert.True(t, errors.IsCode(err, errors.ErrWrongFilesize))
}

func TestResolveNotOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	store := newTestStore(t)
	ins := library.NewInstaller(store, nil, 8)

	desc := remoteDescriptor("mods/thing.jar", srv.URL, []byte("never served"))
	_, err := ins.Resolve(context.Background(), []library.Descriptor{desc})
	assert.True(t, errors.IsCode(err, errors.ErrNotOK))
}

func TestResolveFirstFailureStopsBatch(t *testing.T) {
	good := []byte("good jar")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			http.Error(w, "gone", http.StatusGone)
			return
		}
		_, _ = w.Write(good)
	}))
	defer srv.Close()

	store := newTestStore(t)
	ins := library.NewInstaller(store, nil, 8)

	batch := []library.Descriptor{
		remoteDescriptor("mods/good.jar", srv.URL+"/good", good),
		remoteDescriptor("mods/bad.jar", srv.URL+"/bad", []byte("missing")),
	}
	resolved, err := ins.Resolve(context.Background(), batch)
	assert.True(t, errors.IsCode(err, errors.ErrNotOK))
	assert.Nil(t, resolved)
}

func writeMrpack(t *testing.T, dir string, files []map[string]any) string {
	t.Helper()
	path := filepath.Join(dir, "pack.mrpack")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("modrinth.index.json")
	require.NoError(t, err)
	index := map[string]any{"formatVersion": 1, "name": "test pack", "files": files}
	require.NoError(t, json.NewEncoder(w).Encode(index))
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestResolveExpandsPackManifest(t *testing.T) {
	memberA := []byte("member a")
	memberB := []byte("member b")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/a":
			_, _ = w.Write(memberA)
		case "/b":
			_, _ = w.Write(memberB)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	packPath := writeMrpack(t, t.TempDir(), []map[string]any{
		{
			"path":      "mods/a.jar",
			"hashes":    map[string]string{"sha1": sha1Hex(memberA)},
			"downloads": []string{srv.URL + "/a"},
			"fileSize":  len(memberA),
		},
		{
			"path":      "mods/b.jar",
			"hashes":    map[string]string{"sha1": sha1Hex(memberB)},
			"downloads": []string{srv.URL + "/b"},
			"fileSize":  len(memberB),
		},
		{
			// Unsafe path, skipped without failing the pack.
			"path":      "../escape.jar",
			"hashes":    map[string]string{"sha1": sha1Hex(memberA)},
			"downloads": []string{srv.URL + "/a"},
			"fileSize":  len(memberA),
		},
	})

	store := newTestStore(t)
	ins := library.NewInstaller(store, nil, 8)

	resolved, err := ins.Resolve(context.Background(), []library.Descriptor{{
		Path:      library.RawInstallPath("pack.mrpack"),
		LocalPath: packPath,
		Source:    library.SourceMrpack,
	}})
	require.NoError(t, err)
	require.Len(t, resolved, 3, "pack itself plus two safe members")

	names := make([]string, 0, len(resolved))
	for _, r := range resolved {
		names = append(names, r.Desc.Path.FileName())
	}
	assert.ElementsMatch(t, []string{"pack.mrpack", "a.jar", "b.jar"}, names)
}

func TestResolvePackConcurrencyDoesNotDeadlock(t *testing.T) {
	member := []byte("pack member")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(member)
	}))
	defer srv.Close()

	dir := t.TempDir()
	files := make([]map[string]any, 0, 4)
	for i := 0; i < 4; i++ {
		files = append(files, map[string]any{
			"path":      fmt.Sprintf("mods/member-%d.jar", i),
			"hashes":    map[string]string{"sha1": sha1Hex(member)},
			"downloads": []string{srv.URL},
			"fileSize":  len(member),
		})
	}
	packPath := writeMrpack(t, dir, files)

	store := newTestStore(t)
	// One permit: the pack must release its own before fetching members.
	ins := library.NewInstaller(store, nil, 1)

	resolved, err := ins.Resolve(context.Background(), []library.Descriptor{{
		Path:      library.RawInstallPath("pack.mrpack"),
		LocalPath: packPath,
		Source:    library.SourceMrpack,
	}})
	require.NoError(t, err)
	assert.Len(t, resolved, 5)
}

func TestDeployReplacesOldFile(t *testing.T) {
	store := newTestStore(t)
	from, h, err := store.IngestBytes([]byte("v2 bytes"), ".jar")
	require.NoError(t, err)

	gameDir := t.TempDir()
	oldRel := filepath.Join("mods", "thing-v1.jar")
	require.NoError(t, os.MkdirAll(filepath.Join(gameDir, "mods"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(gameDir, oldRel), []byte("v1 bytes"), 0o644))

	ins := library.NewInstaller(store, nil, 8)
	ins.Deploy([]library.Resolved{{
		Desc: library.Descriptor{
			Path:       library.RawInstallPath(filepath.Join("mods", "thing-v2.jar")),
			ReplaceOld: oldRel,
		},
		From: from,
		Hash: h,
	}}, gameDir)

	_, statErr := os.Stat(filepath.Join(gameDir, oldRel))
	assert.True(t, os.IsNotExist(statErr), "replaced file must be removed")
	got, err := os.ReadFile(filepath.Join(gameDir, "mods", "thing-v2.jar"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v2 bytes"), got)
}

package main

import (
	"archive/zip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseGithubUrl(t *testing.T) {
	for _, tc := range []struct {
		url      string
		expected GithubSource
		archive  string
	}{
		{
			url:      "https://github.com/duckdb/duckdb",
			expected: GithubSource{Repo: "duckdb/duckdb"},
			archive:  "https://github.com/duckdb/duckdb/archive/HEAD.zip",
		},
		{
			url:      "https://github.com/duckdb/duckdb.git",
			expected: GithubSource{Repo: "duckdb/duckdb"},
			archive:  "https://github.com/duckdb/duckdb/archive/HEAD.zip",
		},
		{
			url:      "https://github.com/gropaul/duckdb/commit/fd2e59672e02d49278e9491ed1bd8fa5d1cdb0a7",
			expected: GithubSource{Repo: "gropaul/duckdb", Commit: "fd2e59672e02d49278e9491ed1bd8fa5d1cdb0a7"},
			archive:  "https://github.com/gropaul/duckdb/archive/fd2e59672e02d49278e9491ed1bd8fa5d1cdb0a7.zip",
		},
		{
			url:      "https://github.com/gropaul/duckdb/tree/join/atomics-test",
			expected: GithubSource{Repo: "gropaul/duckdb", Branch: "join/atomics-test"},
			archive:  "https://github.com/gropaul/duckdb/archive/refs/heads/join/atomics-test.zip",
		},
	} {
		source, err := ParseGithubUrl(tc.url)
		require.Nil(t, err)
		require.Equal(t, tc.expected, source)
		require.Equal(t, tc.archive, source.ArchiveUrl())
	}

	_, err := ParseGithubUrl("https://gitlab.com/duckdb/duckdb")
	require.NotNil(t, err)
	_, err = ParseGithubUrl("https://github.com/duckdb")
	require.NotNil(t, err)
}

func TestRegisteredSystemsParse(t *testing.T) {
	paths := testPaths(t)
	for _, name := range RegisteredSystems() {
		system, err := LookupSystem(paths, name)
		require.Nil(t, err)
		if build := system.Build(); build != nil {
			_, err := ParseGithubUrl(build.Location.GithubUrl)
			require.Nil(t, err, name)
		}
	}
}

func writeArchive(t *testing.T, path string, files map[string]string) {
	file, err := os.Create(path)
	require.Nil(t, err)
	defer file.Close()
	archive := zip.NewWriter(file)
	for name, content := range files {
		w, err := archive.Create(name)
		require.Nil(t, err)
		_, err = w.Write([]byte(content))
		require.Nil(t, err)
	}
	require.Nil(t, archive.Close())
}

func TestBuildSystemFromGithub(t *testing.T) {
	if _, err := exec.LookPath("unzip"); err != nil {
		t.Skip("unzip is not available")
	}
	archive := filepath.Join(t.TempDir(), "source.zip")
	writeArchive(t, archive, map[string]string{
		"duckdb-abc/Makefile":  "all:\n",
		"duckdb-abc/README.md": "duckdb\n",
	})
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.URL.Path != "/duckdb/duckdb/archive/abc.zip" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		http.ServeFile(w, r, archive)
	}))
	defer server.Close()

	previous := githubArchiveUrl
	githubArchiveUrl = server.URL
	defer func() { githubArchiveUrl = previous }()

	paths := testPaths(t)
	build := &BuildConfig{
		Location:     SourceLocation{Location: "github", GithubUrl: "https://github.com/duckdb/duckdb/commit/abc"},
		BuildCommand: "mkdir -p out && echo '#!/bin/sh' > out/engine",
	}
	system := NewDuckDB(paths, "abc", build, SystemRunConfig{RunFile: "out/engine <", RunFileRelativeToBuild: true})

	require.Nil(t, BuildSystem(context.Background(), paths, system))
	dir := paths.SystemPath("duckdb-abc")
	_, err := os.Stat(filepath.Join(dir, "Makefile"))
	require.Nil(t, err)
	_, err = os.Stat(filepath.Join(dir, "out", "engine"))
	require.Nil(t, err)

	// a second build reuses the archive, the sources and the binary
	require.Nil(t, BuildSystems(context.Background(), paths, []System{system}))
	require.Equal(t, 1, requests)
}

func TestBuildSystemFailures(t *testing.T) {
	paths := testPaths(t)
	ctx := context.Background()

	require.Nil(t, BuildSystem(ctx, paths, NewDuckDB(paths, "release", nil, duckmanRun("1.1.3"))))

	missing := &BuildConfig{Location: SourceLocation{Location: "local", LocalPath: filepath.Join(t.TempDir(), "absent")}}
	require.ErrorContains(t, BuildSystem(ctx, paths, NewDuckDB(paths, "local", missing, duckdbReleaseRun)), "unavailable")

	broken := &BuildConfig{Location: SourceLocation{Location: "local", LocalPath: t.TempDir()}, BuildCommand: "exit 2"}
	err := BuildSystems(ctx, paths, []System{NewDuckDB(paths, "broken", broken, duckdbReleaseRun)})
	require.ErrorContains(t, err, "duckdb-broken")

	unknown := &BuildConfig{Location: SourceLocation{Location: "s3"}}
	require.ErrorContains(t, BuildSystem(ctx, paths, NewDuckDB(paths, "s3", unknown, duckdbReleaseRun)), "unknown source location")
}

package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

var githubArchiveUrl = "https://github.com"

type GithubSource struct {
	Repo string
	// Commit or Branch select the revision; both empty means the default branch.
	Commit string
	Branch string
}

// ParseGithubUrl understands repository, /commit/<sha> and /tree/<branch> urls.
func ParseGithubUrl(url string) (GithubSource, error) {
	rest, ok := strings.CutPrefix(strings.TrimSuffix(url, "/"), "https://github.com/")
	if !ok {
		return GithubSource{}, fmt.Errorf("not a github url: %v", url)
	}
	if repo, commit, ok := strings.Cut(rest, "/commit/"); ok {
		return GithubSource{Repo: strings.TrimSuffix(repo, ".git"), Commit: commit}, nil
	}
	if repo, branch, ok := strings.Cut(rest, "/tree/"); ok {
		return GithubSource{Repo: strings.TrimSuffix(repo, ".git"), Branch: branch}, nil
	}
	repo := strings.TrimSuffix(rest, ".git")
	if strings.Count(repo, "/") != 1 {
		return GithubSource{}, fmt.Errorf("unexpected github url: %v", url)
	}
	return GithubSource{Repo: repo}, nil
}

func (g GithubSource) ArchiveUrl() string {
	switch {
	case g.Commit != "":
		return fmt.Sprintf("%v/%v/archive/%v.zip", githubArchiveUrl, g.Repo, g.Commit)
	case g.Branch != "":
		return fmt.Sprintf("%v/%v/archive/refs/heads/%v.zip", githubArchiveUrl, g.Repo, g.Branch)
	}
	return fmt.Sprintf("%v/%v/archive/HEAD.zip", githubArchiveUrl, g.Repo)
}

// SourceDir is where the system is built and where relative run files are
// resolved.
func SourceDir(paths Paths, identifier string, build *BuildConfig) string {
	if build != nil && build.Location.Location == "local" {
		return build.Location.LocalPath
	}
	return paths.SystemPath(identifier)
}

func DownloadRepo(url string, filename string) error {
	Logger.Infof("download repo archive %v to %v", url, filename)
	if _, err := os.Stat(filename); err == nil {
		Logger.Infof("file %v already exists", filename)
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	response, err := http.Get(url)
	if err != nil {
		return err
	}
	defer response.Body.Close()
	if response.StatusCode != 200 {
		return fmt.Errorf("unexpected status code %v for %v", response.StatusCode, url)
	}
	tmp := filename + ".part"
	file, err := os.Create(tmp)
	if err != nil {
		return err
	}
	_, err = io.Copy(file, response.Body)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, filename)
}

// UnpackRepo unzips a github archive into target, dropping the single
// top-level directory github wraps the sources in.
func UnpackRepo(filename string, target string) error {
	Logger.Infof("unpack repo from %v to %v", filename, target)
	if entries, err := os.ReadDir(target); err == nil && len(entries) > 0 {
		Logger.Infof("directory %v already exists", target)
		return nil
	} else if err == nil {
		Logger.Warnf("empty directory found at %v, removing it", target)
		if err := os.Remove(target); err != nil {
			return err
		}
	}
	staging := target + ".unpack"
	if err := os.RemoveAll(staging); err != nil {
		return err
	}
	cmd := exec.Command("unzip", "-q", filename, "-d", staging)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("unzip failed: err=%w, out=%v", err, string(output))
	}
	entries, err := os.ReadDir(staging)
	if err != nil {
		return err
	}
	if len(entries) != 1 || !entries[0].IsDir() {
		return fmt.Errorf("unexpected archive layout in %v: %v entries", filename, len(entries))
	}
	if err := os.Rename(filepath.Join(staging, entries[0].Name()), target); err != nil {
		return err
	}
	return os.RemoveAll(staging)
}

func runBuildCommand(ctx context.Context, dir string, command string) error {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	var output bytes.Buffer
	if Verbose() {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	} else {
		cmd.Stdout = &output
		cmd.Stderr = &output
	}
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("build command %v failed: err=%w, out=%v", command, err, output.String())
	}
	return nil
}

// BuildSystem fetches and builds a system unless it has no build config or
// its run binary already exists.
func BuildSystem(ctx context.Context, paths Paths, system System) error {
	build := system.Build()
	identifier := SystemIdentifier(system)
	if build == nil {
		Logger.Infof("no build config for system %v, skip build", identifier)
		return nil
	}
	dir := SourceDir(paths, identifier, build)

	switch build.Location.Location {
	case "github":
		source, err := ParseGithubUrl(build.Location.GithubUrl)
		if err != nil {
			return err
		}
		archive := paths.SystemPath(identifier + ".zip")
		if err := DownloadRepo(source.ArchiveUrl(), archive); err != nil {
			return fmt.Errorf("failed to download %v: %w", identifier, err)
		}
		if err := UnpackRepo(archive, dir); err != nil {
			return fmt.Errorf("failed to unpack %v: %w", identifier, err)
		}
	case "local":
		if _, err := os.Stat(dir); err != nil {
			return fmt.Errorf("local source of %v is unavailable: %w", identifier, err)
		}
	default:
		return fmt.Errorf("unknown source location '%v' for %v", build.Location.Location, identifier)
	}

	if binary := runBinary(system.RunCommand()); binary != "" {
		if _, err := os.Stat(binary); err == nil {
			Logger.Infof("binary %v for %v already exists, skip build", binary, identifier)
			return nil
		}
	}
	Logger.Infof("building system %v with command: %v", identifier, build.BuildCommand)
	return runBuildCommand(ctx, dir, build.BuildCommand)
}

func runBinary(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func BuildSystems(ctx context.Context, paths Paths, systems []System) error {
	for _, system := range systems {
		if err := BuildSystem(ctx, paths, system); err != nil {
			return fmt.Errorf("failed to build system %v: %w", SystemIdentifier(system), err)
		}
	}
	return nil
}

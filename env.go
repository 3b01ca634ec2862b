package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

func StringEnv(key string, def string) string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	return value
}

func IntEnv(key string, def int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

// LoadEnvFiles loads .env files into the process environment. Missing files
// are ignored; variables already present in the environment win.
func LoadEnvFiles(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if _, err := os.Stat(file); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return fmt.Errorf("failed to load env file %v: %w", file, err)
		}
		Logger.Debugf("loaded env file %v", file)
	}
	return nil
}

// Paths holds the directory layout of one harness root. Use InitPaths to
// obtain a value with all directories created.
type Paths struct {
	Root    string
	Data    string
	Systems string
	Output  string
	Tmp     string
	Runs    string
}

func InitPaths(root string) (Paths, error) {
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return Paths{}, fmt.Errorf("failed to resolve root %v: %w", root, err)
	}
	output := filepath.Join(abs, "output")
	paths := Paths{
		Root:    abs,
		Data:    filepath.Join(abs, "data"),
		Systems: filepath.Join(abs, "systems"),
		Output:  output,
		Tmp:     filepath.Join(output, "tmp"),
		Runs:    filepath.Join(output, "runs"),
	}
	for _, dir := range []string{paths.Data, paths.Systems, paths.Output, paths.Tmp, paths.Runs} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Paths{}, fmt.Errorf("failed to create directory %v: %w", dir, err)
		}
	}
	return paths, nil
}

func (p Paths) TmpPath(name string) string  { return filepath.Join(p.Tmp, name) }
func (p Paths) DataPath(name string) string { return filepath.Join(p.Data, name) }

func (p Paths) SystemPath(identifier string) string {
	return filepath.Join(p.Systems, identifier)
}

// ScriptPath is the per-slot file the composed script is written to before
// the engine reads it.
func (p Paths) ScriptPath(slot int) string {
	return p.TmpPath(fmt.Sprintf("script-thread-%d.sql", slot))
}

func (p Paths) RunDir(runName string, runDate string) string {
	return filepath.Join(p.Runs, runName, runDate)
}

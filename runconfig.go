package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// OneOrMany decodes either a single YAML value or a sequence of them.
type OneOrMany[T any] []T

func (m *OneOrMany[T]) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.SequenceNode {
		var items []T
		if err := node.Decode(&items); err != nil {
			return err
		}
		*m = items
		return nil
	}
	var item T
	if err := node.Decode(&item); err != nil {
		return err
	}
	*m = []T{item}
	return nil
}

// SystemSpec is either a registry name or an inline engine definition.
type SystemSpec struct {
	Ref                    string `yaml:"-"`
	Name                   string `yaml:"name"`
	Version                string `yaml:"version"`
	GithubUrl              string `yaml:"github_url"`
	LocalPath              string `yaml:"local_path"`
	BuildCommand           string `yaml:"build_command"`
	RunFile                string `yaml:"run_file"`
	RunFileRelativeToBuild bool   `yaml:"run_file_relative_to_build"`
	SetupScript            string `yaml:"setup_script"`
}

func (s *SystemSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return node.Decode(&s.Ref)
	}
	type plain SystemSpec
	return node.Decode((*plain)(s))
}

func (s SystemSpec) Resolve(paths Paths) (System, error) {
	if s.Ref != "" {
		return LookupSystem(paths, s.Ref)
	}
	if s.Name != "" && s.Name != "duckdb" {
		return nil, fmt.Errorf("unsupported engine '%v'", s.Name)
	}
	if s.Version == "" {
		return nil, fmt.Errorf("system definition without version")
	}
	if s.RunFile == "" {
		return nil, fmt.Errorf("system %v has no run_file", s.Version)
	}
	var build *BuildConfig
	switch {
	case s.GithubUrl != "" && s.LocalPath != "":
		return nil, fmt.Errorf("system %v has both github_url and local_path", s.Version)
	case s.GithubUrl != "":
		build = duckdbGithubBuild(s.GithubUrl)
	case s.LocalPath != "":
		build = &BuildConfig{
			Location:     SourceLocation{Location: "local", LocalPath: s.LocalPath},
			BuildCommand: duckdbBuildCommand,
		}
	}
	if build != nil && s.BuildCommand != "" {
		build.BuildCommand = s.BuildCommand
	}
	duckdb := NewDuckDB(paths, s.Version, build, SystemRunConfig{
		RunFile:                s.RunFile,
		RunFileRelativeToBuild: s.RunFileRelativeToBuild,
	})
	duckdb.setup = s.SetupScript
	return duckdb, nil
}

type RunConfigFile struct {
	Name           string                    `yaml:"name"`
	RunSettings    RunSettings               `yaml:"run_settings"`
	SystemSettings OneOrMany[SystemSettings] `yaml:"system_settings"`
	Systems        OneOrMany[SystemSpec]     `yaml:"systems"`
	Benchmarks     OneOrMany[BenchmarkSpec]  `yaml:"benchmarks"`
	// Env is passed to every engine process.
	Env map[string]string `yaml:"env"`
}

func LoadRunConfigFile(path string) (RunConfigFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RunConfigFile{}, err
	}
	var config RunConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return RunConfigFile{}, fmt.Errorf("failed to parse run config %v: %w", path, err)
	}
	if config.Name == "" {
		return RunConfigFile{}, fmt.Errorf("run config %v has no name", path)
	}
	if len(config.Systems) == 0 {
		return RunConfigFile{}, fmt.Errorf("run config %v has no systems", path)
	}
	return config, nil
}

func (f RunConfigFile) ResolveSystems(paths Paths) ([]System, error) {
	systems := make([]System, 0, len(f.Systems))
	seen := make(map[string]bool)
	for _, spec := range f.Systems {
		system, err := spec.Resolve(paths)
		if err != nil {
			return nil, err
		}
		identifier := SystemIdentifier(system)
		if seen[identifier] {
			return nil, fmt.Errorf("system %v is listed twice", identifier)
		}
		seen[identifier] = true
		systems = append(systems, system)
	}
	return systems, nil
}

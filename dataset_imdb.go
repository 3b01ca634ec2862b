package main

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"unicode"
)

// queryOrder sorts names like 1a, 2b, 10a by their numeric prefix first.
func queryOrder(a, b string) int {
	split := func(name string) (int, string) {
		digits := strings.IndexFunc(name, func(r rune) bool { return !unicode.IsDigit(r) })
		if digits == -1 {
			digits = len(name)
		}
		number, err := strconv.Atoi(name[:digits])
		if err != nil {
			return -1, name
		}
		return number, name[digits:]
	}
	aNum, aRest := split(a)
	bNum, bRest := split(b)
	if aNum != bNum {
		return aNum - bNum
	}
	return strings.Compare(aRest, bRest)
}

// LoadQueriesDir reads every .sql file of dir as one query named after the
// file.
func LoadQueriesDir(dir string) ([]Query, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			names = append(names, strings.TrimSuffix(entry.Name(), ".sql"))
		}
	}
	slices.SortFunc(names, queryOrder)

	queries := make([]Query, 0, len(names))
	for i, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name+".sql"))
		if err != nil {
			return nil, err
		}
		queries = append(queries, Query{Name: name, Index: i, RunScript: Script{"duckdb": string(data)}})
	}
	Logger.Infof("loaded %v queries from %v", len(queries), dir)
	return queries, nil
}

func ImdbBenchmark(paths Paths, database string, queriesDir string) (Benchmark, error) {
	if database == "" {
		database = paths.DataPath(filepath.Join("imdb", "imdb.db"))
	}
	if queriesDir == "" {
		queriesDir = paths.DataPath(filepath.Join("imdb", "queries"))
	}
	if _, err := os.Stat(database); err != nil {
		return Benchmark{}, fmt.Errorf("imdb database must be initialized in advance: %w", err)
	}
	queries, err := LoadQueriesDir(queriesDir)
	if err != nil {
		return Benchmark{}, fmt.Errorf("failed to load imdb queries: %w", err)
	}
	dataset := Dataset{
		Name:        strings.TrimSuffix(filepath.Base(database), filepath.Ext(database)),
		SetupScript: Script{"duckdb": attachScript(database)},
		Config:      map[string]any{},
	}
	return Benchmark{Name: "imdb", Datasets: []Dataset{dataset}, Queries: queries}, nil
}

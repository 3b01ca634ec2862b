package main

import (
	"context"
	"fmt"
)

func tpcQueries(prefix string, pragma string, count int) []Query {
	queries := make([]Query, 0, count)
	for i := 0; i < count; i++ {
		queries = append(queries, Query{
			Name:      fmt.Sprintf("%v%v", prefix, i+1),
			Index:     i,
			RunScript: Script{"duckdb": fmt.Sprintf("PRAGMA %v(%v);", pragma, i+1)},
		})
	}
	return queries
}

func (g *DataGenerator) tpcDatasets(ctx context.Context, name string, generator string, sfs []int) ([]Dataset, error) {
	if len(sfs) == 0 {
		return nil, fmt.Errorf("%v benchmark needs at least one scale factor", name)
	}
	datasets := make([]Dataset, 0, len(sfs))
	for i, sf := range sfs {
		Logger.Infof("preparing %v data for scale factor %v (%v/%v)", name, sf, i+1, len(sfs))
		file := g.Paths.DataPath(fmt.Sprintf("%v/%v-sf-%v.db", name, name, sf))
		script := fmt.Sprintf("INSTALL %v;\nLOAD %v;\nCALL %v(sf = %v);", name, name, generator, sf)
		if err := g.Generate(ctx, file, script); err != nil {
			return nil, err
		}
		datasets = append(datasets, Dataset{
			Name:        fmt.Sprintf("%v-%v", name, sf),
			SetupScript: Script{"duckdb": attachScript(file)},
			Config:      map[string]any{"sf": sf},
		})
	}
	return datasets, nil
}

func (g *DataGenerator) TpchBenchmark(ctx context.Context, sfs []int) (Benchmark, error) {
	datasets, err := g.tpcDatasets(ctx, "tpch", "dbgen", sfs)
	if err != nil {
		return Benchmark{}, err
	}
	return Benchmark{Name: "tpch", Datasets: datasets, Queries: tpcQueries("tpch", "tpch", 22)}, nil
}

func (g *DataGenerator) TpcdsBenchmark(ctx context.Context, sfs []int) (Benchmark, error) {
	datasets, err := g.tpcDatasets(ctx, "tpcds", "dsdgen", sfs)
	if err != nil {
		return Benchmark{}, err
	}
	return Benchmark{Name: "tpcds", Datasets: datasets, Queries: tpcQueries("tpcds", "tpcds", 99)}, nil
}

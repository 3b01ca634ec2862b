package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResultsDb(t *testing.T) {
	db, err := OpenResultsDb(filepath.Join(t.TempDir(), "results.db"))
	require.Nil(t, err)
	defer db.Close()
	require.Nil(t, InitResultsDb(db, map[string]any{"arch": "amd64", "cpu": 8}))
	// initialization is repeatable
	require.Nil(t, InitResultsDb(db, map[string]any{"arch": "amd64"}))

	var arch string
	require.Nil(t, db.QueryRow("SELECT value FROM parameters WHERE name = 'arch'").Scan(&arch))
	require.Equal(t, "amd64", arch)

	experiment := testExperiment(&stubSystem{}, stubQuery("q1"), stubDataset("d"), 4, 3)
	result := NewExperimentResult(experiment)
	result.Add(Metrics{Runtime: 0.5, Cardinality: 10})
	result.Add(Metrics{Runtime: 0.25, Cardinality: 10})

	writer := NewDbWriter(db)
	require.Nil(t, writer.Write(result))
	require.Nil(t, writer.Write(result))

	var samples, threads int
	var system string
	require.Nil(t, db.QueryRow("SELECT samples, threads, system FROM experiments WHERE id = ?", experiment.ID).Scan(&samples, &threads, &system))
	require.Equal(t, 2, samples)
	require.Equal(t, 4, threads)
	require.Equal(t, "stub", system)

	var count int
	var total float64
	require.Nil(t, db.QueryRow("SELECT COUNT(*), SUM(runtime) FROM measurements WHERE id = ?", experiment.ID).Scan(&count, &total))
	require.Equal(t, 2, count)
	require.Equal(t, 0.75, total)
}

func TestCreateDatabase(t *testing.T) {
	var request struct {
		Name  string `json:"name"`
		Group string `json:"group"`
	}
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer api-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		path = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"database":{}}`))
	}))
	defer server.Close()

	storage := &Storage{OrgName: "bench-org", GroupName: "default", ApiToken: "api-token", AuthToken: "auth", ApiUrl: server.URL}
	require.Nil(t, storage.CreateDatabase(context.Background(), "nightly-1"))
	require.Equal(t, "/v1/organizations/bench-org/databases", path)
	require.Equal(t, "nightly-1", request.Name)
	require.Equal(t, "default", request.Group)
	require.Equal(t, "libsql://nightly-1-bench-org.turso.io?authToken=auth", storage.DbUrl("nightly-1"))

	storage.ApiToken = "wrong"
	require.ErrorContains(t, storage.CreateDatabase(context.Background(), "nightly-2"), "401")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, storage.CreateDatabase(ctx, "nightly-3"), context.Canceled)
}

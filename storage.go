package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

const tursoApiUrl = "https://api.turso.tech"

// Storage talks to the Turso platform: it creates result databases and
// builds their connection urls.
type Storage struct {
	OrgName   string
	GroupName string
	ApiToken  string
	AuthToken string
	ApiUrl    string
}

func (s *Storage) apiUrl() string {
	if s.ApiUrl == "" {
		return tursoApiUrl
	}
	return strings.TrimSuffix(s.ApiUrl, "/")
}

type createDatabaseRequest struct {
	Name  string `json:"name"`
	Group string `json:"group"`
}

// CreateDatabase creates an empty database in the configured group of the
// organization.
func (s *Storage) CreateDatabase(ctx context.Context, name string) error {
	payload, err := json.Marshal(createDatabaseRequest{Name: name, Group: s.GroupName})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	endpoint := fmt.Sprintf("%v/v1/organizations/%v/databases", s.apiUrl(), url.PathEscape(s.OrgName))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.ApiToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("create database request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("create database %v: status %v: %v", name, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	Logger.Infof("created results database %v in group %v", name, s.GroupName)
	return nil
}

func (s *Storage) DbUrl(name string) string {
	return fmt.Sprintf("libsql://%v-%v.turso.io?authToken=%v", name, s.OrgName, s.AuthToken)
}

// OpenResultsDb opens a libsql url (libsql://, https://, wss://) with the
// libsql client and anything else as a local sqlite file.
func OpenResultsDb(target string) (*sql.DB, error) {
	for _, scheme := range []string{"libsql://", "http://", "https://", "ws://", "wss://"} {
		if strings.HasPrefix(target, scheme) {
			return sql.Open("libsql", target)
		}
	}
	return sql.Open("sqlite", target)
}

func InitResultsDb(db *sql.DB, meta map[string]any) error {
	_, err := db.Exec("CREATE TABLE IF NOT EXISTS parameters (name TEXT PRIMARY KEY, value)")
	if err != nil {
		return err
	}
	parameters := make([]any, 0)
	parameters = append(parameters, "time", time.Now().Format("2006-01-02 15:04:05"))
	for key, value := range meta {
		parameters = append(parameters, key, fmt.Sprintf("%v", value))
	}
	placeholders := strings.Join(slices.Repeat([]string{"(?, ?)"}, len(parameters)/2), ", ")
	_, err = db.Exec(
		fmt.Sprintf("INSERT INTO parameters VALUES %v ON CONFLICT DO NOTHING", placeholders),
		parameters...,
	)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS experiments (
		id TEXT,
		run_name TEXT,
		run_date TEXT,
		name TEXT,
		benchmark TEXT,
		dataset TEXT,
		query TEXT,
		query_index INTEGER,
		system TEXT,
		version TEXT,
		threads INTEGER,
		samples INTEGER,
		PRIMARY KEY (id, run_name, run_date)
	)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS measurements (
		id TEXT,
		run_name TEXT,
		run_date TEXT,
		attempt INTEGER,
		runtime REAL,
		cardinality INTEGER,
		PRIMARY KEY (id, run_name, run_date, attempt)
	)`)
	if err != nil {
		return err
	}
	Logger.Infof("initialized database for benchmark results with meta %v", meta)
	return nil
}

func UpdateResultsDb(db *sql.DB, result ExperimentResult) error {
	tx, err := db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	e := result.Experiment
	_, err = tx.Exec(
		"INSERT OR REPLACE INTO experiments VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		e.ID,
		e.RunName,
		e.RunDate,
		e.Name,
		e.Benchmark,
		e.Data.Name,
		e.Query.Name,
		e.Query.Index,
		e.System.Name(),
		e.System.Version(),
		e.SystemSetting.Threads,
		len(result.Runtimes),
	)
	if err != nil {
		return err
	}
	for i := range result.Runtimes {
		_, err = tx.Exec(
			"INSERT OR REPLACE INTO measurements VALUES (?, ?, ?, ?, ?, ?)",
			e.ID,
			e.RunName,
			e.RunDate,
			i,
			result.Runtimes[i],
			result.Cardinalities[i],
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DbWriter mirrors results into a results database. Writes are serialized
// since sqlite allows a single writer.
type DbWriter struct {
	db *sql.DB
	mu sync.Mutex
}

func NewDbWriter(db *sql.DB) *DbWriter { return &DbWriter{db: db} }

func (w *DbWriter) Write(result ExperimentResult) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return UpdateResultsDb(w.db, result)
}

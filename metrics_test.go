package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeProfile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "profile.json")
	require.Nil(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadProfileMetricsFormats(t *testing.T) {
	for _, tc := range []struct {
		name     string
		profile  string
		expected Metrics
	}{
		{
			name:     "rows returned",
			profile:  `{"rows_returned": 5, "latency": 0.5, "children": []}`,
			expected: Metrics{Runtime: 0.5, Cardinality: 5},
		},
		{
			name:     "timing",
			profile:  `{"timing": 1.5, "children": [{"cardinality": 100, "children": [{"cardinality": 7, "children": []}]}]}`,
			expected: Metrics{Runtime: 1.5, Cardinality: 7},
		},
		{
			name:     "operator timing with cardinality",
			profile:  `{"operator_timing": 2.5, "children": [{"cardinality": 9}]}`,
			expected: Metrics{Runtime: 2.5, Cardinality: 9},
		},
		{
			name:     "operator timing with operator cardinality",
			profile:  `{"operator_timing": 2.5, "children": [{"operator_cardinality": 10}]}`,
			expected: Metrics{Runtime: 2.5, Cardinality: 10},
		},
		{
			name:     "result set size",
			profile:  `{"latency": 0.125, "result_set_size": 11}`,
			expected: Metrics{Runtime: 0.125, Cardinality: 11},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			path := writeProfile(t, tc.profile)
			metrics, err := ReadProfileMetrics(path)
			require.Nil(t, err)
			require.NotNil(t, metrics)
			require.Equal(t, tc.expected, *metrics)

			_, err = os.Stat(path)
			require.True(t, os.IsNotExist(err))

			metrics, err = ReadProfileMetrics(path)
			require.Nil(t, err)
			require.Nil(t, metrics)
		})
	}
}

func TestReadProfileMetricsMissing(t *testing.T) {
	metrics, err := ReadProfileMetrics(filepath.Join(t.TempDir(), "absent.json"))
	require.Nil(t, err)
	require.Nil(t, metrics)
}

func TestReadProfileMetricsMalformed(t *testing.T) {
	path := writeProfile(t, `{"latency": 0.5, "rows_ret`)
	metrics, err := ReadProfileMetrics(path)
	require.Nil(t, err)
	require.Nil(t, metrics)
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

func TestReadProfileMetricsIncomplete(t *testing.T) {
	path := writeProfile(t, `{"timing": 1.5, "children": []}`)
	metrics, err := ReadProfileMetrics(path)
	require.Nil(t, err)
	require.Nil(t, metrics)
}

func TestReadProfileMetricsUnrecognized(t *testing.T) {
	path := writeProfile(t, `{"query_name": "SELECT 1", "cpu_time": 0.1}`)
	metrics, err := ReadProfileMetrics(path)
	require.Nil(t, metrics)

	var unrecognized *UnrecognizedProfileFormatError
	require.True(t, errors.As(err, &unrecognized))
	require.Equal(t, path, unrecognized.Path)
	require.Equal(t, []string{"cpu_time", "query_name"}, unrecognized.Keys)
}

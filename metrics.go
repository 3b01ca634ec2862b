package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

type UnrecognizedProfileFormatError struct {
	Path string
	Keys []string
}

func (e *UnrecognizedProfileFormatError) Error() string {
	return fmt.Sprintf("unrecognized profile format in %v (top-level keys: %v)", e.Path, e.Keys)
}

type profileNode struct {
	Cardinality         *int64        `json:"cardinality"`
	OperatorCardinality *int64        `json:"operator_cardinality"`
	Children            []profileNode `json:"children"`
}

type profile struct {
	RowsReturned   *int64        `json:"rows_returned"`
	Latency        *float64      `json:"latency"`
	Timing         *float64      `json:"timing"`
	OperatorTiming *float64      `json:"operator_timing"`
	ResultSetSize  *int64        `json:"result_set_size"`
	Children       []profileNode `json:"children"`
}

type profileFormat int

const (
	formatUnknown profileFormat = iota
	formatRowsReturned
	formatTiming
	formatOperatorTiming
	formatResultSetSize
)

func (p *profile) format() profileFormat {
	switch {
	case p.RowsReturned != nil && p.Latency != nil:
		return formatRowsReturned
	case p.Timing != nil:
		return formatTiming
	case p.OperatorTiming != nil:
		return formatOperatorTiming
	case p.Latency != nil && p.ResultSetSize != nil:
		return formatResultSetSize
	}
	return formatUnknown
}

func (p *profile) child(path ...int) (profileNode, error) {
	nodes := p.Children
	var node profileNode
	for depth, i := range path {
		if i >= len(nodes) {
			return profileNode{}, fmt.Errorf("profile has no child #%v at depth %v", i, depth)
		}
		node = nodes[i]
		nodes = node.Children
	}
	return node, nil
}

func (p *profile) metrics() (Metrics, bool, error) {
	switch p.format() {
	case formatRowsReturned:
		return Metrics{Runtime: *p.Latency, Cardinality: *p.RowsReturned}, true, nil
	case formatTiming:
		node, err := p.child(0, 0)
		if err != nil || node.Cardinality == nil {
			return Metrics{}, true, fmt.Errorf("timing profile without query cardinality: %v", err)
		}
		return Metrics{Runtime: *p.Timing, Cardinality: *node.Cardinality}, true, nil
	case formatOperatorTiming:
		node, err := p.child(0)
		if err != nil {
			return Metrics{}, true, err
		}
		if node.Cardinality != nil {
			return Metrics{Runtime: *p.OperatorTiming, Cardinality: *node.Cardinality}, true, nil
		}
		if node.OperatorCardinality != nil {
			return Metrics{Runtime: *p.OperatorTiming, Cardinality: *node.OperatorCardinality}, true, nil
		}
		return Metrics{}, true, fmt.Errorf("operator timing profile without cardinality")
	case formatResultSetSize:
		return Metrics{Runtime: *p.Latency, Cardinality: *p.ResultSetSize}, true, nil
	}
	return Metrics{}, false, nil
}

// ReadProfileMetrics extracts runtime and cardinality from the profiler
// output at path. A missing or unparsable file yields nil metrics; an
// unknown layout is an *UnrecognizedProfileFormatError. The file is removed
// once it has been read.
func ReadProfileMetrics(path string) (*Metrics, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		Logger.Errorf("failed to read profile %v: %v", path, err)
		return nil, nil
	}
	defer func() {
		if err := os.Remove(path); err != nil {
			Logger.Errorf("failed to remove profile %v: %v", path, err)
		}
	}()

	var p profile
	if err := json.Unmarshal(data, &p); err != nil {
		Logger.Errorf("failed to parse profile %v: %v", path, err)
		return nil, nil
	}
	metrics, known, err := p.metrics()
	if !known {
		return nil, &UnrecognizedProfileFormatError{Path: path, Keys: topLevelKeys(data)}
	}
	if err != nil {
		Logger.Errorf("incomplete profile %v: %v", path, err)
		return nil, nil
	}
	return &metrics, nil
}

func topLevelKeys(data []byte) []string {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

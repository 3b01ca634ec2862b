package main

import (
	"fmt"
	"strings"
)

type MissingScriptError struct {
	Owner  string
	Engine string
}

func (e *MissingScriptError) Error() string {
	return fmt.Sprintf("no script for engine '%v' in %v", e.Engine, e.Owner)
}

func (s Script) For(engine string, owner string) (string, error) {
	script, ok := s[engine]
	if !ok {
		return "", &MissingScriptError{Owner: owner, Engine: engine}
	}
	return script, nil
}

// ComposeScript builds the text fed to the engine for one run. The profiler
// and the thread count must be configured after the dataset is attached and
// before the measured query.
func ComposeScript(system System, data Dataset, query Query, settings SystemSettings, slot int) (string, error) {
	engine := system.Name()
	dataSetup, err := data.SetupScript.For(engine, fmt.Sprintf("dataset %v", data.Name))
	if err != nil {
		return "", err
	}
	run, err := query.RunScript.For(engine, fmt.Sprintf("query %v", query.Name))
	if err != nil {
		return "", err
	}
	var script strings.Builder
	for _, part := range []string{
		system.SetupScript(),
		dataSetup,
		system.StartProfilerCommand(slot),
		system.SetThreadsCommand(settings.Threads),
		run,
	} {
		script.WriteString(part)
		script.WriteString("\n")
	}
	return script.String(), nil
}

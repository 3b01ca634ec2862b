package main

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRunStatus(t *testing.T) {
	runner := &ProcessRunner{Paths: testPaths(t)}
	ctx := context.Background()

	require.Equal(t, StatusSuccess, runner.Run(ctx, "true", 5*time.Second))
	require.Equal(t, StatusCrash, runner.Run(ctx, "exit 3", 5*time.Second))
	require.Equal(t, StatusCrash, runner.Run(ctx, "definitely-not-a-binary-on-path", 5*time.Second))
}

// processGone treats zombies as dead: they hold no resources and wait for
// their new parent to reap them.
func processGone(pid int) bool {
	stat, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "stat"))
	if err != nil {
		return true
	}
	fields := strings.Fields(string(stat[strings.LastIndexByte(string(stat), ')')+1:]))
	return len(fields) > 0 && (fields[0] == "Z" || fields[0] == "X")
}

func TestRunTimeoutKillsTree(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("process inspection relies on /proc")
	}
	paths := testPaths(t)
	runner := &ProcessRunner{Paths: paths}
	pidFile := paths.TmpPath("child.pid")

	started := time.Now()
	status := runner.Run(context.Background(), "sleep 30 & echo $! > "+pidFile+"; sleep 30; wait", 300*time.Millisecond)
	require.Equal(t, StatusTimeout, status)
	require.Less(t, time.Since(started), 10*time.Second)

	data, err := os.ReadFile(pidFile)
	require.Nil(t, err)
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	require.Nil(t, err)
	require.Eventually(t, func() bool { return processGone(pid) }, 5*time.Second, 50*time.Millisecond)
}

func TestRunCancelled(t *testing.T) {
	runner := &ProcessRunner{Paths: testPaths(t)}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	started := time.Now()
	require.Equal(t, StatusCrash, runner.Run(ctx, "sleep 30", time.Minute))
	require.Less(t, time.Since(started), 10*time.Second)
}

func TestRunScriptEnvironment(t *testing.T) {
	t.Setenv("HOME", "/home/bench")
	t.Setenv("LEAKED_VARIABLE", "leak")
	paths := testPaths(t)
	runner := &ProcessRunner{Paths: paths, Env: map[string]string{"ENGINE_OPTION": "on"}}
	out := paths.TmpPath("env.out")

	script := `echo "$HOME $ENGINE_OPTION [$LEAKED_VARIABLE]" > ` + out
	require.Equal(t, StatusSuccess, runner.RunScript(context.Background(), "sh", script, 3, 5*time.Second))

	data, err := os.ReadFile(out)
	require.Nil(t, err)
	require.Equal(t, "/home/bench on []\n", string(data))

	written, err := os.ReadFile(paths.ScriptPath(3))
	require.Nil(t, err)
	require.Equal(t, script, string(written))
}

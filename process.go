package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/shirou/gopsutil/process"
)

type RunStatus string

const (
	StatusSuccess RunStatus = "success"
	StatusTimeout RunStatus = "timeout"
	StatusCrash   RunStatus = "crash"
)

// ScriptRunner runs an engine command against a script and classifies the
// outcome.
type ScriptRunner interface {
	RunScript(ctx context.Context, command string, script string, slot int, timeout time.Duration) RunStatus
}

type ProcessRunner struct {
	Paths Paths
	// Env is added on top of HOME, which is always forwarded.
	Env map[string]string
}

func (r *ProcessRunner) environment() []string {
	env := make([]string, 0, len(r.Env)+1)
	if home, ok := os.LookupEnv("HOME"); ok {
		env = append(env, "HOME="+home)
	}
	for key, value := range r.Env {
		env = append(env, fmt.Sprintf("%v=%v", key, value))
	}
	return env
}

// RunScript writes the script to the slot's script file and runs
// "<command> <script file>".
func (r *ProcessRunner) RunScript(ctx context.Context, command string, script string, slot int, timeout time.Duration) RunStatus {
	path := r.Paths.ScriptPath(slot)
	if err := os.WriteFile(path, []byte(script), 0o644); err != nil {
		Logger.Errorf("failed to write script file %v: %v", path, err)
		return StatusCrash
	}
	return r.Run(ctx, fmt.Sprintf("%v %v", command, path), timeout)
}

// Run executes a shell command and waits for it at most timeout. On timeout
// the whole process tree is killed before Run returns.
func (r *ProcessRunner) Run(ctx context.Context, command string, timeout time.Duration) RunStatus {
	Logger.Infof("running command %v with timeout %v", command, timeout)
	Logger.Debugf("environment for the command: %v", r.Env)

	cmd := exec.Command("sh", "-c", command)
	cmd.Env = r.environment()
	cmd.SysProcAttr = detachedProcAttr()
	if Verbose() {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}
	if err := cmd.Start(); err != nil {
		Logger.Errorf("command %v failed to start: %v", command, err)
		return StatusCrash
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			Logger.Errorf("command %v failed: %v", command, err)
			return StatusCrash
		}
		return StatusSuccess
	case <-timer.C:
		killTree(cmd.Process.Pid)
		<-done
		Logger.Errorf("command %v timed out after %v", command, timeout)
		return StatusTimeout
	case <-ctx.Done():
		killTree(cmd.Process.Pid)
		<-done
		Logger.Errorf("command %v cancelled: %v", command, ctx.Err())
		return StatusCrash
	}
}

// killTree kills pid and all of its descendants. Descendants are collected
// before anything is killed, since killed parents get their children
// reparented.
func killTree(pid int) {
	root, err := process.NewProcess(int32(pid))
	if err == nil {
		for _, child := range descendants(root) {
			if err := child.Kill(); err != nil {
				Logger.Debugf("failed to kill child process %v: %v", child.Pid, err)
			}
		}
		if err := root.Kill(); err != nil {
			Logger.Debugf("failed to kill process %v: %v", pid, err)
		}
	}
	// anything which escaped the walk still belongs to the process group
	killGroup(pid)
}

func descendants(p *process.Process) []*process.Process {
	children, err := p.Children()
	if err != nil {
		return nil
	}
	all := make([]*process.Process, 0, len(children))
	for _, child := range children {
		all = append(all, descendants(child)...)
		all = append(all, child)
	}
	return all
}

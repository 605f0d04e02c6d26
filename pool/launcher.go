// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package pool

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// DefaultWorkerCommand is the worker binary run when not told otherwise.
const DefaultWorkerCommand = "procdns-worker"

// Process is a running worker process.
type Process interface {
	// Wait blocks until the process has terminated.
	Wait() error
	// Kill forcibly terminates the process.
	Kill() error
}

// Launcher starts worker processes.
type Launcher interface {
	// Launch starts a new worker process with the specified additional
	// environment variables in "KEY=value" format. If stdio is true, Launch
	// returns the process' standard input and output; otherwise the process
	// gets started with its standard streams closed.
	Launch(env []string, stdio bool) (p Process, stdin io.WriteCloser, stdout io.ReadCloser, err error)
}

// ExecLauncher starts worker processes by executing a command.
type ExecLauncher struct {
	Command []string // worker binary path or name, followed by its arguments.
	Netns   string   // optional path of the network namespace to run workers in.
}

var _ Launcher = (*ExecLauncher)(nil)

// Launch starts a new worker process.
func (l *ExecLauncher) Launch(env []string, stdio bool) (Process, io.WriteCloser, io.ReadCloser, error) {
	command := l.Command
	if len(command) == 0 {
		command = []string{DefaultWorkerCommand}
	}
	cmd := exec.Command(command[0], command[1:]...)
	cmd.Env = append(os.Environ(), env...)
	if !stdio {
		if err := inNetworkNamespace(l.Netns, cmd.Start); err != nil {
			return nil, nil, nil, fmt.Errorf("cannot start worker: %w", err)
		}
		return &execProcess{cmd: cmd}, nil, nil, nil
	}
	cmd.Stderr = os.Stderr
	inr, inw, err := os.Pipe()
	if err != nil {
		return nil, nil, nil, err
	}
	outr, outw, err := os.Pipe()
	if err != nil {
		inr.Close()
		inw.Close()
		return nil, nil, nil, err
	}
	cmd.Stdin = inr
	cmd.Stdout = outw
	err = inNetworkNamespace(l.Netns, cmd.Start)
	// The child has its own copies now, if any.
	inr.Close()
	outw.Close()
	if err != nil {
		inw.Close()
		outr.Close()
		return nil, nil, nil, fmt.Errorf("cannot start worker: %w", err)
	}
	return &execProcess{cmd: cmd}, inw, outr, nil
}

// execProcess is a worker process started by an ExecLauncher.
type execProcess struct {
	cmd *exec.Cmd
}

func (p *execProcess) Wait() error {
	return p.cmd.Wait()
}

func (p *execProcess) Kill() error {
	err := p.cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

// Zaparoo Runners
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Zaparoo Runners.
//
// Zaparoo Runners is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Zaparoo Runners is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Zaparoo Runners.  If not, see <http://www.gnu.org/licenses/>.

package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v4/process"
)

// Spec describes a long running child process.
type Spec struct {
	Name string
	Dir  string
	Args []string
	// Env is the complete environment of the child, not an overlay.
	Env []string
}

// Process is a started child. Stdout and stderr are merged into Output.
type Process interface {
	Pid() int
	Output() io.Reader
	// Wait blocks until the child exits. A non-zero exit is not an error,
	// see ExitCode.
	Wait() error
	// ExitCode is valid after Wait returns, -1 if the child was killed by
	// a signal or never ran.
	ExitCode() int
	// Terminate asks the child and all its descendants to exit.
	Terminate() error
	// Kill forcibly ends the child and all its descendants.
	Kill() error
	// Close releases the output pipe. Readers see EOF or an error.
	Close() error
}

type Executor interface {
	// Launch starts a child that outlives ctx. The context only bounds
	// process creation.
	Launch(ctx context.Context, spec Spec) (Process, error)
}

type RealExecutor struct{}

func (*RealExecutor) Launch(ctx context.Context, spec Spec) (Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("launch cancelled: %w", err)
	}

	path, err := exec.LookPath(spec.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to find %s: %w", spec.Name, err)
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create output pipe: %w", err)
	}

	//nolint:gosec // runner path comes from the runners directory or PATH
	cmd := exec.Command(path, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env
	cmd.Stdout = pw
	cmd.Stderr = pw
	cmd.SysProcAttr = sysProcAttr()

	if err := cmd.Start(); err != nil {
		_ = pr.Close()
		_ = pw.Close()
		return nil, fmt.Errorf("failed to start %s: %w", spec.Name, err)
	}
	// the child holds its own copy of the write end
	if err := pw.Close(); err != nil {
		log.Debug().Err(err).Msg("error closing parent write end")
	}

	return &realProcess{cmd: cmd, out: pr}, nil
}

type realProcess struct {
	cmd *exec.Cmd
	out *os.File
}

func (p *realProcess) Pid() int {
	return p.cmd.Process.Pid
}

func (p *realProcess) Output() io.Reader {
	return p.out
}

func (p *realProcess) Wait() error {
	err := p.cmd.Wait()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed waiting for process: %w", err)
	}
	return nil
}

func (p *realProcess) ExitCode() int {
	if p.cmd.ProcessState == nil {
		return -1
	}
	return p.cmd.ProcessState.ExitCode()
}

func (p *realProcess) Terminate() error {
	procs := Tree(p.Pid())
	if len(procs) == 0 {
		return nil
	}
	log.Debug().Int("count", len(procs)).Int("rootPid", p.Pid()).Msg("terminating process tree")
	signalTree(procs, (*process.Process).Terminate, "SIGTERM")
	return nil
}

func (p *realProcess) Kill() error {
	procs := Tree(p.Pid())
	if len(procs) == 0 {
		return nil
	}
	signalTree(procs, (*process.Process).Kill, "SIGKILL")
	return nil
}

func (p *realProcess) Close() error {
	if err := p.out.Close(); err != nil {
		return fmt.Errorf("failed to close output pipe: %w", err)
	}
	return nil
}

// Tree returns the process and all its descendants. Descendants are
// ordered before their parents so children are signalled first.
func Tree(pid int) []*process.Process {
	proc, err := process.NewProcess(int32(pid)) //nolint:gosec // PID fits in int32
	if err != nil {
		return nil
	}

	descendants := descendantsOf(proc)
	result := make([]*process.Process, 0, len(descendants)+1)
	result = append(result, descendants...)
	result = append(result, proc)
	return result
}

func descendantsOf(proc *process.Process) []*process.Process {
	children, err := proc.Children()
	if err != nil || len(children) == 0 {
		return nil
	}
	descendants := make([]*process.Process, 0, len(children))
	for _, child := range children {
		descendants = append(descendants, descendantsOf(child)...)
		descendants = append(descendants, child)
	}
	return descendants
}

func signalTree(procs []*process.Process, send func(*process.Process) error, name string) {
	for _, proc := range procs {
		if err := send(proc); err != nil {
			log.Debug().Err(err).Int32("pid", proc.Pid).Msgf("failed to send %s", name)
		} else {
			log.Debug().Int32("pid", proc.Pid).Msgf("sent %s to process", name)
		}
	}
}

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

package mocks

import (
	"context"
	"io"
	"sync"

	"github.com/ZaparooProject/zaparoo-runners/pkg/helpers/command"
	"github.com/stretchr/testify/mock"
)

// MockCommandExecutor is a testify mock for command.Executor.
// It allows testing code that starts games without running a real runner.
//
// Example:
//
//	mockCmd := &MockCommandExecutor{}
//	mockCmd.On("Launch", mock.Anything, mock.Anything).Return(mocks.NewFakeProcess(42), nil)
type MockCommandExecutor struct {
	mock.Mock
}

// Launch mocks starting a long running child. Return a *FakeProcess (or
// nil with an error) from the expectation.
func (m *MockCommandExecutor) Launch(ctx context.Context, spec command.Spec) (command.Process, error) {
	called := m.Called(ctx, spec)
	proc, _ := called.Get(0).(command.Process)
	//nolint:wrapcheck // Mock returns are already wrapped by caller
	return proc, called.Error(1)
}

// FakeProcess is a child process driven by the test. Lines written with
// Print show up on Output, and Exit makes Wait return.
type FakeProcess struct {
	out        *io.PipeReader
	in         *io.PipeWriter
	exited     chan struct{}
	terminated chan struct{}
	mu         sync.Mutex
	pid        int
	code       int
	once       sync.Once
	// IgnoreTerminate keeps the process alive after Terminate, only Kill
	// ends it.
	IgnoreTerminate bool
}

func NewFakeProcess(pid int) *FakeProcess {
	r, w := io.Pipe()
	return &FakeProcess{
		out:        r,
		in:         w,
		exited:     make(chan struct{}),
		terminated: make(chan struct{}, 1),
		pid:        pid,
		code:       -1,
	}
}

func (p *FakeProcess) Pid() int {
	return p.pid
}

func (p *FakeProcess) Output() io.Reader {
	return p.out
}

// Print writes a line of child output. It blocks until the line is read.
func (p *FakeProcess) Print(line string) {
	_, _ = p.in.Write([]byte(line + "\n"))
}

// Exit ends the process with the given code. Later calls are ignored.
func (p *FakeProcess) Exit(code int) {
	p.once.Do(func() {
		p.mu.Lock()
		p.code = code
		p.mu.Unlock()
		_ = p.in.Close()
		close(p.exited)
	})
}

func (p *FakeProcess) Wait() error {
	<-p.exited
	return nil
}

func (p *FakeProcess) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.code
}

// Terminated is signalled each time Terminate is called.
func (p *FakeProcess) Terminated() <-chan struct{} {
	return p.terminated
}

func (p *FakeProcess) Terminate() error {
	select {
	case p.terminated <- struct{}{}:
	default:
	}
	if !p.IgnoreTerminate {
		p.Exit(-1)
	}
	return nil
}

func (p *FakeProcess) Kill() error {
	p.Exit(-1)
	return nil
}

func (p *FakeProcess) Close() error {
	//nolint:wrapcheck // pipe close never fails
	return p.out.Close()
}

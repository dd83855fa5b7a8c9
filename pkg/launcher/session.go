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

package launcher

import (
	"bufio"
	"context"
	"fmt"
	"time"

	"github.com/ZaparooProject/zaparoo-runners/pkg/helpers/command"
	"github.com/ZaparooProject/zaparoo-runners/pkg/helpers/syncutil"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Timeouts for stopping a running game.
const (
	// SIGTERMTimeout is how long to wait for graceful SIGTERM shutdown.
	SIGTERMTimeout = 3 * time.Second
	// SIGKILLTimeout is how long to wait after SIGKILL before proceeding.
	SIGKILLTimeout = 500 * time.Millisecond
	// outputGrace bounds how long output is read after the child exits.
	// Daemons like wineserver can keep the pipe open indefinitely.
	outputGrace = 2 * time.Second
	// outputBuffer is the number of lines queued for a slow reader.
	outputBuffer = 256
)

// State is where a session is in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateLaunching
	StateRunning
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLaunching:
		return "launching"
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Exit describes how a game process ended.
type Exit struct {
	Err      error
	Code     int
	Duration time.Duration
}

// Session is one running game. Its output is delivered line by line and
// the exit is reported once.
type Session struct {
	started  time.Time
	clock    clockwork.Clock
	proc     command.Process
	output   chan string
	exitCh   chan Exit
	finished chan struct{}
	exit     Exit
	game     string
	mu       syncutil.RWMutex
	state    State
}

func newSession(game string, clock clockwork.Clock) *Session {
	return &Session{
		game:     game,
		clock:    clock,
		state:    StateLaunching,
		output:   make(chan string, outputBuffer),
		exitCh:   make(chan Exit, 1),
		finished: make(chan struct{}),
	}
}

func (s *Session) Game() string {
	return s.game
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Session) Pid() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.proc == nil {
		return 0
	}
	return s.proc.Pid()
}

// Output delivers the merged stdout and stderr of the game, one line at a
// time. Lines are dropped if nobody keeps up. Closed when the game exits.
func (s *Session) Output() <-chan string {
	return s.output
}

// Done receives the exit exactly once. Use Wait when more than one
// goroutine needs it.
func (s *Session) Done() <-chan Exit {
	return s.exitCh
}

// Wait blocks until the game exits.
func (s *Session) Wait(ctx context.Context) (Exit, error) {
	select {
	case <-s.finished:
		s.mu.RLock()
		defer s.mu.RUnlock()
		return s.exit, nil
	case <-ctx.Done():
		return Exit{}, fmt.Errorf("waiting for %s: %w", s.game, ctx.Err())
	}
}

// start attaches the spawned process and moves the session to running.
// onExit is called after the exit is recorded and before it is delivered.
func (s *Session) start(proc command.Process, onExit func()) {
	s.mu.Lock()
	s.proc = proc
	s.state = StateRunning
	s.started = s.clock.Now()
	s.mu.Unlock()

	readerDone := make(chan struct{})
	go s.readOutput(proc, readerDone)
	go s.waitExit(proc, readerDone, onExit)
}

func (s *Session) readOutput(proc command.Process, done chan<- struct{}) {
	defer close(done)
	defer close(s.output)

	scanner := bufio.NewScanner(proc.Output())
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		log.Debug().Str("game", s.game).Msg(line)
		select {
		case s.output <- line:
		default:
		}
	}
}

func (s *Session) waitExit(proc command.Process, readerDone <-chan struct{}, onExit func()) {
	waitErr := proc.Wait()

	select {
	case <-readerDone:
	default:
		select {
		case <-readerDone:
		case <-s.clock.After(outputGrace):
			log.Debug().Str("game", s.game).Msg("output still open after exit, closing")
		}
	}
	if err := proc.Close(); err != nil {
		log.Debug().Err(err).Msg("error closing game output")
	}
	<-readerDone

	s.mu.Lock()
	s.exit = Exit{
		Code:     proc.ExitCode(),
		Err:      waitErr,
		Duration: s.clock.Since(s.started),
	}
	s.state = StateTerminated
	exit := s.exit
	s.mu.Unlock()

	if waitErr != nil {
		log.Error().Err(waitErr).Str("game", s.game).Msg("game ended with error")
	} else {
		log.Info().Str("game", s.game).Int("code", exit.Code).Msgf("game exited after %s", exit.Duration)
	}

	if onExit != nil {
		onExit()
	}
	s.exitCh <- exit
	close(s.exitCh)
	close(s.finished)
}

// Stop asks the game and every process it spawned to exit, escalating to
// SIGKILL when it does not within SIGTERMTimeout. It returns once the game
// has exited or the kill grace period passed.
func (s *Session) Stop() error {
	s.mu.RLock()
	proc, state := s.proc, s.state
	s.mu.RUnlock()

	if state != StateRunning || proc == nil {
		return nil
	}

	log.Info().Str("game", s.game).Msg("stopping game")
	if err := proc.Terminate(); err != nil {
		log.Warn().Err(err).Msg("failed to terminate game")
	}

	select {
	case <-s.finished:
		return nil
	case <-s.clock.After(SIGTERMTimeout):
		log.Debug().Msg("SIGTERM timeout, sending SIGKILL")
	}

	if err := proc.Kill(); err != nil {
		return fmt.Errorf("failed to kill game: %w", err)
	}

	select {
	case <-s.finished:
		log.Debug().Msg("game process exited")
	case <-s.clock.After(SIGKILLTimeout):
		log.Debug().Msg("process cleanup timeout, proceeding anyway")
	}
	return nil
}

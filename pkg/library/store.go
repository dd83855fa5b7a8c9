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

package library

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"path/filepath"
	"strings"

	"github.com/ZaparooProject/zaparoo-runners/pkg/helpers/syncutil"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

var ErrNotFound = errors.New("game not found")

// Store is the ordered list of games backed by a JSON file. Every change
// is written through immediately.
type Store struct {
	fs    afero.Fs
	path  string
	games []Game
	mu    syncutil.RWMutex
}

// Open loads the games file. A missing or corrupt file gives an empty
// library. Records without an ID get one.
func Open(fsys afero.Fs, path string) (*Store, error) {
	s := &Store{fs: fsys, path: path}

	data, err := afero.ReadFile(fsys, path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read games file: %w", err)
	}

	games, err := decodeGames(data)
	if err != nil {
		log.Warn().Err(err).Msgf("ignoring unreadable games file: %s", path)
		return s, nil
	}

	for i := range games {
		if games[i].ID == "" {
			games[i].ID = uuid.New().String()
		}
	}
	s.games = games
	log.Debug().Msgf("loaded %d games from %s", len(games), path)
	return s, nil
}

// decodeGames accepts the current array layout and the old layout where
// games were the values of a JSON object. Object order is kept.
func decodeGames(data []byte) ([]Game, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("invalid games json: %w", err)
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return nil, fmt.Errorf("unexpected games json value: %v", tok)
	}

	var games []Game
	switch delim {
	case '[':
		for dec.More() {
			var g Game
			if err := dec.Decode(&g); err != nil {
				return nil, fmt.Errorf("invalid game record: %w", err)
			}
			games = append(games, g)
		}
	case '{':
		for dec.More() {
			if _, err := dec.Token(); err != nil {
				return nil, fmt.Errorf("invalid games json: %w", err)
			}
			var g Game
			if err := dec.Decode(&g); err != nil {
				return nil, fmt.Errorf("invalid game record: %w", err)
			}
			games = append(games, g)
		}
	default:
		return nil, fmt.Errorf("unexpected games json delimiter: %v", delim)
	}

	if _, err := dec.Token(); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid games json: %w", err)
	}
	return games, nil
}

func (s *Store) Path() string {
	return s.path
}

// List returns a copy of all games in stored order.
func (s *Store) List() []Game {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Game, len(s.games))
	for i, g := range s.games {
		out[i] = cloneGame(g)
	}
	return out
}

// Get finds a game by ID, then by case-insensitive name.
func (s *Store) Get(ref string) (Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(ref)
	if i < 0 {
		return Game{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return cloneGame(s.games[i]), nil
}

func (s *Store) indexOf(ref string) int {
	for i := range s.games {
		if s.games[i].ID == ref {
			return i
		}
	}
	for i := range s.games {
		if strings.EqualFold(s.games[i].Name, ref) {
			return i
		}
	}
	return -1
}

// Add validates and appends a game, assigning an ID if it has none.
func (s *Store) Add(g Game) (Game, error) {
	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	if err := Validate(&g); err != nil {
		return Game{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.games = append(s.games, cloneGame(g))
	if err := s.save(); err != nil {
		s.games = s.games[:len(s.games)-1]
		return Game{}, err
	}
	log.Info().Msgf("added game: %s", g.Name)
	return g, nil
}

// Update replaces the game with the same ID.
func (s *Store) Update(g Game) error {
	if err := Validate(&g); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.games {
		if s.games[i].ID != g.ID {
			continue
		}
		prev := s.games[i]
		s.games[i] = cloneGame(g)
		if err := s.save(); err != nil {
			s.games[i] = prev
			return err
		}
		return nil
	}
	return fmt.Errorf("%w: %s", ErrNotFound, g.ID)
}

// Remove deletes the game with the given ID.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.games {
		if s.games[i].ID != id {
			continue
		}
		prev := s.games
		s.games = append(append([]Game{}, s.games[:i]...), s.games[i+1:]...)
		if err := s.save(); err != nil {
			s.games = prev
			return err
		}
		return nil
	}
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (s *Store) save() error {
	games := s.games
	if games == nil {
		games = []Game{}
	}
	data, err := json.MarshalIndent(games, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode games: %w", err)
	}

	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create games directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write games file: %w", err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace games file: %w", err)
	}
	return nil
}

func cloneGame(g Game) Game {
	g.Env = maps.Clone(g.Env)
	return g
}

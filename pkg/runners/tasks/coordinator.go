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

// Package tasks runs runner installs and catalog fetches in the background
// so a controlling UI or CLI stays responsive.
package tasks

import (
	"context"
	"fmt"
	"sync"

	"github.com/ZaparooProject/zaparoo-runners/pkg/helpers/syncutil"
	"github.com/ZaparooProject/zaparoo-runners/pkg/runners"
	"github.com/ZaparooProject/zaparoo-runners/pkg/runners/catalog"
	"github.com/rs/zerolog/log"
)

// Installer performs one blocking install, reporting progress and status.
type Installer interface {
	Install(ctx context.Context, fam runners.Family, v runners.Version, report runners.Reporter) error
}

// Catalog lists installable versions for a family.
type Catalog interface {
	ListVersions(ctx context.Context, fam runners.Family) []runners.Version
}

// Coordinator owns the background workers. At most one install per
// (family, version) runs at a time: asking again while it is in flight
// returns the existing task.
type Coordinator struct {
	ctx       context.Context
	installer Installer
	catalog   Catalog
	layout    *runners.Layout
	inflight  map[runners.Key]*Task
	wg        sync.WaitGroup
	mu        syncutil.Mutex
}

// NewCoordinator creates a coordinator whose workers run under ctx. The
// context is only expected to end at shutdown; individual installs cannot
// be cancelled.
func NewCoordinator(
	ctx context.Context,
	inst Installer,
	cat Catalog,
	layout *runners.Layout,
) *Coordinator {
	return &Coordinator{
		ctx:       ctx,
		installer: inst,
		catalog:   cat,
		layout:    layout,
		inflight:  make(map[runners.Key]*Task),
	}
}

// Install starts installing v in the background and returns its task.
func (c *Coordinator) Install(fam runners.Family, v runners.Version) *Task {
	key := runners.Key{Family: fam, Version: v.Name}

	c.mu.Lock()
	if t, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		log.Debug().Msgf("install already running: %s", key)
		return t
	}
	t := newTask(key, v)
	c.inflight[key] = t
	c.wg.Add(1)
	c.mu.Unlock()

	log.Info().Msgf("starting install: %s", key)
	go c.run(t)
	return t
}

// Running returns the in-flight task for a version, if any.
func (c *Coordinator) Running(fam runners.Family, name string) (*Task, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.inflight[runners.Key{Family: fam, Version: name}]
	return t, ok
}

func (c *Coordinator) run(t *Task) {
	defer c.wg.Done()

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Msgf("panic during install of %s: %v", t.key, r)
				err = fmt.Errorf("install panicked: %v", r)
			}
		}()
		err = c.installer.Install(c.ctx, t.key.Family, t.version, t.emit)
	}()

	c.mu.Lock()
	delete(c.inflight, t.key)
	c.mu.Unlock()

	if err != nil {
		log.Error().Err(err).Msgf("install failed: %s", t.key)
		t.finish(runners.Event{
			Kind: runners.EventFailed,
			Text: err.Error(),
			Err:  err,
		})
		return
	}

	log.Info().Msgf("install finished: %s", t.key)
	t.finish(runners.Event{
		Kind: runners.EventCompleted,
		Text: fmt.Sprintf("Installed %s", t.version.Name),
	})
}

// Fetch lists a family's versions in the background. The returned channel
// receives exactly one annotated list and is then closed. Catalog failures
// show up as an empty list.
func (c *Coordinator) Fetch(ctx context.Context, fam runners.Family) <-chan []catalog.Entry {
	out := make(chan []catalog.Entry, 1)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(out)
		versions := c.catalog.ListVersions(ctx, fam)
		out <- catalog.Annotate(c.layout, fam, versions)
	}()
	return out
}

// Wait blocks until every install and fetch started so far has finished.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

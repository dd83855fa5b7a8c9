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

package helpers

import (
	"github.com/ZaparooProject/zaparoo-runners/pkg/testing/mocks"
	"github.com/stretchr/testify/mock"
)

// NewMockCommandExecutor creates a MockCommandExecutor with no default
// expectations. Each test decides what the child does:
//
//	cmd := helpers.NewMockCommandExecutor()
//	proc := mocks.NewFakeProcess(100)
//	cmd.On("Launch", mock.Anything, mock.Anything).Return(proc, nil)
func NewMockCommandExecutor() *mocks.MockCommandExecutor {
	return &mocks.MockCommandExecutor{}
}

// ExpectLaunch makes the next Launch on cmd start proc.
func ExpectLaunch(cmd *mocks.MockCommandExecutor, proc *mocks.FakeProcess) *mock.Call {
	return cmd.On("Launch", mock.Anything, mock.Anything).Return(proc, nil).Once()
}

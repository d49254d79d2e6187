// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package update

import (
	"io"
	"runtime"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

// Windows binaries cannot replace themselves while running; everything
// else stays eligible.
func TestSelfUpdatePlatformGuard(t *testing.T) {
	if runtime.GOOS == "windows" {
		assert.False(t, isSelfUpdateSupportedPlatform())
	} else {
		assert.True(t, isSelfUpdateSupportedPlatform())
	}
}

func TestCanSelfUpdateRespectsPlatformGuard(t *testing.T) {
	svc := NewService(noopLogger(), true, "v1.0.0", "test-agent")

	if runtime.GOOS == "windows" {
		assert.False(t, svc.CanSelfUpdate())
	}
}

func noopLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

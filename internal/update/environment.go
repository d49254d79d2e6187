// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package update

import (
	"errors"
	"os"
	"runtime"
	"strings"
)

// ErrSelfUpdateUnsupported is returned when the running binary cannot
// replace itself: Windows, or a container where the image is the unit
// of deployment.
var ErrSelfUpdateUnsupported = errors.New("self-update is not supported in this environment")

var containerMarkerFiles = []string{
	"/.dockerenv",        // Docker
	"/run/.containerenv", // Podman and friends
}

var containerCgroupHints = []string{"docker", "kubepods", "containerd", "libpod"}

// isRunningInContainer checks the common container markers. Unreadable
// markers count as "not a container".
func isRunningInContainer() bool {
	for _, marker := range containerMarkerFiles {
		if _, err := os.Stat(marker); err == nil {
			return true
		}
	}

	data, err := os.ReadFile("/proc/1/cgroup")
	if err != nil {
		return false
	}
	cgroup := string(data)
	for _, hint := range containerCgroupHints {
		if strings.Contains(cgroup, hint) {
			return true
		}
	}
	return false
}

// Windows binaries cannot replace themselves while running.
func isSelfUpdateSupportedPlatform() bool {
	return runtime.GOOS != "windows"
}

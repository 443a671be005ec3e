// Monotonic clock fallback for non-Linux builds
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

//go:build !linux

package toolhead

import "time"

var monotonicStart = time.Now()

func monotonic() float64 {
	return time.Since(monotonicStart).Seconds()
}

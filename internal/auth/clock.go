// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonepass Contributors

package auth

import "time"

// Clock supplies the current time. Every operation samples it once.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time {
	return time.Now()
}

// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

// Yet another (braille) spinner, this time without any background ticker.

package main

import (
	"time"
)

var spinnerPhases = func() []string {
	phases := []string{}
	for _, r := range "⠉⠘⠰⠤⠆⠃" {
		phases = append(phases, string(r)+" ")
	}
	return phases
}()

// spinner derives its phase from the time passed since it was created, so
// there's nothing to start and stop.
type spinner struct {
	start    time.Time
	interval time.Duration
}

// newSpinner returns a spinner advancing one phase every interval.
func newSpinner(interval time.Duration) spinner {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return spinner{start: time.Now(), interval: interval}
}

// Spinner returns the spinner string for the current phase.
func (s spinner) Spinner() string {
	return s.phaseAt(time.Now())
}

func (s spinner) phaseAt(t time.Time) string {
	phase := int(t.Sub(s.start)/s.interval) % len(spinnerPhases)
	if phase < 0 {
		phase = 0
	}
	return spinnerPhases[phase]
}

// Package integrity checks that a timeline's state folders agree with its
// event log.
package integrity

import (
	"fmt"
	"slices"

	"github.com/roach88/strata/internal/errs"
	"github.com/roach88/strata/internal/locator"
	"github.com/roach88/strata/internal/reconcile"
	"github.com/roach88/strata/internal/timelog"
)

// Mode selects how deep a check goes.
type Mode string

const (
	// Basic compares the materialized years with the logged years.
	Basic Mode = "basic"
	// Comprehensive also verifies every year against its cumulative recipe.
	Comprehensive Mode = "comprehensive"
)

// ParseMode accepts "basic" and "comprehensive".
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case Basic, Comprehensive:
		return Mode(s), nil
	}
	return "", errs.Validation("unknown integrity mode %q (want basic or comprehensive)", s)
}

// Report is the outcome of one check.
type Report struct {
	Mode       Mode                 `json:"mode"`
	DiskOnly   []int                `json:"disk_only,omitempty"`
	LogOnly    []int                `json:"log_only,omitempty"`
	Mismatches []reconcile.Mismatch `json:"mismatches,omitempty"`
	Problems   []string             `json:"problems,omitempty"`
}

// OK reports whether the check found nothing.
func (r Report) OK() bool {
	return len(r.DiskOnly) == 0 && len(r.LogOnly) == 0 && len(r.Mismatches) == 0 && len(r.Problems) == 0
}

// Err returns nil for a clean report, else one INTEGRITY error listing
// every finding.
func (r Report) Err() error {
	if r.OK() {
		return nil
	}
	if len(r.Mismatches) == 0 && len(r.Problems) == 0 {
		var keys []string
		if len(r.DiskOnly) > 0 {
			keys = append(keys, fmt.Sprintf("on disk only: %v", r.DiskOnly))
		}
		if len(r.LogOnly) > 0 {
			keys = append(keys, fmt.Sprintf("in log only: %v", r.LogOnly))
		}
		return errs.Integrity("state years do not match the event log").WithKeys(keys...)
	}
	e := errs.Integrity("state years do not match their cumulative modifications")
	if len(r.DiskOnly) > 0 {
		e.WithKeys(fmt.Sprintf("on disk only: %v", r.DiskOnly))
	}
	if len(r.LogOnly) > 0 {
		e.WithKeys(fmt.Sprintf("in log only: %v", r.LogOnly))
	}
	for _, m := range r.Mismatches {
		e.WithKeys(m.String())
	}
	return e.WithKeys(r.Problems...)
}

// Checker runs integrity checks for one timeline.
type Checker struct {
	loc    locator.Resolver
	engine *reconcile.Engine
}

// New returns a Checker. engine is only used in Comprehensive mode and may
// be nil for Basic checks.
func New(loc locator.Resolver, engine *reconcile.Engine) *Checker {
	return &Checker{loc: loc, engine: engine}
}

// Run performs the check and returns its findings. The filesystem is never
// written.
func (c *Checker) Run(log timelog.Log, mode Mode) (Report, error) {
	r := Report{Mode: mode}
	disk, err := locator.StateYears(c.loc)
	if err != nil {
		return r, err
	}
	logged := log.Years()
	for _, y := range disk {
		if !slices.Contains(logged, y) {
			r.DiskOnly = append(r.DiskOnly, y)
		}
	}
	for _, y := range logged {
		if !slices.Contains(disk, y) {
			r.LogOnly = append(r.LogOnly, y)
		}
	}
	if mode != Comprehensive {
		return r, nil
	}
	if c.engine == nil {
		return r, fmt.Errorf("comprehensive integrity check needs a reconciliation engine")
	}
	r.Mismatches, r.Problems, err = c.engine.Verify(log)
	if err != nil {
		return r, err
	}
	return r, nil
}

// Check runs the check and converts findings into an INTEGRITY error.
func (c *Checker) Check(log timelog.Log, mode Mode) error {
	r, err := c.Run(log, mode)
	if err != nil {
		return err
	}
	return r.Err()
}

package timeline

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"

	"github.com/roach88/strata/internal/errs"
	"github.com/roach88/strata/internal/fsutil"
	"github.com/roach88/strata/internal/recipe"
	"github.com/roach88/strata/internal/reconcile"
	"github.com/roach88/strata/internal/timelog"
)

// Simulation statuses stored in a signature sidecar.
const (
	StatusNeedsSimulation = "needs_simulation"
	StatusSimulated       = "simulated"
)

// SignatureRecord is the sidecar kept in every built state folder. The
// applied signature identifies the cumulative recipe the folder was built
// from; a simulation is current while its signature matches.
type SignatureRecord struct {
	Year               int     `json:"year"`
	AppliedSignature   string  `json:"applied_signature"`
	BuiltAt            string  `json:"built_at"`
	SimulationStatus   string  `json:"simulation_status"`
	SimulatedAt        *string `json:"simulated_at"`
	SimulatedSignature *string `json:"simulated_signature"`
}

// NeedsSimulation reports whether the state changed since it was last
// simulated.
func (r *SignatureRecord) NeedsSimulation() bool {
	if r == nil || r.AppliedSignature == "" || r.SimulatedSignature == nil {
		return true
	}
	return *r.SimulatedSignature != r.AppliedSignature
}

// ExpectedSignature returns the signature of year's cumulative recipe.
func ExpectedSignature(log timelog.Log, year int) (string, error) {
	return recipe.Signature(reconcile.Cumulative(log, year))
}

// Signature reads the sidecar of a state year. A year without one returns
// nil.
func (t *Timeline) Signature(year int) (*SignatureRecord, error) {
	return readSignature(t.loc.SignatureFile(year))
}

// MarkSimulated records that a state year has been simulated with its
// current configuration.
func (t *Timeline) MarkSimulated(year int) (*SignatureRecord, error) {
	if !t.mat.Exists(year) {
		return nil, errs.NotFound("state year %d is not materialized", year)
	}
	rec, err := t.Signature(year)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		log, err := t.Log()
		if err != nil {
			return nil, err
		}
		sig, err := ExpectedSignature(log, year)
		if err != nil {
			return nil, err
		}
		rec = &SignatureRecord{Year: year, AppliedSignature: sig, BuiltAt: timelog.Timestamp(t.clock())}
	}
	now := timelog.Timestamp(t.clock())
	applied := rec.AppliedSignature
	rec.SimulatedAt = &now
	rec.SimulatedSignature = &applied
	rec.SimulationStatus = StatusSimulated
	if err := writeSignature(t.loc.SignatureFile(year), rec); err != nil {
		return nil, err
	}
	t.logger.Info("marked state year simulated", "year", year)
	return rec, nil
}

// writeSignatures refreshes the sidecar of every touched, materialized and
// logged year whose cumulative recipe changed. A refreshed sidecar needs a
// new simulation.
func (x *tx) writeSignatures() error {
	for _, y := range x.touchedYears() {
		if !x.t.mat.Exists(y) || !x.log.Has(y) {
			continue
		}
		sig, err := ExpectedSignature(x.log, y)
		if err != nil {
			return err
		}
		path := x.t.loc.SignatureFile(y)
		current, err := readSignature(path)
		if err != nil {
			return err
		}
		if current != nil && current.AppliedSignature == sig {
			continue
		}
		rec := &SignatureRecord{
			Year:             y,
			AppliedSignature: sig,
			BuiltAt:          timelog.Timestamp(x.t.clock()),
			SimulationStatus: StatusNeedsSimulation,
		}
		if err := writeSignature(path, rec); err != nil {
			return err
		}
	}
	return nil
}

func readSignature(path string) (*SignatureRecord, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.IO("read", path, err)
	}
	var rec SignatureRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errs.Validation("signature file %s is invalid: %v", path, err)
	}
	return &rec, nil
}

func writeSignature(path string, rec *SignatureRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(path, append(data, '\n'))
}

package integrity

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/strata/internal/errs"
	"github.com/roach88/strata/internal/locator"
	"github.com/roach88/strata/internal/materialize"
	"github.com/roach88/strata/internal/recipe"
	"github.com/roach88/strata/internal/reconcile"
	"github.com/roach88/strata/internal/table"
	"github.com/roach88/strata/internal/testutil"
	"github.com/roach88/strata/internal/timelog"
)

func setup(t *testing.T, years ...int) (*Checker, *materialize.Materializer, *locator.Locator, timelog.Log) {
	t.Helper()
	loc := locator.New(testutil.NewScenario(t), "test")
	logger := testutil.DiscardLogger()
	m := materialize.New(loc, table.CSV{}, timelog.NewFile(loc.LogFile()), materialize.WithLogger(logger))
	log := timelog.Log{}
	for _, y := range years {
		require.NoError(t, m.Create(y))
		log[y] = timelog.NewEntry(testutil.Epoch)
	}
	return New(loc, reconcile.New(m, reconcile.WithLogger(logger))), m, loc, log
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("comprehensive")
	require.NoError(t, err)
	assert.Equal(t, Comprehensive, m)

	_, err = ParseMode("deep")
	assert.True(t, errs.IsValidation(err))
}

func TestBasic_Clean(t *testing.T) {
	c, _, _, log := setup(t, 2020, 2030)

	assert.NoError(t, c.Check(log, Basic))
}

func TestBasic_NoTimelineYet(t *testing.T) {
	c, _, _, _ := setup(t)

	assert.NoError(t, c.Check(timelog.Log{}, Basic))
}

func TestBasic_ReportsBothSides(t *testing.T) {
	c, _, loc, log := setup(t, 2020, 2030)
	require.NoError(t, os.RemoveAll(loc.StateDir(2020)))
	log[2025] = timelog.NewEntry(testutil.Epoch)
	delete(log, 2030)

	r, err := c.Run(log, Basic)
	require.NoError(t, err)
	assert.Equal(t, []int{2030}, r.DiskOnly)
	assert.Equal(t, []int{2020, 2025}, r.LogOnly)

	err = r.Err()
	require.True(t, errs.IsIntegrity(err))
	assert.Equal(t, "INTEGRITY: state years do not match the event log\n  - on disk only: [2030]\n  - in log only: [2020 2025]", err.Error())
}

func TestComprehensive_AggregatesMismatches(t *testing.T) {
	c, m, _, log := setup(t, 2020, 2030)
	delta := recipe.NewBuilder().
		Set("STANDARD1", "wall", "thickness_1_m", recipe.Number(0.1)).
		Set("STANDARD2", "roof", "U", recipe.Number(0.2)).
		Build()
	log[2020].Modifications = delta
	_, err := m.ApplyConstructionChange(2020, delta, materialize.ApplyOptions{})
	require.NoError(t, err)

	require.NoError(t, c.Check(log, Basic))

	r, err := c.Run(log, Comprehensive)
	require.NoError(t, err)
	assert.Len(t, r.Mismatches, 2)
	for _, mm := range r.Mismatches {
		assert.Equal(t, 2030, mm.Year)
	}

	err = c.Check(log, Comprehensive)
	require.True(t, errs.IsIntegrity(err))
	assert.Contains(t, err.Error(), "STANDARD1.wall.thickness_1_m")
	assert.Contains(t, err.Error(), "STANDARD2.roof.U")
}

func TestComprehensive_NeedsEngine(t *testing.T) {
	_, _, loc, log := setup(t, 2020)

	_, err := New(loc, nil).Run(log, Comprehensive)
	assert.Error(t, err)
}

package timeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/strata/internal/changes"
	"github.com/roach88/strata/internal/errs"
	"github.com/roach88/strata/internal/integrity"
	"github.com/roach88/strata/internal/journal"
	"github.com/roach88/strata/internal/locator"
	"github.com/roach88/strata/internal/materialize"
	"github.com/roach88/strata/internal/recipe"
	"github.com/roach88/strata/internal/table"
	"github.com/roach88/strata/internal/testutil"
)

var errInjected = errors.New("injected failure")

type fixture struct {
	tl    *Timeline
	loc   *locator.Locator
	clock *testutil.DeterministicClock
	// failAt makes the stage hook fail on entering that stage.
	failAt Stage
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{clock: testutil.NewDeterministicClock(), failAt: -1}
	base := []Option{
		WithClock(f.clock.Now),
		WithLogger(testutil.DiscardLogger()),
		WithIDGenerator(testutil.NewSequentialIDs("")),
		WithIntegrityMode(integrity.Comprehensive),
		WithStageHook(func(s Stage) error {
			if s == f.failAt {
				return errInjected
			}
			return nil
		}),
	}
	tl, err := Open(testutil.NewScenario(t), "retrofit", append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { tl.Close() })
	f.tl = tl
	f.loc = tl.Locator()
	return f
}

func (f *fixture) cell(t *testing.T, year int, a locator.Artifact, index, key, col string) string {
	t.Helper()
	return testutil.Cell(t, f.loc.State(year, a), index, key, col)
}

func (f *fixture) wallCode(t *testing.T, year int) string {
	t.Helper()
	return f.cell(t, year, locator.ConstructionTypes, materialize.ArchetypeIndex, "STANDARD1", "type_wall")
}

// tree returns the timeline folder without the journal files.
func (f *fixture) tree(t *testing.T) map[string]string {
	t.Helper()
	files := testutil.TreeFiles(t, f.loc.TimelineDir())
	for k := range files {
		if strings.HasPrefix(k, "timeline_journal.db") {
			delete(files, k)
		}
	}
	return files
}

func wallThickness(v float64) recipe.Recipe {
	return recipe.NewBuilder().Set("STANDARD1", "wall", "thickness_1_m", recipe.Number(v)).Build()
}

func TestOpen_Validation(t *testing.T) {
	scenario := testutil.NewScenario(t)

	_, err := Open(scenario, "../escape")
	assert.True(t, errs.IsValidation(err), "got %v", err)

	_, err = Open(filepath.Join(scenario, "missing"), "retrofit")
	assert.True(t, errs.IsNotFound(err), "got %v", err)
}

func TestApply_CreatesYearAndForks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.tl.Apply(ctx, 2020, wallThickness(0.10))
	require.NoError(t, err)
	assert.Equal(t, "tx-0001", res.TxID)
	assert.Equal(t, []int{2020}, res.Created)
	assert.True(t, res.Modified)
	assert.Equal(t, []int{2020}, res.Touched)

	code := f.wallCode(t, 2020)
	assert.Equal(t, "Wall_STANDARD1_YEAR_2020", code)
	assert.Equal(t, "0.1", f.cell(t, 2020, locator.EnvelopeWall, materialize.CodeIndex, code, "thickness_1_m"))
	// B1003 is built in 2022.
	assert.Equal(t, []string{"B1001", "B1002", "B1004"}, testutil.Keys(t, f.loc.State(2020, locator.ZoneGeometry), "name"))
	assert.Equal(t, code, f.cell(t, 2020, locator.Architecture, "name", "B1001", "type_wall"))

	log, err := f.tl.Log()
	require.NoError(t, err)
	require.True(t, log.Has(2020))
	assert.True(t, recipe.Equal(wallThickness(0.10), log[2020].Modifications))
	assert.NotEmpty(t, log[2020].LatestModifiedAt)

	// The baseline is never modified.
	assert.Equal(t, "WALL_AS1", testutil.Cell(t, f.loc.Baseline(locator.ConstructionTypes), materialize.ArchetypeIndex, "STANDARD1", "type_wall"))
}

// 2020 is edited, 2030 is created from it, then 2025 is edited in between:
// 2030 must follow 2025 while keeping the material inherited from the
// baseline, and only gain reconciliation records.
func TestApply_PropagatesForward(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tl.Apply(ctx, 2020, wallThickness(0.10))
	require.NoError(t, err)
	res, err := f.tl.CreateYear(ctx, 2030)
	require.NoError(t, err)
	assert.Equal(t, []int{2030}, res.Created)
	assert.Equal(t, "0.1", f.cell(t, 2030, locator.EnvelopeWall, materialize.CodeIndex, f.wallCode(t, 2030), "thickness_1_m"))

	res, err = f.tl.Apply(ctx, 2025, wallThickness(0.15))
	require.NoError(t, err)
	assert.Equal(t, []int{2025}, res.Created)
	assert.Equal(t, []int{2030}, res.Reconciled)
	assert.Equal(t, []int{2025, 2030}, res.Touched)

	code := f.wallCode(t, 2030)
	assert.Equal(t, "Wall_STANDARD1_YEAR_2030_2", code)
	assert.Equal(t, "0.15", f.cell(t, 2030, locator.EnvelopeWall, materialize.CodeIndex, code, "thickness_1_m"))
	assert.Equal(t, "brick", f.cell(t, 2030, locator.EnvelopeWall, materialize.CodeIndex, code, "material_name_1"))
	assert.Equal(t, "0.1", f.cell(t, 2020, locator.EnvelopeWall, materialize.CodeIndex, f.wallCode(t, 2020), "thickness_1_m"))

	log, err := f.tl.Log()
	require.NoError(t, err)
	assert.Equal(t, []int{2020, 2025, 2030}, log.Years())
	assert.True(t, log[2030].Modifications.IsEmpty())
	require.Len(t, log[2030].Reconciliations, 2)
	assert.Equal(t, 2025, log[2030].Reconciliations[1].TriggerYear)

	report, err := f.tl.Check(integrity.Comprehensive)
	require.NoError(t, err)
	assert.True(t, report.OK(), "%+v", report)
}

func TestApply_SameRecipeTwiceIsNoOp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tl.Apply(ctx, 2020, wallThickness(0.10))
	require.NoError(t, err)
	before := f.tree(t)

	logInfo, err := os.Stat(f.loc.LogFile())
	require.NoError(t, err)

	res, err := f.tl.Apply(ctx, 2020, wallThickness(0.10))
	require.NoError(t, err)
	assert.False(t, res.Modified)
	assert.Empty(t, res.Created)
	assert.Empty(t, res.Touched)

	assert.Equal(t, before, f.tree(t))
	after, err := os.Stat(f.loc.LogFile())
	require.NoError(t, err)
	assert.True(t, os.SameFile(logInfo, after), "event log was rewritten")
}

// A delta equal to what a year already holds is not logged, so it cannot
// shadow later edits of an earlier year.
func TestApply_NoOpDeltaDoesNotBlockEarlierEdits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.tl.Apply(ctx, 2025, wallThickness(0.3))
	require.NoError(t, err)
	assert.Equal(t, []int{2025}, res.Created)
	assert.False(t, res.Modified)
	assert.Equal(t, "WALL_AS1", f.wallCode(t, 2025))

	log, err := f.tl.Log()
	require.NoError(t, err)
	require.True(t, log.Has(2025))
	assert.True(t, log[2025].Modifications.IsEmpty())
	assert.Empty(t, log[2025].LatestModifiedAt)

	res, err = f.tl.Apply(ctx, 2020, wallThickness(0.15))
	require.NoError(t, err)
	assert.Equal(t, []int{2025}, res.Reconciled)
	assert.Equal(t, "0.15", f.cell(t, 2025, locator.EnvelopeWall, materialize.CodeIndex, f.wallCode(t, 2025), "thickness_1_m"))

	report, err := f.tl.Check(integrity.Comprehensive)
	require.NoError(t, err)
	assert.True(t, report.OK(), "%+v", report)
}

func TestApply_RejectsBeforeMutation(t *testing.T) {
	tests := []struct {
		name  string
		year  int
		r     recipe.Recipe
		check func(error) bool
	}{
		{"empty recipe", 2020, recipe.Recipe{}, errs.IsValidation},
		{"only keep leaves", 2020, recipe.NewBuilder().Keep("STANDARD1", "wall", "U").Build(), errs.IsValidation},
		{"year zero", 0, wallThickness(0.1), errs.IsValidation},
		{"year too large", 10000, wallThickness(0.1), errs.IsValidation},
		{"unknown archetype", 2020, recipe.NewBuilder().Set("GHOST", "wall", "U", recipe.Number(1)).Build(), errs.IsNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			_, err := f.tl.Apply(context.Background(), tt.year, tt.r)
			require.Error(t, err)
			assert.True(t, tt.check(err), "got %v", err)
			assert.Empty(t, f.tree(t))
			assert.NoDirExists(t, f.loc.StateDir(tt.year))
		})
	}
}

func TestApply_UnknownArchetypeNamesEveryKey(t *testing.T) {
	f := newFixture(t)
	r := recipe.NewBuilder().
		Set("GHOST", "wall", "U", recipe.Number(1)).
		Set("PHANTOM", "roof", "U", recipe.Number(1)).
		Build()

	_, err := f.tl.Apply(context.Background(), 2020, r)

	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, []string{"GHOST", "PHANTOM"}, e.Keys)
}

func TestApply_PreflightRejectsUnloggedFolder(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.MkdirAll(f.loc.StateDir(2040), 0o755))

	_, err := f.tl.Apply(context.Background(), 2020, wallThickness(0.1))
	require.True(t, errs.IsIntegrity(err), "got %v", err)
	assert.Contains(t, err.Error(), "on disk only: [2040]")
	assert.NoDirExists(t, f.loc.StateDir(2020))
}

func TestApply_RollsBackAtEveryStage(t *testing.T) {
	for _, stage := range ForwardStages {
		t.Run(stage.String(), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			_, err := f.tl.Apply(ctx, 2020, wallThickness(0.10))
			require.NoError(t, err)
			_, err = f.tl.CreateYear(ctx, 2030)
			require.NoError(t, err)
			before := f.tree(t)

			f.failAt = stage
			_, err = f.tl.Apply(ctx, 2025, wallThickness(0.15))
			require.ErrorIs(t, err, errInjected)

			assert.Equal(t, before, f.tree(t))
			assert.NoDirExists(t, f.loc.StateDir(2025))

			history, err := f.tl.History(ctx, 10)
			require.NoError(t, err)
			require.Len(t, history, 3)
			last := history[2]
			assert.Equal(t, "tx-0003", last.ID)
			assert.Equal(t, journal.StatusFailed, last.Status)
			assert.Equal(t, StageFailed.String(), last.Stage)
			assert.Contains(t, last.Error, "injected failure")

			// The timeline is still usable.
			f.failAt = -1
			_, err = f.tl.Apply(ctx, 2025, wallThickness(0.15))
			require.NoError(t, err)
		})
	}
}

func TestApply_RollsBackOnPanic(t *testing.T) {
	f := newFixture(t, WithStageHook(func(s Stage) error {
		if s == StageApplyingDelta {
			panic("boom")
		}
		return nil
	}))
	before := f.tree(t)

	assert.Panics(t, func() {
		_, _ = f.tl.Apply(context.Background(), 2020, wallThickness(0.10))
	})
	assert.Equal(t, before, f.tree(t))
	assert.NoDirExists(t, f.loc.StateDir(2020))

	history, err := f.tl.History(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, journal.StatusFailed, history[0].Status)
}

func TestApply_CanceledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.tl.Apply(ctx, 2020, wallThickness(0.10))
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoDirExists(t, f.loc.StateDir(2020))
}

func TestApplyChanges(t *testing.T) {
	f := newFixture(t)
	store := f.tl.Changes()
	_, err := store.Put(changes.Change{Name: "insulate_walls", Modifications: wallThickness(0.2)})
	require.NoError(t, err)
	_, err = store.Put(changes.Change{Name: "better_windows", Modifications: recipe.NewBuilder().
		Set("STANDARD1", "window", "U_win", recipe.Number(0.9)).Build()})
	require.NoError(t, err)
	_, err = store.Put(changes.Change{Name: "thicker_walls", Modifications: wallThickness(0.4)})
	require.NoError(t, err)

	res, err := f.tl.ApplyChanges(context.Background(), 2020, []string{"insulate_walls", "better_windows"})
	require.NoError(t, err)
	assert.Equal(t, []string{"insulate_walls", "better_windows"}, res.Changes)
	assert.Equal(t, "0.2", f.cell(t, 2020, locator.EnvelopeWall, materialize.CodeIndex, f.wallCode(t, 2020), "thickness_1_m"))
	win := f.cell(t, 2020, locator.ConstructionTypes, materialize.ArchetypeIndex, "STANDARD1", "type_win")
	assert.Equal(t, "Window_STANDARD1_YEAR_2020", win)
	assert.Equal(t, "0.9", f.cell(t, 2020, locator.EnvelopeWindow, materialize.CodeIndex, win, "U_win"))

	before := f.tree(t)
	_, err = f.tl.ApplyChanges(context.Background(), 2025, []string{"insulate_walls", "thicker_walls"})
	require.True(t, errs.IsConflict(err), "got %v", err)
	assert.Contains(t, err.Error(), "STANDARD1.wall.thickness_1_m")
	assert.Equal(t, before, f.tree(t))

	_, err = f.tl.ApplyChanges(context.Background(), 2025, []string{"nope"})
	assert.True(t, errs.IsNotFound(err), "got %v", err)
}

func TestCreateYear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.tl.CreateYear(ctx, 2025)
	require.NoError(t, err)
	assert.Equal(t, []int{2025}, res.Created)
	assert.False(t, res.Modified)
	assert.Equal(t, "WALL_AS1", f.wallCode(t, 2025))

	log, err := f.tl.Log()
	require.NoError(t, err)
	assert.True(t, log[2025].Modifications.IsEmpty())

	_, err = f.tl.CreateYear(ctx, 2025)
	assert.True(t, errs.IsValidation(err), "got %v", err)
}

func TestRemoveYear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.tl.Apply(ctx, 2020, wallThickness(0.10))
	require.NoError(t, err)
	_, err = f.tl.CreateYear(ctx, 2030)
	require.NoError(t, err)

	_, err = f.tl.RemoveYear(ctx, 2020)
	require.NoError(t, err)
	assert.NoDirExists(t, f.loc.StateDir(2020))
	log, err := f.tl.Log()
	require.NoError(t, err)
	assert.Equal(t, []int{2030}, log.Years())

	// 2030 keeps what it inherited until the timeline is baked.
	assert.Equal(t, "0.1", f.cell(t, 2030, locator.EnvelopeWall, materialize.CodeIndex, f.wallCode(t, 2030), "thickness_1_m"))

	_, err = f.tl.RemoveYear(ctx, 2050)
	assert.True(t, errs.IsNotFound(err), "got %v", err)
}

func TestReconcile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.tl.Apply(ctx, 2020, wallThickness(0.10))
	require.NoError(t, err)
	_, err = f.tl.CreateYear(ctx, 2030)
	require.NoError(t, err)

	before := f.tree(t)
	logInfo, err := os.Stat(f.loc.LogFile())
	require.NoError(t, err)

	res, err := f.tl.Reconcile(ctx, 2020)
	require.NoError(t, err)
	assert.Empty(t, res.Reconciled)
	assert.Empty(t, res.Touched)
	assert.Equal(t, before, f.tree(t))
	after, err := os.Stat(f.loc.LogFile())
	require.NoError(t, err)
	assert.True(t, os.SameFile(logInfo, after), "event log was rewritten")

	// Point 2030 back at the baseline wall behind the timeline's back.
	path := f.loc.State(2030, locator.ConstructionTypes)
	types, err := table.CSV{}.ReadTable(path, materialize.ArchetypeIndex)
	require.NoError(t, err)
	require.NoError(t, types.Set("STANDARD1", "type_wall", "WALL_AS1"))
	require.NoError(t, table.CSV{}.WriteTable(path, types))

	report, err := f.tl.Check(integrity.Comprehensive)
	require.NoError(t, err)
	assert.False(t, report.OK())

	res, err = f.tl.Reconcile(ctx, 2020)
	require.NoError(t, err)
	assert.Equal(t, []int{2030}, res.Reconciled)
	report, err = f.tl.Check(integrity.Comprehensive)
	require.NoError(t, err)
	assert.True(t, report.OK(), "%+v", report)

	_, err = f.tl.Reconcile(ctx, 2050)
	assert.True(t, errs.IsNotFound(err), "got %v", err)
}

func TestEnsureRequiredYears(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.tl.Apply(ctx, 2020, wallThickness(0.10))
	require.NoError(t, err)

	res, err := f.tl.EnsureRequiredYears(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1980, 1990, 2000, 2022}, res.Created)

	log, err := f.tl.Log()
	require.NoError(t, err)
	assert.Equal(t, []int{1980, 1990, 2000, 2020, 2022}, log.Years())
	assert.Equal(t, []string{"B1004"}, log[1980].BuildingEvents.NewBuildings)
	assert.Equal(t, []string{"B1001"}, log[1990].BuildingEvents.NewBuildings)
	assert.Equal(t, []string{"B1003"}, log[2022].BuildingEvents.NewBuildings)

	// 2022 follows the 2020 edit.
	assert.Equal(t, "0.1", f.cell(t, 2022, locator.EnvelopeWall, materialize.CodeIndex, f.wallCode(t, 2022), "thickness_1_m"))
	assert.Equal(t, "WALL_AS1", f.wallCode(t, 2000))

	res, err = f.tl.EnsureRequiredYears(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Created)
}

func TestEnsureRequiredYears_RecreatesMissingLoggedYear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.tl.Apply(ctx, 2020, wallThickness(0.10))
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(f.loc.StateDir(2020)))

	res, err := f.tl.EnsureRequiredYears(ctx)
	require.NoError(t, err)
	assert.Contains(t, res.Created, 2020)
	assert.Equal(t, "0.1", f.cell(t, 2020, locator.EnvelopeWall, materialize.CodeIndex, f.wallCode(t, 2020), "thickness_1_m"))
}

func TestBake_Reproducible(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.tl.Apply(ctx, 2020, wallThickness(0.10))
	require.NoError(t, err)
	_, err = f.tl.CreateYear(ctx, 2030)
	require.NoError(t, err)
	_, err = f.tl.Apply(ctx, 2025, wallThickness(0.15))
	require.NoError(t, err)
	require.Equal(t, "Wall_STANDARD1_YEAR_2030_2", f.wallCode(t, 2030))

	_, err = f.tl.Bake(ctx)
	require.NoError(t, err)
	// A fresh build forks each year once.
	assert.Equal(t, "Wall_STANDARD1_YEAR_2030", f.wallCode(t, 2030))
	assert.Equal(t, "0.15", f.cell(t, 2030, locator.EnvelopeWall, materialize.CodeIndex, "Wall_STANDARD1_YEAR_2030", "thickness_1_m"))
	first := stateTables(t, f)

	_, err = f.tl.Bake(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, stateTables(t, f))

	report, err := f.tl.Check(integrity.Comprehensive)
	require.NoError(t, err)
	assert.True(t, report.OK(), "%+v", report)
}

func TestBake_EmptyTimelineBuildsBaselineYears(t *testing.T) {
	f := newFixture(t)

	res, err := f.tl.Bake(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1980, 1990, 2000, 2022}, res.Touched)
	assert.False(t, res.Modified)
}

// stateTables returns every state folder file except the signature
// sidecars, whose timestamps change on every build.
func stateTables(t *testing.T, f *fixture) map[string]string {
	t.Helper()
	files := f.tree(t)
	for k := range files {
		if strings.HasSuffix(k, ".district_timeline_signature.json") || !strings.HasPrefix(k, "state_") {
			delete(files, k)
		}
	}
	return files
}

func TestSignatures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.tl.Apply(ctx, 2020, wallThickness(0.10))
	require.NoError(t, err)

	rec, err := f.tl.Signature(2020)
	require.NoError(t, err)
	require.NotNil(t, rec)
	log, err := f.tl.Log()
	require.NoError(t, err)
	want, err := ExpectedSignature(log, 2020)
	require.NoError(t, err)
	assert.Equal(t, want, rec.AppliedSignature)
	assert.Equal(t, StatusNeedsSimulation, rec.SimulationStatus)
	assert.True(t, rec.NeedsSimulation())

	rec, err = f.tl.MarkSimulated(2020)
	require.NoError(t, err)
	assert.Equal(t, StatusSimulated, rec.SimulationStatus)
	assert.False(t, rec.NeedsSimulation())

	// Reapplying the same recipe keeps the simulation current.
	_, err = f.tl.Apply(ctx, 2020, wallThickness(0.10))
	require.NoError(t, err)
	rec, err = f.tl.Signature(2020)
	require.NoError(t, err)
	assert.False(t, rec.NeedsSimulation())

	_, err = f.tl.Apply(ctx, 2020, wallThickness(0.12))
	require.NoError(t, err)
	rec, err = f.tl.Signature(2020)
	require.NoError(t, err)
	assert.True(t, rec.NeedsSimulation())
	assert.NotEqual(t, want, rec.AppliedSignature)

	_, err = f.tl.MarkSimulated(2040)
	assert.True(t, errs.IsNotFound(err), "got %v", err)
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.tl.Apply(ctx, 2020, wallThickness(0.10))
	require.NoError(t, err)
	_, err = f.tl.CreateYear(ctx, 2030)
	require.NoError(t, err)

	statuses, err := f.tl.Status()
	require.NoError(t, err)
	years := make([]int, len(statuses))
	for i, s := range statuses {
		years[i] = s.Year
	}
	assert.Equal(t, []int{1980, 1990, 2000, 2020, 2022, 2030}, years)

	s2020 := statuses[3]
	assert.True(t, s2020.OnDisk)
	assert.True(t, s2020.InLog)
	assert.True(t, s2020.Required)
	assert.Equal(t, 1, s2020.Modifications)
	assert.False(t, s2020.Stale)
	assert.True(t, s2020.NeedsSimulation)
	assert.Equal(t, s2020.ExpectedSignature, s2020.AppliedSignature)

	s2030 := statuses[5]
	assert.Equal(t, 0, s2030.Modifications)
	assert.Equal(t, 1, s2030.Reconciliations)

	s1980 := statuses[0]
	assert.False(t, s1980.OnDisk)
	assert.False(t, s1980.InLog)
	assert.True(t, s1980.Required)
}

func TestHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.tl.Apply(ctx, 2020, wallThickness(0.10))
	require.NoError(t, err)
	_, err = f.tl.CreateYear(ctx, 2030)
	require.NoError(t, err)

	history, err := f.tl.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "tx-0001", history[0].ID)
	assert.Equal(t, "apply", history[0].Operation)
	assert.Equal(t, 2020, history[0].Year)
	assert.Equal(t, journal.StatusCommitted, history[0].Status)
	assert.Equal(t, StageCommitted.String(), history[0].Stage)
	assert.Equal(t, []int{2020}, history[0].YearsTouched)
	assert.Equal(t, "create-year", history[1].Operation)
}

func TestJournalDisabled(t *testing.T) {
	f := newFixture(t, WithJournal(false))

	_, err := f.tl.Apply(context.Background(), 2020, wallThickness(0.10))
	require.NoError(t, err)
	assert.NoFileExists(t, f.loc.JournalFile())

	_, err = f.tl.History(context.Background(), 10)
	assert.True(t, errs.IsNotFound(err), "got %v", err)
}

func TestStage_String(t *testing.T) {
	assert.Equal(t, "PROPAGATING_FORWARD", StagePropagatingForward.String())
	assert.Equal(t, "UNKNOWN", Stage(42).String())
}

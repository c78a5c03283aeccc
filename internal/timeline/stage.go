package timeline

// Stage is a step of the transaction state machine.
type Stage int

const (
	StageIdle Stage = iota
	StageSnapshotting
	StageMaterializingYear
	StageApplyingDelta
	StagePropagatingForward
	StageSyncingDerivedProperties
	StagePersistingLog
	StageVerifying
	StageCommitted
	StageRollingBack
	StageFailed
)

var stageNames = [...]string{
	StageIdle:                     "IDLE",
	StageSnapshotting:             "SNAPSHOTTING",
	StageMaterializingYear:        "MATERIALIZING_YEAR",
	StageApplyingDelta:            "APPLYING_DELTA",
	StagePropagatingForward:       "PROPAGATING_FORWARD",
	StageSyncingDerivedProperties: "SYNCING_DERIVED_PROPERTIES",
	StagePersistingLog:            "PERSISTING_LOG",
	StageVerifying:                "VERIFYING",
	StageCommitted:                "COMMITTED",
	StageRollingBack:              "ROLLING_BACK",
	StageFailed:                   "FAILED",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "UNKNOWN"
	}
	return stageNames[s]
}

// ForwardStages lists the stages a successful transaction passes through,
// in order. A StageHook is called on entering each of them.
var ForwardStages = []Stage{
	StageSnapshotting,
	StageMaterializingYear,
	StageApplyingDelta,
	StagePropagatingForward,
	StageSyncingDerivedProperties,
	StagePersistingLog,
	StageVerifying,
}

// StageHook is called on entering each forward stage. A non-nil error
// fails the transaction at that stage.
type StageHook func(Stage) error

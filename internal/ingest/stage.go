package ingest

// Stage is a step of the ingestion state machine:
//
//	RECEIVED -> VALIDATED -> STORED -> LINKED -> RECORDED -> DONE
//
// Any step may end in FAILED. Failures after STORED remove the stored blob.
type Stage string

const (
	StageReceived  Stage = "RECEIVED"
	StageValidated Stage = "VALIDATED"
	StageStored    Stage = "STORED"
	StageLinked    Stage = "LINKED"
	StageRecorded  Stage = "RECORDED"
	StageDone      Stage = "DONE"
	StageFailed    Stage = "FAILED"
)

// holdsBlob reports whether a failure at s leaves a blob behind.
func (s Stage) holdsBlob() bool {
	switch s {
	case StageStored, StageLinked:
		return true
	default:
		return false
	}
}

package pipeline

// Stage is a step of a pipeline run
type Stage int

const (
	StageResolvingRef Stage = iota
	StageUploadingBlobs
	StageAwaitingBlobs
	StageBuildingTree
	StageCreatingCommit
	StageAdvancingRef
	StageDone
	StageFailed
)

var stageNames = map[Stage]string{
	StageResolvingRef:   "resolving ref",
	StageUploadingBlobs: "uploading blobs",
	StageAwaitingBlobs:  "awaiting blobs",
	StageBuildingTree:   "building tree",
	StageCreatingCommit: "creating commit",
	StageAdvancingRef:   "advancing ref",
	StageDone:           "done",
	StageFailed:         "failed",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "unknown"
}

// StageObserver is told about every stage a pipeline operation enters
type StageObserver func(op string, stage Stage)

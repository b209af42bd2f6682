package compositor

// Stage is a step of a single render.
//
//	Idle -> LoadingBackground -> Painting -> Done
//	LoadingBackground -> Failed
//
// Video backgrounds go straight from Idle to Painting.
type Stage int

const (
	StageIdle Stage = iota
	StageLoadingBackground
	StagePainting
	StageDone
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageLoadingBackground:
		return "loading-background"
	case StagePainting:
		return "painting"
	case StageDone:
		return "done"
	case StageFailed:
		return "failed"
	default:
		return "stage?"
	}
}

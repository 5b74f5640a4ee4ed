package tasks

// Stage names a step of an enrichment request. It is attached to log entries.
type Stage int

const (
	StageResolve Stage = iota
	StageFacts
	StageSimilar
	StageTopTracks
	StageTopAlbums
	StageCrossEnrich
	StageCharts
)

func (s Stage) String() string {
	switch s {
	case StageResolve:
		return "resolve"
	case StageFacts:
		return "facts"
	case StageSimilar:
		return "similar"
	case StageTopTracks:
		return "top_tracks"
	case StageTopAlbums:
		return "top_albums"
	case StageCrossEnrich:
		return "cross_enrich"
	case StageCharts:
		return "charts"
	default:
		return ""
	}
}

// FactsStatus tells apart "nothing known" from "lookup failed". Callers see the same
// entity either way.
type FactsStatus int

const (
	FactsOK FactsStatus = iota
	FactsEmpty
	FactsFailed
)

func (s FactsStatus) String() string {
	switch s {
	case FactsOK:
		return "ok"
	case FactsEmpty:
		return "empty"
	case FactsFailed:
		return "failed"
	default:
		return ""
	}
}

package memory

// Confidence trend labels derived from recent history.
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
)

// trendWindow is the number of trailing history entries inspected.
const trendWindow = 3

// trendDeadBand absorbs jitter; moves smaller than this are "stable".
const trendDeadBand = 0.05

// disputedDiscount is applied to the effective confidence of disputed records.
const disputedDiscount = 0.5

// AuditEntry is the JSON-serializable export of a record's provenance state.
type AuditEntry struct {
	MemoryID            string  `json:"memory_id"`
	Content             string  `json:"content"`
	ValidationStatus    string  `json:"validation_status"`
	ConfidenceTrend     string  `json:"confidence_trend"`
	EffectiveConfidence float64 `json:"effective_confidence"`
	HistoryLength       int     `json:"history_length"`
}

// Audit derives the exportable provenance view of the record.
func (r *Record) Audit() AuditEntry {
	return AuditEntry{
		MemoryID:            r.MemoryID,
		Content:             r.Content,
		ValidationStatus:    string(r.Status),
		ConfidenceTrend:     r.Trend(),
		EffectiveConfidence: r.EffectiveConfidence(),
		HistoryLength:       len(r.History),
	}
}

// EffectiveConfidence is the current score, discounted when disputed.
func (r *Record) EffectiveConfidence() float64 {
	if r.Status == StatusDisputed {
		return r.Confidence * disputedDiscount
	}
	return r.Confidence
}

// Trend compares the first and last of the trailing history entries.
func (r *Record) Trend() string {
	n := len(r.History)
	if n < 2 {
		return TrendStable
	}
	start := n - trendWindow
	if start < 0 {
		start = 0
	}
	delta := r.History[n-1].Score - r.History[start].Score
	switch {
	case delta > trendDeadBand:
		return TrendIncreasing
	case delta < -trendDeadBand:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

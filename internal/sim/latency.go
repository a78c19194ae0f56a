package sim

// LatencyModel delays order visibility by whole tape events. Both counts
// are event ticks, never wall clock, which keeps replays deterministic.
type LatencyModel struct {
	SubmitTicks int64 `json:"submit_ticks"`
	CancelTicks int64 `json:"cancel_ticks"`
}

// EffectiveSeq returns the soonest tape position at which an order
// submitted at submitSeq becomes eligible for fills.
func (l LatencyModel) EffectiveSeq(submitSeq int64) int64 {
	return submitSeq + l.SubmitTicks
}

// CancelEffectiveSeq returns the tape position at which a cancel requested
// at cancelSeq takes effect.
func (l LatencyModel) CancelEffectiveSeq(cancelSeq int64) int64 {
	return cancelSeq + l.CancelTicks
}

// ZeroLatency is the on-demand session's model: orders are eligible at the
// seq they were submitted at.
var ZeroLatency = LatencyModel{SubmitTicks: 0, CancelTicks: 0}

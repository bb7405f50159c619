package models

import "fmt"

// SamplingRecord is one river of an observation-sampling schedule
type SamplingRecord struct {
	RivID int64
	Count int
	Times []int64
}

// Validate checks that the declared count matches the listed times
func (r SamplingRecord) Validate() error {
	if r.Count < 0 {
		return &ValidationError{
			Field:   "count",
			Value:   fmt.Sprintf("%d", r.Count),
			Message: fmt.Sprintf("river %d has a negative sample count %d", r.RivID, r.Count),
		}
	}
	if len(r.Times) != r.Count {
		return &ValidationError{
			Field:   "times",
			Value:   fmt.Sprintf("%d", len(r.Times)),
			Message: fmt.Sprintf("river %d declares %d samples but lists %d times", r.RivID, r.Count, len(r.Times)),
		}
	}
	return nil
}

// CollapseTo returns the single-sample record at time t, and false for rivers
// that were never sampled.
func (r SamplingRecord) CollapseTo(t int64) (SamplingRecord, bool) {
	if r.Count == 0 {
		return SamplingRecord{}, false
	}
	return SamplingRecord{RivID: r.RivID, Count: 1, Times: []int64{t}}, true
}

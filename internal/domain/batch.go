package domain

import "time"

// TransformRequest is a request to transform points between two CRS.
type TransformRequest struct {
	Source string   // Source CRS code
	Target string   // Target CRS code
	Points []Point3 // Points in the source CRS
}

// TransformResponse holds the result of a TransformRequest.
type TransformResponse struct {
	Source         string         `json:"source"`
	Target         string         `json:"target"`
	Points         []Point3       `json:"points"`
	Failed         map[int]string `json:"failed,omitempty"`
	Chain          string         `json:"chain"`
	ProcessingTime time.Duration  `json:"processing_time_ns"`
}

// HasFailures returns true if at least one point failed.
func (r *TransformResponse) HasFailures() bool {
	return len(r.Failed) > 0
}

// PointResult is the outcome for a single point of a batch.
type PointResult struct {
	Index  int    `json:"index"`
	Input  Point3 `json:"input"`
	Output Point3 `json:"output"`
	Error  string `json:"error,omitempty"`
}

// BatchResult is the outcome of transforming one batch file.
type BatchResult struct {
	Name        string        `json:"name"`
	Source      string        `json:"source"`
	Target      string        `json:"target"`
	Results     []PointResult `json:"results"`
	Failed      int           `json:"failed"`
	ProcessedAt time.Time     `json:"processed_at"`
	Duration    time.Duration `json:"duration_ns"`
}

// Succeeded returns the number of points transformed without error.
func (r *BatchResult) Succeeded() int {
	return len(r.Results) - r.Failed
}

// NewBatchResult pairs inputs with outputs and the per-point errors.
func NewBatchResult(name, source, target string, in, out []Point3, failed map[int]string) *BatchResult {
	r := &BatchResult{
		Name:        name,
		Source:      source,
		Target:      target,
		Results:     make([]PointResult, len(in)),
		ProcessedAt: time.Now(),
	}
	for i := range in {
		pr := PointResult{Index: i, Input: in[i], Output: in[i]}
		if i < len(out) {
			pr.Output = out[i]
		}
		if msg, ok := failed[i]; ok {
			pr.Error = msg
			r.Failed++
		}
		r.Results[i] = pr
	}
	return r
}

// BatchSummary summarizes a run over several batch files.
type BatchSummary struct {
	Files        int       `json:"files"`
	FilesFailed  int       `json:"files_failed"`
	Points       int       `json:"points"`
	PointsFailed int       `json:"points_failed"`
	CompletedAt  time.Time `json:"completed_at"`
}

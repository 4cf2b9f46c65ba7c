package model

// ProgressEvent reports model loading progress. Progress is a fraction in
// [0,1]; Completed and Total carry absolute byte counts when the runtime
// provides them.
type ProgressEvent struct {
	Stage     string  `json:"stage"`
	Progress  float64 `json:"progress"`
	Completed int64   `json:"completed,omitempty"`
	Total     int64   `json:"total,omitempty"`
}

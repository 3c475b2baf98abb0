package domain

// ResultStatus is the outcome recorded on a Result.
type ResultStatus string

// Possible result status values
const (
	ResultStatusSuccess ResultStatus = "SUCCESS"
	ResultStatusFailed  ResultStatus = "FAILED"
)

// Keys of Result.ProcessingStats.
const (
	StatChunkCount    = "chunk_count"
	StatFailedChunks  = "failed_chunks"
	StatReconciled    = "reconciled"
	StatQualityStatus = "quality_status"
	StatProcessingMS  = "processing_ms"
	StatRetryCount    = "retry_count"
	StatPath          = "path"
)

// Result is the outcome of one analysis. It is stored independently of the
// Job that produced it, so it may exist without one, and is never modified
// after it is written.
type Result struct {
	RecordID        string         `json:"record_id"`
	Status          ResultStatus   `json:"status"`
	AnalysisResult  string         `json:"analysis_result"`
	AnalysisName    string         `json:"analysis_name"`
	ErrorMessage    string         `json:"error_message,omitempty"`
	ProcessingStats map[string]any `json:"processing_stats,omitempty"`
}

// NewFailedResult builds a FAILED result carrying a readable error message.
func NewFailedResult(recordID, message string, stats map[string]any) *Result {
	return &Result{
		RecordID:        recordID,
		Status:          ResultStatusFailed,
		AnalysisName:    "Processing Error",
		ErrorMessage:    message,
		ProcessingStats: stats,
	}
}

// Succeeded reports whether the result status is SUCCESS.
func (r *Result) Succeeded() bool {
	return r.Status == ResultStatusSuccess
}

package assessment

// Upload stages, in the order they run.
const (
	StepExtractText       = "extract_text"
	StepParseExperience   = "parse_experience"
	StepGenerateQuestions = "generate_questions"
	StepSaveReport        = "save_report"
)

// Stage categories.
const (
	CategoryIngestion  = "ingestion"
	CategoryGeneration = "generation"
	CategoryStorage    = "storage"
)

// UploadSteps lists every upload stage in order.
var UploadSteps = []string{StepExtractText, StepParseExperience, StepGenerateQuestions, StepSaveReport}

// ProgressEvent represents a progress update during an upload
type ProgressEvent struct {
	Step      string `json:"step"`
	Category  string `json:"category"`
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
	Content   any    `json:"content,omitempty"`
}

// ProgressFunc is called after each upload stage completes
type ProgressFunc func(event ProgressEvent)

func (req *UploadRequest) emit(step, category, message string, content any) {
	if req.OnProgress != nil {
		req.OnProgress(ProgressEvent{
			Step:      step,
			Category:  category,
			Message:   message,
			SessionID: req.SessionID,
			Content:   content,
		})
	}
}

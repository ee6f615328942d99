package stage

// StageRequest is the pipeline input
type StageRequest struct {
	SessionID string
	Kind      string
	// Source is a local path or an s3:// URI
	Source string
	// ImageName is the file name the image gets in the staging directory
	ImageName string
	HasHeader bool
}

// StageResponse is the pipeline output (accumulated across transitions)
type StageResponse struct {
	// From CheckSource
	Status string

	// From Fetch
	FetchPath string
	SHA256    string
	Size      int64

	// From Validate
	ImageVersion string

	// From Stage
	StagedPath string

	ErrorMessage string
}

// State names
const (
	StateCheckSource = "check_source"
	StateFetch       = "fetch"
	StateValidate    = "validate"
	StateStage       = "stage"
	StateComplete    = "complete"
	StateFailed      = "failed"
)

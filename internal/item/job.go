package item

// JobStatus tracks a generation job's lifecycle.
type JobStatus string

const (
	JobCreated   JobStatus = "created"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobError     JobStatus = "error"
)

// Job owns a batch of generated items. Topics are the question seeds the
// batch fans out over; Documents optionally restrict retrieval to a subset
// of the corpus.
type Job struct {
	ID            string    `json:"job_id"`
	Name          string    `json:"job_name"`
	Topics        []string  `json:"topics"`
	Documents     []string  `json:"documents,omitempty"`
	Status        JobStatus `json:"status"`
	TotalExpected int       `json:"total_expected"`
	GeneratedCount int      `json:"generated_count"`
	FoundCount    int       `json:"found_count"`
	NotFoundCount int       `json:"not_found_count"`
}

package constants

// JobStatus is the lifecycle state of a queued batch extraction.
type JobStatus string

// Stable values, reported by the batch queue and the gRPC surface.
const (
	JobStatusQueued  JobStatus = "QUEUED"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusDone    JobStatus = "DONE"
	JobStatusFailed  JobStatus = "FAILED"
)

// Language codes with a special meaning in TranslatableField.
const (
	LanguageEnglish = "en"
	LanguageNone    = "none"    // non-text value, never sent to the model
	LanguageUnknown = "unknown" // detection or translation call failed
)

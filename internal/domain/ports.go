package domain

import "time"

// JobPatch is a partial update applied through optimistic locking. Nil fields
// are left untouched; RetryCountDelta is added to the stored counter.
type JobPatch struct {
	Status                *JobStatus
	Error                 *string
	Result                *EvaluationResult
	RetryCountDelta       int
	ProcessingStartedAt   *time.Time
	ProcessingCompletedAt *time.Time
}

// ListFilter narrows and pages List results.
type ListFilter struct {
	Status *JobStatus
	Page   int
	Limit  int
}

// Page is pagination metadata returned alongside a job listing.
type Page struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

// JobStore is the authoritative, concurrency-safe persistence of jobs.
type JobStore interface {
	// CreateAtomic upserts by JobID and returns the stored record; calling it
	// twice with the same JobID yields the same record.
	CreateAtomic(ctx Context, j EvaluationJob) (EvaluationJob, error)
	// Get loads a job by its public JobID without an owner check.
	Get(ctx Context, jobID string) (EvaluationJob, error)
	// UpdateOptimistic applies patch iff the stored version still matches,
	// bumping the version; exhausted retries return ErrConflict.
	UpdateOptimistic(ctx Context, jobID string, expectedVersion int64, patch JobPatch) (EvaluationJob, error)
	// TransitionStatus moves the job through the state machine, stamping
	// processing_started_at / processing_completed_at as appropriate.
	TransitionStatus(ctx Context, jobID string, next JobStatus, patch JobPatch) (EvaluationJob, error)
	Find(ctx Context, jobID, ownerID string) (EvaluationJob, error)
	List(ctx Context, ownerID string, f ListFilter) ([]EvaluationJob, Page, error)
	Cancel(ctx Context, jobID, ownerID string) (EvaluationJob, error)
	// ListStale returns jobs in the given status whose last progress timestamp
	// is older than before. Used by the sweeper.
	ListStale(ctx Context, status JobStatus, before time.Time, limit int) ([]EvaluationJob, error)
}

// DocumentProvider reads extracted documents owned by the upload subsystem.
type DocumentProvider interface {
	GetDocument(ctx Context, docID, ownerID string) (Document, error)
}

// Queue is the durable FIFO the dispatcher feeds and workers drain.
type Queue interface {
	EnqueueEvaluate(ctx Context, payload EvaluateTaskPayload) (string, error)
}

// ChatMessage is one turn of a chat-completion conversation.
type ChatMessage struct {
	Role    string `json:"role"` // system | user | assistant
	Content string `json:"content"`
}

// ChatOptions tune a single chat call. Zero values fall back to configured
// defaults; an invalid Model for the detected provider is substituted.
type ChatOptions struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// ChatUsage is token accounting reported by the backend.
type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResult is a successful chat completion.
type ChatResult struct {
	Content      string
	Model        string
	FinishReason string
	Usage        ChatUsage
}

// Evaluation pairs the raw chat output with a best-effort JSON parse of the
// first balanced object in it. Parsed is nil when no object could be read.
type Evaluation struct {
	Raw    string
	Parsed map[string]any
}

// AIClient is the single point of contact with the LLM backend.
type AIClient interface {
	Chat(ctx Context, messages []ChatMessage, opts ChatOptions) (ChatResult, error)
	// Embed returns one vector per input text. It degrades through the chat
	// endpoint and finally a deterministic hash embedding, so it only fails on
	// cancelled contexts.
	Embed(ctx Context, texts []string) ([][]float32, error)
	Evaluate(ctx Context, systemPrompt, userPrompt string, opts ChatOptions) (Evaluation, error)
}

// SearchQuery is one nearest-neighbour lookup against a collection.
type SearchQuery struct {
	Text       string
	Collection string
	MaxResults int
	Threshold  float64
	// Filter constrains payload fields to exact values, e.g. doc_type.
	Filter map[string]string
}

// Retriever stores and searches reference chunks. Every failure degrades to
// empty results; callers never fail because retrieval did.
type Retriever interface {
	IndexDocument(ctx Context, doc Document, collection string) (int, error)
	Search(ctx Context, q SearchQuery) ([]ReferenceChunk, error)
	Remove(ctx Context, docID, collection string) error
}

package model

import (
	"encoding/json"
	"time"
)

type JobKind string

const (
	JobContentGeneration JobKind = "content_generation"
	JobImageGeneration   JobKind = "image_generation"
)

func (k JobKind) Valid() bool { return k == JobContentGeneration || k == JobImageGeneration }

// EstimatedSeconds is the hint returned on submit.
func (k JobKind) EstimatedSeconds() int {
	if k == JobImageGeneration {
		return 60
	}
	return 30
}

type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobTimedOut   JobStatus = "timed_out"
)

func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobTimedOut
}

// Job is an immutable snapshot of a background job. A new value is published on every change.
type Job struct {
	ID          string          `json:"job_id"`
	Kind        JobKind         `json:"kind"`
	UserID      string          `json:"-"`
	Status      JobStatus       `json:"status"`
	Progress    int             `json:"progress"`
	CurrentStep string          `json:"current_step"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	FinishedAt  *time.Time      `json:"finished_at,omitempty"`
}

// ContentGenerationInput asks for one draft per platform from an article.
type ContentGenerationInput struct {
	ArticleTitle   string     `json:"article_title"`
	ArticleURL     string     `json:"article_url"`
	ArticleSummary string     `json:"article_summary"`
	Platforms      []Platform `json:"platforms"`
	Tone           string     `json:"tone,omitempty"`
}

type ContentGenerationResult struct {
	Drafts map[Platform]string `json:"drafts"`
}

type ImageGenerationInput struct {
	Prompt string `json:"prompt"`
	Size   string `json:"size,omitempty"`
}

type ImageGenerationResult struct {
	ImageURL      string `json:"image_url"`
	RevisedPrompt string `json:"revised_prompt,omitempty"`
}

package dto

import "encoding/json"

type SubmitJobRequest struct {
	Kind  string          `json:"kind" binding:"required"`
	Input json.RawMessage `json:"input" binding:"required"`
}

type SubmitJobResponse struct {
	JobID            string `json:"job_id"`
	EstimatedSeconds int    `json:"estimated_seconds"`
}

type JobStatusResponse struct {
	JobID       string          `json:"job_id"`
	Kind        string          `json:"kind"`
	Status      string          `json:"status"`
	Progress    int             `json:"progress"`
	CurrentStep string          `json:"current_step"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
}

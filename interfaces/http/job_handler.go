package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/larry311012/ai-news-hub-sub002/domain/dto"
	"github.com/larry311012/ai-news-hub-sub002/domain/model"
	"github.com/larry311012/ai-news-hub-sub002/usecase"
)

type IJobHandler interface {
	Submit(ctx *gin.Context)
	Status(ctx *gin.Context)
}

type jobHandler struct {
	jobs usecase.IJobUsecase
}

func NewJobHandler(jobs usecase.IJobUsecase) IJobHandler {
	return &jobHandler{jobs: jobs}
}

// Submit queues a job and returns at once; clients poll Status.
func (h *jobHandler) Submit(c *gin.Context) {
	var req dto.SubmitJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	kind := model.JobKind(req.Kind)
	job, err := h.jobs.Submit(userID(c), kind, req.Input)
	if err != nil {
		respondError(c, "", err)
		return
	}
	c.JSON(http.StatusAccepted, dto.SubmitJobResponse{JobID: job.ID, EstimatedSeconds: kind.EstimatedSeconds()})
}

func (h *jobHandler) Status(c *gin.Context) {
	job, err := h.jobs.Poll(userID(c), c.Param("job_id"))
	if err != nil {
		respondError(c, "", err)
		return
	}
	c.JSON(http.StatusOK, dto.JobStatusResponse{
		JobID:       job.ID,
		Kind:        string(job.Kind),
		Status:      string(job.Status),
		Progress:    job.Progress,
		CurrentStep: job.CurrentStep,
		Result:      job.Result,
		Error:       job.Error,
	})
}

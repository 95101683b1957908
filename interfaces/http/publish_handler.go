package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/larry311012/ai-news-hub-sub002/domain/dto"
	"github.com/larry311012/ai-news-hub-sub002/domain/model"
	"github.com/larry311012/ai-news-hub-sub002/infrastructure/logger"
	"github.com/larry311012/ai-news-hub-sub002/usecase"
)

const defaultHistoryLimit = 50

type IPublishHandler interface {
	CreatePost(ctx *gin.Context)
	GetPost(ctx *gin.Context)
	Publish(ctx *gin.Context)
	Status(ctx *gin.Context)
	History(ctx *gin.Context)
}

type publishHandler struct {
	publish usecase.IPublishUsecase
}

func NewPublishHandler(publish usecase.IPublishUsecase) IPublishHandler {
	return &publishHandler{publish: publish}
}

func (h *publishHandler) CreatePost(c *gin.Context) {
	var req dto.CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	post, err := h.publish.CreatePost(c.Request.Context(), userID(c), req)
	if err != nil {
		respondError(c, "", err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

func (h *publishHandler) GetPost(c *gin.Context) {
	post, err := h.publish.GetPost(c.Request.Context(), userID(c), c.Param("post_id"))
	if err != nil {
		respondError(c, "", err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// Publish fans out to the requested platforms. A platform failing never fails the request.
func (h *publishHandler) Publish(c *gin.Context) {
	var req dto.PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	platforms := make([]model.Platform, 0, len(req.Platforms))
	for _, s := range req.Platforms {
		p, err := model.ParsePlatform(s)
		if err != nil {
			respondError(c, "", err)
			return
		}
		platforms = append(platforms, p)
	}

	res, err := h.publish.Publish(c.Request.Context(), userID(c), req.PostID, platforms)
	if err != nil {
		respondError(c, "", err)
		return
	}
	out := dto.PublishResponse{PostID: res.PostID, Results: make([]dto.PublishResultItem, 0, len(res.Results))}
	for _, r := range res.Results {
		out.Results = append(out.Results, dto.PublishResultItem{
			Platform: r.Platform.String(),
			Outcome:  string(r.Outcome),
			URL:      r.URL,
			Error:    r.Error,
			Reason:   r.Reason,
		})
	}
	logger.GetLogger().WithFields(map[string]interface{}{
		"post_id":   res.PostID,
		"succeeded": res.Succeeded(),
		"total":     len(res.Results),
	}).Info("Publish finished")
	c.JSON(http.StatusOK, out)
}

func (h *publishHandler) Status(c *gin.Context) {
	records, err := h.publish.Status(c.Request.Context(), userID(c), c.Param("post_id"))
	if err != nil {
		respondError(c, "", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"post_id": c.Param("post_id"), "records": records})
}

func (h *publishHandler) History(c *gin.Context) {
	limit := int64(defaultHistoryLimit)
	if s := c.Query("limit"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, dto.ErrorRes("invalid_input", "limit must be a positive integer"))
			return
		}
		limit = n
	}
	audits, err := h.publish.History(c.Request.Context(), userID(c), c.Param("post_id"), limit)
	if err != nil {
		respondError(c, "", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"post_id": c.Param("post_id"), "history": audits})
}

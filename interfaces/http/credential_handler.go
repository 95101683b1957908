package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/larry311012/ai-news-hub-sub002/domain/dto"
	"github.com/larry311012/ai-news-hub-sub002/usecase"
)

type ICredentialHandler interface {
	Save(ctx *gin.Context)
	List(ctx *gin.Context)
	Delete(ctx *gin.Context)
}

type credentialHandler struct {
	creds usecase.ICredentialUsecase
}

func NewCredentialHandler(creds usecase.ICredentialUsecase) ICredentialHandler {
	return &credentialHandler{creds: creds}
}

func (h *credentialHandler) Save(c *gin.Context) {
	platform, ok := platformParam(c)
	if !ok {
		return
	}
	var req dto.SaveCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	view, err := h.creds.Save(c.Request.Context(), platform, req, userID(c))
	if err != nil {
		respondError(c, platform, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *credentialHandler) List(c *gin.Context) {
	views, err := h.creds.List(c.Request.Context())
	if err != nil {
		respondError(c, "", err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *credentialHandler) Delete(c *gin.Context) {
	platform, ok := platformParam(c)
	if !ok {
		return
	}
	if err := h.creds.Delete(c.Request.Context(), platform); err != nil {
		respondError(c, platform, err)
		return
	}
	c.JSON(http.StatusOK, dto.SuccessResponse{Success: true})
}

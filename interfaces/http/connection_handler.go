package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/larry311012/ai-news-hub-sub002/domain/dto"
	"github.com/larry311012/ai-news-hub-sub002/usecase"
)

type IConnectionHandler interface {
	List(ctx *gin.Context)
	Disconnect(ctx *gin.Context)
}

type connectionHandler struct {
	conns usecase.IConnectionUsecase
}

func NewConnectionHandler(conns usecase.IConnectionUsecase) IConnectionHandler {
	return &connectionHandler{conns: conns}
}

// List shows every supported platform for the caller, connected or not.
func (h *connectionHandler) List(c *gin.Context) {
	views, err := h.conns.List(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, "", err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *connectionHandler) Disconnect(c *gin.Context) {
	platform, ok := platformParam(c)
	if !ok {
		return
	}
	if err := h.conns.Disconnect(c.Request.Context(), userID(c), platform); err != nil {
		respondError(c, platform, err)
		return
	}
	c.JSON(http.StatusOK, dto.SuccessResponse{Success: true})
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SQ-Kust408/poet-1v1-chat-room/internal/knowledge"
	"github.com/SQ-Kust408/poet-1v1-chat-room/internal/transport/http/response"
)

type PoetHandler struct {
	store *knowledge.Store
}

func NewPoetHandler(store *knowledge.Store) *PoetHandler {
	return &PoetHandler{store: store}
}

func (h *PoetHandler) List(c *gin.Context) {
	response.OK(c, h.store.List())
}

func (h *PoetHandler) Detail(c *gin.Context) {
	entry, ok := h.store.Get(c.Param("name"))
	if !ok {
		response.Error(c, http.StatusNotFound, response.CodePoetNotFound, "poet not found")
		return
	}
	response.OK(c, entry.Detail())
}

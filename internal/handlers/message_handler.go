package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/harentsoaR/hospital-api/internal/services"
)

func (h *Handler) SendMessage(c *gin.Context) {
	var in services.MessageInput
	if !h.bind(c, &in) {
		return
	}
	if _, err := h.Messages.Send(c.Request.Context(), in); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Message sent successfully"})
}

func (h *Handler) GetMessages(c *gin.Context) {
	msgs, err := h.Messages.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "messages": msgs})
}

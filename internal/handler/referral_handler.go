package handler

import (
	"net/http"
	"strconv"

	"ledgerpay/internal/service"

	"github.com/gin-gonic/gin"
)

type ReferralHandler struct {
	svc *service.ReferralService
}

func NewReferralHandler(svc *service.ReferralService) *ReferralHandler {
	return &ReferralHandler{svc: svc}
}

// Leaderboard handles GET /referrals/leaderboard?limit=10. Public.
func (h *ReferralHandler) Leaderboard(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	board, err := h.svc.Leaderboard(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load leaderboard"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": board})
}

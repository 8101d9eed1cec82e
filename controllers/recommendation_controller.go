package controllers

import (
	"net/http"

	"github.com/F1H444/si-kalori-sub000/services"

	"github.com/gin-gonic/gin"
)

type RecommendationController struct {
	Svc *services.RecService
}

func NewRecommendationController(svc *services.RecService) *RecommendationController {
	return &RecommendationController{Svc: svc}
}

func (h *RecommendationController) GetRecommendations(c *gin.Context) {
	uid, _ := userIDFromCtx(c)
	recs, err := h.Svc.GetRecs(c.Request.Context(), uid)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recommendations": recs})
}

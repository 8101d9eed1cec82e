package controllers

import (
	"net/http"

	"github.com/F1H444/si-kalori-sub000/services"

	"github.com/gin-gonic/gin"
)

type ContactController struct {
	Svc *services.ContactService
}

func NewContactController(svc *services.ContactService) *ContactController {
	return &ContactController{Svc: svc}
}

type contactInput struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"required,email"`
	Message string `json:"message" binding:"required"`
}

func (h *ContactController) Submit(c *gin.Context) {
	var in contactInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err.Error())
		return
	}
	msg, err := h.Svc.Submit(c.Request.Context(), in.Name, in.Email, in.Message)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "thank you, we will get back to you", "id": msg.ID})
}

package controllers

import (
	"net/http"
	"time"

	"github.com/F1H444/si-kalori-sub000/services"

	"github.com/gin-gonic/gin"
)

type AdminController struct {
	Svc *services.AdminService
	Loc *time.Location
}

func NewAdminController(svc *services.AdminService, loc *time.Location) *AdminController {
	if loc == nil {
		loc = time.Local
	}
	return &AdminController{Svc: svc, Loc: loc}
}

func (h *AdminController) ListUsers(c *gin.Context) {
	out, err := h.Svc.ListUsers(c.Request.Context(), c.Query("search"), queryInt(c, "limit", 50), queryInt(c, "offset", 0))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

type setDisabledInput struct {
	Disabled *bool `json:"disabled" binding:"required"`
}

func (h *AdminController) UpdateUser(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var in setDisabledInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err.Error())
		return
	}
	user, err := h.Svc.SetDisabled(c.Request.Context(), id, *in.Disabled)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// Analytics defaults to the last 30 days.
func (h *AdminController) Analytics(c *gin.Context) {
	now := time.Now().In(h.Loc)
	from, ok := queryDate(c, "from", now.AddDate(0, 0, -29), h.Loc)
	if !ok {
		return
	}
	to, ok := queryDate(c, "to", now, h.Loc)
	if !ok {
		return
	}
	out, err := h.Svc.Analytics(c.Request.Context(), from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

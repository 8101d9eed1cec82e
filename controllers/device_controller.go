package controllers

import (
	"net/http"

	"github.com/F1H444/si-kalori-sub000/services"

	"github.com/gin-gonic/gin"
)

type DeviceController struct {
	Push *services.PushService
	Bus  *services.EventBus
}

func NewDeviceController(ps *services.PushService, bus *services.EventBus) *DeviceController {
	return &DeviceController{Push: ps, Bus: bus}
}

func (dc *DeviceController) Register(c *gin.Context) {
	uid, _ := userIDFromCtx(c)

	var req services.RegisterDeviceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	dev, err := dc.Push.RegisterDevice(c.Request.Context(), uid, req.Platform, req.Token)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"endpoint_arn": dev.EndpointARN})
}

type toggleReq struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// ToggleNotifications serves POST /notifications/toggle for every device of the user.
func (dc *DeviceController) ToggleNotifications(c *gin.Context) {
	uid, _ := userIDFromCtx(c)

	var req toggleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	n, err := dc.Push.SetEnabled(c.Request.Context(), uid, *req.Enabled)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "notifications updated",
		"enabled": *req.Enabled,
		"devices": n,
	})
}

func (dc *DeviceController) ListAlerts(c *gin.Context) {
	uid, _ := userIDFromCtx(c)
	alerts, err := dc.Bus.Recent(c.Request.Context(), uid, queryInt(c, "limit", 20))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

package controllers

import (
	"io"
	"net/http"

	"github.com/F1H444/si-kalori-sub000/services"

	"github.com/gin-gonic/gin"
)

type ScanController struct {
	Svc *services.ScanService
}

func NewScanController(svc *services.ScanService) *ScanController {
	return &ScanController{Svc: svc}
}

// ScanImage expects multipart/form-data with an "image" file and an optional
// "description" field.
func (h *ScanController) ScanImage(c *gin.Context) {
	uid, _ := userIDFromCtx(c)

	fh, err := c.FormFile("image")
	if err != nil {
		badRequest(c, "image file is required")
		return
	}
	if fh.Size > services.MaxImageBytes {
		badRequest(c, "image larger than 5 MB")
		return
	}
	f, err := fh.Open()
	if err != nil {
		badRequest(c, "cannot read image")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, services.MaxImageBytes+1))
	if err != nil {
		badRequest(c, "cannot read image")
		return
	}

	mime := http.DetectContentType(data)
	res, err := h.Svc.ScanImage(c.Request.Context(), uid, data, mime, c.PostForm("description"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

type scanTextInput struct {
	Description string `json:"description" binding:"required"`
}

func (h *ScanController) ScanText(c *gin.Context) {
	uid, _ := userIDFromCtx(c)
	var in scanTextInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err.Error())
		return
	}
	res, err := h.Svc.ScanText(c.Request.Context(), uid, in.Description)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

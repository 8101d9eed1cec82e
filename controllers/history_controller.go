package controllers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/F1H444/si-kalori-sub000/services"

	"github.com/gin-gonic/gin"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type HistoryController struct {
	Svc *services.HistoryService
	Loc *time.Location
}

func NewHistoryController(svc *services.HistoryService, loc *time.Location) *HistoryController {
	if loc == nil {
		loc = time.Local
	}
	return &HistoryController{Svc: svc, Loc: loc}
}

func (h *HistoryController) List(c *gin.Context) {
	uid, _ := userIDFromCtx(c)
	from, ok := queryDate(c, "from", time.Time{}, h.Loc)
	if !ok {
		return
	}
	to, ok := queryDate(c, "to", time.Time{}, h.Loc)
	if !ok {
		return
	}
	page, err := h.Svc.List(c.Request.Context(), uid, from, to, queryInt(c, "limit", 20), queryInt(c, "offset", 0))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *HistoryController) Get(c *gin.Context) {
	uid, _ := userIDFromCtx(c)
	id, ok := paramID(c)
	if !ok {
		return
	}
	scan, err := h.Svc.Get(c.Request.Context(), uid, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, scan)
}

func (h *HistoryController) Delete(c *gin.Context) {
	uid, _ := userIDFromCtx(c)
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.Svc.Delete(c.Request.Context(), uid, id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HistoryController) DailySummary(c *gin.Context) {
	uid, _ := userIDFromCtx(c)
	day, ok := queryDate(c, "date", time.Now().In(h.Loc), h.Loc)
	if !ok {
		return
	}
	out, err := h.Svc.DailySummary(c.Request.Context(), uid, day)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *HistoryController) WeeklyOverview(c *gin.Context) {
	uid, _ := userIDFromCtx(c)
	ws, ok := queryDate(c, "week_start", time.Now().In(h.Loc), h.Loc)
	if !ok {
		return
	}
	out, err := h.Svc.WeeklyOverview(c.Request.Context(), uid, ws, c.DefaultQuery("mode", "chart"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Summary defaults to the current month.
func (h *HistoryController) Summary(c *gin.Context) {
	uid, _ := userIDFromCtx(c)
	now := time.Now().In(h.Loc)
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, h.Loc)
	from, ok := queryDate(c, "from", first, h.Loc)
	if !ok {
		return
	}
	to, ok := queryDate(c, "to", first.AddDate(0, 1, -1), h.Loc)
	if !ok {
		return
	}
	out, err := h.Svc.Summary(c.Request.Context(), uid, from, to, c.DefaultQuery("includeMissingDays", "false") == "true")
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Export streams an xlsx workbook; the default range is the last 30 days.
func (h *HistoryController) Export(c *gin.Context) {
	uid, _ := userIDFromCtx(c)
	now := time.Now().In(h.Loc)
	from, ok := queryDate(c, "from", now.AddDate(0, 0, -29), h.Loc)
	if !ok {
		return
	}
	to, ok := queryDate(c, "to", now, h.Loc)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if _, err := h.Svc.ExportXLSX(c.Request.Context(), uid, from, to, &buf); err != nil {
		respondError(c, err)
		return
	}
	name := fmt.Sprintf("sikalori-%s-%s.xlsx", from.Format("20060102"), to.Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, xlsxMIME, buf.Bytes())
}

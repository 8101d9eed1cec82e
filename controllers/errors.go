package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/F1H444/si-kalori-sub000/services"
	"github.com/F1H444/si-kalori-sub000/utils"

	"github.com/gin-gonic/gin"
)

var statusByErr = []struct {
	err    error
	status int
}{
	{services.ErrValidation, http.StatusBadRequest},
	{services.ErrNotFound, http.StatusNotFound},
	{services.ErrConflict, http.StatusConflict},
	{services.ErrUnauthorized, http.StatusUnauthorized},
	{services.ErrForbidden, http.StatusForbidden},
	{services.ErrQuotaExceeded, http.StatusTooManyRequests},
	{services.ErrPaymentNotSettled, http.StatusPaymentRequired},
	{services.ErrInvalidSignature, http.StatusForbidden},
	{services.ErrNoFoodDetected, http.StatusUnprocessableEntity},
	{services.ErrAnalyzerUnavailable, http.StatusServiceUnavailable},
}

// respondError maps service errors onto HTTP status codes. Unknown errors are
// logged through c.Error and hidden behind a generic message.
func respondError(c *gin.Context, err error) {
	var invalid *utils.InvalidInputError
	if errors.As(err, &invalid) {
		c.JSON(http.StatusBadRequest, gin.H{"error": invalid.Error(), "field": invalid.Field})
		return
	}
	for _, m := range statusByErr {
		if errors.Is(err, m.err) {
			c.JSON(m.status, gin.H{"error": err.Error()})
			return
		}
	}
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func userIDFromCtx(c *gin.Context) (uint, bool) {
	uid := c.GetUint("userID")
	return uid, uid != 0
}

// queryDate parses ?name=YYYY-MM-DD, falling back to def when absent.
func queryDate(c *gin.Context, name string, def time.Time, loc *time.Location) (time.Time, bool) {
	v := c.Query(name)
	if v == "" {
		return def, true
	}
	t, err := time.ParseInLocation("2006-01-02", v, loc)
	if err != nil {
		badRequest(c, "invalid "+name+" date, expected YYYY-MM-DD")
		return time.Time{}, false
	}
	return t, true
}

func queryInt(c *gin.Context, name string, def int) int {
	n, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return def
	}
	return n
}

func paramID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "invalid id")
		return 0, false
	}
	return uint(id), true
}

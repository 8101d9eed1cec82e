package controllers

import (
	"errors"
	"net/http"

	"github.com/F1H444/si-kalori-sub000/services"

	"github.com/gin-gonic/gin"
)

type PaymentController struct {
	Svc       *services.PaymentService
	ClientKey string
}

func NewPaymentController(svc *services.PaymentService, clientKey string) *PaymentController {
	return &PaymentController{Svc: svc, ClientKey: clientKey}
}

func (h *PaymentController) Checkout(c *gin.Context) {
	uid, _ := userIDFromCtx(c)
	p, err := h.Svc.Checkout(c.Request.Context(), uid)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"order_id":     p.OrderID,
		"snap_token":   p.SnapToken,
		"redirect_url": p.RedirectURL,
		"client_key":   h.ClientKey,
		"gross_amount": p.GrossAmount,
	})
}

type verifyInput struct {
	OrderID string `json:"order_id" binding:"required"`
}

func (h *PaymentController) Verify(c *gin.Context) {
	uid, _ := userIDFromCtx(c)
	var in verifyInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err.Error())
		return
	}
	p, err := h.Svc.Verify(c.Request.Context(), uid, in.OrderID)
	if errors.Is(err, services.ErrPaymentNotSettled) {
		c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error(), "payment": p})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	st, err := h.Svc.IsPremium(c.Request.Context(), uid)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment": p, "subscription": st})
}

func (h *PaymentController) List(c *gin.Context) {
	uid, _ := userIDFromCtx(c)
	list, err := h.Svc.List(c.Request.Context(), uid)
	if err != nil {
		respondError(c, err)
		return
	}
	st, err := h.Svc.IsPremium(c.Request.Context(), uid)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": list, "subscription": st})
}

// Notification is the gateway webhook; it answers 200 once the update is stored
// so the gateway stops retrying.
func (h *PaymentController) Notification(c *gin.Context) {
	var n services.TransactionStatus
	if err := c.ShouldBindJSON(&n); err != nil {
		badRequest(c, err.Error())
		return
	}
	p, err := h.Svc.HandleNotification(c.Request.Context(), n)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": p.OrderID, "status": p.Status})
}

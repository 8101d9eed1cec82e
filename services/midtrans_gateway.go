package services

import (
	"context"
	"fmt"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
)

type CheckoutRequest struct {
	OrderID       string
	Amount        int64
	ItemName      string
	CustomerName  string
	CustomerEmail string
}

type CheckoutSession struct {
	Token       string
	RedirectURL string
}

// TransactionStatus is the gateway's view of an order, as returned by the status
// API or posted to the notification webhook.
type TransactionStatus struct {
	OrderID           string `json:"order_id"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	PaymentType       string `json:"payment_type"`
	SignatureKey      string `json:"signature_key"`
}

type PaymentGateway interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	TransactionStatus(ctx context.Context, orderID string) (*TransactionStatus, error)
}

// MidtransGateway uses Snap for checkout and the Core API for status checks.
type MidtransGateway struct {
	snap snap.Client
	core coreapi.Client
}

func NewMidtransGateway(serverKey string, production bool) *MidtransGateway {
	env := midtrans.Sandbox
	if production {
		env = midtrans.Production
	}
	g := &MidtransGateway{}
	g.snap.New(serverKey, env)
	g.core.New(serverKey, env)
	return g
}

func (g *MidtransGateway) CreateCheckout(_ context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	resp, merr := g.snap.CreateTransaction(&snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  req.OrderID,
			GrossAmt: req.Amount,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: req.CustomerName,
			Email: req.CustomerEmail,
		},
		Items: &[]midtrans.ItemDetails{{
			ID:    "premium",
			Name:  req.ItemName,
			Price: req.Amount,
			Qty:   1,
		}},
	})
	if merr != nil {
		return nil, fmt.Errorf("midtrans snap: %s", merr.GetMessage())
	}
	return &CheckoutSession{Token: resp.Token, RedirectURL: resp.RedirectURL}, nil
}

func (g *MidtransGateway) TransactionStatus(_ context.Context, orderID string) (*TransactionStatus, error) {
	resp, merr := g.core.CheckTransaction(orderID)
	if merr != nil {
		return nil, fmt.Errorf("midtrans status (%d): %s", merr.GetStatusCode(), merr.GetMessage())
	}
	return &TransactionStatus{
		OrderID:           resp.OrderID,
		TransactionStatus: resp.TransactionStatus,
		FraudStatus:       resp.FraudStatus,
		StatusCode:        resp.StatusCode,
		GrossAmount:       resp.GrossAmount,
		PaymentType:       resp.PaymentType,
		SignatureKey:      resp.SignatureKey,
	}, nil
}

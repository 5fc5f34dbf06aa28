package server

import (
	"net/http"
	"strings"

	paymentdomain "github.com/fitstack/centerledger/internal/payment/domain"
	subscriptiondomain "github.com/fitstack/centerledger/internal/subscription/domain"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type purchaseSubscriptionRequest struct {
	CustomerID     string `json:"customer_id"`
	Price          string `json:"price"`
	TotalDays      int    `json:"total_days"`
	InitialPayment string `json:"initial_payment"`
	ReceivedBy     string `json:"received_by"`
}

// PurchaseSubscription opens a new attendance period. The period insert
// and the optional initial payment share one transaction.
func (s *Server) PurchaseSubscription(c *gin.Context) {
	var req purchaseSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	price, err := decimal.NewFromString(strings.TrimSpace(req.Price))
	if err != nil {
		AbortWithError(c, newValidationError("price", "invalid_price", "invalid price"))
		return
	}

	initialPayment := decimal.Zero
	if strings.TrimSpace(req.InitialPayment) != "" {
		initialPayment, err = decimal.NewFromString(strings.TrimSpace(req.InitialPayment))
		if err != nil {
			AbortWithError(c, newValidationError("initial_payment", "invalid_amount_paid", "invalid initial payment"))
			return
		}
	}

	resp, err := s.paymentSvc.PurchaseAndPay(c.Request.Context(), paymentdomain.PurchaseAndPayRequest{
		CustomerID:     strings.TrimSpace(req.CustomerID),
		Price:          price,
		TotalDays:      req.TotalDays,
		InitialPayment: initialPayment,
		ReceivedBy:     strings.TrimSpace(req.ReceivedBy),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.auditSvc != nil {
		_ = s.auditSvc.Record(c.Request.Context(), "subscription.purchase", "subscription_period", resp.ID.String(), map[string]any{
			"customer_id": resp.CustomerID.String(),
			"price":       resp.Price.String(),
			"total_days":  resp.TotalDays,
			"amount_paid": resp.AmountPaid.String(),
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetActiveSubscription(c *gin.Context) {
	customerID := strings.TrimSpace(c.Query("customer_id"))
	resp, err := s.subscriptionSvc.GetActive(c.Request.Context(), subscriptiondomain.GetActiveRequest{
		CustomerID: customerID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListSubscriptions(c *gin.Context) {
	customerID := strings.TrimSpace(c.Query("customer_id"))
	resp, err := s.subscriptionSvc.ListByCustomer(c.Request.Context(), subscriptiondomain.ListPeriodsRequest{
		CustomerID: customerID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

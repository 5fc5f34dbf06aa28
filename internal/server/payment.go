package server

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	customerdomain "github.com/fitstack/centerledger/internal/customer/domain"
	paymentdomain "github.com/fitstack/centerledger/internal/payment/domain"
	"github.com/fitstack/centerledger/internal/providers/pdf"
	subscriptiondomain "github.com/fitstack/centerledger/internal/subscription/domain"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type applyPaymentRequest struct {
	CustomerID string `json:"customer_id"`
	Amount     string `json:"amount"`
	ReceivedBy string `json:"received_by"`
}

// ApplyPayment posts a counter payment against the customer's active
// period, bounded by the outstanding due balance.
func (s *Server) ApplyPayment(c *gin.Context) {
	var req applyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		AbortWithError(c, newValidationError("amount", "invalid_amount", "invalid amount"))
		return
	}

	resp, err := s.paymentSvc.ApplyPayment(c.Request.Context(), paymentdomain.ApplyPaymentRequest{
		CustomerID: strings.TrimSpace(req.CustomerID),
		Amount:     amount,
		ReceivedBy: strings.TrimSpace(req.ReceivedBy),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListPayments(c *gin.Context) {
	customerID := strings.TrimSpace(c.Query("customer_id"))
	resp, err := s.paymentSvc.ListByCustomer(c.Request.Context(), paymentdomain.ListPaymentsRequest{
		CustomerID: customerID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// GetPaymentReceipt renders a PDF receipt for a single payment.
func (s *Server) GetPaymentReceipt(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	payment, err := s.paymentSvc.Get(c.Request.Context(), paymentdomain.GetPaymentRequest{
		PaymentID: id,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	customer, err := s.customerSvc.GetByID(c.Request.Context(), customerdomain.GetCustomerRequest{
		ID: payment.CustomerID.String(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	period, err := s.subscriptionSvc.GetPeriod(c.Request.Context(), subscriptiondomain.GetPeriodRequest{
		PeriodID: payment.PeriodID.String(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	due := period.Price.Sub(period.AmountPaid)
	reader, err := s.pdfProvider.GenerateReceipt(c.Request.Context(), pdf.ReceiptData{
		ReceiptNumber: payment.ID.String(),
		DatePaid:      payment.ReceivedAt.Format("2006-01-02"),
		CenterName:    s.cfg.ReceiptCenterName,
		CenterAddress: s.cfg.ReceiptCenterAddress,
		CustomerName:  customer.Name,
		CustomerEmail: customer.Email,
		Description:   fmt.Sprintf("Attendance subscription, %d days", period.TotalDays),
		Amount:        payment.Amount.StringFixed(2),
		AmountPaid:    period.AmountPaid.StringFixed(2),
		Due:           due.StringFixed(2),
		ReceivedBy:    payment.ReceivedBy,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	content, err := io.ReadAll(reader)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=receipt-%s.pdf", payment.ID.String()))
	c.Data(http.StatusOK, "application/pdf", content)
}

package server

import (
	"net/http"
	"strconv"
	"strings"

	attendancedomain "github.com/fitstack/centerledger/internal/attendance/domain"
	"github.com/fitstack/centerledger/internal/centerctx"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type markAttendanceRequest struct {
	CustomerID    string   `json:"customer_id"`
	Date          string   `json:"date"`
	MarkStatus    *bool    `json:"mark_status"`
	Weight        string   `json:"weight"`
	PhotoEvidence []string `json:"photo_evidence"`
	MarkedBy      string   `json:"marked_by"`
	DuePayment    string   `json:"due_payment"`
}

// MarkAttendance records one attendance day. Rapid repeat submissions
// for the same customer are throttled before touching the ledger.
func (s *Server) MarkAttendance(c *gin.Context) {
	var req markAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	weight := decimal.Zero
	if strings.TrimSpace(req.Weight) != "" {
		parsed, err := decimal.NewFromString(strings.TrimSpace(req.Weight))
		if err != nil {
			AbortWithError(c, newValidationError("weight", "invalid_weight", "invalid weight"))
			return
		}
		weight = parsed
	}

	var duePayment *decimal.Decimal
	if strings.TrimSpace(req.DuePayment) != "" {
		parsed, err := decimal.NewFromString(strings.TrimSpace(req.DuePayment))
		if err != nil {
			AbortWithError(c, newValidationError("due_payment", "invalid_due_payment", "invalid due payment"))
			return
		}
		duePayment = &parsed
	}

	markStatus := true
	if req.MarkStatus != nil {
		markStatus = *req.MarkStatus
	}

	customerID := strings.TrimSpace(req.CustomerID)
	release, ok := s.gateMark(c, customerID)
	if !ok {
		return
	}
	defer release()

	resp, err := s.attendanceSvc.MarkAttendance(c.Request.Context(), attendancedomain.MarkAttendanceRequest{
		CustomerID:    customerID,
		Date:          strings.TrimSpace(req.Date),
		MarkStatus:    markStatus,
		Weight:        weight,
		PhotoEvidence: req.PhotoEvidence,
		MarkedBy:      strings.TrimSpace(req.MarkedBy),
		DuePayment:    duePayment,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updateAttendanceRequest struct {
	CustomerID    string   `json:"customer_id"`
	Date          string   `json:"date"`
	MarkStatus    bool     `json:"mark_status"`
	Weight        string   `json:"weight"`
	PhotoEvidence []string `json:"photo_evidence"`
	MarkedBy      string   `json:"marked_by"`
}

// UpdateAttendance corrects a mismarked day without consuming days.
func (s *Server) UpdateAttendance(c *gin.Context) {
	var req updateAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var weight *decimal.Decimal
	if strings.TrimSpace(req.Weight) != "" {
		parsed, err := decimal.NewFromString(strings.TrimSpace(req.Weight))
		if err != nil {
			AbortWithError(c, newValidationError("weight", "invalid_weight", "invalid weight"))
			return
		}
		weight = &parsed
	}

	resp, err := s.attendanceSvc.UpdateAttendance(c.Request.Context(), attendancedomain.UpdateAttendanceRequest{
		CustomerID:    strings.TrimSpace(req.CustomerID),
		Date:          strings.TrimSpace(req.Date),
		MarkStatus:    req.MarkStatus,
		Weight:        weight,
		PhotoEvidence: req.PhotoEvidence,
		MarkedBy:      strings.TrimSpace(req.MarkedBy),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) QueryAttendanceMonth(c *gin.Context) {
	customerID := strings.TrimSpace(c.Query("customer_id"))

	month, err := strconv.Atoi(strings.TrimSpace(c.Query("month")))
	if err != nil {
		AbortWithError(c, newValidationError("month", "invalid_month", "invalid month"))
		return
	}
	year, err := strconv.Atoi(strings.TrimSpace(c.Query("year")))
	if err != nil {
		AbortWithError(c, newValidationError("year", "invalid_month", "invalid year"))
		return
	}

	resp, err := s.attendanceSvc.QueryMonth(c.Request.Context(), attendancedomain.QueryMonthRequest{
		CustomerID: customerID,
		Month:      month,
		Year:       year,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// gateMark applies the per-customer throttle and short-lived lock so a
// double-clicked mark cannot race itself. The returned release func is a
// no-op when the limiter is disabled.
func (s *Server) gateMark(c *gin.Context, customerID string) (func(), bool) {
	noop := func() {}
	if s.markLimiter == nil || !s.markLimiter.Enabled() || customerID == "" {
		return noop, true
	}

	centerID, ok := centerctx.CenterIDFromContext(c.Request.Context())
	if !ok {
		return noop, true
	}

	allowed, err := s.markLimiter.AllowCustomer(c.Request.Context(), centerID.String(), customerID)
	if err == nil && !allowed {
		AbortWithError(c, ErrTooManyRequests)
		return noop, false
	}

	token, locked, err := s.markLimiter.TryLockCustomer(c.Request.Context(), centerID.String(), customerID)
	if err != nil {
		// Redis trouble must not block attendance; fall through unlocked.
		return noop, true
	}
	if !locked {
		AbortWithError(c, ErrTooManyRequests)
		return noop, false
	}

	return func() {
		_ = s.markLimiter.ReleaseCustomer(c.Request.Context(), centerID.String(), customerID, token)
	}, true
}

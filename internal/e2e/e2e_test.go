package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/bwmarrin/snowflake"
	attendancedomain "github.com/fitstack/centerledger/internal/attendance/domain"
	attendancerepository "github.com/fitstack/centerledger/internal/attendance/repository"
	attendanceservice "github.com/fitstack/centerledger/internal/attendance/service"
	auditdomain "github.com/fitstack/centerledger/internal/audit/domain"
	auditrepository "github.com/fitstack/centerledger/internal/audit/repository"
	auditservice "github.com/fitstack/centerledger/internal/audit/service"
	"github.com/fitstack/centerledger/internal/clock"
	"github.com/fitstack/centerledger/internal/config"
	customerdomain "github.com/fitstack/centerledger/internal/customer/domain"
	customerrepository "github.com/fitstack/centerledger/internal/customer/repository"
	customerservice "github.com/fitstack/centerledger/internal/customer/service"
	"github.com/fitstack/centerledger/internal/observability"
	paymentdomain "github.com/fitstack/centerledger/internal/payment/domain"
	paymentrepository "github.com/fitstack/centerledger/internal/payment/repository"
	paymentservice "github.com/fitstack/centerledger/internal/payment/service"
	"github.com/fitstack/centerledger/internal/providers/pdf"
	"github.com/fitstack/centerledger/internal/server"
	subscriptiondomain "github.com/fitstack/centerledger/internal/subscription/domain"
	subscriptionrepository "github.com/fitstack/centerledger/internal/subscription/repository"
	subscriptionservice "github.com/fitstack/centerledger/internal/subscription/service"
	"github.com/fitstack/centerledger/pkg/db"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testEnv struct {
	srv      *server.Server
	db       *gorm.DB
	httpSrv  *httptest.Server
	baseURL  string
	centerID snowflake.ID
}

var env *testEnv

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)

	var err error
	env, err = startEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to start test environment:", err)
		os.Exit(1)
	}

	code := m.Run()
	env.httpSrv.Close()
	os.Exit(code)
}

func startEnv() (*testEnv, error) {
	conn, err := db.NewTest()
	if err != nil {
		return nil, err
	}
	if err := conn.AutoMigrate(
		&customerdomain.Customer{},
		&subscriptiondomain.SubscriptionPeriod{},
		&paymentdomain.Payment{},
		&attendancedomain.AttendanceRecord{},
		&auditdomain.AuditLog{},
	); err != nil {
		return nil, err
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, err
	}

	log := zap.NewNop()
	clk := clock.SystemClock{}
	centerID := node.Generate()

	subRepo := subscriptionrepository.Provide()
	payRepo := paymentrepository.Provide()

	auditSvc := auditservice.NewService(auditservice.Params{
		DB:    conn,
		Log:   log,
		GenID: node,
		Clock: clk,
		Repo:  auditrepository.Provide(),
	})
	customerSvc := customerservice.New(customerservice.Params{
		DB:    conn,
		Log:   log,
		GenID: node,
		Clock: clk,
		Repo:  customerrepository.Provide(),
	})
	subscriptionSvc := subscriptionservice.NewService(subscriptionservice.ServiceParam{
		DB:    conn,
		Log:   log,
		GenID: node,
		Clock: clk,
		Repo:  subRepo,
	})
	paymentSvc := paymentservice.NewService(paymentservice.ServiceParam{
		DB:      conn,
		Log:     log,
		GenID:   node,
		Clock:   clk,
		Repo:    payRepo,
		SubRepo: subRepo,
		Audit:   auditSvc,
	})
	attendanceSvc := attendanceservice.NewService(attendanceservice.ServiceParam{
		DB:      conn,
		Log:     log,
		GenID:   node,
		Clock:   clk,
		Repo:    attendancerepository.Provide(),
		SubRepo: subRepo,
		PayRepo: payRepo,
		Audit:   auditSvc,
	})

	engine := server.NewEngine(observability.Config{Environment: "test"}, nil)
	srv := server.NewServer(server.ServerParams{
		Gin: engine,
		Cfg: config.Config{
			DefaultCenterID:      int64(centerID),
			ReceiptCenterName:    "Main",
			ReceiptCenterAddress: "1 Gym Street",
		},
		DB:              conn,
		GenID:           node,
		AuditSvc:        auditSvc,
		CustomerSvc:     customerSvc,
		SubscriptionSvc: subscriptionSvc,
		PaymentSvc:      paymentSvc,
		AttendanceSvc:   attendanceSvc,
		PDFProvider:     pdf.New(),
	})

	httpSrv := httptest.NewServer(engine)
	return &testEnv{
		srv:      srv,
		db:       conn,
		httpSrv:  httpSrv,
		baseURL:  httpSrv.URL,
		centerID: centerID,
	}, nil
}

func (e *testEnv) post(t *testing.T, path string, body map[string]any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, e.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Staff-Id", "reception-1")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func (e *testEnv) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(e.baseURL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func decodeData(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			t.Fatalf("decode data: %v", err)
		}
	}
}

func TestHealthCheck(t *testing.T) {
	resp := env.get(t, "/health")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
}

func TestSubscriptionLifecycle(t *testing.T) {
	resp := env.post(t, "/api/customers", map[string]any{
		"name":  "Nadia Rahman",
		"email": "nadia@example.com",
		"phone": "+8801712345678",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create customer: status %d", resp.StatusCode)
	}
	var customer struct {
		ID string `json:"id"`
	}
	decodeData(t, resp, &customer)
	if customer.ID == "" {
		t.Fatalf("expected customer id")
	}

	resp = env.post(t, "/api/subscriptions", map[string]any{
		"customer_id":     customer.ID,
		"price":           "2000.00",
		"total_days":      3,
		"initial_payment": "1000.00",
		"received_by":     "reception-1",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("purchase subscription: status %d", resp.StatusCode)
	}
	var period struct {
		ID         string `json:"id"`
		DaysLeft   int    `json:"days_left"`
		AmountPaid string `json:"amount_paid"`
	}
	decodeData(t, resp, &period)
	if period.DaysLeft != 3 {
		t.Fatalf("expected 3 days left, got %d", period.DaysLeft)
	}

	// A second open period for the same customer must be refused.
	resp = env.post(t, "/api/subscriptions", map[string]any{
		"customer_id": customer.ID,
		"price":       "2000.00",
		"total_days":  7,
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for second active period, got %d", resp.StatusCode)
	}

	resp = env.post(t, "/api/attendance", map[string]any{
		"customer_id": customer.ID,
		"date":        "2024-04-01",
		"weight":      "72.5",
		"marked_by":   "trainer-1",
		"due_payment": "500.00",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("mark attendance: status %d", resp.StatusCode)
	}
	var marked struct {
		Period struct {
			DaysLeft   int    `json:"days_left"`
			AmountPaid string `json:"amount_paid"`
		} `json:"period"`
	}
	decodeData(t, resp, &marked)
	if marked.Period.DaysLeft != 2 {
		t.Fatalf("expected 2 days left after mark, got %d", marked.Period.DaysLeft)
	}

	resp = env.post(t, "/api/attendance", map[string]any{
		"customer_id": customer.ID,
		"date":        "2024-04-01",
		"marked_by":   "trainer-1",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate date, got %d", resp.StatusCode)
	}

	// Paid 1500 of 2000 so far; 600 would overshoot the due balance.
	resp = env.post(t, "/api/payments", map[string]any{
		"customer_id": customer.ID,
		"amount":      "600.00",
		"received_by": "reception-1",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for overpayment, got %d", resp.StatusCode)
	}

	resp = env.post(t, "/api/payments", map[string]any{
		"customer_id": customer.ID,
		"amount":      "500.00",
		"received_by": "reception-1",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("settle payment: status %d", resp.StatusCode)
	}
	var settled struct {
		AmountPaid decimal.Decimal `json:"amount_paid"`
	}
	decodeData(t, resp, &settled)
	if !settled.AmountPaid.Equal(decimal.NewFromInt(2000)) {
		t.Fatalf("expected amount paid 2000, got %s", settled.AmountPaid)
	}

	resp = env.get(t, "/api/payments?customer_id="+customer.ID)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list payments: status %d", resp.StatusCode)
	}
	var history struct {
		Payments []struct {
			ID     string `json:"id"`
			Amount string `json:"amount"`
		} `json:"payments"`
	}
	decodeData(t, resp, &history)
	if len(history.Payments) != 3 {
		t.Fatalf("expected 3 payments, got %d", len(history.Payments))
	}

	resp = env.get(t, "/api/payments/"+history.Payments[0].ID+"/receipt")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("receipt: status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("expected pdf content type, got %s", ct)
	}
	content, err := io.ReadAll(resp.Body)
	if err != nil || len(content) == 0 {
		t.Fatalf("expected pdf bytes, err=%v len=%d", err, len(content))
	}

	resp = env.get(t, "/api/attendance?customer_id="+customer.ID+"&month=4&year=2024")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("query month: status %d", resp.StatusCode)
	}
	var month struct {
		Records []struct {
			AttendedOn string `json:"attended_on"`
		} `json:"records"`
	}
	decodeData(t, resp, &month)
	if len(month.Records) != 1 {
		t.Fatalf("expected 1 attendance record, got %d", len(month.Records))
	}

	resp = env.get(t, "/api/audit-logs?target_type=payment")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list audit logs: status %d", resp.StatusCode)
	}
	var audit struct {
		Data []struct {
			Action  string `json:"action"`
			ActorID string `json:"actor_id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&audit); err != nil {
		t.Fatalf("decode audit logs: %v", err)
	}
	if len(audit.Data) == 0 {
		t.Fatalf("expected audit entries for payments")
	}
	if audit.Data[0].ActorID != "reception-1" {
		t.Fatalf("expected actor reception-1, got %s", audit.Data[0].ActorID)
	}
}

func TestMarkWithoutSubscription(t *testing.T) {
	resp := env.post(t, "/api/customers", map[string]any{
		"name":  "Walk In",
		"email": "walkin@example.com",
	})
	var customer struct {
		ID string `json:"id"`
	}
	decodeData(t, resp, &customer)

	resp = env.post(t, "/api/attendance", map[string]any{
		"customer_id": customer.ID,
		"date":        "2024-04-02",
		"marked_by":   "trainer-1",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 without subscription, got %d", resp.StatusCode)
	}
}

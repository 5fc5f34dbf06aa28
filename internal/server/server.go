package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/fitstack/centerledger/internal/attendance"
	attendancedomain "github.com/fitstack/centerledger/internal/attendance/domain"
	"github.com/fitstack/centerledger/internal/audit"
	auditdomain "github.com/fitstack/centerledger/internal/audit/domain"
	"github.com/fitstack/centerledger/internal/config"
	"github.com/fitstack/centerledger/internal/customer"
	customerdomain "github.com/fitstack/centerledger/internal/customer/domain"
	"github.com/fitstack/centerledger/internal/observability"
	obsmiddleware "github.com/fitstack/centerledger/internal/observability/logger"
	obsmetrics "github.com/fitstack/centerledger/internal/observability/metrics"
	obstracing "github.com/fitstack/centerledger/internal/observability/tracing"
	"github.com/fitstack/centerledger/internal/payment"
	paymentdomain "github.com/fitstack/centerledger/internal/payment/domain"
	"github.com/fitstack/centerledger/internal/providers/pdf"
	"github.com/fitstack/centerledger/internal/ratelimit"
	"github.com/fitstack/centerledger/internal/subscription"
	subscriptiondomain "github.com/fitstack/centerledger/internal/subscription/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	config.Module,
	fx.Provide(registerGin),
	audit.Module,
	customer.Module,
	subscription.Module,
	payment.Module,
	attendance.Module,
	pdf.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	db              *gorm.DB
	genID           *snowflake.Node
	auditSvc        auditdomain.Service
	customerSvc     customerdomain.Service
	subscriptionSvc subscriptiondomain.Service
	paymentSvc      paymentdomain.Service
	attendanceSvc   attendancedomain.Service
	pdfProvider     pdf.Provider
	markLimiter     *ratelimit.MarkLimiter
	obsMetrics      *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	DB              *gorm.DB
	GenID           *snowflake.Node
	AuditSvc        auditdomain.Service
	CustomerSvc     customerdomain.Service
	SubscriptionSvc subscriptiondomain.Service
	PaymentSvc      paymentdomain.Service
	AttendanceSvc   attendancedomain.Service
	PDFProvider     pdf.Provider
	MarkLimiter     *ratelimit.MarkLimiter `optional:"true"`
	ObsMetrics      *obsmetrics.Metrics    `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		db:              p.DB,
		genID:           p.GenID,
		auditSvc:        p.AuditSvc,
		customerSvc:     p.CustomerSvc,
		subscriptionSvc: p.SubscriptionSvc,
		paymentSvc:      p.PaymentSvc,
		attendanceSvc:   p.AttendanceSvc,
		pdfProvider:     p.PDFProvider,
		markLimiter:     p.MarkLimiter,
		obsMetrics:      p.ObsMetrics,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")
	api.Use(s.CenterContext())
	api.Use(ActorContext())

	customers := api.Group("/customers")
	customers.POST("", s.CreateCustomer)
	customers.GET("", s.ListCustomers)
	customers.GET("/:id", s.GetCustomerByID)

	subscriptions := api.Group("/subscriptions")
	subscriptions.POST("", s.PurchaseSubscription)
	subscriptions.GET("", s.ListSubscriptions)
	subscriptions.GET("/active", s.GetActiveSubscription)

	payments := api.Group("/payments")
	payments.POST("", s.ApplyPayment)
	payments.GET("", s.ListPayments)
	payments.GET("/:id/receipt", s.GetPaymentReceipt)

	marks := api.Group("/attendance")
	marks.POST("", s.MarkAttendance)
	marks.PATCH("", s.UpdateAttendance)
	marks.GET("", s.QueryAttendanceMonth)

	api.GET("/audit-logs", s.ListAuditLogs)
}

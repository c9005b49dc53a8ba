package server

import (
	"context"
	"net/http"
	"time"

	"github.com/edusuite/billing/internal/config"
	"github.com/edusuite/billing/internal/discount"
	discountdomain "github.com/edusuite/billing/internal/discount/domain"
	"github.com/edusuite/billing/internal/feeschedule"
	feescheduledomain "github.com/edusuite/billing/internal/feeschedule/domain"
	gwpaystack "github.com/edusuite/billing/internal/gateway/paystack"
	"github.com/edusuite/billing/internal/invoice"
	invoicedomain "github.com/edusuite/billing/internal/invoice/domain"
	"github.com/edusuite/billing/internal/ledger"
	ledgerdomain "github.com/edusuite/billing/internal/ledger/domain"
	"github.com/edusuite/billing/internal/notification"
	"github.com/edusuite/billing/internal/observability"
	obsmiddleware "github.com/edusuite/billing/internal/observability/logger"
	obsmetrics "github.com/edusuite/billing/internal/observability/metrics"
	obstracing "github.com/edusuite/billing/internal/observability/tracing"
	"github.com/edusuite/billing/internal/payment"
	paymentservice "github.com/edusuite/billing/internal/payment/service"
	"github.com/edusuite/billing/internal/payment/webhook"
	"github.com/edusuite/billing/internal/providers/email"
	"github.com/edusuite/billing/internal/providers/pdf"
	"github.com/edusuite/billing/internal/providers/slack"
	"github.com/edusuite/billing/internal/ratelimit"
	"github.com/edusuite/billing/internal/reference"
	"github.com/edusuite/billing/internal/scheduler"
	"github.com/edusuite/billing/internal/school"
	schooldomain "github.com/edusuite/billing/internal/school/domain"
	"github.com/edusuite/billing/internal/subscription"
	subscriptiondomain "github.com/edusuite/billing/internal/subscription/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	school.Module,
	reference.Module,
	feeschedule.Module,
	discount.Module,
	ledger.Module,
	payment.Module,
	gwpaystack.Module,
	invoice.Module,
	subscription.Module,
	email.Module,
	slack.Module,
	notification.Module,
	ratelimit.Module,
	pdf.Module,
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

func run(lc fx.Lifecycle, r *gin.Engine) {
	srv := &http.Server{
		Addr:    ":8080",
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
	billing         *config.BillingConfigHolder
	schoolSvc       schooldomain.Service
	feeSvc          feescheduledomain.Service
	discountSvc     discountdomain.Service
	invoiceSvc      invoicedomain.Service
	paymentSvc      *paymentservice.Service
	webhookSvc      *webhook.Service
	subscriptionSvc subscriptiondomain.Service
	ledgerSvc       ledgerdomain.Service
	pdfSvc          pdf.Provider
	gateway         *gwpaystack.Client
	webhookLimiter  *ratelimit.WebhookLimiter
	scheduler       *scheduler.Scheduler

	publicInvoiceLimiter  *rateLimiter
	publicStatusLimiter   *rateLimiter
	publicCheckoutLimiter *rateLimiter
	banksCache            *banksCache
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Billing         *config.BillingConfigHolder
	SchoolSvc       schooldomain.Service
	FeeSvc          feescheduledomain.Service
	DiscountSvc     discountdomain.Service
	InvoiceSvc      invoicedomain.Service
	PaymentSvc      *paymentservice.Service
	WebhookSvc      *webhook.Service
	SubscriptionSvc subscriptiondomain.Service
	LedgerSvc       ledgerdomain.Service
	PDFSvc          pdf.Provider
	Gateway         *gwpaystack.Client        `optional:"true"`
	WebhookLimiter  *ratelimit.WebhookLimiter `optional:"true"`
	Scheduler       *scheduler.Scheduler      `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		billing:         p.Billing,
		schoolSvc:       p.SchoolSvc,
		feeSvc:          p.FeeSvc,
		discountSvc:     p.DiscountSvc,
		invoiceSvc:      p.InvoiceSvc,
		paymentSvc:      p.PaymentSvc,
		webhookSvc:      p.WebhookSvc,
		subscriptionSvc: p.SubscriptionSvc,
		ledgerSvc:       p.LedgerSvc,
		pdfSvc:          p.PDFSvc,
		gateway:         p.Gateway,
		webhookLimiter:  p.WebhookLimiter,
		scheduler:       p.Scheduler,

		publicInvoiceLimiter:  newRateLimiter(30, time.Minute),
		publicStatusLimiter:   newRateLimiter(60, time.Minute),
		publicCheckoutLimiter: newRateLimiter(5, time.Minute),
		banksCache:            newBanksCache(10 * time.Minute),
	}

	svc.registerAPIRoutes()
	svc.registerWebhookRoutes()
	svc.registerPublicRoutes()
	svc.RegisterDevBillingRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.POST("/schools", s.CreateSchool)
	api.GET("/schools", s.ListSchools)
	api.GET("/schools/:id", s.GetSchool)
	api.POST("/schools/:id/subaccount", s.ProvisionSubaccount)
	api.POST("/schools/:id/students", s.RegisterStudent)
	api.GET("/schools/:id/students/:student_id", s.GetStudent)

	api.POST("/schools/:id/fee-structures", s.CreateFeeStructure)
	api.GET("/schools/:id/fee-structures/:key", s.GetFeeStructure)
	api.GET("/schools/:id/fee-structures/:key/quote", s.QuoteFees)

	api.GET("/schools/:id/discount-policy", s.GetDiscountPolicy)
	api.PUT("/schools/:id/discount-policy", s.SetDiscountPolicy)
	api.POST("/schools/:id/discount-policy/preview", s.PreviewDiscount)

	api.POST("/invoices", s.IssueInvoice)
	api.POST("/invoices/from-fees", s.IssueInvoiceFromFees)
	api.GET("/invoices", s.ListInvoices)
	api.GET("/schools/:id/invoices/:invoice_id", s.GetInvoice)
	api.POST("/schools/:id/invoices/:invoice_id/send", s.SendInvoice)
	api.POST("/schools/:id/invoices/:invoice_id/cancel", s.CancelInvoice)
	api.GET("/schools/:id/invoices/:invoice_id/pdf", s.DownloadInvoicePDF)

	api.POST("/payment-intents", s.CreatePaymentIntent)
	api.GET("/payment-intents", s.ListPaymentIntents)
	api.GET("/payment-intents/:id", s.GetPaymentIntent)
	api.GET("/payment-intents/:id/receipt", s.DownloadReceiptPDF)
	api.GET("/reconciliation-errors", s.ListReconciliationErrors)

	api.GET("/banks", s.ListBanks)

	api.GET("/plans", s.ListPlans)
	api.POST("/schools/:id/subscription", s.StartSubscription)
	api.GET("/schools/:id/subscription", s.GetSubscription)
	api.POST("/schools/:id/subscription/activate", s.ActivateSubscription)
	api.POST("/schools/:id/subscription/change-plan", s.ChangeSubscriptionPlan)
	api.POST("/schools/:id/subscription/cancel", s.CancelSubscription)
	api.GET("/schools/:id/entitlement", s.GetEntitlement)

	api.GET("/schools/:id/ledger/balances", s.ListLedgerBalances)
	api.GET("/schools/:id/ledger/entries", s.ListLedgerEntries)
}

func (s *Server) registerWebhookRoutes() {
	s.engine.POST("/webhooks/:provider", s.HandlePaymentWebhook)
}

func (s *Server) registerPublicRoutes() {
	public := s.engine.Group("/public")
	public.Use(NoStore())

	public.GET("/invoices/:number", s.ViewPublicInvoice)
	public.GET("/invoices/:number/status", s.GetPublicInvoiceStatus)
	public.POST("/payments/:reference/checkout", s.StartPublicCheckout)
}

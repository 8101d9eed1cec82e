package routes

import (
	"net/http"

	"github.com/F1H444/si-kalori-sub000/controllers"
	"github.com/F1H444/si-kalori-sub000/middlewares"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

type Handlers struct {
	Auth     *controllers.AuthController
	User     *controllers.UserController
	Scan     *controllers.ScanController
	History  *controllers.HistoryController
	Recs     *controllers.RecommendationController
	Payment  *controllers.PaymentController
	Device   *controllers.DeviceController
	Realtime *controllers.RealtimeController
	Contact  *controllers.ContactController
	Admin    *controllers.AdminController
}

func SetupRouter(h *Handlers, jwtSecret []byte, gatherer prometheus.Gatherer, log logrus.FieldLogger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middlewares.RequestLogger(log))
	r.MaxMultipartMemory = 8 << 20

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// Public auth routes
	auth := r.Group("/auth")
	{
		auth.POST("/register", h.Auth.Register)
		auth.POST("/login", h.Auth.Login)
		auth.POST("/forgot-password", h.Auth.ForgotPassword)
		auth.POST("/reset-password", h.Auth.ResetPassword)
	}
	r.POST("/admin/login", h.Auth.AdminLogin)
	r.POST("/metrics/calculate", h.User.PreviewMetrics)
	r.POST("/contact", h.Contact.Submit)
	r.POST("/payments/notification", h.Payment.Notification)

	// Protected user routes
	authed := r.Group("/")
	authed.Use(middlewares.AuthMiddleware(jwtSecret), middlewares.RequireUser())
	{
		authed.GET("/user/profile", h.User.GetProfile)
		authed.PUT("/user/profile", h.User.UpdateProfile)
		authed.POST("/user/onboarding", h.User.CompleteOnboarding)

		authed.POST("/scan/image", h.Scan.ScanImage)
		authed.POST("/scan/text", h.Scan.ScanText)

		authed.GET("/history", h.History.List)
		authed.GET("/history/summary", h.History.DailySummary)
		authed.GET("/history/weekly", h.History.WeeklyOverview)
		authed.GET("/history/range", h.History.Summary)
		authed.GET("/history/export", h.History.Export)
		authed.GET("/history/:id", h.History.Get)
		authed.DELETE("/history/:id", h.History.Delete)

		authed.GET("/recommendations", h.Recs.GetRecommendations)

		authed.POST("/payments/checkout", h.Payment.Checkout)
		authed.POST("/payments/verify", h.Payment.Verify)
		authed.GET("/payments", h.Payment.List)

		authed.POST("/devices", h.Device.Register)
		authed.POST("/notifications/toggle", h.Device.ToggleNotifications)
		authed.GET("/notifications", h.Device.ListAlerts)
		authed.GET("/ws", h.Realtime.AlertsWS)
	}

	admin := r.Group("/admin")
	admin.Use(middlewares.AuthMiddleware(jwtSecret), middlewares.RequireAdmin())
	{
		admin.GET("/users", h.Admin.ListUsers)
		admin.PATCH("/users/:id", h.Admin.UpdateUser)
		admin.GET("/analytics", h.Admin.Analytics)
	}

	return r
}

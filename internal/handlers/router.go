package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/harentsoaR/hospital-api/internal/metrics"
	"github.com/harentsoaR/hospital-api/internal/middleware"
	"github.com/harentsoaR/hospital-api/internal/models"
)

type RouterOptions struct {
	AllowedOrigins []string
	MaxBodySize    int64
	// Limiter guards the unauthenticated write routes. Nil disables it.
	Limiter *middleware.RateLimiter
	Metrics *metrics.Collector
	// TrustedProxies are the only peers whose forwarding headers decide the
	// client IP. Empty trusts no proxy.
	TrustedProxies []string
}

// NewRouter wires every route under /api/v1 plus the health and metrics endpoints.
func NewRouter(h *Handler, opts RouterOptions) (*gin.Engine, error) {
	r := gin.New()
	if err := r.SetTrustedProxies(opts.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	r.Use(
		middleware.RequestID(),
		middleware.Recovery(h.log),
		middleware.Logger(h.log),
		middleware.SecurityHeaders(),
	)
	if opts.Metrics != nil {
		r.Use(middleware.Metrics(opts.Metrics))
	}
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     opts.AllowedOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
			AllowHeaders:     []string{"Origin", "Content-Type", middleware.RequestIDHeader},
			ExposeHeaders:    []string{middleware.RequestIDHeader},
			AllowCredentials: true,
		}))
	}
	if opts.MaxBodySize > 0 {
		r.Use(middleware.BodyLimit(opts.MaxBodySize))
	}

	r.GET("/", h.Health)
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	limited := func(next gin.HandlerFunc) []gin.HandlerFunc {
		if opts.Limiter == nil {
			return []gin.HandlerFunc{next}
		}
		return []gin.HandlerFunc{opts.Limiter.Middleware(), next}
	}
	session := middleware.Authenticated(h.Auth, h.log)
	only := func(roles ...models.Role) gin.HandlerFunc {
		return middleware.RequireRole(h.log, roles...)
	}

	api := r.Group("/api/v1")

	user := api.Group("/user")
	{
		user.POST("/patient/register", limited(h.RegisterPatient)...)
		user.POST("/login", limited(h.Login(""))...)
		user.POST("/patient/login", limited(h.Login(models.RolePatient))...)
		user.POST("/doctor/login", limited(h.Login(models.RoleDoctor))...)
		user.POST("/admin/login", limited(h.Login(models.RoleAdmin))...)
		user.GET("/doctors", h.ListDoctors)

		user.GET("/me", session, h.Me)
		user.GET("/patient/me", session, only(models.RolePatient), h.Me)
		user.GET("/admin/me", session, only(models.RoleAdmin), h.Me)
		user.GET("/logout", session, h.Logout)

		user.POST("/admin/addnew", session, only(models.RoleAdmin), h.AddAdmin)
		user.POST("/doctor/addnew", session, only(models.RoleAdmin), h.AddDoctor)
	}

	appointment := api.Group("/appointment", session)
	{
		appointment.POST("/post", only(models.RolePatient), h.PostAppointment)
		appointment.GET("/getall", only(models.RoleAdmin), h.GetAppointments)
		appointment.PUT("/update/:id", only(models.RoleAdmin), h.UpdateAppointment)
		appointment.DELETE("/delete/:id", only(models.RoleAdmin), h.DeleteAppointment)
	}

	message := api.Group("/message")
	{
		message.POST("/send", limited(h.SendMessage)...)
		message.GET("/admin", session, only(models.RoleAdmin), h.GetMessages)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, middleware.ErrorBody{Message: "Route not found"})
	})
	return r, nil
}

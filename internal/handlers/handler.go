package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/harentsoaR/hospital-api/internal/errs"
	"github.com/harentsoaR/hospital-api/internal/middleware"
	"github.com/harentsoaR/hospital-api/internal/services"
	"github.com/rs/zerolog"
)

// Services groups the domain services the HTTP layer calls into.
type Services struct {
	Auth         *services.AuthService
	Doctors      *services.DoctorService
	Appointments *services.AppointmentService
	Messages     *services.MessageService
}

// CookieOptions controls the session cookie attributes.
type CookieOptions struct {
	Secure bool
}

type Handler struct {
	Services
	cookie CookieOptions
	log    zerolog.Logger
}

func NewHandler(svc Services, cookie CookieOptions, log zerolog.Logger) *Handler {
	return &Handler{Services: svc, cookie: cookie, log: log}
}

func (h *Handler) fail(c *gin.Context, err error) {
	middleware.WriteError(c, h.log, err)
}

// bind decodes a JSON or form body into dst. Validation of the decoded
// values is left to the services.
func (h *Handler) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBind(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(c, err)
			return false
		}
		h.fail(c, errs.Validation("Invalid request body"))
		return false
	}
	return true
}

func (h *Handler) setSessionCookie(c *gin.Context, sess *services.Session) {
	maxAge := int(time.Until(sess.ExpiresAt).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearSessionCookie overwrites the cookie with an already expired one.
func (h *Handler) clearSessionCookie(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Health answers GET /.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "HMS Backend is running"})
}

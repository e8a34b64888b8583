package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/harentsoaR/hospital-api/internal/errs"
	"github.com/harentsoaR/hospital-api/internal/store"
	"github.com/rs/zerolog"
)

// ErrorBody is the JSON shape of every failed request.
type ErrorBody struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Errors  []errs.FieldError `json:"errors,omitempty"`
}

// WriteError converts err into a status code and ErrorBody and aborts the
// request. Internal details are logged, never returned.
func WriteError(c *gin.Context, log zerolog.Logger, err error) {
	status, body := errorResponse(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).
			Str("request_id", RequestIDFrom(c)).
			Str("route", c.FullPath()).
			Msg("request failed")
	}
	c.AbortWithStatusJSON(status, body)
}

func errorResponse(err error) (int, ErrorBody) {
	var e *errs.Error
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &e):
		if e.Kind == errs.KindInternal {
			return http.StatusInternalServerError, ErrorBody{Message: "Internal Server Error"}
		}
		return e.Kind.HTTPStatus(), ErrorBody{Message: e.Detail(), Errors: e.Fields}
	case errors.Is(err, store.ErrDuplicateKey):
		return http.StatusConflict, ErrorBody{Message: "Duplicate value entered for email"}
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, ErrorBody{Message: "Request body too large"}
	}
	return http.StatusInternalServerError, ErrorBody{Message: "Internal Server Error"}
}

package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/harentsoaR/hospital-api/internal/errs"
	"github.com/harentsoaR/hospital-api/internal/services"
)

const avatarField = "docAvatar"

// ListDoctors answers GET /user/doctors[?department=...].
func (h *Handler) ListDoctors(c *gin.Context) {
	doctors, err := h.Doctors.List(c.Request.Context(), c.Query("department"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "doctors": doctors})
}

// AddDoctor takes a multipart form with the profile fields and a docAvatar file.
func (h *Handler) AddDoctor(c *gin.Context) {
	var in services.DoctorInput
	if !h.bind(c, &in) {
		return
	}

	var avatar io.Reader
	fh, err := c.FormFile(avatarField)
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(c, err)
			return
		}
		h.fail(c, errs.Validation("Doctor avatar is required",
			errs.FieldError{Field: avatarField, Message: "docAvatar could not be read"}))
		return
	default:
		f, err := fh.Open()
		if err != nil {
			h.fail(c, errs.Internal(err, "Failed to read doctor avatar"))
			return
		}
		defer f.Close()
		avatar = f
	}

	doc, err := h.Doctors.Add(c.Request.Context(), in, avatar)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Doctor added successfully",
		"doctor":  doc.DoctorProfile(),
	})
}

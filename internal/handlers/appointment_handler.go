package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/harentsoaR/hospital-api/internal/middleware"
	"github.com/harentsoaR/hospital-api/internal/services"
)

// PostAppointment books an appointment for the signed-in patient.
func (h *Handler) PostAppointment(c *gin.Context) {
	patient, err := middleware.MustUser(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	var in services.BookingInput
	if !h.bind(c, &in) {
		return
	}

	apt, err := h.Appointments.Book(c.Request.Context(), patient.ID, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":     true,
		"message":     "Appointment sent successfully",
		"appointment": apt,
	})
}

func (h *Handler) GetAppointments(c *gin.Context) {
	apts, err := h.Appointments.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "appointments": apts})
}

func (h *Handler) UpdateAppointment(c *gin.Context) {
	var upd services.StatusUpdate
	if !h.bind(c, &upd) {
		return
	}

	apt, err := h.Appointments.UpdateStatus(c.Request.Context(), c.Param("id"), upd)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"message":     "Appointment status updated",
		"appointment": apt,
	})
}

func (h *Handler) DeleteAppointment(c *gin.Context) {
	if err := h.Appointments.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Appointment deleted"})
}

package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/harentsoaR/hospital-api/internal/errs"
	"github.com/harentsoaR/hospital-api/internal/metrics"
	"github.com/harentsoaR/hospital-api/internal/models"
	"github.com/harentsoaR/hospital-api/internal/store"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Booking outcomes reported to metrics.
const (
	OutcomeCreated        = "created"
	OutcomeInvalid        = "invalid"
	OutcomeDoctorNotFound = "doctor_not_found"
	OutcomeDoctorConflict = "doctor_conflict"
	OutcomeError          = "error"
)

type AppointmentStore interface {
	Create(ctx context.Context, apt *models.Appointment) error
	List(ctx context.Context) ([]models.Appointment, error)
	Update(ctx context.Context, id primitive.ObjectID, u store.AppointmentUpdate) (*models.Appointment, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// BookingInput is what a patient submits. The doctor is named by a single
// display string, matched against "first last".
type BookingInput struct {
	FirstName       string `json:"firstName" validate:"required,min=2,max=50"`
	LastName        string `json:"lastName" validate:"required,min=2,max=50"`
	Email           string `json:"email" validate:"required,email"`
	Phone           string `json:"phone" validate:"required"`
	GovernmentID    string `json:"governmentId" validate:"required,min=8,max=20"`
	DOB             string `json:"dob" validate:"required,datetime=2006-01-02"`
	Gender          string `json:"gender" validate:"required,oneof=Male Female Other"`
	AppointmentDate string `json:"appointmentDate" validate:"required,datetime=2006-01-02"`
	Department      string `json:"department" validate:"required"`
	DoctorName      string `json:"doctorName" validate:"required"`
	HasVisited      bool   `json:"hasVisited"`
	Address         string `json:"address" validate:"required"`
}

func (in *BookingInput) trim() {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.GovernmentID = strings.TrimSpace(in.GovernmentID)
	in.DOB = strings.TrimSpace(in.DOB)
	in.Gender = strings.TrimSpace(in.Gender)
	in.AppointmentDate = strings.TrimSpace(in.AppointmentDate)
	in.Department = strings.TrimSpace(in.Department)
	in.DoctorName = strings.TrimSpace(in.DoctorName)
	in.Address = strings.TrimSpace(in.Address)
}

// StatusUpdate is a partial admin update of an appointment.
type StatusUpdate struct {
	Status     *string `json:"status"`
	HasVisited *bool   `json:"hasVisited"`
}

type AppointmentService struct {
	appointments AppointmentStore
	users        UserStore
	metrics      metrics.Recorder
	log          zerolog.Logger
	now          func() time.Time
}

func NewAppointmentService(appointments AppointmentStore, users UserStore, rec metrics.Recorder, log zerolog.Logger) *AppointmentService {
	return &AppointmentService{
		appointments: appointments,
		users:        users,
		metrics:      rec,
		log:          log,
		now:          time.Now,
	}
}

// Book validates the request, resolves exactly one doctor and stores a
// Pending appointment. Nothing is written unless every step succeeds.
func (s *AppointmentService) Book(ctx context.Context, patientID primitive.ObjectID, in BookingInput) (*models.Appointment, error) {
	in.trim()
	if err := validateInput("Please fill all required fields", &in); err != nil {
		s.metrics.RecordBooking(OutcomeInvalid)
		return nil, err
	}

	doctor, err := s.ResolveDoctor(ctx, in.Department, in.DoctorName)
	if err != nil {
		switch errs.KindOf(err) {
		case errs.KindNotFound:
			s.metrics.RecordBooking(OutcomeDoctorNotFound)
		case errs.KindConflict:
			s.metrics.RecordBooking(OutcomeDoctorConflict)
		default:
			s.metrics.RecordBooking(OutcomeError)
		}
		return nil, err
	}

	dob, _ := parseDate(in.DOB)
	date, _ := parseDate(in.AppointmentDate)
	now := s.now()
	apt := &models.Appointment{
		PatientID:       patientID,
		DoctorID:        doctor.ID,
		FirstName:       in.FirstName,
		LastName:        in.LastName,
		Email:           normalizeEmail(in.Email),
		Phone:           in.Phone,
		GovernmentID:    in.GovernmentID,
		DOB:             dob,
		Gender:          in.Gender,
		AppointmentDate: date,
		Department:      doctor.DoctorDepartment,
		Doctor:          models.DoctorName{FirstName: doctor.FirstName, LastName: doctor.LastName},
		HasVisited:      in.HasVisited,
		Address:         in.Address,
		Status:          models.StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.appointments.Create(ctx, apt); err != nil {
		s.metrics.RecordBooking(OutcomeError)
		return nil, errs.Internal(err, "Failed to create appointment")
	}

	s.metrics.RecordBooking(OutcomeCreated)
	s.log.Info().
		Str("appointment_id", apt.ID.Hex()).
		Str("doctor_id", doctor.ID.Hex()).
		Str("department", apt.Department).
		Msg("appointment booked")
	return apt, nil
}

// ResolveDoctor finds the single Doctor in department whose full name equals
// doctorName ignoring case and spacing. Zero matches is a NotFoundError; more
// than one is a ConflictError, never a guess.
func (s *AppointmentService) ResolveDoctor(ctx context.Context, department, doctorName string) (*models.User, error) {
	want := models.FoldName(doctorName)
	if want == "" {
		return nil, errs.NotFound("Doctor not found")
	}

	candidates, err := s.users.FindDoctors(ctx, store.DoctorFilter{
		Department: department,
		FullNameCI: want,
	})
	if err != nil {
		return nil, errs.Internal(err, "Failed to look up doctor")
	}

	var matches []*models.User
	for i := range candidates {
		d := &candidates[i]
		if d.Role == models.RoleDoctor && d.DoctorDepartment == department && models.FoldName(d.FullName()) == want {
			matches = append(matches, d)
		}
	}

	switch len(matches) {
	case 0:
		return nil, errs.NotFound("Doctor not found")
	case 1:
		return matches[0], nil
	}
	s.log.Warn().Str("department", department).Int("matches", len(matches)).Msg("ambiguous doctor name")
	return nil, errs.Conflict("Doctors conflict! Please contact hospital support")
}

// List returns every appointment, newest first.
func (s *AppointmentService) List(ctx context.Context) ([]models.Appointment, error) {
	apts, err := s.appointments.List(ctx)
	if err != nil {
		return nil, errs.Internal(err, "Failed to retrieve appointments")
	}
	return apts, nil
}

func (s *AppointmentService) UpdateStatus(ctx context.Context, id string, upd StatusUpdate) (*models.Appointment, error) {
	oid, err := ParseID(id)
	if err != nil {
		return nil, err
	}

	change := store.AppointmentUpdate{HasVisited: upd.HasVisited, UpdatedAt: s.now()}
	if upd.Status != nil {
		status := models.AppointmentStatus(strings.TrimSpace(*upd.Status))
		if !status.Valid() {
			return nil, errs.Validation("Invalid appointment status", errs.FieldError{
				Field:   "status",
				Message: "status must be one of: Pending, Accepted, Rejected",
			})
		}
		change.Status = &status
	}
	if change.Status == nil && change.HasVisited == nil {
		return nil, errs.Validation("No fields to update")
	}

	apt, err := s.appointments.Update(ctx, oid, change)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errs.NotFound("Appointment not found")
		}
		return nil, errs.Internal(err, "Failed to update appointment")
	}
	s.log.Info().Str("appointment_id", id).Str("status", string(apt.Status)).Msg("appointment updated")
	return apt, nil
}

func (s *AppointmentService) Delete(ctx context.Context, id string) error {
	oid, err := ParseID(id)
	if err != nil {
		return err
	}
	if err := s.appointments.Delete(ctx, oid); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errs.NotFound("Appointment not found")
		}
		return errs.Internal(err, "Failed to delete appointment")
	}
	s.log.Info().Str("appointment_id", id).Msg("appointment deleted")
	return nil
}

package services

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/harentsoaR/hospital-api/internal/models"
	"github.com/harentsoaR/hospital-api/internal/store"
	"github.com/harentsoaR/hospital-api/internal/utils"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

// memUsers mimics the Mongo user collection, including the unique email index.
type memUsers struct {
	mu        sync.Mutex
	users     []models.User
	createErr error
}

func (m *memUsers) Create(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return store.ErrDuplicateKey
		}
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	m.users = append(m.users, *u)
	return nil
}

func (m *memUsers) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			u := u
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memUsers) FindDoctors(_ context.Context, f store.DoctorFilter) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.User, 0)
	for _, u := range m.users {
		if u.Role != models.RoleDoctor {
			continue
		}
		if f.Department != "" && u.DoctorDepartment != f.Department {
			continue
		}
		if f.FullNameCI != "" && u.FullNameCI != f.FullNameCI {
			continue
		}
		out = append(out, u)
	}
	if f.Sort == store.SortByName {
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].LastName != out[j].LastName {
				return out[i].LastName < out[j].LastName
			}
			return out[i].FirstName < out[j].FirstName
		})
	}
	return out, nil
}

func (m *memUsers) remove(id primitive.ObjectID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, u := range m.users {
		if u.ID == id {
			m.users = append(m.users[:i], m.users[i+1:]...)
			return
		}
	}
}

type memAppointments struct {
	mu   sync.Mutex
	apts []models.Appointment
}

func (m *memAppointments) Create(_ context.Context, apt *models.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if apt.ID.IsZero() {
		apt.ID = primitive.NewObjectID()
	}
	m.apts = append(m.apts, *apt)
	return nil
}

func (m *memAppointments) List(_ context.Context) ([]models.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]models.Appointment(nil), m.apts...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memAppointments) Update(_ context.Context, id primitive.ObjectID, u store.AppointmentUpdate) (*models.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.apts {
		if m.apts[i].ID != id {
			continue
		}
		if u.Status != nil {
			m.apts[i].Status = *u.Status
		}
		if u.HasVisited != nil {
			m.apts[i].HasVisited = *u.HasVisited
		}
		m.apts[i].UpdatedAt = u.UpdatedAt
		apt := m.apts[i]
		return &apt, nil
	}
	return nil, store.ErrNotFound
}

func (m *memAppointments) Delete(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.apts {
		if m.apts[i].ID == id {
			m.apts = append(m.apts[:i], m.apts[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

type memMessages struct {
	mu   sync.Mutex
	msgs []models.Message
}

func (m *memMessages) Create(_ context.Context, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	m.msgs = append(m.msgs, *msg)
	return nil
}

func (m *memMessages) List(_ context.Context) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]models.Message(nil), m.msgs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type fakeImageHost struct {
	uploads     map[string][]byte
	contentType map[string]string
	deleted     []string
	err         error
}

func newFakeImageHost() *fakeImageHost {
	return &fakeImageHost{uploads: map[string][]byte{}, contentType: map[string]string{}}
}

func (h *fakeImageHost) Upload(_ context.Context, key, contentType string, body io.Reader, _ int64) (*models.Avatar, error) {
	if h.err != nil {
		return nil, h.err
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	h.uploads[key] = b
	h.contentType[key] = contentType
	return &models.Avatar{PublicID: key, URL: "https://images.test/" + key}, nil
}

func (h *fakeImageHost) Delete(_ context.Context, publicID string) error {
	h.deleted = append(h.deleted, publicID)
	return nil
}

type fakeRecorder struct {
	mu       sync.Mutex
	bookings map[string]int
	logins   map[bool]int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{bookings: map[string]int{}, logins: map[bool]int{}}
}

func (r *fakeRecorder) RecordBooking(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bookings[outcome]++
}

func (r *fakeRecorder) RecordLogin(_ string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logins[ok]++
}

// tickingClock returns strictly increasing times so newest-first ordering is deterministic.
func tickingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func testHasher() *utils.PasswordHasher {
	return utils.NewPasswordHasher(bcrypt.MinCost)
}

func testTokens(t *testing.T) *utils.TokenIssuer {
	t.Helper()
	tokens, err := utils.NewTokenIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	return tokens
}

// seedDoctor inserts a doctor the way DoctorService would, without an avatar.
func seedDoctor(t *testing.T, users *memUsers, first, last, email, department string) models.User {
	t.Helper()
	d := models.User{
		FirstName:        first,
		LastName:         last,
		Email:            email,
		Role:             models.RoleDoctor,
		DoctorDepartment: department,
		CreatedAt:        time.Now(),
	}
	d.FullNameCI = models.FoldName(d.FullName())
	if err := users.Create(context.Background(), &d); err != nil {
		t.Fatalf("seed doctor: %v", err)
	}
	return d
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

var nopLog = zerolog.Nop()

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/harentsoaR/hospital-api/internal/errs"
	"github.com/harentsoaR/hospital-api/internal/metrics"
	"github.com/harentsoaR/hospital-api/internal/models"
	"github.com/harentsoaR/hospital-api/internal/services"
	"github.com/harentsoaR/hospital-api/internal/store"
	"github.com/harentsoaR/hospital-api/internal/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memUsers struct {
	mu    sync.Mutex
	users []models.User
}

func (m *memUsers) Create(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return store.ErrDuplicateKey
		}
	}
	u.ID = primitive.NewObjectID()
	m.users = append(m.users, *u)
	return nil
}

func (m *memUsers) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
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
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memUsers) FindDoctors(_ context.Context, f store.DoctorFilter) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.User{}
	for _, u := range m.users {
		if u.Role != models.RoleDoctor ||
			(f.Department != "" && u.DoctorDepartment != f.Department) ||
			(f.FullNameCI != "" && u.FullNameCI != f.FullNameCI) {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

type memAppointments struct {
	mu   sync.Mutex
	apts []models.Appointment
}

func (m *memAppointments) Create(_ context.Context, apt *models.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	apt.ID = primitive.NewObjectID()
	m.apts = append(m.apts, *apt)
	return nil
}

func (m *memAppointments) List(_ context.Context) ([]models.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]models.Appointment{}, m.apts...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memAppointments) Update(_ context.Context, id primitive.ObjectID, u store.AppointmentUpdate) (*models.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.apts {
		if m.apts[i].ID == id {
			if u.Status != nil {
				m.apts[i].Status = *u.Status
			}
			if u.HasVisited != nil {
				m.apts[i].HasVisited = *u.HasVisited
			}
			apt := m.apts[i]
			return &apt, nil
		}
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
	msg.ID = primitive.NewObjectID()
	m.msgs = append(m.msgs, *msg)
	return nil
}

func (m *memMessages) List(_ context.Context) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Message{}, m.msgs...), nil
}

type fakeImageHost struct {
	mu      sync.Mutex
	uploads map[string]string
}

func (h *fakeImageHost) Upload(_ context.Context, key, contentType string, body io.Reader, _ int64) (*models.Avatar, error) {
	if _, err := io.Copy(io.Discard, body); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.uploads[key] = contentType
	return &models.Avatar{PublicID: key, URL: "https://images.test/" + key}, nil
}

func (h *fakeImageHost) Delete(context.Context, string) error { return nil }

type testServer struct {
	router  *gin.Engine
	auth    *services.AuthService
	users   *memUsers
	apts    *memAppointments
	msgs    *memMessages
	images  *fakeImageHost
	metrics *metrics.Collector
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWith(t, nil)
}

// newTestServerWith lets a test adjust the router options before the router is built.
func newTestServerWith(t *testing.T, configure func(*RouterOptions)) *testServer {
	t.Helper()
	log := zerolog.Nop()
	hasher := utils.NewPasswordHasher(bcrypt.MinCost)
	tokens, err := utils.NewTokenIssuer("handler-test-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	ts := &testServer{
		users:   &memUsers{},
		apts:    &memAppointments{},
		msgs:    &memMessages{},
		images:  &fakeImageHost{uploads: map[string]string{}},
		metrics: metrics.NewCollector(prometheus.NewRegistry()),
	}
	ts.auth = services.NewAuthService(ts.users, hasher, tokens, ts.metrics, log)
	svc := Services{
		Auth:         ts.auth,
		Doctors:      services.NewDoctorService(ts.users, hasher, ts.images, services.DoctorOptions{TmpDir: t.TempDir()}, log),
		Appointments: services.NewAppointmentService(ts.apts, ts.users, ts.metrics, log),
		Messages:     services.NewMessageService(ts.msgs, log),
	}
	opts := RouterOptions{
		AllowedOrigins: []string{"http://localhost:5173"},
		MaxBodySize:    5 << 20,
		Metrics:        ts.metrics,
	}
	if configure != nil {
		configure(&opts)
	}
	ts.router, err = NewRouter(NewHandler(svc, CookieOptions{}, log), opts)
	if err != nil {
		t.Fatal(err)
	}
	return ts
}

// response is the union of every success and error payload.
type response struct {
	Success      bool                   `json:"success"`
	Message      string                 `json:"message"`
	Errors       []errs.FieldError      `json:"errors"`
	User         *models.User           `json:"user"`
	Admin        *models.User           `json:"admin"`
	Doctor       *models.DoctorProfile  `json:"doctor"`
	Doctors      []models.DoctorProfile `json:"doctors"`
	Appointment  *models.Appointment    `json:"appointment"`
	Appointments []models.Appointment   `json:"appointments"`
	Messages     []models.Message       `json:"messages"`
}

func (ts *testServer) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) (*httptest.ResponseRecorder, response) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return ts.send(t, req, cookies...)
}

func (ts *testServer) send(t *testing.T, req *http.Request, cookies ...*http.Cookie) (*httptest.ResponseRecorder, response) {
	t.Helper()
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	var resp response
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode %q: %v", w.Body.String(), err)
		}
	}
	return w, resp
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == "token" {
			return c
		}
	}
	t.Fatalf("no session cookie in %v", w.Header().Values("Set-Cookie"))
	return nil
}

// loginAs creates an account directly through the service and logs it in over HTTP.
func (ts *testServer) loginAs(t *testing.T, role models.Role, email string) *http.Cookie {
	t.Helper()
	in := services.AccountInput{FirstName: "Test", LastName: "User", Email: email, Password: "password123"}
	ctx := context.Background()
	switch role {
	case models.RoleAdmin:
		if _, err := ts.auth.CreateAdmin(ctx, in); err != nil {
			t.Fatal(err)
		}
	case models.RolePatient:
		if _, err := ts.auth.Register(ctx, in); err != nil {
			t.Fatal(err)
		}
	}
	w, _ := ts.do(t, http.MethodPost, "/api/v1/user/login", map[string]string{
		"email": email, "password": "password123", "role": string(role),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login as %s: %d %s", role, w.Code, w.Body.String())
	}
	return sessionCookie(t, w)
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 1, 1))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func doctorForm(t *testing.T, fields map[string]string, avatar []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if avatar != nil {
		fw, err := mw.CreateFormFile("docAvatar", "avatar.png")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(avatar); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/user/doctor/addnew", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func newJSONRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	return req
}

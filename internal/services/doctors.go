package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/harentsoaR/hospital-api/internal/errs"
	"github.com/harentsoaR/hospital-api/internal/models"
	"github.com/harentsoaR/hospital-api/internal/store"
	"github.com/harentsoaR/hospital-api/internal/utils"
	"github.com/rs/zerolog"
)

var allowedAvatarTypes = []string{"image/png", "image/jpeg", "image/webp"}

// DoctorInput is the profile part of the add-doctor form.
type DoctorInput struct {
	FirstName        string `json:"firstName" form:"firstName" validate:"required,min=2,max=50"`
	LastName         string `json:"lastName" form:"lastName" validate:"required,min=2,max=50"`
	Email            string `json:"email" form:"email" validate:"required,email"`
	Phone            string `json:"phone" form:"phone" validate:"required"`
	Password         string `json:"password" form:"password" validate:"required,min=8"`
	Gender           string `json:"gender" form:"gender" validate:"required,oneof=Male Female Other"`
	DOB              string `json:"dob" form:"dob" validate:"required,datetime=2006-01-02"`
	GovernmentID     string `json:"governmentId" form:"governmentId" validate:"omitempty,min=8,max=20"`
	DoctorDepartment string `json:"doctorDepartment" form:"doctorDepartment" validate:"required"`
}

func (in *DoctorInput) trim() {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Gender = strings.TrimSpace(in.Gender)
	in.DOB = strings.TrimSpace(in.DOB)
	in.GovernmentID = strings.TrimSpace(in.GovernmentID)
	in.DoctorDepartment = strings.TrimSpace(in.DoctorDepartment)
}

type DoctorService struct {
	accounts
	images    ImageHost
	sort      store.DoctorSort
	maxUpload int64
	tmpDir    string
	log       zerolog.Logger
}

type DoctorOptions struct {
	Sort      store.DoctorSort
	MaxUpload int64
	TmpDir    string
}

func NewDoctorService(users UserStore, hasher *utils.PasswordHasher, images ImageHost, opts DoctorOptions, log zerolog.Logger) *DoctorService {
	if opts.Sort == "" {
		opts.Sort = store.SortByInsertion
	}
	if opts.MaxUpload <= 0 {
		opts.MaxUpload = 5 << 20
	}
	return &DoctorService{
		accounts:  accounts{users: users, hasher: hasher, now: time.Now},
		images:    images,
		sort:      opts.Sort,
		maxUpload: opts.MaxUpload,
		tmpDir:    opts.TmpDir,
		log:       log,
	}
}

// List returns the public profile of every doctor, optionally restricted to one department.
func (s *DoctorService) List(ctx context.Context, department string) ([]models.DoctorProfile, error) {
	doctors, err := s.users.FindDoctors(ctx, store.DoctorFilter{
		Department: strings.TrimSpace(department),
		Sort:       s.sort,
	})
	if err != nil {
		return nil, errs.Internal(err, "Failed to retrieve doctors")
	}
	profiles := make([]models.DoctorProfile, 0, len(doctors))
	for i := range doctors {
		profiles = append(profiles, doctors[i].DoctorProfile())
	}
	return profiles, nil
}

// Add creates a Doctor account. The avatar is staged to a temp file, sniffed,
// and handed to the image host; only the returned reference is stored.
func (s *DoctorService) Add(ctx context.Context, in DoctorInput, avatar io.Reader) (*models.User, error) {
	if avatar == nil {
		return nil, errs.Validation("Doctor avatar is required",
			errs.FieldError{Field: "docAvatar", Message: "docAvatar is required"})
	}
	in.trim()
	if err := validateInput("Please fill all required fields", &in); err != nil {
		return nil, err
	}

	email := normalizeEmail(in.Email)
	taken, err := s.emailTaken(ctx, email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, errs.Conflict("Doctor already exists")
	}

	staged, err := s.stage(avatar)
	if err != nil {
		return nil, err
	}
	defer staged.cleanup()

	key := "avatars/" + uuid.NewString() + staged.mime.Extension()
	ref, err := s.images.Upload(ctx, key, staged.mime.String(), staged.file, staged.size)
	if err != nil {
		return nil, errs.Internal(err, "Failed to upload doctor avatar")
	}

	dob, _ := parseDate(in.DOB)
	u := &models.User{
		FirstName:        in.FirstName,
		LastName:         in.LastName,
		Email:            email,
		Role:             models.RoleDoctor,
		Phone:            in.Phone,
		Gender:           in.Gender,
		DOB:              &dob,
		GovernmentID:     in.GovernmentID,
		DoctorDepartment: in.DoctorDepartment,
		DocAvatar:        ref,
	}
	if err := s.create(ctx, u, in.Password, "Doctor already exists"); err != nil {
		if delErr := s.images.Delete(ctx, ref.PublicID); delErr != nil {
			s.log.Warn().Err(delErr).Str("public_id", ref.PublicID).Msg("orphaned avatar")
		}
		return nil, err
	}

	s.log.Info().Str("user_id", u.ID.Hex()).Str("department", u.DoctorDepartment).Msg("doctor added")
	return u, nil
}

type stagedUpload struct {
	file *os.File
	size int64
	mime *mimetype.MIME
}

func (u *stagedUpload) cleanup() {
	u.file.Close()
	os.Remove(u.file.Name())
}

func (s *DoctorService) stage(r io.Reader) (*stagedUpload, error) {
	f, err := os.CreateTemp(s.tmpDir, "avatar-*")
	if err != nil {
		return nil, errs.Internal(err, "Failed to stage upload")
	}
	staged := &stagedUpload{file: f}

	n, err := io.Copy(f, io.LimitReader(r, s.maxUpload+1))
	if err != nil {
		staged.cleanup()
		return nil, errs.Internal(err, "Failed to stage upload")
	}
	if n == 0 {
		staged.cleanup()
		return nil, errs.Validation("Doctor avatar is required",
			errs.FieldError{Field: "docAvatar", Message: "docAvatar is empty"})
	}
	if n > s.maxUpload {
		staged.cleanup()
		return nil, errs.Validation("Avatar is too large",
			errs.FieldError{Field: "docAvatar", Message: fmt.Sprintf("docAvatar must be at most %d bytes", s.maxUpload)})
	}
	staged.size = n

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		staged.cleanup()
		return nil, errs.Internal(err, "Failed to stage upload")
	}
	mt, err := mimetype.DetectReader(f)
	if err != nil {
		staged.cleanup()
		return nil, errs.Internal(err, "Failed to inspect upload")
	}
	if !mimetype.EqualsAny(mt.String(), allowedAvatarTypes...) {
		staged.cleanup()
		return nil, errs.Validation("Unsupported image format",
			errs.FieldError{Field: "docAvatar", Message: "docAvatar must be a PNG, JPEG or WEBP image"})
	}
	staged.mime = mt

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		staged.cleanup()
		return nil, errs.Internal(err, "Failed to stage upload")
	}
	return staged, nil
}

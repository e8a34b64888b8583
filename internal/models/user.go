package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Role string

const (
	RolePatient Role = "Patient"
	RoleDoctor  Role = "Doctor"
	RoleAdmin   Role = "Admin"
)

// ParseRole accepts the canonical role names only.
func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RolePatient, RoleDoctor, RoleAdmin:
		return r, true
	}
	return "", false
}

// Avatar is a reference to an image held by the external image host.
type Avatar struct {
	PublicID string `bson:"public_id" json:"public_id"`
	URL      string `bson:"url" json:"url"`
}

// User is an account of any role. Role is fixed at creation.
type User struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	FirstName        string             `bson:"firstName" json:"firstName"`
	LastName         string             `bson:"lastName" json:"lastName"`
	FullNameCI       string             `bson:"fullNameCI" json:"-"`
	Email            string             `bson:"email" json:"email"`
	Password         string             `bson:"password" json:"-"`
	Role             Role               `bson:"role" json:"role"`
	Phone            string             `bson:"phone,omitempty" json:"phone,omitempty"`
	Gender           string             `bson:"gender,omitempty" json:"gender,omitempty"`
	DOB              *time.Time         `bson:"dob,omitempty" json:"dob,omitempty"`
	Address          string             `bson:"address,omitempty" json:"address,omitempty"`
	GovernmentID     string             `bson:"governmentId,omitempty" json:"-"`
	DoctorDepartment string             `bson:"doctorDepartment,omitempty" json:"doctorDepartment,omitempty"`
	DocAvatar        *Avatar            `bson:"docAvatar,omitempty" json:"docAvatar,omitempty"`
	CreatedAt        time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time          `bson:"updatedAt" json:"updatedAt"`
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// FoldName lower-cases a display name and collapses whitespace runs so that
// "  Jane   DOE " and "jane doe" compare equal.
func FoldName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// DoctorProfile is the public projection of a doctor account.
type DoctorProfile struct {
	ID               primitive.ObjectID `json:"_id"`
	FirstName        string             `json:"firstName"`
	LastName         string             `json:"lastName"`
	Email            string             `json:"email"`
	Phone            string             `json:"phone,omitempty"`
	Gender           string             `json:"gender,omitempty"`
	DoctorDepartment string             `json:"doctorDepartment"`
	DocAvatar        *Avatar            `json:"docAvatar,omitempty"`
}

func (u *User) DoctorProfile() DoctorProfile {
	return DoctorProfile{
		ID:               u.ID,
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		Email:            u.Email,
		Phone:            u.Phone,
		Gender:           u.Gender,
		DoctorDepartment: u.DoctorDepartment,
		DocAvatar:        u.DocAvatar,
	}
}

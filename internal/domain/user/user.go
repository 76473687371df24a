package user

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"` // never expose hash in JSON
	Name           string    `json:"name"`
	ProfilePicture string    `json:"profilePicture"`
	Department     string    `json:"department"`
	About          string    `json:"about"`
	Hobbies        []string  `json:"hobbies"`
	Friends        []string  `json:"friends"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Summary is the projection returned by the friend candidate queries.
type Summary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already in use")
	ErrValidation = errors.New("validation failed")
)

// ValidationError names the first mandatory attribute that is missing or malformed.
type ValidationError struct {
	Field string
	Rule  string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Field + " " + e.Rule
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

type RegisterRequest struct {
	Name           string   `json:"name" binding:"required"`
	Email          string   `json:"email" binding:"required,email"`
	Password       string   `json:"password" binding:"required,max=72"`
	ProfilePicture string   `json:"profilePicture" binding:"required"`
	Department     string   `json:"department" binding:"required"`
	About          string   `json:"about" binding:"required"`
	Hobbies        []string `json:"hobbies" binding:"required,min=1,dive,required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// NewFromRegisterRequest builds a record ready for the store. The caller
// supplies the already hashed password.
func NewFromRegisterRequest(req RegisterRequest, passwordHash string) User {
	now := time.Now().UTC()

	return User{
		ID:             uuid.NewString(),
		Email:          strings.TrimSpace(req.Email),
		PasswordHash:   passwordHash,
		Name:           req.Name,
		ProfilePicture: req.ProfilePicture,
		Department:     req.Department,
		About:          req.About,
		Hobbies:        req.Hobbies,
		Friends:        []string{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Validate enforces the mandatory attributes every store checks on create.
func Validate(u User) error {
	required := []struct {
		field string
		value string
	}{
		{"email", u.Email},
		{"password", u.PasswordHash},
		{"name", u.Name},
		{"profilePicture", u.ProfilePicture},
		{"department", u.Department},
		{"about", u.About},
	}

	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &ValidationError{Field: r.field, Rule: "required"}
		}
	}

	if len(u.Hobbies) == 0 {
		return &ValidationError{Field: "hobbies", Rule: "required"}
	}

	for _, h := range u.Hobbies {
		if strings.TrimSpace(h) == "" {
			return &ValidationError{Field: "hobbies", Rule: "non_empty"}
		}
	}

	if slices.Contains(u.Friends, u.ID) {
		return &ValidationError{Field: "friends", Rule: "no_self"}
	}

	return nil
}

func (u User) HasFriend(id string) bool {
	return slices.Contains(u.Friends, id)
}

// Excluded is the id set a candidate query must skip: the user and everyone
// already in the friend set.
func (u User) Excluded() []string {
	out := make([]string, 0, len(u.Friends)+1)
	out = append(out, u.ID)
	out = append(out, u.Friends...)
	return out
}

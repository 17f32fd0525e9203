package member

import (
	"errors"
	"strings"
	"time"
)

type Role string

const (
	RoleParticipant Role = "PARTICIPANT"
	RoleHost        Role = "HOST"
	RoleAdmin       Role = "ADMIN"
)

func ParseRole(value string) (Role, bool) {
	switch role := Role(strings.ToUpper(strings.TrimSpace(value))); role {
	case RoleParticipant, RoleHost, RoleAdmin:
		return role, true
	default:
		return "", false
	}
}

type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusSuspended Status = "SUSPENDED"
	StatusWithdrawn Status = "WITHDRAWN"
)

// Member is the directory record. The refresh token columns of the same row
// are owned by the auth stores and are not loaded here.
type Member struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	Role         Role
	Status       Status
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (m Member) IsActive() bool {
	return m.Status == StatusActive
}

type View struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
	Status Status `json:"status"`
}

func (m Member) View() View {
	return View{
		ID:     m.ID,
		Email:  m.Email,
		Name:   m.Name,
		Role:   m.Role,
		Status: m.Status,
	}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var (
	ErrNotFound        = errors.New("member not found")
	ErrEmailDuplicated = errors.New("member email already in use")
)

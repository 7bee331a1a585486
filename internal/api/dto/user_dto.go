package dto

import (
	"time"

	"github.com/spec-kit/service-desk/internal/domain"
)

// DirectoryLoginRequest carries what the identity adapter resolved
// for an authenticated principal.
type DirectoryLoginRequest struct {
	Username string   `json:"username"`
	FullName string   `json:"full_name"`
	Email    string   `json:"email"`
	Location string   `json:"location"`
	Groups   []string `json:"groups"`
}

// LocalLoginRequest is the break-glass admin login payload.
type LocalLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SessionResponse carries the issued credential.
type SessionResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

// AdminUpdateUserRequest overrides workflow attributes.
type AdminUpdateUserRequest struct {
	Role            string   `json:"role"`
	OriginServices  []string `json:"origin_services"`
	AllowedServices []string `json:"allowed_services"`
	Location        string   `json:"location"`
}

// UserResponse mirrors a principal.
type UserResponse struct {
	ID              string      `json:"id"`
	Username        string      `json:"username"`
	FullName        string      `json:"full_name"`
	Email           string      `json:"email"`
	Role            domain.Role `json:"role"`
	OriginServices  []string    `json:"origin_services"`
	AllowedServices []string    `json:"allowed_services"`
	Location        string      `json:"location"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// UserFrom maps a domain user.
func UserFrom(u *domain.User) UserResponse {
	return UserResponse{
		ID:              u.ID,
		Username:        u.Username,
		FullName:        u.FullName,
		Email:           u.Email,
		Role:            u.Role,
		OriginServices:  u.OriginServices,
		AllowedServices: u.AllowedServices,
		Location:        u.Location,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

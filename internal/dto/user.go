package dto

import (
	"time"

	dom "lendtrack/internal/domain"
)

// SignupRequest is the JSON body for POST /signup and POST /user.
// Presence of every field is checked by the service so it can name what is missing.
type SignupRequest struct {
	UserName string `json:"userName"`
	Password string `json:"password"`
	Email    string `json:"email"`
	Address  string `json:"address"`
}

// OAuthRequest is the JSON body for POST /oauth.
type OAuthRequest struct {
	IDToken string `json:"id_token" binding:"required"`
}

// UpdateUserRequest is the JSON body for PUT /user/{id}. Only profile fields
// are accepted; anything else in the body is ignored.
type UpdateUserRequest struct {
	Email   *string `json:"email"`
	Address *string `json:"address"`
}

// UserResponse is a user without credentials.
type UserResponse struct {
	ID        string    `json:"_id"`
	UserName  string    `json:"userName"`
	Email     string    `json:"email"`
	Address   string    `json:"address"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeactivateResponse is returned by DELETE /user/{id}. AffectedItems lists the
// items the user owns and holds; Retired counts those this call made inactive.
type DeactivateResponse struct {
	Message       string   `json:"message"`
	UserID        string   `json:"user_id"`
	AffectedItems []string `json:"affected_items"`
	Retired       int64    `json:"retired"`
}

// ErrorResponse is the body of every 4xx/5xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
}

func NewUserResponse(u dom.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		UserName:  u.UserName,
		Email:     u.Email,
		Address:   u.Address,
		Active:    u.Active,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func NewUserResponses(list []dom.User) []UserResponse {
	out := make([]UserResponse, 0, len(list))
	for _, u := range list {
		out = append(out, NewUserResponse(u))
	}
	return out
}

package dto

import "time"

// AuthLoginRequest is the login request payload. Login is an email or a username.
type AuthLoginRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthRegisterRequest is the registration request payload.
type AuthRegisterRequest struct {
	Username    string `json:"username" binding:"required,min=1,max=20"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	DisplayName string `json:"display_name"`
}

// AuthResponse is returned after successful login/registration.
type AuthResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      UserSummary `json:"user"`
}

// ForgotPasswordRequest asks for a reset-password email.
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ResetPasswordRequest applies a reset-password token.
type ResetPasswordRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// ChangeEmailRequest asks for a change-email confirmation sent to the new address.
type ChangeEmailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

package model

// RegisterRequest is the signup payload. Role is optional and defaults to
// CLIENT. ADMIN is never self-assignable; admin accounts are provisioned
// directly in the store.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role,omitempty" validate:"omitempty,oneof=PROFESSIONAL CLIENT"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type GoogleSignInRequest struct {
	IDToken string `json:"id_token" validate:"required"`
}

// AuthResponse carries the minted token and the public account shape.
type AuthResponse struct {
	Token   string        `json:"token"`
	Account PublicAccount `json:"account"`
}

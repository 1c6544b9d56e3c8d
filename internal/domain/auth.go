package domain

// ============================================================
// Auth requests & responses
// ============================================================

// RegisterRequest is the customer sign-up payload.
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone,omitempty"`
}

// LoginRequest is shared by customer and admin login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the access token and who it belongs to.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	SubjectID   string `json:"subject_id"`
	Role        string `json:"role"`
	Name        string `json:"name"`
}

// Subject roles carried in access tokens.
const (
	SubjectCustomer = "customer"
	SubjectAdmin    = "admin"
)

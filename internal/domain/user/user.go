package user

import "time"

// DefaultRole is the authority string stamped on every self-service signup.
// Authorities are a flat comma-separated list, there is no role hierarchy.
const DefaultRole = "USER,DRIVER"

type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
	FullName string `json:"fullName"`
	Phone    string `json:"phone"`
	Role     string `json:"role"`

	// Empty means the account has no local password (external-identity
	// login only) and can never pass password verification.
	PasswordHash string `json:"-"`

	Enabled      bool       `json:"enabled"`
	TextToSpeech bool       `json:"textToSpeech"`
	Creation     time.Time  `json:"creation"` // set once, never updated
	AddressID    *string    `json:"addressId,omitempty"`
}

type Address struct {
	ID           string `json:"id"`
	Street       string `json:"street"`
	Number       string `json:"number"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	State        string `json:"state"`
	UF           string `json:"uf"`
	Country      string `json:"country"`
}

// Public is the subset of User the API is allowed to return.
type Public struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Username     string `json:"username,omitempty"`
	FullName     string `json:"fullName"`
	Role         string `json:"role"`
	Phone        string `json:"phone"`
	TextToSpeech bool   `json:"textToSpeech"`
}

// AuthResponse is the wire shape returned by login, signup and refresh.
type AuthResponse struct {
	User  Public `json:"user"`
	Token string `json:"token"`
}

func (u User) Public() Public {
	return Public{
		ID:           u.ID,
		Email:        u.Email,
		Username:     u.Username,
		FullName:     u.FullName,
		Role:         u.Role,
		Phone:        u.Phone,
		TextToSpeech: u.TextToSpeech,
	}
}

// HasPassword reports whether the account can log in with a local password.
func (u User) HasPassword() bool {
	return u.PasswordHash != ""
}

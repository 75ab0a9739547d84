package users

import (
	"fmt"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// Summary is the server-provided profile snapshot attached to a session.
// The session layer never interprets it, it is passed through unchanged.
type Summary struct {
	ID          string `json:"id"`                     // Unique identifier for the user
	Username    string `json:"username"`               // Unique username
	DisplayName string `json:"display_name,omitempty"` // Name shown on posts and chat
	Avatar      string `json:"avatar,omitempty"`       // Avatar image reference
}

// Name returns the display name, falling back to the username
func (s *Summary) Name() string {
	if s == nil {
		return ""
	}
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.Username
}

// Account is a ConnectIn user record as held by an auth API.
type Account struct {
	ID           string    `json:"id,omitempty"`
	Username     string    `json:"username,omitempty"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"` // never serialize
	DisplayName  string    `json:"display_name,omitempty"`
	Avatar       string    `json:"avatar,omitempty"`
	DateJoined   time.Time `json:"date_joined,omitempty"`
	Blocked      bool      `json:"blocked,omitempty"`
}

// Summary returns the profile snapshot handed to clients
func (a *Account) Summary() *Summary {
	return &Summary{
		ID:          a.ID,
		Username:    a.Username,
		DisplayName: a.DisplayName,
		Avatar:      a.Avatar,
	}
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

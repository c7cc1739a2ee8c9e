package models

import "time"

// TokenType represents the type of admin API token
type TokenType string

const (
	TokenTypeJWT TokenType = "jwt"
)

// AccessLevel represents the access level of an admin API token
type AccessLevel string

const (
	AccessLevelRead      AccessLevel = "read"
	AccessLevelWrite     AccessLevel = "write"
	AccessLevelReadWrite AccessLevel = "read_write"
	AccessLevelAdmin     AccessLevel = "admin"
)

// Token represents an admin JWT with its claims
type Token struct {
	Sub       string      `json:"sub"`
	Access    AccessLevel `json:"access"`
	Scope     []string    `json:"scope"`
	ExpiresAt time.Time   `json:"exp"`
}

// CreateTokenRequest represents the request to create a new admin token
type CreateTokenRequest struct {
	Type      TokenType   `json:"type" binding:"required"`
	Sub       string      `json:"sub" binding:"required"`
	Access    AccessLevel `json:"access" binding:"required"`
	Scope     []string    `json:"scope" binding:"required"`
	ExpiresAt time.Time   `json:"expires_at" binding:"required"`
}

// CreateTokenResponse represents the response when creating a new admin token
type CreateTokenResponse struct {
	Token     string      `json:"token"`
	Type      TokenType   `json:"type"`
	Sub       string      `json:"sub"`
	Access    AccessLevel `json:"access"`
	Scope     []string    `json:"scope"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// CreateLinkRequest asks the gateway to mint a signed portal link.
type CreateLinkRequest struct {
	Action        ActionName `json:"action" binding:"required"`
	UserID        string     `json:"user_id" binding:"required"`
	ResourceID    string     `json:"resource_id"`
	ExpiryMinutes *int       `json:"expiry_minutes" binding:"omitempty,min=0,max=10080"`
}

// CreateLinkResponse carries the minted link.
type CreateLinkResponse struct {
	URL       string     `json:"url"`
	Action    ActionName `json:"action"`
	UserID    string     `json:"user_id"`
	ExpiresIn int        `json:"expires_in_minutes"`
}

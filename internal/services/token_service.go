package services

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/feedloop/paygate/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

const adminTokenIssuer = "paygate"

// TokenService guards the admin API (link minting, token issuance). It is
// unrelated to portal action tokens, which never leave the gateway's HMAC key.
type TokenService struct {
	masterToken string
	jwtSecret   string
}

func NewTokenService(masterToken, jwtSecret string) *TokenService {
	return &TokenService{
		masterToken: masterToken,
		jwtSecret:   jwtSecret,
	}
}

// ValidateMasterToken checks if the provided token matches the master token
func (s *TokenService) ValidateMasterToken(token string) bool {
	if s.masterToken == "" || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.masterToken)) == 1
}

// CreateJWTToken creates a new JWT token with the specified claims
func (s *TokenService) CreateJWTToken(req *models.CreateTokenRequest) (string, error) {
	if s.jwtSecret == "" {
		return "", errors.New("jwt secret is not configured")
	}
	claims := jwt.MapClaims{
		"iss":    adminTokenIssuer,
		"sub":    req.Sub,
		"access": string(req.Access),
		"scope":  req.Scope,
		"exp":    req.ExpiresAt.Unix(),
		"iat":    time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("signing admin token: %w", err)
	}
	return tokenString, nil
}

// ValidateJWTToken validates a JWT token and returns its claims
func (s *TokenService) ValidateJWTToken(tokenString string) (*models.Token, error) {
	if s.jwtSecret == "" {
		return nil, errors.New("jwt secret is not configured")
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.jwtSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(adminTokenIssuer))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	sub, _ := claims["sub"].(string)
	access, _ := claims["access"].(string)
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, errors.New("token has no expiry")
	}

	return &models.Token{
		Sub:       sub,
		Access:    models.AccessLevel(access),
		Scope:     toStringSlice(claims["scope"]),
		ExpiresAt: exp.Time,
	}, nil
}

// ValidateScope checks if the token's scope includes all required tags
func (s *TokenService) ValidateScope(token *models.Token, requiredTags []string) bool {
	if token.Access == models.AccessLevelAdmin {
		return true
	}

	scopeMap := make(map[string]bool, len(token.Scope))
	for _, tag := range token.Scope {
		scopeMap[tag] = true
	}
	for _, tag := range requiredTags {
		if !scopeMap[tag] {
			return false
		}
	}
	return true
}

// ValidateAccess checks if the token has the required access level
func (s *TokenService) ValidateAccess(token *models.Token, requiredAccess models.AccessLevel) bool {
	accessLevels := map[models.AccessLevel]int{
		models.AccessLevelRead:      1,
		models.AccessLevelWrite:     2,
		models.AccessLevelReadWrite: 3,
		models.AccessLevelAdmin:     4,
	}

	if token.Access == models.AccessLevelAdmin {
		return true
	}
	return accessLevels[token.Access] >= accessLevels[requiredAccess]
}

func toStringSlice(i interface{}) []string {
	slice, ok := i.([]interface{})
	if !ok {
		return nil
	}
	result := make([]string, 0, len(slice))
	for _, v := range slice {
		if s, ok := v.(string); ok {
			result = append(result, s)
		}
	}
	return result
}

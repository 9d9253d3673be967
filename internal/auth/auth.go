package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	jwtIssuer   = "cantine-api"
	jwtAudience = "cantine-users"

	AccessTokenTTL  = 15 * time.Minute
	RefreshTokenTTL = 7 * 24 * time.Hour

	RoleAdmin  = "admin"
	RoleMember = "member"

	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

var (
	ErrTokenExpired     = errors.New("token expired")
	ErrInvalidToken     = errors.New("invalid token")
	ErrInvalidTokenType = errors.New("invalid token type")
	ErrEmptyJWTSecret   = errors.New("jwt secret cannot be empty")
)

// JWTClaims carries the user identity. UserID is the hex form of the
// user's ObjectID and is mirrored in the registered subject claim.
type JWTClaims struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// RoleFor maps the admin flag stored on a user to a token role.
func RoleFor(admin bool) string {
	if admin {
		return RoleAdmin
	}
	return RoleMember
}

func HashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

func CheckPassword(hashedPassword, plainPassword string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(plainPassword))
	return err == nil
}

func generateToken(userID, email, role, tokenType, secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", ErrEmptyJWTSecret
	}

	now := time.Now()

	claims := &JWTClaims{
		UserID:    userID,
		Email:     email,
		Role:      role,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    jwtIssuer,
			Audience:  []string{jwtAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func GenerateAccessToken(userID, email, role, secret string) (string, error) {
	return generateToken(userID, email, role, tokenTypeAccess, secret, AccessTokenTTL)
}

func GenerateRefreshToken(userID, email, role, secret string) (string, error) {
	return generateToken(userID, email, role, tokenTypeRefresh, secret, RefreshTokenTTL)
}

func GenerateTokens(userID, email, role, accessSecret, refreshSecret string) (accessToken, refreshToken string, err error) {
	accessToken, err = GenerateAccessToken(userID, email, role, accessSecret)
	if err != nil {
		return "", "", err
	}

	refreshToken, err = GenerateRefreshToken(userID, email, role, refreshSecret)
	if err != nil {
		return "", "", err
	}

	return accessToken, refreshToken, nil
}

func ValidateToken(tokenString, secret string) (*JWTClaims, error) {
	if secret == "" {
		return nil, ErrEmptyJWTSecret
	}

	token, err := jwt.ParseWithClaims(
		tokenString,
		&JWTClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(secret), nil
		},
		jwt.WithIssuer(jwtIssuer),
		jwt.WithAudience(jwtAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, err
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// RefreshAccessToken checks that refreshToken is a valid refresh token and
// issues a new access token for the same identity.
func RefreshAccessToken(refreshToken, refreshSecret, accessSecret string) (string, *JWTClaims, error) {
	claims, err := ValidateToken(refreshToken, refreshSecret)
	if err != nil {
		return "", nil, err
	}

	if claims.TokenType != tokenTypeRefresh {
		return "", nil, ErrInvalidTokenType
	}

	newAccessToken, err := GenerateAccessToken(claims.UserID, claims.Email, claims.Role, accessSecret)
	if err != nil {
		return "", nil, err
	}

	return newAccessToken, claims, nil
}

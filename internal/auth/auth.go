package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("token expired")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

const roleAdmin = "admin"

// Admin is the single back-office account configured through the environment.
type Admin struct {
	Email        string
	Name         string
	PasswordHash string
}

// Claims is what a validated admin token carries.
type Claims struct {
	Email string
	Name  string
	Role  string
	Exp   time.Time
}

// Token is a signed bearer token and its expiry.
type Token struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Service handles admin authentication.
type Service struct {
	jwtSecret []byte
	tokenExp  time.Duration
	admin     Admin
	now       func() time.Time
}

// NewService creates a new authentication service.
func NewService(secret string, tokenExp time.Duration, admin Admin) *Service {
	if tokenExp <= 0 {
		tokenExp = 12 * time.Hour
	}
	return &Service{jwtSecret: []byte(secret), tokenExp: tokenExp, admin: admin, now: time.Now}
}

// HashPassword hashes a password using bcrypt.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(bytes), nil
}

// Login checks the credentials against the configured admin and issues a token.
func (s *Service) Login(email, password string) (Token, error) {
	if s.admin.PasswordHash == "" || !strings.EqualFold(strings.TrimSpace(email), s.admin.Email) {
		return Token{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.admin.PasswordHash), []byte(password)); err != nil {
		return Token{}, ErrInvalidCredentials
	}
	return s.GenerateToken(s.admin.Email, s.admin.Name)
}

// GenerateToken signs an HS256 admin token.
func (s *Service) GenerateToken(email, name string) (Token, error) {
	now := s.now().UTC()
	exp := now.Add(s.tokenExp)
	claims := jwt.MapClaims{
		"sub":  email,
		"name": name,
		"role": roleAdmin,
		"exp":  exp.Unix(),
		"iat":  now.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return Token{}, err
	}
	return Token{Token: signed, ExpiresAt: exp}, nil
}

// ValidateToken parses a token, with or without the "Bearer " prefix.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	tokenString = strings.TrimSpace(strings.TrimPrefix(tokenString, "Bearer "))
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	email, _ := claims["sub"].(string)
	name, _ := claims["name"].(string)
	role, _ := claims["role"].(string)
	if email == "" || role != roleAdmin {
		return nil, ErrInvalidToken
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, ErrInvalidToken
	}
	return &Claims{Email: email, Name: name, Role: role, Exp: exp.Time}, nil
}

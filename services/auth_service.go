package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"estate-backend/models"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid token")
)

// Session identifies the admin behind a request.
type Session struct {
	AdminID uint
	Email   string
}

type sessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type AuthService struct {
	DB     *gorm.DB
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewAuthService(db *gorm.DB, secret string, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthService{DB: db, secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Login checks the credentials of an active admin and returns a signed token.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var admin models.Admin
	err := s.DB.WithContext(ctx).
		Where("email = ? AND is_active = ?", email, true).
		First(&admin).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("find admin: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(admin.Password), []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}

	return s.IssueToken(Session{AdminID: admin.ID, Email: admin.Email})
}

func (s *AuthService) IssueToken(session Session) (string, error) {
	now := s.now()
	claims := sessionClaims{
		Email: session.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(session.AdminID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

func (s *AuthService) ParseToken(raw string) (*Session, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return nil, ErrInvalidToken
	}
	return &Session{AdminID: uint(id), Email: claims.Email}, nil
}

// Authenticate parses a token and confirms its admin is still active, so
// deactivation takes effect before the token expires.
func (s *AuthService) Authenticate(ctx context.Context, raw string) (*Session, error) {
	session, err := s.ParseToken(raw)
	if err != nil {
		return nil, err
	}

	var count int64
	err = s.DB.WithContext(ctx).Model(&models.Admin{}).
		Where("id = ? AND is_active = ?", session.AdminID, true).
		Count(&count).Error
	if err != nil {
		return nil, fmt.Errorf("check admin: %w", err)
	}
	if count == 0 {
		return nil, ErrInvalidToken
	}
	return session, nil
}

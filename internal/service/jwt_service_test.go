package service

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestJWTService_IssueParseDeviceToken(t *testing.T) {
	svc := NewJWTService("secret", 15*time.Minute)

	tok, err := svc.RegisterDevice()
	if err != nil {
		t.Fatalf("register device: %v", err)
	}
	if tok.DeviceID == "" || tok.AccessToken == "" {
		t.Fatalf("expected device id and token, got %+v", tok)
	}
	if tok.ExpiresIn != int64((15 * time.Minute).Seconds()) {
		t.Fatalf("unexpected expires_in %d", tok.ExpiresIn)
	}

	claims, err := svc.ParseAccessToken(tok.AccessToken)
	if err != nil {
		t.Fatalf("parse access: %v", err)
	}
	if claims.DeviceID != tok.DeviceID || claims.Subject != tok.DeviceID {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestJWTService_RejectsEmptySecret(t *testing.T) {
	svc := NewJWTService("", time.Minute)
	if _, err := svc.IssueDeviceToken("d1"); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid on empty secret, got %v", err)
	}
	if _, err := svc.IssueDeviceToken("  "); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid on empty device, got %v", err)
	}
}

func TestJWTService_Expired(t *testing.T) {
	svc := NewJWTService("secret", time.Minute)
	issuedAt := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return issuedAt }

	tok, err := svc.IssueDeviceToken("d1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	svc.now = func() time.Time { return issuedAt.Add(2 * time.Minute) }
	if _, err := svc.ParseAccessToken(tok.AccessToken); !errors.Is(err, ErrJWTExpired) {
		t.Fatalf("expected ErrJWTExpired, got %v", err)
	}
}

func TestJWTService_RejectsForgedClaims(t *testing.T) {
	svc := NewJWTService("secret", 15*time.Minute)
	now := time.Now().UTC()

	tests := []struct {
		name   string
		claims Claims
		key    string
	}{
		{
			name: "issuer ajeno",
			claims: Claims{DeviceID: "d1", TokenType: "access", RegisteredClaims: jwt.RegisteredClaims{
				Issuer: "other-issuer", Subject: "d1", ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
			}},
			key: "secret",
		},
		{
			name: "subject distinto",
			claims: Claims{DeviceID: "d1", TokenType: "access", RegisteredClaims: jwt.RegisteredClaims{
				Issuer: "wellbeing-companion", Subject: "d2", ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
			}},
			key: "secret",
		},
		{
			name: "tipo refresh",
			claims: Claims{DeviceID: "d1", TokenType: "refresh", RegisteredClaims: jwt.RegisteredClaims{
				Issuer: "wellbeing-companion", Subject: "d1", ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
			}},
			key: "secret",
		},
		{
			name: "firma con otra clave",
			claims: Claims{DeviceID: "d1", TokenType: "access", RegisteredClaims: jwt.RegisteredClaims{
				Issuer: "wellbeing-companion", Subject: "d1", ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
			}},
			key: "other",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tt.claims).SignedString([]byte(tt.key))
			if err != nil {
				t.Fatalf("sign token: %v", err)
			}
			if _, err := svc.ParseAccessToken(signed); !errors.Is(err, ErrJWTInvalid) {
				t.Fatalf("expected ErrJWTInvalid, got %v", err)
			}
		})
	}
}

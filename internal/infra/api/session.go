package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"crazeai/internal/infra/logging"
)

const SessionCookie = "craze_session"

// SessionManager mints and verifies the anonymous session token. The token subject
// is the session UUID that keys rate limits, the name mirror and the exchange log.
type SessionManager struct {
	secret []byte
	secure bool
	ttl    time.Duration
	now    func() time.Time
}

func NewSessionManager(secret string, secure bool, ttl time.Duration) *SessionManager {
	return &SessionManager{secret: []byte(secret), secure: secure, ttl: ttl, now: time.Now}
}

type SessionClaims struct {
	jwt.RegisteredClaims
}

// Mint issues a token for sessionID and sets it as an HttpOnly cookie.
func (m *SessionManager) Mint(w http.ResponseWriter, sessionID string) (string, error) {
	now := m.now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			Subject:   sessionID,
			Issuer:    "crazeai",
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return signed, nil
}

// ParseFromRequest accepts "Authorization: Bearer <jwt>" or the session cookie.
func (m *SessionManager) ParseFromRequest(r *http.Request) (string, error) {
	if hdr := r.Header.Get("Authorization"); hdr != "" && strings.HasPrefix(strings.ToLower(hdr), "bearer ") {
		return m.parse(strings.TrimSpace(hdr[7:]))
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return m.parse(c.Value)
	}
	return "", errors.New("missing token")
}

func (m *SessionManager) parse(tok string) (string, error) {
	claims := &SessionClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now))
	if err != nil || !tkn.Valid {
		return "", errors.New("invalid token")
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return "", errors.New("invalid session subject")
	}
	return claims.Subject, nil
}

// Middleware resolves the session, minting a fresh one when the request carries
// none (or an invalid one), and stores its ID on the request context.
func (m *SessionManager) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sid, err := m.ParseFromRequest(r)
			if err != nil {
				sid = uuid.NewString()
				if _, err := m.Mint(w, sid); err != nil {
					writeError(w, http.StatusInternalServerError, "session unavailable", err.Error())
					return
				}
			}
			ctx := logging.WithSessID(r.Context(), sid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

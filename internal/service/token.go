package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vogiaan1904/ticketbottle-lightning/config"
)

// TokenIssuer signs the check-in token a ticket holder presents at the door.
type TokenIssuer interface {
	Issue(eventID, ticketID string) (string, time.Time, error)
	Parse(token string) (eventID, ticketID string, err error)
}

type ticketClaims struct {
	EventID  string `json:"event_id"`
	TicketID string `json:"ticket_id"`
	jwt.RegisteredClaims
}

type jwtTokenIssuer struct {
	conf config.JWTConfig
	now  func() time.Time
}

func NewTokenIssuer(conf config.JWTConfig) TokenIssuer {
	return &jwtTokenIssuer{
		conf: conf,
		now:  time.Now,
	}
}

func (i *jwtTokenIssuer) Issue(eventID, ticketID string) (string, time.Time, error) {
	now := i.now()
	expAt := now.Add(i.conf.Expiry)

	claims := ticketClaims{
		EventID:  eventID,
		TicketID: ticketID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ticketID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString([]byte(i.conf.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenStr, expAt, nil
}

func (i *jwtTokenIssuer) Parse(tokenStr string) (string, string, error) {
	var claims ticketClaims
	_, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		return []byte(i.conf.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	if claims.EventID == "" || claims.TicketID == "" {
		return "", "", ErrTokenInvalid
	}

	return claims.EventID, claims.TicketID, nil
}

package domain

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxNetworkDepth bounds every referral-graph traversal.
// Levels beyond 3 exist in the forest but are economically inert.
const MaxNetworkDepth = 3

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// User is a registered identity in the referral forest.
// ReferrerID is assigned once at creation and never re-parented, which keeps
// the forest acyclic by construction.
type User struct {
	UserID          uuid.UUID  `json:"id"`
	Name            string     `json:"name"`
	ReferralCode    *string    `json:"referralCode,omitempty"`
	ReferrerID      *uuid.UUID `json:"referrerId,omitempty"`
	IsKOL           bool       `json:"isKOL"`
	HasWaivedFees   bool       `json:"hasWaivedFees"`
	ReferralCount   int        `json:"-"`
	CommissionCount int        `json:"-"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// ValidateRegistrationInput checks the user-supplied registration fields.
func ValidateRegistrationInput(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	return nil
}

// NormalizeReferralCode canonicalizes caller-supplied codes before lookup.
func NormalizeReferralCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// NewReferralCode draws a random code from the uppercase alphanumeric alphabet.
// Uniqueness is enforced by storage; callers retry on collision with a bounded budget.
func NewReferralCode(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("%w: code length must be positive", ErrInvalidInput)
	}
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}

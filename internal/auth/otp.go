package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"
)

const (
	otpTTL         = 5 * time.Minute
	otpMaxAttempts = 3
)

type otpEntry struct {
	code      string
	expiresAt time.Time
	attempts  int
}

// OTPStore holds one-time codes in memory, keyed by the phone number or
// email address they were issued to. Codes expire after five minutes and
// are consumed on successful verification. A wrong code counts as an
// attempt but keeps the entry alive so the owner can retry; three failed
// attempts invalidate it.
type OTPStore struct {
	mu      sync.Mutex
	entries map[string]*otpEntry
	// devCode, when non-empty, is issued for every request instead of a
	// random code.
	devCode string
	now     func() time.Time
}

func NewOTPStore(devCode string) *OTPStore {
	return &OTPStore{
		entries: make(map[string]*otpEntry),
		devCode: devCode,
		now:     time.Now,
	}
}

// Issue generates and stores a six-digit code for the given destination,
// replacing any outstanding code.
func (s *OTPStore) Issue(destination string) (string, error) {
	code := s.devCode
	if code == "" {
		n, err := rand.Int(rand.Reader, big.NewInt(1000000))
		if err != nil {
			return "", fmt.Errorf("generate otp: %w", err)
		}
		code = fmt.Sprintf("%06d", n.Int64())
	}

	s.mu.Lock()
	s.entries[destination] = &otpEntry{
		code:      code,
		expiresAt: s.now().Add(otpTTL),
	}
	s.mu.Unlock()

	return code, nil
}

// Verify checks the code for a destination. A successful match consumes
// the stored code; subsequent verifications fail until a new one is issued.
func (s *OTPStore) Verify(destination, code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[destination]
	if !ok {
		return false
	}

	if s.now().After(entry.expiresAt) {
		delete(s.entries, destination)
		return false
	}

	if entry.attempts >= otpMaxAttempts {
		delete(s.entries, destination)
		return false
	}

	if entry.code != code {
		entry.attempts++
		return false
	}

	delete(s.entries, destination)
	return true
}

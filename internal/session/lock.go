package session

import (
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/Dmedina-coder/SuperGramola/internal/shared"
	"golang.org/x/crypto/scrypt"
)

// Scrypt parameters for the kiosk PIN. N=16384 (2^14), r=8, p=1 are
// recommended for interactive use.
const (
	scryptN      = 16384
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
)

const pinLength = 4

// Lock is the kiosk PIN lock. Two-phase contract: confirming a 4-digit code
// while unlocked records it as the unlock secret and engages the lock;
// confirming while locked compares against the recorded secret. While
// engaged, Engaged() gates every action in the session.
type Lock struct {
	mu      sync.Mutex
	engaged bool
	pinHash string
	salt    string
}

// NewLock creates an unlocked Lock.
func NewLock() *Lock {
	return &Lock{}
}

// Engaged reports whether the lock is currently engaged. The orchestrator
// checks this single boolean before executing any gated action.
func (l *Lock) Engaged() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.engaged
}

// Sanitize strips non-digit characters from input and caps it at the PIN
// length. Stray characters are dropped, not rejected.
func Sanitize(input string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, input)
	if len(digits) > pinLength {
		digits = digits[:pinLength]
	}
	return digits
}

// Confirm applies a 4-digit code to the lock.
//
// Unlocked: the code becomes the unlock secret and the lock engages.
// Locked: a matching code unlocks and clears the secret; a mismatch returns
// an error and leaves the lock and secret untouched (the caller clears only
// its input buffer).
func (l *Lock) Confirm(pin string) error {
	if len(pin) != pinLength {
		return fmt.Errorf("%w: PIN must be %d digits", shared.ErrInvalidInput, pinLength)
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return fmt.Errorf("%w: PIN must be numeric", shared.ErrInvalidInput)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.engaged {
		salt := shared.GenerateID()
		hash, err := hashPIN(pin, salt)
		if err != nil {
			return err
		}
		l.salt = salt
		l.pinHash = hash
		l.engaged = true
		return nil
	}

	hash, err := hashPIN(pin, l.salt)
	if err != nil {
		return err
	}
	if hash != l.pinHash {
		return fmt.Errorf("%w: incorrect PIN", shared.ErrLockEngaged)
	}

	l.engaged = false
	l.pinHash = ""
	l.salt = ""
	return nil
}

func hashPIN(pin, salt string) (string, error) {
	dk, err := scrypt.Key([]byte(pin), []byte(strings.ToLower(salt)), scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return "", fmt.Errorf("scrypt key derivation failed: %w", err)
	}
	return hex.EncodeToString(dk), nil
}

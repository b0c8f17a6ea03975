package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"regexp"
)

// Session token format: stx_{prefix}_{secret}
// Example: stx_7a9x3k_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b9c7a5f3d2e1b9c7a5f3d2e1b
const (
	TokenPrefixLen = 8  // hex encoded 4 bytes
	TokenSecretLen = 64 // hex encoded 32 bytes

	// OTPLength is the number of digits in a locally generated OTP.
	OTPLength = 6
)

var (
	// ErrInvalidTokenFormat indicates the session token is malformed.
	ErrInvalidTokenFormat = errors.New("invalid session token format")

	tokenFormatRegex = regexp.MustCompile(`^stx_([a-f0-9]{8})_([a-f0-9]{64})$`)
	otpFormatRegex   = regexp.MustCompile(`^[0-9]{4,10}$`)
)

// GeneratedToken contains the parts of a newly issued session token.
type GeneratedToken struct {
	Plaintext string // Sent to the browser in the session cookie only
	Hash      string // Argon2id hash for storage
	Prefix    string // Lookup key
}

// GenerateSessionToken creates a new random session token and its hash.
func GenerateSessionToken() (*GeneratedToken, error) {
	prefixBytes := make([]byte, TokenPrefixLen/2)
	if _, err := rand.Read(prefixBytes); err != nil {
		return nil, fmt.Errorf("generate prefix: %w", err)
	}
	prefix := hex.EncodeToString(prefixBytes)

	secretBytes := make([]byte, TokenSecretLen/2)
	if _, err := rand.Read(secretBytes); err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}

	plaintext := fmt.Sprintf("stx_%s_%s", prefix, hex.EncodeToString(secretBytes))

	hash, err := HashSecret(plaintext, TokenParams)
	if err != nil {
		return nil, fmt.Errorf("hash token: %w", err)
	}

	return &GeneratedToken{
		Plaintext: plaintext,
		Hash:      hash,
		Prefix:    prefix,
	}, nil
}

// ParseSessionToken returns the lookup prefix of a session token.
func ParseSessionToken(token string) (string, error) {
	matches := tokenFormatRegex.FindStringSubmatch(token)
	if matches == nil {
		return "", ErrInvalidTokenFormat
	}
	return matches[1], nil
}

// GenerateOTP returns a uniformly random numeric code of OTPLength digits.
func GenerateOTP() (string, error) {
	limit := big.NewInt(1)
	for i := 0; i < OTPLength; i++ {
		limit.Mul(limit, big.NewInt(10))
	}

	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}

	return fmt.Sprintf("%0*d", OTPLength, n.Int64()), nil
}

// ValidOTPFormat reports whether code looks like an OTP (4-10 digits).
func ValidOTPFormat(code string) bool {
	return otpFormatRegex.MatchString(code)
}

package service

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sharetaxi/sharetaxi/internal/model"
)

// Validation limits.
const (
	// MaxFullNameLength is the maximum length of a profile name in characters.
	MaxFullNameLength = 100
	// MaxEmailLength is the maximum length of an email address.
	MaxEmailLength = 254
)

// e164Pattern matches an E.164 phone number.
var e164Pattern = regexp.MustCompile(`^\+[1-9]\d{9,14}$`)

// phoneSeparators are stripped before validation.
var phoneSeparators = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")

// NormalizePhone converts user input to E.164.
// Ten-digit numbers are treated as Indian mobiles and get +91; a leading
// 0 or 91 without the plus is accepted for the same numbers.
func NormalizePhone(raw string) (string, error) {
	phone := phoneSeparators.Replace(strings.TrimSpace(raw))

	switch {
	case strings.HasPrefix(phone, "+"):
	case len(phone) == 10:
		phone = "+91" + phone
	case len(phone) == 11 && strings.HasPrefix(phone, "0"):
		phone = "+91" + phone[1:]
	case len(phone) == 12 && strings.HasPrefix(phone, "91"):
		phone = "+" + phone
	}

	if !e164Pattern.MatchString(phone) {
		return "", ErrInvalidPhone
	}
	return phone, nil
}

// MaskPhone hides all but the last four digits, for logs.
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}

// ValidateMessageBody trims body and checks its length.
func ValidateMessageBody(body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", ErrEmptyMessage
	}
	if utf8.RuneCountInString(body) > model.MaxMessageLength {
		return "", ErrMessageTooLong
	}
	return body, nil
}

// ValidateFullName trims name and rejects control characters.
// An empty name is allowed and clears the field.
func ValidateFullName(name string) (string, error) {
	name = strings.Join(strings.Fields(name), " ")
	if utf8.RuneCountInString(name) > MaxFullNameLength {
		return "", ErrInvalidFullName
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return "", ErrInvalidFullName
		}
	}
	return name, nil
}

// ValidateEmail trims and lowercases email. An empty email is allowed.
func ValidateEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", nil
	}
	if len(email) > MaxEmailLength {
		return "", ErrInvalidEmail
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@"):], ".") {
		return "", ErrInvalidEmail
	}
	return email, nil
}

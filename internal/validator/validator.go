// Package validator checks and sanitizes user supplied names, addresses and paging.
package validator

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	gomail "github.com/emersion/go-message/mail"
)

// Validation errors
var (
	ErrInvalidEmail     = errors.New("invalid email format")
	ErrInvalidDomain    = errors.New("invalid domain format")
	ErrInvalidLocalPart = errors.New("invalid local part format")
	ErrInvalidColor     = errors.New("invalid color, expected #rgb or #rrggbb")
	ErrInputTooLong     = errors.New("input exceeds maximum length")
	ErrInvalidCharacter = errors.New("input contains invalid characters")
	ErrEmptyInput       = errors.New("input cannot be empty")
)

var (
	// labels of lowercase alphanumerics and hyphens, at most 63 characters each
	domainRegex = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?(\.[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?)*$`)

	localPartRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9._+-]{0,63}$`)

	colorRegex = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)
)

// Name limits for user folders and tags
const (
	MaxFolderNameLength = 100
	MaxTagNameLength    = 64
)

// ValidateEmail validates an RFC 5322 address of at most 254 characters
func ValidateEmail(email string) error {
	email = strings.TrimSpace(strings.ToLower(email))

	if email == "" {
		return ErrEmptyInput
	}
	if utf8.RuneCountInString(email) > 254 {
		return ErrInputTooLong
	}
	if _, err := gomail.ParseAddress(email); err != nil {
		return ErrInvalidEmail
	}
	return nil
}

// ValidateMailboxAddress checks an address a mailbox can be created for.
// It is stricter than ValidateEmail: no display name, plain ASCII parts only.
func ValidateMailboxAddress(address string) error {
	address = strings.TrimSpace(strings.ToLower(address))
	if err := ValidateEmail(address); err != nil {
		return err
	}

	at := strings.LastIndex(address, "@")
	if at <= 0 {
		return ErrInvalidEmail
	}
	if err := ValidateLocalPart(address[:at]); err != nil {
		return err
	}
	return ValidateDomain(address[at+1:])
}

// ValidateDomain validates a DNS domain name
func ValidateDomain(domain string) error {
	domain = strings.TrimSpace(strings.ToLower(domain))

	if domain == "" {
		return ErrEmptyInput
	}
	if len(domain) > 253 {
		return ErrInputTooLong
	}
	if !domainRegex.MatchString(domain) {
		return ErrInvalidDomain
	}
	return nil
}

// ValidateLocalPart validates the part of an address before the @
func ValidateLocalPart(localPart string) error {
	localPart = strings.TrimSpace(strings.ToLower(localPart))

	if localPart == "" {
		return ErrEmptyInput
	}
	if len(localPart) > 64 {
		return ErrInputTooLong
	}
	if !localPartRegex.MatchString(localPart) {
		return ErrInvalidLocalPart
	}
	return nil
}

// ValidateName checks a display name such as a user folder or tag name and
// returns it trimmed.
func ValidateName(name string, maxLength int) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyInput
	}
	if strings.ContainsFunc(name, isControl) {
		return "", ErrInvalidCharacter
	}
	if maxLength > 0 && utf8.RuneCountInString(name) > maxLength {
		return "", ErrInputTooLong
	}
	return name, nil
}

// ValidateColor accepts an empty color or a #rgb / #rrggbb hex color
func ValidateColor(color string) error {
	if color == "" || colorRegex.MatchString(color) {
		return nil
	}
	return ErrInvalidColor
}

// Pagination constants
const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// ValidatePagination clamps limit to 1..MaxLimit and offset to >= 0
func ValidatePagination(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func isControl(r rune) bool {
	return r < 32 || r == 127
}

// SanitizeFilename removes path separators and control characters from an
// attachment file name.
func SanitizeFilename(filename string) string {
	filename = strings.ReplaceAll(filename, "/", "_")
	filename = strings.ReplaceAll(filename, "\\", "_")
	filename = strings.ReplaceAll(filename, "..", "_")
	filename = strings.ReplaceAll(filename, "\x00", "")

	filename = strings.Map(func(r rune) rune {
		if isControl(r) {
			return -1
		}
		return r
	}, filename)
	filename = strings.TrimSpace(filename)

	// common filesystem limit
	if utf8.RuneCountInString(filename) > 255 {
		runes := []rune(filename)
		filename = string(runes[:255])
	}

	if filename == "" {
		return "unnamed"
	}
	return filename
}

// SanitizeString removes control characters, trims whitespace and enforces
// maxLength when it is positive.
func SanitizeString(input string, maxLength int) string {
	input = strings.Map(func(r rune) rune {
		if isControl(r) {
			return -1
		}
		return r
	}, input)
	input = strings.TrimSpace(input)

	if maxLength > 0 && utf8.RuneCountInString(input) > maxLength {
		runes := []rune(input)
		input = string(runes[:maxLength])
	}
	return input
}

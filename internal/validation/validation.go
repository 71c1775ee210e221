// Package validation holds the shape checks shared by the registry managers.
package validation

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// MinPasswordLength is the minimum number of characters of a password
const MinPasswordLength = 8

var (
	userIDPattern      = regexp.MustCompile(`^[A-Z]{4}$`)
	serviceCodePattern = regexp.MustCompile(`^[A-Z0-9]{2,10}$`)

	validate = validator.New()
)

// NormalizeUserID trims and upper-cases a user id
func NormalizeUserID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// IsValidUserID reports whether id is exactly four upper-case letters
func IsValidUserID(id string) bool {
	return userIDPattern.MatchString(id)
}

// IsValidPassword reports whether password is long enough
func IsValidPassword(password string) bool {
	return utf8.RuneCountInString(password) >= MinPasswordLength
}

// IsValidEmail reports whether email has the shape of an address
func IsValidEmail(email string) bool {
	return validate.Var(email, "required,email") == nil
}

// NormalizeServiceCode trims and upper-cases a service code
func NormalizeServiceCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsValidServiceCode reports whether code is 2 to 10 upper-case alphanumerics
func IsValidServiceCode(code string) bool {
	return serviceCodePattern.MatchString(code)
}

// NormalizeLogin trims and lower-cases a council login
func NormalizeLogin(login string) string {
	return strings.ToLower(strings.TrimSpace(login))
}

// IsValidID reports whether id can be a surrogate key
func IsValidID(id int64) bool {
	return id > 0
}

// UniqueInt64 returns ids without duplicates, keeping first occurrences
func UniqueInt64(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

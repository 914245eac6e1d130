package validation

import (
	"errors"
	"regexp"
	"strings"
)

var broadcastPhonePattern = regexp.MustCompile(`^\+?[0-9]{10,15}$`)

// ValidateBroadcastPhone accepts an optional leading + followed by 10-15
// digits. Non-conforming input is rejected, never normalized; lenient
// normalization lives in the recipients parser instead.
func ValidateBroadcastPhone(phone string) error {
	trimmed := strings.TrimSpace(phone)
	if trimmed == "" {
		return errors.New("phone number cannot be empty")
	}
	if !broadcastPhonePattern.MatchString(trimmed) {
		return errors.New("phone number must be 10-15 digits with an optional leading +")
	}
	return nil
}

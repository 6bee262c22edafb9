// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonepass Contributors

package auth

import "regexp"

// PhoneNumberLength is the length of a mainland mobile number.
const PhoneNumberLength = 11

// phoneNumberRegex matches numbers that:
// - are exactly 11 ASCII digits
// - start with 1
// - have 3-9 as the second digit
var phoneNumberRegex = regexp.MustCompile(`^1[3-9][0-9]{9}$`)

// ValidPhoneNumber reports whether phone is a well-formed mobile number.
// No normalization is applied: country codes, spaces and dashes are rejected.
func ValidPhoneNumber(phone string) bool {
	return len(phone) == PhoneNumberLength && phoneNumberRegex.MatchString(phone)
}

// maskPhone hides the middle digits of a phone number for log output.
func maskPhone(phone string) string {
	if len(phone) != PhoneNumberLength {
		return "***"
	}
	return phone[:3] + "****" + phone[7:]
}

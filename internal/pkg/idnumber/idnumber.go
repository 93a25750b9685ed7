// Package idnumber validates and masks South African ID numbers.
package idnumber

import "errors"

var (
	ErrInvalidLength   = errors.New("ID number must be exactly 13 digits")
	ErrInvalidChecksum = errors.New("ID number checksum is invalid")
)

// Validate checks a 13-digit SA ID number using the Luhn algorithm.
func Validate(idNumber string) error {
	if len(idNumber) != 13 {
		return ErrInvalidLength
	}

	total := 0
	for i := 0; i < 13; i++ {
		c := idNumber[i]
		if c < '0' || c > '9' {
			return ErrInvalidLength
		}
		d := int(c - '0')
		if i%2 == 1 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		total += d
	}

	if total%10 != 0 {
		return ErrInvalidChecksum
	}
	return nil
}

// Mask hides the middle of an ID number, showing the first 4 and last 3 digits.
func Mask(idNumber string) string {
	if len(idNumber) != 13 {
		return "***********"
	}
	return idNumber[:4] + "******" + idNumber[10:]
}

package barcode

import "math/rand"

// CodeLength is the number of digits in a generated barcode, check digit
// included (EAN-13).
const CodeLength = 13

// Generate produces a random EAN-13 code: 12 random digits followed by a
// check digit computed with alternating weights 1 and 3:
//
//	check = (10 - (sum(d_i * w_i) mod 10)) mod 10
//
// Generation alone does not guarantee uniqueness across the pool; the store's
// UNIQUE constraint rejects duplicates and the seeder regenerates.
func Generate() string {
	digits := make([]byte, CodeLength)

	sum := 0
	for i := 0; i < CodeLength-1; i++ {
		d := rand.Intn(10)
		digits[i] = byte('0' + d)

		weight := 1
		if i%2 == 1 {
			weight = 3
		}
		sum += d * weight
	}

	check := (10 - sum%10) % 10
	digits[CodeLength-1] = byte('0' + check)

	return string(digits)
}

// Valid reports whether code is a well-formed EAN-13 string with a correct
// check digit.
func Valid(code string) bool {
	if len(code) != CodeLength {
		return false
	}

	sum := 0
	for i := 0; i < CodeLength-1; i++ {
		c := code[i]
		if c < '0' || c > '9' {
			return false
		}

		weight := 1
		if i%2 == 1 {
			weight = 3
		}
		sum += int(c-'0') * weight
	}

	last := code[CodeLength-1]
	if last < '0' || last > '9' {
		return false
	}

	return int(last-'0') == (10-sum%10)%10
}

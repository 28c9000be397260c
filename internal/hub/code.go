package hub

import (
	"crypto/rand"
	"math/big"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const codeCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const CodeLength = 6

// GenerateCode returns a short code that is easy to read aloud; ambiguous
// glyphs (0/O, 1/I) are left out.
func GenerateCode() (string, error) {
	code := make([]byte, CodeLength)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeCharset))))
		if err != nil {
			return "", err
		}
		code[i] = codeCharset[num.Int64()]
	}
	return string(code), nil
}

// NormalizeCode makes user-typed codes match regardless of case.
func NormalizeCode(code string) string {
	return cases.Upper(language.Und).String(strings.TrimSpace(code))
}

package bulkimport

import (
	"crypto/rand"
	"math/big"
)

// PasswordAlphabet leaves out characters that are easy to misread:
// 0, O, o, 1, l and I.
const PasswordAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnpqrstuvwxyz23456789"

const DefaultPasswordLength = 8

func GeneratePassword(length int) (string, error) {
	if length <= 0 {
		length = DefaultPasswordLength
	}
	max := big.NewInt(int64(len(PasswordAlphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = PasswordAlphabet[n.Int64()]
	}
	return string(out), nil
}

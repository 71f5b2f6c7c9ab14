// Package random produces random strings for tokens and fixtures.
package random

import (
	crand "crypto/rand"
	"math/big"
	mrand "math/rand"
)

const (
	alphanumeric = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	upper        = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// String is not safe for secrets.
func String(length int) string {
	return fromCharset(alphanumeric, length)
}

// Code returns an upper case code such as the ones used for promos.
func Code(length int) string {
	return fromCharset(upper, length)
}

// StringSecure draws from crypto/rand and is suitable for tokens.
func StringSecure(length int) (string, error) {
	b := make([]byte, length)
	l := big.NewInt(int64(len(alphanumeric)))
	for i := range b {
		num, err := crand.Int(crand.Reader, l)
		if err != nil {
			return "", err
		}
		b[i] = alphanumeric[num.Int64()]
	}
	return string(b), nil
}

func fromCharset(charset string, length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[mrand.Intn(len(charset))]
	}
	return string(b)
}

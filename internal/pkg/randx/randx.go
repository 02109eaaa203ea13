/*
Package randx generates identifiers: UUIDs for users and connections,
and random display nicknames for fresh accounts.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

const (
	// Base62Chars is the character set for random name suffixes.
	Base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// nicknameRandomLength is the length of the random nickname suffix.
	nicknameRandomLength = 6
)

// NewID returns a UUID v4 string, used for user and connection identifiers.
func NewID() string {
	return uuid.New().String()
}

// UserNickname generates a "User_XXXXXX" display name with a random
// Base62 suffix, using crypto/rand.
func UserNickname() (string, error) {
	base62Len := big.NewInt(int64(len(Base62Chars)))
	result := make([]byte, nicknameRandomLength)

	for i := range nicknameRandomLength {
		num, err := rand.Int(rand.Reader, base62Len)
		if err != nil {
			return "", fmt.Errorf("failed to generate random number for nickname: %w", err)
		}
		result[i] = Base62Chars[num.Int64()]
	}

	return "User_" + string(result), nil
}

package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// GenerateToken returns n random characters from the base-36 alphabet.
func GenerateToken(n int) (string, error) {
	radix := big.NewInt(int64(len(base36)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, radix)
		if err != nil {
			return "", err
		}
		b[i] = base36[idx.Int64()]
	}
	return string(b), nil
}

// GenerateOrderID generates an opaque order id such as "k3x9q0b7m".
func GenerateOrderID() (string, error) {
	return GenerateToken(9)
}

// GenerateObjectKey generates a storage key for an uploaded product file:
// products/<productID>/<randomhex>/<fileName>
func GenerateObjectKey(productID int, fileName string) (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return fmt.Sprintf("products/%d/%s/%s", productID, hex.EncodeToString(b), fileName), nil
}

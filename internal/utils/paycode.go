package utils // package utils provides helpers for payment codes and secret hashing

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
)

const (
	paymentCodeMin  = 100000
	paymentCodeSpan = 900000 // codes are drawn from [100000, 999999]
)

// PaymentCodePattern matches every code produced by NewPaymentCode.
var PaymentCodePattern = regexp.MustCompile(`^PAY-\d{6}$`)

// NewPaymentCode returns a code of the form PAY-NNNNNN where N is drawn
// uniformly from [100000, 999999].  Uniqueness is the caller's concern.
func NewPaymentCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(paymentCodeSpan))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("PAY-%d", paymentCodeMin+n.Int64()), nil
}

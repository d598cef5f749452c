package lightning

import (
	"fmt"
	"strings"

	"github.com/lightningnetwork/lnd/lntypes"
)

// ParsePaymentHash validates a hex encoded 32 byte payment hash and returns
// its canonical lower-case form.
func ParsePaymentHash(s string) (string, error) {
	h, err := lntypes.MakeHashFromStr(strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidPaymentHash, err)
	}

	return h.String(), nil
}

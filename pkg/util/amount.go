package util

import (
	"github.com/shopspring/decimal"
)

const SatsPerBTC = 100_000_000

var satsPerBTC = decimal.NewFromInt(SatsPerBTC)

// SatsToBTC renders an amount in satoshis as a BTC string with trailing
// zeros trimmed, e.g. 2500 -> "0.000025".
func SatsToBTC(sats int64) string {
	return decimal.NewFromInt(sats).Div(satsPerBTC).String()
}

// BTCToSats parses a BTC amount and truncates it to whole satoshis.
func BTCToSats(btc string) (int64, error) {
	d, err := decimal.NewFromString(btc)
	if err != nil {
		return 0, err
	}
	return d.Mul(satsPerBTC).IntPart(), nil
}

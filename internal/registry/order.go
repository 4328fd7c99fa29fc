package registry

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// CompareAddresses orders two addresses by their lower-case hex form.
// The result is -1, 0 or 1.
func CompareAddresses(a, b common.Address) int {
	return CompareHex(a.Hex(), b.Hex())
}

// CompareHex is CompareAddresses for raw hex strings.
func CompareHex(a, b string) int {
	return strings.Compare(canonical(a), canonical(b))
}

// SortPair returns the pair as (currency0, currency1). swapped reports
// whether b sorted before a.
func SortPair(a, b common.Address) (token0, token1 common.Address, swapped bool) {
	if CompareAddresses(b, a) < 0 {
		return b, a, true
	}
	return a, b, false
}

func canonical(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.TrimPrefix(s, "0x")
}

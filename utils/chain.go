package utils

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// NormalizeChainID returns the canonical lowercase hex form of a chain id.
// Decimal ids are converted; values that do not parse are lowercased as is.
func NormalizeChainID(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		return ""
	}

	if strings.HasPrefix(id, "0x") {
		if n, err := hexutil.DecodeBig(id); err == nil {
			return hexutil.EncodeBig(n)
		}
		// hexutil rejects leading zeros such as 0x01
		if n, ok := new(big.Int).SetString(id[2:], 16); ok {
			return hexutil.EncodeBig(n)
		}
		return id
	}

	if n, ok := new(big.Int).SetString(id, 10); ok && n.Sign() >= 0 {
		return hexutil.EncodeBig(n)
	}
	return id
}

// SameChain compares chain ids case-insensitively after normalization
func SameChain(a, b string) bool {
	return NormalizeChainID(a) == NormalizeChainID(b)
}

// NormalizeAddress lowercases an account identifier for comparisons and storage
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// NormalizeAddresses lowercases every entry of an account list
func NormalizeAddresses(addresses []string) []string {
	out := make([]string, 0, len(addresses))
	for _, a := range addresses {
		out = append(out, NormalizeAddress(a))
	}
	return out
}

package chains

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/common"

	"github.com/zivra/zivra-custody/pkg/types"
)

// ValidAddress reports whether addr is well-formed for any supported
// chain family.
func ValidAddress(addr string) bool {
	for _, family := range SupportedFamilies() {
		if ValidAddressForFamily(addr, family) {
			return true
		}
	}
	return false
}

// ValidAddressForFamily reports whether addr is well-formed for the given
// chain family.
func ValidAddressForFamily(addr, family string) bool {
	switch family {
	case types.ChainFamilyAccount:
		return common.IsHexAddress(addr)
	case types.ChainFamilyLedger:
		decoded, err := btcutil.DecodeAddress(addr, &chaincfg.MainNetParams)
		if err != nil {
			return false
		}
		return decoded.IsForNet(&chaincfg.MainNetParams)
	default:
		return false
	}
}

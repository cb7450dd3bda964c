// Package validation performs structural checks on transaction drafts
// before any chain RPC or policy evaluation runs. A draft that fails here
// never reaches the pipeline.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/zivra/zivra-custody/internal/chains"
	"github.com/zivra/zivra-custody/pkg/types"
)

// MaxDataSize caps calldata carried by a draft.
const MaxDataSize = 128 * 1024

var zeroAddressPattern = regexp.MustCompile(`^0x0{40}$`)

// ValidateDraft checks a draft's structural fields: recipient address
// shape, value sign and calldata size. The token symbol is canonicalized
// to upper case in place, so every record downstream stores one spelling
// and daily-limit sums cannot be split across case variants. Ownership of
// the sender address and policy compliance are checked later, inside the
// pipeline.
func ValidateDraft(draft *types.TxDraft) error {
	if draft.ChainFamily == "" {
		return fmt.Errorf("chain family is required")
	}

	if err := ValidateRecipient(draft.To, draft.ChainFamily); err != nil {
		return fmt.Errorf("invalid recipient: %w", err)
	}

	if draft.Value == nil {
		return fmt.Errorf("value is required")
	}
	if draft.Value.Sign() <= 0 {
		return fmt.Errorf("value must be positive")
	}

	draft.Token = strings.ToUpper(strings.TrimSpace(draft.Token))
	if draft.Token == "" {
		return fmt.Errorf("token is required")
	}

	if len(draft.Data) > MaxDataSize {
		return fmt.Errorf("calldata too large: %d bytes > %d bytes max", len(draft.Data), MaxDataSize)
	}

	return nil
}

// ValidateRecipient checks the recipient address for a chain family. Burn
// addresses are rejected; funds sent there are unrecoverable.
func ValidateRecipient(addr, family string) error {
	if addr == "" {
		return fmt.Errorf("address cannot be empty")
	}

	if !chains.ValidAddressForFamily(addr, family) {
		return fmt.Errorf("malformed address for chain family %q", family)
	}

	if family == types.ChainFamilyAccount && zeroAddressPattern.MatchString(strings.ToLower(addr)) {
		return fmt.Errorf("cannot send to the zero address")
	}

	return nil
}

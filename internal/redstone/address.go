package redstone

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// DerivePriceAccount computes the program-derived address of the price account for feedID.
// Seeds are ["price" padded to 32 bytes, feed id padded to 32 bytes], the same seeds the
// program uses, so the result is the account the program writes to.
func DerivePriceAccount(programID solana.PublicKey, feedID string) (solana.PublicKey, uint8, error) {
	feed, err := EncodeFeedID(feedID)
	if err != nil {
		return solana.PublicKey{}, 0, err
	}
	address, bump, err := solana.FindProgramAddress(
		[][]byte{priceSeed(), feed[:]},
		programID,
	)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("%w: feed %q: %v", ErrAddressDerivation, feedID, err)
	}
	return address, bump, nil
}

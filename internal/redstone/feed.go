package redstone

import (
	"bytes"
	"fmt"
)

// FeedIDSize is the width of every feed id field on chain.
const FeedIDSize = 32

// EncodeFeedID returns the canonical 32-byte form of a feed id: UTF-8 bytes,
// left-justified and null-padded. Ids longer than 32 bytes are rejected, never truncated.
func EncodeFeedID(feedID string) ([FeedIDSize]byte, error) {
	var out [FeedIDSize]byte
	if len(feedID) > FeedIDSize {
		return out, fmt.Errorf("%w: %q is %d bytes", ErrFeedIDTooLong, feedID, len(feedID))
	}
	copy(out[:], feedID)
	return out, nil
}

// DecodeFeedID strips trailing null bytes from a 32-byte feed id field.
// Other whitespace is left untouched.
func DecodeFeedID(field []byte) string {
	return string(bytes.TrimRight(field, "\x00"))
}

func priceSeed() []byte {
	seed := make([]byte, FeedIDSize)
	copy(seed, "price")
	return seed
}

package redstone

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Layout identifies one of the known on-chain price account layouts. The account
// carries no version tag; the layout is inferred from the total data length.
type Layout int

const (
	LayoutUnknown Layout = iota
	// LayoutV1 stores the value as a little-endian u128 (two u64 words).
	LayoutV1
	// LayoutV2 stores the value as a 32-byte big-endian integer.
	LayoutV2
)

func (l Layout) String() string {
	switch l {
	case LayoutV1:
		return "v1"
	case LayoutV2:
		return "v2"
	default:
		return "unknown"
	}
}

const accountDiscriminatorSize = 8

// Account sizes, discriminator included.
const (
	LayoutV1Size = accountDiscriminatorSize + FeedIDSize + 16 + 8
	LayoutV2Size = accountDiscriminatorSize + FeedIDSize + 32 + 8
)

type layoutSpec struct {
	layout    Layout
	size      int
	valueSize int
	value     func([]byte) *big.Int
}

var layouts = []layoutSpec{
	{layout: LayoutV1, size: LayoutV1Size, valueSize: 16, value: u128LE},
	{layout: LayoutV2, size: LayoutV2Size, valueSize: 32, value: uintBE},
}

// PriceData is a decoded price account. Value and Timestamp are decimal strings
// because the value exceeds the 64-bit range.
type PriceData struct {
	FeedID    string `json:"feedId"`
	Value     string `json:"value"`
	Timestamp string `json:"timestamp"`
	Layout    Layout `json:"-"`
}

// DecodePriceAccount parses raw account data. The buffer length must match one of the
// known layout sizes exactly; anything else fails with ErrInvalidAccountLength.
func DecodePriceAccount(data []byte) (PriceData, error) {
	spec, ok := layoutForSize(len(data))
	if !ok {
		return PriceData{}, fmt.Errorf("%w: %d bytes (want %d or %d)",
			ErrInvalidAccountLength, len(data), LayoutV1Size, LayoutV2Size)
	}

	feedStart := accountDiscriminatorSize
	valueStart := feedStart + FeedIDSize
	tsStart := valueStart + spec.valueSize

	value := spec.value(data[valueStart:tsStart])
	timestamp := binary.LittleEndian.Uint64(data[tsStart : tsStart+8])

	return PriceData{
		FeedID:    DecodeFeedID(data[feedStart:valueStart]),
		Value:     value.String(),
		Timestamp: new(big.Int).SetUint64(timestamp).String(),
		Layout:    spec.layout,
	}, nil
}

// Scaled returns the value divided by 10^decimals.
func (p PriceData) Scaled(decimals int32) (decimal.Decimal, error) {
	v, ok := new(big.Int).SetString(p.Value, 10)
	if !ok {
		return decimal.Zero, fmt.Errorf("invalid price value %q", p.Value)
	}
	return decimal.NewFromBigInt(v, -decimals), nil
}

func layoutForSize(n int) (layoutSpec, bool) {
	for _, spec := range layouts {
		if spec.size == n {
			return spec, true
		}
	}
	return layoutSpec{}, false
}

// u128LE combines two little-endian u64 words as low + high<<64.
func u128LE(b []byte) *big.Int {
	low := new(big.Int).SetUint64(binary.LittleEndian.Uint64(b[0:8]))
	high := new(big.Int).SetUint64(binary.LittleEndian.Uint64(b[8:16]))
	return high.Lsh(high, 64).Add(high, low)
}

func uintBE(b []byte) *big.Int {
	return new(big.Int).SetBytes(b)
}

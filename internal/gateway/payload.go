package gateway

import (
	"encoding/base64"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/redstone-finance/solana-connector/internal/redstone"
)

// Field widths of the RedStone payload.
const (
	timestampSize       = 6
	valueSizeSize       = 4
	dataPointsCountSize = 3
	signatureSize       = 65
	packagesCountSize   = 2
	metadataSizeSize    = 3

	DefaultValueSize = 32
	DefaultDecimals  = 8
)

// Marker terminates every RedStone payload.
var Marker = [9]byte{0x00, 0x00, 0x02, 0xed, 0x57, 0x01, 0x1e, 0x00, 0x00}

// Serializer turns signed packages into the binary payload the on-chain program parses.
type Serializer struct {
	ValueSize int
	Decimals  int32
}

func NewSerializer() Serializer {
	return Serializer{ValueSize: DefaultValueSize, Decimals: DefaultDecimals}
}

// Serialize writes every package followed by the package count, an empty
// unsigned metadata block and the marker.
func (s Serializer) Serialize(packages []SignedDataPackage) ([]byte, error) {
	if len(packages) >= 1<<(8*packagesCountSize) {
		return nil, fmt.Errorf("too many data packages: %d", len(packages))
	}

	var out []byte
	for i, pkg := range packages {
		b, err := s.serializePackage(pkg)
		if err != nil {
			return nil, fmt.Errorf("package %d (%s): %w", i, pkg.SignerAddress, err)
		}
		out = append(out, b...)
	}

	out = append(out, putUintBE(uint64(len(packages)), packagesCountSize)...)
	out = append(out, putUintBE(0, metadataSizeSize)...)
	out = append(out, Marker[:]...)
	return out, nil
}

func (s Serializer) serializePackage(pkg SignedDataPackage) ([]byte, error) {
	sig, err := base64.StdEncoding.DecodeString(pkg.Signature)
	if err != nil {
		return nil, fmt.Errorf("decode signature: %w", err)
	}
	if len(sig) != signatureSize {
		return nil, fmt.Errorf("signature is %d bytes, want %d", len(sig), signatureSize)
	}
	if pkg.TimestampMilliseconds >= 1<<(8*timestampSize) {
		return nil, fmt.Errorf("timestamp %d overflows %d bytes", pkg.TimestampMilliseconds, timestampSize)
	}

	var out []byte
	for _, dp := range pkg.DataPoints {
		id, err := redstone.EncodeFeedID(dp.DataFeedID)
		if err != nil {
			return nil, err
		}
		value, err := s.encodeValue(dp.Value)
		if err != nil {
			return nil, fmt.Errorf("feed %s: %w", dp.DataFeedID, err)
		}
		out = append(out, id[:]...)
		out = append(out, value...)
	}

	out = append(out, putUintBE(pkg.TimestampMilliseconds, timestampSize)...)
	out = append(out, putUintBE(uint64(s.ValueSize), valueSizeSize)...)
	out = append(out, putUintBE(uint64(len(pkg.DataPoints)), dataPointsCountSize)...)
	out = append(out, sig...)
	return out, nil
}

// encodeValue scales v by 10^Decimals and writes it big-endian in ValueSize bytes.
func (s Serializer) encodeValue(v float64) ([]byte, error) {
	scaled := decimal.NewFromFloat(v).Shift(s.Decimals).Truncate(0)
	if scaled.IsNegative() {
		return nil, fmt.Errorf("negative value %s", scaled)
	}
	n := scaled.BigInt()
	if n.BitLen() > 8*s.ValueSize {
		return nil, fmt.Errorf("value %s overflows %d bytes", scaled, s.ValueSize)
	}
	return n.FillBytes(make([]byte, s.ValueSize)), nil
}

func putUintBE(v uint64, size int) []byte {
	return new(big.Int).SetUint64(v).FillBytes(make([]byte, size))
}

package redstone

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gagliardetto/solana-go"
)

const (
	discriminatorSize = 8
	lengthPrefixSize  = 4

	// InstructionHeaderSize is the fixed part of the instruction body before the payload.
	InstructionHeaderSize = discriminatorSize + FeedIDSize + lengthPrefixSize
)

// EncodeInstruction builds the process_redstone_payload instruction body:
//
//	| 0  | 8  | discriminator          |
//	| 8  | 32 | feed id, null-padded   |
//	| 40 | 4  | len(payload), u32 LE   |
//	| 44 | N  | payload                |
//
// The program reads the payload out of a fixed-capacity buffer and relies on the
// length prefix to know where it ends.
func EncodeInstruction(discriminator [8]byte, feedID string, payload []byte) ([]byte, error) {
	feed, err := EncodeFeedID(feedID)
	if err != nil {
		return nil, err
	}
	if uint64(len(payload)) > math.MaxUint32 {
		return nil, fmt.Errorf("payload too large: %d bytes", len(payload))
	}

	data := make([]byte, InstructionHeaderSize+len(payload))
	copy(data[0:discriminatorSize], discriminator[:])
	copy(data[discriminatorSize:discriminatorSize+FeedIDSize], feed[:])
	binary.LittleEndian.PutUint32(data[discriminatorSize+FeedIDSize:InstructionHeaderSize], uint32(len(payload)))
	copy(data[InstructionHeaderSize:], payload)
	return data, nil
}

// NewPushInstruction wraps an encoded instruction body with its account list:
// [signer (writable, signer), price account (writable), system program].
func NewPushInstruction(
	cfg ProgramConfig,
	signer solana.PublicKey,
	priceAccount solana.PublicKey,
	data []byte,
) solana.Instruction {
	accounts := solana.AccountMetaSlice{
		solana.Meta(signer).WRITE().SIGNER(),
		solana.Meta(priceAccount).WRITE(),
		solana.Meta(solana.SystemProgramID),
	}
	return solana.NewInstruction(cfg.ProgramID, accounts, data)
}

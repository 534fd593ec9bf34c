package redstone

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Defaults for the production RedStone program on Solana.
const (
	DefaultProgramID          = "3oHtb7BCqjqhZt8LyqSAZRAubbrYy8xvDRaYoRghHB1T"
	DefaultDataServiceID      = "redstone-avalanche-prod"
	DefaultUniqueSignersCount = 3
)

// DefaultDiscriminator selects the process_redstone_payload instruction.
var DefaultDiscriminator = [8]byte{49, 96, 127, 141, 118, 203, 237, 178}

// ProgramConfig carries the on-chain program constants. It is a value type and is
// passed to every component at construction; nothing reads these from package state.
type ProgramConfig struct {
	ProgramID          solana.PublicKey
	Discriminator      [8]byte
	DataServiceID      string
	UniqueSignersCount int
}

// NewProgramConfig parses programID and fills in the remaining defaults where zero.
func NewProgramConfig(programID, dataServiceID string, uniqueSigners int) (ProgramConfig, error) {
	if programID == "" {
		programID = DefaultProgramID
	}
	pid, err := solana.PublicKeyFromBase58(programID)
	if err != nil {
		return ProgramConfig{}, fmt.Errorf("invalid program id %q: %w", programID, err)
	}
	if dataServiceID == "" {
		dataServiceID = DefaultDataServiceID
	}
	if uniqueSigners <= 0 {
		uniqueSigners = DefaultUniqueSignersCount
	}
	return ProgramConfig{
		ProgramID:          pid,
		Discriminator:      DefaultDiscriminator,
		DataServiceID:      dataServiceID,
		UniqueSignersCount: uniqueSigners,
	}, nil
}

package gateway

import "errors"

var (
	// ErrInsufficientSigners is returned when a requested feed has fewer distinct signers than the quorum.
	ErrInsufficientSigners = errors.New("insufficient unique signers")
	// ErrGatewayUnavailable is returned when no configured gateway answered with HTTP 200.
	ErrGatewayUnavailable = errors.New("no oracle gateway available")
)

// DefaultGatewayURLs are the public RedStone oracle gateway mirrors, tried in order.
var DefaultGatewayURLs = []string{
	"https://oracle-gateway-1.a.redstone.finance",
	"https://oracle-gateway-2.a.redstone.finance",
}

// Request selects the signed packages to fetch.
type Request struct {
	DataPackagesIDs    []string
	DataServiceID      string
	UniqueSignersCount int
}

// DataPoint is one feed value inside a signed package.
type DataPoint struct {
	DataFeedID string  `json:"dataFeedId"`
	Value      float64 `json:"value"`
}

// SignedDataPackage is a package as served by the gateway. Signature is the
// base64 encoding of the 65-byte secp256k1 signature.
type SignedDataPackage struct {
	TimestampMilliseconds uint64      `json:"timestampMilliseconds"`
	DataPoints            []DataPoint `json:"dataPoints"`
	SignerAddress         string      `json:"signerAddress"`
	Signature             string      `json:"signature"`
	DataPackageID         string      `json:"dataPackageId,omitempty"`
}

// Response maps a data package id to the packages signed for it.
type Response map[string][]SignedDataPackage

// Package wallet signs and submits the on-chain transaction that registers
// a certificate asset.
package wallet

import (
	"context"
	"errors"
)

var (
	// ErrNoWallet is reported when asset creation is requested but no
	// wallet is configured.
	ErrNoWallet = errors.New("no wallet configured")
	// ErrInvalidAsset is returned for requests without a name or URL.
	ErrInvalidAsset = errors.New("asset name and url are required")
)

// AssetRequest describes the asset to create.
type AssetRequest struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Receipt identifies the submitted transaction.
type Receipt struct {
	TxHash   string `json:"tx_hash"`
	From     string `json:"from"`
	AssetURL string `json:"asset_url"`
}

// Wallet signs and submits asset creation transactions.
type Wallet interface {
	CreateAsset(ctx context.Context, req AssetRequest) (Receipt, error)
}

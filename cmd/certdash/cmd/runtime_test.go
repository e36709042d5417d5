package cmd

import (
	"log/slog"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenx/certdash/config"
	"github.com/tenx/certdash/wallet"
)

func TestWalletOptionsRegistry(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	logger := slog.New(slog.DiscardHandler)

	cfg := config.Default()
	w := wallet.NewEthereum(nil, key, walletOptions(cfg, logger)...)
	assert.Equal(t, w.Address(), w.Destination(), "without a registry assets go to the wallet itself")

	cfg.AssetRegistry = "0x00000000000000000000000000000000000000aa"
	w = wallet.NewEthereum(nil, key, walletOptions(cfg, logger)...)
	assert.Equal(t, common.HexToAddress(cfg.AssetRegistry), w.Destination())
}

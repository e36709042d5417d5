package wallet

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Backend is the subset of an Ethereum JSON-RPC client the wallet needs.
// *ethclient.Client satisfies it.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// Ethereum is a Wallet backed by a single private key.
type Ethereum struct {
	backend  Backend
	key      *ecdsa.PrivateKey
	from     common.Address
	registry *common.Address
	logger   *slog.Logger

	// mu serializes nonce assignment.
	mu sync.Mutex
}

var _ Wallet = (*Ethereum)(nil)

// Option configures an Ethereum wallet.
type Option func(*Ethereum)

// WithRegistry sends asset transactions to addr instead of the wallet's own
// address.
func WithRegistry(addr common.Address) Option {
	return func(e *Ethereum) {
		e.registry = &addr
	}
}

// WithLogger sets the wallet's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Ethereum) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEthereum creates a wallet that signs with key and submits to backend.
func NewEthereum(backend Backend, key *ecdsa.PrivateKey, opts ...Option) *Ethereum {
	e := &Ethereum{
		backend: backend,
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		logger:  slog.New(slog.NewJSONHandler(os.Stderr, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "wallet")
	return e
}

// ParseKey decodes a hex private key, with or without a 0x prefix.
func ParseKey(hexKey string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parsing wallet key: %w", err)
	}
	return key, nil
}

// Address is the wallet's account address.
func (e *Ethereum) Address() common.Address { return e.from }

// Destination is the address asset transactions are sent to: the registry
// when one is set, otherwise the wallet itself.
func (e *Ethereum) Destination() common.Address {
	if e.registry != nil {
		return *e.registry
	}
	return e.from
}

type assetPayload struct {
	Standard string `json:"standard"`
	Name     string `json:"name"`
	URL      string `json:"url"`
}

// CreateAsset signs a transaction whose data carries the asset metadata and
// submits it.
func (e *Ethereum) CreateAsset(ctx context.Context, req AssetRequest) (Receipt, error) {
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.URL) == "" {
		return Receipt{}, ErrInvalidAsset
	}
	data, err := json.Marshal(assetPayload{Standard: "arc3", Name: req.Name, URL: req.URL})
	if err != nil {
		return Receipt{}, err
	}

	to := e.Destination()

	e.mu.Lock()
	defer e.mu.Unlock()

	chainID, err := e.backend.ChainID(ctx)
	if err != nil {
		return Receipt{}, fmt.Errorf("chain id: %w", err)
	}
	nonce, err := e.backend.PendingNonceAt(ctx, e.from)
	if err != nil {
		return Receipt{}, fmt.Errorf("nonce: %w", err)
	}
	gasPrice, err := e.backend.SuggestGasPrice(ctx)
	if err != nil {
		return Receipt{}, fmt.Errorf("gas price: %w", err)
	}
	gas, err := e.backend.EstimateGas(ctx, ethereum.CallMsg{From: e.from, To: &to, Data: data})
	if err != nil {
		return Receipt{}, fmt.Errorf("estimate gas: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &to,
		Value:    new(big.Int),
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), e.key)
	if err != nil {
		return Receipt{}, fmt.Errorf("signing: %w", err)
	}
	if err := e.backend.SendTransaction(ctx, signed); err != nil {
		return Receipt{}, fmt.Errorf("sending transaction: %w", err)
	}

	e.logger.Info("asset transaction submitted",
		"tx", signed.Hash().Hex(),
		"nonce", nonce,
		"data", hexutil.Encode(data),
	)
	return Receipt{
		TxHash:   signed.Hash().Hex(),
		From:     e.from.Hex(),
		AssetURL: req.URL,
	}, nil
}

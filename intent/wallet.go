package intent

const (
	TypeCreateAsset        = "wallet/CreateAssetAction"
	TypeCreateAssetSuccess = "wallet/CreateAssetSuccess"
	TypeCreateAssetFailure = "wallet/CreateAssetFailure"
	TypeCleanWalletStatus  = "wallet/CleanStatus"
)

// CreateAsset mints an on-chain asset pointing at URL.
type CreateAsset struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// CreateAssetSuccess carries the submitted transaction.
type CreateAssetSuccess struct {
	TxHash   string `json:"tx_hash"`
	AssetURL string `json:"asset_url"`
}

// CreateAssetFailure carries the failure message.
type CreateAssetFailure struct {
	Message string `json:"message"`
}

// CleanWalletStatus resets the wallet slice's transient flags.
type CleanWalletStatus struct{}

func (CreateAsset) Type() string        { return TypeCreateAsset }
func (CreateAssetSuccess) Type() string { return TypeCreateAssetSuccess }
func (CreateAssetFailure) Type() string { return TypeCreateAssetFailure }
func (CleanWalletStatus) Type() string  { return TypeCleanWalletStatus }

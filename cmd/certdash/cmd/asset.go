package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tenx/certdash/intent"
	"github.com/tenx/certdash/store"
)

var assetCmd = &cobra.Command{
	Use:   "asset",
	Short: "On-chain certificate assets",
}

var assetFlags struct {
	name string
	url  string
}

var assetCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a certificate asset on chain",
	Long: `Signs and submits a transaction carrying the asset name and content URL.
Requires --chain-rpc and CERTDASH_WALLET_KEY.`,
	Args: cobra.NoArgs,
	RunE: withRuntime(func(cmd *cobra.Command, rt *runtime, args []string) error {
		a := intent.CreateAsset{Name: assetFlags.name, URL: assetFlags.url}
		st, err := rt.dispatch(cmd.Context(), a, func(s store.State) bool { return !s.Wallet.IsLoading })
		rt.store.Dispatch(intent.CleanWalletStatus{})
		if err != nil {
			return err
		}
		if st.Wallet.Error != "" {
			return errors.New(st.Wallet.Error)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Asset created: %s\n", st.Wallet.TxHash)
		if st.Wallet.AssetURL != "" {
			fmt.Fprintf(out, "URL: %s\n", st.Wallet.AssetURL)
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(assetCmd)
	assetCmd.AddCommand(assetCreateCmd)
	assetCreateCmd.Flags().StringVar(&assetFlags.name, "name", "", "Asset name")
	assetCreateCmd.Flags().StringVar(&assetFlags.url, "url", "", "Asset content URL")
}

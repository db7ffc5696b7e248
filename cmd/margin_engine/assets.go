package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"frizo/margin_engine/internal/asset"
	"frizo/margin_engine/pkg/utils"
)

func newAssetsCmd(root *rootOptions) *cobra.Command {
	var leverage int

	cmd := &cobra.Command{
		Use:   "assets",
		Short: "Print the asset catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := root.load()
			if err != nil {
				return err
			}

			catalog, err := loadCatalog(cfg)
			if err != nil {
				return err
			}

			assets := catalog.List()
			if leverage > 0 {
				assets = utils.Filter(assets, func(a asset.Config) bool {
					return a.AllowsLeverage(leverage)
				})
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{"assets": assets})
		},
	}

	cmd.Flags().IntVar(&leverage, "leverage", 0, "Only list assets allowing this leverage")
	return cmd
}

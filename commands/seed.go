package commands

import (
	"github.com/spf13/cobra"

	"storefront/store"
	"storefront/store/postgres"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert the starter catalog",
	Long:  "Insert the starter products. Products already present by name are skipped.",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := postgres.Connect(cmd.Context(), cfg.DB.DSN, logger)
		if err != nil {
			return err
		}
		defer db.Close()

		added, err := store.SeedCatalog(cmd.Context(), db.Backend(nil).Products)
		if err != nil {
			return err
		}
		logger.WithField("added", added).Info("Catalog seeded")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

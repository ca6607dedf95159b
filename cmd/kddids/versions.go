package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"kdd-ids/internal/storage"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var versionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "List stored artifact versions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *storage.Store) error {
			versions, err := store.ListVersions()
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ACTIVE\tVERSION\tCREATED\tFEATURES\tTREES\tHOLDOUT ACC\tMACRO F1")
			for _, v := range versions {
				mark := ""
				if v.IsActive {
					mark = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%.4f\t%.4f\n",
					mark, v.Version, v.CreatedAt.Format(time.RFC3339),
					v.Manifest.ExpectedFeatures, v.Manifest.Trees,
					v.Manifest.HoldoutAccuracy, v.Manifest.HoldoutMacroF1)
			}
			return tw.Flush()
		})
	},
}

var activateCmd = &cobra.Command{
	Use:   "activate <version>",
	Short: "Make a stored version the one served by default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *storage.Store) error {
			return store.Activate(args[0])
		})
	},
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Activate the version created before the active one",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *storage.Store) error {
			version, err := store.Rollback()
			if err != nil {
				return err
			}
			log.Info().Str("version", version).Msg("rolled back")
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(versionsCmd, activateCmd, rollbackCmd)
}

func withStore(fn func(*storage.Store) error) error {
	store, err := storage.New(settings.DataPath)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

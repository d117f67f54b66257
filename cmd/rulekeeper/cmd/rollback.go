package cmd

import (
	"fmt"

	"github.com/pathwaylegal/rulekeeper/internal/rollback"
	"github.com/pathwaylegal/rulekeeper/internal/types"
	"github.com/spf13/cobra"
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Restore an earlier rule version as the current one",
	RunE:  runRollback,
}

func init() {
	rootCmd.AddCommand(rollbackCmd)
	rollbackCmd.Flags().String("current", "", "rule version id currently in effect")
	rollbackCmd.Flags().String("target", "", "earlier rule version id to restore")
	rollbackCmd.Flags().String("actor", "", "identity recorded as publisher of the restored version")
	rollbackCmd.MarkFlagRequired("current")
	rollbackCmd.MarkFlagRequired("target")
	rollbackCmd.MarkFlagRequired("actor")
}

func runRollback(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	currentFlag, _ := cmd.Flags().GetString("current")
	targetFlag, _ := cmd.Flags().GetString("target")
	actor, _ := cmd.Flags().GetString("actor")

	currentID, err := types.ParseVersionID(currentFlag)
	if err != nil {
		return fmt.Errorf("--current: %w", err)
	}
	targetID, err := types.ParseVersionID(targetFlag)
	if err != nil {
		return fmt.Errorf("--target: %w", err)
	}

	database, st, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer database.Close()

	controller, err := rollback.New(st, rollback.WithLogger(logger))
	if err != nil {
		return err
	}

	result, err := controller.Rollback(cmd.Context(), currentID, targetID, actor)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "rolled back to %s (current closed: %t, target reopened: %t)\n",
		targetID, result.CurrentVersionClosed, result.PreviousVersionReopened)
	return nil
}

package cmd

import (
	"fmt"

	"github.com/pathwaylegal/rulekeeper/internal/publish"
	"github.com/pathwaylegal/rulekeeper/internal/types"
	"github.com/spf13/cobra"
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish an approved parsed rule as a new rule version",
	RunE:  runPublish,
}

func init() {
	rootCmd.AddCommand(publishCmd)
	publishCmd.Flags().String("rule", "", "parsed rule id to publish")
	publishCmd.Flags().String("actor", "", "identity recorded as publisher")
	publishCmd.MarkFlagRequired("rule")
	publishCmd.MarkFlagRequired("actor")
}

func runPublish(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ruleFlag, _ := cmd.Flags().GetString("rule")
	actor, _ := cmd.Flags().GetString("actor")

	ruleID, err := types.ParseParsedRuleID(ruleFlag)
	if err != nil {
		return err
	}

	database, st, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer database.Close()

	pipeline, err := publish.New(st, publish.WithLogger(logger))
	if err != nil {
		return err
	}

	result, err := pipeline.PublishApprovedRule(cmd.Context(), ruleID, actor)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "published version %s (%d requirements, previous closed: %t)\n",
		result.RuleVersionID, result.RequirementsCreated, result.PreviousVersionClosed)
	return nil
}

package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pathwaylegal/rulekeeper/internal/eligibility"
	"github.com/pathwaylegal/rulekeeper/internal/types"
	"github.com/spf13/cobra"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate facts against a subject's current rule version",
	RunE:  runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)
	evaluateCmd.Flags().String("subject", "", "policy subject code")
	evaluateCmd.Flags().String("facts", "", "path to a JSON file of facts")
	evaluateCmd.MarkFlagRequired("subject")
	evaluateCmd.MarkFlagRequired("facts")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	subjectCode, _ := cmd.Flags().GetString("subject")
	factsPath, _ := cmd.Flags().GetString("facts")

	raw, err := os.ReadFile(factsPath)
	if err != nil {
		return fmt.Errorf("failed to read facts file: %w", err)
	}
	var facts types.Facts
	if err := json.Unmarshal(raw, &facts); err != nil {
		return fmt.Errorf("facts file is not a JSON object: %w", err)
	}

	database, st, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer database.Close()

	subject, err := st.GetSubjectByCode(cmd.Context(), subjectCode)
	if err != nil {
		return err
	}

	service, err := eligibility.NewService(st, eligibility.WithLogger(logger))
	if err != nil {
		return err
	}

	result, err := service.EvaluateSubject(cmd.Context(), subject.ID, facts)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

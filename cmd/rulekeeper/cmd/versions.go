package cmd

import (
	"fmt"

	"github.com/pathwaylegal/rulekeeper/internal/types"
	"github.com/spf13/cobra"
)

var versionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "List all rule versions of a subject",
	RunE:  runVersions,
}

func init() {
	rootCmd.AddCommand(versionsCmd)
	versionsCmd.Flags().String("subject", "", "policy subject code")
	versionsCmd.MarkFlagRequired("subject")
}

func runVersions(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	subjectCode, _ := cmd.Flags().GetString("subject")

	database, st, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer database.Close()

	subject, err := st.GetSubjectByCode(cmd.Context(), subjectCode)
	if err != nil {
		return err
	}

	versions, err := st.ListBySubject(cmd.Context(), subject.ID)
	if err != nil {
		return err
	}

	for _, v := range versions {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  from=%s  to=%s  %s\n",
			v.ID, v.EffectiveFrom.Format("2006-01-02 15:04:05"), formatEnd(&v), versionState(&v))
	}
	return nil
}

func formatEnd(v *types.RuleVersion) string {
	if v.EffectiveTo == nil {
		return "open"
	}
	return v.EffectiveTo.Format("2006-01-02 15:04:05")
}

func versionState(v *types.RuleVersion) string {
	switch {
	case v.Deleted():
		return "deleted"
	case !v.Published:
		return "draft"
	case v.EffectiveTo != nil:
		return "superseded"
	default:
		return "published"
	}
}

package cmd

import (
	"strings"

	"github.com/agentic-research/olxstore/internal/locator"
	"github.com/spf13/cobra"
)

var locatorCmd = &cobra.Command{
	Use:   "locator [string]",
	Short: "Parse a block locator or course key and print its fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := locatorDoc(args[0])
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), doc, "")
	},
}

func init() {
	rootCmd.AddCommand(locatorCmd)
}

func locatorDoc(s string) (map[string]any, error) {
	if strings.HasPrefix(s, locator.CoursePrefix) {
		k, err := locator.ParseCourseKey(s)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"course_key": k.String(),
			"org":        k.Org,
			"course":     k.Course,
			"run":        k.Run,
		}, nil
	}
	l, err := locator.Parse(s)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"locator":    l.String(),
		"course_key": l.Course.String(),
		"org":        l.Course.Org,
		"course":     l.Course.Course,
		"run":        l.Course.Run,
		"kind":       l.Kind,
		"name":       l.Name,
	}, nil
}

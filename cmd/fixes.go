package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/actsafe/actsafe/internal/fixes"
)

var fixDescriptions = []struct {
	tag  string
	desc string
}{
	{fixes.TokenPermissions, "add a permissions block at workflow or job level"},
	{fixes.JobTimeout, "add timeout-minutes to jobs and steps"},
	{fixes.ConcurrencyControl, "add a concurrency block where none existed"},
	{fixes.ForkPrevention, "strengthen an if condition with a repository guard"},
	{fixes.PathFilter, "add paths or paths-ignore filters to a trigger"},
	{fixes.ContinueOnError, "add a continue-on-error field"},
}

var fixesCmd = &cobra.Command{
	Use:   "fixes",
	Short: "List the fix tags that can be permitted with --fixes",
	Run: func(cmd *cobra.Command, args []string) {
		for _, f := range fixDescriptions {
			color.New(color.FgCyan, color.Bold).Printf("%-22s", f.tag)
			fmt.Println(f.desc)
		}
	},
}

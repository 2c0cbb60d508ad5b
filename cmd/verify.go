package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/actsafe/actsafe/verify"
)

var (
	verifyJSONOutput bool
	verifyOutPath    string
)

var verifyCmd = &cobra.Command{
	Use:   "verify <original> <modified>",
	Short: "Verify one repaired workflow against its original",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := buildOptions()
		if err != nil {
			return err
		}
		v, err := verify.New(opts, logger)
		if err != nil {
			return err
		}

		verdict, err := v.VerifyFiles(context.Background(), args[0], args[1])
		if err != nil {
			logger.Error("verification failed", zap.Error(err))
			return err
		}

		if verifyJSONOutput {
			if err := writeVerdictJSON(verdict, verifyOutPath); err != nil {
				return err
			}
		} else {
			printVerdict(verdict)
		}

		switch {
		case verdict.Inconclusive:
			os.Exit(2)
		case !verdict.IsSafe:
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	addVerifyFlags(verifyCmd)
	verifyCmd.Flags().BoolVar(&verifyJSONOutput, "json", false, "Output the verdict as JSON")
	verifyCmd.Flags().StringVarP(&verifyOutPath, "output", "o", "", "Output path (when using JSON)")
}

func writeVerdictJSON(verdict *verify.Verdict, path string) error {
	out := os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(verdict)
}

func printVerdict(verdict *verify.Verdict) {
	switch {
	case verdict.Inconclusive:
		color.New(color.FgYellow, color.Bold).Println("INCONCLUSIVE")
	case verdict.IsSafe:
		color.New(color.FgGreen, color.Bold).Println("SAFE")
	default:
		color.New(color.FgRed, color.Bold).Println("UNSAFE")
	}
	fmt.Printf("mode: %s  confidence: %.2f\n", verdict.Mode, verdict.Confidence)

	for _, issue := range verdict.Issues() {
		color.Red("  ✗ %s", issue)
	}
	for _, warning := range verdict.Warnings {
		color.Yellow("  ! %s", warning)
	}
}

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/actsafe/actsafe/verify"
)

var (
	batchWorkers int
	batchFormat  string
	batchOutPath string
)

var batchCmd = &cobra.Command{
	Use:   "batch <original-dir> <modified-dir>",
	Short: "Verify every workflow pair across two directories",
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

		workers := batchWorkers
		if workers <= 0 {
			workers = envCfg.Workers
		}

		bar := progressbar.NewOptions(-1,
			progressbar.OptionSetDescription("verifying"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSpinnerType(14),
		)

		report, err := v.VerifyBatch(context.Background(), args[0], args[1], verify.BatchOptions{
			Workers: workers,
			OnResult: func(verify.FileResult) {
				_ = bar.Add(1)
			},
		})
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)
		if err != nil {
			logger.Error("batch verification interrupted", zap.Error(err))
			if report == nil {
				return err
			}
		}

		if err := writeBatchReport(report); err != nil {
			return err
		}
		printBatchSummary(report)

		if report.Unsafe > 0 || report.Errors > 0 {
			os.Exit(1)
		}
		if report.Inconclusive > 0 {
			os.Exit(2)
		}
		return nil
	},
}

func init() {
	addVerifyFlags(batchCmd)
	batchCmd.Flags().IntVar(&batchWorkers, "workers", 0, "Number of concurrent verifications")
	batchCmd.Flags().StringVar(&batchFormat, "format", "json", "Report format: json or csv")
	batchCmd.Flags().StringVarP(&batchOutPath, "output", "o", "", "Report output path (default stdout)")
}

func writeBatchReport(report *verify.BatchReport) error {
	out := os.Stdout
	if batchOutPath != "" {
		f, err := os.Create(batchOutPath)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	switch batchFormat {
	case "json":
		return verify.WriteJSON(out, report)
	case "csv":
		return verify.WriteCSV(out, report)
	default:
		return fmt.Errorf("unknown report format %q", batchFormat)
	}
}

func printBatchSummary(report *verify.BatchReport) {
	fmt.Fprintf(os.Stderr, "%d verified: ", report.Total)
	color.New(color.FgGreen).Fprintf(os.Stderr, "%d safe", report.Safe)
	fmt.Fprint(os.Stderr, ", ")
	color.New(color.FgRed).Fprintf(os.Stderr, "%d unsafe", report.Unsafe)
	fmt.Fprint(os.Stderr, ", ")
	color.New(color.FgYellow).Fprintf(os.Stderr, "%d inconclusive", report.Inconclusive)
	fmt.Fprintf(os.Stderr, ", %d errors\n", report.Errors)
}

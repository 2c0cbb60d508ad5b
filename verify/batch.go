package verify

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/actsafe/actsafe/internal/workflow"
)

// Result categories for batch entries.
const (
	CategorySafe         = "safe"
	CategoryUnsafe       = "unsafe"
	CategoryInconclusive = "inconclusive"
	CategoryError        = "error"
)

// FileResult is the outcome for one workflow pair in a batch.
type FileResult struct {
	File     string   `json:"file"`
	Category string   `json:"category"`
	Verdict  *Verdict `json:"verdict,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// BatchReport aggregates a whole batch run. Counts always sum to
// Total, including when the run was cut short by cancellation.
type BatchReport struct {
	Total        int          `json:"total"`
	Safe         int          `json:"safe"`
	Unsafe       int          `json:"unsafe"`
	Inconclusive int          `json:"inconclusive"`
	Errors       int          `json:"errors"`
	SafetyRate   float64      `json:"safety_rate"`
	Results      []FileResult `json:"results"`
}

// BatchOptions tunes a batch run. OnResult, when set, is called once
// per completed file from worker goroutines.
type BatchOptions struct {
	Workers  int
	OnResult func(FileResult)
}

// DefaultBatchWorkers bounds parallelism when the caller does not.
const DefaultBatchWorkers = 4

// VerifyBatch pairs workflow files by name across two directories
// and verifies each pair concurrently. A failure on one file never
// aborts the others; cancellation stops scheduling new files and
// returns the results gathered so far alongside the context error.
func (v *Verifier) VerifyBatch(ctx context.Context, origDir, modDir string, opts BatchOptions) (*BatchReport, error) {
	files, err := workflowFiles(origDir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", origDir, err)
	}
	if info, err := os.Stat(modDir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("modified directory %s is not readable", modDir)
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultBatchWorkers
	}

	results := make([]FileResult, len(files))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	for i, name := range files {
		if gctx.Err() != nil {
			break
		}
		i, name := i, name
		g.Go(func() error {
			res := v.verifyPair(gctx,
				filepath.Join(origDir, name),
				filepath.Join(modDir, name), name)
			mu.Lock()
			results[i] = res
			mu.Unlock()
			if opts.OnResult != nil {
				opts.OnResult(res)
			}
			return nil
		})
	}
	_ = g.Wait()

	report := &BatchReport{}
	for _, r := range results {
		if r.File == "" {
			continue // never scheduled before cancellation
		}
		report.Results = append(report.Results, r)
		report.Total++
		switch r.Category {
		case CategorySafe:
			report.Safe++
		case CategoryUnsafe:
			report.Unsafe++
		case CategoryInconclusive:
			report.Inconclusive++
		case CategoryError:
			report.Errors++
		}
	}
	if report.Total > 0 {
		report.SafetyRate = float64(report.Safe) / float64(report.Total)
	}
	return report, ctx.Err()
}

func (v *Verifier) verifyPair(ctx context.Context, origPath, modPath, name string) FileResult {
	origText, err := readFileRetry(origPath)
	if err != nil {
		return FileResult{File: name, Category: CategoryError,
			Error: fmt.Sprintf("read original: %v", err)}
	}
	modText, err := readFileRetry(modPath)
	if err != nil {
		return FileResult{File: name, Category: CategoryError,
			Error: fmt.Sprintf("read modified: %v", err)}
	}

	verdict, err := v.Verify(ctx, origText, modText)
	if err != nil {
		// Malformed YAML is a property of the input pair, not of the
		// run: the pair is undecidable, the batch keeps going.
		var parseErr *workflow.ParseError
		if errors.As(err, &parseErr) {
			return FileResult{File: name, Category: CategoryInconclusive, Error: err.Error()}
		}
		return FileResult{File: name, Category: CategoryError, Error: err.Error()}
	}
	verdict.File = name
	return FileResult{File: name, Category: categorize(verdict), Verdict: verdict}
}

func categorize(verdict *Verdict) string {
	switch {
	case verdict.Inconclusive:
		return CategoryInconclusive
	case verdict.IsSafe:
		return CategorySafe
	default:
		return CategoryUnsafe
	}
}

// readFileRetry reads a file, retrying once on failure. Batch inputs
// often sit on network mounts where a single read can flake.
func readFileRetry(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		return data, nil
	}
	return os.ReadFile(path)
}

func workflowFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yml" || ext == ".yaml" {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// WriteJSON renders a batch report as indented JSON.
func WriteJSON(w io.Writer, report *BatchReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// WriteCSV renders a batch report as one row per file.
func WriteCSV(w io.Writer, report *BatchReport) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"file", "category", "confidence", "issues", "error"}); err != nil {
		return err
	}
	for _, r := range report.Results {
		confidence := ""
		issues := ""
		if r.Verdict != nil {
			confidence = strconv.FormatFloat(r.Verdict.Confidence, 'f', 2, 64)
			issues = strings.Join(r.Verdict.Issues(), "; ")
		}
		if err := cw.Write([]string{r.File, r.Category, confidence, issues, r.Error}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	statusadapter "github.com/bnema/nearby-cli/internal/adapters/render/status"
	"github.com/bnema/nearby-cli/internal/application"
	"github.com/bnema/nearby-cli/internal/domain"
	"github.com/cheggaaa/pb/v3"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const maxListedFailures = 20

// targetsFile lists bulk targets, for batches too long for the command line.
type targetsFile struct {
	Recipients []int64 `yaml:"recipients"`
	Message    string  `yaml:"message"`
	// Images are resolved relative to the targets file.
	Images []string `yaml:"images"`
}

func loadTargetsFile(path string) (targetsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return targetsFile{}, fmt.Errorf("read targets file: %w", err)
	}

	var parsed targetsFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return targetsFile{}, fmt.Errorf("decode targets file %s: %w", path, err)
	}

	base := filepath.Dir(path)
	for i, image := range parsed.Images {
		if !filepath.IsAbs(image) {
			parsed.Images[i] = filepath.Join(base, image)
		}
	}
	return parsed, nil
}

// batchProgress draws a progress bar on stderr while batch results arrive.
type batchProgress struct {
	bar *pb.ProgressBar
}

func newBatchProgress(out io.Writer, total int, label string, quiet bool) *batchProgress {
	if quiet || total == 0 {
		return &batchProgress{}
	}

	tmpl := `{{string . "prefix"}}{{counters . }} {{bar . }} {{percent . }} {{etime . }}`
	bar := pb.ProgressBarTemplate(tmpl).New(total)
	bar.SetWriter(out)
	bar.Set("prefix", label+" ")
	bar.Start()
	return &batchProgress{bar: bar}
}

// observe is safe to call from concurrent batch workers.
func (p *batchProgress) observe(domain.TargetID, domain.CallOutcome) {
	if p.bar != nil {
		p.bar.Increment()
	}
}

func (p *batchProgress) finish() {
	if p.bar != nil {
		p.bar.Finish()
	}
}

type batchTargetJSON struct {
	Target  domain.TargetID `json:"target"`
	Label   string          `json:"label,omitempty"`
	Outcome string          `json:"outcome"`
	Class   string          `json:"class,omitempty"`
	Reason  string          `json:"reason,omitempty"`
}

type batchJSON struct {
	Counts     domain.BatchCounts `json:"counts"`
	Halted     bool               `json:"halted"`
	DurationMS int64              `json:"duration_ms"`
	Targets    []batchTargetJSON  `json:"targets"`
}

func writeBatchOutput(cmd *cobra.Command, app *app, title string, report application.BulkReport) error {
	result := report.Result
	if jsonFlag(cmd) {
		out := batchJSON{
			Counts:     result.Counts,
			Halted:     result.Halted,
			DurationMS: result.Duration.Milliseconds(),
			Targets:    make([]batchTargetJSON, 0, len(result.Order)),
		}
		for _, target := range result.Order {
			outcome, ok := result.Outcomes[target]
			if !ok {
				continue
			}
			entry := batchTargetJSON{
				Target:  target,
				Label:   report.Labels[target],
				Outcome: outcome.Kind.String(),
				Reason:  outcome.Reason,
			}
			if !outcome.OK() {
				entry.Class = outcome.Class.String()
			}
			out.Targets = append(out.Targets, entry)
		}
		return writeJSON(cmd, out)
	}

	rendered, err := app.batchRenderer(title, report, statusadapter.RenderOptions{Now: app.now(), MaxFailures: maxListedFailures})
	if err != nil {
		return fmt.Errorf("render batch: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}

// batchError turns a batch with failures into a non-zero exit after its report is printed.
func batchError(result domain.BatchResult) error {
	switch {
	case result.Halted:
		return fmt.Errorf("batch halted after ban detection: %d of %d targets succeeded", result.Counts.Succeeded, len(result.Order))
	case result.Counts.Failed() > 0:
		return fmt.Errorf("%d of %d targets failed", result.Counts.Failed(), result.Counts.Total)
	default:
		return nil
	}
}

package harness

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"go.uber.org/zap"

	"github.com/srobo-infra/sim-harness/runner"
	"github.com/srobo-infra/sim-harness/types"
)

// ResultFormatter is responsible for formatting and displaying test results.
type ResultFormatter interface {
	FormatResults(result *runner.RunResult) error
}

// ConsoleResultFormatter implements the ResultFormatter interface.
type ConsoleResultFormatter struct {
	logger *zap.SugaredLogger
	out    io.Writer
}

// NewConsoleResultFormatter creates a new ConsoleResultFormatter.
func NewConsoleResultFormatter(logger *zap.SugaredLogger) *ConsoleResultFormatter {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &ConsoleResultFormatter{
		logger: logger,
		out:    os.Stdout,
	}
}

// FormatResults formats and displays the test results.
func (f *ConsoleResultFormatter) FormatResults(result *runner.RunResult) error {
	f.logger.Infow("Printing results...")
	t := table.NewWriter()
	t.SetOutputMirror(f.out)
	t.SetTitle(fmt.Sprintf("Controller Test Results (%s)", formatDuration(result.Duration)))

	t.AppendHeader(table.Row{
		"Kind", "Root", "Duration", "Status", "Error",
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Kind", AutoMerge: true},
		{Name: "Root", WidthMax: 50, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Error", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
	})

	for _, root := range result.Roots {
		errorMsg := ""
		if root.Error != nil {
			errorMsg = extractKeyErrorMessage(root.Error)
		}
		t.AppendRow(table.Row{
			string(root.Metadata.Kind),
			root.Metadata.GetName(),
			formatDuration(root.Duration),
			getResultString(root.Status),
			errorMsg,
		})
	}

	if result.Stats.Skipped > 0 {
		t.AppendSeparator()
		t.AppendRow(table.Row{
			"", fmt.Sprintf("%d root(s) not attempted (fail-fast)", result.Stats.Skipped), "", "", "",
		})
	}

	// Table style follows the overall result status
	if result.Status == types.TestStatusPass {
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	} else {
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	}

	t.AppendFooter(table.Row{
		"TOTAL",
		fmt.Sprintf("%d/%d passed", result.Stats.Passed, result.Stats.Total),
		formatDuration(result.Duration),
		getResultString(result.Status),
		"",
	})

	t.Render()
	return nil
}

package formatting

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"assay/internal/loadgen"
	"assay/internal/runner"
	"assay/internal/storage"
	"assay/internal/suite"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

const maxMessageWidth = 80

// TableFormatter provides rich table output formatting
type TableFormatter struct {
	options Options
}

func (f *TableFormatter) colorize(c text.Colors, s string) string {
	if !f.options.Color {
		return s
	}
	return c.Sprint(s)
}

// createTable creates a new table with standard styling
func (f *TableFormatter) createTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Footer = text.FormatDefault
	return t
}

func (f *TableFormatter) header(cols ...string) table.Row {
	row := make(table.Row, len(cols))
	for i, c := range cols {
		row[i] = f.colorize(text.Colors{text.FgHiCyan}, c)
	}
	return row
}

func (f *TableFormatter) statusLabel(success bool) string {
	if success {
		return f.colorize(text.Colors{text.FgGreen}, "✅ PASS")
	}
	return f.colorize(text.Colors{text.FgRed}, "❌ FAIL")
}

func (f *TableFormatter) runStatus(status runner.Status) string {
	switch status {
	case runner.StatusPassed:
		return f.colorize(text.Colors{text.FgGreen}, "PASSED")
	case runner.StatusStopped:
		return f.colorize(text.Colors{text.FgYellow}, "STOPPED")
	default:
		return f.colorize(text.Colors{text.FgRed}, strings.ToUpper(string(status)))
	}
}

func (f *TableFormatter) FormatRunResult(w io.Writer, result *runner.RunResult) error {
	if result == nil {
		return fmt.Errorf("no run result")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s (%s)\n", f.colorize(text.Colors{text.Bold}, "Suite:"), result.SuiteName, result.TestType)
	if result.BaseURL != "" {
		fmt.Fprintf(&b, "%s %s\n", f.colorize(text.Colors{text.Bold}, "Target:"), result.BaseURL)
	}

	if !f.options.Quiet && len(result.Steps) > 0 {
		t := f.createTable()
		t.AppendHeader(f.header("#", "STEP", "TYPE", "STATUS", "DURATION", "MESSAGE"))
		for _, step := range result.Steps {
			msg := step.Message
			if !step.Success && step.Error != "" && !strings.Contains(msg, step.Error) {
				msg = msg + ": " + step.Error
			}
			t.AppendRow(table.Row{
				step.StepNumber,
				step.StepName,
				step.StepType,
				f.statusLabel(step.Success),
				FormatMillis(step.Duration),
				truncate(msg, maxMessageWidth),
			})
		}
		t.AppendFooter(table.Row{"", "", "", f.runStatus(result.Status), FormatMillis(result.Duration), f.summaryLine(result)})
		b.WriteString(t.Render())
		b.WriteString("\n")

		for _, step := range result.Steps {
			if load := f.loadDetail(step); load != "" {
				fmt.Fprintf(&b, "\nStep %d %s:\n%s\n", step.StepNumber, step.StepName, load)
			}
		}
	} else {
		fmt.Fprintf(&b, "%s %s\n", f.runStatus(result.Status), f.summaryLine(result))
	}

	if result.Status == runner.StatusStopped && result.StoppedAtStep > 0 {
		fmt.Fprintf(&b, "%s\n", f.colorize(text.Colors{text.FgYellow}, fmt.Sprintf("Run stopped after step %d", result.StoppedAtStep)))
	}
	if result.Error != "" {
		fmt.Fprintf(&b, "%s %s\n", f.colorize(text.Colors{text.FgRed}, "Error:"), result.Error)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func (f *TableFormatter) summaryLine(result *runner.RunResult) string {
	line := fmt.Sprintf("%d passed, %d failed", result.PassedSteps, result.FailedSteps)
	if notRun := result.TotalSteps - result.Attempted(); notRun > 0 {
		line += fmt.Sprintf(", %d not run", notRun)
	}
	return line
}

// loadDetail renders the metrics of loadTest and stressTest steps. Stored
// results carry step data as generic JSON, so it is decoded again here.
func (f *TableFormatter) loadDetail(step runner.StepResult) string {
	switch suite.StepType(step.StepType) {
	case suite.StepLoadTest:
		var m loadgen.Metrics
		if !decodeInto(step.Data, &m) || m.VirtualUsers == 0 {
			return ""
		}
		t := f.createTable()
		t.AppendHeader(f.header("USERS", "REQUESTS", "ERRORS", "ERROR RATE", "AVG", "P95", "MIN", "MAX", "REQ/S"))
		t.AppendRow(metricsRow(m.VirtualUsers, m))
		return t.Render()
	case suite.StepStressTest:
		var res loadgen.StressResult
		if !decodeInto(step.Data, &res) || len(res.Phases) == 0 {
			return ""
		}
		t := f.createTable()
		t.AppendHeader(f.header("USERS", "REQUESTS", "ERRORS", "ERROR RATE", "AVG", "P95", "MIN", "MAX", "REQ/S"))
		for _, p := range res.Phases {
			t.AppendRow(metricsRow(p.Users, p.Metrics))
		}
		footer := fmt.Sprintf("stable up to %d users", res.MaxStableUsers)
		if res.Halted {
			footer += fmt.Sprintf(", breaking point %d users", res.BreakingPoint)
		}
		t.SetCaption("%s", footer)
		return t.Render()
	}
	return ""
}

func metricsRow(users int, m loadgen.Metrics) table.Row {
	return table.Row{
		users,
		m.TotalRequests,
		m.TotalErrors,
		fmt.Sprintf("%.1f%%", m.ErrorRate*100),
		fmt.Sprintf("%.1fms", m.AvgResponseTime),
		fmt.Sprintf("%.1fms", m.P95ResponseTime),
		fmt.Sprintf("%.1fms", m.MinResponseTime),
		fmt.Sprintf("%.1fms", m.MaxResponseTime),
		fmt.Sprintf("%.1f", m.RequestsPerSecond),
	}
}

func decodeInto(data any, out any) bool {
	if data == nil {
		return false
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

func (f *TableFormatter) FormatRunList(w io.Writer, list *storage.ListResponse) error {
	if list == nil || len(list.Runs) == 0 {
		_, err := fmt.Fprintln(w, f.colorize(text.Colors{text.FgYellow}, "No runs found"))
		return err
	}

	t := f.createTable()
	t.AppendHeader(f.header("RUN ID", "SUITE", "TYPE", "STATUS", "STEPS", "DURATION", "STARTED"))
	for _, r := range list.Runs {
		t.AppendRow(table.Row{
			r.RunID,
			r.SuiteName,
			r.TestType,
			f.runStatus(r.Status),
			fmt.Sprintf("%d/%d", r.PassedSteps, r.TotalSteps),
			FormatMillis(r.Duration),
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
		})
	}

	caption := fmt.Sprintf("Showing %d of %d runs", len(list.Runs), list.Total)
	if list.HasMore {
		caption += fmt.Sprintf(" (use --offset %d for more)", list.Offset+len(list.Runs))
	}
	t.SetCaption("%s", caption)

	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func (f *TableFormatter) FormatSuiteReports(w io.Writer, reports []SuiteReport) error {
	if len(reports) == 0 {
		_, err := fmt.Fprintln(w, f.colorize(text.Colors{text.FgYellow}, "No suite files found"))
		return err
	}

	t := f.createTable()
	t.AppendHeader(f.header("FILE", "SUITE", "TYPE", "STEPS", "STATUS"))
	invalid := 0
	for _, r := range reports {
		t.AppendRow(table.Row{r.Path, r.SuiteName, r.TestType, r.Steps, f.statusLabel(r.Valid)})
		if !r.Valid {
			invalid++
		}
	}
	t.SetCaption("%d valid, %d invalid", len(reports)-invalid, invalid)

	var b strings.Builder
	b.WriteString(t.Render())
	b.WriteString("\n")
	for _, r := range reports {
		if len(r.Errors) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n%s\n", f.colorize(text.Colors{text.FgRed}, r.Path))
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "  - %s\n", e)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// Package stats summarizes and renders stored attempts.
package stats

import (
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/maruel/natural"
	"golang.org/x/term"

	"github.com/verte-zerg/typekaro/internal/model"
)

const sparkChars = " .:-=+*#%@"

var titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#C89A3A"))

// Summary aggregates a set of attempts.
type Summary struct {
	Attempts     int
	AvgWPM       float64
	BestWPM      int
	AvgCPM       float64
	AvgAccuracy  float64
	TotalSeconds int
}

// Summarize computes averages and the best WPM over attempts.
func Summarize(attempts []model.Attempt) Summary {
	var s Summary
	if len(attempts) == 0 {
		return s
	}
	var totalWPM, totalCPM, totalAcc float64
	for _, a := range attempts {
		totalWPM += float64(a.WPM)
		totalCPM += float64(a.CPM)
		totalAcc += a.AccuracyPercent
		s.TotalSeconds += a.DurationSeconds
		if a.WPM > s.BestWPM {
			s.BestWPM = a.WPM
		}
	}
	count := float64(len(attempts))
	s.Attempts = len(attempts)
	s.AvgWPM = totalWPM / count
	s.AvgCPM = totalCPM / count
	s.AvgAccuracy = totalAcc / count
	return s
}

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	if window <= 1 || len(values) == 0 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, len(values))
	var sum float64
	for i := 0; i < len(values); i++ {
		sum += values[i]
		if i >= window {
			sum -= values[i-window]
		}
		den := float64(i + 1)
		if i >= window {
			den = float64(window)
		}
		out[i] = sum / den
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal := values[0]
	maxVal := values[0]
	for _, v := range values[1:] {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		idx = max(0, min(idx, len(sparkChars)-1))
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

// RenderSummary prints the summary block for attempts.
func RenderSummary(w io.Writer, attempts []model.Attempt) error {
	if len(attempts) == 0 {
		_, err := fmt.Fprintln(w, "No attempts found.")
		return err
	}
	s := Summarize(attempts)
	lines := []string{
		heading(w, "Summary"),
		fmt.Sprintf("Attempts: %d", s.Attempts),
		fmt.Sprintf("Avg WPM: %.1f", s.AvgWPM),
		fmt.Sprintf("Best WPM: %d", s.BestWPM),
		fmt.Sprintf("Avg CPM: %.1f", s.AvgCPM),
		fmt.Sprintf("Avg Accuracy: %.1f%%", s.AvgAccuracy),
		fmt.Sprintf("Time typing: %s", FormatSeconds(s.TotalSeconds)),
		"",
	}
	return writeLines(w, lines)
}

// RenderTrend prints a moving-average WPM and accuracy sparkline.
func RenderTrend(w io.Writer, attempts []model.Attempt, window int) error {
	if len(attempts) < 2 {
		return nil
	}
	wpms := make([]float64, len(attempts))
	accs := make([]float64, len(attempts))
	for i, a := range attempts {
		wpms[i] = float64(a.WPM)
		accs[i] = a.AccuracyPercent
	}
	wpms = MovingAverage(wpms, window)
	accs = MovingAverage(accs, window)
	lines := []string{
		heading(w, "Trend"),
		fmt.Sprintf("WPM      |%s| %.1f", Sparkline(wpms), wpms[len(wpms)-1]),
		fmt.Sprintf("Accuracy |%s| %.1f%%", Sparkline(accs), accs[len(accs)-1]),
		"",
	}
	return writeLines(w, lines)
}

// RenderAttemptTable prints one row per attempt. titles maps test ids to
// display names.
func RenderAttemptTable(w io.Writer, attempts []model.Attempt, titles map[string]string) error {
	if len(attempts) == 0 {
		return nil
	}
	headers := []string{"Completed", "Test", "WPM", "CPM", "Accuracy", "Mistyped", "Time"}
	rows := make([][]string, 0, len(attempts))
	for _, a := range attempts {
		title := titles[a.TestID]
		if title == "" {
			title = a.TestID
		}
		rows = append(rows, []string{
			a.CompletedAt.Local().Format("2006-01-02 15:04"),
			title,
			fmt.Sprintf("%d", a.WPM),
			fmt.Sprintf("%d", a.CPM),
			fmt.Sprintf("%.1f%%", a.AccuracyPercent),
			fmt.Sprintf("%d", a.MistypedWordsApprox),
			FormatSeconds(a.DurationSeconds),
		})
	}
	lines := append([]string{heading(w, "Attempts")}, formatTable(headers, rows)...)
	return writeLines(w, append(lines, ""))
}

// RenderTests prints the test catalog with the best WPM per test.
func RenderTests(w io.Writer, tests []model.Test, best map[string]model.Attempt) error {
	if len(tests) == 0 {
		_, err := fmt.Fprintln(w, "No tests found.")
		return err
	}
	headers := []string{"ID", "Title", "Category", "Difficulty", "Time", "Best WPM"}
	rows := make([][]string, 0, len(tests))
	for _, t := range tests {
		bestWPM := "-"
		if a, ok := best[t.ID]; ok {
			bestWPM = fmt.Sprintf("%d", a.WPM)
		}
		rows = append(rows, []string{
			t.ID,
			t.Title,
			t.Category,
			string(t.Difficulty),
			FormatSeconds(t.DurationSeconds),
			bestWPM,
		})
	}
	return writeLines(w, formatTable(headers, rows))
}

// RenderBest prints the best attempt of each test found in the report.
func RenderBest(w io.Writer, best map[string]model.Attempt, titles map[string]string) error {
	if len(best) == 0 {
		return nil
	}
	ids := make([]string, 0, len(best))
	for id := range best {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return natural.Less(ids[i], ids[j])
	})
	headers := []string{"Test", "Best WPM", "Accuracy", "Completed"}
	rows := make([][]string, 0, len(ids))
	for _, id := range ids {
		a := best[id]
		title := titles[id]
		if title == "" {
			title = id
		}
		rows = append(rows, []string{
			title,
			fmt.Sprintf("%d", a.WPM),
			fmt.Sprintf("%.1f%%", a.AccuracyPercent),
			a.CompletedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	lines := append([]string{heading(w, "Best per test")}, formatTable(headers, rows)...)
	return writeLines(w, append(lines, ""))
}

// FormatSeconds renders seconds as m:ss.
func FormatSeconds(total int) string {
	if total < 0 {
		total = 0
	}
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func heading(w io.Writer, title string) string {
	if shouldUseColor(w) {
		return titleStyle.Render(title)
	}
	return title
}

func shouldUseColor(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}

func writeLines(w io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

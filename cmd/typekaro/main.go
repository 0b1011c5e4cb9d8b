// Package main provides the CLI entrypoint for typekaro.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	dateparser "github.com/markusmobius/go-dateparser"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/typekaro/internal/catalog"
	"github.com/verte-zerg/typekaro/internal/config"
	"github.com/verte-zerg/typekaro/internal/generator"
	"github.com/verte-zerg/typekaro/internal/model"
	"github.com/verte-zerg/typekaro/internal/stats"
	"github.com/verte-zerg/typekaro/internal/store"
	"github.com/verte-zerg/typekaro/internal/tui"
	"github.com/verte-zerg/typekaro/internal/wordlist"
)

const (
	defaultTickMs           = 200
	defaultBurstLimit       = 1
	defaultWords            = 30
	defaultCaps             = 0.2
	defaultPunct            = 0.2
	defaultPracticeDuration = 60
	defaultCurveWindow      = 10
)

const defaultPunctSet = ".,!?;:'\"()-"

var (
	userID         string
	takeTickMs     int
	takeBurstLimit int

	practiceWords    int
	practiceCaps     float64
	practicePunct    float64
	practicePunctSet string
	practiceDuration int
	practiceWordList string

	statsTest        string
	statsSince       string
	statsLast        int
	statsCurveWindow int
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "typekaro",
		Short:         "Timed typing tests in the terminal",
		SilenceUsage:  true,
		SilenceErrors: false,
		Args:          cobra.NoArgs,
		RunE:          runPickerCmd,
	}

	rootCmd.PersistentFlags().StringVar(&userID, "user", "", "user id attempts are saved under")
	rootCmd.PersistentFlags().IntVar(&takeTickMs, "tick-ms", defaultTickMs, "timer refresh interval in milliseconds")
	rootCmd.PersistentFlags().IntVar(&takeBurstLimit, "burst-limit", defaultBurstLimit, "max characters a single key event may add")

	rootCmd.AddCommand(newTakeCmd())
	rootCmd.AddCommand(newTestsCmd())
	rootCmd.AddCommand(newPracticeCmd())
	rootCmd.AddCommand(newImportCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newBestCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

// env is what every command needs after reading config and opening the db.
type env struct {
	file  config.FileConfig
	creds model.Credentials
	take  model.TakeConfig
	store *store.Store
}

func openEnv(cmd *cobra.Command) (*env, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "user", &userID, fileCfg.User.ID)
	applyIntConfig(cmd, "tick-ms", &takeTickMs, fileCfg.Take.TickMs)
	applyIntConfig(cmd, "burst-limit", &takeBurstLimit, fileCfg.Take.BurstLimit)

	take := model.TakeConfig{
		TickInterval: time.Duration(takeTickMs) * time.Millisecond,
		BurstLimit:   takeBurstLimit,
	}
	if err := validateTakeConfig(take); err != nil {
		return nil, err
	}

	creds := model.Credentials{UserID: strings.TrimSpace(userID)}
	if fileCfg.User.Name != nil {
		creds.Name = *fileCfg.User.Name
	}

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	if _, err := catalog.EnsureSeeded(cmd.Context(), st); err != nil {
		closeStore(st)
		return nil, fmt.Errorf("failed to seed tests: %w", err)
	}
	return &env{file: fileCfg, creds: creds, take: take, store: st}, nil
}

func (e *env) close() {
	closeStore(e.store)
}

func closeStore(st *store.Store) {
	if cerr := st.Close(); cerr != nil {
		logErrf("failed to close db: %v\n", cerr)
	}
}

func runPickerCmd(cmd *cobra.Command, _ []string) error {
	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	picker := tui.NewPicker(e.store, e.creds, e.take)
	return runProgram(picker)
}

func newTakeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "take <test-id>",
		Short: "Take one typing test",
		Args:  cobra.ExactArgs(1),
		RunE:  runTakeCmd,
	}
}

func runTakeCmd(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	test, err := e.store.GetTest(cmd.Context(), args[0])
	if err != nil {
		if errors.Is(err, store.ErrTestNotFound) {
			return fmt.Errorf("unknown test %q (list tests with: typekaro tests)", args[0])
		}
		return fmt.Errorf("failed to load test: %w", err)
	}
	return runAttempt(test, e)
}

func newTestsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tests",
		Short: "List available tests",
		Args:  cobra.NoArgs,
		RunE:  runTestsCmd,
	}
}

func runTestsCmd(cmd *cobra.Command, _ []string) error {
	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	ctx := cmd.Context()
	tests, err := e.store.ListTests(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tests: %w", err)
	}
	best := map[string]model.Attempt{}
	if e.creds.Authenticated() {
		best, err = e.store.BestAttempts(ctx, e.creds.UserID)
		if err != nil {
			return fmt.Errorf("failed to load best attempts: %w", err)
		}
	}
	return stats.RenderTests(cmd.OutOrStdout(), tests, best)
}

func newPracticeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "practice",
		Short: "Type a generated practice passage",
		Args:  cobra.NoArgs,
		RunE:  runPracticeCmd,
	}
	cmd.Flags().IntVar(&practiceWords, "words", defaultWords, "words per passage")
	cmd.Flags().Float64Var(&practiceCaps, "caps", defaultCaps, "probability of capitalized first letter (0-1)")
	cmd.Flags().Float64Var(&practicePunct, "punct", defaultPunct, "punctuation probability per word (0-1)")
	cmd.Flags().StringVar(&practicePunctSet, "punct-set", defaultPunctSet, "punctuation set")
	cmd.Flags().IntVar(&practiceDuration, "duration", defaultPracticeDuration, "time limit in seconds")
	cmd.Flags().StringVar(&practiceWordList, "wordlist", "", "word list file (default: built from the test catalog)")
	return cmd
}

func runPracticeCmd(cmd *cobra.Command, _ []string) error {
	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	applyIntConfig(cmd, "words", &practiceWords, e.file.Practice.Words)
	applyFloatConfig(cmd, "caps", &practiceCaps, e.file.Practice.CapsPct)
	applyFloatConfig(cmd, "punct", &practicePunct, e.file.Practice.PunctPct)
	applyStringConfig(cmd, "punct-set", &practicePunctSet, e.file.Practice.PunctSet)
	applyIntConfig(cmd, "duration", &practiceDuration, e.file.Practice.Duration)
	applyStringConfig(cmd, "wordlist", &practiceWordList, e.file.Practice.WordList)

	cfg := model.PracticeConfig{
		Words:           practiceWords,
		CapsPct:         practiceCaps,
		PunctPct:        practicePunct,
		PunctSet:        practicePunctSet,
		DurationSeconds: practiceDuration,
		WordListPath:    practiceWordList,
	}
	if err := validatePracticeConfig(cfg); err != nil {
		return err
	}

	words, err := loadPracticeWords(cmd.Context(), e.store, cfg.WordListPath)
	if err != nil {
		return err
	}
	test, err := generator.New().PracticeTest(words, cfg)
	if err != nil {
		return fmt.Errorf("failed to build practice passage: %w", err)
	}
	return runAttempt(test, e)
}

// loadPracticeWords reads the configured word list. Without one, the default
// list is used if present, otherwise words are taken from the catalog.
func loadPracticeWords(ctx context.Context, st *store.Store, path string) ([]string, error) {
	explicit := path != ""
	if !explicit {
		path = config.DefaultWordListPath()
	}
	words, err := wordlist.LoadWords(path)
	if err == nil {
		return words, nil
	}
	if explicit || !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load word list %s: %w", path, err)
	}
	tests, err := st.ListTests(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tests: %w", err)
	}
	passages := make([]string, 0, len(tests))
	for _, t := range tests {
		passages = append(passages, t.Content)
	}
	return wordlist.FromPassages(passages...), nil
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Import tests from a YAML pack",
		Args:  cobra.ExactArgs(1),
		RunE:  runImportCmd,
	}
}

func runImportCmd(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	tests, err := catalog.Import(cmd.Context(), e.store, args[0])
	if err != nil {
		return fmt.Errorf("failed to import %s: %w", args[0], err)
	}
	for _, t := range tests {
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", t.ID, t.Title); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	logErrf("Imported %d tests\n", len(tests))
	return nil
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show attempt history and trends",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().StringVar(&statsTest, "test", "", "test id filter")
	cmd.Flags().StringVar(&statsSince, "since", "", "start date (YYYY-MM-DD or e.g. \"2 weeks ago\")")
	cmd.Flags().IntVar(&statsLast, "last", 0, "limit to last N attempts")
	cmd.Flags().IntVar(&statsCurveWindow, "window", defaultCurveWindow, "moving average window")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	var sinceTime *time.Time
	if statsSince != "" {
		parsed, err := parseSince(statsSince)
		if err != nil {
			return fmt.Errorf("invalid --since value: %w", err)
		}
		sinceTime = &parsed
	}
	if statsLast < 0 {
		return fmt.Errorf("--last must be >= 0")
	}
	if statsCurveWindow <= 0 {
		return fmt.Errorf("--window must be > 0")
	}

	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()
	if err := requireUser(e.creds); err != nil {
		return err
	}

	cfg := model.StatsConfig{
		UserID:      e.creds.UserID,
		TestID:      statsTest,
		Since:       sinceTime,
		Last:        statsLast,
		CurveWindow: statsCurveWindow,
	}
	report, err := stats.BuildReport(cmd.Context(), e.store, cfg)
	if err != nil {
		return fmt.Errorf("failed to build stats: %w", err)
	}
	out := cmd.OutOrStdout()
	if err := stats.RenderSummary(out, report.Attempts); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := stats.RenderTrend(out, report.Attempts, cfg.CurveWindow); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := stats.RenderBest(out, report.Best, report.Titles); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := stats.RenderAttemptTable(out, report.Attempts, report.Titles); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func newBestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "best <test-id>",
		Short: "Show your best attempt at a test",
		Args:  cobra.ExactArgs(1),
		RunE:  runBestCmd,
	}
}

func runBestCmd(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()
	if err := requireUser(e.creds); err != nil {
		return err
	}

	ctx := cmd.Context()
	test, err := e.store.GetTest(ctx, args[0])
	if err != nil && !errors.Is(err, store.ErrTestNotFound) {
		return fmt.Errorf("failed to load test: %w", err)
	}
	title := test.Title
	if title == "" {
		title = args[0]
	}
	best, err := e.store.BestAttempt(ctx, e.creds.UserID, args[0])
	if err != nil {
		return fmt.Errorf("failed to load best attempt: %w", err)
	}
	out := cmd.OutOrStdout()
	if best == nil {
		_, err := fmt.Fprintf(out, "No attempts yet for %s.\n", title)
		return err
	}
	_, err = fmt.Fprintf(out, "%s\nWPM: %d\nAccuracy: %.1f%%\nCPM: %d\nMistyped words: %d\nTime: %s\nCompleted: %s\n",
		title,
		best.WPM,
		best.AccuracyPercent,
		best.CPM,
		best.MistypedWordsApprox,
		stats.FormatSeconds(best.DurationSeconds),
		best.CompletedAt.Local().Format("2006-01-02 15:04"),
	)
	return err
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func runAttempt(test model.Test, e *env) error {
	attempt, err := tui.NewModel(test, e.take, e.store, e.creds)
	if err != nil {
		return err
	}
	return runProgram(attempt)
}

func runProgram(m tea.Model) error {
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

// parseSince accepts YYYY-MM-DD or a phrase such as "yesterday" or
// "2 weeks ago".
func parseSince(value string) (time.Time, error) {
	if parsed, err := time.ParseInLocation("2006-01-02", value, time.Local); err == nil {
		return parsed, nil
	}
	dt, err := dateparser.Parse(nil, value)
	if err != nil {
		return time.Time{}, err
	}
	return dt.Time, nil
}

func requireUser(creds model.Credentials) error {
	if creds.Authenticated() {
		return nil
	}
	return fmt.Errorf("no user set: pass --user or set [user] id in %s", config.DefaultConfigPath())
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyFloatConfig(cmd *cobra.Command, name string, target, value *float64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# typekaro configuration
# Uncomment a value to enable it. CLI flags override config values.

[user]
# id = "alice"            # Attempts are saved under this id
# name = "Alice"          # Display name

[take]
# tick-ms = %d           # Timer refresh interval in milliseconds
# burst-limit = %d         # Max characters one key event may add

[practice]
# words = %d              # Words per passage
# caps = %.2f             # Probability of capitalized first letter (0-1)
# punct = %.2f            # Punctuation probability per word (0-1)
# punct-set = %q   # Punctuation set
# duration = %d           # Time limit in seconds
# wordlist = %q
`,
		defaultTickMs,
		defaultBurstLimit,
		defaultWords,
		defaultCaps,
		defaultPunct,
		defaultPunctSet,
		defaultPracticeDuration,
		config.DefaultWordListPath(),
	)
}

func validateTakeConfig(cfg model.TakeConfig) error {
	if cfg.TickInterval <= 0 {
		return fmt.Errorf("--tick-ms must be > 0")
	}
	if cfg.BurstLimit < 1 {
		return fmt.Errorf("--burst-limit must be >= 1")
	}
	return nil
}

func validatePracticeConfig(cfg model.PracticeConfig) error {
	if cfg.Words <= 0 {
		return fmt.Errorf("--words must be > 0")
	}
	if cfg.CapsPct < 0 || cfg.CapsPct > 1 {
		return fmt.Errorf("--caps must be between 0 and 1")
	}
	if cfg.PunctPct < 0 || cfg.PunctPct > 1 {
		return fmt.Errorf("--punct must be between 0 and 1")
	}
	if cfg.PunctPct > 0 && cfg.PunctSet == "" {
		return fmt.Errorf("--punct-set must not be empty")
	}
	if cfg.DurationSeconds <= 0 {
		return fmt.Errorf("--duration must be > 0")
	}
	return nil
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

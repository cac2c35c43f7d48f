package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/sadopc/httping/internal/app"
	"github.com/sadopc/httping/internal/config"
	"github.com/sadopc/httping/internal/core/history"
	"github.com/sadopc/httping/internal/hostutil"
	"github.com/sadopc/httping/internal/runner"
	"github.com/sadopc/httping/internal/scripting"
	"github.com/sadopc/httping/internal/ui/theme"
	"github.com/sadopc/httping/pkg/version"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "ping":
			os.Exit(pingCmd(os.Args[2:]))
		case "history":
			os.Exit(historyCmd(os.Args[2:]))
		case "version":
			fmt.Println(version.String())
			return
		case "help", "-h", "--help":
			printHelp()
			return
		}
	}
	tuiCmd()
}

func printHelp() {
	fmt.Fprintf(os.Stderr, `httping - probe a website from many locations at once

Usage:
  httping [flags]                    Launch TUI (interactive mode)
  httping <command> [args] [flags]   Run a subcommand

Commands:
  ping      Probe hosts headlessly and print the measurements
  history   List, search, show, replay or clear recorded runs
  version   Print version information
  help      Show this help message

TUI Flags:
  --config <path>  Path to a config file
  --theme <name>   Color theme (built-in name or a YAML theme in the themes directory)
  --version        Print version and exit

Run 'httping <command> --help' for more information about a command.
`)
}

func pingCmd(args []string) int {
	fs := flag.NewFlagSet("ping", flag.ExitOnError)
	keyFlag := fs.String("key", "", "Token derivation key (overrides config)")
	configFlag := fs.String("config", "", "Path to a config file")
	outputFlag := fs.String("output", "text", "Output format: text, json, junit")
	timeoutFlag := fs.Duration("timeout", 0, "Overall probe timeout (default from config)")
	scriptFlag := fs.String("script", "", "JavaScript file with assertions run against every probe")
	perfSaveFlag := fs.String("perf-save", "", "Save average timings as a performance baseline file")
	perfBaselineFlag := fs.String("perf-baseline", "", "Compare timings against a baseline file")
	perfThresholdFlag := fs.Float64("perf-threshold", 20.0, "Regression threshold percentage")
	noHistoryFlag := fs.Bool("no-history", false, "Do not record this run in history")
	debugFlag := fs.Bool("debug", false, "Log at debug level")
	verboseFlag := fs.Bool("verbose", false, "Show per-phase timings and script logs")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: httping ping [flags] <host>...\n\n")
		fmt.Fprintf(os.Stderr, "Probe hosts from every test location and print the measurements.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  httping ping example.com\n")
		fmt.Fprintf(os.Stderr, "  httping ping https://example.com/health --verbose\n")
		fmt.Fprintf(os.Stderr, "  httping ping a.example b.example --output json\n")
		fmt.Fprintf(os.Stderr, "  httping ping example.com --script checks.js --output junit > results.xml\n")
		fmt.Fprintf(os.Stderr, "  httping ping example.com --perf-baseline base.json --perf-threshold 10\n")
		fmt.Fprintf(os.Stderr, "\nExit codes:\n")
		fmt.Fprintf(os.Stderr, "  0  All probes finished, all tests passed\n")
		fmt.Fprintf(os.Stderr, "  1  A script assertion failed or a timing regressed\n")
		fmt.Fprintf(os.Stderr, "  2  A probe failed or was cancelled, or the command was misused\n")
	}

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Error: at least one host is required\n\n")
		fs.Usage()
		return 2
	}
	if err := validOutput(*outputFlag); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	hosts := make([]string, 0, fs.NArg())
	for _, raw := range fs.Args() {
		host, err := hostutil.Normalize(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 2
		}
		hosts = append(hosts, host)
	}

	var script string
	if *scriptFlag != "" {
		data, err := os.ReadFile(*scriptFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading script: %v\n", err)
			return 2
		}
		script = string(data)
	}

	cfg, err := loadConfig(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	if *keyFlag != "" {
		cfg.Key = *keyFlag
	}
	timeout := cfg.Timeout
	if *timeoutFlag > 0 {
		timeout = *timeoutFlag
	}

	s, err := newSession(cfg, sessionOptions{Debug: *debugFlag, NoHistory: *noHistoryFlag})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	defer s.Close()

	return runProbes(s, runner.Config{
		Hosts:        hosts,
		Backend:      "itdog",
		OutputFormat: *outputFlag,
		Verbose:      *verboseFlag,
		Timeout:      timeout,
		Tick:         cfg.TickInterval,
		Script:       script,
	}, perfOptions{
		save:      *perfSaveFlag,
		baseline:  *perfBaselineFlag,
		threshold: *perfThresholdFlag,
	})
}

type perfOptions struct {
	save      string
	baseline  string
	threshold float64
}

// runProbes runs the probes, prints them in the chosen format and returns
// the exit code.
func runProbes(s *session, rc runner.Config, perf perfOptions) int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	r := runner.New(s.coord, scripting.NewEngine(s.cfg.ScriptTimeout), s.log)
	results, err := r.Run(ctx, rc, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	if err := printResults(os.Stdout, rc.OutputFormat, results, rc.Verbose); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
		return 2
	}

	if perf.save != "" {
		if err := runner.SavePerfBaseline(perf.save, results); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving perf baseline: %v\n", err)
			return 2
		}
		fmt.Fprintf(os.Stderr, "Performance baseline saved to %s\n", perf.save)
	}

	code := runner.ExitCode(results)
	if perf.baseline != "" {
		baseline, err := runner.LoadPerfBaseline(perf.baseline)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading perf baseline: %v\n", err)
			return 2
		}
		comparisons := runner.ComparePerfBaseline(results, baseline, perf.threshold)
		runner.PrintPerfComparison(os.Stdout, comparisons, perf.threshold)
		if runner.HasRegressions(comparisons) && code == 0 {
			code = 1
		}
	}
	return code
}

func validOutput(format string) error {
	switch format {
	case "text", "json", "junit":
		return nil
	}
	return fmt.Errorf("invalid output format %q (must be text, json, or junit)", format)
}

func printResults(w io.Writer, format string, results []runner.Result, verbose bool) error {
	switch format {
	case "json":
		return runner.PrintJSON(w, results, isTerminal(w))
	case "junit":
		return runner.PrintJUnit(w, results)
	default:
		runner.PrintText(w, results, verbose)
		return nil
	}
}

// isTerminal reports whether w is a terminal, so JSON gets colour only when
// a person reads it.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

func historyCmd(args []string) int {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	configFlag := fs.String("config", "", "Path to a config file")
	limitFlag := fs.Int("limit", 20, "Number of runs to list")
	outputFlag := fs.String("output", "text", "Output format for replay: text, json, junit")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: httping history [list|search <query>|show <id>|replay <id>|clear] [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Inspect the runs recorded by earlier probes.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  httping history\n")
		fmt.Fprintf(os.Stderr, "  httping history search example.com\n")
		fmt.Fprintf(os.Stderr, "  httping history show 0b6f7c1e-...\n")
		fmt.Fprintf(os.Stderr, "  httping history replay 0b6f7c1e-... --output json\n")
	}

	action := "list"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		action, args = args[0], args[1:]
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := loadConfig(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	if !cfg.History.Enabled {
		fmt.Fprintf(os.Stderr, "Error: history is disabled in the configuration\n")
		return 2
	}

	needArg := func() (string, bool) {
		if fs.NArg() < 1 {
			fmt.Fprintf(os.Stderr, "Error: %s needs an argument\n\n", action)
			fs.Usage()
			return "", false
		}
		return fs.Arg(0), true
	}

	if action == "replay" {
		id, ok := needArg()
		if !ok {
			return 2
		}
		if err := validOutput(*outputFlag); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 2
		}
		s, err := newSession(cfg, sessionOptions{NoHistory: true})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 2
		}
		defer s.Close()
		return runProbes(s, runner.Config{
			Hosts:        []string{id},
			Backend:      "replay",
			OutputFormat: *outputFlag,
			Timeout:      cfg.Timeout,
			Tick:         cfg.TickInterval,
		}, perfOptions{})
	}

	store, err := history.NewStore(cfg.HistoryPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	defer store.Close()

	switch action {
	case "list":
		runs, err := store.List(*limitFlag, 0)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 2
		}
		printRuns(os.Stdout, runs)
	case "search":
		q, ok := needArg()
		if !ok {
			return 2
		}
		runs, err := store.Search(q)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 2
		}
		printRuns(os.Stdout, runs)
	case "show":
		id, ok := needArg()
		if !ok {
			return 2
		}
		run, err := store.Get(id)
		if errors.Is(err, history.ErrNotFound) {
			fmt.Fprintf(os.Stderr, "Error: no run with id %s\n", id)
			return 2
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 2
		}
		printRun(os.Stdout, run)
	case "clear":
		n, _ := store.Count()
		if err := store.Clear(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 2
		}
		fmt.Printf("Removed %s run(s)\n", humanize.Comma(int64(n)))
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown history action %q\n\n", action)
		fs.Usage()
		return 2
	}
	return 0
}

func printRuns(w io.Writer, runs []history.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tHOST\tBACKEND\tSTATUS\tRECORDS\tSTARTED\tDURATION")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Host, r.Backend, r.Status,
			humanize.Comma(int64(r.RecordCount)),
			humanize.Time(r.StartedAt),
			r.Duration().Round(time.Millisecond))
	}
	tw.Flush()
}

func printRun(w io.Writer, r history.Run) {
	fmt.Fprintf(w, "Run      %s\n", r.ID)
	fmt.Fprintf(w, "Host     %s\n", r.Host)
	fmt.Fprintf(w, "Backend  %s\n", r.Backend)
	fmt.Fprintf(w, "Status   %s\n", r.Status)
	fmt.Fprintf(w, "Started  %s (%s)\n", r.StartedAt.Local().Format("2006-01-02 15:04:05"), humanize.Time(r.StartedAt))
	fmt.Fprintf(w, "Duration %s\n", r.Duration().Round(time.Millisecond))
	if r.Error != "" {
		fmt.Fprintf(w, "Error    %s\n", r.Error)
	}
	if len(r.Records) == 0 {
		return
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	header := []string{"LOCATION", "IP", "STATUS", "TOTAL", "REDIRECT", "REDIRECT COST"}
	for _, name := range r.Records[0].PhaseNames() {
		header = append(header, strings.ToUpper(name))
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, rec := range r.Records {
		fmt.Fprintln(tw, strings.Join(rec.Row(), "\t"))
	}
	tw.Flush()
}

func tuiCmd() {
	versionFlag := flag.Bool("version", false, "Print version and exit")
	configFlag := flag.String("config", "", "Path to a config file")
	themeFlag := flag.String("theme", "", "Color theme")
	flag.Parse()

	if *versionFlag {
		fmt.Println(version.String())
		os.Exit(0)
	}

	cfg, err := loadConfig(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	if *themeFlag != "" {
		cfg.Theme = *themeFlag
	}

	s, err := newSession(cfg, sessionOptions{LogFile: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	defer s.Close()

	t := theme.Resolve(cfg.Theme, config.ThemesDir())
	s.log.Debug().Str("theme", t.Name).Msg("theme resolved")

	model := app.New(s.coord, app.Options{Theme: t, Tick: cfg.TickInterval})
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		s.Close()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

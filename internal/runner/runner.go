package runner

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/sadopc/httping/internal/probe"
	"github.com/sadopc/httping/internal/scripting"
)

// Runner probes hosts headlessly (no TUI).
type Runner struct {
	coord        *probe.Coordinator
	scriptEngine *scripting.Engine
	log          zerolog.Logger
}

// Config holds runner configuration.
type Config struct {
	Hosts        []string
	Backend      string
	OutputFormat string // "text", "json", "junit"
	Verbose      bool
	// Timeout bounds the whole run. Zero means no limit.
	Timeout time.Duration
	// Tick is the poll interval.
	Tick time.Duration
	// Grace is how long cancelled probes get to stop before they are abandoned.
	Grace  time.Duration
	Script string
}

// Result holds the outcome of probing a single host.
type Result struct {
	Host        string         `json:"host"`
	Backend     string         `json:"backend"`
	TaskID      string         `json:"task_id"`
	Status      string         `json:"status"`
	Started     time.Time      `json:"started"`
	Duration    time.Duration  `json:"duration"`
	Count       int            `json:"count"`
	OKCount     int            `json:"ok_count"`
	MinUnits    int64          `json:"min_units"`
	AvgUnits    int64          `json:"avg_units"`
	MaxUnits    int64          `json:"max_units"`
	Error       error          `json:"-"`
	ErrorString string         `json:"error,omitempty"`
	ScriptLogs  []string       `json:"script_logs,omitempty"`
	TestResults []TestResult   `json:"test_results,omitempty"`
	TestsPassed bool           `json:"tests_passed"`
	Records     []RecordResult `json:"records,omitempty"`
}

// Failed reports whether the probe or its script failed.
func (r Result) Failed() bool {
	return r.Error != nil || !r.TestsPassed
}

// RecordResult is the serialized form of one probe record.
type RecordResult struct {
	Loc          string        `json:"loc"`
	IP           string        `json:"ip"`
	Status       int           `json:"status"`
	Total        string        `json:"total"`
	TotalUnits   int64         `json:"total_units"`
	Redirect     int           `json:"redirect"`
	RedirectCost string        `json:"redirect_cost"`
	Phases       []PhaseResult `json:"phases"`
}

// PhaseResult is one timing phase of a record.
type PhaseResult struct {
	Name  string `json:"name"`
	Cost  string `json:"cost"`
	Units int64  `json:"units"`
}

// TestResult holds the result of a script test assertion.
type TestResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Error  string `json:"error,omitempty"`
}

// New creates a runner driving coord. Backends must already be registered.
func New(coord *probe.Coordinator, scriptEngine *scripting.Engine, log zerolog.Logger) *Runner {
	if scriptEngine == nil {
		scriptEngine = scripting.NewEngine(5 * time.Second)
	}
	return &Runner{coord: coord, scriptEngine: scriptEngine, log: log}
}

// Run probes every configured host concurrently and returns one result per
// host, in the order given. In text mode each record is written to w as it
// arrives. Run only returns an error when no probe could be started.
func (r *Runner) Run(ctx context.Context, cfg Config, w io.Writer) ([]Result, error) {
	if len(cfg.Hosts) == 0 {
		return nil, errors.New("no hosts given")
	}

	tasks := make([]*probe.Task, 0, len(cfg.Hosts))
	for _, host := range cfg.Hosts {
		t, err := r.coord.StartByName(cfg.Backend, host)
		if err != nil {
			for _, started := range tasks {
				started.Cancel()
			}
			return nil, err
		}
		tasks = append(tasks, t)
	}

	r.wait(ctx, cfg, tasks, w)

	results := make([]Result, 0, len(tasks))
	for _, t := range tasks {
		result := newResult(t)
		if cfg.Script != "" {
			r.runScript(cfg.Script, t, &result)
		}
		results = append(results, result)
	}
	return results, nil
}

// wait polls until every task has ended. Cancelling ctx or hitting the
// timeout cancels all probes; those still running after the grace period
// are abandoned.
func (r *Runner) wait(ctx context.Context, cfg Config, tasks []*probe.Task, w io.Writer) {
	tick := cfg.Tick
	if tick <= 0 {
		tick = 30 * time.Millisecond
	}
	grace := cfg.Grace
	if grace <= 0 {
		grace = 5 * time.Second
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	var timeout <-chan time.Time
	if cfg.Timeout > 0 {
		timer := time.NewTimer(cfg.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}
	done := ctx.Done()
	var abandon <-chan time.Time

	stream := cfg.OutputFormat == "" || cfg.OutputFormat == "text"
	printed := make(map[*probe.Task]int, len(tasks))

	stop := func(reason string) {
		r.log.Warn().Str("reason", reason).Msg("cancelling probes")
		for _, t := range tasks {
			t.Cancel()
		}
		timer := time.NewTimer(grace)
		abandon = timer.C
		done, timeout = nil, nil
	}

	for {
		r.coord.Poll()
		if stream {
			for _, t := range tasks {
				records := t.Records()
				for _, rec := range records[printed[t]:] {
					writeRecordLine(w, t.Host(), rec)
				}
				printed[t] = len(records)
			}
		}
		if allEnded(tasks) {
			return
		}

		select {
		case <-ticker.C:
		case <-done:
			stop("interrupted")
		case <-timeout:
			stop("timeout")
		case <-abandon:
			r.log.Warn().Msg("abandoning probes that ignored cancellation")
			r.coord.Close()
			abandon = nil
		}
	}
}

func allEnded(tasks []*probe.Task) bool {
	for _, t := range tasks {
		if !t.Ended() {
			return false
		}
	}
	return true
}

func (r *Runner) runScript(script string, t *probe.Task, result *Result) {
	sr := r.scriptEngine.RunProbeScript(script, scripting.NewScriptProbe(t))
	result.ScriptLogs = sr.Logs
	for _, tr := range sr.TestResults {
		result.TestResults = append(result.TestResults, TestResult{Name: tr.Name, Passed: tr.Passed, Error: tr.Error})
	}
	if sr.Err != nil {
		r.log.Warn().Err(sr.Err).Str("host", t.Host()).Msg("script failed")
		result.TestResults = append(result.TestResults, TestResult{Name: "script", Error: sr.Err.Error()})
	}
	result.TestsPassed = !sr.Failed()
}

// ExitCode maps results to the process exit code: 2 when a probe failed or
// did not finish, 1 when only script tests failed, 0 otherwise.
func ExitCode(results []Result) int {
	code := 0
	for _, r := range results {
		if r.Error != nil || r.Status != "finished" {
			return 2
		}
		if !r.TestsPassed {
			code = 1
		}
	}
	return code
}

func newResult(t *probe.Task) Result {
	records := t.Records()
	result := Result{
		Host:        t.Host(),
		Backend:     t.Backend(),
		TaskID:      t.ID(),
		Status:      t.Status().String(),
		Started:     t.Started(),
		Count:       len(records),
		OKCount:     t.OKCount(),
		Error:       t.Err(),
		TestsPassed: true,
		Records:     make([]RecordResult, 0, len(records)),
	}
	if !t.Finished().IsZero() {
		result.Duration = t.Finished().Sub(t.Started())
	}
	if result.Error != nil {
		result.ErrorString = result.Error.Error()
	}

	var sum int64
	for i, rec := range records {
		units := rec.TotalUnits()
		if i == 0 || units < result.MinUnits {
			result.MinUnits = units
		}
		if units > result.MaxUnits {
			result.MaxUnits = units
		}
		sum += units
		phases := make([]PhaseResult, 0, len(rec.Phases()))
		for j, ph := range rec.Phases() {
			phases = append(phases, PhaseResult{Name: ph.Name, Cost: ph.Cost, Units: rec.PhaseUnits(j)})
		}
		result.Records = append(result.Records, RecordResult{
			Loc:          rec.Loc(),
			IP:           rec.IP(),
			Status:       rec.Status(),
			Total:        rec.TotalCost(),
			TotalUnits:   units,
			Redirect:     rec.Redirect(),
			RedirectCost: rec.RedirectCost(),
			Phases:       phases,
		})
	}
	if len(records) > 0 {
		result.AvgUnits = sum / int64(len(records))
	}
	return result
}

package scripting

import (
	"context"
	"fmt"
	"time"

	"github.com/dop251/goja"
)

// Engine executes JavaScript assertions against finished probes.
type Engine struct {
	timeout time.Duration
}

// NewEngine creates a new scripting engine with the given timeout.
func NewEngine(timeout time.Duration) *Engine {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Engine{timeout: timeout}
}

// Result holds script execution results.
type Result struct {
	Logs        []string
	TestResults []TestResult
	Err         error
}

// Failed reports whether the script errored or any test failed.
func (r *Result) Failed() bool {
	if r.Err != nil {
		return true
	}
	for _, tr := range r.TestResults {
		if !tr.Passed {
			return true
		}
	}
	return false
}

// RunProbeScript executes script with httping.probe bound to p.
func (e *Engine) RunProbeScript(script string, p *ScriptProbe) *Result {
	api := newScriptAPI(p)
	err := e.run(script, api)
	return &Result{
		Logs:        api.logs,
		TestResults: api.testResults,
		Err:         err,
	}
}

func (e *Engine) run(script string, api *ScriptAPI) error {
	vm := goja.New()
	api.registerOnRuntime(vm)

	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	// Interrupt VM on timeout
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt("script timeout exceeded")
		case <-done:
		}
	}()

	_, err := vm.RunString(script)
	close(done)

	if err != nil {
		return fmt.Errorf("script error: %w", err)
	}
	return nil
}

package scripting

import (
	"fmt"

	"github.com/dop251/goja"
	"github.com/google/uuid"

	"github.com/sadopc/httping/internal/probe"
)

// ScriptAPI is the `httping` global object exposed to scripts.
type ScriptAPI struct {
	logs        []string
	testResults []TestResult
	probe       *ScriptProbe
}

// TestResult holds the result of a httping.test() call.
type TestResult struct {
	Name   string
	Passed bool
	Error  string
}

func newScriptAPI(p *ScriptProbe) *ScriptAPI {
	return &ScriptAPI{probe: p}
}

func (a *ScriptAPI) registerOnRuntime(vm *goja.Runtime) {
	obj := vm.NewObject()

	obj.Set("log", func(call goja.FunctionCall) goja.Value {
		args := make([]interface{}, len(call.Arguments))
		for i, arg := range call.Arguments {
			args[i] = arg.Export()
		}
		a.logs = append(a.logs, fmt.Sprint(args...))
		return goja.Undefined()
	})

	obj.Set("test", func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		fn, ok := goja.AssertFunction(call.Argument(1))
		if !ok {
			a.testResults = append(a.testResults, TestResult{Name: name, Passed: false, Error: "invalid test function"})
			return goja.Undefined()
		}

		result := TestResult{Name: name, Passed: true}
		if _, err := fn(goja.Undefined()); err != nil {
			result.Passed = false
			result.Error = err.Error()
		}
		a.testResults = append(a.testResults, result)
		return goja.Undefined()
	})

	obj.Set("assert", func(call goja.FunctionCall) goja.Value {
		if !call.Argument(0).ToBoolean() {
			msg := "assertion failed"
			if len(call.Arguments) > 1 {
				msg = call.Argument(1).String()
			}
			panic(vm.NewGoError(fmt.Errorf("%s", msg)))
		}
		return goja.Undefined()
	})

	// units("0.123") === 123, the integer form used for comparisons.
	obj.Set("units", func(call goja.FunctionCall) goja.Value {
		n, err := probe.CostUnits(call.Argument(0).String())
		if err != nil {
			return vm.ToValue(0)
		}
		return vm.ToValue(n)
	})

	obj.Set("uuid", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(uuid.New().String())
	})

	if a.probe != nil {
		obj.Set("probe", a.probe.toJS())
	}

	vm.Set("httping", obj)
}

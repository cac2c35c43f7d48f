package scripting

import "github.com/sadopc/httping/internal/probe"

// ScriptProbe is the read-only view of a finished probe exposed to scripts
// as httping.probe.
type ScriptProbe struct {
	Host    string
	Backend string
	Status  string
	Error   string
	Records []probe.Record
}

// NewScriptProbe captures an ended task.
func NewScriptProbe(t *probe.Task) *ScriptProbe {
	p := &ScriptProbe{
		Host:    t.Host(),
		Backend: t.Backend(),
		Status:  t.Status().String(),
		Records: t.Records(),
	}
	if err := t.Err(); err != nil {
		p.Error = err.Error()
	}
	return p
}

// toJS flattens the probe into plain values with script-friendly names.
func (p *ScriptProbe) toJS() map[string]interface{} {
	records := make([]interface{}, 0, len(p.Records))
	ok := 0
	for _, r := range p.Records {
		if r.OK() {
			ok++
		}
		phases := make([]interface{}, 0, len(r.Phases()))
		for i, ph := range r.Phases() {
			phases = append(phases, map[string]interface{}{
				"name":  ph.Name,
				"cost":  ph.Cost,
				"units": r.PhaseUnits(i),
			})
		}
		records = append(records, map[string]interface{}{
			"loc":          r.Loc(),
			"ip":           r.IP(),
			"status":       r.Status(),
			"total":        r.TotalCost(),
			"totalUnits":   r.TotalUnits(),
			"redirect":     r.Redirect(),
			"redirectCost": r.RedirectCost(),
			"phases":       phases,
		})
	}
	return map[string]interface{}{
		"host":    p.Host,
		"backend": p.Backend,
		"status":  p.Status,
		"error":   p.Error,
		"count":   len(p.Records),
		"okCount": ok,
		"records": records,
	}
}

package probe

import (
	"fmt"
	"strconv"
	"strings"
)

// Phase is one named timing phase of a measurement, e.g. DNS or connect.
type Phase struct {
	Name string
	Cost string
}

// Record is a single measurement produced by a probe. Costs are kept as the
// decimal-seconds text the service reported; use CostUnits to derive numbers.
type Record struct {
	loc          string
	ip           string
	status       int
	totalCost    string
	redirect     int
	redirectCost string
	phases       []Phase
}

// RecordFields carries the values used to build a Record.
type RecordFields struct {
	Loc          string
	IP           string
	Status       int
	TotalCost    string
	Redirect     int
	RedirectCost string
	Phases       []Phase
}

// NewRecord builds an immutable Record from f.
func NewRecord(f RecordFields) Record {
	var phases []Phase
	if len(f.Phases) > 0 {
		phases = make([]Phase, len(f.Phases))
		copy(phases, f.Phases)
	}
	return Record{
		loc:          f.Loc,
		ip:           f.IP,
		status:       f.Status,
		totalCost:    f.TotalCost,
		redirect:     f.Redirect,
		redirectCost: f.RedirectCost,
		phases:       phases,
	}
}

func (r Record) Loc() string          { return r.loc }
func (r Record) IP() string           { return r.ip }
func (r Record) Status() int          { return r.status }
func (r Record) TotalCost() string    { return r.totalCost }
func (r Record) Redirect() int        { return r.redirect }
func (r Record) RedirectCost() string { return r.redirectCost }

// Phases returns a copy of the ordered phase list.
func (r Record) Phases() []Phase {
	if len(r.phases) == 0 {
		return nil
	}
	out := make([]Phase, len(r.phases))
	copy(out, r.phases)
	return out
}

// PhaseNames returns the phase labels in order.
func (r Record) PhaseNames() []string {
	names := make([]string, len(r.phases))
	for i, p := range r.phases {
		names[i] = p.Name
	}
	return names
}

// Fields returns the values the record was built from.
func (r Record) Fields() RecordFields {
	return RecordFields{
		Loc:          r.loc,
		IP:           r.ip,
		Status:       r.status,
		TotalCost:    r.totalCost,
		Redirect:     r.redirect,
		RedirectCost: r.redirectCost,
		Phases:       r.Phases(),
	}
}

// OK reports whether the measured host answered with HTTP 200.
func (r Record) OK() bool { return r.status == 200 }

// Row returns the record as display cells: location, IP, status, total,
// redirect count, redirect cost, then one cell per phase.
func (r Record) Row() []string {
	row := []string{
		r.loc,
		r.ip,
		strconv.Itoa(r.status),
		r.totalCost,
		strconv.Itoa(r.redirect),
		r.redirectCost,
	}
	for _, p := range r.phases {
		row = append(row, p.Cost)
	}
	return row
}

// CostUnits derives an integer from a decimal-seconds cost by removing every
// '.' and parsing the remaining digits, so "0.123" becomes 123.
func CostUnits(cost string) (int64, error) {
	digits := strings.ReplaceAll(strings.TrimSpace(cost), ".", "")
	if digits == "" {
		return 0, fmt.Errorf("empty cost %q", cost)
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing cost %q: %w", cost, err)
	}
	return n, nil
}

// TotalUnits is CostUnits applied to the total cost; unparsable costs count as 0.
func (r Record) TotalUnits() int64 {
	n, err := CostUnits(r.totalCost)
	if err != nil {
		return 0
	}
	return n
}

// PhaseUnits is CostUnits applied to phase i; out of range or unparsable costs count as 0.
func (r Record) PhaseUnits(i int) int64 {
	if i < 0 || i >= len(r.phases) {
		return 0
	}
	n, err := CostUnits(r.phases[i].Cost)
	if err != nil {
		return 0
	}
	return n
}

package runner

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// PerfBaseline holds average total times per host.
type PerfBaseline struct {
	Version   string                   `json:"version"`
	CreatedAt time.Time                `json:"created_at"`
	Entries   map[string]PerfBaseEntry `json:"entries"` // keyed by host
}

// PerfBaseEntry holds the baseline for a single host.
type PerfBaseEntry struct {
	Host     string `json:"host"`
	Backend  string `json:"backend"`
	Records  int    `json:"records"`
	AvgUnits int64  `json:"avg_units"`
	AvgHuman string `json:"avg"` // for human readability
}

// PerfComparison holds a comparison between current and baseline averages.
type PerfComparison struct {
	Host         string  `json:"host"`
	Current      int64   `json:"current_units"`
	Baseline     int64   `json:"baseline_units"`
	Delta        int64   `json:"delta_units"`
	DeltaPercent float64 `json:"delta_percent"`
	Regressed    bool    `json:"regressed"`
	IsNew        bool    `json:"is_new"`
}

// SavePerfBaseline writes results as a performance baseline file. Hosts that
// errored or produced no records are left out.
func SavePerfBaseline(path string, results []Result) error {
	baseline := PerfBaseline{
		Version:   "1",
		CreatedAt: time.Now(),
		Entries:   make(map[string]PerfBaseEntry),
	}

	for _, r := range results {
		if r.Error != nil || r.Count == 0 {
			continue
		}
		baseline.Entries[r.Host] = PerfBaseEntry{
			Host:     r.Host,
			Backend:  r.Backend,
			Records:  r.Count,
			AvgUnits: r.AvgUnits,
			AvgHuman: formatUnits(r.AvgUnits),
		}
	}

	data, err := json.MarshalIndent(baseline, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling baseline: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing baseline: %w", err)
	}

	return nil
}

// LoadPerfBaseline reads a performance baseline file.
func LoadPerfBaseline(path string) (*PerfBaseline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading baseline: %w", err)
	}

	var baseline PerfBaseline
	if err := json.Unmarshal(data, &baseline); err != nil {
		return nil, fmt.Errorf("parsing baseline: %w", err)
	}

	return &baseline, nil
}

// ComparePerfBaseline compares results against a baseline.
// threshold is the percentage increase that counts as a regression (e.g. 20.0 = 20%).
func ComparePerfBaseline(results []Result, baseline *PerfBaseline, threshold float64) []PerfComparison {
	var comparisons []PerfComparison

	for _, r := range results {
		if r.Error != nil || r.Count == 0 {
			continue
		}

		comp := PerfComparison{
			Host:    r.Host,
			Current: r.AvgUnits,
		}

		entry, ok := baseline.Entries[r.Host]
		if !ok {
			comp.IsNew = true
			comparisons = append(comparisons, comp)
			continue
		}

		comp.Baseline = entry.AvgUnits
		comp.Delta = r.AvgUnits - entry.AvgUnits

		if entry.AvgUnits > 0 {
			comp.DeltaPercent = float64(comp.Delta) / float64(entry.AvgUnits) * 100
		}

		if comp.DeltaPercent > threshold {
			comp.Regressed = true
		}

		comparisons = append(comparisons, comp)
	}

	return comparisons
}

// HasRegressions returns true if any comparisons show regressions.
func HasRegressions(comparisons []PerfComparison) bool {
	for _, c := range comparisons {
		if c.Regressed {
			return true
		}
	}
	return false
}

// PrintPerfComparison writes a comparison table.
func PrintPerfComparison(w io.Writer, comparisons []PerfComparison, threshold float64) {
	fmt.Fprintf(w, "\nPerformance (threshold %.0f%%)\n", threshold)
	regressions := 0
	for _, c := range comparisons {
		switch {
		case c.IsNew:
			fmt.Fprintf(w, "  + %-30s %s (new)\n", truncate(c.Host, 30), formatUnits(c.Current))
		case c.Regressed:
			regressions++
			fmt.Fprintf(w, "  ✗ %-30s %s -> %s (%+.1f%%)\n",
				truncate(c.Host, 30), formatUnits(c.Baseline), formatUnits(c.Current), c.DeltaPercent)
		default:
			fmt.Fprintf(w, "  ✓ %-30s %s -> %s (%+.1f%%)\n",
				truncate(c.Host, 30), formatUnits(c.Baseline), formatUnits(c.Current), c.DeltaPercent)
		}
	}
	fmt.Fprintf(w, "%d regression(s)\n", regressions)
}

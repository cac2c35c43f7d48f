package runner

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/tidwall/pretty"

	"github.com/sadopc/httping/internal/probe"
)

// writeRecordLine prints one record as it streams in.
func writeRecordLine(w io.Writer, host string, rec probe.Record) {
	fmt.Fprintf(w, "  %-24s %-20s %-16s %3d  %s\n",
		truncate(host, 24), truncate(rec.Loc(), 20), rec.IP(), rec.Status(), formatUnits(rec.TotalUnits()))
}

// PrintText outputs a per-host summary in human-readable format.
func PrintText(w io.Writer, results []Result, verbose bool) {
	totalPassed := 0
	totalFailed := 0
	totalErrors := 0
	totalRecords := 0

	fmt.Fprintln(w)
	for _, r := range results {
		totalRecords += r.Count
		icon := "✓" // checkmark
		if r.Error != nil {
			icon = "✗" // x mark
			totalErrors++
		} else if !r.TestsPassed {
			icon = "✗"
		}

		fmt.Fprintf(w, "%s %-30s %-9s %s records, %s ok  %s\n",
			icon, truncate(r.Host, 30), r.Status,
			humanize.Comma(int64(r.Count)), humanize.Comma(int64(r.OKCount)),
			formatDuration(r.Duration))
		if r.Count > 0 {
			fmt.Fprintf(w, "  min %s  avg %s  max %s\n",
				formatUnits(r.MinUnits), formatUnits(r.AvgUnits), formatUnits(r.MaxUnits))
		}
		if r.Error != nil {
			fmt.Fprintf(w, "  └ Error: %s\n", r.Error)
		}

		for _, tr := range r.TestResults {
			if tr.Passed {
				totalPassed++
				fmt.Fprintf(w, "  ✓ %s\n", tr.Name)
			} else {
				totalFailed++
				fmt.Fprintf(w, "  ✗ %s: %s\n", tr.Name, tr.Error)
			}
		}

		if verbose {
			for _, log := range r.ScriptLogs {
				fmt.Fprintf(w, "  [log] %s\n", log)
			}
			for _, rec := range r.Records {
				phases := make([]string, 0, len(rec.Phases))
				for _, ph := range rec.Phases {
					phases = append(phases, fmt.Sprintf("%s %s", ph.Name, formatUnits(ph.Units)))
				}
				fmt.Fprintf(w, "    %-20s %s\n", truncate(rec.Loc, 20), strings.Join(phases, ", "))
			}
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Probes: %d total, %d errors, %s records\n",
		len(results), totalErrors, humanize.Comma(int64(totalRecords)))
	if totalPassed+totalFailed > 0 {
		fmt.Fprintf(w, "Tests: %d passed, %d failed\n", totalPassed, totalFailed)
	}
}

// PrintJSON outputs results as indented JSON, syntax-coloured when color is set.
func PrintJSON(w io.Writer, results []Result, color bool) error {
	data, err := json.Marshal(results)
	if err != nil {
		return err
	}
	data = pretty.Pretty(data)
	if color {
		data = pretty.Color(data, pretty.TerminalStyle)
	}
	_, err = w.Write(data)
	return err
}

// junitTestSuites is the root JUnit XML element.
type junitTestSuites struct {
	XMLName xml.Name         `xml:"testsuites"`
	Suites  []junitTestSuite `xml:"testsuite"`
}

type junitTestSuite struct {
	XMLName  xml.Name        `xml:"testsuite"`
	Name     string          `xml:"name,attr"`
	Tests    int             `xml:"tests,attr"`
	Failures int             `xml:"failures,attr"`
	Errors   int             `xml:"errors,attr"`
	Time     float64         `xml:"time,attr"`
	Cases    []junitTestCase `xml:"testcase"`
}

type junitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *junitFailure `xml:"failure,omitempty"`
	Error     *junitError   `xml:"error,omitempty"`
}

type junitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Content string `xml:",chardata"`
}

type junitError struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Content string `xml:",chardata"`
}

// PrintJUnit outputs results as JUnit XML for CI. Each host is a suite; each
// measurement is a case that fails unless the host answered 200.
func PrintJUnit(w io.Writer, results []Result) error {
	suites := junitTestSuites{}

	for _, r := range results {
		suite := junitTestSuite{
			Name: r.Host,
			Time: r.Duration.Seconds(),
		}

		for _, rec := range r.Records {
			tc := junitTestCase{
				Name:      rec.Loc,
				ClassName: r.Backend + " " + r.Host,
				Time:      float64(rec.TotalUnits) / 1000,
			}
			if rec.Status != 200 {
				suite.Failures++
				tc.Failure = &junitFailure{
					Message: fmt.Sprintf("HTTP %d", rec.Status),
					Type:    "HTTPError",
					Content: fmt.Sprintf("%s (%s) answered %d", rec.Loc, rec.IP, rec.Status),
				}
			}
			suite.Cases = append(suite.Cases, tc)
		}

		for _, tr := range r.TestResults {
			tc := junitTestCase{
				Name:      tr.Name,
				ClassName: r.Host,
				Time:      r.Duration.Seconds(),
			}
			if !tr.Passed {
				suite.Failures++
				tc.Failure = &junitFailure{
					Message: tr.Error,
					Type:    "AssertionFailure",
					Content: tr.Error,
				}
			}
			suite.Cases = append(suite.Cases, tc)
		}

		if r.Error != nil {
			suite.Errors++
			suite.Cases = append(suite.Cases, junitTestCase{
				Name:      r.Host,
				ClassName: r.Backend + " " + r.Host,
				Time:      r.Duration.Seconds(),
				Error: &junitError{
					Message: r.Error.Error(),
					Type:    "ProbeError",
					Content: r.Error.Error(),
				},
			})
		}

		suite.Tests = len(suite.Cases)
		suites.Suites = append(suites.Suites, suite)
	}

	fmt.Fprint(w, xml.Header)
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(suites); err != nil {
		return err
	}
	fmt.Fprintln(w)
	return nil
}

// formatUnits renders cost units (thousandths of a second) as milliseconds.
func formatUnits(u int64) string {
	return humanize.Comma(u) + "ms"
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

package itdog

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sadopc/httping/internal/probe"
)

// Phase labels, in the order the service reports them.
const (
	PhaseDNS      = "DNS"
	PhaseConnect  = "Connect"
	PhaseDownload = "Download"
)

// message is one measurement frame.
type message struct {
	IP           string `json:"ip"`
	HTTPCode     int    `json:"http_code"`
	AllTime      string `json:"all_time"`
	DNSTime      string `json:"dns_time"`
	ConnectTime  string `json:"connect_time"`
	DownloadTime string `json:"download_time"`
	Redirect     int    `json:"redirect"`
	RedirectTime string `json:"redirect_time"`
	Name         string `json:"name"`
}

func (m message) record() probe.Record {
	return probe.NewRecord(probe.RecordFields{
		Loc:          m.Name,
		IP:           m.IP,
		Status:       m.HTTPCode,
		TotalCost:    m.AllTime,
		Redirect:     m.Redirect,
		RedirectCost: m.RedirectTime,
		Phases: []probe.Phase{
			{Name: PhaseDNS, Cost: m.DNSTime},
			{Name: PhaseConnect, Cost: m.ConnectTime},
			{Name: PhaseDownload, Cost: m.DownloadTime},
		},
	})
}

// frameFields are the keys every measurement frame must carry.
var frameFields = []string{
	"ip", "http_code", "all_time", "dns_time", "connect_time",
	"download_time", "redirect", "redirect_time", "name",
}

// IsFinished reports whether a text frame is the end-of-task marker.
func IsFinished(frame []byte) bool {
	return strings.Contains(string(frame), FinishedMarker)
}

// DecodeFrame turns a measurement text frame into a record.
func DecodeFrame(frame []byte) (probe.Record, error) {
	if !utf8.Valid(frame) {
		return probe.Record{}, fmt.Errorf("%w: frame is not valid UTF-8", probe.ErrDecode)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(frame, &fields); err != nil {
		return probe.Record{}, fmt.Errorf("%w: %v", probe.ErrDecode, err)
	}
	if fields == nil {
		return probe.Record{}, fmt.Errorf("%w: frame is not a JSON object", probe.ErrDecode)
	}
	for _, key := range frameFields {
		raw, ok := fields[key]
		if !ok {
			return probe.Record{}, fmt.Errorf("%w: missing field %q", probe.ErrDecode, key)
		}
		if string(raw) == "null" {
			return probe.Record{}, fmt.Errorf("%w: field %q is null", probe.ErrDecode, key)
		}
	}
	var m message
	if err := json.Unmarshal(frame, &m); err != nil {
		return probe.Record{}, fmt.Errorf("%w: %v", probe.ErrDecode, err)
	}
	return m.record(), nil
}

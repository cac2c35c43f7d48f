package itdog

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/sadopc/httping/internal/probe"
)

const taskIDMarker = "task_id="

// maxPageBytes caps how much of the negotiation page is read.
const maxPageBytes = 4 << 20

// Session is the outcome of one negotiation. It authorizes exactly one stream.
type Session struct {
	TaskID string
	Token  string
}

type sessionPayload struct {
	TaskID    string `json:"task_id"`
	TaskToken string `json:"task_token"`
}

// Payload is the first text frame sent on the stream.
func (s Session) Payload() []byte {
	b, _ := json.Marshal(sessionPayload{TaskID: s.TaskID, TaskToken: s.Token})
	return b
}

// Negotiator submits the probe form and derives the stream token from the
// task id found in the returned page.
type Negotiator struct {
	URL    string
	Key    string
	Client *http.Client
	Log    zerolog.Logger
}

// Negotiate posts opts and returns the session for the created task.
func (n *Negotiator) Negotiate(ctx context.Context, opts Options) (Session, error) {
	endpoint := n.URL
	if endpoint == "" {
		endpoint = DefaultNegotiateURL
	}
	body := opts.Encode()
	n.Log.Trace().Str("body", body).Msg("negotiation form")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body))
	if err != nil {
		return Session{}, fmt.Errorf("%w: building request: %v", probe.ErrNegotiation, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := n.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Session{}, fmt.Errorf("%w: posting %s: %v", probe.ErrTransport, endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return Session{}, fmt.Errorf("%w: reading %s: %v", probe.ErrTransport, endpoint, err)
	}
	page := string(raw)

	// The page decides; the status only explains a page without a task.
	ok := resp.StatusCode >= 200 && resp.StatusCode <= 299
	taskID, err := FindTaskID(page)
	if err != nil {
		if !ok {
			return Session{}, fmt.Errorf("%w: %s returned %s (%s)", probe.ErrNegotiation, endpoint, resp.Status, pageSummary(page))
		}
		return Session{}, fmt.Errorf("%w (%s)", err, pageSummary(page))
	}
	if !ok {
		n.Log.Warn().Str("status", resp.Status).Msg("task id found on an error page")
	}
	n.Log.Debug().Str("task_id", taskID).Msg("task negotiated")

	key := n.Key
	if key == "" {
		key = DefaultKey
	}
	return Derive(taskID, key, opts.TokenBegin, opts.TokenEnd)
}

// FindTaskID extracts the single-quoted value that follows "task_id=".
func FindTaskID(page string) (string, error) {
	pos := strings.Index(page, taskIDMarker)
	if pos < 0 {
		return "", fmt.Errorf("%w: no task id in result page", probe.ErrNegotiation)
	}
	rest, ok := strings.CutPrefix(page[pos+len(taskIDMarker):], "'")
	if !ok {
		return "", fmt.Errorf("%w: task id is not quoted", probe.ErrNegotiation)
	}
	end := strings.IndexByte(rest, '\'')
	if end < 0 {
		return "", fmt.Errorf("%w: unterminated task id", probe.ErrNegotiation)
	}
	return rest[:end], nil
}

// Digest is the lowercase hex md5 of taskID followed by key.
func Digest(taskID, key string) string {
	sum := md5.Sum([]byte(taskID + key))
	return hex.EncodeToString(sum[:])
}

// TokenWindow slices digest[begin:end].
func TokenWindow(digest string, begin, end int) (string, error) {
	if begin < 0 || begin > end || end > len(digest) {
		return "", fmt.Errorf("%w: [%d, %d) of a %d-char digest", probe.ErrTokenRange, begin, end, len(digest))
	}
	return digest[begin:end], nil
}

// Derive builds the session for taskID.
func Derive(taskID, key string, begin, end int) (Session, error) {
	token, err := TokenWindow(Digest(taskID, key), begin, end)
	if err != nil {
		return Session{}, err
	}
	return Session{TaskID: taskID, Token: token}, nil
}

// pageSummary describes an unexpected page for error messages: its title and
// the start of its visible text.
func pageSummary(page string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return "unparsable page"
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	text := strings.Join(strings.Fields(doc.Find("body").Text()), " ")
	if r := []rune(text); len(r) > 120 {
		text = string(r[:120]) + "..."
	}
	switch {
	case title != "" && text != "":
		return fmt.Sprintf("title %q, text %q", title, text)
	case title != "":
		return fmt.Sprintf("title %q", title)
	case text != "":
		return fmt.Sprintf("text %q", text)
	default:
		return "empty page"
	}
}

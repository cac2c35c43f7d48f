package itdog

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/sadopc/httping/internal/probe"
)

// Backend probes hosts through the ITDOG service.
type Backend struct {
	negotiator *Negotiator
	stream     StreamClient
	options    Options
	log        zerolog.Logger
}

// Config wires a Backend.
type Config struct {
	Key          string
	NegotiateURL string
	// Options are the negotiation form defaults; Host is replaced per probe.
	Options    Options
	HTTPClient *http.Client

	SocketHost string
	SocketPort int
	SocketPath string
	Origin     string
	UserAgent  string
	Connector  Connector

	Log zerolog.Logger
}

// New creates a Backend. The zero Options value is replaced by DefaultOptions.
func New(cfg Config) *Backend {
	opts := cfg.Options
	if opts == (Options{}) {
		opts = DefaultOptions("")
	}
	return &Backend{
		negotiator: &Negotiator{
			URL:    cfg.NegotiateURL,
			Key:    cfg.Key,
			Client: cfg.HTTPClient,
			Log:    cfg.Log.With().Str("component", "negotiator").Logger(),
		},
		stream: StreamClient{
			Host:      cfg.SocketHost,
			Port:      cfg.SocketPort,
			Path:      cfg.SocketPath,
			Origin:    cfg.Origin,
			UserAgent: cfg.UserAgent,
			Connector: cfg.Connector,
			Log:       cfg.Log.With().Str("component", "stream").Logger(),
		},
		options: opts,
		log:     cfg.Log,
	}
}

func (b *Backend) Name() string { return "itdog" }

// Ping negotiates a task for host and streams its measurements to out.
func (b *Backend) Ping(ctx context.Context, host string, cancel <-chan struct{}, out chan<- probe.Event) error {
	opts := b.options.WithHost(host)
	stream := b.stream
	stream.Log = stream.Log.With().Str("host", host).Logger()

	negotiate := func(ctx context.Context) (Session, error) {
		return b.negotiator.Negotiate(ctx, opts)
	}
	return stream.Run(ctx, negotiate, cancel, out)
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/sadopc/httping/internal/config"
	"github.com/sadopc/httping/internal/core/cookies"
	"github.com/sadopc/httping/internal/core/history"
	"github.com/sadopc/httping/internal/core/tlsconf"
	"github.com/sadopc/httping/internal/itdog"
	"github.com/sadopc/httping/internal/logger"
	"github.com/sadopc/httping/internal/probe"
)

// replayInterval spaces replayed records so a replay reads like a live stream.
const replayInterval = 50 * time.Millisecond

// session holds everything a command needs to start probes. Close releases
// it in reverse order of construction.
type session struct {
	cfg     config.Config
	log     zerolog.Logger
	coord   *probe.Coordinator
	store   *history.Store
	jar     *cookies.Jar
	closers []func()
}

func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

type sessionOptions struct {
	// LogFile forces file logging, for the TUI.
	LogFile bool
	Debug   bool
	// NoHistory skips recording finished runs. The store is still opened
	// for the replay backend.
	NoHistory bool
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Load(), nil
	}
	return config.LoadFile(path)
}

// newSession builds the logger, the itdog backend with its TLS, proxy and
// cookie plumbing, the history store and a coordinator wired to all of them.
func newSession(cfg config.Config, opts sessionOptions) (*session, error) {
	s := &session{cfg: cfg}

	logCfg := logger.Config{Level: cfg.Log.Level, File: cfg.Log.File}
	if opts.LogFile {
		logCfg.File = cfg.LogPath()
	}
	if opts.Debug {
		logCfg.Level = "debug"
	}
	logCloser, err := logger.Init(logCfg)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, func() { logCloser.Close() })
	s.log = logger.WithComponent("httping")

	backend, err := newITDogBackend(cfg, s)
	if err != nil {
		s.Close()
		return nil, err
	}

	var onFinish func(*probe.Task)
	if cfg.History.Enabled {
		store, err := history.NewStore(cfg.HistoryPath())
		if err != nil {
			s.Close()
			return nil, err
		}
		s.store = store
		s.closers = append(s.closers, func() { store.Close() })
		if !opts.NoHistory {
			histLog := logger.WithComponent("history")
			onFinish = func(t *probe.Task) {
				if t.Backend() == "replay" {
					return
				}
				if err := store.Add(history.FromTask(t)); err != nil {
					histLog.Warn().Err(err).Str("host", t.Host()).Msg("recording run")
				}
			}
		}
	}

	s.coord = probe.NewCoordinator(context.Background(), probe.Options{
		Capacity: cfg.ChannelCapacity,
		Logger:   logger.WithComponent("coordinator"),
		OnFinish: onFinish,
	})
	s.closers = append(s.closers, s.coord.Close)
	s.coord.Register(backend)
	if s.store != nil {
		s.coord.Register(&probe.ReplayBackend{Source: s.store, Interval: replayInterval})
	}
	return s, nil
}

func newITDogBackend(cfg config.Config, s *session) (*itdog.Backend, error) {
	tlsCfg, err := cfg.TLS.Build()
	if err != nil {
		return nil, err
	}
	streamProxy, err := streamProxyURL(cfg.Proxy)
	if err != nil {
		return nil, err
	}
	pd, err := tlsconf.NewProxyDialer(streamProxy)
	if err != nil {
		return nil, err
	}
	dialer := &tlsconf.Dialer{
		TLS:         tlsCfg,
		Fingerprint: cfg.TLS.Fingerprint,
		Proxy:       pd,
		Timeout:     30 * time.Second,
	}
	transport, err := tlsconf.NewTransport(cfg.Proxy, dialer)
	if err != nil {
		return nil, err
	}

	jar := cookies.New()
	path := cfg.CookiesPath()
	if err := jar.Load(path); err != nil {
		l := logger.WithComponent("cookies")
		l.Warn().Err(err).Str("path", path).Msg("loading cookies")
	}
	s.jar = jar
	s.closers = append(s.closers, func() {
		if err := jar.Save(path); err != nil {
			l := logger.WithComponent("cookies")
			l.Warn().Err(err).Str("path", path).Msg("saving cookies")
		}
	})

	return itdog.New(itdog.Config{
		Key:          cfg.Key,
		NegotiateURL: cfg.NegotiateURL,
		Options:      cfg.Options(""),
		HTTPClient:   &http.Client{Transport: transport, Jar: jar, Timeout: 30 * time.Second},
		SocketHost:   cfg.Socket.Host,
		SocketPort:   cfg.Socket.Port,
		SocketPath:   cfg.Socket.Path,
		Origin:       cfg.Socket.Origin,
		UserAgent:    cfg.Negotiation.UserAgent,
		Connector:    dialer,
		Log:          logger.WithComponent("itdog"),
	}), nil
}

// streamProxyURL returns the proxy the stream connection may use. HTTP
// proxies only carry the negotiation request; the stream then dials directly.
func streamProxyURL(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parsing proxy URL: %w", err)
	}
	switch u.Scheme {
	case "socks5", "socks5h":
		return raw, nil
	case "http", "https":
		return "", nil
	default:
		return "", fmt.Errorf("unsupported proxy scheme: %s", u.Scheme)
	}
}

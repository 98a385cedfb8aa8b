package monitoring

import (
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/kilianp07/retrieverd/config"
	coremon "github.com/kilianp07/retrieverd/core/monitoring"
)

// beforeSend lets tests observe events before they leave the process.
var beforeSend func(*sentry.Event, *sentry.EventHint) *sentry.Event

// SentryMonitor reports errors on a dedicated Sentry hub. Every event carries
// the service tag.
type SentryMonitor struct {
	hub *sentry.Hub
}

// NewSentryMonitor returns a NopMonitor when no DSN is configured.
func NewSentryMonitor(cfg config.SentryConfig) (coremon.Monitor, error) {
	if cfg.DSN == "" {
		return coremon.NopMonitor{}, nil
	}
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		TracesSampleRate: cfg.TracesSampleRate,
		ServerName:       "retrieverd",
		AttachStacktrace: true,
		BeforeSend:       beforeSend,
	})
	if err != nil {
		return nil, err
	}
	scope := sentry.NewScope()
	scope.SetTag("service", "retrieverd")
	return &SentryMonitor{hub: sentry.NewHub(client, scope)}, nil
}

func (s *SentryMonitor) CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	s.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		s.hub.CaptureException(err)
	})
}

func (s *SentryMonitor) Flush(timeout time.Duration) { s.hub.Flush(timeout) }

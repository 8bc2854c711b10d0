// Package supervisor builds the suture tree that keeps the live event
// pipeline running: the MQTT source and the archive syncer restart
// independently of the display.
package supervisor

import (
	"context"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/thegridelectric/gridworks-debug-cli/internal/logging"
)

// TreeConfig holds supervision parameters. Zero values take suture's
// own defaults.
type TreeConfig struct {
	FailureThreshold float64
	FailureDecay     float64
	FailureBackoff   time.Duration
	ShutdownTimeout  time.Duration
}

// DefaultTreeConfig returns the failure parameters used by gwd.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Tree is a two-layer supervisor: sources (MQTT, archive sync) under
// the root, plus whatever display services the caller adds. A crash in
// one source does not take down the other or the display.
type Tree struct {
	root    *suture.Supervisor
	sources *suture.Supervisor
	config  TreeConfig
}

// NewTree creates the supervisor tree. Supervisor events are logged
// through the global logger.
func NewTree(config TreeConfig) *Tree {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5.0
	}
	if config.FailureDecay == 0 {
		config.FailureDecay = 30.0
	}
	if config.FailureBackoff == 0 {
		config.FailureBackoff = 15 * time.Second
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = 10 * time.Second
	}

	handler := &sutureslog.Handler{Logger: logging.NewSlogLogger()}

	rootSpec := suture.Spec{
		EventHook:        handler.MustHook(),
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}
	childSpec := suture.Spec{
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}

	root := suture.New("gwd", rootSpec)
	sources := suture.New("sources", childSpec)
	root.Add(sources)

	return &Tree{
		root:    root,
		sources: sources,
		config:  config,
	}
}

// AddSource adds a service to the sources layer.
func (t *Tree) AddSource(svc suture.Service) suture.ServiceToken {
	return t.sources.Add(svc)
}

// Add adds a service directly under the root.
func (t *Tree) Add(svc suture.Service) suture.ServiceToken {
	return t.root.Add(svc)
}

// Serve runs the tree until ctx is canceled.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground runs the tree in a goroutine and returns the channel
// that yields its terminal error.
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// Remove stops and removes a previously added service.
func (t *Tree) Remove(token suture.ServiceToken) error {
	return t.root.Remove(token)
}

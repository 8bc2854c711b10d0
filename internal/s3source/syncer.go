package s3source

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/thegridelectric/gridworks-debug-cli/internal/bus"
	"github.com/thegridelectric/gridworks-debug-cli/internal/config"
	"github.com/thegridelectric/gridworks-debug-cli/internal/events"
	"github.com/thegridelectric/gridworks-debug-cli/internal/logging"
	"github.com/thegridelectric/gridworks-debug-cli/internal/store"
)

// EventArchive is what the syncer needs from the archive. *Archive
// satisfies it.
type EventArchive interface {
	ListDays(ctx context.Context) ([]string, error)
	ListKeys(ctx context.Context, day string) ([]string, error)
	Fetch(ctx context.Context, key string) ([]byte, error)
	SyncedKey(day string) string
}

// DayResult summarizes one day-directory reconciliation.
type DayResult struct {
	Day     string
	Fetched int
	Skipped int
}

// Syncer reconciles the local store against the archive: only records
// whose MessageId is not already cached are fetched.
type Syncer struct {
	archive EventArchive
	store   *store.Store
	bus     *bus.Bus
	cfg     config.SyncConfig
	logger  zerolog.Logger
}

// NewSyncer creates a sync engine.
func NewSyncer(archive EventArchive, st *store.Store, b *bus.Bus, cfg config.SyncConfig) *Syncer {
	return &Syncer{
		archive: archive,
		store:   st,
		bus:     b,
		cfg:     cfg,
		logger:  logging.With().Str("component", "sync").Logger(),
	}
}

// Serve implements suture.Service: one reconciliation pass, then block
// until shutdown so the supervisor does not restart a finished sync.
func (s *Syncer) Serve(ctx context.Context) error {
	if err := s.Sync(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error().Err(err).Msg("sync pass failed")
	}
	<-ctx.Done()
	return ctx.Err()
}

// Sync runs one full reconciliation pass: the newest of the last
// num_dirs_to_sync day directories alone first, then the remainder
// concurrently. A failure in one directory does not abort the others.
func (s *Syncer) Sync(ctx context.Context) error {
	days, err := s.archive.ListDays(ctx)
	if err != nil {
		return fmt.Errorf("list archive days: %w", err)
	}
	if len(days) > s.cfg.NumDirsToSync {
		days = days[len(days)-s.cfg.NumDirsToSync:]
	}
	if len(days) == 0 {
		s.logger.Info().Msg("archive has no day directories")
		return nil
	}

	// Let the newest day finish without competition; it is the one the
	// display wants first.
	newest := days[len(days)-1]
	rest := days[:len(days)-1]
	var failures int
	if err := s.syncDay(ctx, newest); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		failures++
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	results := make([]error, len(rest))
	for i, day := range rest {
		g.Go(func() error {
			results[i] = s.syncDay(gctx, day)
			if errors.Is(results[i], context.Canceled) {
				return results[i] // tear down the group on shutdown
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for _, err := range results {
		if err != nil {
			failures++
		}
	}
	if failures > 0 {
		return fmt.Errorf("%d of %d day directories failed to sync", failures, len(days))
	}
	return nil
}

// syncDay reconciles one day directory, emitting lifecycle events.
func (s *Syncer) syncDay(ctx context.Context, day string) error {
	syncedKey := s.archive.SyncedKey(day)
	s.publish(events.NewSyncStart(syncedKey))

	result, err := s.fetchMissing(ctx, day)
	if err != nil {
		s.publish(events.NewSyncFailed(syncedKey, err))
		return fmt.Errorf("sync %s: %w", syncedKey, err)
	}

	s.logger.Info().
		Str("day", day).
		Int("fetched", result.Fetched).
		Int("skipped", result.Skipped).
		Msg("day directory synced")
	s.publish(events.NewSyncComplete(syncedKey, result.Fetched, result.Skipped))
	return nil
}

func (s *Syncer) fetchMissing(ctx context.Context, day string) (DayResult, error) {
	result := DayResult{Day: day}
	keys, err := s.archive.ListKeys(ctx, day)
	if err != nil {
		return result, err
	}
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		messageID := MessageIDFromKey(key)
		if messageID == "" {
			continue
		}
		cached, err := s.store.Has(messageID)
		if err != nil {
			return result, err
		}
		if cached {
			result.Skipped++
			continue
		}
		data, err := s.archive.Fetch(ctx, key)
		if err != nil {
			return result, err
		}
		event, err := events.Decode(data)
		if err != nil {
			// The archive occasionally holds non-event or malformed
			// objects; skip them rather than fail the directory.
			s.logger.Warn().Err(err).Str("key", key).Msg("skipping unparseable archive object")
			continue
		}
		inserted, err := s.store.Put(event)
		if err != nil {
			return result, err
		}
		if inserted {
			result.Fetched++
		} else {
			result.Skipped++
		}
	}
	return result, nil
}

func (s *Syncer) publish(event *events.AnyEvent) {
	if err := s.bus.PublishEvent(bus.TopicLifecycle, event); err != nil {
		s.logger.Error().Err(err).Msg("publish sync lifecycle event")
	}
}

// String names the service in supervisor logs.
func (s *Syncer) String() string {
	return "s3-syncer"
}

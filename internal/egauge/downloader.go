package egauge

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/thegridelectric/gridworks-debug-cli/internal/config"
	"github.com/thegridelectric/gridworks-debug-cli/internal/logging"
)

// Request describes one download window.
type Request struct {
	EgaugeID      string
	Start         time.Time
	End           time.Time
	PeriodSeconds int
}

// Rows returns how many data rows the window covers.
func (r Request) Rows() int {
	if r.PeriodSeconds <= 0 {
		return 0
	}
	return int(r.End.Sub(r.Start).Seconds()) / r.PeriodSeconds
}

// URLs returns the request URLs, newest window first. Windows larger
// than max_rows_per_request are split so the meter's CGI endpoint is
// never asked for more rows than it will serve.
func (r Request) URLs(cfg config.EgaugeConfig) []string {
	rows := r.Rows()
	if rows <= 0 {
		return nil
	}
	var urls []string
	end := r.End
	for rows > 0 {
		chunk := rows
		if cfg.MaxRowsPerRequest > 0 && chunk > cfg.MaxRowsPerRequest {
			chunk = cfg.MaxRowsPerRequest
		}
		urls = append(urls, BuildURL(cfg, r.EgaugeID, end, r.PeriodSeconds, chunk))
		end = end.Add(-time.Duration(chunk*r.PeriodSeconds) * time.Second)
		rows -= chunk
	}
	return urls
}

// Downloader fetches register CSV data from eGauge meters. Requests
// are rate limited and wrapped in a circuit breaker so a struggling
// meter is not hammered.
type Downloader struct {
	cfg     config.EgaugeConfig
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]byte]
	logger  zerolog.Logger
}

// NewDownloader builds a Downloader from settings. A nil client uses a
// default with a 5 minute timeout; meters serve long windows slowly.
func NewDownloader(cfg config.EgaugeConfig, client *http.Client) *Downloader {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	settings := gobreaker.Settings{
		Name: "egauge",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	}
	return &Downloader{
		cfg:     cfg,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		breaker: gobreaker.NewCircuitBreaker[[]byte](settings),
		logger:  logging.With().Str("component", "egauge").Logger(),
	}
}

// Download fetches the full window and returns one CSV document. Chunk
// responses arrive newest first; headers after the first chunk are
// dropped so the result parses as a single file.
func (d *Downloader) Download(ctx context.Context, req Request) ([]byte, error) {
	urls := req.URLs(d.cfg)
	if len(urls) == 0 {
		return nil, fmt.Errorf("window %s to %s at %ds per row yields no rows",
			req.Start.Format(time.RFC3339), req.End.Format(time.RFC3339), req.PeriodSeconds)
	}
	var out bytes.Buffer
	for i, url := range urls {
		chunk, err := d.fetch(ctx, url)
		if err != nil {
			return nil, err
		}
		if i > 0 {
			chunk = stripHeader(chunk)
		}
		out.Write(chunk)
		d.logger.Debug().Int("chunk", i+1).Int("chunks", len(urls)).Int("bytes", len(chunk)).Msg("chunk downloaded")
	}
	return out.Bytes(), nil
}

func (d *Downloader) fetch(ctx context.Context, url string) ([]byte, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return d.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := d.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("get %s: %w", url, err)
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", url, err)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("get %s: status %d: %s", url, resp.StatusCode, bytes.TrimSpace(body))
		}
		return body, nil
	})
}

func stripHeader(chunk []byte) []byte {
	if i := bytes.IndexByte(chunk, '\n'); i >= 0 {
		return chunk[i+1:]
	}
	return chunk
}

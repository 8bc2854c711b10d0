package egauge

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/thegridelectric/gridworks-debug-cli/internal/config"
)

func testEgaugeConfig() config.EgaugeConfig {
	cfg := config.DefaultCSVConfig().Egauge
	cfg.RequestsPerSecond = 1000
	return cfg
}

func TestBuildURL(t *testing.T) {
	end := time.Unix(1678406400, 0)
	tests := []struct {
		name   string
		mutate func(*config.EgaugeConfig)
		want   string
	}{
		{
			name: "all flags",
			want: "http://egauge4922.egaug.es/cgi-bin/egauge-show?c&S&E&C&Z=&s=59&n=1441&f=1678406400",
		},
		{
			name:   "absolute timestamps",
			mutate: func(cfg *config.EgaugeConfig) { cfg.RelativeToEpoch = false },
			want:   "http://egauge4922.egaug.es/cgi-bin/egauge-show?c&S&C&Z=&s=59&n=1441&f=1678406400",
		},
		{
			name: "no compression no localtime",
			mutate: func(cfg *config.EgaugeConfig) {
				cfg.DeltaCompressed = false
				cfg.Localtime = false
			},
			want: "http://egauge4922.egaug.es/cgi-bin/egauge-show?c&S&E&s=59&n=1441&f=1678406400",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testEgaugeConfig()
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}
			if got := BuildURL(cfg, "4922", end, 60, 1440); got != tt.want {
				t.Errorf("BuildURL = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCSVFileName(t *testing.T) {
	start := time.Date(2023, 3, 9, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, 3, 10, 0, 0, 0, 0, time.UTC)
	got := CSVFileName("apple", start, end, "egauge")
	want := "apple__2023-03-09_00.00.00__to__2023-03-10_00.00.00__egauge.csv"
	if got != want {
		t.Errorf("CSVFileName = %q, want %q", got, want)
	}

	path := CSVPath("/data", "apple", start, end, "egauge")
	if path != filepath.Join("/data", "apple", want) {
		t.Errorf("CSVPath = %q", path)
	}
}

func TestRequestRowsAndChunking(t *testing.T) {
	start := time.Unix(1678320000, 0)
	req := Request{
		EgaugeID:      "4922",
		Start:         start,
		End:           start.Add(24 * time.Hour),
		PeriodSeconds: 60,
	}
	if got := req.Rows(); got != 1440 {
		t.Fatalf("Rows = %d, want 1440", got)
	}

	cfg := testEgaugeConfig()
	cfg.MaxRowsPerRequest = 1000
	urls := req.URLs(cfg)
	if len(urls) != 2 {
		t.Fatalf("urls = %v", urls)
	}
	// Newest chunk covers the last 1000 rows, the remainder 440.
	if !strings.Contains(urls[0], "n=1001") || !strings.Contains(urls[0], fmt.Sprintf("f=%d", req.End.Unix())) {
		t.Errorf("first chunk url = %q", urls[0])
	}
	wantSecondEnd := req.End.Add(-1000 * 60 * time.Second).Unix()
	if !strings.Contains(urls[1], "n=441") || !strings.Contains(urls[1], fmt.Sprintf("f=%d", wantSecondEnd)) {
		t.Errorf("second chunk url = %q", urls[1])
	}

	if got := (Request{PeriodSeconds: 0}).URLs(cfg); got != nil {
		t.Errorf("zero period produced urls: %v", got)
	}
}

func TestDownloadMergesChunks(t *testing.T) {
	var requests []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.RawQuery)
		fmt.Fprintf(w, "Date & Time,usage\nrow-for-%s\n", r.URL.Query().Get("f"))
	}))
	defer server.Close()

	cfg := testEgaugeConfig()
	cfg.URLFormat = server.URL + "/cgi-bin/egauge-show"
	cfg.MaxRowsPerRequest = 100

	start := time.Unix(1678320000, 0)
	req := Request{
		EgaugeID:      "4922",
		Start:         start,
		End:           start.Add(150 * 60 * time.Second),
		PeriodSeconds: 60,
	}
	data, err := NewDownloader(cfg, server.Client()).Download(context.Background(), req)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}

	if len(requests) != 2 {
		t.Fatalf("requests = %v", requests)
	}
	out := string(data)
	if strings.Count(out, "Date & Time") != 1 {
		t.Errorf("merged csv repeats the header:\n%s", out)
	}
	if strings.Count(out, "row-for-") != 2 {
		t.Errorf("merged csv missing chunk rows:\n%s", out)
	}
}

func TestDownloadServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "meter busy", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := testEgaugeConfig()
	cfg.URLFormat = server.URL + "/cgi-bin/egauge-show"

	start := time.Unix(1678320000, 0)
	req := Request{EgaugeID: "4922", Start: start, End: start.Add(time.Hour), PeriodSeconds: 60}
	_, err := NewDownloader(cfg, server.Client()).Download(context.Background(), req)
	if err == nil || !strings.Contains(err.Error(), "status 503") {
		t.Errorf("err = %v", err)
	}
}

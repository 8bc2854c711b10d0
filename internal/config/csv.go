package config

// ScadaConfig names one scada/atn pair and its eGauge meter.
type ScadaConfig struct {
	Atn         string `koanf:"atn"           json:"atn"`
	EgaugeID    string `koanf:"egauge"        json:"egauge"`
	BytesPerRow int    `koanf:"bytes_per_row" json:"bytes_per_row" validate:"gte=1"`
}

// EgaugeConfig controls how eGauge CGI download URLs are built and how
// aggressively the meter is queried.
type EgaugeConfig struct {
	URLFormat         string  `koanf:"url_format"          json:"url_format"          validate:"required"`
	RelativeToEpoch   bool    `koanf:"relative_to_epoch"   json:"relative_to_epoch"`
	DeltaCompressed   bool    `koanf:"delta_compressed"    json:"delta_compressed"`
	Localtime         bool    `koanf:"localtime"           json:"localtime"`
	RequestsPerSecond float64 `koanf:"requests_per_second" json:"requests_per_second" validate:"gt=0"`
	MaxRowsPerRequest int     `koanf:"max_rows_per_request" json:"max_rows_per_request" validate:"gte=1"`
}

// CSVConfig is the full configuration for `gwd csv`.
type CSVConfig struct {
	Paths        Paths                  `koanf:"paths"         json:"paths"`
	S3           S3Config               `koanf:"s3"            json:"s3"`
	Egauge       EgaugeConfig           `koanf:"egauge"        json:"egauge"`
	Scadas       map[string]ScadaConfig `koanf:"scadas"        json:"scadas"`
	DefaultScada string                 `koanf:"default_scada" json:"default_scada"`
	Logging      LoggingConfig          `koanf:"logging"       json:"logging"`
}

// DefaultCSVConfig returns the defaults written by `gwd csv mkconfig`.
// The example scada entry mirrors the shape users must fill in.
func DefaultCSVConfig() *CSVConfig {
	return &CSVConfig{
		Paths: DefaultPaths("csv"),
		S3:    S3Config{},
		Egauge: EgaugeConfig{
			URLFormat:         "http://egauge{egauge_id}.egaug.es/cgi-bin/egauge-show",
			RelativeToEpoch:   true,
			DeltaCompressed:   true,
			Localtime:         true,
			RequestsPerSecond: 2,
			MaxRowsPerRequest: 1440,
		},
		Scadas: map[string]ScadaConfig{
			"apple": {
				Atn:         "hw1.isone.me.freedom.apple",
				EgaugeID:    "4922",
				BytesPerRow: 240,
			},
		},
		DefaultScada: "apple",
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate applies struct tags plus scada cross-checks.
func (c *CSVConfig) Validate() error {
	if err := validateStruct(c); err != nil {
		return err
	}
	if c.DefaultScada != "" {
		if _, ok := c.Scadas[c.DefaultScada]; !ok {
			return errUnknownScada(c.DefaultScada)
		}
	}
	return nil
}

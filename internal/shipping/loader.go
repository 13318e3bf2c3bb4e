package shipping

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Loader reads a rate table from some backing store.
type Loader interface {
	Load(ctx context.Context, path string) (*RateTable, error)
}

// decodeTable parses a JSON rate table, gunzipping first when the name ends
// in .gz, and validates it.
func decodeTable(r io.Reader, name string) (*RateTable, error) {
	if strings.HasSuffix(name, ".gz") {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader for %s: %w", name, err)
		}
		defer gz.Close()
		r = gz
	}

	var table RateTable
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&table); err != nil {
		return nil, fmt.Errorf("failed to decode rate table %s: %w", name, err)
	}
	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rate table %s: %w", name, err)
	}
	return &table, nil
}

type fileLoader struct {
	logger zerolog.Logger
}

// NewFileLoader creates a loader for rate tables on the local file system.
func NewFileLoader(logger zerolog.Logger) Loader {
	return &fileLoader{
		logger: logger.With().Str("component", "rate-loader").Logger(),
	}
}

func (l *fileLoader) Load(ctx context.Context, path string) (*RateTable, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		l.logger.Error().Err(err).Str("file", path).Msg("failed to open rate table")
		return nil, fmt.Errorf("failed to open rate table %s: %w", path, err)
	}
	defer file.Close()

	table, err := decodeTable(file, path)
	if err != nil {
		l.logger.Error().Err(err).Str("file", path).Msg("failed to load rate table")
		return nil, err
	}

	l.logger.Info().
		Str("file", path).
		Int("international_rows", len(table.International)).
		Msg("rate table loaded")

	return table, nil
}

type fallbackLoader struct {
	s3Loader   Loader
	fileLoader Loader
	s3Prefix   string
	s3Enabled  bool
	logger     zerolog.Logger
}

// NewFallbackLoader tries S3 first (key = s3Prefix + path) and falls back to
// the local file. A nil s3Loader means local only.
func NewFallbackLoader(s3Loader, fileLoader Loader, s3Prefix string, s3Enabled bool, logger zerolog.Logger) Loader {
	return &fallbackLoader{
		s3Loader:   s3Loader,
		fileLoader: fileLoader,
		s3Prefix:   s3Prefix,
		s3Enabled:  s3Enabled,
		logger:     logger.With().Str("component", "fallback-rate-loader").Logger(),
	}
}

func (l *fallbackLoader) Load(ctx context.Context, path string) (*RateTable, error) {
	if l.s3Enabled && l.s3Loader != nil {
		key := l.s3Prefix + path
		table, err := l.s3Loader.Load(ctx, key)
		if err == nil {
			return table, nil
		}
		l.logger.Warn().
			Err(err).
			Str("s3_key", key).
			Msg("failed to load rate table from S3, falling back to local file")
	}

	return l.fileLoader.Load(ctx, path)
}

// LoadTable returns the built-in table when path is empty, otherwise the
// table read through loader.
func LoadTable(ctx context.Context, loader Loader, path string, logger zerolog.Logger) (*RateTable, error) {
	if path == "" {
		logger.Info().Msg("no shipping rate table configured, using built-in rates")
		return DefaultTable(), nil
	}
	return loader.Load(ctx, path)
}

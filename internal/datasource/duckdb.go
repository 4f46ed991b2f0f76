package datasource

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/replaylab/replay-trading/internal/logger"
	"github.com/replaylab/replay-trading/internal/types"
	"github.com/replaylab/replay-trading/pkg/errors"
)

// DuckDBConfig configures the file-backed provider.
type DuckDBConfig struct {
	// Path to a CSV or Parquet file with timestamp/open/high/low/close/
	// volume columns.
	Path string
	// TimestampColumn overrides the timestamp column name (default
	// "timestamp").
	TimestampColumn string
	Symbol          string
	// Start/End filter the stream inclusively.
	Start optional.Option[time.Time]
	End   optional.Option[time.Time]
}

// DuckDBProvider streams bars out of a CSV or Parquet file through an
// in-memory DuckDB instance. Rows are served in timestamp order.
type DuckDBProvider struct {
	config DuckDBConfig
	log    *logger.Logger
	db     *sql.DB
	sq     squirrel.StatementBuilderType
	rows   *sql.Rows
}

// NewDuckDBProvider opens the database and registers the file as the
// market_data view.
func NewDuckDBProvider(config DuckDBConfig, log *logger.Logger) (*DuckDBProvider, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	if config.TimestampColumn == "" {
		config.TimestampColumn = "timestamp"
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataUnavailable, "failed to open duckdb", err)
	}

	provider := &DuckDBProvider{
		config: config,
		log:    log,
		db:     db,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}

	if err := provider.initView(); err != nil {
		db.Close()

		return nil, err
	}

	return provider, nil
}

func (d *DuckDBProvider) initView() error {
	d.log.Debug("initializing duckdb provider", zap.String("path", d.config.Path))

	reader := "read_csv_auto"
	if strings.EqualFold(filepath.Ext(d.config.Path), ".parquet") {
		reader = "read_parquet"
	}

	// CREATE VIEW has no placeholder support; the path is interpolated.
	query := fmt.Sprintf(`
		CREATE OR REPLACE VIEW market_data AS
		SELECT %s AS ts, open, high, low, close, volume
		FROM %s('%s');
	`, d.config.TimestampColumn, reader, d.config.Path)

	if _, err := d.db.Exec(query); err != nil {
		return errors.Wrapf(errors.ErrCodeDataUnavailable, err, "failed to create view for %s", d.config.Path)
	}

	return nil
}

func (d *DuckDBProvider) selectBuilder(columns ...string) squirrel.SelectBuilder {
	builder := d.sq.Select(columns...).From("market_data")

	if d.config.Start.IsSome() {
		builder = builder.Where(squirrel.GtOrEq{"ts": d.config.Start.Unwrap()})
	}

	if d.config.End.IsSome() {
		builder = builder.Where(squirrel.LtOrEq{"ts": d.config.End.Unwrap()})
	}

	return builder
}

func (d *DuckDBProvider) open() error {
	query, args, err := d.selectBuilder("ts", "open", "high", "low", "close", "volume").
		OrderBy("ts ASC").
		ToSql()
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to build query", err)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to query market data", err)
	}

	d.rows = rows

	return nil
}

// Next implements Provider.
func (d *DuckDBProvider) Next() (optional.Option[types.Bar], error) {
	if d.rows == nil {
		if err := d.open(); err != nil {
			return optional.None[types.Bar](), err
		}
	}

	if !d.rows.Next() {
		if err := d.rows.Err(); err != nil {
			return optional.None[types.Bar](), errors.Wrap(errors.ErrCodeQueryFailed, "row iteration failed", err)
		}

		return optional.None[types.Bar](), nil
	}

	var (
		ts                             time.Time
		open, high, low, close, volume float64
	)

	if err := d.rows.Scan(&ts, &open, &high, &low, &close, &volume); err != nil {
		return optional.None[types.Bar](), errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan bar", err)
	}

	return optional.Some(types.Bar{
		Timestamp: ts.UTC(),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    volume,
		Symbol:    d.config.Symbol,
		TimeFrame: types.TimeFrame1m,
	}), nil
}

// Reset implements Provider by re-running the query.
func (d *DuckDBProvider) Reset() error {
	if d.rows != nil {
		if err := d.rows.Close(); err != nil {
			return errors.Wrap(errors.ErrCodeQueryFailed, "failed to close rows", err)
		}

		d.rows = nil
	}

	return nil
}

// Symbol implements Provider.
func (d *DuckDBProvider) Symbol() string {
	return d.config.Symbol
}

// TimeFrame implements Provider.
func (d *DuckDBProvider) TimeFrame() types.TimeFrame {
	return types.TimeFrame1m
}

// Count implements Counter.
func (d *DuckDBProvider) Count() (int, error) {
	query, args, err := d.selectBuilder("COUNT(*)").ToSql()
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build count query", err)
	}

	var count int
	if err := d.db.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to count bars", err)
	}

	return count, nil
}

// Close releases the database handle.
func (d *DuckDBProvider) Close() error {
	if d.rows != nil {
		d.rows.Close()
		d.rows = nil
	}

	return d.db.Close()
}

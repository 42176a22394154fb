package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/i474232898/weather-records/internal/weather"
)

const schema = `
CREATE TABLE IF NOT EXISTS weather (
	location  TEXT PRIMARY KEY,
	date      TIMESTAMPTZ NOT NULL,
	temp_min  DOUBLE PRECISION NOT NULL,
	temp_max  DOUBLE PRECISION NOT NULL,
	condition TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS weather_date_idx ON weather (date);
`

const selectColumns = `SELECT location, date, temp_min, temp_max, condition FROM weather`

// uniqueViolation is the postgres SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

var columns = map[weather.Field]string{
	weather.FieldLocation:  "location",
	weather.FieldDate:      "date",
	weather.FieldCondition: "condition",
}

// PostgresStore implements weather.Store on a postgres table.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects to dsn, verifies the connection and creates the
// schema if it does not exist.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Ping reports whether the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Create(ctx context.Context, rec weather.Record) (weather.Record, error) {
	rec.Date = rec.Date.UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO weather (location, date, temp_min, temp_max, condition) VALUES ($1, $2, $3, $4, $5)`,
		rec.Location, rec.Date, rec.TempMin, rec.TempMax, rec.Condition)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return weather.Record{}, fmt.Errorf("%w: %s", weather.ErrDuplicate, rec.Location)
		}
		return weather.Record{}, fmt.Errorf("insert weather: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) FindAll(ctx context.Context) ([]weather.Record, error) {
	return s.query(ctx, selectColumns)
}

func (s *PostgresStore) FindByLocation(ctx context.Context, location string) (weather.Record, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE location = $1`, location)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return weather.Record{}, weather.ErrNotFound
	}
	if err != nil {
		return weather.Record{}, fmt.Errorf("select weather: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) Find(ctx context.Context, q weather.Query) ([]weather.Record, error) {
	where, args, err := renderWhere(q)
	if err != nil {
		return nil, err
	}
	return s.query(ctx, selectColumns+where, args...)
}

func (s *PostgresStore) Delete(ctx context.Context, location string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM weather WHERE location = $1`, location)
	if err != nil {
		return 0, fmt.Errorf("delete weather: %w", err)
	}
	return res.RowsAffected()
}

func (s *PostgresStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM weather WHERE date < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge weather: %w", err)
	}
	return res.RowsAffected()
}

func (s *PostgresStore) query(ctx context.Context, stmt string, args ...any) ([]weather.Record, error) {
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("select weather: %w", err)
	}
	defer rows.Close()

	result := []weather.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan weather: %w", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate weather: %w", err)
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (weather.Record, error) {
	var rec weather.Record
	if err := sc.Scan(&rec.Location, &rec.Date, &rec.TempMin, &rec.TempMax, &rec.Condition); err != nil {
		return weather.Record{}, err
	}
	rec.Date = rec.Date.UTC()
	return rec, nil
}

// renderWhere translates q into a WHERE clause with positional parameters.
// An empty query renders to "".
func renderWhere(q weather.Query) (string, []any, error) {
	if len(q.Clauses) == 0 {
		return "", nil, nil
	}

	var (
		conds []string
		args  []any
	)
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	for _, c := range q.Clauses {
		col, ok := columns[c.Field]
		if !ok {
			return "", nil, fmt.Errorf("unknown field %q", c.Field)
		}
		switch c.Operator {
		case weather.Equals:
			conds = append(conds, col+" = "+next(c.Value))
		case weather.Contains:
			conds = append(conds, col+" LIKE "+next("%"+escapeLike(c.Value)+"%")+` ESCAPE '\'`)
		case weather.Between:
			from := next(c.From.UTC())
			conds = append(conds, col+" BETWEEN "+from+" AND "+next(c.To.UTC()))
		default:
			return "", nil, fmt.Errorf("unsupported operator %d on %q", c.Operator, c.Field)
		}
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

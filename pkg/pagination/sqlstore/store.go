// Package sqlstore provides SQL storage for pagination sessions. One
// implementation serves PostgreSQL, MySQL and SQLite; only placeholders and
// the upsert clause differ between them.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/txn2/plotwatch/pkg/database/migrate"
	"github.com/txn2/plotwatch/pkg/pagination"
)

const table = "pagination_states"

// columns lists the table columns in insert and scan order.
var columns = []string{
	"session_id", "owner_id", "channel_id", "message_id", "guild_id", "world_id",
	"district_filter", "size_filter", "phase_filter", "tenant_filter", "plot_filter", "ward_filter",
	"current_page", "total_pages", "world_detail_json", "created_at", "last_refreshed",
}

// mutableColumns are rewritten when an existing row is upserted. created_at
// keeps its original value.
var mutableColumns = []string{
	"owner_id", "channel_id", "message_id", "guild_id", "world_id",
	"district_filter", "size_filter", "phase_filter", "tenant_filter", "plot_filter", "ward_filter",
	"current_page", "total_pages", "world_detail_json", "last_refreshed",
}

// Store implements pagination.DurableStore on a SQL database.
type Store struct {
	db      *sql.DB
	dialect migrate.Dialect
	sb      sq.StatementBuilderType
	upsert  string
}

// New creates a store for the given dialect.
func New(db *sql.DB, dialect migrate.Dialect) (*Store, error) {
	s := &Store{db: db, dialect: dialect}
	switch dialect {
	case migrate.Postgres:
		s.sb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
		s.upsert = onConflictClause()
	case migrate.SQLite:
		s.sb = sq.StatementBuilder.PlaceholderFormat(sq.Question)
		s.upsert = onConflictClause()
	case migrate.MySQL:
		s.sb = sq.StatementBuilder.PlaceholderFormat(sq.Question)
		s.upsert = onDuplicateKeyClause()
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}
	return s, nil
}

// Dialect returns the dialect the store was built for.
func (s *Store) Dialect() migrate.Dialect { return s.dialect }

func onConflictClause() string {
	sets := make([]string, len(mutableColumns))
	for i, c := range mutableColumns {
		sets[i] = c + " = excluded." + c
	}
	return "ON CONFLICT (session_id) DO UPDATE SET " + strings.Join(sets, ", ")
}

func onDuplicateKeyClause() string {
	sets := make([]string, len(mutableColumns))
	for i, c := range mutableColumns {
		sets[i] = c + " = VALUES(" + c + ")"
	}
	return "ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
}

// Put inserts or replaces a row.
func (s *Store) Put(ctx context.Context, row pagination.Row) error {
	query, args, err := s.sb.Insert(table).
		Columns(columns...).
		Values(
			row.SessionID, row.OwnerID, row.ChannelID, row.MessageID, nullString(row.GuildID), row.WorldID,
			nullInt(row.DistrictFilter), nullInt(row.SizeFilter), nullInt(row.PhaseFilter),
			nullInt(row.TenantFilter), nullInt(row.PlotFilter), nullInt(row.WardFilter),
			row.CurrentPage, row.TotalPages, row.WorldDetailJSON, row.CreatedAt, row.LastRefreshed,
		).
		Suffix(s.upsert).
		ToSql()
	if err != nil {
		return fmt.Errorf("building upsert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upserting pagination state: %w", err)
	}
	return nil
}

// Get returns the row, or nil, nil if absent.
func (s *Store) Get(ctx context.Context, sessionID string) (*pagination.Row, error) {
	query, args, err := s.sb.Select(columns...).
		From(table).
		Where(sq.Eq{"session_id": sessionID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}

	row, err := scanRow(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // DurableStore specifies nil,nil for not-found
	}
	if err != nil {
		return nil, fmt.Errorf("reading pagination state: %w", err)
	}
	return row, nil
}

// Delete removes a row. Deleting an absent row is not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	query, args, err := s.sb.Delete(table).Where(sq.Eq{"session_id": sessionID}).ToSql()
	if err != nil {
		return fmt.Errorf("building delete: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("deleting pagination state: %w", err)
	}
	return nil
}

// List returns every row ordered by creation time.
func (s *Store) List(ctx context.Context) ([]pagination.Row, error) {
	query, args, err := s.sb.Select(columns...).From(table).OrderBy("created_at").ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing pagination states: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []pagination.Row
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning pagination state: %w", err)
		}
		out = append(out, *row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pagination states: %w", err)
	}
	return out, nil
}

// DeleteOlderThan removes rows created before cutoff.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query, args, err := s.sb.Delete(table).
		Where(sq.Lt{"created_at": pagination.ToMillis(cutoff)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("building delete: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("deleting expired pagination states: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted pagination states: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(sc scanner) (*pagination.Row, error) {
	var (
		row                                       pagination.Row
		guild                                     sql.NullString
		district, size, phase, tenant, plot, ward sql.NullInt64
	)
	err := sc.Scan(
		&row.SessionID, &row.OwnerID, &row.ChannelID, &row.MessageID, &guild, &row.WorldID,
		&district, &size, &phase, &tenant, &plot, &ward,
		&row.CurrentPage, &row.TotalPages, &row.WorldDetailJSON, &row.CreatedAt, &row.LastRefreshed,
	)
	if err != nil {
		return nil, err
	}
	if guild.Valid {
		row.GuildID = &guild.String
	}
	row.DistrictFilter = intFrom(district)
	row.SizeFilter = intFrom(size)
	row.PhaseFilter = intFrom(phase)
	row.TenantFilter = intFrom(tenant)
	row.PlotFilter = intFrom(plot)
	row.WardFilter = intFrom(ward)
	return &row, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intFrom(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

// Verify interface compliance.
var _ pagination.DurableStore = (*Store)(nil)

package store

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strconv"
	"strings"
	"time"

	"resto-ops-services/internal/apperror"
	"resto-ops-services/internal/chat"
	"resto-ops-services/internal/lifecycle"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the persistence surface the HTTP layer depends on. Every
// Update method is an optimistic write: it succeeds only while the stored
// version is the one the record was loaded with.
type Repository interface {
	InTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error
	Ping(ctx context.Context) error

	GetOrder(ctx context.Context, id int64) (lifecycle.Order, error)
	CreateOrder(ctx context.Context, order lifecycle.Order) (lifecycle.Order, error)
	UpdateOrder(ctx context.Context, order lifecycle.Order) error
	UpdateOrderItem(ctx context.Context, orderID int64, item lifecycle.OrderItem, from lifecycle.ItemStatus) error

	ListTables(ctx context.Context) ([]lifecycle.Table, error)
	GetTable(ctx context.Context, id int64) (lifecycle.Table, error)
	UpdateTable(ctx context.Context, table lifecycle.Table) error

	GetReservation(ctx context.Context, id int64) (lifecycle.Reservation, error)
	CreateReservation(ctx context.Context, res lifecycle.Reservation) (lifecycle.Reservation, error)
	UpdateReservation(ctx context.Context, res lifecycle.Reservation) error
	ListSlotReservations(ctx context.Context, tableID int64, date, clock string) ([]lifecycle.Reservation, error)

	GetChatSession(ctx context.Context, id string) (chat.Session, error)
	SaveChatSession(ctx context.Context, s chat.Session) error
}

type txQuery interface {
	Exec(ctx context.Context, sql string, arguments ...any) (commandTag pgconn.CommandTag, err error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool *pgxpool.Pool
	q    txQuery
	now  func() time.Time
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, q: pool, now: time.Now}
}

// InTx runs fn against a transaction-scoped repository. Nested calls reuse
// the outer transaction.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error {
	if s.pool == nil {
		return fn(ctx, s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &Store{q: tx, now: s.now}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) Ping(ctx context.Context) error {
	if s.pool == nil {
		return nil
	}
	return s.pool.Ping(ctx)
}

func notFoundOr(err error, message string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperror.NotFound(message)
	}
	return err
}

func staleWrite(tag pgconn.CommandTag, entity string, id int64, version int64) error {
	if tag.RowsAffected() == 1 {
		return nil
	}
	return apperror.PreconditionFailed(entity+" was modified by another request, reload and retry", map[string]any{
		"id":      id,
		"version": version,
	})
}

func textPtr(v pgtype.Text) *string {
	if !v.Valid {
		return nil
	}
	out := v.String
	return &out
}

// numericFloat converts a numeric(12,2) column. NULL reads as zero.
func numericFloat(v pgtype.Numeric) float64 {
	if !v.Valid {
		return 0
	}
	if f, err := v.Float64Value(); err == nil && f.Valid {
		return f.Float64
	}
	raw, err := v.MarshalJSON()
	if err != nil {
		return 0
	}
	out, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return 0
	}
	return out
}

func int8Ptr(v pgtype.Int8) *int64 {
	if !v.Valid {
		return nil
	}
	out := v.Int64
	return &out
}

func randomSuffix(length int) string {
	const chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	result := make([]byte, length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
		if err != nil {
			result[i] = chars[0]
			continue
		}
		result[i] = chars[n.Int64()]
	}
	return string(result)
}

// nextNumber returns prefix-YYYYMMDD-XXXX, retrying on collisions in table.
func (s *Store) nextNumber(ctx context.Context, table, column, prefix string) (string, error) {
	const maxRetries = 10
	date := s.now().Format("20060102")
	for attempt := 0; attempt < maxRetries; attempt++ {
		candidate := prefix + "-" + date + "-" + randomSuffix(4)
		var exists bool
		query := `select exists(select 1 from ` + table + ` where ` + column + ` = $1)`
		if err := s.q.QueryRow(ctx, query, candidate).Scan(&exists); err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
	base36 := strings.ToUpper(big.NewInt(s.now().UnixMilli()).Text(36))
	if len(base36) > 6 {
		base36 = base36[len(base36)-6:]
	}
	return prefix + "-" + date + "-" + base36, nil
}

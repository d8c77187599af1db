package audit

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
)

//go:embed schema.sql
var schema string

// ErrNotFound is returned when an event does not exist.
var ErrNotFound = errors.New("event not found")

// Event is one recorded login outcome. Credentials are never stored.
type Event struct {
	ID             string    `json:"id" db:"id"`
	Timestamp      time.Time `json:"timestamp" db:"timestamp"`
	LoginID        *string   `json:"login_id,omitempty" db:"login_id"`
	Provider       string    `json:"provider" db:"provider"`
	Code           string    `json:"code" db:"code"` // success, failed, cancelled, exception
	ProviderUserID *string   `json:"provider_user_id,omitempty" db:"provider_user_id"`
	DisplayName    *string   `json:"display_name,omitempty" db:"display_name"`
	Email          *string   `json:"email,omitempty" db:"email"`
	Error          *string   `json:"error,omitempty" db:"error"`
	RequestID      *string   `json:"request_id,omitempty" db:"request_id"`
}

// QueryParams holds parameters for querying login events.
type QueryParams struct {
	Provider  *string
	Code      *string
	LoginID   *string
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
	Offset    int
}

// Store defines login event storage operations.
type Store interface {
	Log(ctx context.Context, e Event) (string, error)
	Query(ctx context.Context, params QueryParams) ([]Event, int, error)
	GetEvent(ctx context.Context, id string) (Event, error)
	EnsureSchema(ctx context.Context) error
}

type store struct {
	db *sqlx.DB
}

// NewStore creates a new login event store.
func NewStore(db *sqlx.DB) Store {
	return &store{db: db}
}

func (s *store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *store) Log(ctx context.Context, e Event) (string, error) {
	var id string
	err := s.db.QueryRowxContext(ctx,
		`INSERT INTO social_login_events (login_id, provider, code, provider_user_id, display_name, email, error, request_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		e.LoginID, e.Provider, e.Code, e.ProviderUserID, e.DisplayName, e.Email, e.Error, e.RequestID,
	).Scan(&id)
	return id, err
}

func (s *store) Query(ctx context.Context, params QueryParams) ([]Event, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where += ` AND ` + cond + ` $` + strconv.Itoa(len(args))
	}

	if params.Provider != nil {
		add("provider =", *params.Provider)
	}
	if params.Code != nil {
		add("code =", *params.Code)
	}
	if params.LoginID != nil {
		add("login_id =", *params.LoginID)
	}
	if params.StartTime != nil {
		add("timestamp >=", *params.StartTime)
	}
	if params.EndTime != nil {
		add("timestamp <=", *params.EndTime)
	}

	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM social_login_events`+where, args...); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, timestamp, login_id, provider, code, provider_user_id, display_name, email, error, request_id
		FROM social_login_events` + where + ` ORDER BY timestamp DESC`
	if params.Limit > 0 {
		args = append(args, params.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}
	if params.Offset > 0 {
		args = append(args, params.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	var events []Event
	if err := s.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

func (s *store) GetEvent(ctx context.Context, id string) (Event, error) {
	var e Event
	err := s.db.GetContext(ctx, &e,
		`SELECT id, timestamp, login_id, provider, code, provider_user_id, display_name, email, error, request_id
		 FROM social_login_events WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Event{}, ErrNotFound
	}
	return e, err
}

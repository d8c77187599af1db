package audit

import (
	"context"
	"fmt"

	"github.com/dhawalhost/sociallogin/internal/social"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service defines login audit operations.
type Service interface {
	// Record stores the outcome of one login.
	Record(ctx context.Context, input RecordInput) error

	// Query retrieves login events with filtering.
	Query(ctx context.Context, params QueryParams) ([]Event, int, error)

	// Export retrieves all matching login events for export.
	Export(ctx context.Context, params QueryParams) ([]Event, error)

	// GetEvent retrieves a single login event. Ids that are not UUIDs are
	// reported as ErrNotFound.
	GetEvent(ctx context.Context, id string) (Event, error)
}

// RecordInput holds input for recording a login outcome.
type RecordInput struct {
	Result    social.LoginResult
	LoginID   string
	RequestID string
}

type service struct {
	store Store
}

// NewService creates a new audit service.
func NewService(store Store) Service {
	return &service{store: store}
}

func (s *service) Record(ctx context.Context, input RecordInput) error {
	r := input.Result
	if r.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	code, err := r.Code.MarshalText()
	if err != nil {
		return err
	}

	e := Event{
		LoginID:        optional(input.LoginID),
		Provider:       string(r.Provider),
		Code:           string(code),
		ProviderUserID: optional(r.ID),
		DisplayName:    optional(r.DisplayName),
		Email:          optional(r.UserToken),
		RequestID:      optional(input.RequestID),
	}
	if r.Err != nil {
		e.Error = optional(r.Err.Error())
	}

	_, err = s.store.Log(ctx, e)
	return err
}

func (s *service) Query(ctx context.Context, params QueryParams) ([]Event, int, error) {
	if params.Limit == 0 {
		params.Limit = 100
	}
	if params.Limit > 1000 {
		params.Limit = 1000
	}
	return s.store.Query(ctx, params)
}

func (s *service) Export(ctx context.Context, params QueryParams) ([]Event, error) {
	params.Limit = 10000
	params.Offset = 0
	events, _, err := s.store.Query(ctx, params)
	return events, err
}

func (s *service) GetEvent(ctx context.Context, id string) (Event, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Event{}, ErrNotFound
	}
	return s.store.GetEvent(ctx, id)
}

// ResultHook records every login result. ids extracts the login and request
// ids from the login context; it may be nil.
func ResultHook(svc Service, logger *zap.Logger, ids func(context.Context) (loginID, requestID string)) social.ResultHook {
	return func(ctx context.Context, result social.LoginResult) {
		input := RecordInput{Result: result}
		if ids != nil {
			input.LoginID, input.RequestID = ids(ctx)
		}
		// The login context may already be cancelled by the time it finishes.
		if err := svc.Record(context.WithoutCancel(ctx), input); err != nil {
			logger.Error("Failed to record login event", zap.String("provider", string(result.Provider)), zap.Error(err))
		}
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

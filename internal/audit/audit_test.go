package audit

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dhawalhost/sociallogin/internal/social"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

var eventColumns = []string{"id", "timestamp", "login_id", "provider", "code", "provider_user_id", "display_name", "email", "error", "request_id"}

func setupMockStore(t *testing.T) (Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(sqlx.NewDb(db, "sqlmock")), mock
}

func TestStoreLog(t *testing.T) {
	s, mock := setupMockStore(t)
	loginID := "login-1"
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO social_login_events`)).
		WithArgs(loginID, "google", "success", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), nil, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("evt-1"))

	id, err := s.Log(context.Background(), Event{LoginID: &loginID, Provider: "google", Code: "success"})
	if err != nil {
		t.Fatalf("log: %v", err)
	}
	if id != "evt-1" {
		t.Fatalf("expected evt-1, got %q", id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStoreQueryFilters(t *testing.T) {
	s, mock := setupMockStore(t)
	provider, code := "facebook", "failed"
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ts := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM social_login_events WHERE 1=1 AND provider = $1 AND code = $2 AND timestamp >= $3`)).
		WithArgs(provider, code, start).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))
	mock.ExpectQuery(regexp.QuoteMeta(`AND timestamp >= $3 ORDER BY timestamp DESC LIMIT $4 OFFSET $5`)).
		WithArgs(provider, code, start, 10, 10).
		WillReturnRows(sqlmock.NewRows(eventColumns).
			AddRow("evt-2", ts, nil, "facebook", "failed", nil, nil, nil, "login already in progress", nil))

	events, total, err := s.Query(context.Background(), QueryParams{
		Provider:  &provider,
		Code:      &code,
		StartTime: &start,
		Limit:     10,
		Offset:    10,
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if total != 12 || len(events) != 1 {
		t.Fatalf("unexpected result total=%d events=%d", total, len(events))
	}
	if events[0].Error == nil || *events[0].Error != "login already in progress" || events[0].LoginID != nil {
		t.Fatalf("unexpected event %+v", events[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStoreGetEventNotFound(t *testing.T) {
	s, mock := setupMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM social_login_events WHERE id = $1`)).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	if _, err := s.GetEvent(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreEnsureSchema(t *testing.T) {
	s, mock := setupMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS social_login_events`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	if err := s.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

type fakeStore struct {
	logged []Event
	events []Event
	params QueryParams
	err    error
	gets   int
}

func (f *fakeStore) Log(_ context.Context, e Event) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.logged = append(f.logged, e)
	return "evt", nil
}

func (f *fakeStore) Query(_ context.Context, params QueryParams) ([]Event, int, error) {
	f.params = params
	return f.events, len(f.events), f.err
}

func (f *fakeStore) GetEvent(_ context.Context, id string) (Event, error) {
	f.gets++
	for _, e := range f.events {
		if e.ID == id {
			return e, nil
		}
	}
	return Event{}, ErrNotFound
}

func (f *fakeStore) EnsureSchema(context.Context) error { return nil }

func TestRecordNeverStoresCredentials(t *testing.T) {
	st := &fakeStore{}
	svc := NewService(st)
	err := svc.Record(context.Background(), RecordInput{
		LoginID: "login-7",
		Result: social.LoginResult{
			Provider:    social.ProviderFacebook,
			Code:        social.ResultSuccess,
			AuthToken:   "EAAB-secret",
			AuthCode:    "code-secret",
			UserToken:   "ada@example.com",
			DisplayName: "Ada",
			ID:          "10158",
		},
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	raw, _ := json.Marshal(st.logged[0])
	if strings.Contains(string(raw), "secret") {
		t.Fatalf("credentials leaked into audit event: %s", raw)
	}
	e := st.logged[0]
	if e.Code != "success" || *e.Email != "ada@example.com" || *e.ProviderUserID != "10158" || *e.LoginID != "login-7" {
		t.Fatalf("unexpected event %+v", e)
	}
	if e.Error != nil || e.RequestID != nil {
		t.Fatalf("empty fields must stay null, got %+v", e)
	}
}

func TestRecordRequiresProvider(t *testing.T) {
	if err := NewService(&fakeStore{}).Record(context.Background(), RecordInput{}); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestQueryClampsLimit(t *testing.T) {
	st := &fakeStore{}
	svc := NewService(st)
	_, _, _ = svc.Query(context.Background(), QueryParams{})
	if st.params.Limit != 100 {
		t.Fatalf("expected default limit 100, got %d", st.params.Limit)
	}
	_, _, _ = svc.Query(context.Background(), QueryParams{Limit: 5000})
	if st.params.Limit != 1000 {
		t.Fatalf("expected limit capped at 1000, got %d", st.params.Limit)
	}
}

func TestResultHook(t *testing.T) {
	st := &fakeStore{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	hook := ResultHook(NewService(st), zap.NewNop(), func(context.Context) (string, string) { return "login-1", "req-1" })

	hook(ctx, social.LoginResult{Provider: social.ProviderGoogle, Code: social.ResultFailed, Err: errors.New("boom")})
	if len(st.logged) != 1 {
		t.Fatalf("expected one event, got %d", len(st.logged))
	}
	e := st.logged[0]
	if *e.LoginID != "login-1" || *e.RequestID != "req-1" || *e.Error != "boom" || e.Code != "failed" {
		t.Fatalf("unexpected event %+v", e)
	}

	failing := ResultHook(NewService(&fakeStore{err: errors.New("db down")}), zap.NewNop(), nil)
	failing(context.Background(), social.LoginResult{Provider: social.ProviderGoogle})
}

const (
	eventID      = "5b0f3f9e-6a1c-4c44-9a57-1f1e4f0f2d11"
	otherEventID = "0e8a9f0c-3d0b-4f5e-8f4e-7a0c2b9d6e22"
)

func setupRouter(st *fakeStore, mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHTTPHandler(NewService(st), zap.NewNop()).RegisterRoutes(r.Group("/api/v1"), mw...)
	return r
}

func TestAPIQueryAndGet(t *testing.T) {
	email := "ada@example.com"
	st := &fakeStore{events: []Event{{ID: eventID, Provider: "facebook", Code: "success", Email: &email}}}
	r := setupRouter(st)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/audit/logins?provider=facebook&limit=5", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		Events []Event `json:"events"`
		Total  int     `json:"total"`
		Limit  int     `json:"limit"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Total != 1 || body.Limit != 5 || *st.params.Provider != "facebook" {
		t.Fatalf("unexpected response %+v", body)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/audit/logins/"+eventID, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/audit/logins/"+otherEventID, nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestAPIGetMalformedID(t *testing.T) {
	st := &fakeStore{}
	r := setupRouter(st)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/audit/logins/not-a-uuid", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
	if st.gets != 0 {
		t.Fatalf("malformed id must not reach the store")
	}
}

func TestAPIRequiresMiddleware(t *testing.T) {
	st := &fakeStore{events: []Event{{ID: eventID, Provider: "google", Code: "success"}}}
	deny := func(c *gin.Context) { c.AbortWithStatus(http.StatusUnauthorized) }
	r := setupRouter(st, deny)

	for _, path := range []string{"/api/v1/audit/logins", "/api/v1/audit/logins/export", "/api/v1/audit/logins/" + eventID} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", path, w.Code)
		}
	}
}

func TestAPIExportCSV(t *testing.T) {
	email := "ada@example.com"
	st := &fakeStore{events: []Event{{ID: "evt-1", Provider: "facebook", Code: "success", Email: &email}}}
	r := setupRouter(st)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/audit/logins/export", nil))
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "text/csv" {
		t.Fatalf("unexpected export response %d %q", w.Code, w.Header().Get("Content-Type"))
	}
	rows, err := csv.NewReader(w.Body).ReadAll()
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	if len(rows) != 2 || rows[1][2] != "facebook" || rows[1][6] != email {
		t.Fatalf("unexpected rows %v", rows)
	}
	if st.params.Limit != 10000 {
		t.Fatalf("export must lift the limit, got %d", st.params.Limit)
	}
}

package matching

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imadgeboyega/movienight-backend/internal/auth"
)

type stubService struct {
	formGroups func(eventID int64, groupSize int) (*MatchResult, error)
	compat     func(a, b int64) (float64, error)
	pair       func(a, b int64) ([]int, error)
	userGroup  func(eventID, userID int64) (*GroupView, error)
}

func (s *stubService) FormGroups(ctx context.Context, eventID int64, groupSize int) (*MatchResult, error) {
	return s.formGroups(eventID, groupSize)
}

func (s *stubService) GetEventGroups(ctx context.Context, eventID int64) ([]*GroupView, error) {
	return []*GroupView{}, nil
}

func (s *stubService) GetUserGroup(ctx context.Context, eventID, userID int64) (*GroupView, error) {
	return s.userGroup(eventID, userID)
}

func (s *stubService) Compatibility(ctx context.Context, userA, userB int64) (float64, error) {
	return s.compat(userA, userB)
}

func (s *stubService) RecommendForPair(ctx context.Context, userA, userB int64) ([]int, error) {
	return s.pair(userA, userB)
}

func (s *stubService) MatchDueEvents(ctx context.Context) error { return nil }

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Details json.RawMessage `json:"details"`
}

func newTestRouter(t *testing.T, svc Service) (*mux.Router, string) {
	t.Helper()
	authService := auth.NewService(&auth.Config{JWTSecret: "handler-secret"})
	token, err := authService.IssueAccessToken(context.Background(), 7, "mia")
	require.NoError(t, err)

	router := mux.NewRouter()
	RegisterRoutes(router, NewHandler(svc), nil, auth.NewMiddleware(authService))
	return router, token
}

func do(t *testing.T, router http.Handler, token, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func TestFormGroupsHandlerStatusCodes(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"created", `{"group_size": 3}`, nil, http.StatusCreated},
		{"empty body uses default", ``, nil, http.StatusCreated},
		{"group size too small", `{"group_size": 1}`, nil, http.StatusBadRequest},
		{"malformed body", `{"group_size":`, nil, http.StatusBadRequest},
		{"already matched", `{}`, ErrAlreadyMatched, http.StatusConflict},
		{"missing event", `{}`, ErrEventNotFound, http.StatusNotFound},
		{"provider down", `{}`, fmt.Errorf("group 1: %w", ErrRecommendationUnavailable), http.StatusServiceUnavailable},
		{"unexpected", `{}`, errBoom, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{formGroups: func(eventID int64, groupSize int) (*MatchResult, error) {
				assert.Equal(t, int64(12), eventID)
				if tt.err != nil {
					return nil, tt.err
				}
				return &MatchResult{EventID: eventID, GroupSize: groupSize, Groups: []*Group{}}, nil
			}}
			router, token := newTestRouter(t, svc)

			rec, env := do(t, router, token, http.MethodPost, "/api/v1/events/12/match", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.status < 300, env.Success)
		})
	}
}

func TestFormGroupsHandlerReportsCounts(t *testing.T) {
	svc := &stubService{formGroups: func(int64, int) (*MatchResult, error) {
		return nil, &InsufficientParticipantsError{Required: 4, Available: 3}
	}}
	router, token := newTestRouter(t, svc)

	rec, env := do(t, router, token, http.MethodPost, "/api/v1/events/12/match", `{"group_size": 4}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.JSONEq(t, `{"required": 4, "available": 3}`, string(env.Details))
}

func TestPairEndpointsUseCaller(t *testing.T) {
	svc := &stubService{
		compat: func(a, b int64) (float64, error) {
			assert.Equal(t, int64(7), a)
			assert.Equal(t, int64(9), b)
			return 40, nil
		},
		pair: func(a, b int64) ([]int, error) {
			return []int{1, 2}, nil
		},
	}
	router, token := newTestRouter(t, svc)

	rec, env := do(t, router, token, http.MethodGet, "/api/v1/compatibility/9", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id": 7, "other_user_id": 9, "score": 40}`, string(env.Data))

	rec, env = do(t, router, token, http.MethodGet, "/api/v1/recommendations/pair/9", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id": 7, "other_user_id": 9, "movie_ids": [1, 2]}`, string(env.Data))
}

func TestMyGroupNotFound(t *testing.T) {
	svc := &stubService{userGroup: func(eventID, userID int64) (*GroupView, error) {
		assert.Equal(t, int64(7), userID)
		return nil, ErrGroupNotFound
	}}
	router, token := newTestRouter(t, svc)

	rec, _ := do(t, router, token, http.MethodGet, "/api/v1/events/3/groups/me", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRoutesRequireToken(t *testing.T) {
	router, _ := newTestRouter(t, &stubService{})

	rec, env := do(t, router, "", http.MethodGet, "/api/v1/events/3/groups", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, env.Success)
}

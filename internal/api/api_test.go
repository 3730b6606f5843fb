package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reverscodes/codes-cli/internal/model"
	"github.com/reverscodes/codes-cli/internal/store"
)

type fakeStore struct {
	runs    []model.Run
	filter  store.RunFilter
	listErr error
}

func (f *fakeStore) SaveRun(context.Context, *model.Run) error { return nil }

func (f *fakeStore) GetRun(_ context.Context, id string) (*model.Run, error) {
	for _, r := range f.runs {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) ListRuns(_ context.Context, filter store.RunFilter) ([]model.Run, error) {
	f.filter = filter
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []model.Run
	for _, r := range f.runs {
		if filter.Game == "" || r.Game == filter.Game {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) GetCachedPage(context.Context, string) (string, bool, error) { return "", false, nil }
func (f *fakeStore) SetCachedPage(context.Context, string, string, time.Duration) error {
	return nil
}
func (f *fakeStore) DeleteExpiredPages(context.Context) (int, error) { return 0, nil }
func (f *fakeStore) Migrate(context.Context) error                   { return nil }
func (f *fakeStore) Close() error                                    { return nil }

type fakeRunner struct {
	mu      sync.Mutex
	games   []string
	release chan struct{}
}

func (f *fakeRunner) RunGame(_ context.Context, game model.Game) (*model.GameResult, error) {
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	f.games = append(f.games, game.Key)
	f.mu.Unlock()
	return &model.GameResult{Game: game.Key, Updated: true}, nil
}

var testGames = []model.Game{
	{Key: "blox-fruits", Name: "Blox Fruits", Page: "blox-fruits.html"},
	{Key: "rivals", Name: "Rivals", Page: "rivals.html"},
}

func sampleStore() *fakeStore {
	at := time.Date(2025, 8, 5, 9, 0, 0, 0, time.UTC)
	return &fakeStore{runs: []model.Run{
		{ID: "run-1", Game: "blox-fruits", Status: model.RunStatusComplete, ActiveCount: 7, CreatedAt: at},
		{ID: "run-2", Game: "rivals", Status: model.RunStatusSkipped, CreatedAt: at.Add(time.Hour)},
	}}
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealth(t *testing.T) {
	h := NewServer(context.Background(), Deps{}).Router()

	rr := do(t, h, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestListGames(t *testing.T) {
	h := NewServer(context.Background(), Deps{Games: testGames}).Router()

	rr := do(t, h, http.MethodGet, "/games")
	require.Equal(t, http.StatusOK, rr.Code)

	var games []model.Game
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &games))
	require.Len(t, games, 2)
	assert.Equal(t, "rivals", games[1].Key)

	rr = do(t, NewServer(context.Background(), Deps{}).Router(), http.MethodGet, "/games")
	assert.JSONEq(t, "[]", rr.Body.String())
}

func TestListRuns(t *testing.T) {
	st := sampleStore()
	h := NewServer(context.Background(), Deps{Store: st}).Router()

	rr := do(t, h, http.MethodGet, "/runs?game=rivals&status=skipped&limit=5&offset=2")
	require.Equal(t, http.StatusOK, rr.Code)

	var runs []model.Run
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "run-2", runs[0].ID)
	assert.Equal(t, store.RunFilter{Game: "rivals", Status: model.RunStatusSkipped, Limit: 5, Offset: 2}, st.filter)
}

func TestListRuns_Empty(t *testing.T) {
	h := NewServer(context.Background(), Deps{Store: &fakeStore{}}).Router()

	rr := do(t, h, http.MethodGet, "/runs")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "[]", rr.Body.String())
}

func TestListRuns_BadParams(t *testing.T) {
	h := NewServer(context.Background(), Deps{Store: sampleStore()}).Router()

	for _, target := range []string{"/runs?limit=abc", "/runs?limit=-1", "/runs?offset=x"} {
		rr := do(t, h, http.MethodGet, target)
		assert.Equal(t, http.StatusBadRequest, rr.Code, target)
	}
}

func TestListRuns_StoreError(t *testing.T) {
	h := NewServer(context.Background(), Deps{Store: &fakeStore{listErr: errors.New("db down")}}).Router()

	rr := do(t, h, http.MethodGet, "/runs")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "db down")
}

func TestGetRun(t *testing.T) {
	h := NewServer(context.Background(), Deps{Store: sampleStore()}).Router()

	rr := do(t, h, http.MethodGet, "/runs/run-1")
	require.Equal(t, http.StatusOK, rr.Code)
	var run model.Run
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &run))
	assert.Equal(t, "blox-fruits", run.Game)
	assert.Equal(t, 7, run.ActiveCount)

	rr = do(t, h, http.MethodGet, "/runs/missing")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "run not found")
}

func TestNoStore(t *testing.T) {
	h := NewServer(context.Background(), Deps{}).Router()

	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/runs").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/runs/run-1").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodPost, "/games/rivals/run").Code)
}

func TestRunGame(t *testing.T) {
	runner := &fakeRunner{}
	srv := NewServer(context.Background(), Deps{Runner: runner, Games: testGames})
	h := srv.Router()

	rr := do(t, h, http.MethodPost, "/games/rivals/run")
	require.Equal(t, http.StatusAccepted, rr.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "accepted", body["status"])
	assert.Equal(t, "rivals", body["game"])

	srv.Wait()
	assert.Equal(t, []string{"rivals"}, runner.games)

	rr = do(t, h, http.MethodPost, "/games/unknown/run")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRunGame_AlreadyRunning(t *testing.T) {
	runner := &fakeRunner{release: make(chan struct{})}
	srv := NewServer(context.Background(), Deps{Runner: runner, Games: testGames})
	h := srv.Router()

	require.Equal(t, http.StatusAccepted, do(t, h, http.MethodPost, "/games/rivals/run").Code)
	assert.Equal(t, http.StatusConflict, do(t, h, http.MethodPost, "/games/rivals/run").Code)
	assert.Equal(t, http.StatusAccepted, do(t, h, http.MethodPost, "/games/blox-fruits/run").Code)

	close(runner.release)
	srv.Wait()
	assert.ElementsMatch(t, []string{"rivals", "blox-fruits"}, runner.games)

	assert.Equal(t, http.StatusAccepted, do(t, h, http.MethodPost, "/games/rivals/run").Code)
	srv.Wait()
}

func TestCORS(t *testing.T) {
	h := NewServer(context.Background(), Deps{AllowedOrigins: []string{"https://codes.example.com"}}).Router()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://codes.example.com")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, "https://codes.example.com", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

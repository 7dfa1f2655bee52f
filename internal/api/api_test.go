package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/LJTian/TrendingArchive/internal/auth"
	"github.com/LJTian/TrendingArchive/internal/collector"
	"github.com/LJTian/TrendingArchive/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	testKey    = "key"
	testSecret = "secret"
)

type fakeStore struct {
	page    *storage.NewsPage
	sources []string
	stats   *storage.Stats
	err     error
	pingErr error
	last    storage.NewsQuery
}

func (f *fakeStore) ListNews(_ context.Context, q storage.NewsQuery) (*storage.NewsPage, error) {
	f.last = q
	if f.err != nil {
		return nil, f.err
	}
	if f.page == nil {
		return &storage.NewsPage{Items: []storage.NewsRecord{}, Limit: q.Limit, Offset: q.Offset}, nil
	}
	return f.page, nil
}

func (f *fakeStore) ListSources(context.Context) ([]string, error) {
	return f.sources, f.err
}

func (f *fakeStore) Stats(context.Context) (*storage.Stats, error) {
	return f.stats, f.err
}

func (f *fakeStore) Ping(context.Context) error {
	return f.pingErr
}

type liveFetcher struct{}

func (liveFetcher) Name() string { return "baidu" }

func (liveFetcher) Fetch(_ context.Context, bypassCache bool) collector.Result {
	return collector.Result{
		Items:      []collector.Item{{ID: "1", Title: "hot topic", Hot: "12,345"}},
		FromCache:  !bypassCache,
		UpdateTime: time.Unix(1_700_000_000, 0).UTC(),
	}
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(store NewsReader, history bool) (*gin.Engine, *prometheus.Registry) {
	reg := collector.NewRegistry()
	reg.MustRegister(liveFetcher{})
	promReg := prometheus.NewRegistry()
	s := NewServer(store, Options{
		Verifier:      auth.NewVerifier(testKey, testSecret),
		Registry:      reg,
		EnableHistory: history,
		Registerer:    promReg,
		Gatherer:      promReg,
	})
	return s.Router(), promReg
}

func get(r http.Handler, target string, signed bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if signed {
		auth.SignRequest(req, testKey, testSecret, time.Now())
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestRootIsPublic(t *testing.T) {
	r, _ := newTestServer(&fakeStore{}, true)
	w := get(r, "/", false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestAPIRequiresSignature(t *testing.T) {
	r, _ := newTestServer(&fakeStore{}, true)
	for _, path := range []string{"/api/news", "/api/sources", "/api/stats", "/api/history", "/api/live/baidu"} {
		w := get(r, path, false)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
		body := decode(t, w)
		assert.Equal(t, "error", body["status"])
		assert.Equal(t, "Missing authentication headers", body["message"])
	}
}

func TestNewsQueryCoercion(t *testing.T) {
	cases := []struct {
		target string
		want   storage.NewsQuery
	}{
		{
			target: "/api/news",
			want:   storage.NewsQuery{Limit: 50, OrderBy: "created_at", Order: "DESC"},
		},
		{
			target: "/api/news?limit=abc&offset=-4&orderBy=dropTable&order=sideways",
			want:   storage.NewsQuery{Limit: 50, OrderBy: "created_at", Order: "DESC"},
		},
		{
			target: "/api/news?limit=5000&offset=20&orderBy=hot&order=asc",
			want:   storage.NewsQuery{Limit: 1000, Offset: 20, OrderBy: "hot", Order: "ASC"},
		},
		{
			target: "/api/news?source=baidu&date=2024-01-02&startDate=2024-01-01&endDate=2024-01-31&limit=0",
			want: storage.NewsQuery{
				NewsFilter: storage.NewsFilter{Source: "baidu", Date: "2024-01-02", StartDate: "2024-01-01", EndDate: "2024-01-31"},
				Limit:      50,
				OrderBy:    "created_at",
				Order:      "DESC",
			},
		},
		{
			target: "/api/news?date=02/01/2024&endDate=2024-01-31&order=Asc",
			want: storage.NewsQuery{
				NewsFilter: storage.NewsFilter{EndDate: "2024-01-31"},
				Limit:      50,
				OrderBy:    "created_at",
				Order:      "ASC",
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.target, func(t *testing.T) {
			store := &fakeStore{}
			r, _ := newTestServer(store, true)
			w := get(r, tc.target, true)
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tc.want, store.last)
		})
	}
}

func TestNewsEnvelope(t *testing.T) {
	store := &fakeStore{page: &storage.NewsPage{
		Items:   []storage.NewsRecord{{ID: 7, Source: "baidu", ItemID: "a", Title: "t", Hot: 42}},
		Total:   11,
		Limit:   1,
		Offset:  3,
		HasMore: true,
	}}
	r, _ := newTestServer(store, true)

	w := get(r, "/api/news?limit=1&offset=3", true)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, float64(11), body["total"])
	assert.Equal(t, map[string]any{"limit": float64(1), "offset": float64(3), "hasMore": true}, body["pagination"])

	data := body["data"].([]any)
	require.Len(t, data, 1)
	item := data[0].(map[string]any)
	assert.Equal(t, "a", item["itemId"])
	assert.Equal(t, float64(42), item["hot"])
}

func TestQueryFailureHidesInternalError(t *testing.T) {
	store := &fakeStore{err: errors.New("pq: relation news_data does not exist")}
	r, _ := newTestServer(store, true)

	for _, path := range []string{"/api/news", "/api/sources", "/api/stats", "/api/history"} {
		w := get(r, path, true)
		assert.Equal(t, http.StatusInternalServerError, w.Code, path)
		assert.Equal(t, map[string]any{"status": "error", "message": "query failed"}, decode(t, w))
		assert.NotContains(t, w.Body.String(), "pq:")
	}
}

func TestSourcesAndStats(t *testing.T) {
	store := &fakeStore{
		sources: []string{"baidu", "github"},
		stats: &storage.Stats{
			Total:    3,
			BySource: []storage.SourceCount{{Source: "baidu", Count: 2}, {Source: "github", Count: 1}},
			ByDate:   []storage.DateCount{{Date: "2024-01-02", Count: 3}},
		},
	}
	r, _ := newTestServer(store, true)

	w := get(r, "/api/sources", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{"baidu", "github"}, decode(t, w)["data"])

	w = get(r, "/api/stats", true)
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]any)
	assert.Equal(t, float64(3), data["total"])
	assert.Len(t, data["bySource"], 2)
	assert.Equal(t, []any{map[string]any{"date": "2024-01-02", "count": float64(3)}}, data["byDate"])
}

func TestHistoryDisabledKeepsSuccessEnvelope(t *testing.T) {
	store := &fakeStore{}
	r, _ := newTestServer(store, false)

	w := get(r, "/api/history?source=baidu", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{
		"status":  "success",
		"total":   float64(0),
		"data":    []any{},
		"message": "history API is disabled",
	}, decode(t, w))
	assert.Empty(t, store.last.Source, "store must not be queried")
}

func TestHistoryShape(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	store := &fakeStore{page: &storage.NewsPage{
		Items: []storage.NewsRecord{{
			ID: 9, Source: "github", ItemID: "golang/go", Title: "go", Description: "lang",
			URL: "https://github.com/golang/go", MobileURL: "https://github.com/golang/go", Hot: 120000, CreatedAt: created,
		}},
		Total: 1,
		Limit: 50,
	}}
	r, _ := newTestServer(store, true)

	w := get(r, "/api/history?source=github", true)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "github", store.last.Source)

	data := body["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, map[string]any{
		"id":        "golang/go",
		"title":     "go",
		"desc":      "lang",
		"url":       "https://github.com/golang/go",
		"mobileUrl": "https://github.com/golang/go",
		"cover":     "",
		"hot":       float64(120000),
		"source":    "github",
		"timestamp": float64(created.UnixMilli()),
	}, data[0])
}

func TestLiveUsesCachedFetch(t *testing.T) {
	r, _ := newTestServer(&fakeStore{}, true)

	w := get(r, "/api/live/baidu", true)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "baidu", body["source"])
	assert.Equal(t, true, body["fromCache"])
	assert.Equal(t, float64(1), body["total"])

	w = get(r, "/api/live/weibo", true)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "unknown source", decode(t, w)["message"])
}

func TestHealth(t *testing.T) {
	r, _ := newTestServer(&fakeStore{}, true)
	assert.Equal(t, http.StatusOK, get(r, "/health", false).Code)

	r, _ = newTestServer(&fakeStore{pingErr: errors.New("dial tcp: refused")}, true)
	w := get(r, "/health", false)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NotContains(t, w.Body.String(), "refused")
}

func TestMetricsEndpoint(t *testing.T) {
	r, _ := newTestServer(&fakeStore{}, true)
	get(r, "/", false)

	w := get(r, "/metrics", false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `trendingarchive_http_requests_total{code="200",method="GET",route="/"} 1`)
}

func TestRequestIDIsPropagated(t *testing.T) {
	r, _ := newTestServer(&fakeStore{}, true)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "req-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get(requestIDHeader))
}

func TestNewsPaginationAgainstStore(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	r, _ := newTestServer(storage.NewStoreWithDB(db, nil, nil), true)

	expectPage := func(offset, total int) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "news_data"`)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(total))
		rows := sqlmock.NewRows([]string{"id", "source", "title"})
		for i := 0; i < 5; i++ {
			rows.AddRow(offset+i+1, "baidu", "t")
		}
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "news_data"`)).WillReturnRows(rows)
	}

	expectPage(5, 10)
	w := get(r, "/api/news?limit=5&offset=5", true)
	require.Equal(t, http.StatusOK, w.Code)
	p := decode(t, w)["pagination"].(map[string]any)
	assert.Equal(t, false, p["hasMore"])

	expectPage(0, 10)
	w = get(r, "/api/news?limit=5&offset=0", true)
	require.Equal(t, http.StatusOK, w.Code)
	p = decode(t, w)["pagination"].(map[string]any)
	assert.Equal(t, true, p["hasMore"])

	assert.NoError(t, mock.ExpectationsWereMet())
	assert.False(t, strings.Contains(w.Body.String(), "query failed"))
}

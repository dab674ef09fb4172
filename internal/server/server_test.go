package server

import (
	"context"
	"encoding/json"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/guoxiaopeng875/txcorrelation/internal/biz"
	"github.com/guoxiaopeng875/txcorrelation/internal/conf"
	"github.com/guoxiaopeng875/txcorrelation/internal/service"
	"github.com/guoxiaopeng875/txcorrelation/pkg/txtrack"
)

type stubRepo struct {
	changes []*biz.Change
}

func (r *stubRepo) Save(_ context.Context, c *biz.Change) (*biz.Change, error) {
	saved := *c
	saved.ID = int64(len(r.changes) + 1)
	r.changes = append(r.changes, &saved)
	return &saved, nil
}

func (r *stubRepo) ListByToken(_ context.Context, token txtrack.Token) ([]*biz.Change, error) {
	var out []*biz.Change
	for _, c := range r.changes {
		if c.TxToken == token {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *stubRepo) PurgeBefore(context.Context, time.Time) (int64, error) { return 0, nil }

type nopTx struct{}

func (nopTx) Commit(context.Context) error   { return nil }
func (nopTx) Rollback(context.Context) error { return nil }

type nopBackend struct{}

func (nopBackend) Begin(ctx context.Context, _ txtrack.Definition) (context.Context, txtrack.Tx, error) {
	return ctx, nopTx{}, nil
}

func newTestHTTPServer() nethttp.Handler {
	repo := &stubRepo{changes: []*biz.Change{
		{ID: 1, Entity: "order", EntityID: "7", Action: biz.ActionUpdate, TxToken: "transaction-a"},
		{ID: 2, Entity: "order", EntityID: "8", Action: biz.ActionDelete, TxToken: "transaction-b"},
	}}
	svc := service.NewChangeService(biz.NewChangeUsecase(repo, txtrack.New(nopBackend{}), log.DefaultLogger), log.DefaultLogger)
	return NewHTTPServer(&conf.Server{Http: &conf.Server_HTTP{Timeout: conf.NewDuration(time.Second)}}, svc, log.DefaultLogger)
}

func serve(t *testing.T, h nethttp.Handler, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	return serveRequest(t, h, httptest.NewRequest(nethttp.MethodGet, target, nil))
}

func serveRequest(t *testing.T, h nethttp.Handler, req *nethttp.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return rec, body
}

func TestHTTPServer_Healthz(t *testing.T) {
	rec, body := serve(t, newTestHTTPServer(), "/healthz")
	assert.Equal(t, nethttp.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestHTTPServer_ListChanges(t *testing.T) {
	h := newTestHTTPServer()

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantCount  int
		wantReason string
	}{
		{name: "base token", target: "/v1/changes?token=transaction-a", wantStatus: nethttp.StatusOK, wantCount: 1},
		{name: "committed token", target: "/v1/changes?token=transaction-b:committed:2", wantStatus: nethttp.StatusOK, wantCount: 1},
		{name: "unknown token", target: "/v1/changes?token=transaction-c", wantStatus: nethttp.StatusOK, wantCount: 0},
		{name: "missing token", target: "/v1/changes", wantStatus: nethttp.StatusBadRequest, wantReason: "VALIDATION"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := serve(t, h, tt.target)
			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantReason != "" {
				assert.Equal(t, tt.wantReason, body["reason"])
				return
			}
			changes, ok := body["changes"].([]any)
			require.True(t, ok)
			assert.Len(t, changes, tt.wantCount)
		})
	}
}

func TestHTTPServer_ApplyChanges(t *testing.T) {
	h := newTestHTTPServer()

	body := `{"changes":[{"entity":"invoice","entity_id":"42","action":"create","payload":"{}"},{"entity":"invoice","entity_id":"43","action":"delete"}]}`
	req := httptest.NewRequest(nethttp.MethodPost, "/v1/changes", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rec, reply := serveRequest(t, h, req)
	require.Equal(t, nethttp.StatusOK, rec.Code, rec.Body.String())
	token, ok := reply["token"].(string)
	require.True(t, ok)
	require.True(t, strings.HasPrefix(token, "transaction-"))

	rec, listed := serve(t, h, "/v1/changes?token="+token)
	require.Equal(t, nethttp.StatusOK, rec.Code)
	changes, ok := listed["changes"].([]any)
	require.True(t, ok)
	require.Len(t, changes, 2)
	assert.Equal(t, "invoice", changes[0].(map[string]any)["entity"])

	req = httptest.NewRequest(nethttp.MethodPost, "/v1/changes", strings.NewReader(`{"changes":[]}`))
	req.Header.Set("Content-Type", "application/json")
	rec, reply = serveRequest(t, h, req)
	require.Equal(t, nethttp.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION", reply["reason"])
}

func TestGRPCServer_Health(t *testing.T) {
	srv := NewGRPCServer(&conf.Server{Grpc: &conf.Server_GRPC{Addr: "127.0.0.1:0"}}, log.DefaultLogger)
	endpoint, err := srv.Endpoint()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go func() { _ = srv.Start(ctx) }()
	defer func() { _ = srv.Stop(context.Background()) }()

	conn, err := grpclib.NewClient(endpoint.Host, grpclib.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{}, grpclib.WaitForReady(true))
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

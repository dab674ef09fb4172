package server

import (
	"context"
	nethttp "net/http"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/logging"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"

	"github.com/guoxiaopeng875/txcorrelation/internal/conf"
	"github.com/guoxiaopeng875/txcorrelation/internal/service"
)

// NewHTTPServer new an HTTP server.
func NewHTTPServer(c *conf.Server, changes *service.ChangeService, logger log.Logger) *http.Server {
	opts := []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
			logging.Server(logger),
		),
	}
	if c != nil && c.Http != nil {
		if c.Http.Network != "" {
			opts = append(opts, http.Network(c.Http.Network))
		}
		if c.Http.Addr != "" {
			opts = append(opts, http.Address(c.Http.Addr))
		}
		if c.Http.Timeout != nil {
			opts = append(opts, http.Timeout(c.Http.Timeout.AsDuration()))
		}
	}
	srv := http.NewServer(opts...)

	r := srv.Route("/")
	r.GET("/healthz", healthzHandler)
	r.GET("/v1/changes", listChangesHandler(changes))
	r.POST("/v1/changes", applyChangesHandler(changes))
	return srv
}

func healthzHandler(ctx http.Context) error {
	return ctx.Result(nethttp.StatusOK, map[string]string{"status": "ok"})
}

func listChangesHandler(changes *service.ChangeService) http.HandlerFunc {
	return func(ctx http.Context) error {
		token := ctx.Query().Get("token")
		http.SetOperation(ctx, "/v1/changes")
		h := ctx.Middleware(func(ctx context.Context, req any) (any, error) {
			return changes.ListChanges(ctx, req.(string))
		})
		out, err := h(ctx, token)
		if err != nil {
			return err
		}
		return ctx.Result(nethttp.StatusOK, out)
	}
}

func applyChangesHandler(changes *service.ChangeService) http.HandlerFunc {
	return func(ctx http.Context) error {
		var in service.ApplyChangesRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, "/v1/changes/apply")
		h := ctx.Middleware(func(ctx context.Context, req any) (any, error) {
			return changes.ApplyChanges(ctx, req.(*service.ApplyChangesRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(nethttp.StatusOK, out)
	}
}

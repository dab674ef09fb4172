//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package main

import (
	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	kregistry "github.com/go-kratos/kratos/v2/registry"
	"github.com/google/wire"

	"github.com/guoxiaopeng875/txcorrelation/internal/biz"
	"github.com/guoxiaopeng875/txcorrelation/internal/conf"
	"github.com/guoxiaopeng875/txcorrelation/internal/data"
	"github.com/guoxiaopeng875/txcorrelation/internal/job"
	"github.com/guoxiaopeng875/txcorrelation/internal/server"
	"github.com/guoxiaopeng875/txcorrelation/internal/service"
)

// wireApp init kratos application.
func wireApp(*conf.Server, *conf.Data, *conf.RocketMQ, *conf.Tracker, *conf.Retention, kregistry.Registrar, log.Logger) (*kratos.App, func(), error) {
	panic(wire.Build(server.ProviderSet, data.ProviderSet, biz.ProviderSet, service.ProviderSet, job.ProviderSet, newApp))
}

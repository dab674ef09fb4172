package job

import (
	"github.com/go-kratos/kratos/v2/transport"
	"github.com/google/wire"
)

// Registry holds all background jobs for Kratos lifecycle management.
type Registry struct {
	Retention *RetentionJob
}

// Servers returns all jobs as transport.Server slice for kratos.Server().
// Disabled jobs are nil and skipped.
func (r *Registry) Servers() []transport.Server {
	var servers []transport.Server
	if r.Retention != nil {
		servers = append(servers, r.Retention)
	}
	return servers
}

// ProviderSet is the job providers.
var ProviderSet = wire.NewSet(
	NewRetentionJob,
	wire.Struct(new(Registry), "*"),
)

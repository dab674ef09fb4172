package nacos

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net"
	"net/url"
	"strconv"

	"github.com/go-kratos/kratos/v2/registry"
	"github.com/nacos-group/nacos-sdk-go/common/constant"
	"github.com/nacos-group/nacos-sdk-go/vo"
)

var (
	ErrServiceInstanceNameEmpty = errors.New("nacos: ServiceInstance.Name can not be empty")
	ErrNoEndpoints              = errors.New("nacos: ServiceInstance has no endpoints")
)

var _ registry.Registrar = (*Registry)(nil)

// NamingClient is the part of the nacos naming client the registrar uses.
// naming_client.INamingClient satisfies it.
type NamingClient interface {
	RegisterInstance(param vo.RegisterInstanceParam) (bool, error)
	DeregisterInstance(param vo.DeregisterInstanceParam) (bool, error)
}

type options struct {
	weight   float64
	cluster  string
	group    string
	metadata map[string]string
}

// Option is nacos option.
type Option func(o *options)

// WithWeight with weight option.
func WithWeight(weight float64) Option {
	return func(o *options) { o.weight = weight }
}

// WithCluster with cluster option.
func WithCluster(cluster string) Option {
	return func(o *options) { o.cluster = cluster }
}

// WithGroup with group option.
func WithGroup(group string) Option {
	return func(o *options) { o.group = group }
}

// WithMetadata adds metadata to every registered instance. Instance
// metadata wins on conflicts.
func WithMetadata(md map[string]string) Option {
	return func(o *options) { o.metadata = md }
}

// Registry registers service instances in nacos. It does not implement
// discovery; this service has no downstream callers to resolve.
type Registry struct {
	opts options
	cli  NamingClient
}

// New new a nacos registry.
func New(cli NamingClient, opts ...Option) (r *Registry) {
	op := options{
		cluster: "DEFAULT",
		group:   constant.DEFAULT_GROUP,
		weight:  100,
	}
	for _, option := range opts {
		option(&op)
	}
	return &Registry{
		opts: op,
		cli:  cli,
	}
}

// buildMetadata builds the metadata map for registration.
func (r *Registry) buildMetadata(si *registry.ServiceInstance, scheme string) (metadata map[string]string, weight float64) {
	weight = r.opts.weight
	rmd := maps.Clone(r.opts.metadata)
	if rmd == nil {
		rmd = make(map[string]string, len(si.Metadata)+2)
	}
	maps.Copy(rmd, si.Metadata)
	rmd["kind"] = scheme
	rmd["version"] = si.Version
	if w, ok := si.Metadata["weight"]; ok {
		if parsed, err := strconv.ParseFloat(w, 64); err == nil {
			weight = parsed
		}
	}
	return rmd, weight
}

// parseEndpoint parses an endpoint string and returns host and port.
func parseEndpoint(endpoint string) (u *url.URL, host string, port uint64, err error) {
	u, err = url.Parse(endpoint)
	if err != nil {
		return nil, "", 0, err
	}
	var portStr string
	host, portStr, err = net.SplitHostPort(u.Host)
	if err != nil {
		return nil, "", 0, err
	}
	port, err = strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, "", 0, err
	}
	return u, host, port, nil
}

// Register registers one nacos instance per endpoint, named
// "<service>.<scheme>". If any endpoint fails, the endpoints registered
// before it are deregistered again.
func (r *Registry) Register(ctx context.Context, si *registry.ServiceInstance) error {
	if si.Name == "" {
		return ErrServiceInstanceNameEmpty
	}
	if len(si.Endpoints) == 0 {
		return ErrNoEndpoints
	}
	for i, endpoint := range si.Endpoints {
		u, host, p, err := parseEndpoint(endpoint)
		if err != nil {
			r.rollback(ctx, si, i)
			return fmt.Errorf("parse endpoint %s: %w", endpoint, err)
		}
		rmd, weight := r.buildMetadata(si, u.Scheme)
		if _, err := r.cli.RegisterInstance(vo.RegisterInstanceParam{
			Ip:          host,
			Port:        p,
			ServiceName: si.Name + "." + u.Scheme,
			Weight:      weight,
			Enable:      true,
			Healthy:     true,
			Ephemeral:   true,
			Metadata:    rmd,
			ClusterName: r.opts.cluster,
			GroupName:   r.opts.group,
		}); err != nil {
			r.rollback(ctx, si, i)
			return fmt.Errorf("RegisterInstance err %w, endpoint: %s", err, endpoint)
		}
	}
	return nil
}

func (r *Registry) rollback(ctx context.Context, si *registry.ServiceInstance, registered int) {
	if registered == 0 {
		return
	}
	partial := *si
	partial.Endpoints = si.Endpoints[:registered]
	_ = r.Deregister(ctx, &partial)
}

// Deregister the registration. Every endpoint is attempted; the failures are
// joined.
func (r *Registry) Deregister(_ context.Context, service *registry.ServiceInstance) error {
	var errs []error
	for _, endpoint := range service.Endpoints {
		u, host, p, err := parseEndpoint(endpoint)
		if err != nil {
			errs = append(errs, fmt.Errorf("parse endpoint %s: %w", endpoint, err))
			continue
		}
		if _, err = r.cli.DeregisterInstance(vo.DeregisterInstanceParam{
			Ip:          host,
			Port:        p,
			ServiceName: service.Name + "." + u.Scheme,
			GroupName:   r.opts.group,
			Cluster:     r.opts.cluster,
			Ephemeral:   true,
		}); err != nil {
			errs = append(errs, fmt.Errorf("DeregisterInstance err %w, endpoint: %s", err, endpoint))
		}
	}
	return errors.Join(errs...)
}

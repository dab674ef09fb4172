package main

import (
	"flag"
	"os"

	"github.com/go-kratos/kratos/contrib/config/apollo/v2"
	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/file"
	"github.com/go-kratos/kratos/v2/encoding/json"
	"github.com/go-kratos/kratos/v2/log"
	kregistry "github.com/go-kratos/kratos/v2/registry"
	"github.com/go-kratos/kratos/v2/transport"
	"github.com/go-kratos/kratos/v2/transport/grpc"
	"github.com/go-kratos/kratos/v2/transport/http"
	_ "go.uber.org/automaxprocs"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/guoxiaopeng875/txcorrelation/internal/conf"
	"github.com/guoxiaopeng875/txcorrelation/internal/job"
	"github.com/guoxiaopeng875/txcorrelation/pkg/env"
	zapLog "github.com/guoxiaopeng875/txcorrelation/pkg/log"
	"github.com/guoxiaopeng875/txcorrelation/pkg/registry"
)

// go build -ldflags "-X main.Version=x.y.z"
var (
	// Name is the name of the compiled software.
	Name string
	// Version is the version of the compiled software.
	Version string
	// id is the service instance id.
	id string
	// Command line flags
	flagConf string
)

func init() {
	json.MarshalOptions = protojson.MarshalOptions{
		EmitUnpopulated: true,
		UseProtoNames:   true,
	}

	var err error
	id, err = os.Hostname()
	if err != nil {
		id = "unknown"
	}

	if Name == "" {
		Name = env.GetOrDefault("SERVICE_NAME", "txcorrelation")
	}

	if Version == "" {
		Version = env.GetOrDefault("SERVICE_VERSION", "0.0.1")
	}
}

func newApp(logger log.Logger, gs *grpc.Server, hs *http.Server, r kregistry.Registrar, jobs *job.Registry) *kratos.App {
	servers := []transport.Server{gs, hs}
	servers = append(servers, jobs.Servers()...)
	opts := []kratos.Option{
		kratos.ID(id),
		kratos.Name(Name),
		kratos.Version(Version),
		kratos.Metadata(map[string]string{}),
		kratos.Logger(logger),
		kratos.Server(servers...),
	}
	if r != nil {
		opts = append(opts, kratos.Registrar(r))
	}
	return kratos.New(opts...)
}

func main() {
	flag.StringVar(&flagConf, "conf", "", "config file path (e.g., ./configs/config.yaml)")
	flag.Parse()

	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	logger := zapLog.Init(
		env.GetOrDefault("LOG_FORMAT", zapLog.FormatConsole),
		zapLog.ParseLevel(env.GetOrDefault("LOG_LEVEL", "info")),
	)
	log.SetLogger(logger)
	logHelper := log.NewHelper(logger)

	// Load configuration
	bc, cleanup, err := loadConfig()
	if err != nil {
		logHelper.Errorf("failed to load config: %v", err)
		return err
	}
	defer cleanup()

	r, err := registry.NewRegistrarFromEnv(instanceMetadata(bc))
	if err != nil {
		logHelper.Errorf("failed to create nacos registry: %v", err)
		return err
	}

	app, appCleanup, err := wireApp(bc.Server, bc.Data, bc.Rocketmq, bc.Tracker, bc.Retention, r, logger)
	if err != nil {
		logHelper.Errorf("failed to wire app: %v", err)
		return err
	}
	defer appCleanup()

	// start and wait for stop signal
	if err := app.Run(); err != nil {
		logHelper.Errorf("app exited with error: %v", err)
		return err
	}
	return nil
}

// loadConfig loads configuration from file or Apollo.
// Priority: -conf flag > CONFIG_FILE env > Apollo
func loadConfig() (*conf.Bootstrap, func(), error) {
	confFile := flagConf
	if confFile == "" {
		confFile = env.GetOrDefault("CONFIG_FILE", "")
	}

	var bc conf.Bootstrap

	// Use file config if specified
	if confFile != "" {
		c := config.New(
			config.WithSource(
				file.NewSource(confFile),
			),
		)

		if err := c.Load(); err != nil {
			return nil, nil, err
		}

		if err := c.Scan(&bc); err != nil {
			return nil, nil, err
		}

		return &bc, func() { c.Close() }, nil
	}

	// Fall back to Apollo
	c := config.New(
		config.WithSource(
			apollo.NewSource(
				apollo.WithAppID(env.GetOrDefault("APOLLO_APP_ID", Name)),
				apollo.WithCluster(env.GetOrDefault("APOLLO_CLUSTER", "dev")),
				apollo.WithEndpoint(env.GetOrDefault("APOLLO_ENDPOINT", "http://localhost:8080")),
				apollo.WithNamespace(env.GetOrDefault("APOLLO_NAMESPACE", "application,bootstrap.yaml")),
				apollo.WithSecret(env.GetOrDefault("APOLLO_SECRET", "fc4cacadc4cb486b91419d67f6d7918b")),
			),
		),
	)

	if err := c.Load(); err != nil {
		return nil, nil, err
	}

	if err := c.Value("bootstrap").Scan(&bc); err != nil {
		return nil, nil, err
	}

	return &bc, func() { c.Close() }, nil
}

// instanceMetadata is attached to the registered service instances.
func instanceMetadata(bc *conf.Bootstrap) map[string]string {
	md := map[string]string{}
	if bc.Tracker != nil && bc.Tracker.Name != "" {
		md["tracker"] = bc.Tracker.Name
	}
	return md
}

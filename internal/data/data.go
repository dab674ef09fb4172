package data

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/guoxiaopeng875/txcorrelation/internal/biz"
	"github.com/guoxiaopeng875/txcorrelation/internal/conf"
	"github.com/guoxiaopeng875/txcorrelation/pkg/orm"
	"github.com/guoxiaopeng875/txcorrelation/pkg/txtrack"
)

// ProviderSet is data providers.
var ProviderSet = wire.NewSet(
	NewData, NewEventSink, NewTracker, NewTransaction,
	NewChangeRepo,
)

// Data is the data layer dependency container.
type Data struct {
	db  *gorm.DB
	rdb *redis.Client
}

// DB returns a context-aware *gorm.DB.
// If a transaction was started by the tracker, returns the transaction;
// otherwise returns the default database session with the given context.
func (d *Data) DB(ctx context.Context) *gorm.DB {
	if tx, ok := orm.TxFromContext(ctx); ok {
		return tx.WithContext(ctx)
	}
	return d.db.WithContext(ctx)
}

// Redis returns the redis.Client instance.
func (d *Data) Redis() *redis.Client {
	return d.rdb
}

// NewTracker creates the transaction correlation tracker over the database.
func NewTracker(d *Data, c *conf.Tracker, sink txtrack.Sink, logger log.Logger) *txtrack.Tracker {
	name := txtrack.DefaultName
	if c != nil && c.Name != "" {
		name = c.Name
	}
	return txtrack.New(
		orm.NewTxBackend(d.db),
		txtrack.WithName(name),
		txtrack.WithSink(sink),
		txtrack.WithLogger(logger),
	)
}

// transaction applies the configured default definition to every InTx.
type transaction struct {
	tracker *txtrack.Tracker
	def     txtrack.Definition
}

func (t *transaction) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return t.tracker.InTxWith(ctx, t.def, fn)
}

// NewTransaction returns a biz.Transaction backed by the tracker.
func NewTransaction(tr *txtrack.Tracker, c *conf.Tracker) biz.Transaction {
	var def txtrack.Definition
	if c != nil {
		def.Timeout = c.DefaultTimeout.AsDuration()
	}
	return &transaction{tracker: tr, def: def}
}

// NewData creates a new Data instance and returns a cleanup function.
func NewData(c *conf.Data, logger log.Logger) (*Data, func(), error) {
	logHelper := log.NewHelper(logger)

	dbConf := &orm.DBConfig{
		Username:        c.Database.Username,
		Password:        c.Database.Password,
		Host:            c.Database.Host,
		Port:            fmt.Sprintf("%d", c.Database.Port),
		DBName:          c.Database.DbName,
		MaxIdleConns:    int(c.Database.MaxIdleConns),
		MaxOpenConns:    int(c.Database.MaxOpenConns),
		DBCharset:       c.Database.DbCharset,
		ConnMaxLifetime: c.Database.ConnMaxLifetime.AsDuration(),
		ConnMaxIdleTime: c.Database.ConnMaxIdleTime.AsDuration(),
		SlowThreshold:   c.Database.SlowThreshold.AsDuration(),
		Logger:          logger,
	}

	ormDB, err := orm.MakeDB(dbConf)
	if err != nil {
		return nil, nil, err
	}

	if err := ormDB.Migrate(Models()...); err != nil {
		logHelper.Errorf("failed to migrate tables: %v", err)
		ormDB.Close()
		return nil, nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         c.Redis.Addr,
		Password:     c.Redis.Password,
		DB:           int(c.Redis.Db),
		DialTimeout:  c.Redis.DialTimeout.AsDuration(),
		WriteTimeout: c.Redis.WriteTimeout.AsDuration(),
		ReadTimeout:  c.Redis.ReadTimeout.AsDuration(),
	})

	// add redis ping check
	pingTimeoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := rdb.Ping(pingTimeoutCtx).Result(); err != nil {
		logHelper.Errorf("failed to ping redis: %v", err)
		ormDB.Close()
		return nil, nil, err
	}

	cleanup := func() {
		logHelper.Info("closing the data resources")

		if err := rdb.Close(); err != nil {
			logHelper.Errorf("failed to close redis data resources: %v", err)
		}

		if err := ormDB.Close(); err != nil {
			logHelper.Errorf("failed to close database data resources: %v", err)
		}
	}

	return &Data{
		db:  ormDB.GetDB(),
		rdb: rdb,
	}, cleanup, nil
}

// Models lists the gorm models owned by the data layer.
func Models() []any {
	return []any{&changeModel{}}
}

package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Laisky/errors/v2"
	gcmd "github.com/Laisky/go-utils/v6/cmd"
	"github.com/Laisky/zap"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	tb "gopkg.in/telebot.v3"

	"github.com/Laisky/filestream/internal/artifact"
	"github.com/Laisky/filestream/internal/files"
	"github.com/Laisky/filestream/internal/ingest"
	"github.com/Laisky/filestream/internal/links"
	"github.com/Laisky/filestream/internal/quota"
	"github.com/Laisky/filestream/internal/retention"
	"github.com/Laisky/filestream/internal/telegram"
	"github.com/Laisky/filestream/internal/web"
	"github.com/Laisky/filestream/library/config"
	"github.com/Laisky/filestream/library/db/mongo"
	"github.com/Laisky/filestream/library/db/redis"
	"github.com/Laisky/filestream/library/log"
)

const (
	dbDriverMongo  = "mongo"
	dbDriverMemory = "memory"

	defaultRedisLockTTLSeconds     = 30
	defaultRedisLockRefreshSeconds = 5
)

var botCMD = &cobra.Command{
	Use:   "bot",
	Short: "run the telegram bot",
	Args:  gcmd.NoExtraArgs,
	PreRun: func(cmd *cobra.Command, args []string) {
		if err := initialize(cmd.Context(), cmd); err != nil {
			log.Logger.Panic("init", zap.Error(err))
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		if err := runBot(cmd.Context()); err != nil {
			log.Logger.Panic("run bot", zap.Error(err))
		}
	},
}

func init() {
	rootCMD.AddCommand(botCMD)
}

func dbDriverFromConfig() string {
	return strings.ToLower(config.String("settings.db.driver", dbDriverMongo))
}

func connectMongo(ctx context.Context) (mongo.DB, error) {
	db, err := mongo.NewDB(ctx, mongo.DialInfo{
		Addr:   config.String("settings.db.mongo.addr", ""),
		DBName: config.String("settings.db.mongo.db", "filestream"),
		User:   config.String("settings.db.mongo.user", ""),
		Pwd:    config.String("settings.db.mongo.pwd", ""),
		AuthDB: config.String("settings.db.mongo.auth_db", ""),
	})
	if err != nil {
		return nil, errors.Wrap(err, "connect mongo")
	}

	return db, nil
}

// deps are the long lived handles closed on shutdown.
type deps struct {
	users    quota.Store
	records  files.Store
	checkers []web.Option
	closers  []func(context.Context) error
}

func (d *deps) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](context.Background()); err != nil {
			log.Logger.Warn("close dependency", zap.Error(err))
		}
	}
}

func setupStores(ctx context.Context, d *deps) error {
	switch driver := dbDriverFromConfig(); driver {
	case dbDriverMemory:
		log.Logger.Warn("using in-memory stores, data is lost on restart")
		d.users = quota.NewMemoryStore()
		d.records = files.NewMemoryStore()
	case dbDriverMongo:
		db, err := connectMongo(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		d.closers = append(d.closers, db.Close)
		d.checkers = append(d.checkers, web.WithChecker("mongo", db.Ping))

		if d.users, err = quota.NewMongoStore(ctx, db); err != nil {
			return errors.Wrap(err, "new user store")
		}
		if d.records, err = files.NewMongoStore(ctx, db); err != nil {
			return errors.Wrap(err, "new file store")
		}
	default:
		return errors.Errorf("unknown db driver %q", driver)
	}

	return nil
}

// setupLocker returns a redis backed user lock when redis is configured,
// replicas sharing one database then also share the daily limits.
func setupLocker(ctx context.Context, d *deps) (quota.Locker, error) {
	addr := config.String("settings.db.redis.addr", "")
	if addr == "" {
		return quota.NewKeyedMutex(), nil
	}

	cli, err := redis.NewClient(ctx, redis.DialInfo{
		Addr: addr,
		Pwd:  config.String("settings.db.redis.pwd", ""),
		DB:   config.Int("settings.db.redis.db", 0),
	})
	if err != nil {
		return nil, errors.Wrap(err, "connect redis")
	}
	d.closers = append(d.closers, func(context.Context) error { return cli.Close() })
	d.checkers = append(d.checkers, web.WithChecker("redis", func(ctx context.Context) error {
		return cli.Ping(ctx).Err()
	}))

	locker, err := redis.NewLocker(cli,
		redis.WithLockTTL(time.Duration(config.Int("settings.db.redis.lock_ttl_seconds", defaultRedisLockTTLSeconds))*time.Second),
		redis.WithLockRefreshInterval(time.Duration(config.Int("settings.db.redis.lock_refresh_seconds", defaultRedisLockRefreshSeconds))*time.Second),
	)
	if err != nil {
		return nil, errors.Wrap(err, "new redis locker")
	}

	return locker, nil
}

func setupBackend(settings artifact.Settings, bot *tb.Bot, binChannel int64) (artifact.Backend, error) {
	switch settings.Backend {
	case artifact.BackendTelegram:
		backend, err := artifact.NewTelegramBackend(bot, binChannel)
		if err != nil {
			return nil, errors.Wrap(err, "new telegram backend")
		}
		return backend, nil
	case artifact.BackendMinio:
		cli, err := artifact.NewMinioClient(settings.Minio)
		if err != nil {
			return nil, errors.Wrap(err, "new minio client")
		}
		backend, err := artifact.NewMinioBackend(cli, settings.Minio.Bucket, settings.Minio.Prefix)
		if err != nil {
			return nil, errors.Wrap(err, "new minio backend")
		}
		return backend, nil
	default:
		return nil, errors.Errorf("unknown storage backend %q", settings.Backend)
	}
}

func runBot(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	d := &deps{}
	defer d.close()
	if err := setupStores(ctx, d); err != nil {
		return errors.WithStack(err)
	}
	locker, err := setupLocker(ctx, d)
	if err != nil {
		return errors.WithStack(err)
	}

	ledger, err := quota.NewLedger(d.users, quota.LoadLimitsFromConfig(), quota.WithLocker(locker))
	if err != nil {
		return errors.Wrap(err, "new quota ledger")
	}

	tgSettings, err := telegram.LoadSettingsFromConfig()
	if err != nil {
		return errors.Wrap(err, "load telegram settings")
	}
	bot, err := telegram.NewBot(tgSettings)
	if err != nil {
		return errors.WithStack(err)
	}

	storeSettings := artifact.LoadSettingsFromConfig()
	backend, err := setupBackend(storeSettings, bot, tgSettings.BinChannel)
	if err != nil {
		return errors.WithStack(err)
	}
	store, err := artifact.NewStore(backend,
		artifact.WithRetryBackoff(storeSettings.RetryBackoff),
		artifact.WithAttemptTimeout(storeSettings.Timeout),
	)
	if err != nil {
		return errors.Wrap(err, "new artifact store")
	}

	issuer, err := links.NewIssuer(links.LoadSettingsFromConfig())
	if err != nil {
		return errors.Wrap(err, "new link issuer")
	}

	// the scheduler reaps through the same store and records the pipeline writes
	scheduler, err := retention.NewScheduler(ingest.NewReaper(store, d.records))
	if err != nil {
		return errors.Wrap(err, "new retention scheduler")
	}
	defer scheduler.Stop()

	ingestSettings := ingest.LoadSettingsFromConfig()
	notifier := telegram.NewLogNotifier(bot, tgSettings.LogChannel)
	pipeline, err := ingest.NewPipeline(ledger, store, issuer, d.records, scheduler, ingestSettings,
		ingest.WithNotifier(notifier))
	if err != nil {
		return errors.Wrap(err, "new ingest pipeline")
	}

	tgSettings.Retention = ingestSettings.Retention
	svc, err := telegram.New(bot, pipeline, ledger, notifier, tgSettings)
	if err != nil {
		return errors.Wrap(err, "new telegram service")
	}
	server := web.NewServer(web.LoadSettingsFromConfig(), d.checkers...)

	log.Logger.Info("bot starting",
		zap.String("backend", backend.Name()),
		zap.String("db", dbDriverFromConfig()),
		zap.Duration("retention", ingestSettings.Retention))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		svc.Run(egCtx)
		return nil
	})
	eg.Go(func() error {
		return server.Run(egCtx)
	})

	return eg.Wait()
}

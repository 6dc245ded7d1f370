// Package mongo wraps the MongoDB driver client used by the stores.
package mongo

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/Laisky/filestream/library/log"
)

const (
	defaultTimeout      = 30 * time.Second
	healthCheckInterval = 10 * time.Second
)

// DB is the handle the stores depend on.
type DB interface {
	Close(ctx context.Context) error
	Ping(ctx context.Context) error
	GetCol(colName string) *mongo.Collection
	CurrentDB() *mongo.Database
}

// DialInfo defines the MongoDB connection information.
type DialInfo struct {
	Addr,
	DBName,
	User,
	Pwd string
	AuthDB string
}

type db struct {
	mu       sync.RWMutex
	cli      *mongo.Client
	dialInfo DialInfo
	cancel   context.CancelFunc
}

// replaced in tests
var (
	connectMongo = func(ctx context.Context, clientOpts *options.ClientOptions) (*mongo.Client, error) {
		return mongo.Connect(ctx, clientOpts)
	}
	pingMongo = func(ctx context.Context, cli *mongo.Client) error {
		return cli.Ping(ctx, readpref.Primary())
	}
	disconnectMongo = func(ctx context.Context, cli *mongo.Client) error {
		return cli.Disconnect(ctx)
	}
)

// buildMongoURI builds a MongoDB connection URI from the given dial info.
func buildMongoURI(dialInfo DialInfo) string {
	uri := &url.URL{
		Scheme: "mongodb",
		Host:   dialInfo.Addr,
		Path:   "/" + dialInfo.DBName,
	}
	if dialInfo.User != "" || dialInfo.Pwd != "" {
		uri.User = url.UserPassword(dialInfo.User, dialInfo.Pwd)
	}
	if dialInfo.AuthDB != "" {
		query := url.Values{}
		query.Set("authSource", dialInfo.AuthDB)
		uri.RawQuery = query.Encode()
	}
	return uri.String()
}

// NewDB connects, pings, and starts a background health logger.
func NewDB(ctx context.Context, dialInfo DialInfo) (DB, error) {
	if dialInfo.Addr == "" || dialInfo.DBName == "" {
		return nil, errors.New("mongo addr and db name are required")
	}

	log.Logger.Info("try to connect to mongodb",
		zap.String("addr", dialInfo.Addr),
		zap.String("db", dialInfo.DBName),
	)

	dialCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(buildMongoURI(dialInfo)).
		SetConnectTimeout(defaultTimeout).
		SetServerSelectionTimeout(defaultTimeout).
		SetHeartbeatInterval(healthCheckInterval).
		SetRetryReads(true).
		SetRetryWrites(true).
		SetMaxPoolSize(100).
		SetMaxConnIdleTime(300 * time.Second)

	cli, err := connectMongo(dialCtx, clientOpts)
	if err != nil {
		return nil, errors.Wrap(err, "connect db")
	}

	// fail at startup rather than on the first upload
	if err = pingMongo(dialCtx, cli); err != nil {
		_ = disconnectMongo(context.Background(), cli)
		return nil, errors.Wrap(err, "ping db")
	}

	checkCtx, checkCancel := context.WithCancel(context.Background())
	d := &db{
		cli:      cli,
		dialInfo: dialInfo,
		cancel:   checkCancel,
	}
	go d.runHealthCheck(checkCtx)

	return d, nil
}

// runHealthCheck only logs, the driver reconnects by itself.
func (d *db) runHealthCheck(ctx context.Context) {
	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		cli := d.client()
		if cli == nil {
			return
		}

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := pingMongo(pingCtx, cli)
		cancel()
		if err != nil && ctx.Err() == nil {
			log.Logger.Warn("mongodb ping failed",
				zap.Error(err),
				zap.String("addr", d.dialInfo.Addr))
		}
	}
}

// CurrentDB returns the database named in the dial info.
func (d *db) CurrentDB() *mongo.Database {
	return d.client().Database(d.dialInfo.DBName)
}

// GetCol returns a collection handle by name.
func (d *db) GetCol(colName string) *mongo.Collection {
	return d.CurrentDB().Collection(colName)
}

// Ping checks the primary is reachable.
func (d *db) Ping(ctx context.Context) error {
	cli := d.client()
	if cli == nil {
		return errors.New("mongo client closed")
	}
	if err := pingMongo(ctx, cli); err != nil {
		return errors.Wrap(err, "ping mongo")
	}
	return nil
}

// Close stops the health check and disconnects. Safe to call twice.
func (d *db) Close(ctx context.Context) error {
	if d.cancel != nil {
		d.cancel()
	}

	d.mu.Lock()
	cli := d.cli
	d.cli = nil
	d.mu.Unlock()
	if cli == nil {
		return nil
	}

	if ctx == nil {
		ctx = context.Background()
	}
	closeCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	return disconnectMongo(closeCtx, cli)
}

func (d *db) client() *mongo.Client {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cli
}

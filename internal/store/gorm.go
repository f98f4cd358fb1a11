package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/shokuba/honne/internal/models"
	"github.com/shokuba/honne/pkg/config"
	"github.com/shokuba/honne/pkg/logging"
	"github.com/shokuba/honne/pkg/telemetry"
)

// zapWriter adapts zap.Logger to logger.Writer interface
type zapWriter struct {
	logger *zap.Logger
}

func (w *zapWriter) Printf(format string, args ...interface{}) {
	w.logger.Sugar().Infof(format, args...)
}

// GormGateway is the production Gateway: rows live in PostgreSQL via GORM
// and change events travel over Redis pub/sub, one channel per collection.
// Without Redis the gateway still serves reads and writes; Subscribe then
// returns ErrSubscribeUnavailable and views degrade to read-only.
type GormGateway struct {
	db     *gorm.DB
	rdb    *redis.Client
	logger *zap.Logger
}

// NewGormGateway opens the database connection and wires the optional
// Redis event transport.
func NewGormGateway(cfg *config.DatabaseConfig, redisCfg *config.RedisConfig, logLevel string) (*GormGateway, error) {
	// Parse log level
	var gormLogLevel logger.LogLevel
	switch logLevel {
	case "DEBUG", "debug":
		gormLogLevel = logger.Info
	case "INFO", "info":
		gormLogLevel = logger.Warn
	case "WARN", "warn", "WARNING", "warning":
		gormLogLevel = logger.Error
	case "ERROR", "error":
		gormLogLevel = logger.Silent
	default:
		gormLogLevel = logger.Warn
	}

	// Configure GORM logger backed by zap
	zapLogger := logging.GetLogger()
	writer := &zapWriter{logger: zapLogger}

	gormLogger := logger.New(
		writer,
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLogLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(cfg.URL), newGormConfig(gormLogger))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logging.GetLogger().Info("Database connection established")

	rdb, err := newRedisClient(redisCfg)
	if err != nil {
		return nil, err
	}

	return &GormGateway{
		db:     db,
		rdb:    rdb,
		logger: logging.WithComponent("store"),
	}, nil
}

// newGormConfig builds the GORM configuration. TranslateError is required
// for unique-key violations to surface as gorm.ErrDuplicatedKey; without it
// the raw driver error reaches Insert and conflicts cannot be detected.
func newGormConfig(gormLogger logger.Interface) *gorm.Config {
	return &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Migrate creates the row tables if they do not exist yet.
func (g *GormGateway) Migrate() error {
	return g.db.AutoMigrate(
		&models.Post{},
		&models.Comment{},
		&models.PostLike{},
		&models.CommentLike{},
		&models.Notification{},
	)
}

// Close closes the database and Redis connections.
func (g *GormGateway) Close() error {
	if g.rdb != nil {
		if err := g.rdb.Close(); err != nil {
			g.logger.Warn("Failed to close Redis client", zap.Error(err))
		}
	}
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health checks database health
func (g *GormGateway) Health(ctx context.Context) error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Query implements Gateway.
func (g *GormGateway) Query(ctx context.Context, collection string, q Query, dest interface{}) error {
	ctx, span := telemetry.StartSpan(ctx, "store.query")
	defer span.End()

	tx := g.scope(ctx, collection, q.Filters)
	if q.OrderBy != "" {
		dir := "ASC"
		if q.Desc {
			dir = "DESC"
		}
		tx = tx.Order(fmt.Sprintf("%s %s", q.OrderBy, dir))
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	return tx.Find(dest).Error
}

// Count implements Gateway.
func (g *GormGateway) Count(ctx context.Context, collection string, filters []Filter) (int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "store.count")
	defer span.End()

	var count int64
	err := g.scope(ctx, collection, filters).Count(&count).Error
	return count, err
}

// Insert implements Gateway. The canonical identifier and timestamp are
// assigned by the row's BeforeCreate hook and visible to the caller after
// return.
func (g *GormGateway) Insert(ctx context.Context, collection string, row interface{}) error {
	ctx, span := telemetry.StartSpan(ctx, "store.insert")
	defer span.End()

	if err := g.db.WithContext(ctx).Table(collection).Create(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrConflict
		}
		return err
	}
	g.publish(ctx, collection, ChangeInsert, row)
	return nil
}

// Update implements Gateway. Updated rows are re-read so that subscribers
// receive the full row, not just the patch.
func (g *GormGateway) Update(ctx context.Context, collection string, filters []Filter, patch map[string]interface{}) error {
	ctx, span := telemetry.StartSpan(ctx, "store.update")
	defer span.End()

	if err := g.scope(ctx, collection, filters).Updates(patch).Error; err != nil {
		return err
	}

	var rows []map[string]interface{}
	if err := g.scope(ctx, collection, filters).Find(&rows).Error; err != nil {
		g.logger.Warn("Failed to re-read updated rows for event publish", zap.Error(err))
		return nil
	}
	for _, row := range rows {
		g.publish(ctx, collection, ChangeUpdate, row)
	}
	return nil
}

// Delete implements Gateway. Matching rows are captured before deletion so
// delete events can carry them.
func (g *GormGateway) Delete(ctx context.Context, collection string, filters []Filter) error {
	ctx, span := telemetry.StartSpan(ctx, "store.delete")
	defer span.End()

	var rows []map[string]interface{}
	if err := g.scope(ctx, collection, filters).Find(&rows).Error; err != nil {
		return err
	}
	if err := g.scope(ctx, collection, filters).Delete(nil).Error; err != nil {
		return err
	}
	for _, row := range rows {
		g.publish(ctx, collection, ChangeDelete, row)
	}
	return nil
}

// Subscribe implements Gateway using Redis pub/sub.
func (g *GormGateway) Subscribe(ctx context.Context, collection string) (Subscription, error) {
	if g.rdb == nil {
		return nil, ErrSubscribeUnavailable
	}

	pubsub := g.rdb.Subscribe(ctx, channelFor(collection))
	// Force the subscription to be established before returning.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", collection, err)
	}

	sub := &redisSubscription{
		pubsub: pubsub,
		events: make(chan Event, 16),
	}
	go sub.run(pubsub.Channel(), g.logger)
	return sub, nil
}

func (g *GormGateway) scope(ctx context.Context, collection string, filters []Filter) *gorm.DB {
	tx := g.db.WithContext(ctx).Table(collection)
	for _, f := range filters {
		switch f.Op {
		case OpGte:
			tx = tx.Where(fmt.Sprintf("%s >= ?", f.Field), f.Value)
		case OpContains:
			tx = tx.Where(fmt.Sprintf("%s LIKE ?", f.Field), fmt.Sprintf("%%%v%%", f.Value))
		default:
			tx = tx.Where(fmt.Sprintf("%s = ?", f.Field), f.Value)
		}
	}
	return tx
}

func (g *GormGateway) publish(ctx context.Context, collection string, op ChangeOp, row interface{}) {
	if g.rdb == nil {
		return
	}
	raw, err := json.Marshal(row)
	if err != nil {
		g.logger.Warn("Failed to encode change event", zap.Error(err))
		return
	}
	payload, err := json.Marshal(Event{Op: op, Row: raw})
	if err != nil {
		g.logger.Warn("Failed to encode change event", zap.Error(err))
		return
	}
	if err := g.rdb.Publish(ctx, channelFor(collection), payload).Err(); err != nil {
		// Event delivery is best-effort; readers converge on next full read.
		g.logger.Warn("Failed to publish change event",
			zap.String("collection", collection),
			zap.Error(err))
	}
}

func channelFor(collection string) string {
	return "honne:changes:" + collection
}

// redisSubscription adapts a Redis pub/sub channel to Subscription.
type redisSubscription struct {
	pubsub *redis.PubSub
	events chan Event
}

func (s *redisSubscription) run(msgs <-chan *redis.Message, log *zap.Logger) {
	defer close(s.events)
	for msg := range msgs {
		var ev Event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			log.Warn("Dropping malformed change event", zap.Error(err))
			continue
		}
		select {
		case s.events <- ev:
		default:
			// Slow or departed consumer; it converges on its next full
			// read. A blocking send here would pin the goroutine after
			// the consumer is gone.
		}
	}
}

// Events implements Subscription.
func (s *redisSubscription) Events() <-chan Event {
	return s.events
}

// Close implements Subscription.
func (s *redisSubscription) Close() {
	s.pubsub.Close()
}

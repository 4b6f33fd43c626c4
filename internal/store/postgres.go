// internal/store/postgres.go
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// gormLogger adapts zap to gorm's logger.Interface.
type gormLogger struct {
	zapLogger *zap.Logger
	logLevel  gormlogger.LogLevel
}

func newGormLogger(zapLogger *zap.Logger) gormlogger.Interface {
	return &gormLogger{
		zapLogger: zapLogger,
		logLevel:  gormlogger.Warn,
	}
}

func (l *gormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	newLogger := *l
	newLogger.logLevel = level
	return &newLogger
}

func (l *gormLogger) Info(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= gormlogger.Info {
		l.zapLogger.Sugar().Infof(msg, data...)
	}
}

func (l *gormLogger) Warn(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= gormlogger.Warn {
		l.zapLogger.Sugar().Warnf(msg, data...)
	}
}

func (l *gormLogger) Error(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= gormlogger.Error {
		l.zapLogger.Sugar().Errorf(msg, data...)
	}
}

func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.logLevel <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.String("sql", sql),
		zap.Int64("rows", rows),
	}

	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		l.zapLogger.Error("trace", append(fields, zap.Error(err))...)
	}
}

// postgresStore implements Store on Postgres via gorm.
type postgresStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewPostgres opens a Postgres-backed store.
func NewPostgres(dsn string, zapLogger *zap.Logger) (Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: newGormLogger(zapLogger.Named("gorm")),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return &postgresStore{
		db:     db,
		logger: zapLogger.Named("store"),
	}, nil
}

func (s *postgresStore) RunMigrations() error {
	if err := s.db.AutoMigrate(&StrategyConfig{}, &PositionRecord{}); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}
	s.logger.Info("Store migrations applied")
	return nil
}

func (s *postgresStore) SaveStrategyConfig(ctx context.Context, cfg *StrategyConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Save(cfg).Error; err != nil {
		return fmt.Errorf("save strategy config %s: %w", cfg.ID, err)
	}
	return nil
}

func (s *postgresStore) GetStrategyConfig(ctx context.Context, id string) (*StrategyConfig, error) {
	var cfg StrategyConfig
	err := s.db.WithContext(ctx).First(&cfg, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get strategy config %s: %w", id, err)
	}
	return &cfg, nil
}

func (s *postgresStore) ListStrategyConfigs(ctx context.Context, onlyActive bool) ([]*StrategyConfig, error) {
	var configs []*StrategyConfig
	q := s.db.WithContext(ctx)
	if onlyActive {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Order("created_at").Find(&configs).Error; err != nil {
		return nil, fmt.Errorf("list strategy configs: %w", err)
	}
	return configs, nil
}

func (s *postgresStore) SetStrategyConfigActive(ctx context.Context, id string, active bool) error {
	res := s.db.WithContext(ctx).
		Model(&StrategyConfig{}).
		Where("id = ?", id).
		Update("is_active", active)
	if res.Error != nil {
		return fmt.Errorf("toggle strategy config %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *postgresStore) SavePositionRecord(ctx context.Context, rec *PositionRecord) error {
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("save position record %s: %w", rec.ID, err)
	}
	return nil
}

func (s *postgresStore) ListPositionRecords(ctx context.Context, strategyID string, limit int) ([]*PositionRecord, error) {
	var records []*PositionRecord
	q := s.db.WithContext(ctx).Order("closed_at desc")
	if strategyID != "" {
		q = q.Where("strategy_id = ?", strategyID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list position records: %w", err)
	}
	return records, nil
}

func (s *postgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

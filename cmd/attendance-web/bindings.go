package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/attendance-sheet/internal/models"
	"github.com/noah-isme/attendance-sheet/internal/repository"
	"github.com/noah-isme/attendance-sheet/pkg/cache"
	"github.com/noah-isme/attendance-sheet/pkg/config"
	"github.com/noah-isme/attendance-sheet/pkg/database"
)

type bindingStore interface {
	Load(ctx context.Context) (models.Binding, error)
	Save(ctx context.Context, binding models.Binding) error
}

// openBindingStore returns the configured binding backend and a release func.
func openBindingStore(ctx context.Context, cfg *config.Config, logr *zap.Logger) (bindingStore, func(), error) {
	switch cfg.Binding.Store {
	case config.BindingStorePostgres:
		db, err := database.Open(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		repo := repository.NewPostgresBindingRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("prepare binding table: %w", err)
		}
		logr.Info("binding store ready", zap.String("store", cfg.Binding.Store), zap.String("db", cfg.Database.Name))
		return repo, func() { _ = db.Close() }, nil
	case config.BindingStoreRedis:
		client, err := cache.Open(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		repo := repository.NewRedisBindingRepository(client, cfg.Binding.RedisKey)
		logr.Info("binding store ready", zap.String("store", cfg.Binding.Store), zap.String("key", cfg.Binding.RedisKey))
		return repo, func() { _ = repo.Close() }, nil
	default:
		logr.Info("binding store ready", zap.String("store", config.BindingStoreFile), zap.String("path", cfg.Binding.FilePath))
		return repository.NewFileBindingRepository(cfg.Binding.FilePath), func() {}, nil
	}
}

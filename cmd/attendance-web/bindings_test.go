package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-sheet/internal/models"
	"github.com/noah-isme/attendance-sheet/pkg/config"
)

func TestOpenBindingStoreFile(t *testing.T) {
	cfg := &config.Config{Binding: config.BindingConfig{
		Store:    config.BindingStoreFile,
		FilePath: filepath.Join(t.TempDir(), "nested", "binding.yaml"),
	}}

	store, release, err := openBindingStore(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer release()

	binding, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, binding.Configured())

	want := models.Binding{EndpointURL: "https://script.example/exec", SheetURL: "https://sheet.example/1"}
	require.NoError(t, store.Save(context.Background(), want))
	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want.EndpointURL, got.EndpointURL)
}

func TestOpenBindingStoreRedisUnreachable(t *testing.T) {
	cfg := &config.Config{
		Binding: config.BindingConfig{Store: config.BindingStoreRedis, RedisKey: "attendance:binding"},
		Redis:   config.RedisConfig{Host: "127.0.0.1", Port: 1},
	}
	_, _, err := openBindingStore(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
}

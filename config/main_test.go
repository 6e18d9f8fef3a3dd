package config

import (
	"context"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestWithLoggerRoundTrip(t *testing.T) {
	entry := log.WithFields(log.Fields{"request_id": "req-1"})
	ctx := WithLogger(context.Background(), entry)

	assert.Equal(t, entry, LoggerFrom(ctx))
}

func TestLoggerFromFallsBack(t *testing.T) {
	assert.NotNil(t, LoggerFrom(nil))
	assert.NotNil(t, LoggerFrom(context.Background()))
}

func TestIsProduction(t *testing.T) {
	ctx := &AppContext{}
	assert.False(t, ctx.IsProduction())

	ctx.Config.Environment = "development"
	assert.False(t, ctx.IsProduction())

	ctx.Config.Environment = "production"
	assert.True(t, ctx.IsProduction())
}

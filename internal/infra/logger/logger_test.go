package logger

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"rental_expiry_monitor/internal/infra/config"
)

func TestInitFormatterFollowsEnvironment(t *testing.T) {
	Init(&config.AppConfig{LogLevel: "debug", Environment: "production"})
	assert.IsType(t, &logrus.JSONFormatter{}, Log.Formatter)
	assert.Equal(t, logrus.DebugLevel, Log.GetLevel())

	Init(&config.AppConfig{LogLevel: "nonsense", Environment: "development"})
	assert.IsType(t, &logrus.TextFormatter{}, Log.Formatter)
	assert.Equal(t, logrus.InfoLevel, Log.GetLevel())
}

func TestComponentTagsEntries(t *testing.T) {
	entry := Component("scheduler")
	assert.Equal(t, "scheduler", entry.Data["component"])
}

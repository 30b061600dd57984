package database

import (
	"testing"

	"agrimarket/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDSN(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Host:     "db",
		Port:     5432,
		User:     "agri",
		Password: "pw",
		Name:     "market",
		SSLMode:  "disable",
	}

	assert.Equal(t, "agri:pw@tcp(db:5432)/market?charset=utf8mb4&parseTime=True&loc=Local", mysqlDSN(cfg))
	assert.Equal(t, "host=db port=5432 user=agri password=pw dbname=market sslmode=disable", postgresDSN(cfg))
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(&config.DatabaseConfig{Driver: "sqlite"}, false, zap.NewNop())
	require.Error(t, err)
}

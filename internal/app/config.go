package app

import (
	"github.com/xenophobed/demi-provenance/internal/platform/envutil"
	"github.com/xenophobed/demi-provenance/internal/services"
)

type Config struct {
	LogMode string
	DBPath  string
	Lineage services.LineageConfig
}

func LoadConfig() Config {
	return Config{
		LogMode: envutil.String("LOG_MODE", "dev"),
		DBPath:  envutil.String("PROVENANCE_DB_PATH", "provenance.db"),
		Lineage: services.LineageConfig{
			MaxDepth: envutil.Int("LINEAGE_MAX_DEPTH", 10),
			MaxNodes: envutil.Int("LINEAGE_MAX_NODES", 500),
		},
	}
}

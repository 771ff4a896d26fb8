package params

import (
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

// LoadEngineConfig builds an EngineConfig from defaults, an optional
// config file (mapd.toml in the datadir or cwd), and MAPD_* environment
// variables. Environment wins over file, file over defaults.
func LoadEngineConfig() *EngineConfig {
	defaults := DefaultEngineConfig()

	v := viper.New()
	v.SetConfigName("mapd")
	v.SetConfigType("toml")
	v.AddConfigPath(DatadirRoot)
	v.AddConfigPath(".")
	v.SetEnvPrefix("MAPD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("assets_dir", defaults.AssetsDir)
	v.SetDefault("max_open_stores", defaults.MaxOpenStores)
	v.SetDefault("cache_timeout", defaults.CacheTimeout)
	v.SetDefault("tile_size", defaults.TileSize)
	v.SetDefault("placeholder_color", defaults.PlaceholderColor)
	v.SetDefault("tile_cache_size", defaults.TileCacheSize)
	v.SetDefault("max_fallback_zooms", defaults.MaxFallbackZooms)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("Unreadable config file", "file", v.ConfigFileUsed(), "error", err)
		}
	}

	return &EngineConfig{
		AssetsDir:        ExpandPath(v.GetString("assets_dir")),
		MaxOpenStores:    v.GetInt("max_open_stores"),
		CacheTimeout:     v.GetDuration("cache_timeout"),
		TileSize:         v.GetInt("tile_size"),
		PlaceholderColor: v.GetString("placeholder_color"),
		TileCacheSize:    v.GetInt("tile_cache_size"),
		MaxFallbackZooms: v.GetInt("max_fallback_zooms"),
	}
}

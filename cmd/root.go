/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/elcano/mapd/params"
)

var optVerbosity int
var optAssetsDir string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mapd",
	Short: "Offline map tile engine",
	Long: `mapd resolves and composites raster tiles from local MBTiles stores.

Stores are discovered in the assets folder; tiles are served with
layer and zoom fallback, and stitched into viewport-sized composites.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	pFlags := rootCmd.PersistentFlags()
	pFlags.CountVarP(&optVerbosity, "verbose", "v", "Increase logging verbosity (-v debug)")
	pFlags.StringVar(&optAssetsDir, "assets", "", "Assets folder to scan for .mbtiles stores (overrides config)")
}

// setDefaultSlog is run at the top of every subcommand to settle the
// default logger from the verbosity flags.
func setDefaultSlog(cmd *cobra.Command, args []string) {
	level := slog.LevelInfo
	if optVerbosity > 0 {
		level = slog.LevelDebug
	}
	slog.SetLogLoggerLevel(level)
}

// engineConfig loads the engine config and applies command-line overrides.
func engineConfig() *params.EngineConfig {
	config := params.LoadEngineConfig()
	if optAssetsDir != "" {
		config.AssetsDir = params.ExpandPath(optAssetsDir)
	}
	return config
}

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
	"context"
	"log"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/elcano/mapd/api"
	"github.com/elcano/mapd/geo"
	"github.com/elcano/mapd/resolve"
)

var optTileLayer string
var optTileFallbackLayers []string
var optTileFallbackZooms []int
var optTileOut string

// tileCmd represents the tile command
var tileCmd = &cobra.Command{
	Use:   "tile <zoom> <column> <row>",
	Short: "Resolve one tile",
	Long: `Resolves a single tile through the fallback chain and writes the
payload to --out (or stdout).`,
	Args: cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)

		z, errZ := strconv.Atoi(args[0])
		x, errX := strconv.Atoi(args[1])
		y, errY := strconv.Atoi(args[2])
		if errZ != nil || errX != nil || errY != nil {
			log.Fatalln("tile address must be three integers: zoom column row")
		}

		engine, err := api.NewEngine(engineConfig())
		if err != nil {
			log.Fatalln(err)
		}
		defer engine.Close()

		rt, err := engine.GetTileWithFallback(context.Background(), resolve.Request{
			Index:          geo.TileIndex{Zoom: z, Column: x, Row: y},
			Layer:          optTileLayer,
			FallbackLayers: optTileFallbackLayers,
			FallbackZooms:  optTileFallbackZooms,
		})
		if err != nil {
			log.Fatalln(err)
		}
		if rt == nil {
			log.Fatalf("no tile at %d/%d/%d", z, x, y)
		}
		slog.Info("Resolved", "source", rt.Index.String(), "layer", rt.Layer, "scaled", rt.Scaled)

		out := os.Stdout
		if optTileOut != "" {
			f, err := os.Create(optTileOut)
			if err != nil {
				log.Fatalln(err)
			}
			defer f.Close()
			out = f
		}
		if _, err := out.Write(rt.Data); err != nil {
			log.Fatalln(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(tileCmd)

	flags := tileCmd.Flags()
	flags.StringVar(&optTileLayer, "layer", "", "Layer to resolve")
	flags.StringSliceVar(&optTileFallbackLayers, "fallback-layers", nil, "Layers to try after the primary")
	flags.IntSliceVar(&optTileFallbackZooms, "fallback-zooms", nil, "Zoom levels to try after the target")
	flags.StringVarP(&optTileOut, "out", "o", "", "Output file (default stdout)")
}

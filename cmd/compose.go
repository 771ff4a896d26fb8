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

	"github.com/paulmach/orb"
	"github.com/spf13/cobra"

	"github.com/elcano/mapd/api"
	"github.com/elcano/mapd/compose"
)

var optComposeLat, optComposeLon float64
var optComposeZoom int
var optComposeWidth, optComposeHeight int
var optComposeCrop bool
var optComposeLayer string
var optComposeOut string

// composeCmd represents the compose command
var composeCmd = &cobra.Command{
	Use:   "compose",
	Short: "Render a composite image",
	Long: `Renders a viewport-sized composite centered on a coordinate,
stitched from resolved tiles with placeholder fill for gaps.`,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)

		engine, err := api.NewEngine(engineConfig())
		if err != nil {
			log.Fatalln(err)
		}
		defer engine.Close()

		res, err := engine.GenerateComposite(context.Background(), compose.Request{
			Center: orb.Point{optComposeLon, optComposeLat},
			Zoom:   optComposeZoom,
			Width:  optComposeWidth,
			Height: optComposeHeight,
			Crop:   optComposeCrop,
			Layer:  optComposeLayer,
		})
		if err != nil {
			log.Fatalln(err)
		}
		slog.Info("Composed", "size", res.Width, "x", res.Height,
			"found", res.TilesFound, "missing", res.TilesMissing, "scaled", res.TilesScaled)

		out := os.Stdout
		if optComposeOut != "" {
			f, err := os.Create(optComposeOut)
			if err != nil {
				log.Fatalln(err)
			}
			defer f.Close()
			out = f
		}
		if _, err := out.Write(res.Image); err != nil {
			log.Fatalln(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(composeCmd)

	flags := composeCmd.Flags()
	flags.Float64Var(&optComposeLat, "lat", 0, "Center latitude")
	flags.Float64Var(&optComposeLon, "lon", 0, "Center longitude")
	flags.IntVar(&optComposeZoom, "zoom", 12, "Zoom level")
	flags.IntVar(&optComposeWidth, "width", 800, "Viewport width in pixels")
	flags.IntVar(&optComposeHeight, "height", 480, "Viewport height in pixels")
	flags.BoolVar(&optComposeCrop, "crop", true, "Crop the canvas to the viewport")
	flags.StringVar(&optComposeLayer, "layer", "", "Layer to resolve")
	flags.StringVarP(&optComposeOut, "out", "o", "", "Output file (default stdout)")
	_ = composeCmd.MarkFlagRequired("lat")
	_ = composeCmd.MarkFlagRequired("lon")
}

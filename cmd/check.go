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
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/spf13/cobra"

	"github.com/elcano/mapd/api"
	"github.com/elcano/mapd/region"
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check <lat> <lon>",
	Short: "Check store coverage at a coordinate",
	Long: `Reports which store covers the coordinate and, per zoom level,
whether a tile actually exists there.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)

		lat, errLat := strconv.ParseFloat(args[0], 64)
		lon, errLon := strconv.ParseFloat(args[1], 64)
		if errLat != nil || errLon != nil {
			log.Fatalln("coordinate must be two decimal numbers: lat lon")
		}
		pt := orb.Point{lon, lat}

		engine, err := api.NewEngine(engineConfig())
		if err != nil {
			log.Fatalln(err)
		}
		defer engine.Close()

		tiles, err := engine.CheckLocation(pt)
		if err != nil {
			var noMap *region.NoMapError
			if errors.As(err, &noMap) {
				fmt.Printf("No map covers (%.4f, %.4f); %d stores known:\n", lat, lon, len(noMap.Known))
				for _, d := range noMap.Known {
					fmt.Printf("  %s  %.2f,%.2f,%.2f,%.2f\n", d.Name,
						d.Bound.Min.Lon(), d.Bound.Min.Lat(), d.Bound.Max.Lon(), d.Bound.Max.Lat())
				}
				return
			}
			log.Fatalln(err)
		}

		if len(tiles) == 0 {
			fmt.Printf("Covered, but no tiles exist at (%.4f, %.4f)\n", lat, lon)
			return
		}
		for _, t := range tiles {
			fmt.Printf("z%-2d  %s\n", t.Zoom, t)
		}
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

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
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	humanize "github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/elcano/mapd/mbtiles"
)

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:   "info [store.mbtiles ...]",
	Short: "Describe MBTiles stores",
	Long: `Prints each store's metadata summary: name, bounds, zoom range,
format, tile size, layers, and per-zoom tile counts.

With no arguments, describes every store in the assets folder.`,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)

		paths := args
		if len(paths) == 0 {
			config := engineConfig()
			matches, err := filepath.Glob(filepath.Join(config.AssetsDir, "*.mbtiles"))
			if err != nil {
				log.Fatalln(err)
			}
			sort.Strings(matches)
			paths = matches
		}
		if len(paths) == 0 {
			fmt.Println("No stores found")
			return
		}

		for _, path := range paths {
			if err := printStoreInfo(path); err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			}
		}
	},
}

func printStoreInfo(path string) error {
	s, err := mbtiles.Open(path)
	if err != nil {
		return err
	}
	defer s.Close()

	desc := s.Descriptor()
	fi, _ := os.Stat(path)
	size := "?"
	if fi != nil {
		size = humanize.Bytes(uint64(fi.Size()))
	}

	fmt.Printf("%s (%s)\n", desc.Name, size)
	fmt.Printf("  path:     %s\n", desc.Path)
	fmt.Printf("  bounds:   %.4f,%.4f,%.4f,%.4f\n",
		desc.Bound.Min.Lon(), desc.Bound.Min.Lat(), desc.Bound.Max.Lon(), desc.Bound.Max.Lat())
	fmt.Printf("  zooms:    %d-%d\n", desc.MinZoom, desc.MaxZoom)
	fmt.Printf("  format:   %s\n", desc.Format)
	fmt.Printf("  tilesize: %d\n", desc.TileSize)
	fmt.Printf("  layers:   %s\n", strings.Join(desc.Layers, ", "))

	zooms, err := s.Zooms()
	if err != nil {
		return err
	}
	for _, z := range zooms {
		n, err := s.CountTiles(z)
		if err != nil {
			return err
		}
		fmt.Printf("  z%-2d       %s tiles\n", z, humanize.Comma(n))
	}
	return nil
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

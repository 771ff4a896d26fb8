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
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/elcano/mapd/api"
	"github.com/elcano/mapd/common"
	"github.com/elcano/mapd/daemon/webd"
	"github.com/elcano/mapd/params"
)

var optHTTPNetwork string
var optHTTPAddr string

// webdCmd represents the serve command
var webdCmd = &cobra.Command{
	Use:   "webd",
	Short: "Start the webserver",
	Long:  `Serves tiles, composites, and store diagnostics over HTTP`,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		slog.Info("webd.Run")

		engine, err := api.NewEngine(engineConfig())
		if err != nil {
			log.Fatalln(err)
		}
		defer engine.Close()

		server := webd.NewWebDaemon(&params.WebDaemonConfig{
			ListenerConfig: params.ListenerConfig{
				Network: optHTTPNetwork,
				Address: optHTTPAddr,
			},
			EngineConfig: engine.Config,
		}, engine)

		errs := make(chan error, 1)
		go func() {
			errs <- server.Run()
		}()

		select {
		case err := <-errs:
			if err != nil {
				log.Fatalln(err)
			}
		case sig := <-common.Interrupted():
			slog.Info("Interrupted", "signal", sig)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Stop(ctx); err != nil {
				log.Fatalln(err)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(webdCmd)

	defaults := params.DefaultWebDaemonConfig()

	pFlags := webdCmd.PersistentFlags()
	pFlags.AddFlagSet(&pflag.FlagSet{})
	pFlags.StringVar(&optHTTPNetwork, "network", defaults.Network, "Listener network (tcp, unix)")
	pFlags.StringVar(&optHTTPAddr, "address", defaults.Address, "HTTP address to listen on")
}

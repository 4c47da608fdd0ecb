package main

import (
	"net/http"

	"github.com/spf13/cobra"

	authhttp "github.com/digidem/comapeo-cloud/auth/http"
	"github.com/digidem/comapeo-cloud/bridge"
	"github.com/digidem/comapeo-cloud/gin"
	projecthttp "github.com/digidem/comapeo-cloud/project/http"
)

func init() {
	RootCmd.AddCommand(&WebCommand)
}

var WebCommand = cobra.Command{
	Use:   "web",
	Short: "Start the gateway server",
	Long:  "Start the gateway server",
	Run: func(cmd *cobra.Command, args []string) {
		srv := gin.New(logger)

		authhttp.RegisterHTTPRoutes(srv, authService, magicLinkService, authorizer)
		projecthttp.RegisterHTTPRoutes(srv, projectService, authorizer)
		srv.RegisterSyncRoute(authorizer, bridge.New(engine, logger))

		addr := cfg.Addr
		if addr == "" {
			addr = ":8080"
		}

		logger.Print("server started, listening on ", addr)
		logger.Fatal(http.ListenAndServe(addr, srv.Handler()))
	},
}

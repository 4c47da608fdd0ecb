package main

import (
	"context"
	"fmt"
	"os"
	"path"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	comapeo "github.com/digidem/comapeo-cloud"
	"github.com/digidem/comapeo-cloud/auth"
	authbolt "github.com/digidem/comapeo-cloud/auth/bolt"
	engineclient "github.com/digidem/comapeo-cloud/clients/engine"
	"github.com/digidem/comapeo-cloud/log"
	"github.com/digidem/comapeo-cloud/project"
)

var (
	// flags
	env        string
	configFile string

	// logger
	logger log.Logger

	// driver
	boltDriver *authbolt.Driver

	// engine
	engine comapeo.Engine

	// services
	authorizer       *auth.Authorizer
	authService      *auth.Service
	magicLinkService *auth.MagicLinkService
	projectService   *project.Service
)

type Configuration struct {
	Addr   string `toml:"addr"`
	Server struct {
		Name    string `toml:"name"`
		Token   string `toml:"token"`
		BaseURL string `toml:"base_url"`
	} `toml:"server"`
	Projects struct {
		Max       int      `toml:"max"`
		Allowlist []string `toml:"allowlist"`
	} `toml:"projects"`
	Bolt struct {
		Store string `toml:"store"`
	} `toml:"bolt"`
	Engine struct {
		Addr string `toml:"addr"`
	} `toml:"engine"`
}

var cfg Configuration

func init() {
	RootCmd.PersistentFlags().StringVar(&env, "env", "dev", "environment")
	RootCmd.PersistentFlags().StringVar(&configFile, "config", "", "configuration file")
}

var RootCmd = cobra.Command{
	Use:   "comapeo-cloud",
	Short: "Self-hosted gateway for CoMapeo project sync",
	Long:  "Self-hosted gateway for CoMapeo project sync",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if configFile == "" {
			configFile = path.Join("configuration", fmt.Sprintf("config.%s.toml", env))
		}

		cfgData, err := os.ReadFile(configFile)
		if err != nil {
			fmt.Println("error reading configuration:", err)
			os.Exit(1)
		}
		if err := toml.Unmarshal(cfgData, &cfg); err != nil {
			fmt.Println("error unmarshalling configuration:", err)
			os.Exit(1)
		}

		// Create logger
		logger = log.New(env)

		if cfg.Server.Token == "" {
			logger.Fatal("no server token configured")
		}

		// Create store
		boltDriver = &authbolt.Driver{}
		if err := boltDriver.Open(cfg.Bolt.Store); err != nil {
			logger.Fatal("could not open credential store:", err)
		}
		store := &authbolt.Store{Driver: boltDriver}

		// Connect to the engine
		engine, err = engineclient.NewClient(context.Background(), nil, cfg.Engine.Addr)
		if err != nil {
			logger.Fatal("could not connect to engine:", err)
		}

		// Create services
		authorizer = auth.NewAuthorizer(cfg.Server.Token, store, engine)
		authService = auth.NewService(store, engine, logger)
		magicLinkService = auth.NewMagicLinkService(store, engine)
		projectService = project.NewService(engine, admissionPolicy(), cfg.Server.Name, cfg.Server.BaseURL, logger)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		boltDriver.Close()
	},
}

// admissionPolicy builds the project admission policy from the
// configuration: an allowlist when one is given, a cap otherwise.
func admissionPolicy() project.Policy {
	if len(cfg.Projects.Allowlist) > 0 {
		return project.AllowlistPolicy(cfg.Projects.Allowlist)
	}
	if cfg.Projects.Max > 0 {
		return project.CapPolicy(cfg.Projects.Max)
	}
	return project.DefaultPolicy()
}

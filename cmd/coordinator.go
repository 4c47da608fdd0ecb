package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/digidem/comapeo-cloud/auth"
	authbolt "github.com/digidem/comapeo-cloud/auth/bolt"
)

func init() {
	CoordinatorCommand.AddCommand(&CoordinatorAllCommand)
	CoordinatorCommand.AddCommand(&CoordinatorRemoveCommand)
	RootCmd.AddCommand(&CoordinatorCommand)
}

var CoordinatorCommand = cobra.Command{
	Use:   "coordinator",
	Short: "Inspect a coordinator by phone number",
	Long:  "Inspect a coordinator by phone number",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 1 {
			logger.Fatal("coordinator wants 1 argument: the phone number of the coordinator")
		}

		store := &authbolt.Store{Driver: boltDriver}
		coordinator, err := store.CoordinatorByPhone(args[0])
		if err != nil {
			logger.Fatal("error retrieving coordinator:", err)
		}
		if coordinator == nil {
			logger.Fatal("no coordinator for phone number ", args[0])
		}

		data, err := formatCoordinator(*coordinator)
		if err != nil {
			logger.Fatal(err)
		}
		logger.Print(data)
	},
}

var CoordinatorAllCommand = cobra.Command{
	Use:   "all",
	Short: "List all coordinators",
	Long:  "List all coordinators",
	Run: func(cmd *cobra.Command, args []string) {
		store := &authbolt.Store{Driver: boltDriver}
		coordinators, err := store.ListCoordinators()
		if err != nil {
			logger.Fatal("error listing coordinators:", err)
		}

		for _, coordinator := range coordinators {
			data, err := formatCoordinator(coordinator)
			if err != nil {
				logger.Fatal(err)
			}
			logger.Print(data)
		}
	},
}

var CoordinatorRemoveCommand = cobra.Command{
	Use:   "remove",
	Short: "Remove a coordinator, keeping its members",
	Long:  "Remove a coordinator, keeping its members",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 1 {
			logger.Fatal("coordinator remove wants 1 argument: the phone number of the coordinator")
		}

		if err := authService.RemoveCoordinator(args[0]); err != nil {
			logger.Fatal("error removing coordinator:", err)
		}
		logger.Print("removed coordinator ", args[0])
	},
}

func formatCoordinator(coordinator auth.Coordinator) (string, error) {
	// Never print the token.
	coordinator.Token = ""
	data, err := json.Marshal(coordinator)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

package main

import (
	"fmt"
	"os"

	"github.com/mwantia/s3offload/cmd/s3offload/cli"
	"github.com/mwantia/s3offload/cmd/s3offload/cli/client"
	"github.com/mwantia/s3offload/cmd/s3offload/cli/server"
)

var (
	version = "0.0.1-dev"
	commit  = "main"
)

func main() {
	info := cli.VersionInfo{
		Version: version,
		Commit:  commit,
	}
	root := cli.NewRootCommand(info)

	root.AddCommand(cli.NewVersionCommand(info))

	root.AddCommand(server.NewAgentCommand())
	root.AddCommand(server.NewConfigCommand())

	root.AddCommand(client.NewBucketCommand())
	root.AddCommand(client.NewSyncCommand())
	root.AddCommand(client.NewDiscoverCommand())
	root.AddCommand(client.NewSettingsCommand())
	root.AddCommand(client.NewTokenCommand())
	root.AddCommand(client.NewMigrateCommand())

	if err := root.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

package main

import (
	"context"

	"github.com/alecthomas/kong"

	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/cmd/server/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Debug     bool `help:"Enable debug mode."`
		Version   kong.VersionFlag
		Server    commands.ServerCmd    `cmd:"" help:"Start the portal HTTP service"`
		Migrate   commands.MigrateCmd   `cmd:"" help:"Apply database migrations"`
		Bootstrap commands.BootstrapCmd `cmd:"" help:"Create an organization and its first admin user"`
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}

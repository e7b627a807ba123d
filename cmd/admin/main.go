package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/legalcrm/legalcrm/cmd/admin/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Debug   bool `help:"Enable debug mode."`
		Version kong.VersionFlag

		Create commands.CreateCmd `cmd:"" help:"Create a new tenant"`
		List   commands.ListCmd   `cmd:"" help:"List tenants"`
		Get    commands.GetCmd    `cmd:"" help:"Show one tenant"`
		Status commands.StatusCmd `cmd:"" help:"Change a tenant's status"`
		Delete commands.DeleteCmd `cmd:"" help:"Delete a tenant and drop its schema"`
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

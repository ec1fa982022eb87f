package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
)

var CLI struct {
	LogLevel string `help:"Log level." default:"info" env:"LOG_LEVEL"`

	Migrate struct {
		Up   MigrateUpCmd   `cmd:"" help:"Apply all pending migrations."`
		Down MigrateDownCmd `cmd:"" help:"Roll back migrations."`
	} `cmd:"" help:"Manage the database schema."`
	Remind        RemindCmd        `cmd:"" help:"Run one reminder pass now."`
	Notifications NotificationsCmd `cmd:"" help:"List reminders sent for a habit."`
	Createuser    CreateuserCmd    `cmd:"" help:"Create a password account."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("habitctl"),
		kong.Description("Quick Habit management commands"),
		kong.UsageOnError(),
	)

	app, err := newApp(CLI.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	if err := ctx.Run(app); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

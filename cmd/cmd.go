// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand handles setup operations for database and configuration.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "database",
				Usage: "Initialize database and run migrations",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}

// authCommand handles the venue account's delegated authorization.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage Spotify authorization for the venue account",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Authorize the venue's Spotify account via the browser",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "email"},
				},
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "port",
						Usage: "Loopback port for the authorization callback",
						Value: 3000,
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Show the stored authorization state",
				Action: r.AuthStatus,
			},
			{
				Name:   "logout",
				Usage:  "Clear all stored session state",
				Action: r.AuthLogout,
			},
		},
	}
}

// accountCommand handles venue account settings against the backend.
func accountCommand(r *Runner) *cli.Command {
	emailFlag := &cli.StringFlag{
		Name:  "email",
		Usage: "Venue account email (defaults to the logged-in account)",
	}

	return &cli.Command{
		Name:  "account",
		Usage: "Venue account settings",
		Commands: []*cli.Command{
			{
				Name:  "price",
				Usage: "Show or set the per-track price",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "euros"},
				},
				Flags:  []cli.Flag{emailFlag},
				Action: r.AccountPrice,
			},
			{
				Name:  "venue",
				Usage: "Show or update the bar's name and address",
				Flags: []cli.Flag{
					emailFlag,
					&cli.StringFlag{
						Name:  "name",
						Usage: "Bar name",
					},
					&cli.StringFlag{
						Name:  "address",
						Usage: "Street address (geocoded by the backend)",
					},
				},
				Action: r.AccountVenue,
			},
			{
				Name:  "subscription",
				Usage: "Subscription status and renewal",
				Commands: []*cli.Command{
					{
						Name:   "status",
						Usage:  "Show whether the subscription is active",
						Flags:  []cli.Flag{emailFlag},
						Action: r.SubscriptionStatus,
					},
					{
						Name:  "renew",
						Usage: "Pay the subscription renewal by card",
						Flags: []cli.Flag{
							emailFlag,
							&cli.StringFlag{
								Name:     "card-number",
								Usage:    "Card number",
								Required: true,
							},
							&cli.StringFlag{
								Name:     "expiry",
								Usage:    "Card expiry as MM/YY",
								Required: true,
							},
							&cli.StringFlag{
								Name:     "cvc",
								Usage:    "Card security code",
								Required: true,
							},
							&cli.StringFlag{
								Name:  "name",
								Usage: "Name on card",
							},
						},
						Action: r.SubscriptionRenew,
					},
				},
			},
		},
	}
}

// sessionCommand launches the interactive kiosk session.
func sessionCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "session",
		Aliases: []string{"kiosk", "ui"},
		Usage:   "Run the interactive jukebox session",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "email",
				Usage: "Venue account email (defaults to the logged-in account)",
			},
			&cli.BoolFlag{
				Name:  "override-proximity",
				Usage: "Skip the proximity gate (operator demonstrations only)",
			},
		},
		Action: r.SessionTUI,
	}
}

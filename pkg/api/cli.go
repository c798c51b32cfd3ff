package api

import (
	"github.com/commutercal/commutercal/pkg/calendar"
	"github.com/commutercal/commutercal/pkg/mbta"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "web-api",
		Usage: "Provides the commuter rail calendar API",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run web api server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "listen",
						Value: ":8080",
						Usage: "listen target for the web server",
					},
				},
				Action: func(c *cli.Context) error {
					feed := calendar.NewSynthesizer(mbta.NewClient())

					return SetupServer(c.String("listen"), feed)
				},
			},
		},
	}
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/SirZenith/lazyimg/cmd/config"
	"github.com/SirZenith/lazyimg/cmd/crop"
	"github.com/SirZenith/lazyimg/cmd/inspect"
	"github.com/SirZenith/lazyimg/internal/env"
	"github.com/SirZenith/lazyimg/cmd/media"
	"github.com/SirZenith/lazyimg/cmd/rewrite"
	"github.com/SirZenith/lazyimg/cmd/srcset"
	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
)

func main() {
	// `-v` is taken by --verbose
	cli.VersionFlag = &cli.BoolFlag{
		Name:  "version",
		Usage: "print the version",
	}

	cmd := &cli.Command{
		Name:    "lazyimg",
		Usage:   "responsive image srcset generator and lazy loading markup rewriter",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    env.FlagConfig,
				Aliases: []string{"c"},
				Usage:   "path to config file, lazyimg.json in working directory is used when omitted",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "print debug log",
				Action: func(_ context.Context, _ *cli.Command, verbose bool) error {
					if verbose {
						log.SetLevel(log.DebugLevel)
					}
					return nil
				},
			},
		},
		Commands: []*cli.Command{
			srcset.Cmd(),
			crop.Cmd(),
			rewrite.Cmd(),
			inspect.Cmd(),
			media.Cmd(),
			config.Cmd(),
		},
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

package srcset

import (
	"context"
	"fmt"

	"github.com/SirZenith/lazyimg/internal/env"
	"github.com/SirZenith/lazyimg/service"
	"github.com/urfave/cli/v3"
)

func Cmd() *cli.Command {
	flags := []cli.Flag{
		&cli.IntFlag{
			Name:    "width",
			Aliases: []string{"W"},
			Usage:   "target width, or width part of aspect ratio with --ratio",
		},
		&cli.IntFlag{
			Name:    "height",
			Aliases: []string{"H"},
			Usage:   "target height, 0 leaves height unconstrained",
		},
		&cli.BoolFlag{
			Name:  "ratio",
			Usage: "treat width and height as aspect ratio",
		},
	}

	return &cli.Command{
		Name:  "srcset",
		Usage: "print srcset value for an image",
		Flags: append(flags, env.ImageFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := env.Load(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			result, err := cmdMain(ctx, cmd, e.Service())
			if err != nil {
				return err
			}

			fmt.Println(result)

			return nil
		},
	}
}

func cmdMain(ctx context.Context, cmd *cli.Command, svc *service.Service) (string, error) {
	source, err := env.ImageSourceFromCmd(cmd)
	if err != nil {
		return "", err
	}

	opts, err := env.ServiceOptionsFromCmd(cmd)
	if err != nil {
		return "", err
	}

	width := int(cmd.Int("width"))
	height := int(cmd.Int("height"))

	switch {
	case cmd.String("crop") != "":
		return svc.SrcSetForCrop(ctx, source, cmd.String("crop"), opts...)
	case cmd.Bool("ratio"):
		return svc.SrcSetForRatio(ctx, source, service.AspectRatio{Width: width, Height: height}, opts...)
	default:
		return svc.SrcSet(ctx, source, width, height, opts...)
	}
}

package crop

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
			Usage:   "target width",
		},
		&cli.IntFlag{
			Name:    "height",
			Aliases: []string{"H"},
			Usage:   "target height",
		},
		&cli.BoolFlag{
			Name:  "prefer-focal-point",
			Usage: "crop around focal point even when a saved crop is selected",
		},
		&cli.BoolFlag{
			Name:  "use-crop-dimensions",
			Usage: "take target size from selected crop",
		},
		&cli.StringFlag{
			Name:  "cache-bust",
			Usage: "cache buster value appended to URL",
		},
	}

	return &cli.Command{
		Name:  "crop",
		Usage: "print a single crop URL for an image",
		Flags: append(flags, env.ImageFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := env.Load(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			source, err := env.ImageSourceFromCmd(cmd)
			if err != nil {
				return err
			}

			opts, err := env.ServiceOptionsFromCmd(cmd)
			if err != nil {
				return err
			}

			opts = append(opts,
				service.WithSize(int(cmd.Int("width")), int(cmd.Int("height"))),
				service.WithCropAlias(cmd.String("crop")),
				service.WithPreferFocalPoint(cmd.Bool("prefer-focal-point")),
				service.WithUseCropDimensions(cmd.Bool("use-crop-dimensions")),
				service.WithCacheBust(cmd.String("cache-bust")),
			)

			result, err := e.Service().CropURL(ctx, source, opts...)
			if err != nil {
				return err
			}

			fmt.Println(result)

			return nil
		},
	}
}

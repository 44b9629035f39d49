package env

import (
	"fmt"

	"github.com/SirZenith/lazyimg/crop"
	"github.com/SirZenith/lazyimg/service"
	"github.com/urfave/cli/v3"
)

// ImageFlags returns flags selecting an image and tweaking generated URLs.
func ImageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "source",
			Aliases: []string{"s"},
			Usage:   "URL of source image",
		},
		&cli.StringFlag{
			Name:    "ref",
			Aliases: []string{"r"},
			Usage:   "content reference of source image, resolved with configured media sources",
		},
		&cli.StringFlag{
			Name:  "crop",
			Usage: "alias of a saved crop of source image",
		},
		&cli.IntFlag{
			Name:    "quality",
			Aliases: []string{"q"},
			Usage:   "encoding quality, 1 - 100, default value comes from config",
		},
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "output image format, default value comes from config",
		},
		&cli.StringFlag{
			Name:  "mode",
			Usage: "crop mode: crop, max, stretch, pad, boxpad, min",
		},
		&cli.StringFlag{
			Name:  "anchor",
			Usage: "crop anchor: center, top, right, bottom, left, topleft, topright, bottomleft, bottomright",
		},
		&cli.StringFlag{
			Name:  "further-options",
			Usage: "raw query string appended to every URL, e.g. '&filter=greyscale'",
		},
		&cli.BoolFlag{
			Name:  "html",
			Usage: "HTML escape output",
		},
	}
}

// ImageSourceFromCmd picks image source from --ref or --source flag.
func ImageSourceFromCmd(cmd *cli.Command) (service.ImageSource, error) {
	ref := cmd.String("ref")
	source := cmd.String("source")

	switch {
	case ref != "" && source != "":
		return nil, fmt.Errorf("--ref and --source can't be used together")
	case ref != "":
		return service.ByReference{Ref: ref}, nil
	case source != "":
		return service.ByURL{URL: source}, nil
	default:
		return nil, fmt.Errorf("either --ref or --source is required")
	}
}

// ServiceOptionsFromCmd converts image flags into service options.
func ServiceOptionsFromCmd(cmd *cli.Command) ([]service.Option, error) {
	mode, err := crop.ParseMode(cmd.String("mode"))
	if err != nil {
		return nil, err
	}

	anchor, err := crop.ParseAnchor(cmd.String("anchor"))
	if err != nil {
		return nil, err
	}

	quality := int(cmd.Int("quality"))
	if quality < 0 || quality > 100 {
		return nil, fmt.Errorf("quality out of range: %d", quality)
	}

	opts := []service.Option{
		service.WithQuality(quality),
		service.WithFormat(cmd.String("format")),
		service.WithMode(mode),
		service.WithAnchor(anchor),
		service.WithFurtherOptions(cmd.String("further-options")),
		service.WithHTMLEncode(cmd.Bool("html")),
	}

	return opts, nil
}

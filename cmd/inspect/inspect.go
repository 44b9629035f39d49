package inspect

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/SirZenith/lazyimg/internal/env"
	"github.com/SirZenith/lazyimg/media"
	"github.com/SirZenith/lazyimg/rewrite"
	"github.com/urfave/cli/v3"
)

func Cmd() *cli.Command {
	var target string

	return &cli.Command{
		Name:  "inspect",
		Usage: "list images in an HTML file and tell whether each of them can be rewritten",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name:        "file",
				UsageText:   "<file>",
				Destination: &target,
				Min:         1,
				Max:         1,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := env.Load(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			file, err := os.Open(target)
			if err != nil {
				return fmt.Errorf("failed to open %s: %s", target, err)
			}
			defer file.Close()

			reports, err := inspect(ctx, file, e.Lookup, e.Config.Rewrite.ReferenceAttribute)
			if err != nil {
				return err
			}

			for _, report := range reports {
				fmt.Println(report)
			}

			return nil
		},
	}
}

type imageStatus string

const (
	statusReady      imageStatus = "ready"
	statusLazy       imageStatus = "already lazy"
	statusMalformed  imageStatus = "malformed src"
	statusUnresolved imageStatus = "unresolved"
	statusNoRef      imageStatus = "no reference"
)

type imageReport struct {
	index  int
	src    string
	ref    string
	width  int
	height int
	status imageStatus
	detail string
}

func (r imageReport) String() string {
	line := fmt.Sprintf("#%d [%s] %dx%d src=%q", r.index, r.status, r.width, r.height, r.src)
	if r.ref != "" {
		line += fmt.Sprintf(" ref=%q", r.ref)
	}
	if r.detail != "" {
		line += " (" + r.detail + ")"
	}
	return line
}

func inspect(ctx context.Context, reader io.Reader, lookup media.Lookup, refAttr string) ([]imageReport, error) {
	if refAttr == "" {
		refAttr = rewrite.DefaultReferenceAttr
	}

	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", rewrite.ErrParseFailure, err)
	}

	reports := []imageReport{}
	doc.Find("img").Each(func(i int, img *goquery.Selection) {
		report := imageReport{index: i}
		report.ref = strings.TrimSpace(img.AttrOr(refAttr, ""))

		if dataSrc, ok := img.Attr(rewrite.AttrDataSrc); ok {
			report.src = dataSrc
			report.status = statusLazy
			reports = append(reports, report)
			return
		}

		report.src = html.UnescapeString(strings.TrimSpace(img.AttrOr(rewrite.AttrSrc, "")))

		geometry, err := rewrite.ReadSourceGeometry(report.src)
		if err != nil {
			report.status = statusMalformed
			report.detail = err.Error()
			reports = append(reports, report)
			return
		}
		report.width = geometry.Width
		report.height = geometry.Height

		switch {
		case report.ref == "":
			report.status = statusNoRef
		case lookup == nil:
			report.status = statusUnresolved
		default:
			info, err := lookup.Lookup(ctx, report.ref)
			if errors.Is(err, media.ErrNotFound) {
				report.status = statusUnresolved
			} else if err != nil {
				report.status = statusUnresolved
				report.detail = err.Error()
			} else {
				report.status = statusReady
				report.detail = fmt.Sprintf("%s, %dx%d", info.URL, info.Width, info.Height)
			}
		}

		reports = append(reports, report)
	})

	return reports, nil
}

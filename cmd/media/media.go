package media

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/SirZenith/lazyimg/internal/env"
	"github.com/SirZenith/lazyimg/common"
	"github.com/SirZenith/lazyimg/crop"
	"github.com/SirZenith/lazyimg/database"
	"github.com/SirZenith/lazyimg/media"
	"github.com/charmbracelet/log"
	"github.com/jeandeaual/go-locale"
	"github.com/urfave/cli/v3"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

func Cmd() *cli.Command {
	return &cli.Command{
		Name:  "media",
		Usage: "manage media records in media database",
		Commands: []*cli.Command{
			subCmdScan(),
			subCmdAdd(),
			subCmdList(),
			subCmdDelete(),
			subCmdImport(),
			subCmdExport(),
		},
	}
}

// withStore loads environment of command and calls `action` with its media
// database.
func withStore(cmd *cli.Command, action func(store *database.Store) error) error {
	e, err := env.Load(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	store, err := e.RequireStore()
	if err != nil {
		return err
	}

	return action(store)
}

// ----------------------------------------------------------------------------

func subCmdScan() *cli.Command {
	var dir string

	return &cli.Command{
		Name:  "scan",
		Usage: "read dimension of every image under a directory and save them to media database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "base-url",
				Usage: "URL prefix prepended to image path relative to scanned directory",
				Value: "/media",
			},
			&cli.StringFlag{
				Name:  "ref-prefix",
				Usage: "prefix prepended to relative path to form content reference of an image",
			},
		},
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name:        "directory",
				UsageText:   "<dir>",
				Destination: &dir,
				Min:         1,
				Max:         1,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withStore(cmd, func(store *database.Store) error {
				opts := scanOptions{
					root:      dir,
					baseURL:   cmd.String("base-url"),
					refPrefix: cmd.String("ref-prefix"),
				}

				saved, failed, err := scanDirectory(ctx, store, opts)
				if err != nil {
					return err
				}

				common.LogBannerMsg([]string{
					fmt.Sprintf("saved: %d", saved),
					fmt.Sprintf("failed: %d", failed),
				}, 5)

				return nil
			})
		},
	}
}

type scanOptions struct {
	root      string
	baseURL   string
	refPrefix string
}

// scanDirectory saves every readable image under `opts.root`. Images whose
// header can't be read are logged and counted as failed.
func scanDirectory(ctx context.Context, store *database.Store, opts scanOptions) (int, int, error) {
	saved, failed := 0, 0

	err := filepath.WalkDir(opts.root, func(filePath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() || !common.IsImageFile(d.Name()) {
			return nil
		}

		info, err := readImageInfo(filePath, opts)
		if err != nil {
			log.Warnf("skip %s: %s", filePath, err)
			failed++
			return nil
		}

		if err := store.Upsert(ctx, info); err != nil {
			return err
		}

		log.Debugf("saved %s -> %s (%dx%d)", info.Ref, info.URL, info.Width, info.Height)
		saved++

		return nil
	})
	if err != nil {
		return saved, failed, fmt.Errorf("failed to scan %s: %w", opts.root, err)
	}

	return saved, failed, nil
}

func readImageInfo(filePath string, opts scanOptions) (media.Info, error) {
	relPath, err := filepath.Rel(opts.root, filePath)
	if err != nil {
		return media.Info{}, err
	}
	relPath = filepath.ToSlash(relPath)

	config, format, err := common.ReadImageConfig(filePath)
	if err != nil {
		return media.Info{}, err
	}

	url := relPath
	if opts.baseURL != "" {
		url = strings.TrimSuffix(opts.baseURL, "/") + "/" + relPath
	}

	return media.Info{
		Ref:       opts.refPrefix + relPath,
		URL:       url,
		Width:     config.Width,
		Height:    config.Height,
		Extension: common.GetStrOr(format, common.GetURLImageFormat(relPath)),
	}, nil
}

// ----------------------------------------------------------------------------

func subCmdAdd() *cli.Command {
	return &cli.Command{
		Name:  "add",
		Usage: "add or replace a media record",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "ref",
				Aliases:  []string{"r"},
				Usage:    "content reference of the image",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "url",
				Aliases:  []string{"u"},
				Usage:    "URL of original image",
				Required: true,
			},
			&cli.IntFlag{
				Name:  "width",
				Usage: "intrinsic width of original image",
			},
			&cli.IntFlag{
				Name:  "height",
				Usage: "intrinsic height of original image",
			},
			&cli.StringFlag{
				Name:  "ext",
				Usage: "image format, derived from URL when omitted",
			},
			&cli.StringFlag{
				Name:  "focal",
				Usage: "focal point as `left,top`, each in range [0, 1]",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			info := media.Info{
				Ref:       cmd.String("ref"),
				URL:       cmd.String("url"),
				Width:     int(cmd.Int("width")),
				Height:    int(cmd.Int("height")),
				Extension: common.NormalizeImageFormat(cmd.String("ext")),
			}
			info.Extension = common.GetStrOr(info.Extension, common.GetURLImageFormat(info.URL))

			if focal := cmd.String("focal"); focal != "" {
				point, err := parseFocalPoint(focal)
				if err != nil {
					return err
				}
				info.FocalPoint = point
			}

			return withStore(cmd, func(store *database.Store) error {
				if err := store.Upsert(ctx, info); err != nil {
					return err
				}

				log.Infof("saved %s", info.Ref)
				return nil
			})
		},
	}
}

func parseFocalPoint(value string) (*crop.FocalPoint, error) {
	parts := strings.Split(value, ",")
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid focal point %q, expecting `left,top`", value)
	}

	coords := [2]float64{}
	for i, part := range parts {
		number, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid focal point %q: %s", value, err)
		} else if number < 0 || number > 1 {
			return nil, fmt.Errorf("focal point coordinate out of range: %v", number)
		}
		coords[i] = number
	}

	return &crop.FocalPoint{Left: coords[0], Top: coords[1]}, nil
}

// ----------------------------------------------------------------------------

// MediaList implements collate.Lister, sorting by reference.
type MediaList []media.Info

func (l MediaList) Len() int {
	return len(l)
}

func (l MediaList) Swap(i, j int) {
	l[i], l[j] = l[j], l[i]
}

func (l MediaList) Bytes(i int) []byte {
	return []byte(l[i].Ref)
}

func detectSortLanguage(lang string) language.Tag {
	langTag := language.AmericanEnglish

	if lang != "" {
		if parsedTag, err := language.Parse(lang); err == nil {
			langTag = parsedTag
		} else {
			log.Warnf("invalid locale, fallback to %s: %s", langTag, err)
		}
	} else if lang, err := locale.GetLocale(); err == nil {
		if parsedTag, err := language.Parse(lang); err == nil {
			langTag = parsedTag
			log.Debugf("detected sort locale: %s", langTag)
		}
	}

	return langTag
}

func formatInfo(info media.Info) string {
	line := fmt.Sprintf("%s\t%s\t%dx%d\t%s", info.Ref, info.URL, info.Width, info.Height, info.Format())
	if info.FocalPoint != nil {
		line += fmt.Sprintf("\tfocal=%g,%g", info.FocalPoint.Left, info.FocalPoint.Top)
	}
	if len(info.Crops) > 0 {
		aliases := make([]string, 0, len(info.Crops))
		for _, c := range info.Crops {
			aliases = append(aliases, c.Alias)
		}
		line += "\tcrops=" + strings.Join(aliases, ",")
	}
	return line
}

func subCmdList() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "print all media records",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "locale",
				Aliases: []string{"l"},
				Usage:   "IETF BCP 47 language tag to be used as sorting language",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withStore(cmd, func(store *database.Store) error {
				infos, err := store.List(ctx)
				if err != nil {
					return err
				}

				collate.New(detectSortLanguage(cmd.String("locale"))).Sort(MediaList(infos))

				for _, info := range infos {
					fmt.Println(formatInfo(info))
				}

				return nil
			})
		},
	}
}

// ----------------------------------------------------------------------------

func subCmdDelete() *cli.Command {
	var ref string

	return &cli.Command{
		Name:  "delete",
		Usage: "delete media record with given reference",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name:        "ref",
				UsageText:   "<ref>",
				Destination: &ref,
				Min:         1,
				Max:         1,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withStore(cmd, func(store *database.Store) error {
				return store.Delete(ctx, ref)
			})
		},
	}
}

// ----------------------------------------------------------------------------

func subCmdImport() *cli.Command {
	var inputPath string

	return &cli.Command{
		Name:  "import",
		Usage: "save every record of a JSON media library or an exported CSV into media database",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name:        "input",
				UsageText:   "<library.json|media.csv>",
				Destination: &inputPath,
				Min:         1,
				Max:         1,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withStore(cmd, func(store *database.Store) error {
				var cnt int
				var err error

				if strings.EqualFold(filepath.Ext(inputPath), ".csv") {
					cnt, err = database.LoadCSV(ctx, store, inputPath)
				} else {
					var library media.MapLookup
					if library, err = media.LoadLibrary(inputPath); err == nil {
						cnt, err = importLibrary(ctx, store, library)
					}
				}
				if err != nil {
					return err
				}

				log.Infof("imported %d record(s) from %s", cnt, inputPath)
				return nil
			})
		},
	}
}

func importLibrary(ctx context.Context, store *database.Store, library media.MapLookup) (int, error) {
	refs := make([]string, 0, len(library))
	for ref := range library {
		refs = append(refs, ref)
	}
	collate.New(language.Und).SortStrings(refs)

	cnt := 0
	for _, ref := range refs {
		if err := store.Upsert(ctx, library[ref]); err != nil {
			return cnt, err
		}
		cnt++
	}

	return cnt, nil
}

// ----------------------------------------------------------------------------

func subCmdExport() *cli.Command {
	var outputPath string

	return &cli.Command{
		Name:  "export",
		Usage: "export media database as CSV or JSON media library, picked by output extension",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name:        "output",
				UsageText:   "<file>",
				Destination: &outputPath,
				Min:         1,
				Max:         1,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withStore(cmd, func(store *database.Store) error {
				if strings.EqualFold(filepath.Ext(outputPath), ".json") {
					infos, err := store.List(ctx)
					if err != nil {
						return err
					}
					return media.SaveLibrary(outputPath, infos)
				}

				return database.SaveAsCSV(ctx, store, outputPath)
			})
		},
	}
}

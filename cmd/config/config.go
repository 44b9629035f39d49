package config

import (
	"context"
	"path/filepath"

	"github.com/SirZenith/lazyimg/config"
	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
)

func Cmd() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "operation for config file",
		Commands: []*cli.Command{
			subCmdInit(),
		},
	}
}

func subCmdInit() *cli.Command {
	var dir string

	return &cli.Command{
		Name:  "init",
		Usage: "create config file in given directory, or fill missing values of an existing one",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "yaml",
				Usage: "write config as lazyimg.yml instead of lazyimg.json",
			},
		},
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name:        "directory",
				UsageText:   "<path>",
				Destination: &dir,
				Max:         1,
				Value:       "./",
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			fileName := config.DefaultFileName
			if cmd.Bool("yaml") {
				fileName = "lazyimg.yml"
			}

			return initConfig(filepath.Join(dir, fileName))
		},
	}
}

func initConfig(outputName string) error {
	c, err := config.ReadExisting(outputName)
	if err != nil {
		log.Infof("failed to read existing config file: %s, go on processing any way", err)
		c = config.Config{}
	}

	c.SetupDefaultValues()

	if err := c.SaveFile(outputName); err != nil {
		return err
	}

	log.Infof("config written to %s", outputName)

	return nil
}

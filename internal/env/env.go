// Package env builds collaborators shared by sub-commands from config file.
package env

import (
	"errors"
	"fmt"
	"os"

	"github.com/SirZenith/lazyimg/config"
	"github.com/SirZenith/lazyimg/crop"
	"github.com/SirZenith/lazyimg/database"
	lua_crop "github.com/SirZenith/lazyimg/lua_module/crop"
	"github.com/SirZenith/lazyimg/media"
	"github.com/SirZenith/lazyimg/network"
	"github.com/SirZenith/lazyimg/service"
	"github.com/SirZenith/lazyimg/srcset"
	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
)

// FlagConfig is name of root flag holding config file path.
const FlagConfig = "config"

type Env struct {
	Config  config.Config
	Render  *srcset.RenderPolicy
	Builder crop.Builder
	Lookup  media.Chain
	Store   *database.Store // nil when no database is configured

	closers []func() error
}

// LoadConfig reads config file given by --config, or lazyimg.json in working
// directory if it exists. Defaults are used when there is no config file.
func LoadConfig(cmd *cli.Command) (config.Config, error) {
	configPath := cmd.String(FlagConfig)
	if configPath == "" {
		if _, err := os.Stat(config.DefaultFileName); err == nil {
			configPath = config.DefaultFileName
		}
	}

	if configPath == "" {
		return config.Default(), nil
	}

	log.Debugf("using config file: %s", configPath)

	return config.ReadConfigFile(configPath)
}

// Load builds environment from command config. Caller should call Close on
// returned value once done.
func Load(cmd *cli.Command) (*Env, error) {
	cfg, err := LoadConfig(cmd)
	if err != nil {
		return nil, err
	}

	return New(cfg)
}

func New(cfg config.Config) (*Env, error) {
	env := &Env{Config: cfg}

	render, err := cfg.RenderPolicy()
	if err != nil {
		return nil, err
	}
	env.Render = render

	if err := env.setupBuilder(); err != nil {
		env.Close()
		return nil, err
	}

	if err := env.setupLookup(); err != nil {
		env.Close()
		return nil, err
	}

	return env, nil
}

func (env *Env) setupBuilder() error {
	if env.Config.CropScript == "" {
		env.Builder = crop.QueryBuilder{}
		return nil
	}

	builder, err := lua_crop.NewBuilder(env.Config.CropScript)
	if err != nil {
		return err
	}

	env.Builder = builder
	env.closers = append(env.closers, func() error {
		builder.Close()
		return nil
	})

	return nil
}

// setupLookup chains media sources in order: library file, database, remote
// endpoint.
func (env *Env) setupLookup() error {
	mediaCfg := env.Config.Media

	if mediaCfg.Library != "" {
		library, err := media.LoadLibrary(mediaCfg.Library)
		if err != nil {
			return err
		}
		env.Lookup = append(env.Lookup, library)
	}

	if mediaCfg.Database != "" {
		store, err := database.OpenStore(mediaCfg.Database)
		if err != nil {
			return err
		}

		env.Store = store
		env.Lookup = append(env.Lookup, store)
		env.closers = append(env.closers, store.Close)
	}

	if mediaCfg.Remote != "" {
		remote, err := network.NewRemoteLookup(network.RemoteOptions{
			Endpoint: mediaCfg.Remote,
			Timeout:  env.Config.RemoteTimeout(),
			Retry:    mediaCfg.RemoteRetry,
			Headers:  mediaCfg.RemoteHeaders,
		})
		if err != nil {
			return err
		}
		env.Lookup = append(env.Lookup, remote)
	}

	if len(env.Lookup) == 0 {
		log.Debug("no media source configured, every content reference will be unresolved")
	}

	return nil
}

// RequireStore returns media database, or an error if none is configured.
func (env *Env) RequireStore() (*database.Store, error) {
	if env.Store == nil {
		return nil, fmt.Errorf("no media database configured, set `media.database` in config file")
	}
	return env.Store, nil
}

func (env *Env) Service() *service.Service {
	return service.New(env.Lookup, env.Builder, env.Render)
}

func (env *Env) Close() error {
	var errs []error
	for i := len(env.closers) - 1; i >= 0; i-- {
		if err := env.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	env.closers = nil

	return errors.Join(errs...)
}

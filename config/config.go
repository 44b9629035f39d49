// Package config reads lazyimg configuration file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/SirZenith/lazyimg/common"
	"github.com/SirZenith/lazyimg/rewrite"
	"github.com/SirZenith/lazyimg/srcset"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const DefaultFileName = "lazyimg.json"

const (
	DefaultWidthStep      = 160
	DefaultMaxWidth       = 2048
	DefaultQuality        = 90
	DefaultFormat         = common.ImageFormatAuto
	DefaultRemoteTimeout  = 5000 // in millisecond
	DefaultRemoteRetry    = 2
	DefaultLookupJobCount = 4
)

type RenderConfig struct {
	WidthStep       int    `json:"width_step" yaml:"width_step" validate:"gte=0"`
	MaxWidth        int    `json:"max_width" yaml:"max_width" validate:"gte=0"`
	DefaultQuality  int    `json:"default_quality" yaml:"default_quality" validate:"gte=0,lte=100"`
	Format          string `json:"format" yaml:"format"`
	BackgroundColor string `json:"background_color" yaml:"background_color"`
	DomainPrefix    string `json:"domain_prefix" yaml:"domain_prefix"`
}

type RewriteConfig struct {
	GenerateLqip         *bool    `json:"generate_lqip,omitempty" yaml:"generate_lqip,omitempty"`
	RemoveStyleAttribute *bool    `json:"remove_style_attribute,omitempty" yaml:"remove_style_attribute,omitempty"`
	RemoveIDAttribute    bool     `json:"remove_id_attribute" yaml:"remove_id_attribute"`
	RoundWidthHeight     bool     `json:"round_width_height" yaml:"round_width_height"`
	RenderPicture        bool     `json:"render_picture" yaml:"render_picture"`
	PictureSources       []string `json:"picture_sources" yaml:"picture_sources"`
	ReferenceAttribute   string   `json:"reference_attribute" yaml:"reference_attribute"`
	LqipQuality          int      `json:"lqip_quality" yaml:"lqip_quality" validate:"gte=0,lte=100"`
	LookupJobs           int      `json:"lookup_jobs" yaml:"lookup_jobs" validate:"gte=0"`
}

type MediaConfig struct {
	Database      string            `json:"database" yaml:"database"`
	Library       string            `json:"library" yaml:"library"`
	Remote        string            `json:"remote" yaml:"remote" validate:"omitempty,url"`
	RemoteTimeout int               `json:"remote_timeout" yaml:"remote_timeout" validate:"gte=0"` // in millisecond
	RemoteRetry   int               `json:"remote_retry" yaml:"remote_retry" validate:"gte=0"`
	RemoteHeaders map[string]string `json:"remote_headers,omitempty" yaml:"remote_headers,omitempty"`
}

type Config struct {
	Render  RenderConfig  `json:"render" yaml:"render"`
	Rewrite RewriteConfig `json:"rewrite" yaml:"rewrite"`
	Media   MediaConfig   `json:"media" yaml:"media"`

	CropScript string `json:"crop_script" yaml:"crop_script"`
	JobCount   int    `json:"job_count" yaml:"job_count" validate:"gte=0"`
}

var configValidator = validator.New()

func isYAMLFile(filePath string) bool {
	ext := strings.ToLower(filepath.Ext(filePath))
	return ext == ".yaml" || ext == ".yml"
}

// Default returns config with every default value filled.
func Default() Config {
	c := Config{}
	c.SetupDefaultValues()
	return c
}

// ReadConfigFile reads configuration from JSON or YAML file, picked by file
// extension. Relative paths are resolved against directory of config file.
func ReadConfigFile(filePath string) (Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file %s: %s", filePath, err)
	}

	c, err := decodeConfig(filePath, data)
	if err != nil {
		return c, err
	}

	if err := configValidator.Struct(c); err != nil {
		return c, fmt.Errorf("invalid config %s: %s", filePath, err)
	}

	c.SetupDefaultValues()

	configDir := filepath.Dir(filePath)

	c.Media.Database = common.ResolveRelativePath(c.Media.Database, configDir)
	c.Media.Library = common.ResolveRelativePath(c.Media.Library, configDir)
	c.CropScript = common.ResolveRelativePath(c.CropScript, configDir)

	return c, nil
}

func decodeConfig(filePath string, data []byte) (Config, error) {
	c := Config{}

	var err error
	if isYAMLFile(filePath) {
		err = yaml.Unmarshal(data, &c)
	} else {
		err = json.Unmarshal(data, &c)
	}
	if err != nil {
		return c, fmt.Errorf("failed to parse config %s: %s", filePath, err)
	}

	return c, nil
}

// ReadExisting reads config file as it is written, without validation or path
// resolution. Missing file reads as empty config.
func ReadExisting(filePath string) (Config, error) {
	data, err := os.ReadFile(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return Config{}, nil
	} else if err != nil {
		return Config{}, fmt.Errorf("failed to read config file %s: %s", filePath, err)
	}

	return decodeConfig(filePath, data)
}

// SetupDefaultValues fills zero values with defaults.
func (c *Config) SetupDefaultValues() {
	render := &c.Render
	render.WidthStep = common.GetIntOr(render.WidthStep, DefaultWidthStep)
	render.MaxWidth = common.GetIntOr(render.MaxWidth, DefaultMaxWidth)
	render.DefaultQuality = common.GetIntOr(render.DefaultQuality, DefaultQuality)
	render.Format = common.GetStrOr(render.Format, DefaultFormat)
	if strings.EqualFold(render.BackgroundColor, "false") {
		render.BackgroundColor = ""
	}

	rw := &c.Rewrite
	if rw.GenerateLqip == nil {
		rw.GenerateLqip = boolPtr(true)
	}
	if rw.RemoveStyleAttribute == nil {
		rw.RemoveStyleAttribute = boolPtr(true)
	}
	rw.ReferenceAttribute = common.GetStrOr(rw.ReferenceAttribute, rewrite.DefaultReferenceAttr)
	rw.LqipQuality = common.GetIntOr(rw.LqipQuality, rewrite.DefaultLqipQuality)
	rw.LookupJobs = common.GetIntOr(rw.LookupJobs, DefaultLookupJobCount)
	if rw.PictureSources == nil {
		rw.PictureSources = []string{}
	}

	media := &c.Media
	media.RemoteTimeout = common.GetIntOr(media.RemoteTimeout, DefaultRemoteTimeout)
	media.RemoteRetry = common.GetIntOr(media.RemoteRetry, DefaultRemoteRetry)

	c.JobCount = common.GetIntOr(c.JobCount, 1)
}

func boolPtr(value bool) *bool {
	return &value
}

// RenderPolicy builds validated render policy from config.
func (c *Config) RenderPolicy() (*srcset.RenderPolicy, error) {
	return srcset.NewRenderPolicy(srcset.PolicyOptions{
		WidthStep:       c.Render.WidthStep,
		MaxWidth:        c.Render.MaxWidth,
		DefaultQuality:  c.Render.DefaultQuality,
		Format:          c.Render.Format,
		BackgroundColor: c.Render.BackgroundColor,
		DomainPrefix:    c.Render.DomainPrefix,
	})
}

// RewritePolicy converts rewrite section into rewriter policy.
func (c *Config) RewritePolicy() rewrite.Policy {
	rw := c.Rewrite

	return rewrite.Policy{
		GenerateLqip:         rw.GenerateLqip == nil || *rw.GenerateLqip,
		RemoveStyleAttribute: rw.RemoveStyleAttribute == nil || *rw.RemoveStyleAttribute,
		RemoveIDAttribute:    rw.RemoveIDAttribute,
		RoundWidthHeight:     rw.RoundWidthHeight,
		RenderPicture:        rw.RenderPicture,
		PictureSources:       append([]string(nil), rw.PictureSources...),
		ReferenceAttr:        rw.ReferenceAttribute,
		LqipQuality:          rw.LqipQuality,
		LookupJobs:           rw.LookupJobs,
	}
}

func (c *Config) RemoteTimeout() time.Duration {
	return time.Duration(c.Media.RemoteTimeout) * time.Millisecond
}

// SaveFile writes config to given path, format is picked by file extension.
func (c *Config) SaveFile(filePath string) error {
	var data []byte
	var err error

	if isYAMLFile(filePath) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "    ")
	}
	if err != nil {
		return fmt.Errorf("failed to serialize config: %s", err)
	}

	if err = os.WriteFile(filePath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file %s: %s", filePath, err)
	}

	return nil
}

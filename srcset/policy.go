package srcset

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	ErrInvalidPolicy   = errors.New("invalid render policy")
	ErrInvalidGeometry = errors.New("invalid image geometry")
)

// PolicyOptions holds raw values used to construct a RenderPolicy.
type PolicyOptions struct {
	WidthStep       int `validate:"gt=0"`
	MaxWidth        int `validate:"gtefield=WidthStep"`
	DefaultQuality  int `validate:"min=1,max=100"`
	Format          string
	BackgroundColor string
	DomainPrefix    string
}

// RenderPolicy is a validated, read-only set of rendering defaults shared by
// every srcset generation.
type RenderPolicy struct {
	widthStep       int
	maxWidth        int
	defaultQuality  int
	format          string
	backgroundColor string
	domainPrefix    string
}

var policyValidator = validator.New()

// NewRenderPolicy validates options and returns a policy. Any violation is
// reported as ErrInvalidPolicy.
func NewRenderPolicy(options PolicyOptions) (*RenderPolicy, error) {
	if err := policyValidator.Struct(options); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPolicy, describeValidationError(err))
	}

	return &RenderPolicy{
		widthStep:       options.WidthStep,
		maxWidth:        options.MaxWidth,
		defaultQuality:  options.DefaultQuality,
		format:          options.Format,
		backgroundColor: options.BackgroundColor,
		domainPrefix:    options.DomainPrefix,
	}, nil
}

func describeValidationError(err error) string {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return err.Error()
	}

	parts := make([]string, 0, len(fieldErrors))
	for _, fieldErr := range fieldErrors {
		parts = append(parts, fmt.Sprintf("%s=%v fails %s %s", fieldErr.Field(), fieldErr.Value(), fieldErr.Tag(), fieldErr.Param()))
	}

	return strings.Join(parts, "; ")
}

func (p *RenderPolicy) WidthStep() int          { return p.widthStep }
func (p *RenderPolicy) MaxWidth() int           { return p.maxWidth }
func (p *RenderPolicy) DefaultQuality() int     { return p.defaultQuality }
func (p *RenderPolicy) Format() string          { return p.format }
func (p *RenderPolicy) BackgroundColor() string { return p.backgroundColor }
func (p *RenderPolicy) DomainPrefix() string    { return p.domainPrefix }

// Options returns values this policy was constructed from.
func (p *RenderPolicy) Options() PolicyOptions {
	return PolicyOptions{
		WidthStep:       p.widthStep,
		MaxWidth:        p.maxWidth,
		DefaultQuality:  p.defaultQuality,
		Format:          p.format,
		BackgroundColor: p.backgroundColor,
		DomainPrefix:    p.domainPrefix,
	}
}

// EffectiveMaxWidth returns upper bound of generated widths for a source with
// given intrinsic width (0 for unknown). Result is never less than width step.
func (p *RenderPolicy) EffectiveMaxWidth(sourceWidth int) int {
	maxWidth := p.maxWidth
	if sourceWidth > 0 && sourceWidth < maxWidth {
		maxWidth = sourceWidth
	}
	if maxWidth < p.widthStep {
		maxWidth = p.widthStep
	}
	return maxWidth
}

// Package shortcode generates random short codes and validates caller-supplied ones.
package shortcode

import (
	"fmt"
	"regexp"

	"github.com/vadimbarashkov/shortlink/internal/entity"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	// GeneratedLength is the length of a generated code: 4 random bytes, hex-encoded.
	GeneratedLength = 8

	MinCustomLength = 3
	MaxCustomLength = 20

	DefaultMaxRetries = 10

	hexAlphabet = "0123456789ABCDEF"
)

var customCodeRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// reservedCodes are path segments the HTTP router serves itself, so a short code
// with that name could never redirect.
var reservedCodes = []any{"api"}

// DrawFunc returns one candidate code. It does not check for collisions.
type DrawFunc func() (string, error)

// DrawHex draws an 8-character uppercase hexadecimal code from a cryptographic source.
func DrawHex() (string, error) {
	return gonanoid.Generate(hexAlphabet, GeneratedLength)
}

type Option func(*Generator)

// WithDraw replaces the random source, e.g. with a deterministic sequence in tests.
func WithDraw(draw DrawFunc) Option {
	return func(g *Generator) {
		g.draw = draw
	}
}

// WithMaxRetries bounds the number of draws made by Generate.
func WithMaxRetries(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxRetries = n
		}
	}
}

// Generator produces short codes that do not collide with the codes already taken.
type Generator struct {
	draw       DrawFunc
	maxRetries int
}

func New(opts ...Option) *Generator {
	g := &Generator{
		draw:       DrawHex,
		maxRetries: DefaultMaxRetries,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Generate draws codes until one is not reported as taken, giving up after the retry budget.
func (g *Generator) Generate(taken func(code string) bool) (string, error) {
	const op = "shortcode.Generator.Generate"

	for i := 0; i < g.maxRetries; i++ {
		code, err := g.draw()
		if err != nil {
			return "", fmt.Errorf("%s: failed to draw short code: %w", op, err)
		}

		if !taken(code) {
			return code, nil
		}
	}

	return "", fmt.Errorf("%s: %w", op, entity.ErrMaxRetriesExceeded)
}

// ValidateCustom checks the length and character rules for a caller-supplied code.
// The returned error wraps entity.ErrInvalidCustomCode and one of entity.ErrCodeLength,
// entity.ErrCodeCharacters or entity.ErrCodeReserved. Whether the code is already taken is not checked here.
func ValidateCustom(code string) error {
	if err := validation.Validate(code,
		validation.Required.Error(entity.ErrCodeLength.Error()),
		validation.Length(MinCustomLength, MaxCustomLength).Error(entity.ErrCodeLength.Error()),
	); err != nil {
		return fmt.Errorf("%w: %w", entity.ErrInvalidCustomCode, entity.ErrCodeLength)
	}

	if err := validation.Validate(code,
		validation.Match(customCodeRegex).Error(entity.ErrCodeCharacters.Error()),
	); err != nil {
		return fmt.Errorf("%w: %w", entity.ErrInvalidCustomCode, entity.ErrCodeCharacters)
	}

	if err := validation.Validate(code,
		validation.NotIn(reservedCodes...).Error(entity.ErrCodeReserved.Error()),
	); err != nil {
		return fmt.Errorf("%w: %w", entity.ErrInvalidCustomCode, entity.ErrCodeReserved)
	}

	return nil
}


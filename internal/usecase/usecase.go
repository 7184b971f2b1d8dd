package usecase

import (
	"cmp"
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/vadimbarashkov/shortlink/internal/entity"
	"github.com/vadimbarashkov/shortlink/internal/registry"
	"github.com/vadimbarashkov/shortlink/internal/shortcode"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type urlRegistry interface {
	View(ctx context.Context, fn func(tx *registry.Tx) error) error
	Update(ctx context.Context, fn func(tx *registry.Tx) error) error
}

type codeGenerator interface {
	Generate(taken func(code string) bool) (string, error)
}

// ShortenResult is the outcome of ShortenURL.
type ShortenResult struct {
	entity.URL
	ShortURL string
	// Existing is set when the original URL had already been shortened and the
	// stored record was returned unchanged.
	Existing bool
}

// URLView is a record as presented by ListURLs.
type URLView struct {
	entity.URL
	ShortURL string
}

type URLUseCase struct {
	baseURL  string
	urlReg   urlRegistry
	generate codeGenerator
	now      func() time.Time
}

func NewURLUseCase(baseURL string, urlReg urlRegistry, generate codeGenerator) *URLUseCase {
	return &URLUseCase{
		baseURL:  strings.TrimRight(baseURL, "/"),
		urlReg:   urlReg,
		generate: generate,
		now:      time.Now,
	}
}

// ShortURL joins the base address and a short code.
func (uc *URLUseCase) ShortURL(shortCode string) string {
	return uc.baseURL + "/" + shortCode
}

// ShortenURL stores originalURL under customCode, or under a generated code when
// customCode is empty. If originalURL is already stored, the existing record is
// returned and nothing is written.
func (uc *URLUseCase) ShortenURL(ctx context.Context, originalURL, customCode string) (*ShortenResult, error) {
	const op = "usecase.URLUseCase.ShortenURL"

	if err := validateOriginalURL(originalURL); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var res ShortenResult

	err := uc.urlReg.Update(ctx, func(tx *registry.Tx) error {
		if existing, ok := tx.FindByOriginalURL(originalURL); ok {
			res.URL = existing
			res.Existing = true
			return nil
		}

		code, err := uc.resolveCode(tx, customCode)
		if err != nil {
			return err
		}

		res.URL = entity.URL{
			ShortCode:   code,
			OriginalURL: originalURL,
			CreatedAt:   uc.now().UTC().Truncate(time.Millisecond),
		}

		return tx.Insert(res.URL)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: failed to shorten url: %w", op, err)
	}

	res.ShortURL = uc.ShortURL(res.ShortCode)

	return &res, nil
}

func (uc *URLUseCase) resolveCode(tx *registry.Tx, customCode string) (string, error) {
	if customCode == "" {
		return uc.generate.Generate(tx.Has)
	}

	if err := shortcode.ValidateCustom(customCode); err != nil {
		return "", err
	}
	if tx.Has(customCode) {
		return "", entity.ErrShortCodeExists
	}

	return customCode, nil
}

// ResolveShortCode counts a click for shortCode and returns the updated record.
func (uc *URLUseCase) ResolveShortCode(ctx context.Context, shortCode string) (*entity.URL, error) {
	const op = "usecase.URLUseCase.ResolveShortCode"

	var url entity.URL

	err := uc.urlReg.Update(ctx, func(tx *registry.Tx) error {
		var err error
		url, err = tx.IncrementClicks(shortCode)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: failed to resolve short code: %w", op, err)
	}

	return &url, nil
}

// ListURLs returns every record, newest first. Records created in the same
// millisecond are ordered by short code.
func (uc *URLUseCase) ListURLs(ctx context.Context) ([]URLView, error) {
	const op = "usecase.URLUseCase.ListURLs"

	var urls []entity.URL

	err := uc.urlReg.View(ctx, func(tx *registry.Tx) error {
		urls = tx.All()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list urls: %w", op, err)
	}

	slices.SortFunc(urls, func(a, b entity.URL) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ShortCode, b.ShortCode)
	})

	return lo.Map(urls, func(u entity.URL, _ int) URLView {
		return URLView{URL: u, ShortURL: uc.ShortURL(u.ShortCode)}
	}), nil
}

func validateOriginalURL(raw string) error {
	err := validation.Validate(raw,
		validation.Required,
		validation.By(func(value any) error {
			u, err := url.Parse(value.(string))
			if err != nil {
				return err
			}
			if u.Scheme != "http" && u.Scheme != "https" {
				return fmt.Errorf("unsupported scheme %q", u.Scheme)
			}
			if u.Host == "" {
				return fmt.Errorf("missing host")
			}
			return nil
		}),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", entity.ErrInvalidURL, err)
	}

	return nil
}

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/shortlink/internal/entity"
	"github.com/vadimbarashkov/shortlink/internal/usecase"
)

type urlUseCase interface {
	ShortenURL(ctx context.Context, originalURL, customCode string) (*usecase.ShortenResult, error)
	ResolveShortCode(ctx context.Context, shortCode string) (*entity.URL, error)
	ListURLs(ctx context.Context) ([]usecase.URLView, error)
}

type qrEncoder interface {
	Encode(content string) (string, error)
}

var notFoundTmpl = template.Must(template.New("not_found").Parse(`<!DOCTYPE html>
<html>
  <head><title>URL Not Found</title></head>
  <body style="font-family: Arial, sans-serif; text-align: center; margin-top: 100px;">
    <h1>URL Not Found</h1>
    <p>The shortened URL you're looking for does not exist.</p>
    <a href="{{.}}" style="color: #3B82F6;">Go to URL Shortener</a>
  </body>
</html>
`))

func handleHealth(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, healthResponse)
}

type urlHandler struct {
	useCase      urlUseCase
	qr           qrEncoder
	validate     *validator.Validate
	notFoundPage []byte
}

func newURLHandler(useCase urlUseCase, qr qrEncoder, validate *validator.Validate, frontendURL string) *urlHandler {
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	var page bytes.Buffer
	if err := notFoundTmpl.Execute(&page, frontendURL); err != nil {
		panic(fmt.Sprintf("render not found page: %v", err))
	}

	return &urlHandler{
		useCase:      useCase,
		qr:           qr,
		validate:     validate,
		notFoundPage: page.Bytes(),
	}
}

func (h *urlHandler) shortenURL(w http.ResponseWriter, r *http.Request) {
	var req shortenRequest

	if err := render.DecodeJSON(r.Body, &req); err != nil {
		if errors.Is(err, io.EOF) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, emptyRequestBodyResponse)
			return
		}

		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, decodeErrorResponse(err))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, invalidURLResponse)
		return
	}

	res, err := h.useCase.ShortenURL(r.Context(), req.OriginalURL, req.CustomCode)
	if err != nil {
		resp, ok := shortenErrorResponse(err)
		if ok {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp)
			return
		}

		httplog.LogEntrySetField(r.Context(), "err", slog.AnyValue(err))

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, resp)
		return
	}

	qrCode, err := h.qr.Encode(res.ShortURL)
	if err != nil {
		httplog.LogEntrySetField(r.Context(), "err", slog.AnyValue(err))

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, serverErrorResponse)
		return
	}

	status := http.StatusCreated
	if res.Existing {
		status = http.StatusOK
	}

	render.Status(r, status)
	render.JSON(w, r, newSuccessResponse(toShortenData(res, qrCode)))
}

// decodeErrorResponse reports a wrongly typed field as a problem with that field
// rather than with the body as a whole.
func decodeErrorResponse(err error) errorResponse {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		switch typeErr.Field {
		case "originalUrl":
			return invalidURLResponse
		case "customCode":
			return invalidCustomCodeResponse
		}
	}

	return invalidRequestBodyResponse
}

func (h *urlHandler) listURLs(w http.ResponseWriter, r *http.Request) {
	urls, err := h.useCase.ListURLs(r.Context())
	if err != nil {
		httplog.LogEntrySetField(r.Context(), "err", slog.AnyValue(err))

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, serverErrorResponse)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, newSuccessResponse(toURLItems(urls)))
}

func (h *urlHandler) resolveShortCode(w http.ResponseWriter, r *http.Request) {
	shortCode := chi.URLParam(r, "shortCode")

	url, err := h.useCase.ResolveShortCode(r.Context(), shortCode)
	if err != nil {
		if errors.Is(err, entity.ErrURLNotFound) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(http.StatusNotFound)
			w.Write(h.notFoundPage)
			return
		}

		httplog.LogEntrySetField(r.Context(), "err", slog.AnyValue(err))

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, msgServerError)
		return
	}

	http.Redirect(w, r, url.OriginalURL, http.StatusFound)
}

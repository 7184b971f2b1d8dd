package http

import (
	"errors"

	"github.com/vadimbarashkov/shortlink/internal/entity"
	"github.com/vadimbarashkov/shortlink/internal/usecase"
)

// timeLayout renders timestamps with millisecond precision in UTC.
const timeLayout = "2006-01-02T15:04:05.000Z"

const (
	msgURLShortened      = "URL shortened successfully"
	msgURLExists         = "URL already exists"
	msgInvalidURL        = "Please provide a valid URL"
	msgCustomCodeTaken   = "Custom code is already taken"
	msgInvalidCustomCode = "Custom code must be 3-20 characters long and contain only letters, numbers, hyphens, and underscores"
	msgServerError       = "Internal server error"
	msgServerRunning     = "Server is running"
)

// shortenRequest represents the body of a request to shorten a URL.
type shortenRequest struct {
	OriginalURL string `json:"originalUrl" validate:"required"`
	CustomCode  string `json:"customCode"`
}

// shortenData is returned for both newly created and already existing URLs.
type shortenData struct {
	OriginalURL string `json:"originalUrl"`
	ShortURL    string `json:"shortUrl"`
	ShortCode   string `json:"shortCode"`
	QRCode      string `json:"qrCode"`
	Message     string `json:"message"`
}

func toShortenData(res *usecase.ShortenResult, qrCode string) shortenData {
	msg := msgURLShortened
	if res.Existing {
		msg = msgURLExists
	}

	return shortenData{
		OriginalURL: res.OriginalURL,
		ShortURL:    res.ShortURL,
		ShortCode:   res.ShortCode,
		QRCode:      qrCode,
		Message:     msg,
	}
}

type urlItem struct {
	ShortCode   string `json:"shortCode"`
	OriginalURL string `json:"originalUrl"`
	ShortURL    string `json:"shortUrl"`
	CreatedAt   string `json:"createdAt"`
	Clicks      int64  `json:"clicks"`
}

func toURLItems(urls []usecase.URLView) []urlItem {
	items := make([]urlItem, 0, len(urls))
	for _, u := range urls {
		items = append(items, urlItem{
			ShortCode:   u.ShortCode,
			OriginalURL: u.OriginalURL,
			ShortURL:    u.ShortURL,
			CreatedAt:   u.CreatedAt.UTC().Format(timeLayout),
			Clicks:      u.Clicks,
		})
	}
	return items
}

// successResponse wraps every successful API payload.
type successResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func newSuccessResponse(data any) successResponse {
	return successResponse{Success: true, Data: data}
}

// errorResponse is returned for rejected and failed API requests.
type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func newErrorResponse(msg string) errorResponse {
	return errorResponse{Success: false, Error: msg}
}

// Predefined responses for common scenarios.
var (
	emptyRequestBodyResponse   = newErrorResponse("Request body is empty")
	invalidRequestBodyResponse = newErrorResponse("Request body is not valid JSON")
	invalidURLResponse         = newErrorResponse(msgInvalidURL)
	customCodeTakenResponse    = newErrorResponse(msgCustomCodeTaken)
	invalidCustomCodeResponse  = newErrorResponse(msgInvalidCustomCode)
	serverErrorResponse        = newErrorResponse(msgServerError)
	healthResponse             = successResponse{Success: true, Message: msgServerRunning}
)

// shortenErrorResponse maps a ShortenURL error to its client-facing response.
// ok is false for errors that are not the client's fault.
func shortenErrorResponse(err error) (resp errorResponse, ok bool) {
	switch {
	case errors.Is(err, entity.ErrInvalidURL):
		return invalidURLResponse, true
	case errors.Is(err, entity.ErrCodeReserved), errors.Is(err, entity.ErrShortCodeExists):
		return customCodeTakenResponse, true
	case errors.Is(err, entity.ErrInvalidCustomCode):
		return invalidCustomCodeResponse, true
	default:
		return serverErrorResponse, false
	}
}

package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"github.com/vadimbarashkov/shortlink/internal/entity"
	"github.com/vadimbarashkov/shortlink/internal/registry"
	"github.com/vadimbarashkov/shortlink/internal/shortcode"
)

const baseURL = "http://localhost:5000"

type MockStore struct {
	mock.Mock
}

func (s *MockStore) Load(ctx context.Context) (entity.Registry, error) {
	args := s.Called(ctx)
	reg, _ := args.Get(0).(entity.Registry)
	return reg, args.Error(1)
}

func (s *MockStore) Save(ctx context.Context, reg entity.Registry) error {
	args := s.Called(ctx, reg)
	return args.Error(0)
}

type URLUseCaseTestSuite struct {
	suite.Suite
	errUnknown error
	logger     *slog.Logger
	now        time.Time
	storeMock  *MockStore
	reg        *registry.Registry
	uc         *URLUseCase
}

func (suite *URLUseCaseTestSuite) SetupSuite() {
	suite.errUnknown = errors.New("unknown error")
	suite.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	suite.now = time.Date(2024, 3, 1, 10, 0, 0, 123_456_789, time.UTC)
}

// open starts a registry over the mocked store holding initial.
func (suite *URLUseCaseTestSuite) open(initial entity.Registry, draw ...string) {
	suite.storeMock = new(MockStore)
	suite.storeMock.On("Load", mock.Anything).Once().Return(initial, nil)

	var err error
	suite.reg, err = registry.Open(context.Background(), suite.storeMock, suite.logger)
	if err != nil {
		suite.T().Fatalf("Failed to open registry: %v", err)
	}
	suite.T().Cleanup(func() {
		suite.reg.Close()
	})

	opts := []shortcode.Option{shortcode.WithMaxRetries(5)}
	if len(draw) > 0 {
		i := 0
		opts = append(opts, shortcode.WithDraw(func() (string, error) {
			code := draw[i%len(draw)]
			i++
			return code, nil
		}))
	}

	suite.uc = NewURLUseCase(baseURL+"/", suite.reg, shortcode.New(opts...))
	suite.uc.now = func() time.Time { return suite.now }
}

func (suite *URLUseCaseTestSuite) TearDownSubTest() {
	suite.storeMock.AssertExpectations(suite.T())
}

func (suite *URLUseCaseTestSuite) stored(code string) (entity.URL, bool) {
	var (
		url entity.URL
		ok  bool
	)
	err := suite.reg.View(context.Background(), func(tx *registry.Tx) error {
		url, ok = tx.Get(code)
		return nil
	})
	suite.Require().NoError(err)
	return url, ok
}

func (suite *URLUseCaseTestSuite) TestShortenURL() {
	suite.Run("invalid url", func() {
		suite.open(entity.Registry{})

		for _, raw := range []string{"", "not a url", "ftp://example.com", "example.com", "https://", "javascript:alert(1)"} {
			res, err := suite.uc.ShortenURL(context.Background(), raw, "")

			suite.ErrorIs(err, entity.ErrInvalidURL, raw)
			suite.Nil(res)
		}

		suite.storeMock.AssertNotCalled(suite.T(), "Save", mock.Anything, mock.Anything)
	})

	suite.Run("generated code", func() {
		suite.open(entity.Registry{}, "1A2B3C4D")
		suite.storeMock.On("Save", mock.Anything, mock.MatchedBy(func(reg entity.Registry) bool {
			return len(reg) == 1 && reg["1A2B3C4D"].OriginalURL == "https://example.com"
		})).Once().Return(nil)

		res, err := suite.uc.ShortenURL(context.Background(), "https://example.com", "")

		suite.NoError(err)
		suite.False(res.Existing)
		suite.Equal("1A2B3C4D", res.ShortCode)
		suite.Equal("http://localhost:5000/1A2B3C4D", res.ShortURL)
		suite.Equal("https://example.com", res.OriginalURL)
		suite.Zero(res.Clicks)
		suite.Equal(time.Date(2024, 3, 1, 10, 0, 0, 123_000_000, time.UTC), res.CreatedAt)
	})

	suite.Run("generated code collides", func() {
		suite.open(entity.Registry{
			"AAAAAAAA": {ShortCode: "AAAAAAAA", OriginalURL: "https://example.org", CreatedAt: suite.now},
		}, "AAAAAAAA", "BBBBBBBB")
		suite.storeMock.On("Save", mock.Anything, mock.Anything).Once().Return(nil)

		res, err := suite.uc.ShortenURL(context.Background(), "https://example.com", "")

		suite.NoError(err)
		suite.Equal("BBBBBBBB", res.ShortCode)

		prev, ok := suite.stored("AAAAAAAA")
		suite.True(ok)
		suite.Equal("https://example.org", prev.OriginalURL)
	})

	suite.Run("maximum retries error", func() {
		suite.open(entity.Registry{
			"AAAAAAAA": {ShortCode: "AAAAAAAA", OriginalURL: "https://example.org", CreatedAt: suite.now},
		}, "AAAAAAAA")

		res, err := suite.uc.ShortenURL(context.Background(), "https://example.com", "")

		suite.ErrorIs(err, entity.ErrMaxRetriesExceeded)
		suite.Nil(res)
	})

	suite.Run("custom code", func() {
		suite.open(entity.Registry{})
		suite.storeMock.On("Save", mock.Anything, mock.Anything).Once().Return(nil)

		res, err := suite.uc.ShortenURL(context.Background(), "https://example.com", "abc")

		suite.NoError(err)
		suite.Equal("abc", res.ShortCode)
		suite.Equal("http://localhost:5000/abc", res.ShortURL)
	})

	suite.Run("custom code too short", func() {
		suite.open(entity.Registry{})

		res, err := suite.uc.ShortenURL(context.Background(), "https://example.com", "ab")

		suite.ErrorIs(err, entity.ErrInvalidCustomCode)
		suite.ErrorIs(err, entity.ErrCodeLength)
		suite.Nil(res)
	})

	suite.Run("custom code invalid characters", func() {
		suite.open(entity.Registry{})

		res, err := suite.uc.ShortenURL(context.Background(), "https://example.com", "a!b")

		suite.ErrorIs(err, entity.ErrInvalidCustomCode)
		suite.ErrorIs(err, entity.ErrCodeCharacters)
		suite.Nil(res)
	})

	suite.Run("reserved custom code", func() {
		suite.open(entity.Registry{})

		res, err := suite.uc.ShortenURL(context.Background(), "https://example.com", "api")

		suite.ErrorIs(err, entity.ErrInvalidCustomCode)
		suite.ErrorIs(err, entity.ErrCodeReserved)
		suite.Nil(res)

		_, ok := suite.stored("api")
		suite.False(ok)
	})

	suite.Run("custom code taken", func() {
		suite.open(entity.Registry{
			"abc": {ShortCode: "abc", OriginalURL: "https://example.org", CreatedAt: suite.now},
		})

		res, err := suite.uc.ShortenURL(context.Background(), "https://example.com", "abc")

		suite.ErrorIs(err, entity.ErrShortCodeExists)
		suite.Nil(res)
	})

	suite.Run("existing url", func() {
		createdAt := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
		existing := entity.URL{ShortCode: "abc", OriginalURL: "https://example.com", CreatedAt: createdAt, Clicks: 4}
		suite.open(entity.Registry{"abc": existing})

		res, err := suite.uc.ShortenURL(context.Background(), "https://example.com", "")

		suite.NoError(err)
		suite.True(res.Existing)
		suite.Equal(existing, res.URL)
		suite.Equal("http://localhost:5000/abc", res.ShortURL)
	})

	suite.Run("existing url ignores custom code", func() {
		suite.open(entity.Registry{
			"abc": {ShortCode: "abc", OriginalURL: "https://example.com", CreatedAt: suite.now},
		})

		res, err := suite.uc.ShortenURL(context.Background(), "https://example.com", "a!")

		suite.NoError(err)
		suite.True(res.Existing)
		suite.Equal("abc", res.ShortCode)
	})

	suite.Run("dedup is exact string match", func() {
		suite.open(entity.Registry{
			"abc": {ShortCode: "abc", OriginalURL: "https://example.com", CreatedAt: suite.now},
		}, "1A2B3C4D")
		suite.storeMock.On("Save", mock.Anything, mock.Anything).Once().Return(nil)

		res, err := suite.uc.ShortenURL(context.Background(), "https://example.com/", "")

		suite.NoError(err)
		suite.False(res.Existing)
		suite.Equal("1A2B3C4D", res.ShortCode)
	})

	suite.Run("save error", func() {
		suite.open(entity.Registry{})
		suite.storeMock.On("Save", mock.Anything, mock.Anything).Once().Return(suite.errUnknown)

		res, err := suite.uc.ShortenURL(context.Background(), "https://example.com", "abc")

		suite.ErrorIs(err, suite.errUnknown)
		suite.Nil(res)

		_, ok := suite.stored("abc")
		suite.False(ok)
	})
}

func (suite *URLUseCaseTestSuite) TestResolveShortCode() {
	createdAt := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	suite.Run("url not found", func() {
		suite.open(entity.Registry{})

		url, err := suite.uc.ResolveShortCode(context.Background(), "abc")

		suite.ErrorIs(err, entity.ErrURLNotFound)
		suite.Nil(url)
		suite.storeMock.AssertNotCalled(suite.T(), "Save", mock.Anything, mock.Anything)
	})

	suite.Run("save error", func() {
		suite.open(entity.Registry{
			"abc": {ShortCode: "abc", OriginalURL: "https://example.com", CreatedAt: createdAt},
		})
		suite.storeMock.On("Save", mock.Anything, mock.Anything).Once().Return(suite.errUnknown)

		url, err := suite.uc.ResolveShortCode(context.Background(), "abc")

		suite.ErrorIs(err, suite.errUnknown)
		suite.Nil(url)

		stored, _ := suite.stored("abc")
		suite.Zero(stored.Clicks)
	})

	suite.Run("success", func() {
		suite.open(entity.Registry{
			"abc": {ShortCode: "abc", OriginalURL: "https://example.com", CreatedAt: createdAt, Clicks: 1},
		})
		suite.storeMock.On("Save", mock.Anything, mock.MatchedBy(func(reg entity.Registry) bool {
			return reg["abc"].Clicks == 2
		})).Once().Return(nil)

		url, err := suite.uc.ResolveShortCode(context.Background(), "abc")

		suite.NoError(err)
		suite.Equal(entity.URL{ShortCode: "abc", OriginalURL: "https://example.com", CreatedAt: createdAt, Clicks: 2}, *url)
	})
}

func (suite *URLUseCaseTestSuite) TestListURLs() {
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	t3 := t2.Add(time.Hour)

	suite.Run("empty", func() {
		suite.open(entity.Registry{})

		urls, err := suite.uc.ListURLs(context.Background())

		suite.NoError(err)
		suite.Empty(urls)
	})

	suite.Run("newest first", func() {
		suite.open(entity.Registry{
			"one":   {ShortCode: "one", OriginalURL: "https://example.com/1", CreatedAt: t1},
			"three": {ShortCode: "three", OriginalURL: "https://example.com/3", CreatedAt: t3, Clicks: 9},
			"two":   {ShortCode: "two", OriginalURL: "https://example.com/2", CreatedAt: t2},
			"bravo": {ShortCode: "bravo", OriginalURL: "https://example.com/b", CreatedAt: t2},
		})

		urls, err := suite.uc.ListURLs(context.Background())

		suite.NoError(err)
		suite.Len(urls, 4)
		suite.Equal([]string{"three", "bravo", "two", "one"}, []string{
			urls[0].ShortCode, urls[1].ShortCode, urls[2].ShortCode, urls[3].ShortCode,
		})
		suite.Equal("http://localhost:5000/three", urls[0].ShortURL)
		suite.Equal(int64(9), urls[0].Clicks)
	})
}

func (suite *URLUseCaseTestSuite) TestEndToEnd() {
	suite.Run("shorten, resolve three times, list", func() {
		suite.open(entity.Registry{})
		suite.storeMock.On("Save", mock.Anything, mock.Anything).Times(4).Return(nil)

		res, err := suite.uc.ShortenURL(context.Background(), "https://example.com", "")
		suite.Require().NoError(err)
		suite.Zero(res.Clicks)

		for i := 0; i < 3; i++ {
			url, err := suite.uc.ResolveShortCode(context.Background(), res.ShortCode)
			suite.Require().NoError(err)
			suite.Equal("https://example.com", url.OriginalURL)
			suite.Equal(res.CreatedAt, url.CreatedAt)
		}

		again, err := suite.uc.ShortenURL(context.Background(), "https://example.com", "")
		suite.Require().NoError(err)
		suite.True(again.Existing)
		suite.Equal(res.ShortCode, again.ShortCode)
		suite.Equal(res.CreatedAt, again.CreatedAt)

		urls, err := suite.uc.ListURLs(context.Background())
		suite.Require().NoError(err)
		suite.Len(urls, 1)
		suite.Equal(int64(3), urls[0].Clicks)
	})

	suite.Run("concurrent shortening keeps codes unique", func() {
		suite.open(entity.Registry{})
		suite.storeMock.On("Save", mock.Anything, mock.Anything).Return(nil)

		const n = 20
		codes := make([]string, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				res, err := suite.uc.ShortenURL(context.Background(), "https://example.com/"+string(rune('a'+i)), "")
				if err == nil {
					codes[i] = res.ShortCode
				}
			}(i)
		}
		wg.Wait()

		seen := make(map[string]bool)
		for _, code := range codes {
			suite.NotEmpty(code)
			suite.False(seen[code], code)
			seen[code] = true
		}
	})
}

func TestURLUseCase(t *testing.T) {
	suite.Run(t, new(URLUseCaseTestSuite))
}

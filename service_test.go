package folio_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/folio-sh/folio"
)

type SpyUserRepo struct {
	mock.Mock
}

func (s *SpyUserRepo) GetByEmail(ctx context.Context, email string) (folio.User, error) {
	args := s.Called(ctx, email)
	return args.Get(0).(folio.User), args.Error(1)
}

func (s *SpyUserRepo) Put(ctx context.Context, u folio.User) error {
	args := s.Called(ctx, u)
	return args.Error(0)
}

type SpyBookRepo struct {
	mock.Mock
}

func (s *SpyBookRepo) Get(ctx context.Context, bookID string) (folio.Book, error) {
	args := s.Called(ctx, bookID)
	return args.Get(0).(folio.Book), args.Error(1)
}

func (s *SpyBookRepo) Put(ctx context.Context, b folio.Book) error {
	args := s.Called(ctx, b)
	return args.Error(0)
}

func (s *SpyBookRepo) Delete(ctx context.Context, bookID string) error {
	args := s.Called(ctx, bookID)
	return args.Error(0)
}

func (s *SpyBookRepo) Scan(ctx context.Context, q folio.ScanQuery) (folio.ScanResult, error) {
	args := s.Called(ctx, q)
	return args.Get(0).(folio.ScanResult), args.Error(1)
}

type SpyObjectStore struct {
	mock.Mock
}

func (s *SpyObjectStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	args := s.Called(ctx, key, r, size, contentType)
	return args.Error(0)
}

func (s *SpyObjectStore) Stat(ctx context.Context, key string) error {
	args := s.Called(ctx, key)
	return args.Error(0)
}

func (s *SpyObjectStore) PresignGet(ctx context.Context, key string, opts folio.PresignOptions) (string, error) {
	args := s.Called(ctx, key, opts)
	return args.String(0), args.Error(1)
}

func (s *SpyObjectStore) Delete(ctx context.Context, key string) error {
	args := s.Called(ctx, key)
	return args.Error(0)
}

type stubHasher struct{}

func (stubHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }

func (stubHasher) Verify(password, hash string) bool { return hash == "hashed:"+password }

type stubIssuer struct{}

func (stubIssuer) Issue(u folio.User) (string, error) { return "token-" + u.UserID, nil }

func newLibraryService(t *testing.T, cfg folio.ServiceConfig) (*folio.LibraryService, *SpyUserRepo, *SpyBookRepo, *SpyObjectStore) {
	t.Helper()
	users := new(SpyUserRepo)
	books := new(SpyBookRepo)
	objects := new(SpyObjectStore)
	s, err := folio.NewLibraryService(users, books, objects, stubHasher{}, stubIssuer{}, cfg)
	require.NoError(t, err, "new library service")
	return s, users, books, objects
}

func TestLibraryService_Signup(t *testing.T) {
	t.Run("creates user with normalized email", func(t *testing.T) {
		service, users, _, _ := newLibraryService(t, folio.ServiceConfig{})
		ctx := context.Background()

		users.On("GetByEmail", ctx, "reader@example.com").Return(folio.User{}, folio.ErrNotFound)
		users.On("Put", ctx, mock.MatchedBy(func(u folio.User) bool {
			return u.Email == "reader@example.com" &&
				u.Name == "Reader" &&
				u.Role == folio.RoleUser &&
				u.PasswordHash == "hashed:hunter2!" &&
				u.UserID != "" &&
				u.CreatedAt != ""
		})).Return(nil)

		u, token, err := service.Signup(ctx, folio.SignupInput{
			Email:    "  Reader@Example.COM ",
			Name:     "Reader",
			Password: "hunter2!",
		})
		assert.NoError(t, err)
		assert.Equal(t, "reader@example.com", u.Email)
		assert.Equal(t, "token-"+u.UserID, token)

		_, parseErr := time.Parse(time.RFC3339, u.CreatedAt)
		assert.NoError(t, parseErr, "createdAt is RFC 3339")

		users.AssertExpectations(t)
	})

	t.Run("admin email gets admin role", func(t *testing.T) {
		service, users, _, _ := newLibraryService(t, folio.ServiceConfig{AdminEmail: "Boss@Example.com"})
		ctx := context.Background()

		users.On("GetByEmail", ctx, "boss@example.com").Return(folio.User{}, folio.ErrNotFound)
		users.On("Put", ctx, mock.MatchedBy(func(u folio.User) bool {
			return u.Role == folio.RoleAdmin
		})).Return(nil)

		u, _, err := service.Signup(ctx, folio.SignupInput{
			Email:    "boss@example.com",
			Name:     "Boss",
			Password: "password1",
		})
		assert.NoError(t, err)
		assert.Equal(t, folio.RoleAdmin, u.Role)

		users.AssertExpectations(t)
	})

	t.Run("existing email conflicts", func(t *testing.T) {
		service, users, _, _ := newLibraryService(t, folio.ServiceConfig{})
		ctx := context.Background()

		users.On("GetByEmail", ctx, "reader@example.com").Return(folio.User{Email: "reader@example.com"}, nil)

		_, _, err := service.Signup(ctx, folio.SignupInput{
			Email:    "reader@example.com",
			Name:     "Reader",
			Password: "hunter2!",
		})
		assert.ErrorIs(t, err, folio.ErrConflict)

		users.AssertNotCalled(t, "Put")
	})

	t.Run("lookup error propagates without conflict", func(t *testing.T) {
		service, users, _, _ := newLibraryService(t, folio.ServiceConfig{})
		ctx := context.Background()

		storeErr := errors.New("store down")
		users.On("GetByEmail", ctx, "reader@example.com").Return(folio.User{}, storeErr)

		_, _, err := service.Signup(ctx, folio.SignupInput{
			Email:    "reader@example.com",
			Name:     "Reader",
			Password: "hunter2!",
		})
		assert.Error(t, err)
		assert.NotErrorIs(t, err, folio.ErrConflict)

		users.AssertNotCalled(t, "Put")
	})
}

func TestLibraryService_Login(t *testing.T) {
	hashed := func(password string) string { return "hashed:" + password }

	t.Run("success", func(t *testing.T) {
		service, users, _, _ := newLibraryService(t, folio.ServiceConfig{})
		ctx := context.Background()

		stored := folio.User{UserID: "u-1", Email: "reader@example.com", PasswordHash: hashed("hunter2!")}
		users.On("GetByEmail", ctx, "reader@example.com").Return(stored, nil)

		u, token, err := service.Login(ctx, "Reader@Example.com", "hunter2!")
		assert.NoError(t, err)
		assert.Equal(t, "u-1", u.UserID)
		assert.Equal(t, "token-u-1", token)
	})

	t.Run("unknown email and wrong password are indistinguishable", func(t *testing.T) {
		service, users, _, _ := newLibraryService(t, folio.ServiceConfig{})
		ctx := context.Background()

		users.On("GetByEmail", ctx, "ghost@example.com").Return(folio.User{}, folio.ErrNotFound)
		users.On("GetByEmail", ctx, "reader@example.com").Return(
			folio.User{Email: "reader@example.com", PasswordHash: hashed("hunter2!")}, nil)

		_, _, unknownErr := service.Login(ctx, "ghost@example.com", "whatever1")
		_, _, wrongErr := service.Login(ctx, "reader@example.com", "not-the-password")

		assert.ErrorIs(t, unknownErr, folio.ErrUnauthorized)
		assert.ErrorIs(t, wrongErr, folio.ErrUnauthorized)
	})
}

func TestLibraryService_Upload(t *testing.T) {
	input := func(data []byte) folio.UploadInput {
		return folio.UploadInput{
			Title:       "Dune",
			Author:      "Frank Herbert",
			Genre:       "Sci-Fi",
			FileName:    "dune (1965).pdf",
			ContentType: "application/pdf",
			Data:        data,
		}
	}

	t.Run("stores blob then record", func(t *testing.T) {
		service, _, books, objects := newLibraryService(t, folio.ServiceConfig{})
		ctx := context.Background()

		data := []byte("pdf bytes")
		objects.On("Put", ctx, mock.MatchedBy(func(key string) bool {
			return strings.HasPrefix(key, "books/") && strings.HasSuffix(key, "/dune__1965_.pdf")
		}), mock.Anything, int64(len(data)), "application/pdf").Return(nil)
		books.On("Put", ctx, mock.MatchedBy(func(b folio.Book) bool {
			return b.Title == "Dune" &&
				b.OriginalFileName == "dune (1965).pdf" &&
				b.S3Key == "books/"+b.BookID+"/dune__1965_.pdf"
		})).Return(nil)

		b, err := service.Upload(ctx, input(data))
		assert.NoError(t, err)
		assert.NotEmpty(t, b.BookID)
		assert.NotEmpty(t, b.UploadedAt)

		objects.AssertExpectations(t)
		books.AssertExpectations(t)
	})

	t.Run("empty payload rejected", func(t *testing.T) {
		service, _, books, objects := newLibraryService(t, folio.ServiceConfig{})

		_, err := service.Upload(context.Background(), input(nil))
		assert.ErrorIs(t, err, folio.ErrInvalidInput)

		objects.AssertNotCalled(t, "Put")
		books.AssertNotCalled(t, "Put")
	})

	t.Run("limit is inclusive", func(t *testing.T) {
		service, _, books, objects := newLibraryService(t, folio.ServiceConfig{MaxUploadBytes: 8})
		ctx := context.Background()

		objects.On("Put", ctx, mock.Anything, mock.Anything, int64(8), "application/pdf").Return(nil)
		books.On("Put", ctx, mock.Anything).Return(nil)

		_, err := service.Upload(ctx, input([]byte("12345678")))
		assert.NoError(t, err)

		_, err = service.Upload(ctx, input([]byte("123456789")))
		assert.ErrorIs(t, err, folio.ErrTooLarge)
	})

	t.Run("record error leaves orphan blob behind", func(t *testing.T) {
		service, _, books, objects := newLibraryService(t, folio.ServiceConfig{})
		ctx := context.Background()

		storeErr := errors.New("table write failed")
		objects.On("Put", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
		books.On("Put", ctx, mock.Anything).Return(storeErr)

		_, err := service.Upload(ctx, input([]byte("pdf bytes")))
		assert.Error(t, err)

		// No compensating delete: the blob stays.
		objects.AssertNotCalled(t, "Delete")
	})

	t.Run("blob error skips record write", func(t *testing.T) {
		service, _, books, objects := newLibraryService(t, folio.ServiceConfig{})
		ctx := context.Background()

		objects.On("Put", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(errors.New("storage down"))

		_, err := service.Upload(ctx, input([]byte("pdf bytes")))
		assert.Error(t, err)

		books.AssertNotCalled(t, "Put")
	})
}

func TestLibraryService_List(t *testing.T) {
	page := func(lastKey string, items ...folio.Book) folio.ScanResult {
		return folio.ScanResult{Items: items, LastKey: lastKey}
	}

	t.Run("clamps limit to [1,100]", func(t *testing.T) {
		service, _, books, _ := newLibraryService(t, folio.ServiceConfig{})
		ctx := context.Background()

		// Zero means no limit was supplied and takes the default page
		// size; a negative value clamps to a one-item page.
		books.On("Scan", ctx, folio.ScanQuery{Limit: 100}).Return(page(""), nil).Twice()
		books.On("Scan", ctx, folio.ScanQuery{Limit: 1}).Return(page(""), nil).Once()

		_, err := service.List(ctx, folio.ListQuery{Limit: 0})
		assert.NoError(t, err)
		_, err = service.List(ctx, folio.ListQuery{Limit: 9000})
		assert.NoError(t, err)
		_, err = service.List(ctx, folio.ListQuery{Limit: -5})
		assert.NoError(t, err)

		books.AssertExpectations(t)
	})

	t.Run("filters apply to the fetched page only", func(t *testing.T) {
		service, _, books, _ := newLibraryService(t, folio.ServiceConfig{})
		ctx := context.Background()

		books.On("Scan", ctx, folio.ScanQuery{Limit: 100}).Return(page(`{"bookId":"b-3"}`,
			folio.Book{BookID: "b-1", Title: "Dune", Author: "Frank Herbert", Genre: "Sci-Fi", UploadedAt: "2024-01-01T00:00:00Z"},
			folio.Book{BookID: "b-2", Title: "Emma", Author: "Jane Austen", Genre: "Romance", UploadedAt: "2024-02-01T00:00:00Z"},
			folio.Book{BookID: "b-3", Title: "Dune Messiah", Author: "Frank Herbert", Genre: "Sci-Fi", UploadedAt: "2024-03-01T00:00:00Z"},
		), nil)

		result, err := service.List(ctx, folio.ListQuery{Q: "dune", Genre: "sci-fi"})
		assert.NoError(t, err)
		assert.Len(t, result.Items, 2)

		// A page can shrink under the filter, but the page token still
		// points at the next unfiltered page.
		require.NotNil(t, result.LastKey)
		assert.Equal(t, `{"bookId":"b-3"}`, *result.LastKey)
	})

	t.Run("matches title author and genre case-insensitively", func(t *testing.T) {
		service, _, books, _ := newLibraryService(t, folio.ServiceConfig{})
		ctx := context.Background()

		books.On("Scan", ctx, mock.Anything).Return(page("",
			folio.Book{BookID: "b-1", Title: "Emma", Author: "Jane Austen", UploadedAt: "2024-01-01T00:00:00Z"},
			folio.Book{BookID: "b-2", Title: "Persuasion", Author: "Jane Austen", UploadedAt: "2024-02-01T00:00:00Z"},
		), nil)

		result, err := service.List(ctx, folio.ListQuery{Q: "AUSTEN"})
		assert.NoError(t, err)
		assert.Len(t, result.Items, 2)
	})

	t.Run("sorts newest first", func(t *testing.T) {
		service, _, books, _ := newLibraryService(t, folio.ServiceConfig{})
		ctx := context.Background()

		books.On("Scan", ctx, mock.Anything).Return(page("",
			folio.Book{BookID: "b-1", UploadedAt: "2024-01-01T00:00:00Z"},
			folio.Book{BookID: "b-3", UploadedAt: "2024-03-01T00:00:00Z"},
			folio.Book{BookID: "b-2", UploadedAt: "2024-02-01T00:00:00Z"},
		), nil)

		result, err := service.List(ctx, folio.ListQuery{})
		assert.NoError(t, err)
		require.Len(t, result.Items, 3)
		assert.Equal(t, "b-3", result.Items[0].BookID)
		assert.Equal(t, "b-2", result.Items[1].BookID)
		assert.Equal(t, "b-1", result.Items[2].BookID)
	})

	t.Run("nil lastKey at end of scan", func(t *testing.T) {
		service, _, books, _ := newLibraryService(t, folio.ServiceConfig{})
		ctx := context.Background()

		books.On("Scan", ctx, mock.Anything).Return(page(""), nil)

		result, err := service.List(ctx, folio.ListQuery{})
		assert.NoError(t, err)
		assert.Nil(t, result.LastKey)
	})

	t.Run("passes lastKey through verbatim", func(t *testing.T) {
		service, _, books, _ := newLibraryService(t, folio.ServiceConfig{})
		ctx := context.Background()

		token := `{"bookId":"b-7"}`
		books.On("Scan", ctx, folio.ScanQuery{Limit: 100, StartKey: token}).Return(page(""), nil)

		_, err := service.List(ctx, folio.ListQuery{LastKey: token})
		assert.NoError(t, err)

		books.AssertExpectations(t)
	})
}

func TestLibraryService_Get(t *testing.T) {
	stored := folio.Book{
		BookID:           "b-1",
		Title:            "Dune",
		S3Key:            "books/b-1/dune.pdf",
		ContentType:      "application/octet-stream",
		OriginalFileName: "dune.pdf",
	}

	t.Run("presigns with derived content type", func(t *testing.T) {
		service, _, books, objects := newLibraryService(t, folio.ServiceConfig{})
		ctx := context.Background()

		books.On("Get", ctx, "b-1").Return(stored, nil)
		objects.On("Stat", ctx, "books/b-1/dune.pdf").Return(nil)
		objects.On("PresignGet", ctx, "books/b-1/dune.pdf", folio.PresignOptions{
			Expiry:      folio.DefaultPresignExpiry,
			ContentType: "application/pdf",
			Disposition: "attachment",
			FileName:    "dune.pdf",
		}).Return("https://store.example/signed", nil)

		access, err := service.Get(ctx, "b-1", "")
		assert.NoError(t, err)
		assert.Equal(t, "https://store.example/signed", access.URL)
		assert.Equal(t, 300, access.ExpiresInSeconds)
		assert.Equal(t, stored, access.Item)

		objects.AssertExpectations(t)
	})

	t.Run("inline disposition honored, anything else forced to attachment", func(t *testing.T) {
		service, _, books, objects := newLibraryService(t, folio.ServiceConfig{})
		ctx := context.Background()

		books.On("Get", ctx, "b-1").Return(stored, nil)
		objects.On("Stat", ctx, mock.Anything).Return(nil)
		objects.On("PresignGet", ctx, mock.Anything, mock.MatchedBy(func(opts folio.PresignOptions) bool {
			return opts.Disposition == "inline"
		})).Return("https://store.example/signed", nil).Twice()
		objects.On("PresignGet", ctx, mock.Anything, mock.MatchedBy(func(opts folio.PresignOptions) bool {
			return opts.Disposition == "attachment"
		})).Return("https://store.example/signed", nil).Once()

		_, err := service.Get(ctx, "b-1", "inline")
		assert.NoError(t, err)
		// Case and surrounding whitespace are ignored.
		_, err = service.Get(ctx, "b-1", " Inline ")
		assert.NoError(t, err)
		_, err = service.Get(ctx, "b-1", "download-please")
		assert.NoError(t, err)

		objects.AssertExpectations(t)
	})

	t.Run("missing record", func(t *testing.T) {
		service, _, books, _ := newLibraryService(t, folio.ServiceConfig{})
		ctx := context.Background()

		books.On("Get", ctx, "nope").Return(folio.Book{}, folio.ErrNotFound)

		_, err := service.Get(ctx, "nope", "")
		assert.ErrorIs(t, err, folio.ErrNotFound)
	})

	t.Run("missing blob maps to gone", func(t *testing.T) {
		service, _, books, objects := newLibraryService(t, folio.ServiceConfig{})
		ctx := context.Background()

		books.On("Get", ctx, "b-1").Return(stored, nil)
		objects.On("Stat", ctx, "books/b-1/dune.pdf").Return(folio.ErrNotFound)

		_, err := service.Get(ctx, "b-1", "")
		assert.ErrorIs(t, err, folio.ErrGone)
		assert.NotErrorIs(t, err, folio.ErrNotFound)

		objects.AssertNotCalled(t, "PresignGet")
	})
}

func TestLibraryService_Delete(t *testing.T) {
	stored := folio.Book{BookID: "b-1", S3Key: "books/b-1/dune.pdf"}

	t.Run("deletes blob then record", func(t *testing.T) {
		service, _, books, objects := newLibraryService(t, folio.ServiceConfig{})
		ctx := context.Background()

		books.On("Get", ctx, "b-1").Return(stored, nil)
		objects.On("Delete", ctx, "books/b-1/dune.pdf").Return(nil)
		books.On("Delete", ctx, "b-1").Return(nil)

		err := service.Delete(ctx, "b-1")
		assert.NoError(t, err)

		objects.AssertExpectations(t)
		books.AssertExpectations(t)
	})

	t.Run("missing record", func(t *testing.T) {
		service, _, books, objects := newLibraryService(t, folio.ServiceConfig{})
		ctx := context.Background()

		books.On("Get", ctx, "nope").Return(folio.Book{}, folio.ErrNotFound)

		err := service.Delete(ctx, "nope")
		assert.ErrorIs(t, err, folio.ErrNotFound)

		objects.AssertNotCalled(t, "Delete")
	})

	t.Run("blob failure leaves the record intact", func(t *testing.T) {
		service, _, books, objects := newLibraryService(t, folio.ServiceConfig{})
		ctx := context.Background()

		books.On("Get", ctx, "b-1").Return(stored, nil)
		objects.On("Delete", ctx, "books/b-1/dune.pdf").Return(errors.New("storage down"))

		err := service.Delete(ctx, "b-1")
		assert.Error(t, err)

		books.AssertNotCalled(t, "Delete")
	})
}

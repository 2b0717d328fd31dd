package e2e_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folio-sh/folio"
	"github.com/folio-sh/folio/auth"
	"github.com/folio-sh/folio/database"
	foliohttp "github.com/folio-sh/folio/http"
	"github.com/folio-sh/folio/objectstore"
)

const adminEmail = "admin@example.com"

// startServer wires a full server against containerized Postgres and
// MinIO and returns its base URL.
func startServer(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	users, books, closeDB, err := database.Connect(ctx, database.Config{
		Type:   "postgres",
		DSN:    getSharedPostgres(t),
		Tables: folio.Tables{Users: "e2e_users", Books: "e2e_books"},
	})
	require.NoError(t, err)
	t.Cleanup(closeDB)

	objects, err := objectstore.NewMinioStore(objectstore.Config{
		Endpoint:  getSharedMinio(t),
		AccessKey: minioAccessKey,
		SecretKey: minioSecretKey,
		Bucket:    "e2e-books",
	})
	require.NoError(t, err)

	tokens, err := auth.NewTokenService("e2e-secret", time.Hour)
	require.NoError(t, err)

	service, err := folio.NewLibraryService(users, books, objects, auth.NewHasher(), tokens, folio.ServiceConfig{
		AdminEmail: adminEmail,
	})
	require.NoError(t, err)

	handler := foliohttp.NewHandler(&foliohttp.HandlerConfig{Verifier: tokens}, service)
	srv := httptest.NewServer(handler.Router())
	t.Cleanup(srv.Close)

	return srv.URL
}

type client struct {
	t       *testing.T
	baseURL string
	token   string
}

func (c *client) do(method, path string, body any) (*http.Response, []byte) {
	c.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	require.NoError(c.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp, raw
}

func (c *client) signup(email, name, password string) map[string]json.RawMessage {
	c.t.Helper()

	resp, raw := c.do("POST", "/auth/signup", map[string]string{
		"email": email, "name": name, "password": password,
	})
	require.Equal(c.t, http.StatusCreated, resp.StatusCode, "signup: %s", raw)

	var body map[string]json.RawMessage
	require.NoError(c.t, json.Unmarshal(raw, &body))
	require.NoError(c.t, json.Unmarshal(body["token"], &c.token))
	return body
}

func TestE2E_LibraryFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	baseURL := startServer(t)

	admin := &client{t: t, baseURL: baseURL}
	reader := &client{t: t, baseURL: baseURL}

	t.Run("signup and roles", func(t *testing.T) {
		body := admin.signup(adminEmail, "Admin", "admin-pass-1")
		var adminUser folio.User
		require.NoError(t, json.Unmarshal(body["user"], &adminUser))
		assert.Equal(t, folio.RoleAdmin, adminUser.Role)

		body = reader.signup("reader@example.com", "Reader", "reader-pass-1")
		var readerUser folio.User
		require.NoError(t, json.Unmarshal(body["user"], &readerUser))
		assert.Equal(t, folio.RoleUser, readerUser.Role)

		resp, _ := reader.do("POST", "/auth/signup", map[string]string{
			"email": "reader@example.com", "name": "Again", "password": "reader-pass-1",
		})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("login and whoami", func(t *testing.T) {
		resp, raw := reader.do("POST", "/auth/login", map[string]string{
			"email": "Reader@Example.COM", "password": "reader-pass-1",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode, "login: %s", raw)

		resp, raw = reader.do("GET", "/auth/me", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, string(raw), "reader@example.com")

		resp, _ = reader.do("POST", "/auth/login", map[string]string{
			"email": "reader@example.com", "password": "wrong-pass",
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	var bookID string

	t.Run("upload", func(t *testing.T) {
		resp, raw := reader.do("POST", "/books", map[string]string{
			"title":       "Dune",
			"author":      "Frank Herbert",
			"genre":       "Sci-Fi",
			"fileName":    "dune (1965).pdf",
			"contentType": "application/octet-stream",
			"fileBase64":  base64.StdEncoding.EncodeToString([]byte("%PDF-1.4 fake body")),
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode, "upload: %s", raw)

		var created folio.Book
		require.NoError(t, json.Unmarshal(raw, &created))
		bookID = created.BookID
		assert.NotEmpty(t, bookID)
		assert.Equal(t, fmt.Sprintf("books/%s/dune__1965_.pdf", bookID), created.S3Key)
	})

	t.Run("list and filter", func(t *testing.T) {
		resp, raw := reader.do("GET", "/books?q=dune", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var result folio.ListResult
		require.NoError(t, json.Unmarshal(raw, &result))
		require.Len(t, result.Items, 1)
		assert.Equal(t, bookID, result.Items[0].BookID)

		resp, raw = reader.do("GET", "/books?genre=romance", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.NoError(t, json.Unmarshal(raw, &result))
		assert.Empty(t, result.Items)
	})

	t.Run("get streams through the presigned url", func(t *testing.T) {
		resp, raw := reader.do("GET", "/books/"+bookID, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, "get: %s", raw)

		var access folio.BookAccess
		require.NoError(t, json.Unmarshal(raw, &access))
		assert.Equal(t, 300, access.ExpiresInSeconds)

		blob, err := http.Get(access.URL)
		require.NoError(t, err)
		defer blob.Body.Close()

		require.Equal(t, http.StatusOK, blob.StatusCode)
		// .pdf extension overrides the stored octet-stream type.
		assert.Equal(t, "application/pdf", blob.Header.Get("Content-Type"))
		content, err := io.ReadAll(blob.Body)
		require.NoError(t, err)
		assert.Equal(t, "%PDF-1.4 fake body", string(content))
	})

	t.Run("delete requires admin", func(t *testing.T) {
		resp, _ := reader.do("DELETE", "/books/"+bookID, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		resp, _ = admin.do("DELETE", "/books/"+bookID, nil)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp, _ = reader.do("GET", "/books/"+bookID, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		resp, _ = admin.do("DELETE", "/books/"+bookID, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

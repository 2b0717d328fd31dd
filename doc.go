// Package folio implements a small e-book library: user accounts with
// bearer-token sessions, PDF/EPUB uploads into an object store, and
// time-limited retrieval URLs.
//
// # Key Components
//
//   - LibraryService: the core operations (signup, login, upload, list,
//     get, delete) over injected store clients
//   - UserRepo, BookRepo: interfaces for record persistence
//     (PostgreSQL, SQLite)
//   - ObjectStore: interface for blob storage (S3-compatible via
//     minio-go)
//   - PasswordHasher, TokenIssuer: credential providers (bcrypt, HS256
//     JWT)
//
// # Storage Model
//
// Books live in two places: a metadata record keyed by bookId and a
// blob under books/{bookId}/{fileName}. Writes go blob-first, deletes
// go blob-first too; neither pair is transactional, and the service
// documents which side can be left behind when the second step fails.
//
// # Example Usage
//
//	service, err := folio.NewLibraryService(users, books, objects, hasher, tokens, folio.ServiceConfig{
//	    AdminEmail: "admin@example.com",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	book, err := service.Upload(ctx, folio.UploadInput{...})
//	access, err := service.Get(ctx, book.BookID, "inline")
//
// See the http package for the REST API and the database package for
// the record backends.
package folio

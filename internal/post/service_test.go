package post

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/hedeshawqiomer/my-app-backend/internal/apperr"
	"github.com/hedeshawqiomer/my-app-backend/internal/auth"
	"github.com/hedeshawqiomer/my-app-backend/internal/geo"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
)

var (
	anonymous = auth.Identity{}
	super     = auth.Identity{ID: "u1", Email: "s@example.com", Role: auth.RoleSuper}
	moderator = auth.Identity{ID: "u2", Email: "m@example.com", Role: auth.RoleModerator}
)

var errDB = errors.New("db down")

type fakeStore struct {
	saved     []string
	removed   []string
	saveErr   error
	removeErr error
}

func (f *fakeStore) Save(_ context.Context, filename string, _ io.Reader) (string, error) {
	if f.saveErr != nil {
		return "", f.saveErr
	}
	locator := fmt.Sprintf("/uploads/%d-%s", len(f.saved), filename)
	f.saved = append(f.saved, locator)
	return locator, nil
}

func (f *fakeStore) Remove(_ context.Context, locator string) error {
	f.removed = append(f.removed, locator)
	return f.removeErr
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func uploads(n int) []ImageUpload {
	ups := make([]ImageUpload, n)
	for i := range ups {
		ups[i] = ImageUpload{Filename: fmt.Sprintf("photo%d.jpg", i), Reader: strings.NewReader("bytes")}
	}
	return ups
}

func postRowColumns() []string {
	return []string{"id", "status", "name", "email", "city", "district", "location", "created_at", "accepted_at", "updated_at"}
}

func TestCreatePost(t *testing.T) {
	mock := newMock(t)
	files := &fakeStore{}
	svc := NewService(mock, files, geo.DefaultTaxonomy())

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO posts`).
		WithArgs(pgxmock.AnyArg(), StatusPending, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), "36.1909,44.0069").
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	for i := 0; i < 4; i++ {
		mock.ExpectExec(`INSERT INTO images`).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), i).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCommit()

	created, err := svc.Create(context.Background(), anonymous, CreateInput{
		Name:     "Hede",
		Email:    "hede@example.com",
		City:     "Erbil",
		District: "Soran",
		Location: "36.1909, 44.0069",
	}, uploads(4))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Status != StatusPending {
		t.Fatalf("expected pending status, got %s", created.Status)
	}
	if created.Location != "36.1909,44.0069" {
		t.Fatalf("expected canonical location, got %s", created.Location)
	}
	if len(created.Images) != 4 {
		t.Fatalf("expected 4 images, got %d", len(created.Images))
	}
	seen := map[string]bool{}
	for i, img := range created.Images {
		if img.Order != i {
			t.Fatalf("image %d has order %d", i, img.Order)
		}
		if seen[img.URL] {
			t.Fatalf("duplicate locator %s", img.URL)
		}
		seen[img.URL] = true
	}
	if len(files.saved) != 4 {
		t.Fatalf("expected 4 stored files, got %d", len(files.saved))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreatePostTooFewImages(t *testing.T) {
	mock := newMock(t)
	files := &fakeStore{}
	svc := NewService(mock, files, geo.DefaultTaxonomy())

	_, err := svc.Create(context.Background(), anonymous, CreateInput{Location: "1,1"}, uploads(3))
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(files.saved) != 0 {
		t.Fatalf("no file may be stored on a rejected create")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("no SQL may run on a rejected create: %v", err)
	}
}

func TestCreatePostValidationBeforeStorage(t *testing.T) {
	mock := newMock(t)
	files := &fakeStore{}
	svc := NewService(mock, files, geo.DefaultTaxonomy())

	cases := []CreateInput{
		{City: "Atlantis", Location: "1,1"},
		{City: "Erbil", District: "Zakho", Location: "1,1"},
		{City: "Erbil", Location: "91,0"},
		{City: "Erbil", Location: "abc"},
	}
	for _, input := range cases {
		if _, err := svc.Create(context.Background(), anonymous, input, uploads(4)); apperr.KindOf(err) != apperr.KindValidation {
			t.Fatalf("input %+v: expected validation error, got %v", input, err)
		}
	}
	if len(files.saved) != 0 {
		t.Fatalf("no file may be stored on a rejected create")
	}
}

func TestCreatePostInsertErrorDiscardsFiles(t *testing.T) {
	mock := newMock(t)
	files := &fakeStore{}
	svc := NewService(mock, files, geo.DefaultTaxonomy())

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO posts`).
		WithArgs(pgxmock.AnyArg(), StatusPending, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), "1,1").
		WillReturnError(errDB)
	mock.ExpectRollback()

	_, err := svc.Create(context.Background(), anonymous, CreateInput{Location: "1,1"}, uploads(4))
	if apperr.KindOf(err) != apperr.KindUnavailable {
		t.Fatalf("expected unavailable error, got %v", err)
	}
	if len(files.removed) != 4 {
		t.Fatalf("expected stored files to be discarded, removed %d", len(files.removed))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAcceptPost(t *testing.T) {
	mock := newMock(t)
	svc := NewService(mock, &fakeStore{}, geo.DefaultTaxonomy())

	now := time.Now()
	acceptedAt := now
	mock.ExpectQuery(`UPDATE posts SET status=\$2, accepted_at=now\(\)`).
		WithArgs("post-1", StatusAccepted, StatusPending).
		WillReturnRows(pgxmock.NewRows(postRowColumns()).
			AddRow("post-1", StatusAccepted, "", "", "Erbil", "", "36.1,44.0", now, &acceptedAt, now))
	mock.ExpectQuery(`SELECT id, post_id, url, ord FROM images`).
		WithArgs("post-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "post_id", "url", "ord"}).
			AddRow("img-1", "post-1", "/uploads/a.jpg", 0))

	accepted, err := svc.Accept(context.Background(), moderator, "post-1")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if accepted.Status != StatusAccepted || accepted.AcceptedAt == nil {
		t.Fatalf("expected accepted post with timestamp, got %+v", accepted)
	}
	if len(accepted.Images) != 1 {
		t.Fatalf("expected attached images")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAcceptAlreadyAccepted(t *testing.T) {
	mock := newMock(t)
	svc := NewService(mock, &fakeStore{}, geo.DefaultTaxonomy())

	// the conditional update matches nothing; the probe reveals the conflict
	mock.ExpectQuery(`UPDATE posts SET status=\$2, accepted_at=now\(\)`).
		WithArgs("post-1", StatusAccepted, StatusPending).
		WillReturnRows(pgxmock.NewRows(postRowColumns()))
	mock.ExpectQuery(`SELECT status FROM posts`).
		WithArgs("post-1").
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow(StatusAccepted))

	_, err := svc.Accept(context.Background(), super, "post-1")
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestAcceptNotFound(t *testing.T) {
	mock := newMock(t)
	svc := NewService(mock, &fakeStore{}, geo.DefaultTaxonomy())

	mock.ExpectQuery(`UPDATE posts SET status=\$2, accepted_at=now\(\)`).
		WithArgs("missing", StatusAccepted, StatusPending).
		WillReturnRows(pgxmock.NewRows(postRowColumns()))
	mock.ExpectQuery(`SELECT status FROM posts`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := svc.Accept(context.Background(), super, "missing")
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAcceptUnauthenticated(t *testing.T) {
	svc := NewService(newMock(t), &fakeStore{}, geo.DefaultTaxonomy())
	_, err := svc.Accept(context.Background(), anonymous, "post-1")
	if apperr.KindOf(err) != apperr.KindUnauthenticated {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}

func TestListAttachesImages(t *testing.T) {
	mock := newMock(t)
	svc := NewService(mock, &fakeStore{}, geo.DefaultTaxonomy())

	now := time.Now()
	earlier := now.Add(-time.Hour)
	acceptedAt := now
	mock.ExpectQuery(`SELECT (.+) FROM posts`).
		WithArgs(StatusAccepted, "").
		WillReturnRows(pgxmock.NewRows(postRowColumns()).
			AddRow("post-1", StatusAccepted, "", "", "Erbil", "", "1,1", earlier, &acceptedAt, now).
			AddRow("post-2", StatusAccepted, "", "", "Duhok", "", "2,2", now, &acceptedAt, now))
	mock.ExpectQuery(`SELECT id, post_id, url, ord FROM images`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "post_id", "url", "ord"}).
			AddRow("img-1", "post-1", "/uploads/a.jpg", 0).
			AddRow("img-2", "post-2", "/uploads/b.jpg", 0).
			AddRow("img-3", "post-1", "/uploads/c.jpg", 1))

	posts, err := svc.List(context.Background(), super, ListFilter{Status: StatusAccepted})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("expected 2 posts, got %d", len(posts))
	}
	if len(posts[0].Images) != 2 || len(posts[1].Images) != 1 {
		t.Fatalf("images attached to wrong posts: %d/%d", len(posts[0].Images), len(posts[1].Images))
	}
}

func TestListOrdering(t *testing.T) {
	mock := newMock(t)
	svc := NewService(mock, &fakeStore{}, geo.DefaultTaxonomy())

	base := time.Now().Add(-24 * time.Hour)
	created := func(h int) time.Time { return base.Add(time.Duration(h) * time.Hour) }
	accepted := func(h int) *time.Time {
		ts := base.Add(time.Duration(h) * time.Hour)
		return &ts
	}

	// Acceptance order deliberately disagrees with creation order: the oldest
	// post was accepted last and must list first; the never-accepted post
	// sorts after every accepted one.
	mock.ExpectQuery(`SELECT (.+) FROM posts(.+)ORDER BY accepted_at DESC NULLS LAST,\s*created_at DESC`).
		WithArgs("", "").
		WillReturnRows(pgxmock.NewRows(postRowColumns()).
			AddRow("oldest-accepted-last", StatusAccepted, "", "", "Erbil", "", "1,1", created(1), accepted(12), created(1)).
			AddRow("newest-accepted-first", StatusAccepted, "", "", "Erbil", "", "1,1", created(3), accepted(11), created(3)).
			AddRow("middle", StatusAccepted, "", "", "Erbil", "", "1,1", created(2), accepted(10), created(2)).
			AddRow("never-accepted", StatusPending, "", "", "Erbil", "", "1,1", created(4), (*time.Time)(nil), created(4)))
	mock.ExpectQuery(`SELECT id, post_id, url, ord FROM images`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "post_id", "url", "ord"}))

	posts, err := svc.List(context.Background(), super, ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"oldest-accepted-last", "newest-accepted-first", "middle", "never-accepted"}
	if len(posts) != len(want) {
		t.Fatalf("expected %d posts, got %d", len(want), len(posts))
	}
	for i, id := range want {
		if posts[i].ID != id {
			t.Fatalf("position %d: got %s, want %s", i, posts[i].ID, id)
		}
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListModeratorCannotSeeAccepted(t *testing.T) {
	svc := NewService(newMock(t), &fakeStore{}, geo.DefaultTaxonomy())
	_, err := svc.List(context.Background(), moderator, ListFilter{Status: StatusAccepted})
	if apperr.KindOf(err) != apperr.KindForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestListAnonymousDenied(t *testing.T) {
	svc := NewService(newMock(t), &fakeStore{}, geo.DefaultTaxonomy())
	_, err := svc.List(context.Background(), anonymous, ListFilter{})
	if apperr.KindOf(err) != apperr.KindUnauthenticated {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}

func TestListPublicFiltersAccepted(t *testing.T) {
	mock := newMock(t)
	svc := NewService(mock, &fakeStore{}, geo.DefaultTaxonomy())

	mock.ExpectQuery(`SELECT (.+) FROM posts`).
		WithArgs(StatusAccepted, "Erbil").
		WillReturnRows(pgxmock.NewRows(postRowColumns()))

	posts, err := svc.ListPublic(context.Background(), "Erbil")
	if err != nil {
		t.Fatalf("list public: %v", err)
	}
	if len(posts) != 0 {
		t.Fatalf("expected empty result")
	}
}

func TestUpdateEmailOnly(t *testing.T) {
	mock := newMock(t)
	svc := NewService(mock, &fakeStore{}, geo.DefaultTaxonomy())

	now := time.Now()
	later := now.Add(time.Minute)
	mock.ExpectQuery(`SELECT (.+) FROM posts WHERE id=\$1`).
		WithArgs("post-1").
		WillReturnRows(pgxmock.NewRows(postRowColumns()).
			AddRow("post-1", StatusPending, "Hede", "old@example.com", "Erbil", "Soran", "36.1,44.0", now, (*time.Time)(nil), now))
	mock.ExpectQuery(`UPDATE posts SET name=\$2, email=\$3`).
		WithArgs("post-1", ptr("Hede"), ptr("new@example.com"), ptr("Erbil"), ptr("Soran"), ptr("36.1,44.0")).
		WillReturnRows(pgxmock.NewRows(postRowColumns()).
			AddRow("post-1", StatusPending, "Hede", "new@example.com", "Erbil", "Soran", "36.1,44.0", now, (*time.Time)(nil), later))
	mock.ExpectQuery(`SELECT id, post_id, url, ord FROM images`).
		WithArgs("post-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "post_id", "url", "ord"}))

	email := "new@example.com"
	updated, err := svc.Update(context.Background(), super, "post-1", UpdateInput{Email: &email})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Email != "new@example.com" || updated.Name != "Hede" || updated.City != "Erbil" {
		t.Fatalf("unexpected merge result: %+v", updated)
	}
	if !updated.UpdatedAt.After(updated.CreatedAt) {
		t.Fatalf("expected updated_at to advance")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateDistrictValidatedAgainstCurrentCity(t *testing.T) {
	mock := newMock(t)
	svc := NewService(mock, &fakeStore{}, geo.DefaultTaxonomy())

	now := time.Now()
	mock.ExpectQuery(`SELECT (.+) FROM posts WHERE id=\$1`).
		WithArgs("post-1").
		WillReturnRows(pgxmock.NewRows(postRowColumns()).
			AddRow("post-1", StatusPending, "", "", "Erbil", "Soran", "1,1", now, (*time.Time)(nil), now))

	district := "Zakho" // belongs to Duhok, current city is Erbil
	_, err := svc.Update(context.Background(), super, "post-1", UpdateInput{District: &district})
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateModeratorForbidden(t *testing.T) {
	svc := NewService(newMock(t), &fakeStore{}, geo.DefaultTaxonomy())
	name := "x"
	_, err := svc.Update(context.Background(), moderator, "post-1", UpdateInput{Name: &name})
	if apperr.KindOf(err) != apperr.KindForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestUpdateNotFound(t *testing.T) {
	mock := newMock(t)
	svc := NewService(mock, &fakeStore{}, geo.DefaultTaxonomy())

	mock.ExpectQuery(`SELECT (.+) FROM posts WHERE id=\$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	email := "x@example.com"
	_, err := svc.Update(context.Background(), super, "missing", UpdateInput{Email: &email})
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeletePendingByModerator(t *testing.T) {
	mock := newMock(t)
	files := &fakeStore{}
	svc := NewService(mock, files, geo.DefaultTaxonomy())

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT status FROM posts WHERE id=\$1 FOR UPDATE`).
		WithArgs("post-1").
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow(StatusPending))
	mock.ExpectQuery(`SELECT url FROM images`).
		WithArgs("post-1").
		WillReturnRows(pgxmock.NewRows([]string{"url"}).
			AddRow("/uploads/a.jpg").
			AddRow("/uploads/b.jpg"))
	mock.ExpectExec(`DELETE FROM images`).WithArgs("post-1").WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec(`DELETE FROM posts`).WithArgs("post-1").WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	if err := svc.Delete(context.Background(), moderator, "post-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(files.removed) != 2 {
		t.Fatalf("expected 2 advisory removals, got %d", len(files.removed))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteAcceptedByModeratorForbidden(t *testing.T) {
	mock := newMock(t)
	files := &fakeStore{}
	svc := NewService(mock, files, geo.DefaultTaxonomy())

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT status FROM posts WHERE id=\$1 FOR UPDATE`).
		WithArgs("post-1").
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow(StatusAccepted))
	mock.ExpectRollback()

	err := svc.Delete(context.Background(), moderator, "post-1")
	if apperr.KindOf(err) != apperr.KindForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if len(files.removed) != 0 {
		t.Fatalf("a denied delete must leave files alone")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteAcceptedBySuper(t *testing.T) {
	mock := newMock(t)
	files := &fakeStore{removeErr: errors.New("file already gone")}
	svc := NewService(mock, files, geo.DefaultTaxonomy())

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT status FROM posts WHERE id=\$1 FOR UPDATE`).
		WithArgs("post-1").
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow(StatusAccepted))
	mock.ExpectQuery(`SELECT url FROM images`).
		WithArgs("post-1").
		WillReturnRows(pgxmock.NewRows([]string{"url"}).AddRow("/uploads/a.jpg"))
	mock.ExpectExec(`DELETE FROM images`).WithArgs("post-1").WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM posts`).WithArgs("post-1").WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	// the physical removal fails, but that is advisory: the delete still succeeds
	if err := svc.Delete(context.Background(), super, "post-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestDeleteNotFound(t *testing.T) {
	mock := newMock(t)
	svc := NewService(mock, &fakeStore{}, geo.DefaultTaxonomy())

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT status FROM posts WHERE id=\$1 FOR UPDATE`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	err := svc.Delete(context.Background(), super, "missing")
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func ptr(s string) *string { return &s }

package post

import (
	"context"
	"errors"

	"github.com/hedeshawqiomer/my-app-backend/internal/apperr"
	"github.com/hedeshawqiomer/my-app-backend/internal/auth"
	"github.com/hedeshawqiomer/my-app-backend/internal/authz"
	"github.com/hedeshawqiomer/my-app-backend/internal/db"
	"github.com/hedeshawqiomer/my-app-backend/internal/geo"
	"github.com/hedeshawqiomer/my-app-backend/internal/storage"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// MinImages is enforced at creation only. Later image deletions may drop a
// post below it; that asymmetry is intentional.
const MinImages = 4

const postColumns = `id, status, COALESCE(name,''), COALESCE(email,''), COALESCE(city,''),
		       COALESCE(district,''), COALESCE(location,''), created_at, accepted_at, updated_at`

type Service struct {
	db       db.Pool
	files    storage.Store
	taxonomy geo.Taxonomy
}

func NewService(pool db.Pool, files storage.Store, taxonomy geo.Taxonomy) *Service {
	return &Service{db: pool, files: files, taxonomy: taxonomy}
}

// Create validates everything before a single byte or row is written, then
// stores the files and persists the post with its images in one transaction.
func (s *Service) Create(ctx context.Context, identity auth.Identity, input CreateInput, uploads []ImageUpload) (Post, error) {
	if err := authz.Authorize(identity, authz.OpCreatePost, authz.Resource{}); err != nil {
		return Post{}, err
	}
	if len(uploads) < MinImages {
		return Post{}, apperr.New(apperr.KindValidation, "at least 4 images are required (min 4)")
	}
	if err := s.taxonomy.Validate(input.City, input.District); err != nil {
		return Post{}, err
	}
	point, err := geo.ParseCoordinates(input.Location)
	if err != nil {
		return Post{}, err
	}

	locators := make([]string, 0, len(uploads))
	for _, up := range uploads {
		locator, err := s.files.Save(ctx, up.Filename, up.Reader)
		if err != nil {
			s.discardFiles(ctx, locators)
			return Post{}, apperr.Wrap(apperr.KindUnavailable, "store image", err)
		}
		locators = append(locators, locator)
	}

	p := Post{
		ID:       uuid.NewString(),
		Status:   StatusPending,
		Name:     input.Name,
		Email:    input.Email,
		City:     input.City,
		District: input.District,
		Location: point.String(),
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		s.discardFiles(ctx, locators)
		return Post{}, apperr.Wrap(apperr.KindUnavailable, "begin create", err)
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO posts (id, status, name, email, city, district, location)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at
	`, p.ID, p.Status, textPtr(p.Name), textPtr(p.Email), textPtr(p.City), textPtr(p.District), p.Location)
	if err := row.Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
		_ = tx.Rollback(ctx)
		s.discardFiles(ctx, locators)
		return Post{}, apperr.Wrap(apperr.KindUnavailable, "insert post", err)
	}

	for i, locator := range locators {
		img := Image{ID: uuid.NewString(), PostID: p.ID, URL: locator, Order: i}
		if _, err := tx.Exec(ctx, `
			INSERT INTO images (id, post_id, url, ord)
			VALUES ($1,$2,$3,$4)
		`, img.ID, img.PostID, img.URL, img.Order); err != nil {
			_ = tx.Rollback(ctx)
			s.discardFiles(ctx, locators)
			return Post{}, apperr.Wrap(apperr.KindUnavailable, "insert image", err)
		}
		p.Images = append(p.Images, img)
	}

	if err := tx.Commit(ctx); err != nil {
		s.discardFiles(ctx, locators)
		return Post{}, apperr.Wrap(apperr.KindUnavailable, "commit create", err)
	}
	return p, nil
}

// Accept flips pending to accepted exactly once. The conditional UPDATE is
// the synchronization point: of two concurrent accepts one matches the row,
// the other falls through to the probe and reports the conflict.
func (s *Service) Accept(ctx context.Context, identity auth.Identity, postID string) (Post, error) {
	if err := authz.Authorize(identity, authz.OpAcceptPost, authz.Resource{}); err != nil {
		return Post{}, err
	}

	row := s.db.QueryRow(ctx, `
		UPDATE posts SET status=$2, accepted_at=now(), updated_at=now()
		WHERE id=$1 AND status=$3
		RETURNING `+postColumns+`
	`, postID, StatusAccepted, StatusPending)

	p, err := scanPost(row)
	if errors.Is(err, pgx.ErrNoRows) {
		var status string
		probeErr := s.db.QueryRow(ctx, `SELECT status FROM posts WHERE id=$1`, postID).Scan(&status)
		if errors.Is(probeErr, pgx.ErrNoRows) {
			return Post{}, apperr.New(apperr.KindNotFound, "post not found")
		}
		if probeErr != nil {
			return Post{}, apperr.Wrap(apperr.KindUnavailable, "load post", probeErr)
		}
		return Post{}, apperr.New(apperr.KindConflict, "already accepted")
	}
	if err != nil {
		return Post{}, apperr.Wrap(apperr.KindUnavailable, "accept post", err)
	}

	if p.Images, err = s.imagesFor(ctx, p.ID); err != nil {
		return Post{}, err
	}
	return p, nil
}

// Update applies only the fields present in the patch. City/district are
// re-validated against the values the row will end up with; location is
// re-parsed and canonicalized when provided.
func (s *Service) Update(ctx context.Context, identity auth.Identity, postID string, patch UpdateInput) (Post, error) {
	if err := authz.Authorize(identity, authz.OpUpdatePost, authz.Resource{}); err != nil {
		return Post{}, err
	}

	current, err := s.get(ctx, postID)
	if err != nil {
		return Post{}, err
	}

	if patch.Name != nil {
		current.Name = *patch.Name
	}
	if patch.Email != nil {
		current.Email = *patch.Email
	}
	if patch.City != nil {
		current.City = *patch.City
	}
	if patch.District != nil {
		current.District = *patch.District
	}
	if patch.City != nil || patch.District != nil {
		if err := s.taxonomy.Validate(current.City, current.District); err != nil {
			return Post{}, err
		}
	}
	if patch.Location != nil {
		point, err := geo.ParseCoordinates(*patch.Location)
		if err != nil {
			return Post{}, err
		}
		current.Location = point.String()
	}

	row := s.db.QueryRow(ctx, `
		UPDATE posts SET name=$2, email=$3, city=$4, district=$5, location=$6, updated_at=now()
		WHERE id=$1
		RETURNING `+postColumns+`
	`, postID, textPtr(current.Name), textPtr(current.Email), textPtr(current.City), textPtr(current.District), textPtr(current.Location))

	p, err := scanPost(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Post{}, apperr.New(apperr.KindNotFound, "post not found")
	}
	if err != nil {
		return Post{}, apperr.Wrap(apperr.KindUnavailable, "update post", err)
	}

	if p.Images, err = s.imagesFor(ctx, p.ID); err != nil {
		return Post{}, err
	}
	return p, nil
}

// List returns posts most-recently-accepted first, still-pending ones by
// creation time. The gate constrains which status filter the caller's role
// may request.
func (s *Service) List(ctx context.Context, identity auth.Identity, filter ListFilter) ([]Post, error) {
	if err := authz.Authorize(identity, authz.OpListPosts, authz.Resource{ListStatus: filter.Status}); err != nil {
		return nil, err
	}
	return s.list(ctx, filter)
}

// ListPublic is the open listing of accepted posts.
func (s *Service) ListPublic(ctx context.Context, city string) ([]Post, error) {
	if err := authz.Authorize(auth.Identity{}, authz.OpListPublic, authz.Resource{}); err != nil {
		return nil, err
	}
	return s.list(ctx, ListFilter{Status: StatusAccepted, City: city})
}

// Delete removes a post with its image rows in one transaction, then makes
// an advisory attempt on each backing file. The row lock taken by FOR UPDATE
// keeps the status the gate saw from changing under the delete.
func (s *Service) Delete(ctx context.Context, identity auth.Identity, postID string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return apperr.Wrap(apperr.KindUnavailable, "begin delete", err)
	}

	var status string
	err = tx.QueryRow(ctx, `SELECT status FROM posts WHERE id=$1 FOR UPDATE`, postID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		_ = tx.Rollback(ctx)
		return apperr.New(apperr.KindNotFound, "post not found")
	}
	if err != nil {
		_ = tx.Rollback(ctx)
		return apperr.Wrap(apperr.KindUnavailable, "load post", err)
	}

	if err := authz.Authorize(identity, authz.OpDeletePost, authz.Resource{PostStatus: status}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	rows, err := tx.Query(ctx, `SELECT url FROM images WHERE post_id=$1`, postID)
	if err != nil {
		_ = tx.Rollback(ctx)
		return apperr.Wrap(apperr.KindUnavailable, "load images", err)
	}
	var locators []string
	for rows.Next() {
		var locator string
		if err := rows.Scan(&locator); err != nil {
			rows.Close()
			_ = tx.Rollback(ctx)
			return apperr.Wrap(apperr.KindUnavailable, "scan image", err)
		}
		locators = append(locators, locator)
	}
	rows.Close()

	if _, err := tx.Exec(ctx, `DELETE FROM images WHERE post_id=$1`, postID); err != nil {
		_ = tx.Rollback(ctx)
		return apperr.Wrap(apperr.KindUnavailable, "delete images", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM posts WHERE id=$1`, postID); err != nil {
		_ = tx.Rollback(ctx)
		return apperr.Wrap(apperr.KindUnavailable, "delete post", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return apperr.Wrap(apperr.KindUnavailable, "commit delete", err)
	}

	for _, locator := range locators {
		apperr.Advisory("remove image file "+locator, s.files.Remove(ctx, locator))
	}
	return nil
}

func (s *Service) get(ctx context.Context, postID string) (Post, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+postColumns+`
		FROM posts WHERE id=$1
	`, postID)
	p, err := scanPost(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Post{}, apperr.New(apperr.KindNotFound, "post not found")
	}
	if err != nil {
		return Post{}, apperr.Wrap(apperr.KindUnavailable, "load post", err)
	}
	return p, nil
}

func (s *Service) list(ctx context.Context, filter ListFilter) ([]Post, error) {
	sql := `
		SELECT ` + postColumns + `
		FROM posts
		WHERE ($1 = '' OR status = $1) AND ($2 = '' OR city = $2)
		ORDER BY accepted_at DESC NULLS LAST, created_at DESC
	`
	rows, err := s.db.Query(ctx, sql, filter.Status, filter.City)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, "list posts", err)
	}
	defer rows.Close()

	var posts []Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindUnavailable, "scan post", err)
		}
		posts = append(posts, p)
	}

	if err := s.attachImages(ctx, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (s *Service) imagesFor(ctx context.Context, postID string) ([]Image, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, post_id, url, ord FROM images
		WHERE post_id=$1 ORDER BY ord
	`, postID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, "load images", err)
	}
	defer rows.Close()

	var images []Image
	for rows.Next() {
		var img Image
		if err := rows.Scan(&img.ID, &img.PostID, &img.URL, &img.Order); err != nil {
			return nil, apperr.Wrap(apperr.KindUnavailable, "scan image", err)
		}
		images = append(images, img)
	}
	return images, nil
}

func (s *Service) attachImages(ctx context.Context, posts []Post) error {
	if len(posts) == 0 {
		return nil
	}
	ids := make([]string, len(posts))
	index := make(map[string]int, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
		index[p.ID] = i
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, post_id, url, ord FROM images
		WHERE post_id = ANY($1::uuid[]) ORDER BY ord
	`, ids)
	if err != nil {
		return apperr.Wrap(apperr.KindUnavailable, "load images", err)
	}
	defer rows.Close()

	for rows.Next() {
		var img Image
		if err := rows.Scan(&img.ID, &img.PostID, &img.URL, &img.Order); err != nil {
			return apperr.Wrap(apperr.KindUnavailable, "scan image", err)
		}
		if i, ok := index[img.PostID]; ok {
			posts[i].Images = append(posts[i].Images, img)
		}
	}
	return nil
}

func (s *Service) discardFiles(ctx context.Context, locators []string) {
	for _, locator := range locators {
		apperr.Advisory("discard stored file "+locator, s.files.Remove(ctx, locator))
	}
}

func scanPost(row pgx.Row) (Post, error) {
	var p Post
	err := row.Scan(&p.ID, &p.Status, &p.Name, &p.Email, &p.City, &p.District,
		&p.Location, &p.CreatedAt, &p.AcceptedAt, &p.UpdatedAt)
	return p, err
}

func textPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

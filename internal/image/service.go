package image

import (
	"context"
	"errors"

	"github.com/hedeshawqiomer/my-app-backend/internal/apperr"
	"github.com/hedeshawqiomer/my-app-backend/internal/auth"
	"github.com/hedeshawqiomer/my-app-backend/internal/authz"
	"github.com/hedeshawqiomer/my-app-backend/internal/db"
	"github.com/hedeshawqiomer/my-app-backend/internal/storage"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Service owns the link between image rows and the files behind them. The
// database row is authoritative: it is deleted first, and the physical
// removal afterwards is advisory.
type Service struct {
	db    db.Querier
	files storage.Store
}

func NewService(q db.Querier, files storage.Store) *Service {
	return &Service{db: q, files: files}
}

// Removed reports one deleted image back to the caller.
type Removed struct {
	ID  string `json:"id,omitempty"`
	URL string `json:"url,omitempty"`
}

// RemoveByLocator deletes the unique image of a post matching the (normalized)
// locator.
func (s *Service) RemoveByLocator(ctx context.Context, identity auth.Identity, postID, rawLocator string) (Removed, error) {
	if err := s.gate(ctx, identity, postID); err != nil {
		return Removed{}, err
	}

	locator := storage.NormalizeLocator(rawLocator)
	var imageID, url string
	err := s.db.QueryRow(ctx, `
		SELECT id, url FROM images WHERE post_id=$1 AND url=$2
	`, postID, locator).Scan(&imageID, &url)
	if errors.Is(err, pgx.ErrNoRows) {
		return Removed{}, apperr.New(apperr.KindNotFound, "image not found")
	}
	if err != nil {
		return Removed{}, apperr.Wrap(apperr.KindUnavailable, "find image", err)
	}

	if _, err := s.db.Exec(ctx, `DELETE FROM images WHERE id=$1`, imageID); err != nil {
		return Removed{}, apperr.Wrap(apperr.KindUnavailable, "delete image", err)
	}
	apperr.Advisory("remove image file "+url, s.files.Remove(ctx, url))
	return Removed{URL: url}, nil
}

// RemoveByID is the same contract keyed by image id.
func (s *Service) RemoveByID(ctx context.Context, identity auth.Identity, postID, imageID string) (Removed, error) {
	if err := s.gate(ctx, identity, postID); err != nil {
		return Removed{}, err
	}

	var url string
	err := s.db.QueryRow(ctx, `
		SELECT url FROM images WHERE id=$1 AND post_id=$2
	`, imageID, postID).Scan(&url)
	if errors.Is(err, pgx.ErrNoRows) {
		return Removed{}, apperr.New(apperr.KindNotFound, "image not found")
	}
	if err != nil {
		return Removed{}, apperr.Wrap(apperr.KindUnavailable, "find image", err)
	}

	if _, err := s.db.Exec(ctx, `DELETE FROM images WHERE id=$1`, imageID); err != nil {
		return Removed{}, apperr.Wrap(apperr.KindUnavailable, "delete image", err)
	}
	apperr.Advisory("remove image file "+url, s.files.Remove(ctx, url))
	return Removed{ID: imageID}, nil
}

// RemoveBulk deletes every image of the post matching any of the ids or
// locators. Zero matches is an empty result, not an error. Rows go in one
// DELETE; file removals are attempted independently afterwards so one
// failure cannot block the rest.
func (s *Service) RemoveBulk(ctx context.Context, identity auth.Identity, postID string, ids, locators []string) ([]Removed, error) {
	if err := s.gate(ctx, identity, postID); err != nil {
		return nil, err
	}

	validIDs := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			validIDs = append(validIDs, id)
		}
	}
	normalized := make([]string, 0, len(locators))
	for _, l := range locators {
		normalized = append(normalized, storage.NormalizeLocator(l))
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, url FROM images
		WHERE post_id=$1 AND (id = ANY($2::uuid[]) OR url = ANY($3))
	`, postID, validIDs, normalized)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, "find images", err)
	}
	defer rows.Close()

	var matched []Removed
	matchedIDs := make([]string, 0)
	for rows.Next() {
		var r Removed
		if err := rows.Scan(&r.ID, &r.URL); err != nil {
			return nil, apperr.Wrap(apperr.KindUnavailable, "scan image", err)
		}
		matched = append(matched, r)
		matchedIDs = append(matchedIDs, r.ID)
	}
	if len(matched) == 0 {
		return []Removed{}, nil
	}

	if _, err := s.db.Exec(ctx, `DELETE FROM images WHERE id = ANY($1::uuid[])`, matchedIDs); err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, "delete images", err)
	}
	for _, r := range matched {
		apperr.Advisory("remove image file "+r.URL, s.files.Remove(ctx, r.URL))
	}
	return matched, nil
}

// gate loads the owning post's status and applies the image-mutation rule:
// super always, moderator only while the post is still pending.
func (s *Service) gate(ctx context.Context, identity auth.Identity, postID string) error {
	var status string
	err := s.db.QueryRow(ctx, `SELECT status FROM posts WHERE id=$1`, postID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.New(apperr.KindNotFound, "post not found")
	}
	if err != nil {
		return apperr.Wrap(apperr.KindUnavailable, "load post", err)
	}
	return authz.Authorize(identity, authz.OpMutateImages, authz.Resource{PostStatus: status})
}

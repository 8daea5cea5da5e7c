package photoprism

import (
	"context"
	"fmt"
	"net/url"
)

// PhotoQuery filters and orders a photo listing.
type PhotoQuery struct {
	Query    string // Search query, e.g. "year:2024"
	Order    string // "newest", "oldest", "added", "edited", ...
	Archived bool   // List archived photos instead of the active ones
}

// GetPhotos retrieves one page of photos from PhotoPrism
func (pp *PhotoPrism) GetPhotos(ctx context.Context, count, offset int, q PhotoQuery) ([]Photo, error) {
	endpoint := fmt.Sprintf("photos?count=%d&offset=%d&merged=true", count, offset)
	if q.Query != "" {
		endpoint += "&q=" + url.QueryEscape(q.Query)
	}
	if q.Order != "" {
		endpoint += "&order=" + url.QueryEscape(q.Order)
	}
	if q.Archived {
		endpoint += "&archived=true"
	}

	result, err := doGetJSON[[]Photo](ctx, pp, endpoint)
	if err != nil {
		return nil, err
	}
	return *result, nil
}

// GetAllPhotos pages through the whole listing described by q.
func (pp *PhotoPrism) GetAllPhotos(ctx context.Context, pageSize int, q PhotoQuery) ([]Photo, error) {
	if pageSize <= 0 {
		return nil, fmt.Errorf("invalid page size %d", pageSize)
	}

	var all []Photo
	for offset := 0; ; offset += pageSize {
		page, err := pp.GetPhotos(ctx, pageSize, offset, q)
		if err != nil {
			return nil, fmt.Errorf("fetch photos at offset %d: %w", offset, err)
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
	}
}

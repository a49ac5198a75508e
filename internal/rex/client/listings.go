package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/rexsync/internal/models"
	"github.com/goccy/go-json"
)

// DefaultLimit is the page size used when FindAll gets limit <= 0.
const DefaultLimit = 100

const resultFormat = "website_overrides_applied"

// extraFields are the related collections REX should inline into each row.
var extraFields = []string{
	"images", "features", "advert_internet", "subcategories", "highlights",
	"tags", "rooms", "floorplans", "events", "links", "documents",
}

type criterion struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

type extraOptions struct {
	ExtraFields []string `json:"extra_fields"`
}

type searchRequest struct {
	Criteria     []criterion       `json:"criteria,omitempty"`
	Limit        int               `json:"limit"`
	Offset       int               `json:"offset"`
	OrderBy      map[string]string `json:"order_by"`
	ResultFormat string            `json:"result_format"`
	ExtraOptions extraOptions      `json:"extra_options"`
}

type searchResponse struct {
	Result struct {
		Rows  []json.RawMessage `json:"rows"`
		Total int               `json:"total"`
	} `json:"result"`
}

type readRequest struct {
	ID           int64        `json:"id"`
	ExtraOptions extraOptions `json:"extra_options"`
	ResultFormat string       `json:"result_format"`
}

type readResponse struct {
	Result json.RawMessage `json:"result"`
}

// FindAll searches the feed starting at offset, newest modification first.
// With fetchAll it keeps requesting pages of limit rows until the reported
// total is covered; otherwise it returns a single page. Any page error
// aborts the whole call.
func (c *Client) FindAll(ctx context.Context, limit, offset int, fetchAll bool) ([]*models.Listing, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if offset < 0 {
		offset = 0
	}

	var out []*models.Listing
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, rows, total, err := c.search(ctx, limit, offset)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		c.logger.Debug(ctx, "rex search page", "offset", offset, "limit", limit, "rows", rows, "total", total)

		if !fetchAll || rows == 0 || limit+offset >= total {
			break
		}
		offset += limit
	}
	return out, nil
}

// search fetches one page. rows counts the rows REX returned, including
// any that could not be mapped.
func (c *Client) search(ctx context.Context, limit, offset int) (_ []*models.Listing, rows, total int, err error) {
	req := searchRequest{
		Limit:        limit,
		Offset:       offset,
		OrderBy:      map[string]string{"system_modtime": "desc"},
		ResultFormat: resultFormat,
		ExtraOptions: extraOptions{ExtraFields: extraFields},
	}
	if c.agencyID != "" {
		req.Criteria = []criterion{{Name: "agency_id", Value: c.agencyID}}
	}

	raw, err := c.AuthenticatedRequest(ctx, http.MethodPost, c.feed+"/search", req)
	if err != nil {
		return nil, 0, 0, err
	}

	var resp searchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, 0, 0, fmt.Errorf("decode search response: %w", err)
	}

	listings := make([]*models.Listing, 0, len(resp.Result.Rows))
	for _, row := range resp.Result.Rows {
		l, err := models.ListingFromRow(row)
		if err != nil {
			c.logger.Warn(ctx, "skipping rex row", "error", err)
			continue
		}
		listings = append(listings, l)
	}
	return listings, len(resp.Result.Rows), resp.Result.Total, nil
}

// FindByID reads one listing. It returns (nil, nil) when REX has none.
func (c *Client) FindByID(ctx context.Context, id int64) (*models.Listing, error) {
	req := readRequest{
		ID:           id,
		ExtraOptions: extraOptions{ExtraFields: extraFields},
		ResultFormat: resultFormat,
	}
	raw, err := c.AuthenticatedRequest(ctx, http.MethodPost, c.feed+"/read", req)
	if err != nil {
		return nil, err
	}

	var resp readResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode read response: %w", err)
	}
	if len(resp.Result) == 0 || string(resp.Result) == "null" {
		return nil, nil
	}
	return models.ListingFromRow(resp.Result)
}

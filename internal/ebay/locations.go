package ebay

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	apperrors "github.com/ebaygate/ebaygate/internal/errors"
)

func (c *Client) ListLocations(ctx context.Context, limit, offset int) (*LocationsPage, error) {
	path := fmt.Sprintf("%s/location?limit=%d&offset=%d", inventoryBase, pageLimit(limit), offset)
	var page LocationsPage
	if err := c.execute(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) GetLocation(ctx context.Context, merchantLocationKey string) (*Location, error) {
	var loc Location
	path := inventoryBase + "/location/" + url.PathEscape(merchantLocationKey)
	if err := c.execute(ctx, http.MethodGet, path, nil, &loc); err != nil {
		return nil, err
	}
	return &loc, nil
}

// CreateLocation registers a merchant location. eBay answers 409 when
// the key is already registered; that leaves the seller in the state
// the caller wanted, so it is reported as success.
func (c *Client) CreateLocation(ctx context.Context, merchantLocationKey string, loc *Location) error {
	path := inventoryBase + "/location/" + url.PathEscape(merchantLocationKey)
	err := c.execute(ctx, http.MethodPost, path, loc, nil)
	if err != nil {
		if apiErr, ok := apperrors.AsAPIError(err); ok && apiErr.Kind == apperrors.KindConflict {
			c.logger.Debug("location already exists", "merchant_location_key", merchantLocationKey)
			return nil
		}
		return err
	}
	return nil
}

func (c *Client) DeleteLocation(ctx context.Context, merchantLocationKey string) error {
	path := inventoryBase + "/location/" + url.PathEscape(merchantLocationKey)
	return c.execute(ctx, http.MethodDelete, path, nil, nil)
}

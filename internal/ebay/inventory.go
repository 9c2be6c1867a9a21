package ebay

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

const inventoryBase = "/sell/inventory/v1"

func (c *Client) ListInventoryItems(ctx context.Context, limit, offset int) (*InventoryItemsPage, error) {
	path := fmt.Sprintf("%s/inventory_item?limit=%d&offset=%d", inventoryBase, pageLimit(limit), offset)
	var page InventoryItemsPage
	if err := c.execute(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) GetInventoryItem(ctx context.Context, sku string) (*InventoryItem, error) {
	var item InventoryItem
	path := inventoryBase + "/inventory_item/" + url.PathEscape(sku)
	if err := c.execute(ctx, http.MethodGet, path, nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// PutInventoryItem creates or fully replaces the item under sku.
func (c *Client) PutInventoryItem(ctx context.Context, sku string, item *InventoryItem) error {
	path := inventoryBase + "/inventory_item/" + url.PathEscape(sku)
	return c.execute(ctx, http.MethodPut, path, item, nil)
}

func (c *Client) DeleteInventoryItem(ctx context.Context, sku string) error {
	path := inventoryBase + "/inventory_item/" + url.PathEscape(sku)
	return c.execute(ctx, http.MethodDelete, path, nil, nil)
}

// BulkMigrateListings converts legacy Trading API listings into
// inventory items plus offers. Per-listing outcomes come back in the
// response; a partial failure is not an error at this level.
func (c *Client) BulkMigrateListings(ctx context.Context, listingIDs []string) (*BulkMigrateResponse, error) {
	reqs := make([]MigrateListing, 0, len(listingIDs))
	for _, id := range listingIDs {
		reqs = append(reqs, MigrateListing{ListingID: id})
	}

	var result BulkMigrateResponse
	path := inventoryBase + "/bulk_migrate_listing"
	if err := c.execute(ctx, http.MethodPost, path, &BulkMigrateRequest{Requests: reqs}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

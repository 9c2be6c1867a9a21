package ebay

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

func (c *Client) ListOffers(ctx context.Context, sku string, limit, offset int) (*OffersPage, error) {
	path := fmt.Sprintf("%s/offer?limit=%d&offset=%d", inventoryBase, pageLimit(limit), offset)
	if sku != "" {
		path += "&sku=" + url.QueryEscape(sku)
	}

	var page OffersPage
	if err := c.execute(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) GetOffer(ctx context.Context, offerID string) (*Offer, error) {
	var offer Offer
	path := inventoryBase + "/offer/" + url.PathEscape(offerID)
	if err := c.execute(ctx, http.MethodGet, path, nil, &offer); err != nil {
		return nil, err
	}
	return &offer, nil
}

func (c *Client) CreateOffer(ctx context.Context, offer *Offer) (*CreateOfferResponse, error) {
	var created CreateOfferResponse
	if err := c.execute(ctx, http.MethodPost, inventoryBase+"/offer", offer, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) UpdateOffer(ctx context.Context, offerID string, offer *Offer) error {
	path := inventoryBase + "/offer/" + url.PathEscape(offerID)
	return c.execute(ctx, http.MethodPut, path, offer, nil)
}

func (c *Client) DeleteOffer(ctx context.Context, offerID string) error {
	path := inventoryBase + "/offer/" + url.PathEscape(offerID)
	return c.execute(ctx, http.MethodDelete, path, nil, nil)
}

// PublishOffer takes an offer live and returns the listing id.
func (c *Client) PublishOffer(ctx context.Context, offerID string) (*PublishResponse, error) {
	var published PublishResponse
	path := inventoryBase + "/offer/" + url.PathEscape(offerID) + "/publish/"
	if err := c.execute(ctx, http.MethodPost, path, nil, &published); err != nil {
		return nil, err
	}
	return &published, nil
}

// WithdrawOffer ends the live listing but keeps the offer document.
func (c *Client) WithdrawOffer(ctx context.Context, offerID string) error {
	path := inventoryBase + "/offer/" + url.PathEscape(offerID) + "/withdraw/"
	return c.execute(ctx, http.MethodPost, path, nil, nil)
}

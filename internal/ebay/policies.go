package ebay

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

const accountBase = "/sell/account/v1"

// PolicyType selects one of the three seller business policy families.
type PolicyType string

const (
	PolicyFulfillment PolicyType = "fulfillment"
	PolicyPayment     PolicyType = "payment"
	PolicyReturn      PolicyType = "return"

	// DefaultMarketplace is used when the caller does not name one.
	DefaultMarketplace = "EBAY_US"
)

func ParsePolicyType(s string) (PolicyType, error) {
	switch PolicyType(s) {
	case PolicyFulfillment, PolicyPayment, PolicyReturn:
		return PolicyType(s), nil
	default:
		return "", fmt.Errorf("unknown policy type %q", s)
	}
}

func (c *Client) policyPath(t PolicyType, marketplaceID string) string {
	if marketplaceID == "" {
		marketplaceID = DefaultMarketplace
	}
	return fmt.Sprintf("%s/%s_policy?marketplace_id=%s", accountBase, t, url.QueryEscape(marketplaceID))
}

func (c *Client) FulfillmentPolicies(ctx context.Context, marketplaceID string) (*FulfillmentPoliciesPage, error) {
	var page FulfillmentPoliciesPage
	if err := c.execute(ctx, http.MethodGet, c.policyPath(PolicyFulfillment, marketplaceID), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) PaymentPolicies(ctx context.Context, marketplaceID string) (*PaymentPoliciesPage, error) {
	var page PaymentPoliciesPage
	if err := c.execute(ctx, http.MethodGet, c.policyPath(PolicyPayment, marketplaceID), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) ReturnPolicies(ctx context.Context, marketplaceID string) (*ReturnPoliciesPage, error) {
	var page ReturnPoliciesPage
	if err := c.execute(ctx, http.MethodGet, c.policyPath(PolicyReturn, marketplaceID), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Policies dispatches on a path-supplied policy type for the proxy
// route and returns the page untyped.
func (c *Client) Policies(ctx context.Context, t PolicyType, marketplaceID string) (interface{}, error) {
	switch t {
	case PolicyFulfillment:
		return c.FulfillmentPolicies(ctx, marketplaceID)
	case PolicyPayment:
		return c.PaymentPolicies(ctx, marketplaceID)
	case PolicyReturn:
		return c.ReturnPolicies(ctx, marketplaceID)
	default:
		return nil, fmt.Errorf("unknown policy type %q", t)
	}
}

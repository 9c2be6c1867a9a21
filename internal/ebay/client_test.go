package ebay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ebaygate/ebaygate/internal/errors"
	"github.com/ebaygate/ebaygate/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("v^1.1#token", models.EnvironmentProduction, WithBaseURL(srv.URL), WithAccountID("acct-1"))
}

func TestAPIBaseFor(t *testing.T) {
	assert.Equal(t, "https://api.ebay.com", APIBaseFor(models.EnvironmentProduction))
	assert.Equal(t, "https://api.sandbox.ebay.com", APIBaseFor(models.EnvironmentSandbox))
}

func TestGetInventoryItemSendsBearer(t *testing.T) {
	var gotAuth, gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(InventoryItem{SKU: "SKU-1", Condition: "NEW"})
	})

	item, err := c.GetInventoryItem(context.Background(), "SKU-1")
	require.NoError(t, err)
	assert.Equal(t, "Bearer v^1.1#token", gotAuth)
	assert.Equal(t, "/sell/inventory/v1/inventory_item/SKU-1", gotPath)
	assert.Equal(t, "NEW", item.Condition)
}

func TestDecodesResponseWithoutContentType(t *testing.T) {
	// Without an explicit header the body sniffs as text/plain; the
	// client must still decode it as JSON.
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(InventoryItem{SKU: "SKU-9", Condition: "USED_GOOD"})
	})

	item, err := c.GetInventoryItem(context.Background(), "SKU-9")
	require.NoError(t, err)
	assert.Equal(t, "USED_GOOD", item.Condition)
}

func TestPutInventoryItemSetsContentLanguage(t *testing.T) {
	var gotLang string
	var gotBody InventoryItem
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotLang = r.Header.Get("Content-Language")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusNoContent)
	})

	err := c.PutInventoryItem(context.Background(), "SKU-1", &InventoryItem{
		Product: &Product{Title: "widget"},
	})
	require.NoError(t, err)
	assert.Equal(t, "en-US", gotLang)
	assert.Equal(t, "widget", gotBody.Product.Title)
}

func TestExecuteMapsErrorStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"errors":[{"errorId":25710}]}`))
	})

	_, err := c.GetOffer(context.Background(), "9999")
	require.Error(t, err)

	apiErr, ok := apperrors.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, 404, apiErr.StatusCode)
	assert.Equal(t, apperrors.KindNotFound, apiErr.Kind)
	assert.Contains(t, apiErr.Body, "25710")
}

func TestCreateLocationTreatsConflictAsSuccess(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"errors":[{"message":"A location with this key already exists"}]}`))
	})

	err := c.CreateLocation(context.Background(), "warehouse-1", &Location{Name: "Main"})
	assert.NoError(t, err)
}

func TestCreateLocationOtherErrorsPropagate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errors":[{"message":"address is required"}]}`))
	})

	err := c.CreateLocation(context.Background(), "warehouse-1", &Location{Name: "Main"})
	require.Error(t, err)
	apiErr, ok := apperrors.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, 400, apiErr.StatusCode)
}

func TestPublishOffer(t *testing.T) {
	var gotPath, gotMethod string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(PublishResponse{ListingID: "110123456"})
	})

	published, err := c.PublishOffer(context.Background(), "offer-1")
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/sell/inventory/v1/offer/offer-1/publish/", gotPath)
	assert.Equal(t, "110123456", published.ListingID)
}

func TestBulkMigrateListings(t *testing.T) {
	var gotBody BulkMigrateRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(BulkMigrateResponse{Responses: []MigrateListingResult{
			{ListingID: "110000000001", StatusCode: 200},
			{ListingID: "110000000002", StatusCode: 409},
		}})
	})

	result, err := c.BulkMigrateListings(context.Background(), []string{"110000000001", "110000000002"})
	require.NoError(t, err)
	require.Len(t, gotBody.Requests, 2)
	assert.Equal(t, "110000000001", gotBody.Requests[0].ListingID)

	// partial failure reported per listing, not as a call error
	require.Len(t, result.Responses, 2)
	assert.Equal(t, 409, result.Responses[1].StatusCode)
}

func TestListOffersQuery(t *testing.T) {
	var gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(OffersPage{Total: 0})
	})

	_, err := c.ListOffers(context.Background(), "SKU 1", 0, 50)
	require.NoError(t, err)
	assert.Contains(t, gotQuery, "limit=25")
	assert.Contains(t, gotQuery, "offset=50")
	assert.Contains(t, gotQuery, "sku=SKU+1")
}

func TestParsePolicyType(t *testing.T) {
	pt, err := ParsePolicyType("payment")
	require.NoError(t, err)
	assert.Equal(t, PolicyPayment, pt)

	_, err = ParsePolicyType("billing")
	assert.Error(t, err)
}

func TestPoliciesDispatch(t *testing.T) {
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ReturnPoliciesPage{Total: 1, ReturnPolicies: []ReturnPolicy{{Name: "30 days"}}})
	})

	page, err := c.Policies(context.Background(), PolicyReturn, "")
	require.NoError(t, err)
	assert.Equal(t, "/sell/account/v1/return_policy", gotPath)

	returns, ok := page.(*ReturnPoliciesPage)
	require.True(t, ok)
	assert.Equal(t, "30 days", returns.ReturnPolicies[0].Name)
}

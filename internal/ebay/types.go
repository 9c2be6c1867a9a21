package ebay

// Payload shapes for the subset of the Sell Inventory and Sell Account
// APIs the gateway proxies. Fields are omitempty so partial documents
// round-trip without inventing nulls.

type InventoryItem struct {
	SKU          string        `json:"sku,omitempty"`
	Locale       string        `json:"locale,omitempty"`
	Condition    string        `json:"condition,omitempty"`
	Product      *Product      `json:"product,omitempty"`
	Availability *Availability `json:"availability,omitempty"`
}

type Product struct {
	Title       string              `json:"title,omitempty"`
	Description string              `json:"description,omitempty"`
	Brand       string              `json:"brand,omitempty"`
	MPN         string              `json:"mpn,omitempty"`
	ImageURLs   []string            `json:"imageUrls,omitempty"`
	Aspects     map[string][]string `json:"aspects,omitempty"`
}

type Availability struct {
	ShipToLocationAvailability *ShipToLocationAvailability `json:"shipToLocationAvailability,omitempty"`
}

type ShipToLocationAvailability struct {
	Quantity int `json:"quantity,omitempty"`
}

type InventoryItemsPage struct {
	InventoryItems []InventoryItem `json:"inventoryItems,omitempty"`
	Total          int             `json:"total,omitempty"`
	Limit          int             `json:"limit,omitempty"`
	Offset         int             `json:"offset,omitempty"`
	Next           string          `json:"next,omitempty"`
}

type Offer struct {
	OfferID            string           `json:"offerId,omitempty"`
	SKU                string           `json:"sku,omitempty"`
	MarketplaceID      string           `json:"marketplaceId,omitempty"`
	Format             string           `json:"format,omitempty"`
	AvailableQuantity  int              `json:"availableQuantity,omitempty"`
	CategoryID         string           `json:"categoryId,omitempty"`
	ListingDescription string           `json:"listingDescription,omitempty"`
	MerchantLocationKey string          `json:"merchantLocationKey,omitempty"`
	PricingSummary     *PricingSummary  `json:"pricingSummary,omitempty"`
	ListingPolicies    *ListingPolicies `json:"listingPolicies,omitempty"`
	Status             string           `json:"status,omitempty"`
	Listing            *ListingDetails  `json:"listing,omitempty"`
}

type PricingSummary struct {
	Price *Amount `json:"price,omitempty"`
}

type Amount struct {
	Value    string `json:"value,omitempty"`
	Currency string `json:"currency,omitempty"`
}

type ListingPolicies struct {
	FulfillmentPolicyID string `json:"fulfillmentPolicyId,omitempty"`
	PaymentPolicyID     string `json:"paymentPolicyId,omitempty"`
	ReturnPolicyID      string `json:"returnPolicyId,omitempty"`
}

type ListingDetails struct {
	ListingID     string `json:"listingId,omitempty"`
	ListingStatus string `json:"listingStatus,omitempty"`
}

type OffersPage struct {
	Offers []Offer `json:"offers,omitempty"`
	Total  int     `json:"total,omitempty"`
	Limit  int     `json:"limit,omitempty"`
	Offset int     `json:"offset,omitempty"`
	Next   string  `json:"next,omitempty"`
}

// CreateOfferResponse carries the id assigned by eBay.
type CreateOfferResponse struct {
	OfferID string `json:"offerId"`
}

// PublishResponse carries the live listing id.
type PublishResponse struct {
	ListingID string `json:"listingId"`
}

type Location struct {
	MerchantLocationKey    string           `json:"merchantLocationKey,omitempty"`
	Name                   string           `json:"name,omitempty"`
	MerchantLocationStatus string           `json:"merchantLocationStatus,omitempty"`
	LocationTypes          []string         `json:"locationTypes,omitempty"`
	Location               *LocationDetails `json:"location,omitempty"`
}

type LocationDetails struct {
	Address *Address `json:"address,omitempty"`
}

type Address struct {
	AddressLine1    string `json:"addressLine1,omitempty"`
	AddressLine2    string `json:"addressLine2,omitempty"`
	City            string `json:"city,omitempty"`
	StateOrProvince string `json:"stateOrProvince,omitempty"`
	PostalCode      string `json:"postalCode,omitempty"`
	Country         string `json:"country,omitempty"`
}

type LocationsPage struct {
	Locations []Location `json:"locations,omitempty"`
	Total     int        `json:"total,omitempty"`
	Limit     int        `json:"limit,omitempty"`
	Offset    int        `json:"offset,omitempty"`
}

type FulfillmentPolicy struct {
	FulfillmentPolicyID string `json:"fulfillmentPolicyId,omitempty"`
	Name                string `json:"name,omitempty"`
	MarketplaceID       string `json:"marketplaceId,omitempty"`
}

type FulfillmentPoliciesPage struct {
	FulfillmentPolicies []FulfillmentPolicy `json:"fulfillmentPolicies,omitempty"`
	Total               int                 `json:"total,omitempty"`
}

type PaymentPolicy struct {
	PaymentPolicyID string `json:"paymentPolicyId,omitempty"`
	Name            string `json:"name,omitempty"`
	MarketplaceID   string `json:"marketplaceId,omitempty"`
	ImmediatePay    bool   `json:"immediatePay,omitempty"`
}

type PaymentPoliciesPage struct {
	PaymentPolicies []PaymentPolicy `json:"paymentPolicies,omitempty"`
	Total           int             `json:"total,omitempty"`
}

type ReturnPolicy struct {
	ReturnPolicyID  string `json:"returnPolicyId,omitempty"`
	Name            string `json:"name,omitempty"`
	MarketplaceID   string `json:"marketplaceId,omitempty"`
	ReturnsAccepted bool   `json:"returnsAccepted,omitempty"`
}

type ReturnPoliciesPage struct {
	ReturnPolicies []ReturnPolicy `json:"returnPolicies,omitempty"`
	Total          int            `json:"total,omitempty"`
}

// BulkMigrateRequest moves legacy Trading API listings into the
// inventory model.
type BulkMigrateRequest struct {
	Requests []MigrateListing `json:"requests"`
}

type MigrateListing struct {
	ListingID string `json:"listingId"`
}

type BulkMigrateResponse struct {
	Responses []MigrateListingResult `json:"responses,omitempty"`
}

type MigrateListingResult struct {
	ListingID  string `json:"listingId,omitempty"`
	StatusCode int    `json:"statusCode,omitempty"`
	Marketplace string `json:"marketplaceId,omitempty"`
	InventoryItems []MigratedInventoryItem `json:"inventoryItems,omitempty"`
}

type MigratedInventoryItem struct {
	SKU     string `json:"sku,omitempty"`
	OfferID string `json:"offerId,omitempty"`
}

package api

import (
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ebaygate/ebaygate/internal/ebay"
	apperrors "github.com/ebaygate/ebaygate/internal/errors"
	"github.com/ebaygate/ebaygate/internal/models"
	"github.com/ebaygate/ebaygate/internal/pipeline"
)

// Endpoint identifiers checked against API token allow-lists.
const (
	EndpointInventory = "inventory"
	EndpointOffers    = "offers"
	EndpointLocations = "locations"
	EndpointPolicies  = "policies"
	EndpointMigrate   = "migrate"
)

// registerProxyRoutes mounts the eBay Sell API surface. Every route
// family runs the full authorization pipeline with its own endpoint ID
// and scope-bearing operation.
func (s *Server) registerProxyRoutes() {
	root := s.router.Group("/api/ebay/:account_id")

	inv := root.Group("/inventory", s.pipeline.Chain(EndpointInventory, models.OpManageInventory)...)
	{
		inv.GET("", s.handleListInventory)
		inv.GET("/:sku", s.handleGetInventoryItem)
		inv.PUT("/:sku", s.handlePutInventoryItem)
		inv.DELETE("/:sku", s.handleDeleteInventoryItem)
	}

	offers := root.Group("/offers", s.pipeline.Chain(EndpointOffers, models.OpManageInventory)...)
	{
		offers.GET("", s.handleListOffers)
		offers.POST("", s.handleCreateOffer)
		offers.GET("/:offer_id", s.handleGetOffer)
		offers.PUT("/:offer_id", s.handleUpdateOffer)
		offers.DELETE("/:offer_id", s.handleDeleteOffer)
		offers.POST("/:offer_id/publish", s.handlePublishOffer)
		offers.POST("/:offer_id/withdraw", s.handleWithdrawOffer)
	}

	locations := root.Group("/locations", s.pipeline.Chain(EndpointLocations, models.OpManageInventory)...)
	{
		locations.GET("", s.handleListLocations)
		locations.GET("/:key", s.handleGetLocation)
		locations.POST("/:key", s.handleCreateLocation)
		locations.DELETE("/:key", s.handleDeleteLocation)
	}

	policies := root.Group("/policies", s.pipeline.Chain(EndpointPolicies, models.OpManageAccount)...)
	{
		policies.GET("/:type", s.handleListPolicies)
	}

	migrate := append(s.pipeline.Chain(EndpointMigrate, models.OpManageInventory), s.handleBulkMigrate)
	root.POST("/migrate", migrate...)
}

// ebayClientFor builds a Sell API client carrying the fresh access
// token the pipeline resolved for this request.
func (s *Server) ebayClientFor(c *gin.Context) (*ebay.Client, bool) {
	account, _ := pipeline.AccountFromContext(c)
	accessToken, _ := pipeline.AccessTokenFromContext(c)
	if account == nil || accessToken == "" {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "request missing pipeline context"})
		return nil, false
	}

	conn, ok := s.store.GetConnection(account.ConnectionID)
	if !ok {
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: "account's connection no longer exists",
			Code:  "ORPHANED_ACCOUNT",
		})
		return nil, false
	}

	opts := []ebay.Option{ebay.WithAccountID(account.ID)}
	if s.logger != nil {
		opts = append(opts, ebay.WithLogger(s.logger))
	}
	if s.metrics != nil {
		opts = append(opts, ebay.WithMetrics(s.metrics))
	}
	if s.ebayBaseURL != "" {
		opts = append(opts, ebay.WithBaseURL(s.ebayBaseURL))
	}
	return ebay.NewClient(accessToken, conn.Environment, opts...), true
}

// upstreamError shapes an eBay failure for the caller, preserving the
// upstream status so clients can tell a 404 SKU from a gateway fault.
func (s *Server) upstreamError(c *gin.Context, err error) {
	var apiErr *apperrors.APIError
	if stderrors.As(err, &apiErr) {
		c.JSON(apiErr.StatusCode, gin.H{
			"error":  "ebay api error",
			"kind":   apiErr.Kind,
			"detail": apiErr.Body,
		})
		return
	}
	c.JSON(http.StatusBadGateway, ErrorResponse{Error: "upstream request failed", Message: err.Error()})
}

func pageParams(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.Query("limit"))
	offset, _ = strconv.Atoi(c.Query("offset"))
	return limit, offset
}

func (s *Server) handleListInventory(c *gin.Context) {
	client, ok := s.ebayClientFor(c)
	if !ok {
		return
	}
	limit, offset := pageParams(c)
	page, err := client.ListInventoryItems(c.Request.Context(), limit, offset)
	if err != nil {
		s.upstreamError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (s *Server) handleGetInventoryItem(c *gin.Context) {
	client, ok := s.ebayClientFor(c)
	if !ok {
		return
	}
	item, err := client.GetInventoryItem(c.Request.Context(), c.Param("sku"))
	if err != nil {
		s.upstreamError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (s *Server) handlePutInventoryItem(c *gin.Context) {
	var item ebay.InventoryItem
	if err := c.ShouldBindJSON(&item); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid inventory item", Message: err.Error()})
		return
	}
	client, ok := s.ebayClientFor(c)
	if !ok {
		return
	}
	if err := client.PutInventoryItem(c.Request.Context(), c.Param("sku"), &item); err != nil {
		s.upstreamError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleDeleteInventoryItem(c *gin.Context) {
	client, ok := s.ebayClientFor(c)
	if !ok {
		return
	}
	if err := client.DeleteInventoryItem(c.Request.Context(), c.Param("sku")); err != nil {
		s.upstreamError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type bulkMigrateRequest struct {
	ListingIDs []string `json:"listing_ids" binding:"required,min=1"`
}

func (s *Server) handleBulkMigrate(c *gin.Context) {
	var req bulkMigrateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request", Message: err.Error()})
		return
	}
	client, ok := s.ebayClientFor(c)
	if !ok {
		return
	}
	resp, err := client.BulkMigrateListings(c.Request.Context(), req.ListingIDs)
	if err != nil {
		s.upstreamError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListOffers(c *gin.Context) {
	client, ok := s.ebayClientFor(c)
	if !ok {
		return
	}
	limit, offset := pageParams(c)
	page, err := client.ListOffers(c.Request.Context(), c.Query("sku"), limit, offset)
	if err != nil {
		s.upstreamError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (s *Server) handleCreateOffer(c *gin.Context) {
	var offer ebay.Offer
	if err := c.ShouldBindJSON(&offer); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid offer", Message: err.Error()})
		return
	}
	client, ok := s.ebayClientFor(c)
	if !ok {
		return
	}
	resp, err := client.CreateOffer(c.Request.Context(), &offer)
	if err != nil {
		s.upstreamError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (s *Server) handleGetOffer(c *gin.Context) {
	client, ok := s.ebayClientFor(c)
	if !ok {
		return
	}
	offer, err := client.GetOffer(c.Request.Context(), c.Param("offer_id"))
	if err != nil {
		s.upstreamError(c, err)
		return
	}
	c.JSON(http.StatusOK, offer)
}

func (s *Server) handleUpdateOffer(c *gin.Context) {
	var offer ebay.Offer
	if err := c.ShouldBindJSON(&offer); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid offer", Message: err.Error()})
		return
	}
	client, ok := s.ebayClientFor(c)
	if !ok {
		return
	}
	if err := client.UpdateOffer(c.Request.Context(), c.Param("offer_id"), &offer); err != nil {
		s.upstreamError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleDeleteOffer(c *gin.Context) {
	client, ok := s.ebayClientFor(c)
	if !ok {
		return
	}
	if err := client.DeleteOffer(c.Request.Context(), c.Param("offer_id")); err != nil {
		s.upstreamError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handlePublishOffer(c *gin.Context) {
	client, ok := s.ebayClientFor(c)
	if !ok {
		return
	}
	resp, err := client.PublishOffer(c.Request.Context(), c.Param("offer_id"))
	if err != nil {
		s.upstreamError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleWithdrawOffer(c *gin.Context) {
	client, ok := s.ebayClientFor(c)
	if !ok {
		return
	}
	if err := client.WithdrawOffer(c.Request.Context(), c.Param("offer_id")); err != nil {
		s.upstreamError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleListLocations(c *gin.Context) {
	client, ok := s.ebayClientFor(c)
	if !ok {
		return
	}
	limit, offset := pageParams(c)
	page, err := client.ListLocations(c.Request.Context(), limit, offset)
	if err != nil {
		s.upstreamError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (s *Server) handleGetLocation(c *gin.Context) {
	client, ok := s.ebayClientFor(c)
	if !ok {
		return
	}
	loc, err := client.GetLocation(c.Request.Context(), c.Param("key"))
	if err != nil {
		s.upstreamError(c, err)
		return
	}
	c.JSON(http.StatusOK, loc)
}

func (s *Server) handleCreateLocation(c *gin.Context) {
	var loc ebay.Location
	if err := c.ShouldBindJSON(&loc); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid location", Message: err.Error()})
		return
	}
	client, ok := s.ebayClientFor(c)
	if !ok {
		return
	}
	if err := client.CreateLocation(c.Request.Context(), c.Param("key"), &loc); err != nil {
		s.upstreamError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleDeleteLocation(c *gin.Context) {
	client, ok := s.ebayClientFor(c)
	if !ok {
		return
	}
	if err := client.DeleteLocation(c.Request.Context(), c.Param("key")); err != nil {
		s.upstreamError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleListPolicies(c *gin.Context) {
	policyType, err := ebay.ParsePolicyType(c.Param("type"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unknown policy type", Message: err.Error()})
		return
	}
	client, ok := s.ebayClientFor(c)
	if !ok {
		return
	}
	page, err := client.Policies(c.Request.Context(), policyType, c.Query("marketplace_id"))
	if err != nil {
		s.upstreamError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

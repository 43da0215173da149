package handler

import (
	"errors"
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/survivor-trade/internal/core/domain"
	"github.com/rl1809/survivor-trade/internal/core/service"
)

const idempotencyHeader = "Idempotency-Key"

type HTTPHandler struct {
	survivors *service.SurvivorService
	items     *service.ItemService
	ledger    *service.LedgerService
	trades    *service.TradeService
	reports   *service.ReportService
	logger    *zap.Logger
}

func NewHTTPHandler(
	survivors *service.SurvivorService,
	items *service.ItemService,
	ledger *service.LedgerService,
	trades *service.TradeService,
	reports *service.ReportService,
	logger *zap.Logger,
) *HTTPHandler {
	return &HTTPHandler{
		survivors: survivors,
		items:     items,
		ledger:    ledger,
		trades:    trades,
		reports:   reports,
		logger:    logger,
	}
}

// NewRouter mounts every route on a gin engine with access logging and panic
// recovery. gatherer backs /metrics.
func NewRouter(h *HTTPHandler, gatherer prometheus.Gatherer, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	r.Use(ginzap.RecoveryWithZap(logger, true))

	r.GET("/health", h.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	survivors := r.Group("/survivors")
	{
		survivors.POST("", h.CreateSurvivor)
		survivors.GET("", h.ListSurvivors)
		survivors.GET("/:id", h.GetSurvivor)
		survivors.PUT("/:id", h.UpdateSurvivor)
		survivors.DELETE("/:id", h.DeleteSurvivor)
		survivors.GET("/:id/inventory", h.ListInventory)
		survivors.GET("/:id/inventory/:itemId", h.CheckInventory)
		survivors.POST("/:id/inventory/add", h.AddInventory)
		survivors.POST("/:id/inventory/remove", h.RemoveInventory)
	}

	items := r.Group("/items")
	{
		items.POST("", h.CreateItem)
		items.GET("", h.ListItems)
		items.GET("/:id", h.GetItem)
		items.PUT("/:id", h.UpdateItem)
		items.DELETE("/:id", h.DeleteItem)
	}

	trades := r.Group("/trades")
	{
		trades.POST("", h.SettleTrade)
		trades.GET("", h.ListTrades)
		trades.GET("/:id", h.GetTrade)
		trades.DELETE("/:id", h.DeleteTrade)
		trades.GET("/survivor/:id", h.ListTradesBySurvivor)
	}

	reports := r.Group("/reports")
	{
		reports.GET("/infected-survivors", h.InfectedReport)
		reports.GET("/non-infected-survivors", h.NonInfectedReport)
		reports.GET("/average-resources", h.AverageResourcesReport)
	}

	return r
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Survivors

type UpdateSurvivorRequest struct {
	Name             *string          `json:"name"`
	Age              *int             `json:"age"`
	Gender           *string          `json:"gender"`
	Infected         *bool            `json:"infected"`
	LastLocationLat  *decimal.Decimal `json:"lastLocationLat"`
	LastLocationLong *decimal.Decimal `json:"lastLocationLong"`
}

func (h *HTTPHandler) CreateSurvivor(c *gin.Context) {
	var req service.SurvivorInput
	if !h.bind(c, &req) {
		return
	}
	survivor, err := h.survivors.Create(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, survivor)
}

func (h *HTTPHandler) ListSurvivors(c *gin.Context) {
	survivors, err := h.survivors.List(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, survivors)
}

func (h *HTTPHandler) GetSurvivor(c *gin.Context) {
	survivor, err := h.survivors.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, survivor)
}

func (h *HTTPHandler) UpdateSurvivor(c *gin.Context) {
	var req UpdateSurvivorRequest
	if !h.bind(c, &req) {
		return
	}
	survivor, err := h.survivors.Update(c.Request.Context(), c.Param("id"), domain.SurvivorPatch{
		Name:             req.Name,
		Age:              req.Age,
		Gender:           req.Gender,
		Infected:         req.Infected,
		LastLocationLat:  req.LastLocationLat,
		LastLocationLong: req.LastLocationLong,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, survivor)
}

func (h *HTTPHandler) DeleteSurvivor(c *gin.Context) {
	survivor, err := h.survivors.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, survivor)
}

// Inventory

type InventoryChangeRequest struct {
	ItemID   string `json:"itemId" binding:"required"`
	Quantity int    `json:"quantity"`
}

type InventoryQuantityResponse struct {
	SurvivorID string `json:"survivorId"`
	ItemID     string `json:"itemId"`
	Quantity   int    `json:"quantity"`
}

func (h *HTTPHandler) ListInventory(c *gin.Context) {
	entries, err := h.ledger.ListBySurvivor(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *HTTPHandler) CheckInventory(c *gin.Context) {
	survivorID, itemID := c.Param("id"), c.Param("itemId")
	quantity, err := h.ledger.CheckInventory(c.Request.Context(), survivorID, itemID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, InventoryQuantityResponse{SurvivorID: survivorID, ItemID: itemID, Quantity: quantity})
}

func (h *HTTPHandler) AddInventory(c *gin.Context) {
	var req InventoryChangeRequest
	if !h.bind(c, &req) {
		return
	}
	entry, err := h.ledger.Increment(c.Request.Context(), c.Param("id"), req.ItemID, req.Quantity)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *HTTPHandler) RemoveInventory(c *gin.Context) {
	var req InventoryChangeRequest
	if !h.bind(c, &req) {
		return
	}
	entry, err := h.ledger.Decrement(c.Request.Context(), c.Param("id"), req.ItemID, req.Quantity)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// Items

type UpdateItemRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func (h *HTTPHandler) CreateItem(c *gin.Context) {
	var req service.ItemInput
	if !h.bind(c, &req) {
		return
	}
	item, err := h.items.Create(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *HTTPHandler) ListItems(c *gin.Context) {
	items, err := h.items.List(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *HTTPHandler) GetItem(c *gin.Context) {
	item, err := h.items.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *HTTPHandler) UpdateItem(c *gin.Context) {
	var req UpdateItemRequest
	if !h.bind(c, &req) {
		return
	}
	item, err := h.items.Update(c.Request.Context(), c.Param("id"), domain.ItemPatch{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *HTTPHandler) DeleteItem(c *gin.Context) {
	item, err := h.items.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// Trades

func (h *HTTPHandler) SettleTrade(c *gin.Context) {
	var req service.TradeInput
	if !h.bind(c, &req) {
		return
	}
	trade, err := h.trades.Settle(c.Request.Context(), c.GetHeader(idempotencyHeader), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, trade)
}

func (h *HTTPHandler) ListTrades(c *gin.Context) {
	trades, err := h.trades.ListTrades(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, trades)
}

func (h *HTTPHandler) GetTrade(c *gin.Context) {
	trade, err := h.trades.GetTrade(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, trade)
}

func (h *HTTPHandler) ListTradesBySurvivor(c *gin.Context) {
	views, err := h.trades.ListTradesBySurvivor(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *HTTPHandler) DeleteTrade(c *gin.Context) {
	trade, err := h.trades.DeleteTrade(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, trade)
}

// Reports

func (h *HTTPHandler) InfectedReport(c *gin.Context) {
	pct, err := h.reports.InfectedPercentage(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"infectedSurvivors": pct})
}

func (h *HTTPHandler) NonInfectedReport(c *gin.Context) {
	pct, err := h.reports.NonInfectedPercentage(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"nonInfectedSurvivors": pct})
}

func (h *HTTPHandler) AverageResourcesReport(c *gin.Context) {
	avg, err := h.reports.AverageResources(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"averageResources": avg})
}

func (h *HTTPHandler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func (h *HTTPHandler) writeError(c *gin.Context, err error) {
	status := errorStatus(err)
	message := domain.Message(err, "internal error")
	if status == http.StatusInternalServerError {
		message = "internal error"
		h.logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	c.JSON(status, gin.H{"error": message})
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientFunds), errors.Is(err, domain.ErrInsufficientQuantity):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrDuplicateRequest), errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

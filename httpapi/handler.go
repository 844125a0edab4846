package httpapi

import (
	"log/slog"
	"net/http"

	"vidasync"
	"vidasync/macros"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	calc calculator
}

func NewHandler(calc calculator) *Handler {
	return &Handler{calc: calc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/calculate", h.calculate) // POST /nutrition/calculate
	rg.POST("/calories", h.calories)   // POST /nutrition/calories
	rg.POST("/summary", h.summary)     // POST /nutrition/summary
}

type foodsReq struct {
	Foods string `json:"foods"`
}

type summaryReq struct {
	Items []vidasync.Macros `json:"items"`
}

// calculate answers 200 for validity rejections too; only a bad body or an empty list is a 400.
func (h *Handler) calculate(c *gin.Context) {
	var req foodsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	res := h.calc.ComputeNutrition(c.Request.Context(), req.Foods)
	if res.Error != "" {
		c.JSON(http.StatusBadRequest, res)
		return
	}
	if len(res.InvalidItems) > 0 {
		slog.Info("HTTP: Calculation rejected", "invalid", res.InvalidItems, "request_id", c.GetString(ctxRequestIDKey))
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) calories(c *gin.Context) {
	var req foodsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"nutrition": h.calc.Calculate(c.Request.Context(), req.Foods)})
}

// summary totals already computed macros, e.g. the meals of a day.
func (h *Handler) summary(c *gin.Context) {
	var req summaryReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":  len(req.Items),
		"totals": macros.Sum(req.Items),
	})
}

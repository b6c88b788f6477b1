// Package api exposes the loaded catalog over a read-only JSON API.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pokedex-pipeline/internal/store/postgres"
)

// Reader is the query surface the handlers need from the store.
type Reader interface {
	GetPokemon(ctx context.Context, id int) (*postgres.PersistedRecord, error)
	ListPokemon(ctx context.Context, p postgres.ListParams) ([]*postgres.PersistedRecord, error)
	CountPokemon(ctx context.Context) (int, error)
}

type Handler struct {
	Store Reader
}

// Router builds the gin engine with all read routes registered.
func Router(h *Handler) *gin.Engine {
	r := gin.Default()
	r.GET("/healthz", h.Health)
	r.GET("/pokemon", h.ListPokemon)
	r.GET("/pokemon/:id", h.GetPokemon)
	return r
}

func (h *Handler) Health(c *gin.Context) {
	n, err := h.Store.CountPokemon(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "pokemon": n})
}

func (h *Handler) GetPokemon(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a positive integer"})
		return
	}
	rec, err := h.Store.GetPokemon(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// ListPokemon supports limit/offset pagination, a case-insensitive name
// filter, a minimum base-stat-total filter, and whitelisted ordering.
func (h *Handler) ListPokemon(c *gin.Context) {
	var p postgres.ListParams
	p.Limit = intQuery(c, "limit", 20)
	p.Offset = intQuery(c, "offset", 0)
	p.NameContains = c.Query("name_contains")
	p.OrderBy = c.DefaultQuery("order_by", "id")
	p.Desc = c.Query("desc") == "true"
	if v := c.Query("min_bst"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "min_bst must be an integer"})
			return
		}
		p.MinBaseStatTotal = &n
	}
	if !postgres.ValidOrderColumn(p.OrderBy) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported order_by column"})
		return
	}

	recs, err := h.Store.ListPokemon(c.Request.Context(), p)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(recs), "results": recs})
}

func intQuery(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

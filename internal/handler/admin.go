package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"flashbot-backend/internal/model"
	"flashbot-backend/internal/service"
	"flashbot-backend/internal/store"
	"flashbot-backend/pkg/apierror"
	"flashbot-backend/pkg/response"
)

// AdminHandler handles admin-related HTTP requests.
type AdminHandler struct {
	indexer   *service.Indexer
	store     store.CatalogStore
	storeType string // sqlite or mysql
	startTime time.Time
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(indexer *service.Indexer, st store.CatalogStore, storeType string) *AdminHandler {
	return &AdminHandler{
		indexer:   indexer,
		store:     st,
		storeType: storeType,
		startTime: time.Now(),
	}
}

// Reindex handles POST /api/v1/admin/reindex. The rebuild runs in the
// background; a build already in progress yields 409.
func (h *AdminHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	if h.indexer.Building() {
		response.Error(w, apierror.Conflict("a rebuild is already in progress"))
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		if _, err := h.indexer.Rebuild(ctx); err != nil && !errors.Is(err, service.ErrBuildInProgress) {
			log.Printf("[AdminHandler] Background rebuild failed: %v", err)
		}
	}()

	response.Accepted(w, map[string]string{"status": "rebuild started"})
}

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats := make(map[string]interface{})

	// System info
	stats["uptime_seconds"] = int64(time.Since(h.startTime).Seconds())
	stats["uptime_human"] = time.Since(h.startTime).Round(time.Second).String()
	stats["server_time"] = time.Now().Format(time.RFC3339)
	stats["store_type"] = h.storeType
	stats["rebuilding"] = h.indexer.Building()

	// Memory stats
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats["memory"] = map[string]interface{}{
		"alloc_mb":      float64(memStats.Alloc) / 1024 / 1024,
		"sys_mb":        float64(memStats.Sys) / 1024 / 1024,
		"heap_alloc_mb": float64(memStats.HeapAlloc) / 1024 / 1024,
		"num_gc":        memStats.NumGC,
		"goroutines":    runtime.NumGoroutine(),
	}

	// Catalog stats
	catalogStats, err := h.store.Stats(ctx)
	if err == nil {
		catalogStats["status"] = "ok"
		stats["catalog"] = catalogStats
	} else if errors.Is(err, model.ErrStoreUnavailable) {
		stats["catalog"] = map[string]interface{}{"status": "no generation yet"}
	} else {
		stats["catalog"] = map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		}
	}

	// Discard telemetry
	discards, err := h.store.DiscardStats(ctx)
	if err == nil {
		stats["discards"] = discards
	}

	// Runtime info
	stats["runtime"] = map[string]interface{}{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
	}

	response.OK(w, stats)
}

// GetSample handles GET /api/v1/admin/sample?n=10
func (h *AdminHandler) GetSample(w http.ResponseWriter, r *http.Request) {
	n := 10
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			response.Error(w, apierror.BadRequest("n must be between 1 and 100"))
			return
		}
		n = parsed
	}

	products, err := h.store.SampleProducts(r.Context(), n)
	if err != nil {
		if errors.Is(err, model.ErrStoreUnavailable) {
			response.Error(w, apierror.ServiceUnavailable("catalog is not ready yet"))
			return
		}
		log.Printf("[AdminHandler] Sample failed: %v", err)
		response.Error(w, apierror.InternalError(""))
		return
	}

	response.OK(w, map[string]interface{}{
		"count":    len(products),
		"products": products,
	})
}

// GetHealth handles GET /api/v1/admin/health
func (h *AdminHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

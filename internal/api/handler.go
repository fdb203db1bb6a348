package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"catalogsync/internal"
	"catalogsync/internal/reconcile"
	"catalogsync/internal/storage"
)

// SyncService is the part of reconcile.Service the HTTP layer drives.
type SyncService interface {
	StartSync(ctx context.Context, force bool) (reconcile.StartResult, error)
	Status(ctx context.Context) (internal.SyncRun, error)
	History(ctx context.Context) ([]internal.HistoryEntry, error)
	Reset(ctx context.Context) error
	Settings(ctx context.Context) (internal.SyncSettings, error)
	UpdateSettings(ctx context.Context, patch reconcile.SettingsPatch) (internal.SyncSettings, error)
	LastSuccess(ctx context.Context) (*time.Time, error)
	ListCatalog() ([]internal.Product, error)
	Integrity() storage.IntegrityReport
	Poke(ctx context.Context)
}

type Handler struct {
	svc SyncService
}

func NewHandler(svc SyncService) *Handler {
	return &Handler{svc: svc}
}

type configResponse struct {
	AutoSync        bool       `json:"autoSync"`
	IntervalMinutes int        `json:"intervalMinutes"`
	LastSync        *time.Time `json:"lastSync"`
}

// StartSync handles POST /api/sync?force=bool. The run always starts unless
// another run holds the lock.
func (h *Handler) StartSync(c *gin.Context) {
	force, err := parseBoolQuery(c, "force")
	if err != nil {
		fail(c, http.StatusBadRequest, "INVALID_FORCE", err.Error())
		return
	}

	res, err := h.svc.StartSync(c.Request.Context(), force)
	if err != nil {
		internalError(c, err)
		return
	}
	if res.AlreadyRunning {
		c.JSON(http.StatusConflict, Response{
			Success: false,
			Data:    res,
			Error:   &ErrorInfo{Code: string(internal.ErrConcurrentRunRejected), Message: "a sync run is already in progress"},
		})
		return
	}
	ok(c, http.StatusAccepted, res)
}

func (h *Handler) Status(c *gin.Context) {
	run, err := h.svc.Status(c.Request.Context())
	if err != nil {
		internalError(c, err)
		return
	}
	ok(c, http.StatusOK, run)
}

func (h *Handler) History(c *gin.Context) {
	entries, err := h.svc.History(c.Request.Context())
	if err != nil {
		internalError(c, err)
		return
	}
	ok(c, http.StatusOK, entries)
}

func (h *Handler) Reset(c *gin.Context) {
	if err := h.svc.Reset(c.Request.Context()); err != nil {
		internalError(c, err)
		return
	}
	run, err := h.svc.Status(c.Request.Context())
	if err != nil {
		internalError(c, err)
		return
	}
	ok(c, http.StatusOK, run)
}

func (h *Handler) GetConfig(c *gin.Context) {
	h.writeConfig(c)
}

func (h *Handler) UpdateConfig(c *gin.Context) {
	var patch reconcile.SettingsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		fail(c, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	if patch.IntervalMinutes != nil && *patch.IntervalMinutes <= 0 {
		fail(c, http.StatusBadRequest, "INVALID_INTERVAL", "intervalMinutes must be positive")
		return
	}
	if _, err := h.svc.UpdateSettings(c.Request.Context(), patch); err != nil {
		internalError(c, err)
		return
	}
	h.writeConfig(c)
}

func (h *Handler) writeConfig(c *gin.Context) {
	ctx := c.Request.Context()
	settings, err := h.svc.Settings(ctx)
	if err != nil {
		internalError(c, err)
		return
	}
	last, err := h.svc.LastSuccess(ctx)
	if err != nil {
		internalError(c, err)
		return
	}
	ok(c, http.StatusOK, configResponse{AutoSync: settings.AutoSync, IntervalMinutes: settings.IntervalMinutes, LastSync: last})
}

// ListCatalog handles GET /api/catalog. Reading the catalog also gives a due
// auto-sync the chance to start.
func (h *Handler) ListCatalog(c *gin.Context) {
	h.svc.Poke(c.Request.Context())

	products, err := h.svc.ListCatalog()
	if err != nil {
		internalError(c, err)
		return
	}

	category := strings.TrimSpace(c.Query("category"))
	q := strings.ToLower(strings.TrimSpace(c.Query("q")))
	if category == "" && q == "" {
		ok(c, http.StatusOK, products)
		return
	}
	filtered := []internal.Product{}
	for _, p := range products {
		if category != "" && !strings.EqualFold(p.Category, category) {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(p.Name), q) {
			continue
		}
		filtered = append(filtered, p)
	}
	ok(c, http.StatusOK, filtered)
}

func (h *Handler) Integrity(c *gin.Context) {
	ok(c, http.StatusOK, h.svc.Integrity())
}

func parseBoolQuery(c *gin.Context, key string) (bool, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}

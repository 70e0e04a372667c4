package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/msle237-lees/homelab-monitor/internal/history"
	"github.com/msle237-lees/homelab-monitor/internal/metrics"
	"github.com/msle237-lees/homelab-monitor/internal/store"
)

// Router provides the machines API consumed by the agent and the UI.
// Endpoints (under basePath, which may be empty):
//
//	GET    /                       liveness; the supervisor's health probe target
//	POST   /machines               form-encoded upsert of a full reading
//	PUT    /machines/:id           form-encoded partial update
//	GET    /machines               list (limit, offset, machine_name filter)
//	GET    /machines/:id           single machine
//	DELETE /machines/:id           remove machine
//	GET    /machines/:id/readings  recent readings (limit)
//	GET    /metrics                prometheus
type Router struct {
	st       store.Store
	hist     *history.Multi
	basePath string
	logger   *slog.Logger
}

func NewRouter(st store.Store, hist *history.Multi, basePath string, logger *slog.Logger) *Router {
	if hist == nil {
		hist = history.NewMulti(logger)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{st: st, hist: hist, basePath: sanitizeBase(basePath), logger: logger}
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/", r.handleRoot)
	group.GET("/metrics", gin.WrapH(metrics.Handler()))
	group.POST("/machines", r.handleUpsert)
	group.PUT("/machines/:id", r.handleUpdate)
	group.GET("/machines", r.handleList)
	group.GET("/machines/:id", r.handleGet)
	group.DELETE("/machines/:id", r.handleDelete)
	group.GET("/machines/:id/readings", r.handleReadings)
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
// Shut it down via http.Server's Close or Shutdown.
func NewServer(addr, basePath string, st store.Store, hist *history.Multi, logger *slog.Logger) *http.Server {
	r := NewRouter(st, hist, basePath, logger)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

type listResp struct {
	Items  []store.Machine `json:"items"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

func (r *Router) handleRoot(c *gin.Context) {
	writeJSON(c, http.StatusOK, gin.H{"ok": true, "service": "homelab machines api"})
}

// upsertForm mirrors the agent's form-encoded payload. cpu_temp is optional:
// an absent field means the sensor was unavailable, stored as NULL.
type upsertForm struct {
	MachineID    string   `form:"machine_id" binding:"required"`
	MachineName  string   `form:"machine_name" binding:"required"`
	CPUCores     int      `form:"cpu_cores"`
	RAMUsed      int64    `form:"ram_used"`
	RAMTotal     int64    `form:"ram_total"`
	StorageUsed  int64    `form:"storage_used"`
	StorageTotal int64    `form:"storage_total"`
	CPUTemp      *float64 `form:"cpu_temp"`
	NetworkBps   int64    `form:"network_bps"`
}

func (r *Router) handleUpsert(c *gin.Context) {
	var f upsertForm
	if err := c.ShouldBind(&f); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid form: " + err.Error()})
		return
	}
	if !isSafeID(f.MachineID) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid machine_id: allowed [A-Za-z0-9._-]"})
		return
	}
	m := store.Machine{
		ID:           f.MachineID,
		Name:         f.MachineName,
		CPUCores:     f.CPUCores,
		RAMUsed:      f.RAMUsed,
		RAMTotal:     f.RAMTotal,
		StorageUsed:  f.StorageUsed,
		StorageTotal: f.StorageTotal,
		CPUTemp:      f.CPUTemp,
		NetworkBps:   f.NetworkBps,
	}
	saved, err := r.st.UpsertMachine(c.Request.Context(), m)
	if err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	reading := store.Reading{
		MachineID:    saved.ID,
		CPUCores:     saved.CPUCores,
		RAMUsed:      saved.RAMUsed,
		RAMTotal:     saved.RAMTotal,
		StorageUsed:  saved.StorageUsed,
		StorageTotal: saved.StorageTotal,
		CPUTemp:      saved.CPUTemp,
		NetworkBps:   saved.NetworkBps,
		At:           saved.UpdatedAt,
	}
	if err := r.st.AppendReading(c.Request.Context(), reading); err != nil {
		r.logger.Warn("append reading failed", "machine", saved.ID, "error", err)
	}
	r.hist.Send(c.Request.Context(), history.Event{
		Type:       history.EventReading,
		OccurredAt: saved.UpdatedAt,
		Reading:    reading,
	})
	metrics.ReadingIngested(saved.ID)
	r.refreshMachinesGauge(c.Request.Context())

	writeJSON(c, http.StatusOK, saved)
}

type updateForm struct {
	MachineName  *string  `form:"machine_name"`
	CPUCores     *int     `form:"cpu_cores"`
	RAMUsed      *int64   `form:"ram_used"`
	RAMTotal     *int64   `form:"ram_total"`
	StorageUsed  *int64   `form:"storage_used"`
	StorageTotal *int64   `form:"storage_total"`
	CPUTemp      *float64 `form:"cpu_temp"`
	NetworkBps   *int64   `form:"network_bps"`
}

func (r *Router) handleUpdate(c *gin.Context) {
	id := c.Param("id")
	if !isSafeID(id) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid machine_id"})
		return
	}
	var f updateForm
	if err := c.ShouldBind(&f); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid form: " + err.Error()})
		return
	}
	p := store.Patch{
		Name:         f.MachineName,
		CPUCores:     f.CPUCores,
		RAMUsed:      f.RAMUsed,
		RAMTotal:     f.RAMTotal,
		StorageUsed:  f.StorageUsed,
		StorageTotal: f.StorageTotal,
		CPUTemp:      f.CPUTemp,
		NetworkBps:   f.NetworkBps,
	}
	m, err := r.st.UpdateMachine(c.Request.Context(), id, p)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(c, http.StatusNotFound, errorResp{Error: "machine not found"})
		return
	}
	if err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, m)
}

func (r *Router) handleList(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	f := store.ListFilter{
		Name:   c.Query("machine_name"),
		Limit:  limit,
		Offset: offset,
	}.Clamp()
	items, total, err := r.st.ListMachines(c.Request.Context(), f)
	if err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, listResp{Items: items, Total: total, Limit: f.Limit, Offset: f.Offset})
}

func (r *Router) handleGet(c *gin.Context) {
	id := c.Param("id")
	m, err := r.st.GetMachine(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(c, http.StatusNotFound, errorResp{Error: "machine not found"})
		return
	}
	if err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, m)
}

func (r *Router) handleDelete(c *gin.Context) {
	id := c.Param("id")
	err := r.st.DeleteMachine(c.Request.Context(), id)
	if err == nil {
		r.hist.Send(c.Request.Context(), history.Event{
			Type:       history.EventDelete,
			OccurredAt: time.Now().UTC(),
			Reading:    store.Reading{MachineID: id},
		})
	}
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(c, http.StatusNotFound, errorResp{Error: "machine not found"})
		return
	}
	if err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	r.refreshMachinesGauge(c.Request.Context())
	c.Status(http.StatusNoContent)
}

func (r *Router) handleReadings(c *gin.Context) {
	id := c.Param("id")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if _, err := r.st.GetMachine(c.Request.Context(), id); errors.Is(err, store.ErrNotFound) {
		writeJSON(c, http.StatusNotFound, errorResp{Error: "machine not found"})
		return
	}
	rs, err := r.st.RecentReadings(c.Request.Context(), id, limit)
	if err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, rs)
}

func (r *Router) refreshMachinesGauge(ctx context.Context) {
	_, total, err := r.st.ListMachines(ctx, store.ListFilter{Limit: 1})
	if err == nil {
		metrics.SetMachinesTracked(total)
	}
}

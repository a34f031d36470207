package api

import (
	"context"
	"encoding/json"
	"time"

	"TradeDash/internal/domain/models"
	domrepo "TradeDash/internal/domain/repository"
	"TradeDash/internal/handler/ws"
	"TradeDash/internal/service/ratelimit"
	"TradeDash/internal/usecase"
	pkgcache "TradeDash/pkg/cache"
	xhttp "TradeDash/pkg/http"
	xlogger "TradeDash/pkg/logger"

	"github.com/labstack/echo/v4"
)

const historyCacheTTL = 15 * time.Second

// DashboardHandler implements the Echo-based dashboard backend API.
type DashboardHandler struct {
	logger    *xlogger.Logger
	signals   *usecase.SignalView
	accounts  *usecase.AccountView
	archive   domrepo.SignalArchive // nil when the archive is disabled
	hub       *ws.Hub
	histCache *pkgcache.MemoryCache
	limiter   *ratelimit.Limiter
}

func NewDashboardHandler(
	logger *xlogger.Logger,
	signals *usecase.SignalView,
	accounts *usecase.AccountView,
	archive domrepo.SignalArchive,
	hub *ws.Hub,
) *DashboardHandler {
	return &DashboardHandler{
		logger:    logger,
		signals:   signals,
		accounts:  accounts,
		archive:   archive,
		hub:       hub,
		histCache: pkgcache.NewMemoryCache(pkgcache.WithMemoryMaxSize(100)),
		limiter:   ratelimit.New(),
	}
}

func (h *DashboardHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/refresh", h.Refresh)
	g.GET("/signals", h.Signals)
	g.GET("/owners", h.Owners)
	g.GET("/loading", h.Loading)
	g.GET("/history", h.History)
	g.POST("/accounts/refresh", h.RefreshAccounts)
	g.GET("/accounts/hierarchy", h.Hierarchy)
	g.GET("/accounts/totals", h.Totals)
	if h.hub != nil {
		e.GET("/ws", h.hub.Serve)
	}
}

// Refresh switches scope and asks the coordinator for a refresh cycle.
// Dedup/cooldown rejections are reported as accepted=false, not errors.
func (h *DashboardHandler) Refresh(c echo.Context) error {
	req := &models.RefreshRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	// per-bot burst guard in front of the coordinator's own cooldown
	if !h.limiter.Allow("refresh:"+req.BotID, 5, 1) {
		return xhttp.DataResponse(c, 429, map[string]interface{}{"accepted": false})
	}

	h.signals.SetScope(models.FetchParams{
		BotID:      req.BotID,
		OwnerScope: req.OwnerScope,
		AdminView:  req.AdminView,
	})
	accepted := h.signals.RequestRefresh(c.Request().Context())
	return xhttp.SuccessResponse(c, map[string]interface{}{"accepted": accepted})
}

// Signals applies the filter criteria and returns the visible subset.
func (h *DashboardHandler) Signals(c echo.Context) error {
	req := &models.SignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	h.signals.SetFilterCriteria(criteriaFromRequest(req))
	view := h.signals.VisibleSignals()

	return xhttp.SuccessResponse(c, map[string]interface{}{
		"raw":        view.Raw,
		"executions": view.Executions,
		"errors":     h.signals.FeedErrors(),
		"loading":    h.signals.IsLoading(),
	})
}

func (h *DashboardHandler) Owners(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.signals.AvailableOwners())
}

func (h *DashboardHandler) Loading(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]bool{"loading": h.signals.IsLoading()})
}

// History serves archived signals; responses are briefly cached since
// the archive query is the most expensive call on this surface.
func (h *DashboardHandler) History(c echo.Context) error {
	if h.archive == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("history archive is not configured"))
	}

	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	from := xhttp.ParseTimeDefault(req.From, time.Now().AddDate(0, 0, -7))
	to := xhttp.ParseTimeDefault(req.To, time.Now())
	if from.After(to) {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("from must not be after to"))
	}

	cacheKey := pkgcache.GenerateKeyWithParams("history", req.BotID, from.Unix(), to.Unix(), req.Limit)
	var cached string
	if err := h.histCache.Get(c.Request().Context(), cacheKey, &cached); err == nil {
		return c.JSONBlob(200, []byte(cached))
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()
	signals, err := h.archive.History(ctx, req.BotID, from, to, req.Limit)
	if err != nil {
		h.logger.Error("history query error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("history query failed").WithError(err))
	}

	body, err := json.Marshal(xhttp.APIResponse{Status: 200, Message: "OK", Data: signals})
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	_ = h.histCache.Set(c.Request().Context(), cacheKey, string(body), historyCacheTTL)
	return c.JSONBlob(200, body)
}

func (h *DashboardHandler) RefreshAccounts(c echo.Context) error {
	req := &models.RefreshRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.accounts.Refresh(c.Request().Context(), req.BotID); err != nil {
		h.logger.Error("account refresh error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, h.accounts.Totals())
}

func (h *DashboardHandler) Hierarchy(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.accounts.Hierarchy())
}

func (h *DashboardHandler) Totals(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.accounts.Totals())
}

func criteriaFromRequest(req *models.SignalsRequest) models.FilterCriteria {
	crit := models.FilterCriteria{
		SearchText:  req.Search,
		Source:      models.SourceSelector(req.Source),
		Status:      models.StatusFilter(req.Status),
		OwnerUserID: req.Owner,
	}
	if t, ok := xhttp.ParseTime(req.From); ok {
		crit.Dates.From = &t
	}
	if t, ok := xhttp.ParseTime(req.To); ok {
		crit.Dates.To = &t
	}
	return crit
}

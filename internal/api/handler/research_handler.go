package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/taxentia/taxentia-api/internal/api/metrics"
	"github.com/taxentia/taxentia-api/internal/core/domain"
	"github.com/taxentia/taxentia-api/internal/core/ports"
	"github.com/taxentia/taxentia-api/internal/core/service"
)

type ResearchHandler struct {
	research ports.ResearchService
}

func NewResearchHandler(research ports.ResearchService) *ResearchHandler {
	return &ResearchHandler{research: research}
}

// Submit runs a research question through retrieval and analysis and returns
// the persisted query with its structured response.
//
// @Summary      Submit a research question
// @Tags         research
// @Accept       json
// @Produce      json
// @Param        body  body      queryRequest  true  "Research question"
// @Success      200   {object}  domain.TaxQuery
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      429   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/taxentia/query [post]
// @Security     BearerAuth
func (h *ResearchHandler) Submit(c echo.Context) error {
	userID, err := ctxUserID(c)
	if err != nil {
		return err
	}

	var req queryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	start := time.Now()
	query, err := h.research.Submit(c.Request().Context(), userID, req.Query)
	if err != nil {
		if errors.Is(err, domain.ErrQuotaExceeded) {
			metrics.QuotaRejectionsTotal.Inc()
		}
		metrics.ResearchDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return err
	}

	outcome := "ok"
	if query.Response != nil && query.Response.Conclusion == service.FallbackConclusion {
		outcome = "fallback"
		metrics.QueryFallbacksTotal.Inc()
	}
	metrics.ResearchDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	metrics.QueriesTotal.WithLabelValues(query.ConfidenceColor).Inc()

	return c.JSON(http.StatusOK, query)
}

// History lists the authenticated user's queries, most recent first.
//
// @Summary      Query history
// @Tags         research
// @Produce      json
// @Success      200  {object}  historyResponse
// @Failure      401  {object}  map[string]string
// @Router       /api/queries [get]
// @Security     BearerAuth
func (h *ResearchHandler) History(c echo.Context) error {
	userID, err := ctxUserID(c)
	if err != nil {
		return err
	}

	queries, err := h.research.History(c.Request().Context(), userID)
	if err != nil {
		return err
	}

	summaries := make([]querySummary, 0, len(queries))
	for _, q := range queries {
		summaries = append(summaries, toQuerySummary(q))
	}

	return c.JSON(http.StatusOK, historyResponse{Queries: summaries, Total: len(summaries)})
}

// Get returns one of the user's queries with its full structured response.
//
// @Summary      Get a query by id
// @Tags         research
// @Produce      json
// @Param        id   path      string  true  "Query id"
// @Success      200  {object}  domain.TaxQuery
// @Failure      401  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/queries/{id} [get]
// @Security     BearerAuth
func (h *ResearchHandler) Get(c echo.Context) error {
	userID, err := ctxUserID(c)
	if err != nil {
		return err
	}

	query, err := h.research.Get(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, query)
}

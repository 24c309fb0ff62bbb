package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/taxentia/taxentia-api/internal/core/domain"
	"github.com/taxentia/taxentia-api/internal/core/ports"
)

// authorityResponse is the listing view of an authority. Content is omitted:
// full text is prompt material, not browsing material.
type authorityResponse struct {
	ID          string    `json:"id"`
	SourceType  string    `json:"source_type"`
	Citation    string    `json:"citation"`
	Title       string    `json:"title,omitempty"`
	Section     string    `json:"section,omitempty"`
	URL         string    `json:"url,omitempty"`
	VersionDate string    `json:"version_date,omitempty"`
	IngestedAt  time.Time `json:"ingested_at"`
}

type authorityListResponse struct {
	Authorities []authorityResponse `json:"authorities"`
	Total       int                 `json:"total"`
}

func toAuthorityResponse(a *domain.Authority) authorityResponse {
	return authorityResponse{
		ID:          a.ID,
		SourceType:  string(a.SourceType),
		Citation:    a.Citation,
		Title:       a.Title,
		Section:     a.Section,
		URL:         a.URL,
		VersionDate: a.VersionDate,
		IngestedAt:  a.IngestedAt,
	}
}

type AuthorityHandler struct {
	authorities ports.AuthorityRepository
}

func NewAuthorityHandler(authorities ports.AuthorityRepository) *AuthorityHandler {
	return &AuthorityHandler{authorities: authorities}
}

// List returns ingested authorities, optionally filtered by source type.
//
// @Summary      List authorities
// @Tags         authorities
// @Produce      json
// @Param        source_types  query     string  false  "Comma-separated source types (irc,regs,pubs,rulings,cases)"
// @Success      200           {object}  authorityListResponse
// @Failure      400           {object}  map[string]string
// @Failure      401           {object}  map[string]string
// @Router       /api/authorities [get]
// @Security     BearerAuth
func (h *AuthorityHandler) List(c echo.Context) error {
	types, err := parseSourceTypes(c.QueryParam("source_types"))
	if err != nil {
		return err
	}

	authorities, err := h.authorities.List(c.Request().Context(), types)
	if err != nil {
		return err
	}

	out := make([]authorityResponse, 0, len(authorities))
	for _, a := range authorities {
		out = append(out, toAuthorityResponse(a))
	}

	return c.JSON(http.StatusOK, authorityListResponse{Authorities: out, Total: len(out)})
}

// parseSourceTypes splits the comma-separated filter. Empty input means no
// filter; an unknown type rejects the whole request.
func parseSourceTypes(raw string) ([]domain.SourceType, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	types := make([]domain.SourceType, 0, len(parts))
	for _, p := range parts {
		st := domain.SourceType(strings.ToLower(strings.TrimSpace(p)))
		if st == "" {
			continue
		}
		if !st.Valid() {
			return nil, fmt.Errorf("%w: %q", domain.ErrInvalidSourceType, st)
		}
		types = append(types, st)
	}
	return types, nil
}

package server

import (
	"bytes"
	"context"
	"net/http"
	"net/url"

	"report_catalog/internal/catalog"
	"report_catalog/internal/catalog/format"
	"report_catalog/internal/domain/report"

	"github.com/labstack/echo/v4"
)

// reportInfo is the lookup view of a single report.
type reportInfo struct {
	ID            string `json:"id"`
	DisplayName   string `json:"display_name"`
	Engine        string `json:"engine"`
	ReportService string `json:"report_service"`
}

type sourceInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Local bool   `json:"local"`
}

// namedSource is implemented by sources that carry a repository name.
type namedSource interface {
	Name() string
}

func reportList(reports []report.Definition) map[string]interface{} {
	return map[string]interface{}{
		"reports": reports,
		"count":   len(reports),
	}
}

// idParam returns the unescaped :id path parameter.
func idParam(c echo.Context) string {
	raw := c.Param("id")
	if id, err := url.PathUnescape(raw); err == nil {
		return id
	}
	return raw
}

// listReports handles listing reports of every source
func (s *Server) listReports(c echo.Context) error {
	return c.JSON(http.StatusOK, reportList(s.catalog.AllReports(c.Request().Context())))
}

func (s *Server) listOnlineReports(c echo.Context) error {
	return c.JSON(http.StatusOK, reportList(s.catalog.AllOnlineReports(c.Request().Context())))
}

// getReport handles getting a single report
func (s *Server) getReport(c echo.Context) error {
	ctx := c.Request().Context()
	id := idParam(c)

	info := reportInfo{
		ID:            id,
		DisplayName:   s.catalog.DisplayName(ctx, id),
		Engine:        s.catalog.Engine(ctx, id),
		ReportService: s.catalog.ReportService(ctx, id),
	}
	if info.DisplayName == "" && info.Engine == "" && info.ReportService == "" {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "Report not found",
		})
	}

	return c.JSON(http.StatusOK, info)
}

// getTemplate streams the report template
func (s *Server) getTemplate(c echo.Context) error {
	rc := s.catalog.Template(c.Request().Context(), idParam(c))
	if rc == nil {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "Report template not found",
		})
	}
	defer rc.Close()

	return c.Stream(http.StatusOK, echo.MIMEOctetStream, rc)
}

func (s *Server) listSources(c echo.Context) error {
	localID := s.catalog.Local().ID()
	sources := s.catalog.Sources()

	infos := make([]sourceInfo, 0, len(sources))
	for _, src := range sources {
		info := sourceInfo{ID: src.ID(), Local: src.ID() == localID}
		if named, ok := src.(namedSource); ok {
			info.Name = named.Name()
		}
		infos = append(infos, info)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"sources": infos,
		"status":  s.catalog.Status(),
	})
}

func (s *Server) reloadSources(c echo.Context) error {
	// A client that disconnects must not abort a reload halfway.
	res := s.catalog.Reload(context.WithoutCancel(c.Request().Context()))
	return c.JSON(http.StatusOK, res)
}

func (s *Server) listSourceReports(c echo.Context) error {
	id := idParam(c)
	if _, ok := s.catalog.SourceByID(id); !ok {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "Source not found",
		})
	}
	return c.JSON(http.StatusOK, reportList(s.catalog.Reports(c.Request().Context(), id)))
}

func (s *Server) listSourceOnlineReports(c echo.Context) error {
	id := idParam(c)
	if _, ok := s.catalog.SourceByID(id); !ok {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "Source not found",
		})
	}
	return c.JSON(http.StatusOK, reportList(s.catalog.OnlineReports(c.Request().Context(), id)))
}

func (s *Server) catalogText(c echo.Context) error {
	var buf bytes.Buffer
	if err := format.Text(c.Request().Context(), &buf, s.catalog); err != nil {
		s.logger.WithError(err).Error("Failed to render catalog")
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to render catalog",
		})
	}
	return c.Blob(http.StatusOK, echo.MIMETextPlainCharsetUTF8, buf.Bytes())
}

func (s *Server) catalogXLSX(c echo.Context) error {
	var buf bytes.Buffer
	if err := format.XLSX(c.Request().Context(), &buf, s.catalog); err != nil {
		s.logger.WithError(err).Error("Failed to export catalog")
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to export catalog",
		})
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="catalog.xlsx"`)
	return c.Blob(http.StatusOK, format.XLSXContentType, buf.Bytes())
}

var _ format.Catalog = (*catalog.Aggregator)(nil)

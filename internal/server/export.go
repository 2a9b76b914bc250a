package server

import (
	"errors"
	"net/http"

	"report_catalog/internal/catalog"
	"report_catalog/internal/catalog/remote"
	"report_catalog/internal/domain/report"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// The export API serves the local source to peers that use this instance as
// a remote source. Ids travel without the local source prefix.

func (s *Server) exportReports(c echo.Context) error {
	s.logPeer(c, "reports")
	reports, err := s.local.Reports(c.Request().Context())
	if err != nil {
		return s.exportError(c, err)
	}
	return c.JSON(http.StatusOK, s.stripPrefix(reports))
}

func (s *Server) exportOnlineReports(c echo.Context) error {
	s.logPeer(c, "online_reports")
	reports, err := s.local.OnlineReports(c.Request().Context())
	if err != nil {
		return s.exportError(c, err)
	}
	return c.JSON(http.StatusOK, s.stripPrefix(reports))
}

func (s *Server) exportReport(c echo.Context) error {
	s.logPeer(c, "report")
	def, err := s.local.Report(c.Request().Context(), catalog.JoinReportID(s.local.ID(), idParam(c)))
	if err != nil {
		return s.exportError(c, err)
	}
	def.ID = idParam(c)
	return c.JSON(http.StatusOK, def)
}

func (s *Server) exportTemplate(c echo.Context) error {
	s.logPeer(c, "template")
	rc, err := s.local.Template(c.Request().Context(), catalog.JoinReportID(s.local.ID(), idParam(c)))
	if err != nil {
		return s.exportError(c, err)
	}
	defer rc.Close()

	return c.Stream(http.StatusOK, echo.MIMEOctetStream, rc)
}

func (s *Server) stripPrefix(reports []report.Definition) []report.Definition {
	out := make([]report.Definition, 0, len(reports))
	for _, r := range reports {
		if _, localID, err := catalog.SplitReportID(r.ID); err == nil {
			r.ID = localID
		}
		out = append(out, r)
	}
	return out
}

func (s *Server) exportError(c echo.Context, err error) error {
	if errors.Is(err, catalog.ErrReportNotFound) || errors.Is(err, catalog.ErrMalformedReportID) {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "Report not found",
		})
	}
	s.logger.WithError(err).WithField("path", c.Path()).Error("Export request failed")
	return c.JSON(http.StatusInternalServerError, map[string]string{
		"error": "Failed to read local reports",
	})
}

func (s *Server) logPeer(c echo.Context, op string) {
	s.logger.WithFields(logrus.Fields{
		"operation":      op,
		"engine_version": c.Request().Header.Get(remote.EngineVersionHeader),
		"remote_addr":    c.RealIP(),
	}).Debug("Export request")
}

package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/hcap-portal/internal/service"
)

// ReportHandler serves the milestone report and the CSV exports.
type ReportHandler struct {
	Reports *service.ReportService
	Log     *zap.Logger
}

func NewReportHandler(r *service.ReportService, log *zap.Logger) *ReportHandler {
	if r == nil || log == nil {
		panic("nil dependency passed to NewReportHandler")
	}
	return &ReportHandler{Reports: r, Log: log}
}

// Milestones handles GET /milestone-report.
func (h *ReportHandler) Milestones(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	rep, err := h.Reports.Milestones(c.Request().Context(), a)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rep)
}

// HiredCSV handles GET /milestone-report/csv/hired[/:region].
func (h *ReportHandler) HiredCSV(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	region := c.Param("region")
	if err := h.Reports.CheckUserRegion(a, region); err != nil {
		return err
	}
	return h.stream(c, "report-hired", region, func() error {
		return h.Reports.WriteHiredCSV(c.Request().Context(), a, region, c.Response())
	})
}

// ROSCSV handles GET /milestone-report/csv/ros[/:region].
func (h *ReportHandler) ROSCSV(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	region := c.Param("region")
	if err := h.Reports.CheckUserRegion(a, region); err != nil {
		return err
	}
	return h.stream(c, "report-ros", region, func() error {
		return h.Reports.WriteROSCSV(c.Request().Context(), a, region, c.Response())
	})
}

// PSIParticipantsCSV handles GET /psi-report/csv/participants.
func (h *ReportHandler) PSIParticipantsCSV(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	if err := h.Reports.CheckUserRegion(a, ""); err != nil {
		return err
	}
	return h.stream(c, "report-psi-participants", "", func() error {
		return h.Reports.WritePSIParticipantsCSV(c.Request().Context(), a, c.Response())
	})
}

// stream sets the attachment headers and runs write.  Once the status line
// is out an error can only be logged.
func (h *ReportHandler) stream(c echo.Context, name, region string, write func() error) error {
	filename := name
	if region != "" {
		filename += "-" + strings.ToLower(strings.ReplaceAll(region, " ", "-"))
	}
	filename = fmt.Sprintf("%s-%s.csv", filename, time.Now().Format("2006-01-02"))

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	res.Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	res.WriteHeader(http.StatusOK)

	if err := write(); err != nil {
		h.Log.Error("csv export aborted", zap.String("report", name), zap.String("region", region), zap.Error(err))
	}
	return nil
}

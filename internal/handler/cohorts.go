package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hcap-portal/internal/model"
	"github.com/iliyamo/hcap-portal/internal/repository"
	"github.com/iliyamo/hcap-portal/internal/service"
)

// CohortStore is the storage CohortHandler needs.  *repository.CohortRepo
// implements it.
type CohortStore interface {
	ListInstitutes(ctx context.Context, regions []string) ([]model.PostSecondaryInstitute, error)
	CreateInstitute(ctx context.Context, p *model.PostSecondaryInstitute) error
	ListCohorts(ctx context.Context, psiID int64) ([]model.Cohort, error)
	CreateCohort(ctx context.Context, c *model.Cohort) error
	AssignParticipant(ctx context.Context, cohortID, participantID int64, assignedBy string) error
}

var _ CohortStore = (*repository.CohortRepo)(nil)

// CohortHandler serves post-secondary institutes and their cohorts.
type CohortHandler struct {
	Cohorts CohortStore
}

func NewCohortHandler(r CohortStore) *CohortHandler {
	if r == nil {
		panic("nil repository passed to NewCohortHandler")
	}
	return &CohortHandler{Cohorts: r}
}

type createPSIReq struct {
	InstituteName   string `json:"instituteName" validate:"required,max=255"`
	HealthAuthority string `json:"healthAuthority" validate:"required"`
	PostalCode      string `json:"postalCode" validate:"max=16"`
	AvailableSeats  int    `json:"availableSeats" validate:"gte=0"`
}

type createCohortReq struct {
	CohortName string `json:"cohortName" validate:"required,max=255"`
	StartDate  string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate    string `json:"endDate" validate:"required,datetime=2006-01-02"`
	CohortSize int    `json:"cohortSize" validate:"gte=0"`
}

// ListInstitutes handles GET /psi.
func (h *CohortHandler) ListInstitutes(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	rows, err := h.Cohorts.ListInstitutes(c.Request().Context(), a.RegionScope())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}

// CreateInstitute handles POST /psi.
func (h *CohortHandler) CreateInstitute(c echo.Context) error {
	var req createPSIReq
	if err := bind(c, &req); err != nil {
		return err
	}
	region, ok := model.NormalizeRegion(req.HealthAuthority)
	if !ok {
		return &service.ValidationError{
			Message: fmt.Sprintf("unknown health authority %q", req.HealthAuthority),
			Fields:  []service.FieldError{{Field: "healthAuthority", Rule: "oneof"}},
		}
	}
	psi := &model.PostSecondaryInstitute{
		InstituteName:   strings.TrimSpace(req.InstituteName),
		HealthAuthority: region,
		PostalCode:      strings.ToUpper(strings.TrimSpace(req.PostalCode)),
		AvailableSeats:  req.AvailableSeats,
	}
	if err := h.Cohorts.CreateInstitute(c.Request().Context(), psi); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, psi)
}

// ListCohorts handles GET /psi/:id/cohorts.
func (h *CohortHandler) ListCohorts(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	rows, err := h.Cohorts.ListCohorts(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}

// CreateCohort handles POST /psi/:id/cohorts.
func (h *CohortHandler) CreateCohort(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req createCohortReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := checkDateRange(req.StartDate, req.EndDate); err != nil {
		return err
	}
	cohort := &model.Cohort{
		PSIID:      id,
		CohortName: strings.TrimSpace(req.CohortName),
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
		CohortSize: req.CohortSize,
	}
	if err := h.Cohorts.CreateCohort(c.Request().Context(), cohort); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, cohort)
}

// Assign handles POST /cohorts/:id/assign/:participantId.
func (h *CohortHandler) Assign(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	cohortID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	participantID, err := paramID(c, "participantId")
	if err != nil {
		return err
	}
	if err := h.Cohorts.AssignParticipant(c.Request().Context(), cohortID, participantID, a.ID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"cohortId": cohortID, "participantId": participantID})
}

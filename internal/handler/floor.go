package handler

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"

	"github.com/iliyamo/floor-allocation/internal/config"
	"github.com/iliyamo/floor-allocation/internal/floor"
	"github.com/iliyamo/floor-allocation/internal/model"
)

// FloorHandler exposes the allocator over HTTP: the read-only display
// endpoints and the administrative allocation endpoints.
type FloorHandler struct {
	Svc *floor.Service
}

// NewFloorHandler constructs a FloorHandler and panics if svc is nil.
func NewFloorHandler(svc *floor.Service) *FloorHandler {
	if svc == nil {
		panic("nil service passed to NewFloorHandler")
	}
	return &FloorHandler{Svc: svc}
}

// GetFloor handles GET /v1/floor and returns the full snapshot.
func (h *FloorHandler) GetFloor(c echo.Context) error {
	snap, err := h.Svc.Snapshot(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, snap)
}

// GetStats handles GET /v1/floor/stats.
func (h *FloorHandler) GetStats(c echo.Context) error {
	st, err := h.Svc.Stats(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

type packageResponse struct {
	ID         string     `json:"id"`
	AreaCm2    model.Area `json:"area_cm2"`
	Area       string     `json:"area"`
	PriceLabel string     `json:"price_label"`
	PricePence int64      `json:"price_pence"`
}

// GetPackages handles GET /v1/floor/packages and lists the price table,
// largest package first.
func (h *FloorHandler) GetPackages(c echo.Context) error {
	pkgs := lo.MapToSlice(h.Svc.Config().Packages, func(id string, p config.Package) packageResponse {
		return packageResponse{ID: id, AreaCm2: p.Area, Area: p.Area.String(), PriceLabel: p.PriceLabel, PricePence: p.PricePence}
	})
	sort.Slice(pkgs, func(i, j int) bool {
		if pkgs[i].AreaCm2 != pkgs[j].AreaCm2 {
			return pkgs[i].AreaCm2 > pkgs[j].AreaCm2
		}
		return pkgs[i].ID < pkgs[j].ID
	})
	return c.JSON(http.StatusOK, map[string]any{
		"price_per_sqm_pence": h.Svc.Config().PricePerSqMetrePence,
		"packages":            pkgs,
	})
}

type allocateRequest struct {
	Kind        string `json:"kind"`
	Ref         string `json:"ref"`
	AmountPence int64  `json:"amount_pence"`
	PackageID   string `json:"package_id"`
	DonorName   string `json:"donor_name"`
	Status      string `json:"status"`
}

// Allocate handles POST /v1/admin/allocations.  It is called when a
// donation is approved; status defaults to pledged for a pledge identity
// and paid for a payment identity.
func (h *FloorHandler) Allocate(c echo.Context) error {
	var body allocateRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	id, err := model.ParseIdentity(body.Kind, body.Ref)
	if err != nil {
		return writeError(c, fmt.Errorf("%w: %v", floor.ErrInvalidIdentity, err))
	}
	status := model.CellStatus(strings.ToLower(strings.TrimSpace(body.Status)))
	if status == "" {
		status = model.StatusPledged
		if id.Kind == model.KindPayment {
			status = model.StatusPaid
		}
	}
	res, err := h.Svc.Allocate(c.Request().Context(), floor.AllocationRequest{
		Identity:    id,
		AmountPence: body.AmountPence,
		PackageID:   strings.TrimSpace(body.PackageID),
		DonorName:   strings.TrimSpace(body.DonorName),
		Status:      status,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, allocationResponse(res))
}

// Deallocate handles DELETE /v1/admin/allocations/:kind/:ref.  It is
// called when a donation is unapproved, deleted or before its amount is
// edited.  Releasing an identity that owns nothing returns 200 with no
// cells.
func (h *FloorHandler) Deallocate(c echo.Context) error {
	id, err := model.ParseIdentity(c.Param("kind"), c.Param("ref"))
	if err != nil {
		return writeError(c, fmt.Errorf("%w: %v", floor.ErrInvalidIdentity, err))
	}
	res, err := h.Svc.Deallocate(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"identity":       res.Identity,
		"cell_ids":       res.CellIDs,
		"freed_area_cm2": res.FreedArea,
		"freed_area":     res.FreedArea.String(),
	})
}

// MarkPaid handles POST /v1/admin/pledges/:ref/paid with an optional
// {"payment_ref": "..."} body.
func (h *FloorHandler) MarkPaid(c echo.Context) error {
	var body struct {
		PaymentRef string `json:"payment_ref"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	res, err := h.Svc.MarkPaid(c.Request().Context(), strings.TrimSpace(c.Param("ref")), strings.TrimSpace(body.PaymentRef))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"pledge_ref":   res.PledgeRef,
		"payment_ref":  res.PaymentRef,
		"cell_ids":     res.CellIDs,
		"transitioned": res.Transitioned,
	})
}

// GetOrphans handles GET /v1/admin/orphans.
func (h *FloorHandler) GetOrphans(c echo.Context) error {
	ids, err := h.Svc.FindOrphans(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"cell_ids": ids})
}

// ReleaseOrphans handles POST /v1/admin/orphans/release.  Without a body
// every current orphan is released.
func (h *FloorHandler) ReleaseOrphans(c echo.Context) error {
	var body struct {
		CellIDs []string `json:"cell_ids"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	ctx := c.Request().Context()
	ids := body.CellIDs
	if len(ids) == 0 {
		found, err := h.Svc.FindOrphans(ctx)
		if err != nil {
			return writeError(c, err)
		}
		ids = found
	}
	released, err := h.Svc.ReleaseOrphans(ctx, ids)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"released": released})
}

// SetBlocked handles PUT /v1/admin/cells/:id/blocked with {"blocked": bool}.
func (h *FloorHandler) SetBlocked(c echo.Context) error {
	var body struct {
		Blocked *bool `json:"blocked"`
	}
	if err := c.Bind(&body); err != nil || body.Blocked == nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "blocked is required"})
	}
	id := strings.TrimSpace(c.Param("id"))
	if err := h.Svc.SetBlocked(c.Request().Context(), id, *body.Blocked); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"cell_id": id, "blocked": *body.Blocked})
}

func allocationResponse(res *floor.AllocationResult) map[string]any {
	reqs := lo.Map(res.Requirements, func(r floor.Requirement, _ int) map[string]any {
		return map[string]any{"cell_type": r.Tier.Code, "count": r.Count}
	})
	return map[string]any{
		"identity":       res.Identity,
		"cell_ids":       res.CellIDs,
		"total_area_cm2": res.TotalArea,
		"total_area":     res.TotalArea.String(),
		"amount_pence":   res.AmountPence,
		"requirements":   reqs,
	}
}

// writeError maps allocator errors to HTTP responses.  Decomposition and
// validation failures are the caller's fault (400); a full floor or a
// double allocation is a conflict (409); persistence failures are
// transient (503) and safe to retry.
func writeError(c echo.Context, err error) error {
	var (
		de *floor.DecompositionError
		ie *floor.InsufficientSpaceError
		ae *floor.AlreadyAllocatedError
		pe *floor.PersistenceError
	)
	switch {
	case errors.As(err, &de):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "decomposition_error", "message": err.Error()})
	case errors.Is(err, floor.ErrInvalidIdentity), errors.Is(err, floor.ErrInvalidRequest), errors.Is(err, floor.ErrUnknownPackage):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid_request", "message": err.Error()})
	case errors.As(err, &ie):
		return c.JSON(http.StatusConflict, map[string]any{
			"error":     "insufficient_space",
			"message":   err.Error(),
			"cell_type": ie.CellType,
			"needed":    ie.Needed,
			"available": ie.Available,
		})
	case errors.As(err, &ae):
		return c.JSON(http.StatusConflict, map[string]string{"error": "already_allocated", "message": err.Error()})
	case errors.Is(err, floor.ErrPaymentRefMismatch):
		return c.JSON(http.StatusConflict, map[string]string{"error": "payment_ref_conflict", "message": err.Error()})
	case errors.Is(err, floor.ErrCellBusy):
		return c.JSON(http.StatusConflict, map[string]string{"error": "cell_busy", "message": err.Error()})
	case errors.Is(err, floor.ErrNotAllocated), errors.Is(err, floor.ErrCellNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "not_found", "message": err.Error()})
	case errors.As(err, &pe):
		c.Logger().Errorf("floor persistence failure: %v", err)
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "persistence_error", "message": "temporary storage failure, retry"})
	}
	c.Logger().Errorf("floor handler: %v", err)
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

package sales

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/exhibit-pos/exhibit-pos/internal/platform/httpx"
	"github.com/exhibit-pos/exhibit-pos/internal/pricing"
	"github.com/exhibit-pos/exhibit-pos/internal/rbac"
	"github.com/exhibit-pos/exhibit-pos/internal/shared"
)

const idempotencyModule = "sales"

// IdempotencyPort deduplicates retried sale submissions.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// Handler exposes sale endpoints.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	rbac        rbac.Middleware
	idempotency IdempotencyPort
}

// NewHandler constructs Handler. idempotency may be nil.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware, idempotency IdempotencyPort) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, idempotency: idempotency}
}

// MountRoutes registers /sales.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.With(h.rbac.RequireAny(rbac.PermReports, rbac.PermExhibitions)).Get("/exhibition/{id}", h.listByExhibition)
	r.With(h.rbac.RequireAny(rbac.PermSalesCancel)).Post("/{id}/cancel", h.cancel)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermPOS))
		r.Post("/", h.create)
		r.Post("/enhanced", h.createEnhanced)
	})
}

// saleRequest accepts both the legacy single-payment body and the canonical
// multi-payment body.
type saleRequest struct {
	LegacyInput
	Channel  pricing.Channel `json:"channel,omitempty"`
	Payments []Payment       `json:"payments"`
}

func (r saleRequest) input() FinalizeInput {
	if r.Payments == nil && (r.PaymentMethod != "" || !r.PaymentReceived.IsZero()) {
		in := r.LegacyInput.Canonical()
		in.Channel = r.Channel
		return in
	}
	return FinalizeInput{
		ExhibitionID:   r.ExhibitionID,
		Channel:        r.Channel,
		Customer:       r.Customer,
		Items:          r.Items,
		DiscountAmount: r.DiscountAmount,
		Payments:       r.Payments,
	}
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req saleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.finalize(w, r, req.input())
}

func (h *Handler) createEnhanced(w http.ResponseWriter, r *http.Request) {
	var in FinalizeInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.finalize(w, r, in)
}

func (h *Handler) finalize(w http.ResponseWriter, r *http.Request, in FinalizeInput) {
	ctx := r.Context()
	actor, ok := rbac.PrincipalFromContext(ctx)
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	in.Cashier = Cashier{ID: actor.UserID, Name: displayName(actor)}
	in.AllowPriceOverride = actor.Can(rbac.PermPriceOverride)

	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key != "" && h.idempotency != nil {
		if err := h.idempotency.CheckAndInsert(ctx, key, idempotencyModule); err != nil {
			if !errors.Is(err, shared.ErrIdempotencyConflict) {
				h.logger.Error("idempotency check", slog.Any("error", err))
			}
			httpx.RespondError(w, err)
			return
		}
	}

	receipt, err := h.service.FinalizeSale(ctx, in)
	if err != nil {
		if key != "" && h.idempotency != nil {
			if delErr := h.idempotency.Delete(context.WithoutCancel(ctx), key, idempotencyModule); delErr != nil {
				h.logger.Warn("release idempotency key", slog.Any("error", delErr))
			}
		}
		h.logger.Warn("sale rejected", slog.String("cashier", actor.Username), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, receipt)
}

func displayName(p rbac.Principal) string {
	if p.FullName != "" {
		return p.FullName
	}
	return p.Username
}

type saleList struct {
	Items      []Sale            `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.PrincipalFromContext(r.Context())
	page := shared.PageFromRequest(r)
	items, total, err := h.service.ListSales(r.Context(), actor, ListFilter{Limit: page.PerPage, Offset: page.Offset()})
	if err != nil {
		h.logger.Error("list sales", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if items == nil {
		items = []Sale{}
	}
	httpx.JSON(w, http.StatusOK, saleList{Items: items, Pagination: shared.NewPagination(page.Page, page.PerPage, total)})
}

func (h *Handler) listByExhibition(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	page := shared.PageFromRequest(r)
	items, total, err := h.service.ListByExhibition(r.Context(), id, ListFilter{Limit: page.PerPage, Offset: page.Offset()})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if items == nil {
		items = []Sale{}
	}
	httpx.JSON(w, http.StatusOK, saleList{Items: items, Pagination: shared.NewPagination(page.Page, page.PerPage, total)})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := rbac.PrincipalFromContext(r.Context())
	sale, err := h.service.GetSale(r.Context(), actor, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in CancelInput
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &in); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	actor, _ := rbac.PrincipalFromContext(r.Context())
	sale, err := h.service.CancelSale(r.Context(), actor, id, in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("sale cancelled", slog.String("sale_number", sale.SaleNumber), slog.String("by", actor.Username))
	httpx.JSON(w, http.StatusOK, sale)
}

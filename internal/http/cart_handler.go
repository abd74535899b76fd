package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/storefront-cart/internal/domain"
	"github.com/fjod/storefront-cart/internal/service"
	"github.com/go-chi/chi/v5"
)

// CartService is what the handlers need from the reconciliation layer.
type CartService interface {
	AddItem(ctx context.Context, p service.AddItemParams) (*domain.CartView, error)
	UpdateItem(ctx context.Context, p service.UpdateItemParams) (*domain.CartView, error)
	RemoveItem(ctx context.Context, p service.RemoveItemParams) (*domain.CartView, error)
	GetCart(ctx context.Context, userID string) (*domain.CartView, error)
	ClearCart(ctx context.Context, userID string) (*domain.CartView, error)
}

type CartHandler struct {
	svc CartService
}

func NewCartHandler(svc CartService) *CartHandler {
	return &CartHandler{svc: svc}
}

type AddItemRequestDTO struct {
	UserID    string `json:"userId"`
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	ColorID   string `json:"colorId,omitempty"`
}

type UpdateItemRequestDTO struct {
	UserID     string `json:"userId"`
	ProductID  string `json:"productId"`
	Quantity   *int   `json:"quantity,omitempty"`
	ColorID    string `json:"colorId,omitempty"`
	OldColorID string `json:"oldColorId,omitempty"`
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}

	view, err := h.svc.AddItem(r.Context(), service.AddItemParams{
		UserID:    req.UserID,
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		ColorID:   req.ColorID,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondData(w, r, view)
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.GetCart(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondData(w, r, view)
}

func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req UpdateItemRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}

	view, err := h.svc.UpdateItem(r.Context(), service.UpdateItemParams{
		UserID:     req.UserID,
		ProductID:  req.ProductID,
		Quantity:   req.Quantity,
		ColorID:    req.ColorID,
		OldColorID: req.OldColorID,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondData(w, r, view)
}

// RemoveItem serves both /cart/{userId}/{productId} and the color-scoped
// variant; without colorId every item of the product goes.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.RemoveItem(r.Context(), service.RemoveItemParams{
		UserID:    chi.URLParam(r, "userId"),
		ProductID: chi.URLParam(r, "productId"),
		ColorID:   chi.URLParam(r, "colorId"),
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondData(w, r, view)
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.ClearCart(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondData(w, r, view)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		respondError(w, r, http.StatusRequestEntityTooLarge, "request body too large")
		return false
	}
	respondError(w, r, http.StatusBadRequest, "invalid JSON body")
	return false
}

// Package webhook is the inbound HTTP surface: provider update callbacks,
// external order intake, health, and metrics.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"log/slog"

	"github.com/Deduh/foodbot-back/internal/domain"
	"github.com/Deduh/foodbot-back/internal/logger"
	"github.com/Deduh/foodbot-back/internal/metrics"
	"github.com/Deduh/foodbot-back/internal/orders"
	"github.com/Deduh/foodbot-back/internal/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	tele "gopkg.in/telebot.v4"
)

// Dispatcher routes decoded provider updates to bot workers.
type Dispatcher interface {
	Dispatch(instanceID string, upd tele.Update) error
}

// OrderCreator accepts external order submissions.
type OrderCreator interface {
	Create(ctx context.Context, in orders.CreateInput) (*store.Order, error)
}

// Server wires the HTTP mux. Shutdown is delegated to http.Server.
type Server struct {
	http *http.Server
	sup  Dispatcher
	ord  OrderCreator
	m    *metrics.Metrics
}

func NewServer(listen string, port int, sup Dispatcher, ord OrderCreator, m *metrics.Metrics) *Server {
	s := &Server{sup: sup, ord: ord, m: m}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhook/{instanceID}", s.handleUpdate)
	mux.HandleFunc("POST /orders", s.handleCreateOrder)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	s.http = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", listen, port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	logger.HTTP.Info("webhook server listening",
		slog.String("event", "http.listen"),
		slog.String("addr", s.http.Addr),
	)
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// handleUpdate decodes one provider update and hands it to the instance's
// worker. The provider retries on non-2xx, so routing failures that cannot
// heal (unknown instance) answer 404 and a full queue answers 503.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	instanceID := r.PathValue("instanceID")

	var upd tele.Update
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		s.countUpdate("malformed")
		http.Error(w, "malformed update", http.StatusBadRequest)
		return
	}

	if err := s.sup.Dispatch(instanceID, upd); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			s.countUpdate("unrouted")
			http.Error(w, "unknown bot instance", http.StatusNotFound)
		default:
			s.countUpdate("rejected")
			logger.HTTP.Warn("update dispatch failed",
				slog.String("event", "http.webhook"),
				slog.String("instance_id", instanceID),
				slog.Int("update_id", upd.ID),
				slog.String("err", err.Error()),
			)
			http.Error(w, "temporarily unavailable", http.StatusServiceUnavailable)
		}
		return
	}

	s.countUpdate("dispatched")
	w.WriteHeader(http.StatusOK)
}

type orderLine struct {
	MenuItemID string `json:"menuItemId"`
	Quantity   int    `json:"quantity"`
}

type createOrderRequest struct {
	RestaurantID           string      `json:"restaurantId"`
	CustomerTelegramUserID string      `json:"customerTelegramUserId"`
	CustomerName           string      `json:"customerName"`
	CustomerPhone          string      `json:"customerPhone"`
	DeliveryAddress        string      `json:"deliveryAddress"`
	Items                  []orderLine `json:"items"`
}

type createOrderResponse struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	TotalPrice int64  `json:"totalPrice"`
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request", http.StatusBadRequest)
		return
	}

	in := orders.CreateInput{
		RestaurantID:           req.RestaurantID,
		CustomerTelegramUserID: req.CustomerTelegramUserID,
		CustomerName:           req.CustomerName,
		CustomerPhone:          req.CustomerPhone,
		DeliveryAddress:        req.DeliveryAddress,
	}
	for _, line := range req.Items {
		in.Items = append(in.Items, orders.LineInput{MenuItemID: line.MenuItemID, Quantity: line.Quantity})
	}

	order, err := s.ord.Create(r.Context(), in)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, domain.ErrNotFound):
			status = http.StatusNotFound
		case errors.Is(err, domain.ErrInvalidState):
			status = http.StatusUnprocessableEntity
		}
		http.Error(w, err.Error(), status)
		return
	}

	if s.m != nil {
		s.m.OrdersCreated.Inc()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(createOrderResponse{
		ID:         order.ID,
		Status:     string(order.Status),
		TotalPrice: order.TotalPrice,
	})
}

func (s *Server) countUpdate(outcome string) {
	if s.m != nil {
		s.m.WebhookUpdates.WithLabelValues(outcome).Inc()
	}
}

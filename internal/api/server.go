package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"housemarket/internal/exchange"
	"housemarket/internal/market"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Server struct {
	log *slog.Logger
	svc *exchange.Service
	mux *chi.Mux
}

func New(logger *slog.Logger, svc *exchange.Service) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		log: logger,
		svc: svc,
		mux: chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(s.requestLog)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Get("/houses", s.handleHouses)
	r.Get("/all-houses", s.handleAllHouses)
	r.Get("/portfolio", s.handlePortfolio)
	r.Get("/price-history/{house_name}", s.handlePriceHistory)
	r.Get("/leaderboard", s.handleLeaderboard)
	r.Post("/earn-points", s.handleEarnPoints)

	r.Post("/register", s.handleRegister)
	r.Post("/buy", s.handleBuy)
	r.Post("/sell", s.handleSell)
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) handleHouses(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("house_name"))
	houses, err := s.svc.Houses(name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if name != "" {
		writeJSON(w, http.StatusOK, houses)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"houses": houses})
}

func (s *Server) handleAllHouses(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"houses": s.svc.AllHouses()})
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Portfolio(strings.TrimSpace(r.URL.Query().Get("username")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handlePriceHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.svc.PriceHistory(chi.URLParam(r, "house_name"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"price_history": history})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"leaderboard": s.svc.Leaderboard()})
}

func (s *Server) handleEarnPoints(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ack, err := s.svc.EarnPoints(r.Context(), strings.TrimSpace(q.Get("username")), q.Get("points"), q.Get("code"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ack)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in exchange.RegisterRequest
	if s.svc.LiveTrading() {
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	ack, err := s.svc.Register(r.Context(), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ack)
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	s.handleTrade(market.SideBuy, w, r)
}

func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	s.handleTrade(market.SideSell, w, r)
}

func (s *Server) handleTrade(side market.Side, w http.ResponseWriter, r *http.Request) {
	var in exchange.TradeRequest
	if s.svc.LiveTrading() {
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	var (
		ack exchange.Ack
		err error
	)
	if side == market.SideBuy {
		ack, err = s.svc.Buy(r.Context(), in)
	} else {
		ack, err = s.svc.Sell(r.Context(), in)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ack)
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, market.ErrHouseNotFound), errors.Is(err, market.ErrUserNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, market.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, market.ErrInsufficientFunds), errors.Is(err, market.ErrInsufficientShares):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, market.ErrInvalidPoints), errors.Is(err, market.ErrInvalidShares),
		errors.Is(err, market.ErrInvalidUsername), errors.Is(err, market.ErrDuplicateUser):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}

package handler

import (
	"encoding/json"
	"net/http"

	"agendify/internal/accounts/service"
	httputil "agendify/pkg/http"
	"agendify/pkg/logger"
	"agendify/pkg/middleware"
	"agendify/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type AccountHandler struct {
	service       service.AccountService
	authenticator *middleware.Authenticator
	log           *logger.Logger
}

func NewAccountHandler(service service.AccountService, authenticator *middleware.Authenticator, log *logger.Logger) *AccountHandler {
	return &AccountHandler{
		service:       service,
		authenticator: authenticator,
		log:           log,
	}
}

func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		})
		return
	}

	resp, err := h.service.Register(r.Context(), &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteCreated(w, resp)
}

func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		})
		return
	}

	resp, err := h.service.Login(r.Context(), &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, resp)
}

func (h *AccountHandler) GoogleSignIn(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.GoogleSignInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		})
		return
	}

	resp, err := h.service.GoogleSignIn(r.Context(), &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, resp)
}

func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	account, err := h.service.Me(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, account)
}

func (h *AccountHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/auth/register", h.Register)
	router.POST("/api/v1/auth/login", h.Login)
	router.POST("/api/v1/auth/google", h.GoogleSignIn)
	router.GET("/api/v1/auth/me", h.authenticator.Protect(h.Me))
}

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/BikerAndy/site-signin/internal/signin/ids"
	"github.com/BikerAndy/site-signin/internal/signin/policy"
	"github.com/BikerAndy/site-signin/internal/signin/service"
	"github.com/BikerAndy/site-signin/internal/signin/types"
)

// AdminPINHeader carries the admin PIN on admin-gated requests.
const AdminPINHeader = "X-Admin-PIN"

type Dependencies struct {
	Logger        *log.Logger
	Addr          string
	KioskService  *service.KioskService
	MetricsHandle http.Handler // optional; served at /metrics
}

type Server struct {
	httpServer *http.Server
	logger     *log.Logger
	mux        *http.ServeMux
	kiosk      *service.KioskService
}

func NewServer(d Dependencies) *Server {
	mux := http.NewServeMux()

	s := &Server{
		logger: d.Logger,
		mux:    mux,
		kiosk:  d.KioskService,
	}

	mux.HandleFunc("POST /v1/sign-in", s.handleSignIn)
	mux.HandleFunc("POST /v1/sign-out", s.handleSignOut)
	mux.HandleFunc("GET /v1/roster", s.handleRoster)
	mux.HandleFunc("GET /v1/workers", s.handleWorkers)
	mux.HandleFunc("GET /v1/workers/{id}", s.handleWorker)
	mux.HandleFunc("GET /v1/visits", s.handleVisits)
	mux.HandleFunc("GET /v1/ppe", s.handlePPE)
	mux.HandleFunc("GET /v1/settings", s.handleGetSettings)
	mux.HandleFunc("PUT /v1/settings", s.handlePutSettings)
	mux.HandleFunc("POST /v1/admin/login", s.handleAdminLogin)
	mux.HandleFunc("POST /v1/admin/reset", s.handleReset)
	mux.HandleFunc("GET /v1/export", s.handleExport)
	if d.MetricsHandle != nil {
		mux.Handle("GET /metrics", d.MetricsHandle)
	}

	handler := loggingMiddleware(d.Logger, mux)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ── Sign in / out ────────────────────────────────────────────────────────────

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	s.handleRecord(w, r, types.DirectionIn)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	s.handleRecord(w, r, types.DirectionOut)
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request, dir types.Direction) {
	pb := isProtobuf(r)

	var req types.SignInRequest
	if pb {
		if err := decodeStruct(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_protobuf", "invalid protobuf body")
			return
		}
	} else if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	var (
		out service.Outcome
		err error
	)
	if dir == types.DirectionIn {
		out, err = s.kiosk.SignIn(r.Context(), req)
	} else {
		out, err = s.kiosk.SignOut(r.Context(), req)
	}
	if err != nil {
		if errors.Is(err, service.ErrUnknownWorker) {
			writeError(w, http.StatusNotFound, "unknown_worker", err.Error())
			return
		}
		s.logger.Printf("sign %s error: %v", dir, err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}

	resp := types.SignInResponse{
		OK:         out.Result.OK,
		Direction:  dir,
		Reason:     string(out.Result.Reason),
		Message:    out.Result.Reason.Message(),
		MissingPPE: out.Result.MissingPPE,
		Worker:     out.Worker,
		Event:      out.Event,
		OnSite:     out.OnSite,
		ServerTime: ids.Now(),
	}
	status := http.StatusOK
	if !out.Result.OK {
		status = http.StatusUnprocessableEntity
	}

	if pb {
		msg, err := encodeStruct(resp)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
			return
		}
		writeProto(w, status, msg)
		return
	}
	writeJSON(w, status, resp)
}

// ── Read models ──────────────────────────────────────────────────────────────

func (s *Server) handleRoster(w http.ResponseWriter, _ *http.Request) {
	roster := s.kiosk.Roster()
	writeJSON(w, http.StatusOK, map[string]any{
		"site":    s.kiosk.Settings().SiteName,
		"on_site": len(roster),
		"entries": roster,
	})
}

func (s *Server) handleWorkers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.kiosk.Workers())
}

func (s *Server) handleWorker(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	p, ok := s.kiosk.Worker(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown_worker", service.ErrUnknownWorker.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"worker":  p,
		"on_site": s.kiosk.OnSite(id),
	})
}

func (s *Server) handleVisits(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.kiosk.Visits())
}

func (s *Server) handlePPE(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.kiosk.PPECatalog())
}

// ── Admin ────────────────────────────────────────────────────────────────────

func (s *Server) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.kiosk.Settings().Public())
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var patch policy.Patch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	updated, err := s.kiosk.UpdateSettings(r.Context(), r.Header.Get(AdminPINHeader), patch)
	if err != nil {
		if errors.Is(err, service.ErrAdminPIN) {
			writeError(w, http.StatusForbidden, "admin_pin", err.Error())
			return
		}
		s.logger.Printf("settings error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}

	writeJSON(w, http.StatusOK, updated.Public())
}

type adminLoginRequest struct {
	PIN string `json:"pin"`
}

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req adminLoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}
	if !s.kiosk.CheckPIN(req.PIN) {
		writeError(w, http.StatusForbidden, "admin_pin", service.ErrAdminPIN.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.kiosk.ResetAll(r.Context(), r.Header.Get(AdminPINHeader)); err != nil {
		if errors.Is(err, service.ErrAdminPIN) {
			writeError(w, http.StatusForbidden, "admin_pin", err.Error())
			return
		}
		s.logger.Printf("reset error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// ── Export ───────────────────────────────────────────────────────────────────

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = service.FormatCSV
	}

	exp, err := s.kiosk.Export(format)
	if err != nil {
		if errors.Is(err, service.ErrExportFormat) {
			writeError(w, http.StatusBadRequest, "bad_format", err.Error())
			return
		}
		s.logger.Printf("export error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}

	w.Header().Set("Content-Type", exp.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+exp.Filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(exp.Body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(exp.Body)
}

// ── Helpers ──────────────────────────────────────────────────────────────────

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: code, Message: msg})
}

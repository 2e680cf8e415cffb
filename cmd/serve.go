package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ianpcook/agent-crm/internal/extract"
	"github.com/ianpcook/agent-crm/internal/model"
	"github.com/ianpcook/agent-crm/internal/store"
)

const (
	maxBodyBytes    = 1 << 20
	requestTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP extraction server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(st, extract.New(), cfg.Server.CORSOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// api serves extraction and stored plans over HTTP.
type api struct {
	st     store.Store
	engine *extract.Engine
}

func newRouter(st store.Store, engine *extract.Engine, origins []string) http.Handler {
	a := &api{st: st, engine: engine}
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Location"},
		MaxAge:         300,
	}))

	r.Get("/health", a.health)
	r.Post("/extract", a.extract)
	r.Route("/plans", func(r chi.Router) {
		r.Get("/", a.listPlans)
		r.Get("/{id}", a.getPlan)
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (a *api) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type extractRequest struct {
	Text       string `json:"text"`
	SourceType string `json:"source_type"`
	Save       bool   `json:"save"`
}

// extract runs the engine on the posted text. A saved plan is answered
// with 201 and its location.
func (a *api) extract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	source, err := model.ParseSourceType(req.SourceType)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	text := extract.Normalize(req.Text)
	if err := extract.ValidateInput(text); err != nil {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	plan := a.engine.Extract(text, source)

	if !req.Save {
		writeJSON(w, http.StatusOK, plan)
		return
	}

	rec, err := a.st.SavePlan(r.Context(), text, plan)
	if err != nil {
		zap.L().Error("save plan failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not save plan")
		return
	}
	w.Header().Set("Location", "/plans/"+rec.ID)
	writeJSON(w, http.StatusCreated, rec)
}

func (a *api) listPlans(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter store.PlanFilter

	if s := q.Get("source"); s != "" {
		source, err := model.ParseSourceType(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.SourceType = source
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid "+name)
			return
		}
		*dst = n
	}

	plans, err := a.st.ListPlans(r.Context(), filter)
	if err != nil {
		zap.L().Error("list plans failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not list plans")
		return
	}
	if plans == nil {
		plans = []model.PlanRecord{}
	}
	writeJSON(w, http.StatusOK, plans)
}

func (a *api) getPlan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := a.st.GetPlan(r.Context(), id)
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "plan not found")
			return
		}
		zap.L().Error("get plan failed", zap.String("plan_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load plan")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

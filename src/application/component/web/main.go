package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/argoproj-labs/appset-gate/src/application/service"
	"github.com/argoproj-labs/appset-gate/src/config"
	"github.com/argoproj-labs/appset-gate/src/domain"
)

type Web struct {
	Config config.WebConfig

	Logger          zerolog.Logger
	DecisionService service.DecisionService
}

func (self *Web) Start(ctx context.Context) error {
	self.Logger.Info().Str("listen", self.Config.Listen).Msg("Starting")

	server := &http.Server{
		Addr:         self.Config.Listen,
		Handler:      self.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			self.Logger.Err(err).Msg("While shutting down server")
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.WithMessage(err, "While serving")
	}
	return nil
}

func (self *Web) Router() *mux.Router {
	muxRouter := mux.NewRouter().StrictSlash(true)
	muxRouter.NotFoundHandler = http.NotFoundHandler()

	muxRouter.HandleFunc("/healthz", self.HealthzGet).Methods(http.MethodGet)
	muxRouter.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := muxRouter.PathPrefix("/api/v1").Subrouter()
	api.Use(self.authenticate)
	api.HandleFunc("/getparams.execute", self.ApiGetParamsPost).Methods(http.MethodPost)

	return muxRouter
}

// authenticate enforces the bearer token ArgoCD is configured with.
// An empty configured token disables authentication.
func (self *Web) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if self.Config.Token != "" {
			given := strings.TrimPrefix(req.Header.Get("Authorization"), "Bearer ")
			if subtle.ConstantTimeCompare([]byte(given), []byte(self.Config.Token)) != 1 {
				self.Error(w, HandlerError{errors.New("Invalid bearer token"), http.StatusUnauthorized})
				return
			}
		}
		next.ServeHTTP(w, req)
	})
}

func (self *Web) HealthzGet(w http.ResponseWriter, req *http.Request) {
	self.json(w, map[string]string{
		"status":  "ok",
		"version": domain.BuildInfo.Version,
	}, http.StatusOK)
}

type apiGetParamsRequest struct {
	ApplicationSetName string `json:"applicationSetName"`
	Input              struct {
		Parameters struct {
			SourceGeneratorType domain.SourceType `json:"sourceGeneratorType"`
			ChecksRegex         []string          `json:"checks_regex"`
			Data                map[string]string `json:"data"`
		} `json:"parameters"`
	} `json:"input"`
}

type apiGetParamsResponse struct {
	Output struct {
		Parameters []map[string]string `json:"parameters"`
	} `json:"output"`
}

func (self *Web) ApiGetParamsPost(w http.ResponseWriter, req *http.Request) {
	payload := apiGetParamsRequest{}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		self.ClientError(w, errors.WithMessage(err, "While unmarshaling request body"))
		return
	}

	result, err := self.DecisionService.Evaluate(req.Context(), domain.EvaluationRequest{
		ApplicationSetName: payload.ApplicationSetName,
		SourceType:         payload.Input.Parameters.SourceGeneratorType,
		CheckPatterns:      payload.Input.Parameters.ChecksRegex,
		Forwarded:          payload.Input.Parameters.Data,
	})
	if err != nil {
		self.EvaluationError(w, err)
		return
	}

	response := apiGetParamsResponse{}
	response.Output.Parameters = result.Parameters
	self.json(w, response, http.StatusOK)
}

// EvaluationError maps the engine's error taxonomy onto status codes. All
// three kinds fail the generator invocation loudly; none of them may be
// silently downgraded to an empty parameter list.
func (self *Web) EvaluationError(w http.ResponseWriter, err error) {
	var validationErr domain.ValidationError
	var providerErr domain.ProviderError
	switch {
	case errors.As(err, &validationErr):
		self.ClientError(w, err)
	case errors.As(err, &providerErr):
		self.Error(w, HandlerError{err, http.StatusBadGateway})
	default:
		self.ServerError(w, err)
	}
}

type HandlerError struct {
	error
	StatusCode int
}

func (self HandlerError) HasError() bool {
	return self.error != nil
}

func (self *Web) ServerError(w http.ResponseWriter, err error) {
	self.Error(w, HandlerError{err, http.StatusInternalServerError})
}

func (self *Web) ClientError(w http.ResponseWriter, err error) {
	self.Error(w, HandlerError{err, http.StatusBadRequest})
}

func (self *Web) Error(w http.ResponseWriter, err error) {
	status := 500

	if handlerErr, ok := err.(HandlerError); ok {
		status = handlerErr.StatusCode
		if !handlerErr.HasError() {
			err = nil
		}
	}

	var e *zerolog.Event
	if status >= 500 {
		e = self.Logger.Error()
	} else {
		e = self.Logger.Debug()
	}
	e.Int("status", status).Msg("Handler error")

	var msg string
	if err != nil {
		msg = err.Error()
	}

	http.Error(w, msg, status)
}

func (self *Web) json(w http.ResponseWriter, obj any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(obj); err != nil {
		self.ServerError(w, err)
		return
	}
}

package web

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"shlrec/internal/config"
	"shlrec/internal/errors"
	"shlrec/internal/types"
)

//go:embed templates/index.html.gotmpl
var templateFS embed.FS

// UIServer serves the interactive recommendation frontend
type UIServer struct {
	cfg    *config.UIConfig
	client *Client
	tmpl   *template.Template
	logger *errors.Logger
}

// pageData is the template context for the index page
type pageData struct {
	Query           string
	MaxResults      int
	MaxDuration     int
	Error           string
	Recommendations []types.Recommendation
}

// NewUIServer creates the frontend server
func NewUIServer(cfg *config.UIConfig, logger *errors.Logger) (*UIServer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/index.html.gotmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse UI template: %w", err)
	}

	return &UIServer{
		cfg:    cfg,
		client: NewClient(cfg.APIURL, cfg.APIKey, cfg.Timeout),
		tmpl:   tmpl,
		logger: logger,
	}, nil
}

// Start runs the UI server until a shutdown signal arrives
func (u *UIServer) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", u.indexHandler)

	addr := fmt.Sprintf("%s:%s", u.cfg.Host, u.cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: u.cfg.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		u.logger.Info("Starting UI server",
			"address", addr,
			"api_url", u.cfg.APIURL)
		fmt.Printf("Starting UI on http://%s (API: %s)\n", addr, u.cfg.APIURL)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("UI server failed to start: %w", err)
	case sig := <-quit:
		u.logger.Info("Received shutdown signal, stopping UI server",
			"signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			u.logger.LogError(err, "Failed to shutdown UI server gracefully, forcing close")
			return server.Close()
		}
		return nil
	}
}

// indexHandler renders the query form and, on POST, the recommendation results
func (u *UIServer) indexHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		u.render(w, pageData{})
	case http.MethodPost:
		u.handleSubmit(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleSubmit forwards the form input to the API and renders the outcome
func (u *UIServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		u.render(w, pageData{Error: "Could not read the submitted form."})
		return
	}

	data := pageData{
		Query:       r.PostFormValue("text"),
		MaxResults:  parseFormInt(r.PostFormValue("maxResults")),
		MaxDuration: parseFormInt(r.PostFormValue("maxDuration")),
	}

	if strings.TrimSpace(data.Query) == "" {
		data.Error = "Please enter a job description or query."
		u.render(w, data)
		return
	}

	input := types.RecommendInput{
		Text:        data.Query,
		MaxResults:  data.MaxResults,
		MaxDuration: data.MaxDuration,
	}

	out, err := u.client.Recommend(r.Context(), input)
	if err != nil {
		u.logger.LogError(err, "Recommendation lookup failed", "query_length", len(data.Query))
		data.Error = displayError(err)
		u.render(w, data)
		return
	}

	data.Recommendations = out.Recommendations
	u.render(w, data)
}

// render writes the index page with the given data
func (u *UIServer) render(w http.ResponseWriter, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := u.tmpl.Execute(w, data); err != nil {
		u.logger.LogError(err, "Failed to render UI template")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// displayError maps an API error to a message shown on the page
func displayError(err error) string {
	appErr, ok := errors.IsAppError(err)
	if !ok {
		return "Something went wrong. Please try again."
	}

	switch appErr.Code {
	case errors.ErrCodeNoMatches:
		return "No assessments matched your query. Try broadening the description or raising the duration limit."
	case errors.ErrCodeInvalidRequest:
		return appErr.Message
	case errors.ErrCodeNetworkTimeout:
		return "The recommendation service is unreachable. Please try again in a moment."
	default:
		return "The recommendation service reported an error. Please try again."
	}
}

// parseFormInt parses an optional positive integer form field
func parseFormInt(value string) int {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

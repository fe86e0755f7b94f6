package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/minjunminji/ubcxlsxtoics/internal/config"
	"github.com/minjunminji/ubcxlsxtoics/internal/convert"
	appLog "github.com/minjunminji/ubcxlsxtoics/internal/log"
	"github.com/minjunminji/ubcxlsxtoics/internal/model"
)

const (
	uploadField    = "file"
	attachmentName = "courses.ics"

	// multipartMemory is how much of an upload ParseMultipartForm keeps in
	// memory before spilling to disk.
	multipartMemory = 4 << 20

	// defaultUploadLimit applies when the server runs without a config.
	defaultUploadLimit = 10 << 20

	shutdownTimeout = 10 * time.Second
)

// Server exposes the converter over HTTP.
type Server struct {
	cfg    *config.Config
	conv   *convert.Converter
	router *mux.Router
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, conv *convert.Converter) *Server {
	s := &Server{
		cfg:    cfg,
		conv:   conv,
		router: mux.NewRouter(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the router, wrapped in basic auth when configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.router)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) basicAuthEnabled() bool {
	return s.cfg != nil && s.cfg.BasicAuth.Enabled()
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="ubcics", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// StartServer serves until ctx is cancelled, then shuts down gracefully.
func StartServer(ctx context.Context, cfg *config.Config, conv *convert.Converter) error {
	s := NewServer(cfg, conv)
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	appLog.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.router.Use(requestLogger)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/api/convert", s.handleConvert).Methods(http.MethodPost)
	s.router.HandleFunc("/api/preview", s.handlePreview).Methods(http.MethodPost)
	s.router.HandleFunc("/api/holidays", s.handleHolidays).Methods(http.MethodGet)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		appLog.Debug("http request", "method", r.Method, "path", r.URL.Path, "elapsed", time.Since(start).String())
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleConvert turns a multipart upload (field "file") into a calendar
// attachment.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	doc, st, ok := s.convertUpload(w, r)
	if !ok {
		return
	}

	appLog.Info("converted upload", "sections", st.Sections, "events", st.Events, "skipped_lines", st.SkippedLines)

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+attachmentName+`"`)
	w.Header().Set("X-Event-Count", strconv.Itoa(st.Events))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

type occurrenceDTO struct {
	UID         string    `json:"uid"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

type previewResponse struct {
	Events       int             `json:"events"`
	SkippedLines int             `json:"skipped_lines"`
	TimeZone     string          `json:"time_zone"`
	Occurrences  []occurrenceDTO `json:"occurrences"`
}

// handlePreview converts an upload and lists the concrete class meetings
// it would produce.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	doc, st, ok := s.convertUpload(w, r)
	if !ok {
		return
	}

	occs, err := s.conv.Preview(doc)
	if err != nil {
		appLog.Error("preview failed", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, previewResponse{
		Events:       st.Events,
		SkippedLines: st.SkippedLines,
		TimeZone:     s.conv.Location().String(),
		Occurrences:  toDTOs(occs),
	})
}

func toDTOs(occs []model.Occurrence) []occurrenceDTO {
	out := make([]occurrenceDTO, 0, len(occs))
	for _, o := range occs {
		out = append(out, occurrenceDTO{
			UID:         o.UID,
			Summary:     o.Summary,
			Description: o.Description,
			Location:    o.Location,
			Start:       o.Start,
			End:         o.End,
		})
	}
	return out
}

type holidayDTO struct {
	Name  string `json:"name"`
	Start string `json:"start"`
	End   string `json:"end"`
}

func (s *Server) handleHolidays(w http.ResponseWriter, _ *http.Request) {
	periods := s.conv.Policy().Periods()
	out := make([]holidayDTO, 0, len(periods))
	for _, p := range periods {
		out = append(out, holidayDTO{
			Name:  p.Name,
			Start: p.Start.Format("2006-01-02"),
			End:   p.End.Format("2006-01-02"),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// convertUpload reads the upload and converts it. On failure it writes the
// error response and returns ok=false.
func (s *Server) convertUpload(w http.ResponseWriter, r *http.Request) ([]byte, convert.Stats, bool) {
	limit := int64(defaultUploadLimit)
	if s.cfg != nil {
		limit = s.cfg.MaxUploadBytes()
	}
	if r.ContentLength > limit {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", limit))
		return nil, convert.Stats{}, false
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", limit))
			return nil, convert.Stats{}, false
		}
		writeError(w, http.StatusBadRequest, convert.ErrNoContent.Error())
		return nil, convert.Stats{}, false
	}
	defer r.MultipartForm.RemoveAll()

	f, hdr, err := r.FormFile(uploadField)
	if err != nil {
		writeError(w, http.StatusBadRequest, convert.ErrNoContent.Error())
		return nil, convert.Stats{}, false
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		appLog.Error("read upload failed", err)
		writeError(w, http.StatusBadRequest, convert.ErrNoContent.Error())
		return nil, convert.Stats{}, false
	}

	doc, st, err := s.conv.File(hdr.Filename, data)
	if err != nil {
		writeConvertError(w, err)
		return nil, st, false
	}
	return doc, st, true
}

func writeConvertError(w http.ResponseWriter, err error) {
	var uerr *convert.UnparseableError
	switch {
	case errors.Is(err, convert.ErrNoContent):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &uerr):
		writeError(w, http.StatusUnprocessableEntity, uerr.Error())
	case errors.Is(err, convert.ErrNoEvents):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		appLog.Error("conversion failed", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

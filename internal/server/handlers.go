package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/desertthunder/crate/internal/library"
	"github.com/desertthunder/crate/internal/shared"
)

const (
	uploadField     = "songs"
	multipartMemory = 32 << 20
	maxJSONBody     = 1 << 20
)

var validate = newValidator()

// newValidator reports fields by their JSON names so error messages match the request body.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type renameSongRequest struct {
	ID      string `json:"id" validate:"required"`
	NewName string `json:"newName" validate:"required"`
}

type songRequest struct {
	ID string `json:"id" validate:"required"`
}

type createPlaylistRequest struct {
	Name string `json:"name" validate:"required"`
}

type playlistRequest struct {
	Playlist string `json:"playlist" validate:"required"`
}

type renamePlaylistRequest struct {
	OldName string `json:"oldName" validate:"required"`
	NewName string `json:"newName" validate:"required"`
}

type membershipRequest struct {
	Playlist string `json:"playlist" validate:"required"`
	SongID   string `json:"songId" validate:"required"`
}

type uploadFileResult struct {
	Name      string `json:"name"`
	ID        string `json:"id,omitempty"`
	Overwrote bool   `json:"overwrote,omitempty"`
	Error     string `json:"error,omitempty"`
}

type uploadResponse struct {
	Uploaded int                `json:"uploaded"`
	Results  []uploadFileResult `json:"results"`
}

// LibraryHandler serves the catalog and playlist API.
type LibraryHandler struct {
	lib       *library.Library
	maxUpload int64
	limiter   Middleware
	logger    *log.Logger
}

// NewLibraryHandler creates a handler enforcing maxUploadBytes per upload request and limiting uploads with limiter.
// A nil limiter disables upload rate limiting.
func NewLibraryHandler(lib *library.Library, maxUploadBytes int64, limiter Middleware, logger *log.Logger) *LibraryHandler {
	if limiter == nil {
		limiter = func(next http.Handler) http.Handler { return next }
	}
	return &LibraryHandler{lib: lib, maxUpload: maxUploadBytes, limiter: limiter, logger: logger}
}

// Register adds every library route to r.
func (h *LibraryHandler) Register(r Router) {
	r.Handle(http.MethodGet, "/songs", http.HandlerFunc(h.listSongs))
	r.Handle(http.MethodPost, "/upload", h.limiter(http.HandlerFunc(h.upload)))
	r.Handle(http.MethodGet, "/song/{id}", http.HandlerFunc(h.getSong))
	r.Handle(http.MethodPost, "/rename-song", http.HandlerFunc(h.renameSong))
	r.Handle(http.MethodPost, "/delete-song", http.HandlerFunc(h.deleteSong))

	r.Handle(http.MethodGet, "/playlists", http.HandlerFunc(h.listPlaylists))
	r.Handle(http.MethodPost, "/playlist", http.HandlerFunc(h.createPlaylist))
	r.Handle(http.MethodPost, "/delete-playlist", http.HandlerFunc(h.deletePlaylist))
	r.Handle(http.MethodPost, "/rename-playlist", http.HandlerFunc(h.renamePlaylist))
	r.Handle(http.MethodPost, "/add-to-playlist", http.HandlerFunc(h.addToPlaylist))
	r.Handle(http.MethodPost, "/remove-from-playlist", http.HandlerFunc(h.removeFromPlaylist))
}

func (h *LibraryHandler) listSongs(w http.ResponseWriter, r *http.Request) {
	songs, err := h.lib.ListSongs(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, songs)
}

func (h *LibraryHandler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit)})
			return
		}
		writeError(w, h.logger, fmt.Errorf("%w: expected multipart form", shared.ErrInvalidInput))
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File[uploadField]
	if len(headers) == 0 {
		writeError(w, h.logger, fmt.Errorf("%w: no files uploaded", shared.ErrInvalidInput))
		return
	}

	files := make([]library.File, len(headers))
	for i, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			files[i] = library.File{Name: fh.Filename, Body: failedReader{shared.Storage("open upload", err)}}
			continue
		}
		defer f.Close()
		files[i] = library.File{Name: fh.Filename, Body: f}
	}

	results, err := h.lib.Upload(r.Context(), files)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	resp := uploadResponse{Uploaded: library.Uploaded(results), Results: make([]uploadFileResult, len(results))}
	var firstErr error
	for i, res := range results {
		resp.Results[i] = uploadFileResult{Name: res.Name, ID: res.ID, Overwrote: res.Overwrote}
		if res.Err != nil {
			resp.Results[i].Error = clientMessage(res.Err)
			if firstErr == nil {
				firstErr = res.Err
			}
		}
	}

	status := http.StatusOK
	if resp.Uploaded == 0 && firstErr != nil {
		status = statusFor(firstErr)
	}
	writeJSON(w, status, resp)
}

func (h *LibraryHandler) getSong(w http.ResponseWriter, r *http.Request) {
	// chi matches against RawPath when one is set, leaving the parameter escaped.
	id := chi.URLParam(r, "id")
	if r.URL.RawPath != "" {
		var err error
		if id, err = url.PathUnescape(id); err != nil {
			writeError(w, h.logger, fmt.Errorf("%w: malformed id", shared.ErrInvalidInput))
			return
		}
	}

	f, song, err := h.lib.OpenSong(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeError(w, h.logger, shared.Storage("stat song", err))
		return
	}
	http.ServeContent(w, r, song.ID, info.ModTime(), f)
}

func (h *LibraryHandler) renameSong(w http.ResponseWriter, r *http.Request) {
	var req renameSongRequest
	if !h.decode(w, r, &req) {
		return
	}

	newID, err := h.lib.RenameSong(r.Context(), req.ID, req.NewName)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": newID})
}

func (h *LibraryHandler) deleteSong(w http.ResponseWriter, r *http.Request) {
	var req songRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.ack(w, h.lib.DeleteSong(r.Context(), req.ID))
}

func (h *LibraryHandler) listPlaylists(w http.ResponseWriter, r *http.Request) {
	playlists, err := h.lib.ListPlaylists(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, playlists)
}

func (h *LibraryHandler) createPlaylist(w http.ResponseWriter, r *http.Request) {
	var req createPlaylistRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.ack(w, h.lib.CreatePlaylist(r.Context(), req.Name))
}

func (h *LibraryHandler) deletePlaylist(w http.ResponseWriter, r *http.Request) {
	var req playlistRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.ack(w, h.lib.DeletePlaylist(r.Context(), req.Playlist))
}

func (h *LibraryHandler) renamePlaylist(w http.ResponseWriter, r *http.Request) {
	var req renamePlaylistRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.ack(w, h.lib.RenamePlaylist(r.Context(), req.OldName, req.NewName))
}

func (h *LibraryHandler) addToPlaylist(w http.ResponseWriter, r *http.Request) {
	var req membershipRequest
	if !h.decode(w, r, &req) {
		return
	}

	added, err := h.lib.AddToPlaylist(r.Context(), req.Playlist, req.SongID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "added": added})
}

func (h *LibraryHandler) removeFromPlaylist(w http.ResponseWriter, r *http.Request) {
	var req membershipRequest
	if !h.decode(w, r, &req) {
		return
	}

	removed, err := h.lib.RemoveFromPlaylist(r.Context(), req.Playlist, req.SongID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "removed": removed})
}

// decode reads a JSON body into v and validates it, writing a 400 and returning false on failure.
func (h *LibraryHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		writeError(w, h.logger, fmt.Errorf("%w: invalid JSON body", shared.ErrInvalidInput))
		return false
	}

	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, len(verrs))
			for i, fe := range verrs {
				fields[i] = fe.Field()
			}
			writeError(w, h.logger, fmt.Errorf("%w: missing %s", shared.ErrMissingArgument, strings.Join(fields, ", ")))
			return false
		}
		writeError(w, h.logger, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
		return false
	}
	return true
}

func (h *LibraryHandler) ack(w http.ResponseWriter, err error) {
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// HealthHandler reports liveness.
type HealthHandler struct{}

func (HealthHandler) Routes() []string { return []string{"/health"} }

func (HealthHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": "crate"})
}

// EventsHandler streams library change events over a websocket.
type EventsHandler struct {
	Hub http.Handler
}

func (EventsHandler) Routes() []string { return []string{"/events"} }

func (h EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.Hub.ServeHTTP(w, r)
}

func clientMessage(err error) string {
	if statusFor(err) == http.StatusInternalServerError {
		return "internal storage failure"
	}
	return err.Error()
}

type failedReader struct{ err error }

func (f failedReader) Read([]byte) (int, error) { return 0, f.err }

// Options configures [NewRouter].
type Options struct {
	MaxUploadBytes int64
	UploadRate     float64
	Events         http.Handler
	Logger         *log.Logger
}

// NewRouter assembles the full application router: logging and recovery middleware, the library API,
// the health check and, when opts.Events is set, the websocket event stream.
func NewRouter(lib *library.Library, opts Options) *ChiRouter {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.With("component", "server")

	r := NewChiRouter()
	r.Use(Recoverer(logger), RequestLogger(logger))

	NewLibraryHandler(lib, opts.MaxUploadBytes, RateLimit(NewUploadLimiter(opts.UploadRate)), logger).Register(r)
	r.Handler(HealthHandler{})
	if opts.Events != nil {
		r.Handler(EventsHandler{Hub: opts.Events})
	}
	return r
}


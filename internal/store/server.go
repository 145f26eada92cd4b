package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"
)

// Options configures a Server.
type Options struct {
	// PublicURL is the base used in listed image URLs. When empty the
	// request's host is used.
	PublicURL string
	// MaxUploadBytes caps a single upload. Zero means DefaultMaxUpload.
	MaxUploadBytes int64
	// Channel, when set, is mounted at /channel.
	Channel http.Handler
	// OnStored is called after each accepted upload.
	OnStored func(Stored)
}

// Server is the image store HTTP API.
type Server struct {
	store *Store
	opts  Options
	mux   *http.ServeMux
	now   func() time.Time
}

type response struct {
	Success      bool     `json:"success"`
	Message      string   `json:"message"`
	UploadedFile *Stored  `json:"uploadedFile,omitempty"`
	Images       *[]Image `json:"images,omitempty"`
	Timestamp    string   `json:"timestamp,omitempty"`
}

// NewServer wires the store endpoints onto a fresh mux.
func NewServer(store *Store, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUpload
	}
	s := &Server{
		store: store,
		opts:  opts,
		mux:   http.NewServeMux(),
		now:   time.Now,
	}
	s.mux.HandleFunc("POST /storeImage", s.handleStore)
	s.mux.HandleFunc("GET /getImages", s.handleList)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /images/", http.StripPrefix("/images/", http.FileServer(imageDir(store.Dir()))))
	if opts.Channel != nil {
		s.mux.Handle("GET /channel", opts.Channel)
	}
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if r.Method == http.MethodOptions {
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleStore(w http.ResponseWriter, r *http.Request) {
	limit := s.opts.MaxUploadBytes
	// Leave room for multipart framing around the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)

	stored, err := s.receive(r, limit)
	if err != nil {
		status := http.StatusBadRequest
		msg := err.Error()
		switch {
		case errors.Is(err, ErrTooLarge):
			msg = fmt.Sprintf("file exceeds the size limit (%dMB)", limit>>20)
		case errors.Is(err, ErrNotImage), errors.Is(err, ErrNoFile):
		case isClientError(err):
			msg = "malformed upload: " + err.Error()
		default:
			status = http.StatusInternalServerError
			msg = "internal server error: " + err.Error()
		}
		slog.Warn("upload rejected", "status", status, "error", err)
		writeJSON(w, status, response{Success: false, Message: msg})
		return
	}

	slog.Info("stored image", "filename", stored.Filename, "size", stored.Size, "mimetype", stored.MIMEType)
	if s.opts.OnStored != nil {
		s.opts.OnStored(stored)
	}
	writeJSON(w, http.StatusOK, response{Success: true, Message: "file uploaded", UploadedFile: &stored})
}

func (s *Server) receive(r *http.Request, limit int64) (Stored, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return Stored{}, clientError{err}
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return Stored{}, ErrNoFile
		}
		if err != nil {
			return Stored{}, classify(err, true)
		}
		if part.FormName() != "image" || part.FileName() == "" {
			part.Close()
			continue
		}
		defer part.Close()
		return s.savePart(part, limit)
	}
}

func (s *Server) savePart(part *multipart.Part, limit int64) (Stored, error) {
	ctype := part.Header.Get("Content-Type")
	if ctype == "" {
		ctype = mime.TypeByExtension(filepath.Ext(part.FileName()))
	}
	mediaType, _, err := mime.ParseMediaType(ctype)
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return Stored{}, ErrNotImage
	}
	body := &limitedReader{r: part, n: limit}
	stored, err := s.store.Save(part.FileName(), mediaType, body)
	if err != nil {
		if body.exceeded {
			return Stored{}, ErrTooLarge
		}
		return Stored{}, classify(err, false)
	}
	return stored, nil
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	images, err := s.store.List(s.baseURL(r))
	if err != nil {
		slog.Error("list images failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, response{Success: false, Message: "internal server error: " + err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, response{
		Success: true,
		Message: fmt.Sprintf("found %d images", len(images)),
		Images:  &images,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, response{
		Success:   true,
		Message:   "server is running",
		Timestamp: s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) baseURL(r *http.Request) string {
	if s.opts.PublicURL != "" {
		return s.opts.PublicURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// imageDir serves only image files from the store directory.
type imageDir string

func (d imageDir) Open(name string) (http.File, error) {
	if !IsImageName(name) {
		return nil, fs.ErrNotExist
	}
	return http.Dir(d).Open(name)
}

type limitedReader struct {
	r        io.Reader
	n        int64
	exceeded bool
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.n < 0 {
		l.exceeded = true
		return 0, ErrTooLarge
	}
	if int64(len(p)) > l.n+1 {
		p = p[:l.n+1]
	}
	n, err := l.r.Read(p)
	l.n -= int64(n)
	if l.n < 0 {
		l.exceeded = true
		return n, ErrTooLarge
	}
	return n, err
}

type clientError struct{ err error }

func (e clientError) Error() string { return e.err.Error() }
func (e clientError) Unwrap() error { return e.err }

func isClientError(err error) bool {
	var ce clientError
	return errors.As(err, &ce)
}

// classify maps body limit errors to ErrTooLarge. Other errors are marked
// as the client's fault when client is set.
func classify(err error, client bool) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) || errors.Is(err, ErrTooLarge) {
		return ErrTooLarge
	}
	if client {
		return clientError{err}
	}
	return err
}

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/dgallion1/docsum/internal/doctree"
	"github.com/dgallion1/docsum/internal/parser"
	"github.com/dgallion1/docsum/internal/pipeline"
)

// summarizeOptions are the per-request overrides of the configured defaults.
type summarizeOptions struct {
	Reduce       *bool  `json:"reduce"`
	ChunkSize    int    `json:"chunk_size" validate:"gte=0"`
	ChunkOverlap *int   `json:"chunk_overlap" validate:"omitempty,gte=0"`
	Directives   string `json:"directives" validate:"max=4000"`
}

type summarizeRequest struct {
	Filename string `json:"filename" validate:"required,max=255"`
	Content  string `json:"content" validate:"required"`
	summarizeOptions
}

type summarizeResponse struct {
	JobID        string             `json:"job_id"`
	TaskID       string             `json:"task_id"`
	Status       pipeline.JobStatus `json:"status"`
	PollURL      string             `json:"poll_url"`
	Deduplicated bool               `json:"deduplicated,omitempty"`
}

// handleSummarize accepts either a multipart upload in "file" or a JSON body
// carrying the text directly.
func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	// Extra 1MB for form overhead.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxUploadBytes+1<<20)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var (
		doc  doctree.Document
		opts summarizeOptions
		ok   bool
	)
	if mediaType == "multipart/form-data" {
		doc, opts, ok = s.readUpload(w, r)
	} else {
		doc, opts, ok = s.readJSONDocument(w, r)
	}
	if !ok {
		return
	}

	popts, err := s.pipelineOptions(opts)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	job, created, err := s.runner.Submit(doc, popts)
	if err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	code := http.StatusAccepted
	if !created {
		code = http.StatusOK
	}
	writeJSON(w, code, summarizeResponse{
		JobID:        job.ID,
		TaskID:       job.TaskID,
		Status:       job.Status(),
		PollURL:      "/api/summarize/" + job.ID,
		Deduplicated: !created,
	})
}

func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (doctree.Document, summarizeOptions, bool) {
	var opts summarizeOptions
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return doctree.Document{}, opts, false
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return doctree.Document{}, opts, false
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !parser.IsSupportedExtension(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return doctree.Document{}, opts, false
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.Server.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return doctree.Document{}, opts, false
	}
	if int64(len(data)) > s.cfg.Server.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.Server.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return doctree.Document{}, opts, false
	}

	if opts, err = formOptions(r); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return doctree.Document{}, opts, false
	}
	if err := s.validate.Struct(&opts); err != nil {
		jsonError(w, validationMessage(err), http.StatusBadRequest)
		return doctree.Document{}, opts, false
	}

	doc, err := parser.LoadBytes(data, filename)
	if err != nil {
		code := http.StatusUnprocessableEntity
		if errors.Is(err, parser.ErrUnsupported) {
			code = http.StatusBadRequest
		}
		jsonError(w, err.Error(), code)
		return doctree.Document{}, opts, false
	}
	return doc, opts, true
}

func (s *Server) readJSONDocument(w http.ResponseWriter, r *http.Request) (doctree.Document, summarizeOptions, bool) {
	var req summarizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return doctree.Document{}, req.summarizeOptions, false
	}
	if err := s.validate.Struct(&req); err != nil {
		jsonError(w, validationMessage(err), http.StatusBadRequest)
		return doctree.Document{}, req.summarizeOptions, false
	}
	return doctree.NewDocument(req.Content, sanitizeFilename(req.Filename)), req.summarizeOptions, true
}

// formOptions reads the optional multipart fields.
func formOptions(r *http.Request) (summarizeOptions, error) {
	var opts summarizeOptions
	if v := r.FormValue("reduce"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, fmt.Errorf("reduce: %w", err)
		}
		opts.Reduce = &b
	}
	if v := r.FormValue("chunk_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, fmt.Errorf("chunk_size: %w", err)
		}
		opts.ChunkSize = n
	}
	if v := r.FormValue("chunk_overlap"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, fmt.Errorf("chunk_overlap: %w", err)
		}
		opts.ChunkOverlap = &n
	}
	opts.Directives = r.FormValue("directives")
	return opts, nil
}

// pipelineOptions layers request overrides on the configured defaults.
func (s *Server) pipelineOptions(o summarizeOptions) (pipeline.Options, error) {
	cfg := s.cfg.ChunkConfig()
	if o.ChunkSize > 0 {
		cfg.ChunkSize = o.ChunkSize
	}
	if o.ChunkOverlap != nil {
		cfg.ChunkOverlap = *o.ChunkOverlap
	}
	if err := cfg.Validate(); err != nil {
		return pipeline.Options{}, err
	}

	reduce := s.cfg.Chunking.Reduce
	if o.Reduce != nil {
		reduce = *o.Reduce
	}
	return pipeline.Options{
		Chunking:   cfg,
		Directives: strings.TrimSpace(o.Directives),
		Reduce:     reduce,
	}, nil
}

func (s *Server) handleSummarizeStatus(w http.ResponseWriter, r *http.Request) {
	job := s.runner.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

// validationMessage flattens validator errors into one line.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return "invalid request: " + strings.Join(msgs, "; ")
}

func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed"
	}
	return name
}

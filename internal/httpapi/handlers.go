package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"filestore/internal/filestore"
	"filestore/internal/model"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userRecord struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

type fileRecord struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	CreatedAt      time.Time `json:"created_at"`
	Path           string    `json:"path"`
	Size           int64     `json:"size"`
	IsDownloadable bool      `json:"is_downloadable"`
}

func toFileRecord(f *model.File) fileRecord {
	return fileRecord{
		ID:             f.ID,
		Name:           f.Name,
		CreatedAt:      f.CreatedAt,
		Path:           f.Path,
		Size:           f.Size,
		IsDownloadable: f.Downloadable,
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, detail("invalid json"))
		return
	}

	u, err := s.Auth.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, userRecord{ID: u.ID, Username: u.Username, CreatedAt: u.CreatedAt})
}

// handleTokenForm is the OAuth2 password-flow endpoint.
func (s *Server) handleTokenForm(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, detail("invalid form"))
		return
	}
	s.issueToken(w, r, r.PostForm.Get("username"), r.PostForm.Get("password"), true)
}

func (s *Server) handleTokenJSON(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, detail("invalid json"))
		return
	}
	s.issueToken(w, r, req.Username, req.Password, false)
}

func (s *Server) issueToken(w http.ResponseWriter, r *http.Request, username, password string, withType bool) {
	if username == "" || password == "" {
		writeJSON(w, http.StatusBadRequest, detail("missing credentials"))
		return
	}

	tok, err := s.Auth.Login(r.Context(), username, password)
	if err != nil {
		if errors.Is(err, filestore.ErrUnauthorized) {
			w.Header().Set("www-authenticate", "Bearer")
			writeJSON(w, http.StatusUnauthorized, detail("Incorrect username or password"))
			return
		}
		s.writeError(w, r, err)
		return
	}

	resp := map[string]string{"access_token": tok}
	if withType {
		resp["token_type"] = "bearer"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r)
	files, err := s.Files.ListFiles(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]fileRecord, 0, len(files))
	for _, f := range files {
		out = append(out, toFileRecord(f))
	}
	writeJSON(w, http.StatusOK, map[string]any{"account_id": p.UserID, "files": out})
}

// handleUpload streams the multipart "file" part straight into the store
// without buffering the whole form.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("path")
	if target == "" {
		writeJSON(w, http.StatusBadRequest, detail("path is required"))
		return
	}
	if s.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.MaxUploadBytes+multipartOverhead)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, detail("expected multipart/form-data"))
		return
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			writeJSON(w, http.StatusBadRequest, detail("file is required"))
			return
		}
		if err != nil {
			s.writeError(w, r, fmt.Errorf("%w: reading multipart body: %w", filestore.ErrInvalidInput, err))
			return
		}
		if part.FormName() != "file" {
			part.Close()
			continue
		}

		filename := part.FileName()
		if filename == "" || filename == "." || filename == "/" {
			part.Close()
			writeJSON(w, http.StatusBadRequest, detail("file needs a filename"))
			return
		}

		f, err := s.Files.Upload(r.Context(), principalFrom(r), filestore.UploadPath(target, filename), part)
		part.Close()
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toFileRecord(f))
		return
	}
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	raw := q.Get("path")
	if raw == "" {
		writeJSON(w, http.StatusBadRequest, detail("path is required"))
		return
	}
	tok := filestore.ParseToken(raw)

	var d *filestore.Download
	var err error
	if codec := q.Get("compression_type"); codec != "" {
		d, err = s.Files.DownloadArchive(r.Context(), tok, codec)
	} else {
		d, err = s.Files.Download(r.Context(), tok)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer d.Content.Close()

	w.Header().Set("content-type", d.MediaType)
	w.Header().Set("content-disposition", mime.FormatMediaType("attachment", map[string]string{"filename": d.Filename}))
	http.ServeContent(w, r, d.Filename, d.ModTime, d.Content)
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	res, err := s.Files.Ping(r.Context())
	if err != nil {
		s.Logger.ErrorContext(r.Context(), "ping failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, detail("database unavailable"))
		return
	}

	cache := res.Cache.Seconds()
	if res.Cache < 0 {
		cache = -1
	}
	writeJSON(w, http.StatusOK, map[string]float64{"db": res.Database.Seconds(), "cache": cache})
}

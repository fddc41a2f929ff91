package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/you-humble/videogen/internal/domain"

	"github.com/google/uuid"
)

type Usecase interface {
	Submit(ctx context.Context, kind domain.TaskKind, p domain.GenerationParams) (string, error)
	GetStatus(ctx context.Context, taskID string) (domain.StatusResponse, error)
	UploadVideo(ctx context.Context, file io.Reader, filename, userID string, size int64) (domain.UploadResponse, error)
	ListVideos(ctx context.Context, userID string) (domain.ListVideosResponse, error)
}

type handler struct {
	maxUploadBytes int64
	usecase        Usecase
}

func NewHandler(maxUploadBytesMb int64, uc Usecase) *handler {
	return &handler{
		maxUploadBytes: maxUploadBytesMb << 20,
		usecase:        uc,
	}
}

type generateRequest struct {
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspect_ratio"`
	Loop        *bool  `json:"loop"`
	ImageURL    string `json:"image_url"`
	UserID      string `json:"user_id"`

	// soundful submissions only
	AudioPrompt         string `json:"audio_prompt"`
	AudioNegativePrompt string `json:"audio_negative_prompt"`
}

func (h *handler) generate(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, domain.KindPlain)
}

func (h *handler) generateSoundful(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, domain.KindSoundful)
}

func (h *handler) submit(w http.ResponseWriter, r *http.Request, kind domain.TaskKind) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "")
		return
	}

	requestID := uuid.NewString()
	logger := slog.With(
		slog.String("request_id", requestID),
		slog.String("handler", "submit"),
		slog.String("kind", string(kind)),
		slog.String("remote_addr", r.RemoteAddr),
	)

	defer r.Body.Close()

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("decode request", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	loop := true
	if req.Loop != nil {
		loop = *req.Loop
	}

	taskID, err := h.usecase.Submit(r.Context(), kind, domain.GenerationParams{
		Prompt:              req.Prompt,
		AspectRatio:         req.AspectRatio,
		Loop:                loop,
		ImageURL:            req.ImageURL,
		UserID:              req.UserID,
		AudioPrompt:         req.AudioPrompt,
		AudioNegativePrompt: req.AudioNegativePrompt,
	})
	if err != nil {
		if errors.Is(err, domain.ErrEmptyPrompt) {
			writeError(w, http.StatusBadRequest, domain.ErrEmptyPrompt.Error())
			return
		}
		logger.Error("Submit usecase", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "cannot create generation task")
		return
	}

	writeJSON(w, http.StatusAccepted, domain.SubmitResponse{
		Status: "accepted",
		TaskID: taskID,
	})
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "")
		return
	}

	requestID := uuid.NewString()
	logger := slog.With(
		slog.String("request_id", requestID),
		slog.String("handler", "status"),
		slog.String("remote_addr", r.RemoteAddr),
	)

	taskID := strings.TrimPrefix(r.URL.Path, "/task/")
	if taskID == "" {
		logger.Error("missing ID")
		writeError(w, http.StatusBadRequest, "missing ID")
		return
	}

	resp, err := h.usecase.GetStatus(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		logger.Error("GetStatus", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) upload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "")
		return
	}

	requestID := uuid.NewString()
	logger := slog.With(
		slog.String("request_id", requestID),
		slog.String("handler", "upload"),
		slog.String("remote_addr", r.RemoteAddr),
	)

	defer r.Body.Close()
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		logger.Error("ParseMultipartForm", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, "unable to parse multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		logger.Warn("missing file field")
		writeError(w, http.StatusBadRequest, "field `file` is required")
		return
	}
	defer file.Close()

	resp, err := h.usecase.UploadVideo(
		r.Context(),
		file,
		header.Filename,
		r.URL.Query().Get("user_id"),
		header.Size,
	)
	if err != nil {
		logger.Error("UploadVideo usecase",
			slog.String("file_name", header.Filename),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "cannot store video")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) videos(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "")
		return
	}

	requestID := uuid.NewString()
	logger := slog.With(
		slog.String("request_id", requestID),
		slog.String("handler", "videos"),
		slog.String("remote_addr", r.RemoteAddr),
	)

	resp, err := h.usecase.ListVideos(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		logger.Error("ListVideos usecase", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "cannot list videos")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func writeError(w http.ResponseWriter, status int, message string) {
	if message == "" {
		message = http.StatusText(status)
	}
	resp := domain.ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("writeJSON", slog.String("error", err.Error()))
	}
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"mediagrab/internal/api/response"
	"mediagrab/internal/core/artifact"
	"mediagrab/internal/core/job"
	"mediagrab/internal/core/ytdlp"
)

// Downloader runs a synchronous extraction and registers the artifact.
// Satisfied by *download.Service.
type Downloader interface {
	Download(ctx context.Context, url string, format ytdlp.Format) (artifact.Entry, error)
}

// Jobs is the job state machine surface the API consumes.
// Satisfied by *job.Service.
type Jobs interface {
	Create(ctx context.Context, url string, input json.RawMessage) (string, error)
	Get(ctx context.Context, id string) (*job.Envelope, error)
}

// Pinger probes the job record store backend. Satisfied by *store.Store.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	downloads Downloader
	jobs      Jobs
	cache     *artifact.Cache
	store     Pinger
}

func NewHandler(downloads Downloader, jobs Jobs, cache *artifact.Cache, store Pinger) *Handler {
	return &Handler{downloads: downloads, jobs: jobs, cache: cache, store: store}
}

func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func (h *Handler) HealthRedis(c echo.Context) error {
	if err := h.store.Ping(c.Request().Context()); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"ok":    false,
			"error": echo.Map{"message": err.Error()},
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

type downloadRequest struct {
	URL    *string `json:"url"`
	Format string  `json:"format"`
}

// Download holds the request open until the subprocess finalizes, then
// answers with the artifact id and its pickup URL.
func (h *Handler) Download(c echo.Context) error {
	var req downloadRequest
	if err := c.Bind(&req); err != nil {
		return response.Fail(c, http.StatusBadRequest, "BAD_REQUEST", "malformed request body")
	}
	if req.URL == nil {
		return response.Fail(c, http.StatusBadRequest, "BAD_REQUEST", "url is required and must be a string")
	}
	if !ytdlp.AllowedURL(*req.URL) {
		return response.Fail(c, http.StatusBadRequest, "BAD_REQUEST", "url is not an allowed media source")
	}

	format := ytdlp.FormatMP3
	switch req.Format {
	case "", "mp3":
	case "mp4":
		format = ytdlp.FormatMP4
	default:
		return response.Fail(c, http.StatusBadRequest, "BAD_REQUEST", "format must be mp3 or mp4")
	}

	entry, err := h.downloads.Download(c.Request().Context(), *req.URL, format)
	if err != nil {
		return downloadError(c, err)
	}

	return response.OK(c, http.StatusOK, echo.Map{
		"id":          entry.ID,
		"filename":    entry.Filename,
		"downloadUrl": "/files/" + entry.ID,
	})
}

// downloadError maps orchestrator failures onto the download endpoint's
// error shape: {error, code, details}.
func downloadError(c echo.Context, err error) error {
	var procErr *ytdlp.ProcessError
	switch {
	case errors.As(err, &procErr):
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error":   "media extraction failed",
			"code":    "PROCESS_FAILURE",
			"details": fmt.Sprintf("exit code %d: %s", procErr.ExitCode, procErr.Tail),
		})
	case errors.Is(err, ytdlp.ErrArtifactMissing):
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error":   "extraction produced no file",
			"code":    "ARTIFACT_MISSING",
			"details": err.Error(),
		})
	default:
		log.Error().Err(err).Msg("download failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error":   "internal error",
			"code":    "INTERNAL",
			"details": err.Error(),
		})
	}
}

// File streams a cached artifact as an attachment.
func (h *Handler) File(c echo.Context) error {
	entry, ok := h.cache.Get(c.Param("id"))
	if !ok {
		return response.Fail(c, http.StatusNotFound, "NOT_FOUND", "unknown or expired file id")
	}

	f, err := os.Open(entry.FilePath)
	if err != nil {
		log.Warn().Err(err).Str("id", entry.ID).Msg("artifact entry present but file unreadable")
		return response.Fail(c, http.StatusNotFound, "NOT_FOUND", "file is no longer available")
	}
	defer f.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename=%q`, entry.Filename))
	return c.Stream(http.StatusOK, entry.MIME, f)
}

// Transcribe accepts the job, schedules the background progression and
// acknowledges immediately. The opaque request body is stored verbatim as
// the job input.
func (h *Handler) Transcribe(c echo.Context) error {
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return response.Fail(c, http.StatusBadRequest, "BAD_REQUEST", "unreadable request body")
	}

	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return response.Fail(c, http.StatusBadRequest, "BAD_REQUEST", "malformed JSON body")
	}
	url, ok := body["url"].(string)
	if !ok || url == "" {
		return response.Fail(c, http.StatusBadRequest, "BAD_REQUEST", "url is required and must be a string")
	}

	jobID, err := h.jobs.Create(c.Request().Context(), url, json.RawMessage(raw))
	if err != nil {
		log.Error().Err(err).Msg("job creation failed")
		return response.Fail(c, http.StatusInternalServerError, "INTERNAL", "could not create job")
	}

	return response.OK(c, http.StatusAccepted, echo.Map{"jobId": jobID})
}

func (h *Handler) Job(c echo.Context) error {
	env, err := h.jobs.Get(c.Request().Context(), c.Param("jobId"))
	if err != nil {
		log.Error().Err(err).Msg("job lookup failed")
		return response.Fail(c, http.StatusInternalServerError, "INTERNAL", "job lookup failed")
	}
	if env == nil {
		return response.Fail(c, http.StatusNotFound, "JOB_NOT_FOUND", "job does not exist or has expired")
	}
	return response.OK(c, http.StatusOK, echo.Map{"job": env})
}

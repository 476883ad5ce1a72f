package handlers

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"neongen/internal/domain"
	"neongen/internal/providers/fal"
	"neongen/internal/training"
)

// MIME types accepted for training images.
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// multipartMemoryLimit is how much of the upload is kept in memory before
// spilling to temp files.
const multipartMemoryLimit = 64 << 20

// StylesTrain starts a new LoRA training job from a multipart upload of
// images plus styleName and styleType fields. It responds 202 with the job
// id as soon as the remote queue accepts the job; training continues
// asynchronously and is observed via the status endpoint.
func (a *App) StylesTrain(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		a.error(w, http.StatusBadRequest, "invalid multipart payload")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	styleName := strings.TrimSpace(r.FormValue("styleName"))
	if styleName == "" {
		a.error(w, http.StatusBadRequest, "styleName is required")
		return
	}

	styleType := domain.StyleType(strings.TrimSpace(r.FormValue("styleType")))
	if !styleType.Valid() {
		a.error(w, http.StatusBadRequest, fmt.Sprintf("styleType must be one of: %s", styleTypeList()))
		return
	}

	var headers []*multipart.FileHeader
	if r.MultipartForm != nil {
		headers = r.MultipartForm.File["images"]
	}
	if len(headers) < a.Config.TrainMinImages {
		a.error(w, http.StatusBadRequest,
			fmt.Sprintf("At least %d images are required. Received: %d", a.Config.TrainMinImages, len(headers)))
		return
	}
	if len(headers) > a.Config.TrainMaxImages {
		a.error(w, http.StatusBadRequest,
			fmt.Sprintf("Maximum %d images allowed. Received: %d", a.Config.TrainMaxImages, len(headers)))
		return
	}

	images := make([]training.ImageFile, 0, len(headers))
	var thumbnail string
	for i, header := range headers {
		contentType := header.Header.Get("Content-Type")
		if !allowedImageTypes[contentType] {
			a.error(w, http.StatusBadRequest,
				fmt.Sprintf("Invalid file type: %s. Only JPEG, PNG, and WEBP are allowed.", contentType))
			return
		}
		if header.Size > a.Config.MaxImageSizeBytes {
			a.error(w, http.StatusBadRequest,
				fmt.Sprintf("Image %q exceeds the %d MB limit", header.Filename, a.Config.MaxImageSizeBytes>>20))
			return
		}
		data, err := readUpload(header)
		if err != nil {
			a.error(w, http.StatusBadRequest, fmt.Sprintf("failed to read image %q", header.Filename))
			return
		}
		images = append(images, training.ImageFile{Name: header.Filename, Data: data})
		if i == 0 {
			thumbnail = "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
		}
	}

	job, err := a.Submitter.Submit(r.Context(), training.SubmitParams{
		JobID:     uuid.NewString(),
		StyleName: styleName,
		StyleType: styleType,
		Images:    images,
		Thumbnail: thumbnail,
	})
	if err != nil {
		a.record(r.Context(), map[string]int{
			domain.CounterAIRequests:       1,
			domain.CounterTrainingFailures: 1,
		})
		a.error(w, http.StatusInternalServerError, fal.UserMessage(err))
		return
	}

	a.record(r.Context(), map[string]int{
		domain.CounterAIRequests:   1,
		domain.CounterTrainingJobs: 1,
	})
	a.json(w, http.StatusAccepted, map[string]string{
		"jobId":       job.ID,
		"triggerWord": job.TriggerWord,
	})
}

type statusResponse struct {
	domain.TrainingSnapshot
	RetryAfterSeconds int `json:"retryAfterSeconds"`
}

// StylesTrainStatus polls the training status for a job. The payload carries
// a retry hint: the normal poll interval, or the error backoff when the
// snapshot is annotated with a transient remote failure.
func (a *App) StylesTrainStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "jobId is required")
		return
	}

	snapshot, err := a.Poller.Poll(r.Context(), jobID)
	if err != nil {
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("styles: status poll failed")
		a.error(w, http.StatusInternalServerError, "Failed to poll training status")
		return
	}

	retry := int(a.Config.PollInterval.Seconds())
	if snapshot.ErrorMessage != "" && !snapshot.Status.Terminal() {
		retry = int(a.Config.PollErrorBackoff.Seconds())
	}
	a.json(w, http.StatusOK, statusResponse{TrainingSnapshot: snapshot, RetryAfterSeconds: retry})
}

// StylesList returns all known training jobs, newest first.
func (a *App) StylesList(w http.ResponseWriter, r *http.Request) {
	jobs, err := a.Styles.List(r.Context())
	if err != nil {
		a.Logger.Error().Err(err).Msg("styles: list failed")
		a.error(w, http.StatusInternalServerError, "Failed to list styles")
		return
	}
	if jobs == nil {
		jobs = []*domain.TrainingJob{}
	}
	a.json(w, http.StatusOK, jobs)
}

// StylesDelete removes a job record. The trained artifact remains on the
// provider's storage; only the local record is dropped.
func (a *App) StylesDelete(w http.ResponseWriter, r *http.Request) {
	styleID := chi.URLParam(r, "styleID")
	if err := a.Styles.Delete(r.Context(), styleID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "Style not found")
			return
		}
		a.Logger.Error().Err(err).Str("style_id", styleID).Msg("styles: delete failed")
		a.error(w, http.StatusInternalServerError, "Failed to delete style")
		return
	}
	a.json(w, http.StatusOK, map[string]bool{"deleted": true})
}

// StylesPrompts returns starter prompt suggestions for a style.
func (a *App) StylesPrompts(w http.ResponseWriter, r *http.Request) {
	styleID := chi.URLParam(r, "styleID")
	job, err := a.Styles.Get(r.Context(), styleID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "Style not found")
			return
		}
		a.Logger.Error().Err(err).Str("style_id", styleID).Msg("styles: prompt lookup failed")
		a.error(w, http.StatusInternalServerError, "Failed to load style")
		return
	}
	a.json(w, http.StatusOK, a.Suggester.Suggest(job))
}

func styleTypeList() string {
	names := make([]string, len(domain.StyleTypes))
	for i, t := range domain.StyleTypes {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

func readUpload(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/todo-list/internal/model"
	"github.com/BuzzLyutic/todo-list/internal/repo"
	"github.com/BuzzLyutic/todo-list/internal/service"
	"github.com/BuzzLyutic/todo-list/pkg/respond"
)

const (
	MsgCleared       = "Task list cleared!"
	MsgAdded         = "Task added successfully!"
	MsgDuplicate     = "Task already exists!"
	MsgInvalidTask   = "Please enter a valid task."
	MsgRemovedFormat = "Task \"%s\" removed successfully!"
	MsgInvalidIndex  = "Invalid task index."
	MsgInvalidInput  = "Invalid input for task index."
	MsgUnavailable   = "Task list is temporarily unavailable."
)

const (
	formTaskField   = "newtask"
	queryIndexField = "deltaskid"
	routeIndexParam = "index"

	maxBodyBytes = 64 << 10
)

type TaskHandler struct {
	service *service.TaskService
	logger  *zap.Logger
	now     func() time.Time
}

func NewTaskHandler(srv *service.TaskService, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		service: srv,
		logger:  logger,
		now:     time.Now,
	}
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "")
}

func (h *TaskHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Clear(r.Context()); err != nil {
		h.handleErrors(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, MsgCleared)
}

func (h *TaskHandler) Add(w http.ResponseWriter, r *http.Request) {
	raw, err := h.taskText(w, r)
	if err != nil {
		h.logger.Debug("failed to decode task", zap.Error(err))
		h.render(w, r, http.StatusBadRequest, MsgInvalidTask)
		return
	}

	if _, err := h.service.Append(r.Context(), raw); err != nil {
		h.handleErrors(w, r, err)
		return
	}
	h.render(w, r, http.StatusCreated, MsgAdded)
}

// Delete обслуживает и /deltask?deltaskid=N, и DELETE /api/tasks/{index}
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	param := chi.URLParam(r, routeIndexParam)
	if param == "" {
		param = r.URL.Query().Get(queryIndexField)
	}

	index, err := strconv.Atoi(strings.TrimSpace(param))
	if err != nil {
		h.render(w, r, http.StatusBadRequest, MsgInvalidInput)
		return
	}

	removed, err := h.service.RemoveAt(r.Context(), index)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, fmt.Sprintf(MsgRemovedFormat, removed))
}

// taskText берет текст задачи из JSON тела или из поля формы newtask
func (h *TaskHandler) taskText(w http.ResponseWriter, r *http.Request) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return "", err
		}
		return r.FormValue(formTaskField), nil
	}

	var req model.AddTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", err
	}
	return req.Task, nil
}

// render перечитывает список и отдает его вместе с сообщением
func (h *TaskHandler) render(w http.ResponseWriter, r *http.Request, code int, message string) {
	tasks, _ := h.service.Read(r.Context()) // при ошибке список пустой, причина уже в логе
	respond.View(w, r, code, model.NewTaskListView(h.now(), tasks, message))
}

func (h *TaskHandler) handleErrors(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		h.render(w, r, http.StatusBadRequest, MsgInvalidTask)
	case errors.Is(err, service.ErrDuplicate):
		h.render(w, r, http.StatusConflict, MsgDuplicate)
	case errors.Is(err, service.ErrIndexOutOfRange):
		h.render(w, r, http.StatusNotFound, MsgInvalidIndex)
	case errors.Is(err, repo.ErrStorageUnavailable):
		// Хранилище недоступно - не ошибка сервера, показываем пустой список
		respond.View(w, r, http.StatusOK, model.NewTaskListView(h.now(), nil, MsgUnavailable))
	default:
		h.logger.Error("internal error", zap.Error(err))
		respond.Error(w, r, http.StatusInternalServerError, "internal error")
	}
}

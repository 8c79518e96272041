package api

import (
	"log/slog"
	"net/http"
	"strings"

	"tasktracker/internal/api/middleware"
	"tasktracker/internal/api/response"
	"tasktracker/internal/api/validate"
	"tasktracker/internal/pkg/apperr"
	"tasktracker/internal/pkg/metrics"
	"tasktracker/internal/task"

	"github.com/gin-gonic/gin"
)

const msgTaskNotFound = "Task not found"

// IdempotencyKeyHeader 让客户端安全重试创建请求。
const IdempotencyKeyHeader = "Idempotency-Key"

func recordTaskOp(op string, err error) {
	result := "ok"
	if err != nil {
		result = apperr.KindOf(err).String()
	}
	metrics.TaskOperationsTotal.WithLabelValues(op, result).Inc()
}

// handleCreateTask 创建任务。
//
// POST /api/tasks
func (s *Server) handleCreateTask(c *gin.Context) {
	var req validate.TaskRequest
	if err := validate.BindJSON(c, &req); err != nil {
		recordTaskOp("create", err)
		response.Error(c, s.logger, err, response.Messages{})
		return
	}
	in, err := validate.TaskCreate(req, s.now())
	if err != nil {
		recordTaskOp("create", err)
		response.Error(c, s.logger, err, response.Messages{})
		return
	}

	userID := middleware.CurrentUserID(c)
	idemKey := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader))
	claimed := false
	if idemKey != "" && s.idempotency != nil {
		ok, err := s.idempotency.Claim(c.Request.Context(), userID, idemKey)
		claimed = err == nil && ok
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("idempotency check failed", slog.String("error", err.Error()))
			}
		} else if !ok {
			recordTaskOp("create", apperr.ErrConflict)
			response.Fail(c, http.StatusConflict, "Duplicate request")
			return
		}
	}

	t, err := s.tasks.Create(c.Request.Context(), userID, in)
	recordTaskOp("create", err)
	if err != nil {
		if claimed {
			if relErr := s.idempotency.Release(c.Request.Context(), userID, idemKey); relErr != nil && s.logger != nil {
				s.logger.Warn("idempotency release failed", slog.String("error", relErr.Error()))
			}
		}
		response.Error(c, s.logger, err, response.Messages{Internal: "Internal server error while creating task"})
		return
	}
	response.OK(c, http.StatusCreated, "Task created successfully", gin.H{"task": t})
}

// handleListTasks 返回分页任务列表。
//
// GET /api/tasks?page=&limit=&status=&sortBy=&sortOrder=
func (s *Server) handleListTasks(c *gin.Context) {
	params, err := validate.ListQuery(c.Request.URL.Query(), validate.ListLimits{
		Default: s.cfg.App.DefaultLimit,
		Max:     s.cfg.App.MaxLimit,
	})
	if err != nil {
		recordTaskOp("list", err)
		response.Error(c, s.logger, err, response.Messages{})
		return
	}

	page, err := s.tasks.List(c.Request.Context(), middleware.CurrentUserID(c), params)
	recordTaskOp("list", err)
	if err != nil {
		response.Error(c, s.logger, err, response.Messages{Internal: "Internal server error while fetching tasks"})
		return
	}
	user, _ := middleware.CurrentUser(c)
	response.OK(c, http.StatusOK, "", gin.H{
		"tasks":      page.Tasks,
		"pagination": page.Pagination,
		"user":       user,
	})
}

// handleGetTask 返回单个任务。
//
// GET /api/tasks/:id
func (s *Server) handleGetTask(c *gin.Context) {
	id, err := validate.TaskID(c.Param("id"))
	if err != nil {
		recordTaskOp("get", err)
		response.Error(c, s.logger, err, response.Messages{})
		return
	}

	t, err := s.tasks.Get(c.Request.Context(), middleware.CurrentUserID(c), id)
	recordTaskOp("get", err)
	if err != nil {
		response.Error(c, s.logger, err, response.Messages{NotFound: msgTaskNotFound, Internal: "Internal server error while fetching task"})
		return
	}
	response.OK(c, http.StatusOK, "", gin.H{"task": t})
}

// handleUpdateTask 局部更新任务，只修改请求中出现的字段。
//
// PUT /api/tasks/:id
func (s *Server) handleUpdateTask(c *gin.Context) {
	ve := &apperr.ValidationError{}
	id, err := validate.TaskID(c.Param("id"))
	if err != nil {
		ve.Violations = append(ve.Violations, apperr.Violations(err)...)
	}

	var patch task.Patch
	var req validate.TaskRequest
	if err := validate.BindJSON(c, &req); err != nil {
		ve.Violations = append(ve.Violations, apperr.Violations(err)...)
	} else if patch, err = validate.TaskUpdate(req, s.now()); err != nil {
		ve.Violations = append(ve.Violations, apperr.Violations(err)...)
	}
	if err := ve.Err(); err != nil {
		recordTaskOp("update", err)
		response.Error(c, s.logger, err, response.Messages{})
		return
	}

	t, err := s.tasks.Update(c.Request.Context(), middleware.CurrentUserID(c), id, patch)
	recordTaskOp("update", err)
	if err != nil {
		response.Error(c, s.logger, err, response.Messages{NotFound: msgTaskNotFound, Internal: "Internal server error while updating task"})
		return
	}
	response.OK(c, http.StatusOK, "Task updated successfully", gin.H{"task": t})
}

// handleDeleteTask 删除任务。
//
// DELETE /api/tasks/:id
func (s *Server) handleDeleteTask(c *gin.Context) {
	id, err := validate.TaskID(c.Param("id"))
	if err != nil {
		recordTaskOp("delete", err)
		response.Error(c, s.logger, err, response.Messages{})
		return
	}

	err = s.tasks.Delete(c.Request.Context(), middleware.CurrentUserID(c), id)
	recordTaskOp("delete", err)
	if err != nil {
		response.Error(c, s.logger, err, response.Messages{NotFound: msgTaskNotFound, Internal: "Internal server error while deleting task"})
		return
	}
	response.OK(c, http.StatusOK, "Task deleted successfully", nil)
}

// handleTaskStats 返回当前用户的任务统计。
//
// GET /api/tasks/stats
func (s *Server) handleTaskStats(c *gin.Context) {
	st, err := s.tasks.Stats(c.Request.Context(), middleware.CurrentUserID(c))
	recordTaskOp("stats", err)
	if err != nil {
		response.Error(c, s.logger, err, response.Messages{Internal: "Internal server error while fetching task statistics"})
		return
	}
	response.OK(c, http.StatusOK, "", gin.H{"stats": st})
}

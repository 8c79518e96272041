package task

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tasktracker/internal/model"
	"tasktracker/internal/pkg/apperr"
)

// Store 是任务的持久化接口。
//
// 每个方法都以 ownerID 为必填参数，实现必须把它作为查询条件，
// 不属于该用户的任务与不存在的任务表现一致（apperr.ErrNotFound）。
type Store interface {
	Create(ctx context.Context, task *model.Task) error
	List(ctx context.Context, ownerID uint, q ListQuery) ([]model.Task, int64, error)
	Get(ctx context.Context, ownerID, id uint) (*model.Task, error)
	Update(ctx context.Context, ownerID, id uint, patch Patch) (*model.Task, error)
	Delete(ctx context.Context, ownerID, id uint) error
	Stats(ctx context.Context, ownerID uint, now time.Time) (Stats, error)
}

// CreateInput 创建任务的输入（已通过校验层）。
type CreateInput struct {
	TaskName    string
	Description string
	DueDate     time.Time
	Status      model.TaskStatus // 为空时取 pending
}

// Patch 局部更新：nil 字段保持不变。
type Patch struct {
	TaskName    *string
	Description *string
	DueDate     *time.Time
	Status      *model.TaskStatus
}

// Empty 报告是否没有任何字段需要更新。
func (p Patch) Empty() bool {
	return p.TaskName == nil && p.Description == nil && p.DueDate == nil && p.Status == nil
}

// Service 是任务查询引擎，所有操作都限定在调用者自己的任务上。
type Service struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewService 创建任务服务。
func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// requireOwner 与网关的身份校验相互独立：没有 owner 的调用直接拒绝。
func requireOwner(ownerID uint) error {
	if ownerID == 0 {
		return fmt.Errorf("task: missing owner: %w", apperr.ErrUnauthenticated)
	}
	return nil
}

// Create 为 owner 创建任务。
func (s *Service) Create(ctx context.Context, ownerID uint, in CreateInput) (*model.Task, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	status := in.Status
	if status == "" {
		status = model.StatusPending
	}
	t := &model.Task{
		TaskName:    strings.TrimSpace(in.TaskName),
		Description: strings.TrimSpace(in.Description),
		DueDate:     in.DueDate.UTC(),
		Status:      status,
		UserID:      ownerID,
	}
	if err := s.store.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	if s.logger != nil {
		s.logger.Info("task created", slog.Uint64("user_id", uint64(ownerID)), slog.Uint64("task_id", uint64(t.ID)))
	}
	return t, nil
}

// List 返回 owner 的一页任务以及分页信息。
//
// 超出总页数的页码返回空列表，而不是错误。
func (s *Service) List(ctx context.Context, ownerID uint, params ListParams) (*Page, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	p := params.withDefaults()
	column, ok := SortColumn(p.SortBy)
	if !ok {
		return nil, apperr.NewValidation(apperr.Violation{Field: "sortBy", Message: "Invalid sort field"})
	}
	if p.Status != "" && !p.Status.Valid() {
		return nil, apperr.NewValidation(apperr.Violation{Field: "status", Message: "Status must be one of: pending, in-progress, completed"})
	}

	tasks, total, err := s.store.List(ctx, ownerID, ListQuery{
		Status: p.Status,
		Column: column,
		Desc:   p.SortOrder != "asc",
		Offset: pageOffset(p.Page, p.Limit),
		Limit:  p.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	return &Page{
		Tasks:      tasks,
		Pagination: NewPagination(p.Page, p.Limit, total),
	}, nil
}

// Get 返回 owner 的指定任务。
func (s *Service) Get(ctx context.Context, ownerID, id uint) (*model.Task, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	t, err := s.store.Get(ctx, ownerID, id)
	if err != nil {
		return nil, fmt.Errorf("get task %d: %w", id, err)
	}
	return t, nil
}

// Update 只修改 patch 中给出的字段。
func (s *Service) Update(ctx context.Context, ownerID, id uint, patch Patch) (*model.Task, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if patch.TaskName != nil {
		v := strings.TrimSpace(*patch.TaskName)
		patch.TaskName = &v
	}
	if patch.Description != nil {
		v := strings.TrimSpace(*patch.Description)
		patch.Description = &v
	}
	if patch.DueDate != nil {
		v := patch.DueDate.UTC()
		patch.DueDate = &v
	}

	var (
		t   *model.Task
		err error
	)
	if patch.Empty() {
		t, err = s.store.Get(ctx, ownerID, id)
	} else {
		t, err = s.store.Update(ctx, ownerID, id, patch)
	}
	if err != nil {
		return nil, fmt.Errorf("update task %d: %w", id, err)
	}
	return t, nil
}

// Delete 删除 owner 的指定任务。
func (s *Service) Delete(ctx context.Context, ownerID, id uint) error {
	if err := requireOwner(ownerID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, ownerID, id); err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	if s.logger != nil {
		s.logger.Info("task deleted", slog.Uint64("user_id", uint64(ownerID)), slog.Uint64("task_id", uint64(id)))
	}
	return nil
}

// Stats 统计 owner 的全部任务；没有任务时返回全零。
func (s *Service) Stats(ctx context.Context, ownerID uint) (Stats, error) {
	if err := requireOwner(ownerID); err != nil {
		return Stats{}, err
	}
	st, err := s.store.Stats(ctx, ownerID, s.now().UTC())
	if err != nil {
		return Stats{}, fmt.Errorf("task stats: %w", err)
	}
	return st, nil
}

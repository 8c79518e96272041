package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tasktracker/internal/model"
	"tasktracker/internal/pkg/apperr"
	"tasktracker/internal/task"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TaskStore 任务存储。每条语句都带 user_id 条件。
type TaskStore struct {
	db *gorm.DB
}

// NewTaskStore 创建 TaskStore。
func NewTaskStore(db *gorm.DB) *TaskStore {
	return &TaskStore{db: db}
}

var _ task.Store = (*TaskStore)(nil)

func ownedBy(ownerID uint) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("user_id = ?", ownerID)
	}
}

func withStatus(status model.TaskStatus) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if status == "" {
			return db
		}
		return db.Where("status = ?", status)
	}
}

// Create 写入任务，存储层约束由 model.Task 的钩子校验。
func (s *TaskStore) Create(ctx context.Context, t *model.Task) error {
	if t.UserID == 0 {
		return fmt.Errorf("create task without owner: %w", apperr.ErrUnauthenticated)
	}
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		if apperr.KindOf(err) == apperr.KindValidation {
			return err
		}
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// List 返回一页任务与匹配总数。计数和分页各是一条查询。
func (s *TaskStore) List(ctx context.Context, ownerID uint, q task.ListQuery) ([]model.Task, int64, error) {
	base := func() *gorm.DB {
		return s.db.WithContext(ctx).Model(&model.Task{}).Scopes(ownedBy(ownerID), withStatus(q.Status))
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", err)
	}

	tasks := []model.Task{}
	if total == 0 || int64(q.Offset) >= total {
		return tasks, total, nil
	}

	err := base().
		Order(clause.OrderByColumn{Column: clause.Column{Name: q.Column}, Desc: q.Desc}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: q.Desc}).
		Offset(q.Offset).
		Limit(q.Limit).
		Find(&tasks).Error
	if err != nil {
		return nil, 0, fmt.Errorf("query tasks: %w", err)
	}
	return tasks, total, nil
}

// Get 查询 owner 名下的任务；不属于 owner 时同样返回 NotFound。
func (s *TaskStore) Get(ctx context.Context, ownerID, id uint) (*model.Task, error) {
	var t model.Task
	if err := s.db.WithContext(ctx).Scopes(ownedBy(ownerID)).First(&t, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("task %d: %w", id, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("find task: %w", err)
	}
	return &t, nil
}

// Update 只写入 patch 中给出的列，并返回更新后的任务。
func (s *TaskStore) Update(ctx context.Context, ownerID, id uint, patch task.Patch) (*model.Task, error) {
	current, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	now := s.db.NowFunc()
	updates := map[string]interface{}{}
	if patch.TaskName != nil {
		current.TaskName = *patch.TaskName
		updates["task_name"] = *patch.TaskName
	}
	if patch.Description != nil {
		current.Description = *patch.Description
		updates["description"] = *patch.Description
	}
	if patch.DueDate != nil {
		if err := model.ValidateDueDate(*patch.DueDate, now); err != nil {
			return nil, err
		}
		current.DueDate = patch.DueDate.UTC()
		updates["due_date"] = current.DueDate
	}
	if patch.Status != nil {
		current.Status = *patch.Status
		updates["status"] = *patch.Status
	}
	if len(updates) == 0 {
		return current, nil
	}
	if err := current.Validate(); err != nil {
		return nil, err
	}
	updates["updated_at"] = now

	if err := s.db.WithContext(ctx).Model(&model.Task{}).
		Scopes(ownedBy(ownerID)).
		Where("id = ?", id).
		Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	// 重新读取，反映并发写入后的最终状态
	return s.Get(ctx, ownerID, id)
}

// Delete 删除 owner 名下的任务。
func (s *TaskStore) Delete(ctx context.Context, ownerID, id uint) error {
	res := s.db.WithContext(ctx).Scopes(ownedBy(ownerID)).Where("id = ?", id).Delete(&model.Task{})
	if res.Error != nil {
		return fmt.Errorf("delete task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("task %d: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// Stats 用一条聚合查询统计 owner 的任务。
func (s *TaskStore) Stats(ctx context.Context, ownerID uint, now time.Time) (task.Stats, error) {
	var st task.Stats
	err := s.db.WithContext(ctx).Model(&model.Task{}).
		Select(`COUNT(*) AS total_tasks,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS pending_tasks,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS in_progress_tasks,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS completed_tasks,
			COALESCE(SUM(CASE WHEN due_date < ? AND status <> ? THEN 1 ELSE 0 END), 0) AS overdue_tasks`,
			model.StatusPending, model.StatusInProgress, model.StatusCompleted, now.UTC(), model.StatusCompleted).
		Scopes(ownedBy(ownerID)).
		Scan(&st).Error
	if err != nil {
		return task.Stats{}, fmt.Errorf("aggregate tasks: %w", err)
	}
	return st, nil
}

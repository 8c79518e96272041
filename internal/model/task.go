package model

import (
	"fmt"
	"slices"
	"time"
	"unicode/utf8"

	"tasktracker/internal/pkg/apperr"

	"gorm.io/gorm"
)

// 存储层字段约束。输入校验层另有更严格的限制，两者独立生效。
const (
	MaxTaskNameLen          = 200
	MaxStoredDescriptionLen = 10000
)

// TaskStatus 任务状态。三种取值之间没有流转限制。
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in-progress"
	StatusCompleted  TaskStatus = "completed"
)

// Statuses 按固定顺序列出所有合法状态。
var Statuses = []TaskStatus{StatusPending, StatusInProgress, StatusCompleted}

// Valid 报告状态是否合法。
func (s TaskStatus) Valid() bool {
	return slices.Contains(Statuses, s)
}

// Task 表示用户的一条待办任务。
//
// 任务只属于一个用户（UserID 创建后不可变），所有读写都必须带上 user_id 条件。
type Task struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	TaskName    string     `gorm:"type:varchar(200);not null" json:"taskName"`
	Description string     `gorm:"type:text" json:"description"`
	DueDate     time.Time  `gorm:"not null;index:idx_tasks_user_due,priority:2" json:"dueDate"`
	Status      TaskStatus `gorm:"type:varchar(16);not null;default:pending;index:idx_tasks_user_status,priority:2" json:"status"`
	UserID      uint       `gorm:"not null;index:idx_tasks_user_created,priority:1;index:idx_tasks_user_due,priority:1;index:idx_tasks_user_status,priority:1" json:"userId"`
	CreatedAt   time.Time  `gorm:"index:idx_tasks_user_created,priority:2" json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Validate 校验存储层约束（不含截止时间的"未来"约束）。
func (t *Task) Validate() error {
	ve := &apperr.ValidationError{}
	if n := utf8.RuneCountInString(t.TaskName); n == 0 {
		ve.Add("taskName", "Task name is required")
	} else if n > MaxTaskNameLen {
		ve.Add("taskName", fmt.Sprintf("Task name cannot exceed %d characters", MaxTaskNameLen))
	}
	if utf8.RuneCountInString(t.Description) > MaxStoredDescriptionLen {
		ve.Add("description", fmt.Sprintf("Description cannot exceed %d characters", MaxStoredDescriptionLen))
	}
	if t.DueDate.IsZero() {
		ve.Add("dueDate", "Due date is required")
	}
	if !t.Status.Valid() {
		ve.Add("status", "Status must be one of: pending, in-progress, completed")
	}
	if t.UserID == 0 {
		ve.Add("userId", "User ID is required")
	}
	return ve.Err()
}

// ValidateDueDate 校验截止时间严格晚于 now。
func ValidateDueDate(due, now time.Time) error {
	if !due.After(now) {
		return apperr.NewValidation(apperr.Violation{Field: "dueDate", Message: "Due date must be in the future"})
	}
	return nil
}

// BeforeCreate 在写入前执行存储层校验。
func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.Status == "" {
		t.Status = StatusPending
	}
	t.DueDate = t.DueDate.UTC()
	if err := t.Validate(); err != nil {
		return err
	}
	return ValidateDueDate(t.DueDate, tx.NowFunc())
}

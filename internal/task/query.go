package task

import (
	"math"
	"sort"

	"tasktracker/internal/model"
)

// 列表查询默认值。
const (
	DefaultPage      = 1
	DefaultLimit     = 10
	DefaultSortBy    = "createdAt"
	DefaultSortOrder = "desc"
)

// sortColumns 将对外字段名映射到数据库列。只有这里列出的字段可以排序。
var sortColumns = map[string]string{
	"id":          "id",
	"taskName":    "task_name",
	"description": "description",
	"dueDate":     "due_date",
	"status":      "status",
	"userId":      "user_id",
	"createdAt":   "created_at",
	"updatedAt":   "updated_at",
}

// SortColumn 返回字段对应的列名。
func SortColumn(field string) (string, bool) {
	col, ok := sortColumns[field]
	return col, ok
}

// ListParams 是列表接口经过校验后的参数。
type ListParams struct {
	Page      int
	Limit     int
	Status    model.TaskStatus // 为空表示不过滤
	SortBy    string
	SortOrder string
}

// withDefaults 填充未设置的参数。
func (p ListParams) withDefaults() ListParams {
	if p.Page <= 0 {
		p.Page = DefaultPage
	}
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.SortBy == "" {
		p.SortBy = DefaultSortBy
	}
	if p.SortOrder != "asc" {
		p.SortOrder = DefaultSortOrder
	}
	return p
}

// ListQuery 是下发给存储层的查询。
//
// 排序列必须来自 SortColumn；存储层按 (Column, ID) 排序保证分页稳定。
type ListQuery struct {
	Status model.TaskStatus
	Column string
	Desc   bool
	Offset int
	Limit  int
}

// Pagination 列表分页信息。
type Pagination struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalTasks  int64 `json:"totalTasks"`
	HasNext     bool  `json:"hasNext"`
	HasPrev     bool  `json:"hasPrev"`
}

// pageOffset 返回页码对应的偏移量。乘积溢出时返回 math.MaxInt，
// 存储层据此判定为超出末页。
func pageOffset(page, limit int) int {
	if page <= 1 || limit <= 0 {
		return 0
	}
	if page-1 > math.MaxInt/limit {
		return math.MaxInt
	}
	return (page - 1) * limit
}

// NewPagination 根据总数计算分页信息。
func NewPagination(page, limit int, total int64) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(limit)))
	}
	return Pagination{
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalTasks:  total,
		HasNext:     page < totalPages,
		HasPrev:     page > 1,
	}
}

// Page 是一页任务。
type Page struct {
	Tasks      []model.Task `json:"tasks"`
	Pagination Pagination   `json:"pagination"`
}

// Stats 用户任务统计。
type Stats struct {
	TotalTasks      int64 `json:"totalTasks"`
	PendingTasks    int64 `json:"pendingTasks"`
	InProgressTasks int64 `json:"inProgressTasks"`
	CompletedTasks  int64 `json:"completedTasks"`
	OverdueTasks    int64 `json:"overdueTasks"`
}

// SortFields 按字母序返回可排序字段。
func SortFields() []string {
	fields := make([]string, 0, len(sortColumns))
	for f := range sortColumns {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

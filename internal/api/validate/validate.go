// Package validate 将原始请求转换为经过规范化的输入。
//
// 每个函数都会收集全部字段错误，以 *apperr.ValidationError 一次返回，
// 而不是在第一个错误处停止。
package validate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tasktracker/internal/model"
	"tasktracker/internal/pkg/apperr"
	"tasktracker/internal/task"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// 输入层长度限制。
const (
	MaxTaskNameLen    = model.MaxTaskNameLen
	MaxDescriptionLen = 1000
	MinPasswordLen    = 6
	MaxEmailLen       = 191
)

const (
	msgInvalidEmail     = "Please provide a valid email address"
	msgPasswordLength   = "Password must be at least 6 characters long"
	msgPasswordStrength = "Password must contain at least one lowercase letter, one uppercase letter, and one number"
	msgPasswordRequired = "Password is required"
	msgNameRequired     = "Task name is required"
	msgNameEmpty        = "Task name cannot be empty"
	msgNameTooLong      = "Task name cannot exceed 200 characters"
	msgDescTooLong      = "Description cannot exceed 1000 characters"
	msgDueDateFormat    = "Please provide a valid due date in ISO format"
	msgDueDateFuture    = "Due date must be in the future"
	msgStatus           = "Status must be one of: pending, in-progress, completed"
	msgTaskID           = "Invalid task ID format"
)

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New()
	_ = val.RegisterValidation("complexity", func(fl validator.FieldLevel) bool {
		var lower, upper, digit bool
		for _, r := range fl.Field().String() {
			switch {
			case 'a' <= r && r <= 'z':
				lower = true
			case 'A' <= r && r <= 'Z':
				upper = true
			case '0' <= r && r <= '9':
				digit = true
			}
		}
		return lower && upper && digit
	})
	return val
}

// 接受的 ISO-8601 形式；不带时区的按 UTC 解释。
var dueDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// BindJSON 解码请求体。空请求体视为空对象，类型不匹配按字段报告。
func BindJSON(c *gin.Context, dst any) error {
	err := c.ShouldBindJSON(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return apperr.NewValidation(apperr.Violation{
			Field:   typeErr.Field,
			Message: fmt.Sprintf("%s must be a %s", typeErr.Field, typeErr.Type.String()),
		})
	}
	return apperr.NewValidation(apperr.Violation{Field: "body", Message: "Request body must be valid JSON"})
}

// CredentialsRequest 注册与登录的请求体。
type CredentialsRequest struct {
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

// Credentials 规范化后的邮箱与密码。
type Credentials struct {
	Email    string
	Password string
}

// NormalizeEmail 去除空白并转为小写。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func checkEmail(ve *apperr.ValidationError, raw *string) string {
	email := ""
	if raw != nil {
		email = NormalizeEmail(*raw)
	}
	if err := v.Var(email, fmt.Sprintf("required,email,max=%d", MaxEmailLen)); err != nil {
		ve.Add("email", msgInvalidEmail)
	}
	return email
}

// Register 校验注册请求，密码需满足复杂度要求。
func Register(req CredentialsRequest) (Credentials, error) {
	ve := &apperr.ValidationError{}
	email := checkEmail(ve, req.Email)

	password := ""
	if req.Password != nil {
		password = *req.Password
	}
	if err := v.Var(password, fmt.Sprintf("min=%d", MinPasswordLen)); err != nil {
		ve.Add("password", msgPasswordLength)
	}
	if err := v.Var(password, "complexity"); err != nil {
		ve.Add("password", msgPasswordStrength)
	}

	if err := ve.Err(); err != nil {
		return Credentials{}, err
	}
	return Credentials{Email: email, Password: password}, nil
}

// Login 校验登录请求，只要求密码非空。
func Login(req CredentialsRequest) (Credentials, error) {
	ve := &apperr.ValidationError{}
	email := checkEmail(ve, req.Email)

	password := ""
	if req.Password != nil {
		password = *req.Password
	}
	if err := v.Var(password, "required"); err != nil {
		ve.Add("password", msgPasswordRequired)
	}

	if err := ve.Err(); err != nil {
		return Credentials{}, err
	}
	return Credentials{Email: email, Password: password}, nil
}

// TaskRequest 创建与更新任务共用的请求体。null 与缺省等价。
type TaskRequest struct {
	TaskName    *string `json:"taskName"`
	Description *string `json:"description"`
	DueDate     *string `json:"dueDate"`
	Status      *string `json:"status"`
}

// ParseDueDate 解析 ISO-8601 时间并转换为 UTC。
func ParseDueDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dueDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func checkDueDate(ve *apperr.ValidationError, raw string, now time.Time) (time.Time, bool) {
	due, ok := ParseDueDate(raw)
	if !ok {
		ve.Add("dueDate", msgDueDateFormat)
		return time.Time{}, false
	}
	if !due.After(now) {
		ve.Add("dueDate", msgDueDateFuture)
		return time.Time{}, false
	}
	return due, true
}

func checkName(ve *apperr.ValidationError, name, emptyMsg string) {
	if err := v.Var(name, "required"); err != nil {
		ve.Add("taskName", emptyMsg)
		return
	}
	if err := v.Var(name, fmt.Sprintf("max=%d", MaxTaskNameLen)); err != nil {
		ve.Add("taskName", msgNameTooLong)
	}
}

func checkDescription(ve *apperr.ValidationError, desc string) {
	if err := v.Var(desc, fmt.Sprintf("max=%d", MaxDescriptionLen)); err != nil {
		ve.Add("description", msgDescTooLong)
	}
}

func checkStatus(ve *apperr.ValidationError, raw string) model.TaskStatus {
	status := model.TaskStatus(strings.TrimSpace(raw))
	if !status.Valid() {
		ve.Add("status", msgStatus)
	}
	return status
}

// TaskCreate 校验创建任务请求。
func TaskCreate(req TaskRequest, now time.Time) (task.CreateInput, error) {
	ve := &apperr.ValidationError{}
	var in task.CreateInput

	if req.TaskName != nil {
		in.TaskName = strings.TrimSpace(*req.TaskName)
	}
	checkName(ve, in.TaskName, msgNameRequired)

	if req.Description != nil {
		in.Description = strings.TrimSpace(*req.Description)
		checkDescription(ve, in.Description)
	}

	if req.DueDate == nil {
		ve.Add("dueDate", msgDueDateFormat)
	} else if due, ok := checkDueDate(ve, *req.DueDate, now); ok {
		in.DueDate = due
	}

	if req.Status != nil {
		in.Status = checkStatus(ve, *req.Status)
	}

	if err := ve.Err(); err != nil {
		return task.CreateInput{}, err
	}
	return in, nil
}

// TaskUpdate 校验更新请求，只处理请求中出现的字段。
func TaskUpdate(req TaskRequest, now time.Time) (task.Patch, error) {
	ve := &apperr.ValidationError{}
	var patch task.Patch

	if req.TaskName != nil {
		name := strings.TrimSpace(*req.TaskName)
		checkName(ve, name, msgNameEmpty)
		patch.TaskName = &name
	}
	if req.Description != nil {
		desc := strings.TrimSpace(*req.Description)
		checkDescription(ve, desc)
		patch.Description = &desc
	}
	if req.DueDate != nil {
		if due, ok := checkDueDate(ve, *req.DueDate, now); ok {
			patch.DueDate = &due
		}
	}
	if req.Status != nil {
		status := checkStatus(ve, *req.Status)
		patch.Status = &status
	}

	if err := ve.Err(); err != nil {
		return task.Patch{}, err
	}
	return patch, nil
}

// TaskID 解析路径中的任务 ID（正整数）。
func TaskID(raw string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, strconv.IntSize)
	if err != nil || id == 0 {
		return 0, apperr.NewValidation(apperr.Violation{Field: "id", Message: msgTaskID})
	}
	return uint(id), nil
}

// ListLimits 列表分页的默认值与上限。Max 为 0 时不设上限。
type ListLimits struct {
	Default int
	Max     int
}

func positiveInt(raw string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// ListQuery 校验列表查询参数，缺省值由 task 包补齐。
func ListQuery(q url.Values, limits ListLimits) (task.ListParams, error) {
	ve := &apperr.ValidationError{}
	params := task.ListParams{Limit: limits.Default}

	if raw := q.Get("page"); raw != "" {
		if n, ok := positiveInt(raw); ok {
			params.Page = n
		} else {
			ve.Add("page", "Page must be a positive integer")
		}
	}
	if raw := q.Get("limit"); raw != "" {
		n, ok := positiveInt(raw)
		switch {
		case !ok:
			ve.Add("limit", "Limit must be a positive integer")
		case limits.Max > 0 && n > limits.Max:
			ve.Add("limit", fmt.Sprintf("Limit must be an integer between 1 and %d", limits.Max))
		default:
			params.Limit = n
		}
	}
	if raw := q.Get("status"); raw != "" {
		params.Status = checkStatus(ve, raw)
	}
	if raw := strings.TrimSpace(q.Get("sortBy")); raw != "" {
		if _, ok := task.SortColumn(raw); ok {
			params.SortBy = raw
		} else {
			ve.Add("sortBy", "Sort field must be one of: "+strings.Join(task.SortFields(), ", "))
		}
	}
	if raw := strings.ToLower(strings.TrimSpace(q.Get("sortOrder"))); raw != "" {
		if raw == "asc" || raw == "desc" {
			params.SortOrder = raw
		} else {
			ve.Add("sortOrder", "Sort order must be asc or desc")
		}
	}

	if err := ve.Err(); err != nil {
		return task.ListParams{}, err
	}
	return params, nil
}

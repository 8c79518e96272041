// Package apperr 定义业务错误分类。
//
// 存储层与业务层通过 %w 包装这些哨兵错误，HTTP 边界再用 errors.Is / errors.As
// 将其映射为响应状态码。未归类的错误一律视为内部错误。
package apperr

import (
	"errors"
	"strings"
)

var (
	ErrValidation      = errors.New("validation failed")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
)

// Kind 错误类别。
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthenticated
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Violation 表示单个字段的校验失败。
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError 聚合一次请求中所有字段的校验失败。
type ValidationError struct {
	Violations []Violation
}

// NewValidation 创建包含给定字段错误的 ValidationError。
func NewValidation(violations ...Violation) *ValidationError {
	return &ValidationError{Violations: violations}
}

// Add 追加一条字段错误。
func (e *ValidationError) Add(field, message string) {
	e.Violations = append(e.Violations, Violation{Field: field, Message: message})
}

// Empty 报告是否没有任何字段错误。
func (e *ValidationError) Empty() bool {
	return e == nil || len(e.Violations) == 0
}

// Err 在存在字段错误时返回自身，否则返回 nil。
func (e *ValidationError) Err() error {
	if e.Empty() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Field+": "+v.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// KindOf 返回 err 所属的错误类别。
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrUnauthenticated):
		return KindUnauthenticated
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	default:
		return KindInternal
	}
}

// Violations 提取 err 中携带的字段错误（若有）。
func Violations(err error) []Violation {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Violations
	}
	return nil
}

package task

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"tasktracker/internal/model"
	"tasktracker/internal/pkg/apperr"
)

type mockStore struct {
	createFn func(ctx context.Context, t *model.Task) error
	listFn   func(ctx context.Context, ownerID uint, q ListQuery) ([]model.Task, int64, error)
	getFn    func(ctx context.Context, ownerID, id uint) (*model.Task, error)
	updateFn func(ctx context.Context, ownerID, id uint, patch Patch) (*model.Task, error)
	deleteFn func(ctx context.Context, ownerID, id uint) error
	statsFn  func(ctx context.Context, ownerID uint, now time.Time) (Stats, error)
}

func (m *mockStore) Create(ctx context.Context, t *model.Task) error {
	if m.createFn != nil {
		return m.createFn(ctx, t)
	}
	t.ID = 1
	return nil
}

func (m *mockStore) List(ctx context.Context, ownerID uint, q ListQuery) ([]model.Task, int64, error) {
	if m.listFn != nil {
		return m.listFn(ctx, ownerID, q)
	}
	return nil, 0, nil
}

func (m *mockStore) Get(ctx context.Context, ownerID, id uint) (*model.Task, error) {
	if m.getFn != nil {
		return m.getFn(ctx, ownerID, id)
	}
	return nil, apperr.ErrNotFound
}

func (m *mockStore) Update(ctx context.Context, ownerID, id uint, patch Patch) (*model.Task, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, ownerID, id, patch)
	}
	return nil, apperr.ErrNotFound
}

func (m *mockStore) Delete(ctx context.Context, ownerID, id uint) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, ownerID, id)
	}
	return nil
}

func (m *mockStore) Stats(ctx context.Context, ownerID uint, now time.Time) (Stats, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx, ownerID, now)
	}
	return Stats{}, nil
}

func TestService_RequiresOwner(t *testing.T) {
	svc := NewService(&mockStore{}, nil)
	ctx := context.Background()

	if _, err := svc.Create(ctx, 0, CreateInput{TaskName: "x"}); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("Create: expected ErrUnauthenticated, got %v", err)
	}
	if _, err := svc.List(ctx, 0, ListParams{}); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("List: expected ErrUnauthenticated, got %v", err)
	}
	if _, err := svc.Get(ctx, 0, 1); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("Get: expected ErrUnauthenticated, got %v", err)
	}
	if _, err := svc.Update(ctx, 0, 1, Patch{}); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("Update: expected ErrUnauthenticated, got %v", err)
	}
	if err := svc.Delete(ctx, 0, 1); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("Delete: expected ErrUnauthenticated, got %v", err)
	}
	if _, err := svc.Stats(ctx, 0); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("Stats: expected ErrUnauthenticated, got %v", err)
	}
}

func TestService_CreateDefaultsAndTrims(t *testing.T) {
	var stored *model.Task
	store := &mockStore{
		createFn: func(_ context.Context, tk *model.Task) error {
			stored = tk
			tk.ID = 42
			return nil
		},
	}
	svc := NewService(store, nil)

	loc := time.FixedZone("UTC+8", 8*3600)
	due := time.Date(2030, 1, 2, 10, 0, 0, 0, loc)
	got, err := svc.Create(context.Background(), 7, CreateInput{
		TaskName:    "  Write report  ",
		Description: " draft ",
		DueDate:     due,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if got.ID != 42 || stored.UserID != 7 {
		t.Fatalf("unexpected task: %+v", got)
	}
	if stored.TaskName != "Write report" || stored.Description != "draft" {
		t.Fatalf("expected trimmed fields, got %q %q", stored.TaskName, stored.Description)
	}
	if stored.Status != model.StatusPending {
		t.Fatalf("expected pending, got %s", stored.Status)
	}
	if stored.DueDate.Location() != time.UTC || !stored.DueDate.Equal(due) {
		t.Fatalf("expected due date normalized to UTC, got %v", stored.DueDate)
	}
}

func TestService_ListBuildsQuery(t *testing.T) {
	var captured ListQuery
	store := &mockStore{
		listFn: func(_ context.Context, ownerID uint, q ListQuery) ([]model.Task, int64, error) {
			if ownerID != 3 {
				t.Fatalf("unexpected owner %d", ownerID)
			}
			captured = q
			return []model.Task{{ID: 11}, {ID: 12}, {ID: 13}, {ID: 14}, {ID: 15}}, 15, nil
		},
	}
	svc := NewService(store, nil)

	page, err := svc.List(context.Background(), 3, ListParams{
		Page:      2,
		Limit:     10,
		Status:    model.StatusInProgress,
		SortBy:    "dueDate",
		SortOrder: "asc",
	})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := ListQuery{Status: model.StatusInProgress, Column: "due_date", Desc: false, Offset: 10, Limit: 10}
	if captured != want {
		t.Fatalf("query = %+v, want %+v", captured, want)
	}
	if len(page.Tasks) != 5 {
		t.Fatalf("expected 5 tasks, got %d", len(page.Tasks))
	}
	wantPag := Pagination{CurrentPage: 2, TotalPages: 2, TotalTasks: 15, HasNext: false, HasPrev: true}
	if page.Pagination != wantPag {
		t.Fatalf("pagination = %+v, want %+v", page.Pagination, wantPag)
	}
}

func TestService_ListDefaults(t *testing.T) {
	var captured ListQuery
	store := &mockStore{
		listFn: func(_ context.Context, _ uint, q ListQuery) ([]model.Task, int64, error) {
			captured = q
			return nil, 0, nil
		},
	}
	svc := NewService(store, nil)

	page, err := svc.List(context.Background(), 1, ListParams{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := ListQuery{Column: "created_at", Desc: true, Offset: 0, Limit: DefaultLimit}
	if captured != want {
		t.Fatalf("query = %+v, want %+v", captured, want)
	}
	if page.Tasks == nil || len(page.Tasks) != 0 {
		t.Fatalf("expected empty non-nil task list")
	}
	if page.Pagination.TotalPages != 0 || page.Pagination.HasNext || page.Pagination.HasPrev {
		t.Fatalf("unexpected pagination for empty result: %+v", page.Pagination)
	}
}

func TestService_ListRejectsUnknownSortAndStatus(t *testing.T) {
	svc := NewService(&mockStore{}, nil)
	ctx := context.Background()

	_, err := svc.List(ctx, 1, ListParams{SortBy: "password"})
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error for sortBy, got %v", err)
	}
	_, err = svc.List(ctx, 1, ListParams{Status: "archived"})
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error for status, got %v", err)
	}
}

func TestService_UpdateEmptyPatchReturnsCurrent(t *testing.T) {
	updateCalled := false
	store := &mockStore{
		getFn: func(_ context.Context, ownerID, id uint) (*model.Task, error) {
			return &model.Task{ID: id, UserID: ownerID, TaskName: "same"}, nil
		},
		updateFn: func(context.Context, uint, uint, Patch) (*model.Task, error) {
			updateCalled = true
			return nil, nil
		},
	}
	svc := NewService(store, nil)

	got, err := svc.Update(context.Background(), 2, 9, Patch{})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updateCalled {
		t.Fatalf("store.Update should not be called for empty patch")
	}
	if got.ID != 9 || got.TaskName != "same" {
		t.Fatalf("unexpected task: %+v", got)
	}
}

func TestService_UpdateTrimsPatch(t *testing.T) {
	var captured Patch
	store := &mockStore{
		updateFn: func(_ context.Context, ownerID, id uint, patch Patch) (*model.Task, error) {
			captured = patch
			return &model.Task{ID: id, UserID: ownerID, TaskName: *patch.TaskName}, nil
		},
	}
	svc := NewService(store, nil)

	name := "  renamed "
	if _, err := svc.Update(context.Background(), 2, 9, Patch{TaskName: &name}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if captured.TaskName == nil || *captured.TaskName != "renamed" {
		t.Fatalf("expected trimmed name, got %v", captured.TaskName)
	}
	if name != "  renamed " {
		t.Fatalf("caller's value should not be modified")
	}
	if captured.Status != nil || captured.Description != nil || captured.DueDate != nil {
		t.Fatalf("unexpected fields in patch: %+v", captured)
	}
}

func TestService_NotFoundPropagates(t *testing.T) {
	store := &mockStore{
		deleteFn: func(context.Context, uint, uint) error {
			return apperr.ErrNotFound
		},
	}
	svc := NewService(store, nil)
	ctx := context.Background()

	if _, err := svc.Get(ctx, 1, 5); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("Get: expected ErrNotFound, got %v", err)
	}
	if err := svc.Delete(ctx, 1, 5); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("Delete: expected ErrNotFound, got %v", err)
	}
}

func TestService_StatsUsesClock(t *testing.T) {
	fixed := time.Date(2030, 5, 1, 12, 0, 0, 0, time.UTC)
	store := &mockStore{
		statsFn: func(_ context.Context, ownerID uint, now time.Time) (Stats, error) {
			if !now.Equal(fixed) {
				t.Fatalf("now = %v, want %v", now, fixed)
			}
			return Stats{TotalTasks: 4, PendingTasks: 2, CompletedTasks: 2, OverdueTasks: 1}, nil
		},
	}
	svc := NewService(store, nil)
	svc.now = func() time.Time { return fixed }

	st, err := svc.Stats(context.Background(), 1)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if st.TotalTasks != st.PendingTasks+st.InProgressTasks+st.CompletedTasks {
		t.Fatalf("status counts do not add up: %+v", st)
	}
}

func TestNewPagination(t *testing.T) {
	tests := []struct {
		name  string
		page  int
		limit int
		total int64
		want  Pagination
	}{
		{"empty", 1, 10, 0, Pagination{CurrentPage: 1, TotalPages: 0, TotalTasks: 0}},
		{"exact", 1, 10, 10, Pagination{CurrentPage: 1, TotalPages: 1, TotalTasks: 10}},
		{"first of two", 1, 10, 15, Pagination{CurrentPage: 1, TotalPages: 2, TotalTasks: 15, HasNext: true}},
		{"last of two", 2, 10, 15, Pagination{CurrentPage: 2, TotalPages: 2, TotalTasks: 15, HasPrev: true}},
		{"beyond", 5, 10, 15, Pagination{CurrentPage: 5, TotalPages: 2, TotalTasks: 15, HasPrev: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewPagination(tt.page, tt.limit, tt.total); got != tt.want {
				t.Fatalf("NewPagination() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestService_ListHugePageIsBeyondLast(t *testing.T) {
	var captured ListQuery
	store := &mockStore{
		listFn: func(_ context.Context, _ uint, q ListQuery) ([]model.Task, int64, error) {
			captured = q
			if int64(q.Offset) >= 3 {
				return []model.Task{}, 3, nil
			}
			return []model.Task{{ID: 1}, {ID: 2}, {ID: 3}}, 3, nil
		},
	}
	svc := NewService(store, nil)

	huge := math.MaxInt/10 + 2
	page, err := svc.List(context.Background(), 1, ListParams{Page: huge, Limit: 10})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if captured.Offset < 0 {
		t.Fatalf("offset overflowed: %d", captured.Offset)
	}
	if len(page.Tasks) != 0 {
		t.Fatalf("expected empty page, got %d tasks", len(page.Tasks))
	}
	want := Pagination{CurrentPage: huge, TotalPages: 1, TotalTasks: 3, HasNext: false, HasPrev: true}
	if page.Pagination != want {
		t.Fatalf("pagination = %+v, want %+v", page.Pagination, want)
	}
}

func TestPageOffset(t *testing.T) {
	tests := []struct {
		page, limit int
		want        int
	}{
		{page: 1, limit: 10, want: 0},
		{page: 3, limit: 10, want: 20},
		{page: math.MaxInt/10 + 2, limit: 10, want: math.MaxInt},
		{page: math.MaxInt, limit: 2, want: math.MaxInt},
		{page: math.MaxInt/100 + 2, limit: 100, want: math.MaxInt},
	}
	for _, tt := range tests {
		if got := pageOffset(tt.page, tt.limit); got != tt.want {
			t.Errorf("pageOffset(%d, %d) = %d, want %d", tt.page, tt.limit, got, tt.want)
		}
	}
}

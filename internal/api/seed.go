package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tasktracker/internal/model"
	"tasktracker/internal/pkg/apperr"
	"tasktracker/internal/task"

	"golang.org/x/crypto/bcrypt"
)

// 演示账号。
const (
	DemoEmail    = "demo@tasktracker.local"
	DemoPassword = "Demo1234"
)

// SeedDemoData 初始化演示账号与示例任务。已存在的账号不会被重置。
func (s *Server) SeedDemoData(ctx context.Context) error {
	user, err := s.users.FindByEmail(ctx, DemoEmail)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	if user != nil {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user = &model.User{Email: DemoEmail, PasswordHash: string(hash)}
	if err := s.users.Create(ctx, user); err != nil {
		return fmt.Errorf("create demo user: %w", err)
	}

	now := s.now().UTC()
	samples := []task.CreateInput{
		{TaskName: "Read the API docs", Description: "Skim the endpoints listed at GET /", DueDate: now.Add(24 * time.Hour)},
		{TaskName: "Try the stats endpoint", DueDate: now.Add(72 * time.Hour), Status: model.StatusInProgress},
		{TaskName: "Create your own account", DueDate: now.Add(7 * 24 * time.Hour), Status: model.StatusCompleted},
	}
	for _, in := range samples {
		if _, err := s.tasks.Create(ctx, user.ID, in); err != nil {
			return fmt.Errorf("create demo task: %w", err)
		}
	}

	if s.logger != nil {
		s.logger.Info("demo data seeded", slog.String("email", DemoEmail), slog.Int("tasks", len(samples)))
	}
	return nil
}

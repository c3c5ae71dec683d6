// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"gorm.io/gorm"

	"github.com/go-a2a/mindlink/a2a"
)

// TaskRepository persists task snapshots behind the in-memory store. The
// store stays authoritative; the repository is write-through only.
type TaskRepository interface {
	Save(ctx context.Context, task *a2a.Task) error
	Load(ctx context.Context, taskID string) (*a2a.Task, error)
	Delete(ctx context.Context, taskID string) error
}

// TaskRecord is the database row backing one task snapshot. The task body
// is stored as a JSON payload; the indexed columns exist for querying.
type TaskRecord struct {
	TaskID    string `gorm:"primaryKey;column:task_id"`
	SessionID string `gorm:"index;column:session_id"`
	State     string `gorm:"column:state"`
	Payload   []byte `gorm:"column:payload"`
}

// GormTaskRepository is a TaskRepository on a caller-supplied *gorm.DB.
type GormTaskRepository struct {
	db        *gorm.DB
	tableName string
}

var _ TaskRepository = (*GormTaskRepository)(nil)

// GormTaskRepositoryConfig configures a GormTaskRepository.
type GormTaskRepositoryConfig struct {
	DB *gorm.DB
	// TableName defaults to "tasks".
	TableName string
	// Migrate creates the table when set.
	Migrate bool
}

// NewGormTaskRepository creates a repository over an existing database
// connection.
func NewGormTaskRepository(config GormTaskRepositoryConfig) (*GormTaskRepository, error) {
	if config.DB == nil {
		return nil, fmt.Errorf("database connection cannot be nil")
	}
	tableName := config.TableName
	if tableName == "" {
		tableName = "tasks"
	}
	repo := &GormTaskRepository{db: config.DB, tableName: tableName}
	if config.Migrate {
		if err := config.DB.Table(tableName).AutoMigrate(&TaskRecord{}); err != nil {
			return nil, fmt.Errorf("failed to migrate task table: %w", err)
		}
	}
	return repo, nil
}

// Save upserts one task snapshot.
func (r *GormTaskRepository) Save(ctx context.Context, task *a2a.Task) error {
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}
	payload, err := sonic.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to encode task %s: %w", task.ID, err)
	}
	record := &TaskRecord{
		TaskID:    task.ID,
		SessionID: task.SessionID,
		State:     string(task.Status.State),
		Payload:   payload,
	}
	return r.db.WithContext(ctx).Table(r.tableName).Save(record).Error
}

// Load reads one task snapshot.
func (r *GormTaskRepository) Load(ctx context.Context, taskID string) (*a2a.Task, error) {
	var record TaskRecord
	err := r.db.WithContext(ctx).Table(r.tableName).First(&record, "task_id = ?", taskID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &a2a.TaskNotFoundError{TaskID: taskID}
		}
		return nil, err
	}
	var task a2a.Task
	if err := sonic.Unmarshal(record.Payload, &task); err != nil {
		return nil, fmt.Errorf("failed to decode task %s: %w", taskID, err)
	}
	return &task, nil
}

// Delete removes one task snapshot.
func (r *GormTaskRepository) Delete(ctx context.Context, taskID string) error {
	return r.db.WithContext(ctx).Table(r.tableName).Delete(&TaskRecord{}, "task_id = ?", taskID).Error
}

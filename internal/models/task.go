package models

import "time"

type TaskStatusValue string

const (
	StatusPending   TaskStatusValue = "pending"
	StatusRunning   TaskStatusValue = "running"
	StatusCompleted TaskStatusValue = "completed"
	StatusFailed    TaskStatusValue = "failed"
	StatusCancelled TaskStatusValue = "cancelled"
)

// PrewarmTask 预热任务：异步解析文档并渲染全部页面以填充缓存
type PrewarmTask struct {
	ID        string          `json:"id"`
	FileID    string          `json:"fileId"`
	Status    TaskStatusValue `json:"status"`
	Progress  float64         `json:"progress"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt,omitempty"`
}

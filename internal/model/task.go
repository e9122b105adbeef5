package model

import "time"

// DateLayout форматирует дату на странице списка, например 15-October-2026
const DateLayout = "02-January-2006"

// TaskListView - то, что получает клиент после любой операции со списком
type TaskListView struct {
	Date    string   `json:"date"`
	Tasks   []string `json:"tasks"`
	Count   int      `json:"count"`
	Message string   `json:"message"`
}

func NewTaskListView(now time.Time, tasks []string, message string) TaskListView {
	if tasks == nil {
		tasks = []string{}
	}
	return TaskListView{
		Date:    now.Format(DateLayout),
		Tasks:   tasks,
		Count:   len(tasks),
		Message: message,
	}
}

// AddTaskRequest - JSON тело для POST /api/tasks
type AddTaskRequest struct {
	Task string `json:"task"`
}

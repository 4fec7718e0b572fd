package whatsapp

import (
	"fmt"

	"marqlet-monitor/domain"
)

// ReminderMessage renders the fixed-format reminder body for a task: title,
// due date in Brazilian dd/mm/yyyy hh:mm form and priority.
func ReminderMessage(task domain.Task) string {
	due := task.DueDate.Format("02/01/2006 15:04")
	return fmt.Sprintf("Lembrete Marqlet\n%s\nVence: %s\nPrioridade: %s", task.Title, due, task.Priority)
}

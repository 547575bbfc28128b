package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"megatrack/internal/model"
)

// TaskReader is the read side of TaskService.
type TaskReader interface {
	GetTasks(ctx context.Context, filter model.Filter, userID string) ([]model.Task, error)
}

// SummaryService builds plain-text progress reports for a month or a week.
type SummaryService struct {
	tasks TaskReader
}

func NewSummaryService(tasks TaskReader) *SummaryService {
	return &SummaryService{tasks: tasks}
}

// Summary reports on filter.Month, limited to filter.Week when it is set.
// Days with no tasks are skipped.
func (s *SummaryService) Summary(ctx context.Context, userID string, filter model.Filter) (string, error) {
	if !model.ValidMonth(filter.Month) {
		return "", fmt.Errorf("unknown month %q", filter.Month)
	}
	tasks, err := s.tasks.GetTasks(ctx, model.Filter{Month: filter.Month, Week: filter.Week}, userID)
	if err != nil {
		return "", err
	}

	weeks := []model.Week{filter.Week}
	if filter.Week == 0 {
		weeks = weeks[:0]
		for w := model.Week(1); w <= model.WeeksPerMonth; w++ {
			weeks = append(weeks, w)
		}
	}

	var b strings.Builder
	done, total := countDone(tasks)
	fmt.Fprintf(&b, "%s: %d/%d done\n", filter.Month, done, total)

	for _, week := range weeks {
		weekTasks := selectTasks(tasks, userID, model.Filter{Month: filter.Month, Week: week})
		if len(weekTasks) == 0 && filter.Week == 0 {
			continue
		}
		wDone, wTotal := countDone(weekTasks)
		fmt.Fprintf(&b, "\nWeek %d: %d/%d done\n", week, wDone, wTotal)

		for _, day := range model.DaysOfWeek {
			dayTasks := selectTasks(weekTasks, userID, model.Filter{Month: filter.Month, Week: week, Day: day})
			if len(dayTasks) == 0 {
				continue
			}
			sortByCreated(dayTasks)
			dDone, dTotal := countDone(dayTasks)
			fmt.Fprintf(&b, "  %s (%d/%d)\n", day, dDone, dTotal)
			for _, task := range dayTasks {
				b.WriteString(formatTask(task))
			}
		}
	}

	if total > 0 {
		b.WriteString("\n" + formatStatusBreakdown(tasks))
	}
	return strings.TrimSpace(b.String()), nil
}

func formatTask(task model.Task) string {
	var sb strings.Builder
	check := "[ ]"
	if task.IsCompleted {
		check = "[x]"
	}
	fmt.Fprintf(&sb, "    %s %s <%s>", check, strings.TrimSpace(task.Title), task.Status)
	if notes := strings.TrimSpace(task.Notes); notes != "" {
		fmt.Fprintf(&sb, "\n        %s", strings.ReplaceAll(notes, "\n", "\n        "))
	}
	sb.WriteByte('\n')
	return sb.String()
}

func formatStatusBreakdown(tasks []model.Task) string {
	counts := make(map[model.Status]int)
	for _, task := range tasks {
		counts[task.Status]++
	}
	parts := make([]string, 0, len(model.Statuses))
	for _, status := range model.Statuses {
		parts = append(parts, fmt.Sprintf("%s %d", status, counts[status]))
	}
	return "Status: " + strings.Join(parts, ", ") + "\n"
}

func countDone(tasks []model.Task) (done, total int) {
	for _, task := range tasks {
		if task.IsCompleted {
			done++
		}
	}
	return done, len(tasks)
}

func sortByCreated(tasks []model.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
}

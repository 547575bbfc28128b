package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"megatrack/internal/model"
	"megatrack/internal/service"
)

// position holds the month/week/day flags shared by task commands.
type position struct {
	month string
	week  int
	day   string
}

func (p *position) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&p.month, "month", "m", "", `month label or number ("Month 2" or 2)`)
	cmd.Flags().IntVarP(&p.week, "week", "w", 0, "week of the month (1-4)")
	cmd.Flags().StringVarP(&p.day, "day", "d", "", "day of the week (Monday or Mon)")
}

// filter parses the flags; week and day are optional.
func (p *position) filter() (model.Filter, error) {
	month, err := model.ParseMonth(p.month)
	if err != nil {
		return model.Filter{}, err
	}
	f := model.Filter{Month: month, Week: model.Week(p.week)}
	if f.Week != 0 && !f.Week.Valid() {
		return model.Filter{}, fmt.Errorf("week must be between 1 and %d", model.WeeksPerMonth)
	}
	if p.day != "" {
		if f.Day, err = model.ParseDay(p.day); err != nil {
			return model.Filter{}, err
		}
	}
	return f, nil
}

func newTasksCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tasks",
		Aliases: []string{"task", "t"},
		Short:   "List and change tasks",
	}
	cmd.AddCommand(
		newTasksListCmd(a),
		newTasksShowCmd(a),
		newTasksAddCmd(a),
		newTasksToggleCmd(a),
		newTasksStatusCmd(a),
		newTasksEditCmd(a),
		newTasksDeleteCmd(a),
	)
	return cmd
}

func newTasksListCmd(a *app) *cobra.Command {
	var pos position
	var output string
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tasks of a month, week or day",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := pos.filter()
			if err != nil {
				return err
			}
			userID, err := a.userID(cmd.Context())
			if err != nil {
				return err
			}
			tasks, err := a.tasks.GetTasks(cmd.Context(), filter, userID)
			if err != nil {
				return err
			}
			return writeTasks(cmd.OutOrStdout(), output, tasks)
		},
	}
	pos.register(cmd)
	_ = cmd.MarkFlagRequired("month")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text, json or yaml")
	return cmd
}

func newTasksShowCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one task by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := a.userID(cmd.Context())
			if err != nil {
				return err
			}
			task, err := a.tasks.GetTask(cmd.Context(), args[0], userID)
			if err != nil {
				return err
			}
			return writeTasks(cmd.OutOrStdout(), output, []model.Task{*task})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text, json or yaml")
	return cmd
}

func newTasksAddCmd(a *app) *cobra.Command {
	var pos position
	var status, notes string
	cmd := &cobra.Command{
		Use:   "add <title>...",
		Short: "Add a task to a day",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := pos.filter()
			if err != nil {
				return err
			}
			input := service.TaskInput{
				Month: filter.Month,
				Week:  filter.Week,
				Day:   filter.Day,
				Title: strings.Join(args, " "),
				Notes: notes,
			}
			if status != "" {
				if input.Status, err = model.ParseStatus(status); err != nil {
					return err
				}
			}
			userID, err := a.userID(cmd.Context())
			if err != nil {
				return err
			}
			task, err := a.tasks.CreateTask(cmd.Context(), userID, input)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", task.ID)
			return nil
		},
	}
	pos.register(cmd)
	for _, name := range []string{"month", "week", "day"} {
		_ = cmd.MarkFlagRequired(name)
	}
	cmd.Flags().StringVarP(&status, "status", "s", "", `"Not Started", "In Progress" or "Done"`)
	cmd.Flags().StringVarP(&notes, "notes", "n", "", "free text notes")
	return cmd
}

func newTasksToggleCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id>",
		Short: "Check or uncheck a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := a.userID(cmd.Context())
			if err != nil {
				return err
			}
			task, err := a.tasks.ToggleComplete(cmd.Context(), args[0], userID)
			if err != nil {
				return err
			}
			state := "open"
			if task.IsCompleted {
				state = "completed"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", task.Title, state)
			return nil
		},
	}
}

func newTasksStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Change the status of a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := model.ParseStatus(args[1])
			if err != nil {
				return err
			}
			userID, err := a.userID(cmd.Context())
			if err != nil {
				return err
			}
			task, err := a.tasks.SetStatus(cmd.Context(), args[0], userID, status)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", task.Title, task.Status)
			return nil
		},
	}
}

func newTasksEditCmd(a *app) *cobra.Command {
	var title, notes string
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Rename a task or replace its notes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			titleSet := cmd.Flags().Changed("title")
			notesSet := cmd.Flags().Changed("notes")
			if !titleSet && !notesSet {
				return fmt.Errorf("nothing to change: pass --title and/or --notes")
			}
			userID, err := a.userID(cmd.Context())
			if err != nil {
				return err
			}
			var task *model.Task
			if titleSet {
				if task, err = a.tasks.Rename(cmd.Context(), args[0], userID, title); err != nil {
					return err
				}
			}
			if notesSet {
				if task, err = a.tasks.SetNotes(cmd.Context(), args[0], userID, notes); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", task.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&notes, "notes", "", "new notes (empty clears them)")
	return cmd
}

func newTasksDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := a.userID(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.tasks.DeleteTask(cmd.Context(), args[0], userID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

func writeTasks(w io.Writer, format string, tasks []model.Task) error {
	if tasks == nil {
		tasks = []model.Task{}
	}
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(tasks)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(tasks); err != nil {
			return err
		}
		return enc.Close()
	case "text", "":
		if len(tasks) == 0 {
			_, err := fmt.Fprintln(w, "No tasks")
			return err
		}
		_, err := fmt.Fprintln(w, taskTable(tasks))
		return err
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func taskTable(tasks []model.Task) string {
	rows := make([][]string, 0, len(tasks))
	for _, task := range tasks {
		check := "[ ]"
		if task.IsCompleted {
			check = "[x]"
		}
		rows = append(rows, []string{
			task.ID,
			fmt.Sprintf("W%d %s", task.Week, task.Day),
			check,
			task.Title,
			string(task.Status),
		})
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "WHEN", "", "TASK", "STATUS").
		Rows(rows...).
		String()
}

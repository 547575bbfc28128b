package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/gorm"

	"megatrack/internal/config"
	"megatrack/internal/model"
	"megatrack/internal/remote"
	"megatrack/internal/repository"
	"megatrack/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, a := newRootCmd()
	err := root.ExecuteContext(ctx)
	a.close()
	if err != nil {
		os.Exit(1)
	}
}

// app holds the wired components for the lifetime of one command.
type app struct {
	cfg          config.Config
	db           *gorm.DB
	sessions     *repository.SessionRepository
	settings     *repository.SettingsRepository
	tasks        *service.TaskService
	summary      *service.SummaryService
	userOverride string
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{}
	var configPath string

	root := &cobra.Command{
		Use:   "megatrack",
		Short: "Month, week and day task tracker",
		Long: `megatrack keeps a task list for every day of a six month plan.

Tasks are stored locally. When an endpoint URL is configured
("megatrack endpoint set"), reads come from the endpoint and every change
is also pushed to it in the background.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./megatrack.yaml or ~/.megatrack/megatrack.yaml)")
	root.PersistentFlags().StringVar(&a.userOverride, "user", "", "act as this user instead of the signed-in one")

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newEndpointCmd(a),
		newTasksCmd(a),
		newReportCmd(a),
	)
	return root, a
}

func (a *app) open(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	a.cfg = cfg

	if cfg.LogFile != "" {
		log.SetOutput(&lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		})
	}

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	a.db = db

	kv := repository.NewKVRepository(db)
	a.sessions = repository.NewSessionRepository(kv)
	a.settings = repository.NewSettingsRepository(kv)

	cache := repository.NewTaskCache(kv, newLogger("cache"))
	client := remote.NewClient(&http.Client{Timeout: cfg.RemoteTimeout}, newLogger("sync"))
	a.tasks = service.NewTaskService(cache, a.settings, client, newLogger("tasks"))
	a.summary = service.NewSummaryService(a.tasks)
	return nil
}

// close lets background pushes finish, then releases the database.
func (a *app) close() {
	if a.tasks != nil {
		a.tasks.Wait()
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

// userID resolves who the command acts for: --user, else the saved session.
func (a *app) userID(ctx context.Context) (string, error) {
	if id := strings.TrimSpace(a.userOverride); id != "" {
		return id, nil
	}
	user, err := a.sessions.Current(ctx)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", fmt.Errorf("%w: run \"megatrack login <email>\" first", model.ErrNoIdentity)
	}
	return user.ID(), nil
}

func newLogger(component string) *log.Logger {
	return log.New(log.Writer(), "["+component+"] ", log.LstdFlags)
}

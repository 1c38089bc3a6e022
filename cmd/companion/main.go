package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/nova-companion/internal/client"
	"github.com/zhouzirui/nova-companion/internal/config"
	"github.com/zhouzirui/nova-companion/internal/orchestrator"
	"github.com/zhouzirui/nova-companion/internal/speech/capture"
	"github.com/zhouzirui/nova-companion/internal/speech/tts"
	"github.com/zhouzirui/nova-companion/internal/ui"
	"github.com/zhouzirui/nova-companion/internal/ui/avatar"
	"github.com/zhouzirui/nova-companion/pkg/logger"
)

const defaultLogFile = "companion.log"

type options struct {
	backend  string
	logFile  string
	title    string
	noVoice  bool
	noSpeech bool
	noVideo  bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:          "companion",
		Short:        "Talk to the companion from your terminal",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.backend, "backend", "", "chat API base URL (default $COMPANION_BACKEND_URL or http://localhost:8000)")
	flags.StringVar(&opts.logFile, "log-file", "", "log destination (default $LOG_FILE or "+defaultLogFile+")")
	flags.StringVar(&opts.title, "title", "Nova", "window title")
	flags.BoolVar(&opts.noVoice, "no-voice", false, "disable microphone input")
	flags.BoolVar(&opts.noSpeech, "no-speech", false, "do not read replies aloud")
	flags.BoolVar(&opts.noVideo, "no-video", false, "do not launch the avatar video player")

	return cmd
}

func run(ctx context.Context, opts *options) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logFile := opts.logFile
	if logFile == "" {
		logFile = cfg.Log.File
	}
	if logFile == "" {
		logFile = defaultLogFile
	}
	log, closer, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, File: logFile})
	if err != nil {
		return err
	}
	defer closer.Close()

	backendURL := cfg.Client.BackendURL
	if opts.backend != "" {
		backendURL = opts.backend
	}
	api := client.New(backendURL, client.WithTimeout(cfg.Client.RequestTimeout), client.WithLogger(log))
	checkBackend(ctx, api, log)

	orchOpts := orchestrator.Options{
		Backend:      api,
		TalkDuration: cfg.Client.TalkDuration,
		Logger:       log,
	}

	if !opts.noSpeech {
		speaker := tts.NewCommandSpeaker(tts.Options{
			Command:  cfg.Voice.TTSCommand,
			Language: cfg.Voice.TTSLanguage,
			Logger:   log,
		})
		defer speaker.Close()
		orchOpts.Speaker = speaker
	}

	if !opts.noVoice {
		orchOpts.Microphone = capture.NewCommandMicrophone(capture.Options{
			Command: cfg.Voice.RecordCommand,
			Logger:  log,
		})
	}

	var player avatar.Player = avatar.NopPlayer{}
	if !opts.noVideo {
		cp := avatar.NewCommandPlayer(avatar.PlayerOptions{
			Command: cfg.Voice.VideoCommand,
			Dir:     cfg.Voice.VideoDir,
			Logger:  log,
		})
		if cp.Enabled() {
			player = cp
		}
	}
	defer player.Stop()

	notifier := &ui.Notifier{}
	orchOpts.OnChange = notifier.Notify

	orch, err := orchestrator.New(orchOpts)
	if err != nil {
		return err
	}
	defer orch.Close()

	model := ui.New(ctx, ui.Options{
		Title:      opts.title,
		Controller: orch,
		Player:     player,
		Initial:    orch.State(),
	})

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	notifier.Attach(program)

	log.WithField("backend", api.BaseURL()).Info("companion started")
	if _, err := program.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("run terminal UI: %w", err)
	}
	log.Info("companion stopped")
	return nil
}

func checkBackend(ctx context.Context, api *client.Client, log logrus.FieldLogger) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := api.Health(ctx); err != nil {
		log.WithError(err).WithField("backend", api.BaseURL()).Warn("chat API not reachable yet")
		return
	}
	log.WithField("backend", api.BaseURL()).Info("chat API reachable")
}

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/nova-companion/internal/client"
	"github.com/zhouzirui/nova-companion/internal/config"
	"github.com/zhouzirui/nova-companion/internal/service/speech"
	"github.com/zhouzirui/nova-companion/pkg/logger"
)

type probeOptions struct {
	backend  string
	language string
	timeout  time.Duration
	verbose  bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &probeOptions{}

	root := &cobra.Command{
		Use:          "voiceprobe",
		Short:        "Push an audio clip through speech recognition or the voice API",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
		},
	}
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 45*time.Second, "request timeout")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log protocol details")

	asrCmd := &cobra.Command{
		Use:   "asr <audio-file>",
		Short: "Transcribe a file directly with Volcengine ASR",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runASR(cmd.Context(), opts, args[0])
		},
	}
	asrCmd.Flags().StringVar(&opts.language, "lang", "", "recognition language (default from SPEECH_LANGUAGE)")

	apiCmd := &cobra.Command{
		Use:   "api <audio-file>",
		Short: "Upload a file to POST /api/voice and print the reply",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAPI(cmd.Context(), opts, args[0])
		},
	}
	apiCmd.Flags().StringVar(&opts.backend, "backend", "", "API base URL (default from COMPANION_BACKEND_URL)")

	root.AddCommand(asrCmd, apiCmd)
	return root
}

func newLogger(verbose bool) *logrus.Logger {
	level := "info"
	if verbose {
		level = "debug"
	}
	log, _, _ := logger.New(logger.Config{Level: level, Output: os.Stderr})
	return log
}

func runASR(ctx context.Context, opts *probeOptions, path string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if !cfg.Speech.Enabled {
		return fmt.Errorf("speech recognition disabled: set SPEECH_APP_ID and SPEECH_ACCESS_TOKEN")
	}

	audio, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read audio: %w", err)
	}

	language := cfg.Speech.Language
	if opts.language != "" {
		language = opts.language
	}

	log := newLogger(opts.verbose)
	asr, err := speech.NewVolcengineTranscriber(speech.VolcengineConfig{
		AppID:       cfg.Speech.AppID,
		AccessToken: cfg.Speech.AccessToken,
		ResourceID:  cfg.Speech.ResourceID,
		Endpoint:    cfg.Speech.Endpoint,
		Language:    language,
		Timeout:     opts.timeout,
	}, log)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	start := time.Now()
	text, err := asr.Transcribe(ctx, audio, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("transcribe: %w", err)
	}

	log.WithFields(logrus.Fields{
		"bytes":   len(audio),
		"elapsed": time.Since(start).Round(time.Millisecond),
	}).Info("transcription finished")
	fmt.Println(text)
	return nil
}

func runAPI(ctx context.Context, opts *probeOptions, path string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	audio, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read audio: %w", err)
	}

	backend := cfg.Client.BackendURL
	if opts.backend != "" {
		backend = opts.backend
	}

	log := newLogger(opts.verbose)
	api := client.New(backend, client.WithTimeout(opts.timeout), client.WithLogger(log))

	start := time.Now()
	reply, err := api.Voice(ctx, audio, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("voice request: %w", err)
	}

	log.WithFields(logrus.Fields{
		"backend": api.BaseURL(),
		"elapsed": time.Since(start).Round(time.Millisecond),
	}).Info("voice reply received")

	fmt.Printf("transcript: %s\nreply:      %s\nemotion:    %s\n", reply.Transcript, reply.Reply.Reply, reply.Emotion)
	if reply.TTSDurationMs != nil {
		fmt.Printf("tts:        %vms\n", *reply.TTSDurationMs)
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/thaybinh/hoso7991/internal/export"
	"github.com/thaybinh/hoso7991/internal/handler"
	appI18n "github.com/thaybinh/hoso7991/internal/i18n"
	"github.com/thaybinh/hoso7991/internal/llm"
	"github.com/thaybinh/hoso7991/internal/model"
	"github.com/thaybinh/hoso7991/internal/pipeline"
	"github.com/thaybinh/hoso7991/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "hoso7991",
		Short: "Exam document package generator (matrix, specification, exam, answer key) per CV 7991",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `hoso7991 --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP pipeline server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "hoso7991.db", "SQLite database path")
	f.String("llm-url", "https://generativelanguage.googleapis.com/v1beta/openai", "OpenAI-compatible API base URL")
	f.String("llm-key", "", "API key for the generative backend (or set GEMINI_API_KEY)")
	f.String("llm-model", "gemini-flash-lite-latest", "Generative model name")
	f.StringP("lang", "l", "vi", "Message language (vi, en)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a saved draft as a Word-compatible .doc file",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "hoso7991.db", "SQLite database path")
	f.String("subject", "", "Draft subject (required)")
	f.String("grade", "", "Draft grade (required)")
	f.String("semester", "Học kì 1", "Draft semester")
	f.String("school-name", "", "School name printed on the exam header")
	f.String("time", "90", "Time limit in minutes printed on the exam header")
	f.StringP("output", "o", "", "Output file path (- for stdout, default derived from subject and grade)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")

	_ = cmd.MarkFlagRequired("subject")
	_ = cmd.MarkFlagRequired("grade")

	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("HOSO7991")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("hoso7991")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/hoso7991")
	v.AddConfigPath("/etc/hoso7991")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// apiKeyFrom resolves the backend credential: the configured flag/env
// first, then the bare GEMINI_API_KEY name kept for backward
// compatibility with earlier deployments.
func apiKeyFrom(v *viper.Viper) string {
	if key := v.GetString("llm-key"); key != "" {
		return key
	}
	return os.Getenv("GEMINI_API_KEY")
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	apiKey := apiKeyFrom(v)
	llmClient := llm.New(v.GetString("llm-url"), apiKey, v.GetString("llm-model"))
	if apiKey == "" {
		// The proxy endpoint reports this per request; the server still starts.
		slog.Warn("no API key configured, generation requests will fail",
			"flag", "llm-key", "env", "GEMINI_API_KEY")
	} else if err := llmClient.Ping(context.Background()); err != nil {
		return fmt.Errorf("LLM health check: %w", err)
	} else {
		slog.Info("LLM endpoint OK", "url", v.GetString("llm-url"), "model", v.GetString("llm-model"))
	}

	orch, err := pipeline.New(llmClient, db, model.DefaultInput())
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}

	h := handler.New(orch, llmClient, apiKey)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"model", v.GetString("llm-model"),
		"llm_url", v.GetString("llm-url"),
		"lang", lang,
	)
	return http.ListenAndServe(addr, r)
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	input := model.DefaultInput()
	input.Subject = v.GetString("subject")
	input.Grade = v.GetString("grade")
	input.Semester = v.GetString("semester")
	input.Time = v.GetString("time")
	if school := v.GetString("school-name"); school != "" {
		input.SchoolName = school
	}

	key := store.DraftKey(input.Subject, input.Grade, input.Semester)
	draft, err := db.LoadDraft(key)
	if err != nil {
		return fmt.Errorf("load draft: %w", err)
	}
	if draft == nil {
		keys, _ := db.ListDraftKeys()
		return fmt.Errorf("no draft found for %q (saved drafts: %s)", key, strings.Join(keys, ", "))
	}

	doc, err := export.BuildDocument(input, *draft)
	if err != nil {
		return fmt.Errorf("build document: %w", err)
	}

	outPath := v.GetString("output")
	if outPath == "" {
		outPath = export.Filename(input)
	}
	if outPath == "-" {
		_, err = os.Stdout.Write(doc)
		return err
	}
	if err := os.WriteFile(outPath, doc, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	slog.Info("exported draft", "key", key, "path", outPath)
	return nil
}

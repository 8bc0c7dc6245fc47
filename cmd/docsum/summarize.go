package main

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"docsum/internal/config"
	"docsum/internal/core"
	"docsum/internal/embedding"
	"docsum/internal/llm"
	"docsum/internal/logger"
	"docsum/internal/pipeline"
	"docsum/internal/tui"
	"docsum/internal/vectorstore"
	"docsum/internal/vectorstore/sqlitestore"
)

func newSummarizeCmd() *cobra.Command {
	var modeFlag string
	var focusQuery string
	var noProgress bool

	cmd := &cobra.Command{
		Use:   "summarize <path>",
		Short: "Summarise a markdown, text, or zip-archived document",
		Long: `Summarize reads a file (markdown, plain text, or a .zip archive
containing one), extracts retrieval segments, detects whether it is a
single document or a multi-work collection, and prints a summary.

When the available externals (LLM, vector store) are limited, pass
--mode to force a strategy instead of letting capability detection choose:
  bert         pure extractive, no externals required
  bert-hybrid  extractive retrieval + LLM synthesis
  bert-rag     same as bert-hybrid
  auto         (default) choose from probed capabilities
The vector store (in-memory or SQLite) is chosen by store.backend in the
configuration, not by the mode.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSummarize(cmd, args[0], modeFlag, focusQuery, noProgress)
		},
	}

	cmd.Flags().StringVar(&modeFlag, "mode", "auto", "strategy: auto, bert, bert-hybrid, bert-rag")
	cmd.Flags().StringVar(&focusQuery, "focus", "", "optional query to focus the summary on")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "print phase transitions instead of the interactive progress display")
	return cmd
}

func parseMode(s string) core.SummarizationMode {
	switch s {
	case "bert":
		return core.ModeBert
	case "bert-hybrid":
		return core.ModeBertHybrid
	case "bert-rag":
		return core.ModeBertRag
	default:
		return core.ModeAuto
	}
}

func runSummarize(cmd *cobra.Command, path, modeFlag, focusQuery string, noProgress bool) error {
	cfg := config.Get()
	ctx, cancel := context.WithTimeout(cmd.Context(), summarizeTimeout(cfg))
	defer cancel()

	svc, cleanup, err := buildService(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Shutdown(ctx)

	caps := svc.Probe(ctx)

	req := pipeline.Request{
		Path:       path,
		Mode:       parseMode(modeFlag),
		FocusQuery: focusQuery,
		Caps:       caps,
	}

	if noProgress {
		req.OnProgress = func(state core.JobState, label string) {
			fmt.Printf("[%s] %s %s\n", state.ID, state.Phase, label)
		}
		return printResult(svc, ctx, req)
	}
	return runWithProgress(svc, ctx, req, path)
}

func runWithProgress(svc *pipeline.Service, ctx context.Context, req pipeline.Request, path string) error {
	model := tui.New("summarizing " + path)
	program := tea.NewProgram(model)

	req.OnProgress = func(state core.JobState, label string) {
		program.Send(tui.ProgressMsg{State: state, Label: label})
	}

	resultCh := make(chan pipeline.Result, 1)
	errCh := make(chan error, 1)
	go func() {
		res, err := svc.SummarizeFile(ctx, req)
		resultCh <- res
		errCh <- err
	}()

	var summaryText string
	var runErr error
	finished := make(chan struct{})
	go func() {
		res := <-resultCh
		err := <-errCh
		summaryText, runErr = res.Summary.Text, err
		close(finished)
		if err != nil {
			program.Send(tui.DoneMsg{Err: err})
			return
		}
		program.Send(tui.DoneMsg{Result: res.Summary.Text})
	}()

	if _, err := program.Run(); err != nil {
		return err
	}
	select {
	case <-finished:
		if runErr != nil {
			return runErr
		}
		fmt.Println(summaryText)
	default:
	}
	return nil
}

func printResult(svc *pipeline.Service, ctx context.Context, req pipeline.Request) error {
	res, err := svc.SummarizeFile(ctx, req)
	if err != nil {
		return err
	}
	fmt.Println(res.Summary.Text)
	if res.Collection != nil && res.Collection.SummarizedWorks < res.Collection.TotalWorks {
		logger.Info("partial collection coverage",
			"summarized", res.Collection.SummarizedWorks,
			"total", res.Collection.TotalWorks)
	}
	return nil
}

func summarizeTimeout(cfg *config.Config) time.Duration {
	d, err := time.ParseDuration(cfg.Summarize.Timeout)
	if err != nil || d <= 0 {
		return 120 * time.Second
	}
	return d
}

// buildService constructs a pipeline.Service from the loaded config,
// choosing the in-memory or SQLite-backed store per store.backend, and
// returns a cleanup func the caller must invoke once done.
func buildService(ctx context.Context, cfg *config.Config) (*pipeline.Service, func(), error) {
	var store vectorstore.Store
	cleanup := func() {}

	switch cfg.Store.Backend {
	case "sqlite":
		s, err := sqlitestore.Open(cfg.App.DataDir)
		if err != nil {
			return nil, nil, err
		}
		store = s
		cleanup = func() { _ = s.Close() }
	default:
		store = vectorstore.NewMemoryStore()
	}

	var embedder embedding.Client
	var llmClient llm.Client
	if cfg.AI.Gemini.APIKey != "" {
		emb, err := embedding.NewGeminiClient(cfg.AI.Gemini.EmbeddingModel, cfg.AI.Gemini.Dimension)
		if err == nil {
			embedder = emb
		}
		gen, err := llm.NewGeminiClient(cfg.AI.Gemini.Model)
		if err == nil {
			llmClient = gen
		}
	}

	svc := pipeline.NewService(embedder, llmClient, store, cfg.Store.Collection)
	svc.ReindexOnStartup = cfg.Store.ReindexOnStartup
	if cfg.Summarize.MaxConcurrency > 0 {
		svc.MapConcurrency = cfg.Summarize.MaxConcurrency
	}
	return svc, cleanup, nil
}

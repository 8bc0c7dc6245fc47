package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"docsum/internal/capability"
	"docsum/internal/config"
	"docsum/internal/core"
)

func newCapabilitiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "capabilities",
		Short: "Probe available externals and report the selected summarisation mode",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Get()
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
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
			fmt.Printf("llm_available: %v\n", caps.LLMAvailable)
			fmt.Printf("pdf_available: %v\n", caps.PDFAvailable)
			fmt.Printf("pdf_has_gpu: %v\n", caps.PDFHasGPU)
			fmt.Printf("vector_db_available: %v\n", caps.VectorDBAvailable)
			fmt.Printf("selected_mode: %s\n", capability.SelectMode(core.ModeAuto, caps))
			return nil
		},
	}
}

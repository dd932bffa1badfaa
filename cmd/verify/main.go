// Command verify compares an uploaded certificate against its original and
// prints the verification result as JSON.
//
//	verify <original> <uploaded>
//
// Inputs may be PDFs (page one is rendered) or images. Analyzer settings
// come from the same environment variables as the API server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"go-doc-verifier/internal/config"
	apperrors "go-doc-verifier/internal/errors"
	"go-doc-verifier/internal/factory"
	"go-doc-verifier/internal/imageio"
	"go-doc-verifier/internal/logger"
	"go-doc-verifier/internal/render"
	"go-doc-verifier/internal/service"

	"github.com/sirupsen/logrus"
)

const usage = "usage: verify <original> <uploaded>"

func main() {
	// stdout carries the JSON result
	logger.SetOutput(os.Stderr)
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) != 2 {
		fmt.Fprintln(stderr, usage)
		return 1
	}

	original, err := imageio.ReadFile(args[0])
	if err != nil {
		return fail(stderr, err)
	}
	uploaded, err := imageio.ReadFile(args[1])
	if err != nil {
		return fail(stderr, err)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fail(stderr, err)
	}

	verifier, err := factory.NewAnalyzerFactory(cfg).CreateVerifier()
	if err != nil {
		return fail(stderr, err)
	}
	defer verifier.Close()

	svc := service.NewVerificationService(service.Dependencies{
		Rasterizer:      render.NewRasterizer(cfg.RenderDPI),
		Verifier:        verifier,
		AnalysisTimeout: cfg.AnalysisTimeout,
	})

	resp, err := svc.VerifyDocuments(context.Background(), original, uploaded)
	if err != nil {
		return fail(stderr, err)
	}

	for i, doc := range resp.Documents {
		for _, w := range doc.InputWarnings {
			logger.WithFields(logrus.Fields{"file": args[i], "warning": w}).Warn("Input quality")
		}
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp.AggregateResult); err != nil {
		return fail(stderr, err)
	}
	return 0
}

func fail(stderr io.Writer, err error) int {
	appErr := apperrors.AsAppError(err)
	if appErr.Cause != nil {
		fmt.Fprintf(stderr, "error: %s: %v\n", appErr.Message, appErr.Cause)
	} else {
		fmt.Fprintf(stderr, "error: %s\n", appErr.Message)
	}
	return 1
}

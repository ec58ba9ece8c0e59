package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cognicore/docxref/internal/llm"
	"github.com/cognicore/docxref/internal/textsrc"
	"github.com/cognicore/docxref/pkg/docxref"
	"github.com/cognicore/docxref/pkg/docxref/config"
	"github.com/cognicore/docxref/pkg/docxref/intent"
	"github.com/cognicore/docxref/pkg/docxref/internalerr"
	"github.com/cognicore/docxref/pkg/docxref/metrics"
	"github.com/cognicore/docxref/pkg/docxref/report"
	"github.com/cognicore/docxref/pkg/docxref/store"
	"github.com/cognicore/docxref/pkg/docxref/store/sqlite"
)

// inputFlags are shared by analyze and chat.
type inputFlags struct {
	docsPath     string
	files        []string
	catalogPath  string
	patternsPath string
	settingsPath string
	dbPath       string
	timeout      time.Duration
}

func (f *inputFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.docsPath, "docs", "", "JSONL file of documents")
	fl.StringArrayVar(&f.files, "file", nil, "document file (.csv, .tsv, .html, .txt); repeatable")
	fl.StringVar(&f.catalogPath, "catalog", "", "YAML catalog of master tables")
	fl.StringVar(&f.patternsPath, "patterns", "", "YAML pattern catalog (default: built-in)")
	fl.StringVar(&f.settingsPath, "settings", "", "YAML settings file")
	fl.StringVar(&f.dbPath, "db", "", "SQLite history database (optional)")
	fl.DurationVar(&f.timeout, "timeout", 2*time.Minute, "analysis timeout")
}

type llmFlags struct {
	base   string
	model  string
	apiKey string
}

func (f *llmFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.base, "llm-base", "", "OpenAI-compatible chat completions URL")
	fl.StringVar(&f.model, "llm-model", "", "model name")
	fl.StringVar(&f.apiKey, "llm-api-key", os.Getenv("DOCXREF_LLM_API_KEY"), "API key (default $DOCXREF_LLM_API_KEY)")
}

func (f *llmFlags) client() *llm.Client {
	if f.base == "" || f.model == "" {
		return nil
	}
	return &llm.Client{BaseURL: f.base, Model: f.model, APIKey: f.apiKey}
}

// session is one loaded analysis: engine, inputs and settings.
type session struct {
	engine   *docxref.Engine
	request  docxref.Request
	settings config.Settings
	registry *prometheus.Registry
}

func (s *session) Close() error { return s.engine.Close() }

func (s *session) reportOptions() report.Options {
	return report.Options{
		MaxExamples:      s.settings.MaxExamples,
		MaxValuesPerType: s.settings.MaxValuesPerType,
	}
}

func openSession(ctx context.Context, f *inputFlags, logger *zap.Logger) (*session, error) {
	loader := config.Loader{
		PatternsPath: f.patternsPath,
		CatalogPath:  f.catalogPath,
		SettingsPath: f.settingsPath,
	}
	comp, err := loader.Load()
	if err != nil {
		return nil, err
	}

	src := textsrc.Loader{Limits: textsrc.LimitsFrom(comp.Settings), Logger: logger}
	var req docxref.Request
	if f.docsPath != "" {
		docs, err := src.LoadFromJSONL(f.docsPath)
		if err != nil {
			return nil, err
		}
		req.Documents = append(req.Documents, docs...)
	}
	for _, path := range f.files {
		doc, err := src.LoadFile(path)
		if err != nil {
			return nil, err
		}
		req.Documents = append(req.Documents, doc)
	}
	req.Masters, err = src.LoadMasters(comp.Catalog)
	if err != nil {
		return nil, err
	}
	if len(req.Documents) == 0 && len(req.Masters) == 0 {
		return nil, fmt.Errorf("%w: nothing to analyze, pass --docs, --file or --catalog", internalerr.ErrInvalidInput)
	}

	var st store.Store
	if f.dbPath != "" {
		st, err = sqlite.OpenSQLite(ctx, f.dbPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
		}
	}

	reg := prometheus.NewRegistry()
	engine := docxref.New(docxref.Options{
		Registry: comp.Registry,
		Logger:   logger,
		Metrics:  metrics.New(reg),
		Store:    st,
		Workers:  comp.Settings.Workers,
		Report: report.Options{
			MaxExamples:      comp.Settings.MaxExamples,
			MaxValuesPerType: comp.Settings.MaxValuesPerType,
		},
	})

	logger.Debug("session ready",
		zap.Int("documents", len(req.Documents)),
		zap.Int("masters", len(req.Masters)),
		zap.Int("patterns", comp.Registry.Len()))
	return &session{engine: engine, request: req, settings: comp.Settings, registry: reg}, nil
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var (
		in          inputFlags
		model       llmFlags
		format      string
		question    string
		metricsPath string
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Correlate documents and master tables and print the report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "text" && format != "json" {
				return fmt.Errorf("%w: --format must be text or json", internalerr.ErrInvalidInput)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), in.timeout)
			defer cancel()

			s, err := openSession(ctx, &in, a.logger)
			if err != nil {
				return err
			}
			defer s.Close()

			out, err := s.engine.Analyze(ctx, s.request)
			if err != nil {
				return err
			}
			rep := out.Format(s.reportOptions())

			w := cmd.OutOrStdout()
			if format == "json" {
				if err := writeJSON(w, out, rep); err != nil {
					return err
				}
			} else if err := rep.Render(w); err != nil {
				return err
			}

			if question != "" {
				cls := intent.Classify(question, len(s.request.Documents) > 0)
				answer, err := answer(ctx, model.client(), cls, question, &rep)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "\nAnswer (%s):\n%s\n", cls, answer)
			}

			if metricsPath != "" {
				if err := writeMetrics(metricsPath, s.registry); err != nil {
					return err
				}
			}
			return nil
		},
	}

	in.register(cmd)
	model.register(cmd)
	cmd.Flags().StringVar(&format, "format", "text", "output format (text, json)")
	cmd.Flags().StringVar(&question, "question", "", "question to answer from the report")
	cmd.Flags().StringVar(&metricsPath, "metrics-file", "", "write Prometheus metrics to this file")
	return cmd
}

// answer returns a reply without a model for greetings and fails for
// everything else when no model is configured.
func answer(ctx context.Context, c *llm.Client, cls intent.Intent, question string, rep *report.Report) (string, error) {
	if cls == intent.Greeting {
		return llm.GreetingReply, nil
	}
	if c == nil {
		return "", fmt.Errorf("%w: --llm-base and --llm-model are required to answer questions", internalerr.ErrInvalidConfig)
	}
	return c.Answer(ctx, cls, question, rep)
}

func writeJSON(w io.Writer, out *docxref.CorrelationReport, rep report.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		*docxref.CorrelationReport
		Rendered report.Report `json:"rendered"`
	}{out, rep})
}

func writeMetrics(path string, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(f, mf); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return f.Close()
}

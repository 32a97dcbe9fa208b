package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"wipetrace/internal/domain/emailjobs"
	"wipetrace/internal/domain/templates"
	"wipetrace/internal/platform/config"
	"wipetrace/internal/platform/db"
	"wipetrace/internal/platform/logger"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	var (
		baseURL    = envOr("WIPETRACE_API_URL", "http://localhost:8080/api/v1")
		cronSecret = envOr("CRON_SECRET", "")
		format     = envOr("WIPETRACE_OUT", "text")
		timeout    = 5 * time.Minute
	)
	cl := &client{Out: out}

	root := &cobra.Command{
		Use:           "wipetracectl",
		Short:         "Operator commands for the wipetrace service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "text" {
				return fmt.Errorf("--out must be json or text")
			}
			cl.BaseURL = baseURL
			cl.OutFormat = format
			cl.HTTP = &http.Client{Timeout: timeout}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&baseURL, "api-url", baseURL, "API base URL (env WIPETRACE_API_URL)")
	root.PersistentFlags().StringVar(&cronSecret, "cron-secret", cronSecret, "job trigger secret (env CRON_SECRET)")
	root.PersistentFlags().StringVar(&format, "out", format, "output format: json|text")

	root.AddCommand(newJobsCmd(cl, &cronSecret))
	root.AddCommand(newRequestsCmd(cl))
	root.AddCommand(newTemplatesCmd(out))
	return root
}

func newJobsCmd(cl *client, cronSecret *string) *cobra.Command {
	jobsCmd := &cobra.Command{Use: "jobs", Short: "Batch email jobs"}
	var async bool
	runCmd := &cobra.Command{
		Use:       "run <" + strings.Join(emailjobs.Names, "|") + ">",
		Short:     "Trigger a batch job on the running service",
		Args:      cobra.ExactArgs(1),
		ValidArgs: emailjobs.Names,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.ToLower(args[0])
			if !slices.Contains(emailjobs.Names, name) {
				return fmt.Errorf("unknown job %q", args[0])
			}
			if *cronSecret == "" {
				return fmt.Errorf("missing cron secret (flag --cron-secret or env CRON_SECRET)")
			}
			cl.Token = *cronSecret
			raw, err := cl.call(cmd.Context(), http.MethodPost, "/jobs/email", map[string]any{"job": name, "async": async})
			if err != nil {
				return err
			}
			if cl.OutFormat == "text" {
				return printJobSummary(cl.Out, raw)
			}
			cl.print(raw)
			return nil
		},
	}
	runCmd.Flags().BoolVar(&async, "async", false, "queue the job and return immediately")
	jobsCmd.AddCommand(runCmd)
	return jobsCmd
}

func printJobSummary(out io.Writer, raw []byte) error {
	var env struct {
		Data struct {
			Job     string             `json:"job"`
			Queued  bool               `json:"queued"`
			Results []emailjobs.Result `json:"results"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return err
	}
	if env.Data.Queued {
		fmt.Fprintf(out, "%s: queued\n", env.Data.Job)
		return nil
	}
	for _, res := range env.Data.Results {
		fmt.Fprintf(out, "%s: processed=%d success=%d failure=%d skipped=%d\n",
			res.Job, res.Processed, res.SuccessCount, res.FailureCount, res.Skipped)
	}
	return nil
}

func newRequestsCmd(cl *client) *cobra.Command {
	requestsCmd := &cobra.Command{Use: "requests", Short: "Deletion requests"}
	var token, templateType string
	previewCmd := &cobra.Command{
		Use:   "preview <id>",
		Short: "Render the email a request would send, without sending it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				return fmt.Errorf("--token is required (env WIPETRACE_TOKEN)")
			}
			cl.Token = token
			path := "/deletion-requests/" + url.PathEscape(args[0]) + "/email"
			if templateType != "" {
				path += "?type=" + url.QueryEscape(templateType)
			}
			raw, err := cl.call(cmd.Context(), http.MethodGet, path, nil)
			if err != nil {
				return err
			}
			if cl.OutFormat == "text" {
				return printPreview(cl.Out, raw)
			}
			cl.print(raw)
			return nil
		},
	}
	previewCmd.Flags().StringVar(&token, "token", envOr("WIPETRACE_TOKEN", ""), "bearer token of the request owner")
	previewCmd.Flags().StringVar(&templateType, "type", "", "template type, e.g. FOLLOW_UP")
	requestsCmd.AddCommand(previewCmd)
	return requestsCmd
}

func printPreview(out io.Writer, raw []byte) error {
	var env struct {
		Data struct {
			To        string `json:"to"`
			From      string `json:"from"`
			ReplyTo   string `json:"replyTo"`
			Subject   string `json:"subject"`
			PlainText string `json:"plainText"`
			Source    string `json:"source"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return err
	}
	p := env.Data
	fmt.Fprintf(out, "To: %s\nFrom: %s\n", p.To, p.From)
	if p.ReplyTo != "" {
		fmt.Fprintf(out, "Reply-To: %s\n", p.ReplyTo)
	}
	fmt.Fprintf(out, "Subject: %s\nTemplate: %s\n\n%s\n", p.Subject, p.Source, p.PlainText)
	return nil
}

func newTemplatesCmd(out io.Writer) *cobra.Command {
	templatesCmd := &cobra.Command{Use: "templates", Short: "Email templates"}
	var configPath string
	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Write the built-in templates as active jurisdiction defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required")
			}
			log := logger.New(logger.Config{Env: cfg.Environment, Level: cfg.LogLevel, Service: "wipetracectl"})
			defer func() { _ = log.Sync() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			pool, err := db.Connect(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			n, err := templates.NewService(templates.NewStore(pool), 0, log).SeedDefaults(ctx)
			if err != nil {
				return err
			}
			log.Info("templates seeded", zap.Int("count", n))
			fmt.Fprintf(out, "seeded %d templates\n", n)
			return nil
		},
	}
	seedCmd.Flags().StringVar(&configPath, "config", "", "YAML config file (defaults to $WIPETRACE_CONFIG)")
	templatesCmd.AddCommand(seedCmd)
	return templatesCmd
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

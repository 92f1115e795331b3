package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"meetai/pkg/billing"
	"meetai/pkg/domain"
	"meetai/pkg/entitlement"
	"meetai/pkg/queue"
	"meetai/pkg/retention"
	"meetai/pkg/store"
)

// AdminStore is the persistence meetctl reads from.
type AdminStore interface {
	entitlement.UsageStore
	GetMeeting(ctx context.Context, id string) (domain.Meeting, bool, error)
	GetAgent(ctx context.Context, id string) (domain.Agent, bool, error)
	GetChatByMeeting(ctx context.Context, meetingID string) (domain.MeetingChat, bool, error)
}

// JobReader looks up background job status.
type JobReader interface {
	GetJob(ctx context.Context, jobID string) (queue.Job, bool, error)
}

// Deps wires meetctl to its backends. Tests swap the openers.
type Deps struct {
	OpenStore   func(dsn string) (AdminStore, func() error, error)
	OpenBilling func(baseURL, token string) (billing.Provider, error)
	OpenJobs    func(addr, password, stream string) (JobReader, func() error, error)
	Now         func() time.Time
}

// DefaultDeps connects to Postgres, the billing API and Redis.
func DefaultDeps() *Deps {
	return &Deps{
		OpenStore: func(dsn string) (AdminStore, func() error, error) {
			st, err := store.NewGormStore(dsn)
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		OpenBilling: func(baseURL, token string) (billing.Provider, error) {
			client, err := billing.NewClient(baseURL, token)
			if err != nil {
				return nil, err
			}
			return client, nil
		},
		OpenJobs: func(addr, password, stream string) (JobReader, func() error, error) {
			q, err := queue.NewRedisJobQueue(queue.RedisQueueConfig{Addr: addr, Password: password, Stream: stream})
			if err != nil {
				return nil, nil, err
			}
			return q, q.Close, nil
		},
		Now: time.Now,
	}
}

type options struct {
	databaseURL   string
	redisAddr     string
	redisPassword string
	queueStream   string
	billingURL    string
	billingToken  string
	retentionDays int
	output        string
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envIntOr(key string, def int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key))); err == nil {
		return n
	}
	return def
}

// NewRootCommand builds the meetctl command tree.
func NewRootCommand(deps *Deps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	opts := &options{}
	root := &cobra.Command{
		Use:   "meetctl",
		Short: "Operate the meetai backend",
		Long: `meetctl inspects and maintains a meetai deployment.

Connection settings default to the same environment variables the services
read (DATABASE_URL, REDIS_ADDR, BILLING_BASE_URL, ...).

Examples:
  # Apply database migrations
  meetctl migrate

  # Show a user's tier and usage
  meetctl usage user_123 -o json

  # Inspect a meeting and its retention window
  meetctl meeting inspect 6f1c...`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&opts.databaseURL, "database-url", envOr("DATABASE_URL", ""), "Postgres DSN")
	flags.StringVar(&opts.redisAddr, "redis-addr", envOr("REDIS_ADDR", "localhost:6379"), "Redis address of the job queue")
	flags.StringVar(&opts.redisPassword, "redis-password", envOr("REDIS_PASSWORD", ""), "Redis password")
	flags.StringVar(&opts.queueStream, "queue-stream", envOr("QUEUE_STREAM", "meetai:jobs"), "Job stream name")
	flags.StringVar(&opts.billingURL, "billing-url", envOr("BILLING_BASE_URL", ""), "Billing API base URL; empty treats everyone as free")
	flags.StringVar(&opts.billingToken, "billing-token", envOr("BILLING_TOKEN", ""), "Billing API token")
	flags.IntVar(&opts.retentionDays, "retention-days", envIntOr("RETENTION_DAYS", retention.DefaultDays), "Artifact retention window in days")
	flags.StringVarP(&opts.output, "output", "o", "text", "Output format: text, json, yaml")

	root.AddCommand(
		newMigrateCommand(deps, opts),
		newTiersCommand(opts),
		newUsageCommand(deps, opts),
		newMeetingCommand(deps, opts),
		newJobCommand(deps, opts),
	)
	return root
}

func (o *options) openStore(deps *Deps) (AdminStore, func() error, error) {
	if strings.TrimSpace(o.databaseURL) == "" {
		return nil, nil, errors.New("database url required (--database-url or DATABASE_URL)")
	}
	st, closeFn, err := deps.OpenStore(o.databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	if closeFn == nil {
		closeFn = func() error { return nil }
	}
	return st, closeFn, nil
}

func newMigrateCommand(deps *Deps, opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, closeFn, err := opts.openStore(deps)
			if err != nil {
				return err
			}
			defer closeFn()
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

var tierOrder = []domain.Tier{domain.TierFree, domain.TierStarter, domain.TierPro, domain.TierEnterprise}

type tierRow struct {
	Tier   domain.Tier   `json:"tier" yaml:"tier"`
	Limits domain.Limits `json:"limits" yaml:"limits"`
}

func newTiersCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "tiers",
		Short: "Print the limits of every subscription tier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rows := make([]tierRow, 0, len(tierOrder))
			for _, tier := range tierOrder {
				rows = append(rows, tierRow{Tier: tier, Limits: entitlement.LimitsFor(tier)})
			}
			return render(cmd.OutOrStdout(), opts.output, rows, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "TIER\tAGENTS\tMEETINGS\tWINDOW\tCHAT MESSAGES")
				for _, r := range rows {
					window := "lifetime"
					if r.Limits.MeetingsMonthly {
						window = "monthly"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Tier, limitText(r.Limits.Agents),
						limitText(r.Limits.Meetings), window, limitText(r.Limits.ChatMessagesPerChat))
				}
				return tw.Flush()
			})
		},
	}
}

func newUsageCommand(deps *Deps, opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "usage <user-id>",
		Short: "Show a user's tier and resource usage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, closeFn, err := opts.openStore(deps)
			if err != nil {
				return err
			}
			defer closeFn()
			var provider billing.Provider
			if strings.TrimSpace(opts.billingURL) != "" {
				provider, err = deps.OpenBilling(opts.billingURL, opts.billingToken)
				if err != nil {
					return fmt.Errorf("open billing: %w", err)
				}
			}
			evaluator := entitlement.NewEvaluator(provider, st, entitlement.WithClock(deps.Now))
			summary, err := evaluator.Summary(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("usage summary: %w", err)
			}
			return render(cmd.OutOrStdout(), opts.output, summary, func(w io.Writer) error {
				fmt.Fprintf(w, "User:     %s\n", args[0])
				fmt.Fprintf(w, "Tier:     %s\n", summary.Tier.Tier)
				if summary.Tier.ProductName != "" {
					fmt.Fprintf(w, "Product:  %s (%s)\n", summary.Tier.ProductName, summary.Tier.SubscriptionStatus)
				}
				fmt.Fprintf(w, "Agents:   %d / %s\n", summary.Agents.Current, limitText(summary.Agents.Limit))
				fmt.Fprintf(w, "Meetings: %d / %s\n", summary.Meetings.Current, limitText(summary.Meetings.Limit))
				return nil
			})
		},
	}
}

type meetingReport struct {
	Meeting      domain.Meeting   `json:"meeting" yaml:"meeting"`
	AgentName    string           `json:"agentName,omitempty" yaml:"agentName,omitempty"`
	Retention    retention.Status `json:"retention" yaml:"retention"`
	ChatID       string           `json:"chatId,omitempty" yaml:"chatId,omitempty"`
	ChatMessages int              `json:"chatMessages" yaml:"chatMessages"`
}

func newMeetingCommand(deps *Deps, opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "meeting",
		Short:   "Inspect meetings",
		Aliases: []string{"meetings"},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "inspect <meeting-id>",
		Short: "Show a meeting's lifecycle state, retention window and chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, closeFn, err := opts.openStore(deps)
			if err != nil {
				return err
			}
			defer closeFn()
			report, err := inspectMeeting(cmd.Context(), st, retention.New(opts.retentionDays, deps.Now), args[0])
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, report, func(w io.Writer) error {
				return writeMeetingReport(w, report)
			})
		},
	})
	return cmd
}

func inspectMeeting(ctx context.Context, st AdminStore, window retention.Window, id string) (meetingReport, error) {
	m, ok, err := st.GetMeeting(ctx, id)
	if err != nil {
		return meetingReport{}, fmt.Errorf("load meeting: %w", err)
	}
	if !ok {
		return meetingReport{}, fmt.Errorf("meeting %s not found", id)
	}
	report := meetingReport{Meeting: m, Retention: window.StatusOf(m.EndedAt)}
	if agent, ok, err := st.GetAgent(ctx, m.AgentID); err != nil {
		return meetingReport{}, fmt.Errorf("load agent: %w", err)
	} else if ok {
		report.AgentName = agent.Name
	}
	chat, ok, err := st.GetChatByMeeting(ctx, m.ID)
	if err != nil {
		return meetingReport{}, fmt.Errorf("load chat: %w", err)
	}
	if ok {
		report.ChatID = chat.ID
		report.ChatMessages = chat.MessageCount
	}
	return report, nil
}

func writeMeetingReport(w io.Writer, r meetingReport) error {
	m := r.Meeting
	fmt.Fprintf(w, "Meeting:   %s (%s)\n", m.Name, m.ID)
	fmt.Fprintf(w, "Owner:     %s\n", m.UserID)
	fmt.Fprintf(w, "Agent:     %s %s\n", m.AgentID, r.AgentName)
	fmt.Fprintf(w, "Status:    %s\n", m.Status)
	fmt.Fprintf(w, "Started:   %s\n", timeText(m.StartedAt))
	fmt.Fprintf(w, "Ended:     %s\n", timeText(m.EndedAt))
	if d, ok := m.Duration(); ok {
		fmt.Fprintf(w, "Duration:  %s\n", d.Round(time.Second))
	}
	fmt.Fprintf(w, "Expires:   %s (%d days left, available=%t)\n", timeText(r.Retention.ExpiresAt), r.Retention.DaysUntilExpiry, r.Retention.Available)
	fmt.Fprintf(w, "Summary:   %t\n", strings.TrimSpace(m.Summary) != "")
	if r.ChatID != "" {
		fmt.Fprintf(w, "Chat:      %s (%d user messages)\n", r.ChatID, r.ChatMessages)
	}
	return nil
}

func newJobCommand(deps *Deps, opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Inspect background jobs",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status <job-id>",
		Short: "Show the status of a summarize or chat-reply job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, closeFn, err := deps.OpenJobs(opts.redisAddr, opts.redisPassword, opts.queueStream)
			if err != nil {
				return fmt.Errorf("open queue: %w", err)
			}
			if closeFn != nil {
				defer closeFn()
			}
			job, ok, err := jobs.GetJob(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("get job: %w", err)
			}
			if !ok {
				return fmt.Errorf("job %s not found", args[0])
			}
			return render(cmd.OutOrStdout(), opts.output, job, func(w io.Writer) error {
				fmt.Fprintf(w, "Job:      %s\n", job.ID)
				fmt.Fprintf(w, "Kind:     %s\n", job.Kind)
				fmt.Fprintf(w, "Ref:      %s\n", job.RefID)
				fmt.Fprintf(w, "Status:   %s (attempt %d)\n", job.Status, job.Attempts)
				if job.ErrorMessage != "" {
					fmt.Fprintf(w, "Error:    %s\n", job.ErrorMessage)
				}
				fmt.Fprintf(w, "Updated:  %s\n", job.UpdatedAt.Format(time.RFC3339))
				return nil
			})
		},
	})
	return cmd
}

func render(w io.Writer, format string, v any, text func(io.Writer) error) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		return text(w)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(v)
	default:
		return fmt.Errorf("invalid output format: %s", format)
	}
}

func limitText(limit int) string {
	if limit == domain.Unlimited {
		return "unlimited"
	}
	return strconv.Itoa(limit)
}

func timeText(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

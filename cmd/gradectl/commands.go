package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/mind-engage/testgrade/internal/app"
	"github.com/mind-engage/testgrade/internal/config"
	"github.com/mind-engage/testgrade/internal/exam"
	"github.com/mind-engage/testgrade/internal/grading"
	"github.com/mind-engage/testgrade/internal/identity"
	"github.com/mind-engage/testgrade/internal/logger"
)

type rootOptions struct {
	configDir string
	verbose   bool
	timeout   time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "gradectl",
		Short:         "Manage tests and grade submissions",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&opts.configDir, "config", ".", "directory holding config.yaml")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log at info level")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "deadline for backend calls")

	root.AddCommand(
		newGradeCmd(),
		newTestsCmd(opts),
		newSubmitCmd(opts),
		newSubmissionsCmd(opts),
		newReportCmd(opts),
		newTokenCmd(opts),
	)
	return root
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// withApp runs fn against the backends named by the configuration.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load(opts.configDir)
	if err != nil {
		return err
	}
	if !opts.verbose {
		cfg.Log.Level = "warn"
	}
	lg, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer lg.Sync()

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()
	a, err := app.New(ctx, cfg, lg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// grade works on local files only; nothing is stored.
func newGradeCmd() *cobra.Command {
	var testPath, answersPath string
	cmd := &cobra.Command{
		Use:   "grade",
		Short: "Grade an answer file against a test file without any backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := loadDefinition(testPath)
			if err != nil {
				return err
			}
			answers, err := loadAnswers(answersPath)
			if err != nil {
				return err
			}
			res, err := grading.NewEngine().Grade(d, answers)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"score":   res.Score,
				"maxAuto": res.MaxAuto,
				"results": res.Results,
			})
		},
	}
	cmd.Flags().StringVar(&testPath, "test", "", "test definition (.json or .yaml)")
	cmd.Flags().StringVar(&answersPath, "answers", "", "answer set (.json or .yaml)")
	_ = cmd.MarkFlagRequired("test")
	_ = cmd.MarkFlagRequired("answers")
	return cmd
}

func newTestsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "tests", Short: "Store and fetch test definitions"}
	cmd.AddCommand(&cobra.Command{
		Use:   "put FILE",
		Short: "Save a definition, replacing any stored version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := loadDefinition(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				if err := a.Tests.Save(ctx, d); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "saved %s (%d questions)\n", d.TestID, len(d.Questions))
				return nil
			})
		},
	}, &cobra.Command{
		Use:   "get TEST_ID",
		Short: "Print a stored definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				d, ok, err := a.Tests.Load(ctx, args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%w: %s", exam.ErrTestNotFound, args[0])
				}
				return printJSON(cmd.OutOrStdout(), d)
			})
		},
	})
	return cmd
}

func newSubmitCmd(opts *rootOptions) *cobra.Command {
	var student grading.Student
	var answersPath string
	cmd := &cobra.Command{
		Use:   "submit TEST_ID",
		Short: "Grade an answer file against a stored test and record it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			answers, err := loadAnswers(answersPath)
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				out, err := a.Grader.Submit(ctx, grading.SubmitRequest{TestID: args[0], Student: student, Answers: answers})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}
	cmd.Flags().StringVar(&student.ID, "student", "", "student id")
	cmd.Flags().StringVar(&student.Name, "name", "", "student display name")
	cmd.Flags().StringVar(&answersPath, "answers", "", "answer set (.json or .yaml)")
	_ = cmd.MarkFlagRequired("student")
	_ = cmd.MarkFlagRequired("answers")
	return cmd
}

func newSubmissionsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "submissions TEST_ID",
		Short: "List every recorded submission of a test",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				entries, err := a.Log.ListAll(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), entries)
			})
		},
	}
}

func newReportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "report TEST_ID",
		Short: "Export the gradebook of a test as XLSX and print its URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				rep, err := a.Reports.Export(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), rep.URL)
				return nil
			})
		},
	}
}

func newTokenCmd(opts *rootOptions) *cobra.Command {
	var sub, name, role string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token signed with the configured secret",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configDir)
			if err != nil {
				return err
			}
			switch role {
			case identity.RoleStudent, identity.RoleAdmin:
			default:
				return fmt.Errorf("unknown role %q", role)
			}
			tok, err := identity.NewAuthService(cfg.Auth.HMACSecret, cfg.Auth.TokenTTL).IssueJWT(sub, name, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&sub, "sub", "", "subject (student id)")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&role, "role", identity.RoleStudent, "student or admin")
	_ = cmd.MarkFlagRequired("sub")
	return cmd
}

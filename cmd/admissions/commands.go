package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"admissions/internal/adapters/backups"
	"admissions/internal/adapters/httpapi"
	"admissions/internal/core"
	"admissions/internal/logging"
	"admissions/pkg/domain"
)

const shutdownTimeout = 10 * time.Second

func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return usageError{msg: err.Error()}
	}
	return nil
}

// singleID parses flags and requires exactly one positional record id.
func singleID(fs *flag.FlagSet, args []string) (string, error) {
	if err := parse(fs, args); err != nil {
		return "", err
	}
	if fs.NArg() != 1 {
		return "", usageError{msg: "expected one student id"}
	}
	return fs.Arg(0), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printResult(a *app, w io.Writer, st core.Student, res core.Result) error {
	for _, v := range res.Warnings() {
		a.logger.Warn().Str("rule", v.Rule).Msg(v.Message)
	}
	return printJSON(w, st)
}

func runServe(ctx context.Context, a *app, args []string, _ io.Writer) error {
	fs := newFlags("serve")
	addr := fs.String("addr", a.cfg.HTTP.Addr, "listen address")
	if err := parse(fs, args); err != nil {
		return err
	}

	if a.cfg.Backup.Schedule != "" {
		sched, err := backups.New(a.exporter, backups.Config{
			Schedule: a.cfg.Backup.Schedule,
			Keep:     a.cfg.Backup.Keep,
			Roster:   a.cfg.Backup.Roster,
		}, logging.Component(a.logger, "backups"))
		if err != nil {
			return err
		}
		sched.Start()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := sched.Stop(stopCtx); err != nil {
				a.logger.Warn().Err(err).Msg("backup scheduler did not stop cleanly")
			}
		}()
	}

	gin.SetMode(gin.ReleaseMode)
	handler := &httpapi.Handler{
		Service:         a.service,
		Exporter:        a.exporter,
		Summarizer:      a.summarizer,
		InsightsTimeout: a.cfg.Advisor.Timeout,
	}
	srv := &http.Server{
		Addr:              *addr,
		Handler:           httpapi.NewRouter(handler, logging.Component(a.logger, "http"), a.registry),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info().Str("addr", *addr).Msg("admission dashboard listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	a.logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runIssue(ctx context.Context, a *app, args []string, w io.Writer) error {
	fs := newFlags("issue")
	var req core.IssueSlipRequest
	var gender string
	fs.StringVar(&req.Name, "name", "", "applicant name")
	fs.StringVar(&req.Class, "class", "", "class, e.g. Form 1 Science")
	fs.StringVar(&gender, "gender", "", "Male or Female")
	fs.StringVar(&req.CheatNumber, "cheat", "", "cheat number printed on the slip")
	if err := parse(fs, args); err != nil {
		return err
	}
	req.Gender = domain.Gender(gender)
	st, res, err := a.service.IssueSlip(ctx, req)
	if err != nil {
		return err
	}
	return printResult(a, w, st, res)
}

type gatedAction func(ctx context.Context, id string) (core.Student, core.Result, error)

func runGated(ctx context.Context, a *app, name string, args []string, w io.Writer, action gatedAction) error {
	id, err := singleID(newFlags(name), args)
	if err != nil {
		return err
	}
	st, res, err := action(ctx, id)
	if err != nil {
		return err
	}
	return printResult(a, w, st, res)
}

func runSell(ctx context.Context, a *app, args []string, w io.Writer) error {
	return runGated(ctx, a, "sell", args, w, a.service.SellForm)
}

func runBio(ctx context.Context, a *app, args []string, w io.Writer) error {
	return runGated(ctx, a, "bio", args, w, a.service.LogBioData)
}

func runTranscript(ctx context.Context, a *app, args []string, w io.Writer) error {
	return runGated(ctx, a, "transcript", args, w, a.service.LogTranscript)
}

func runPay(ctx context.Context, a *app, args []string, w io.Writer) error {
	fs := newFlags("pay")
	amount := fs.String("amount", "", "amount received; blank charges the standard fee")
	id, err := singleID(fs, args)
	if err != nil {
		return err
	}
	st, res, err := a.service.RecordPayment(ctx, id, *amount)
	if err != nil {
		return err
	}
	return printResult(a, w, st, res)
}

func runReview(ctx context.Context, a *app, args []string, w io.Writer) error {
	fs := newFlags("review")
	approve := fs.Bool("approve", false, "approve the admission")
	decline := fs.Bool("decline", false, "decline the admission")
	id, err := singleID(fs, args)
	if err != nil {
		return err
	}
	if *approve == *decline {
		return usageError{msg: "exactly one of -approve or -decline is required"}
	}
	st, res, err := a.service.Review(ctx, id, *approve)
	if err != nil {
		return err
	}
	return printResult(a, w, st, res)
}

func runView(_ context.Context, a *app, args []string, w io.Writer) error {
	if len(args) == 0 {
		return usageError{msg: "expected a view name"}
	}
	state := a.service.State()
	switch args[0] {
	case "overview":
		return printJSON(w, core.Overview(state))
	case "headmaster":
		return printJSON(w, core.Headmaster(state))
	case "secretary":
		return printJSON(w, core.Secretary(state))
	case "accountant":
		return printJSON(w, core.Accountant(state, a.service.StandardFee()))
	case "dataentry":
		return printJSON(w, core.DataEntry(state))
	case "rector":
		return printJSON(w, core.Rector(state))
	case "student":
		if len(args) != 2 {
			return usageError{msg: "expected one student id"}
		}
		st, err := a.service.Student(args[1])
		if err != nil {
			return err
		}
		return printJSON(w, st)
	default:
		return usageError{msg: "unknown view " + args[0]}
	}
}

func runExport(ctx context.Context, a *app, _ []string, w io.Writer) error {
	out, err := a.exporter.ExportSnapshot(ctx)
	if err != nil {
		return err
	}
	return printJSON(w, out)
}

// runRoster archives the roster, or writes it to -out without archiving.
func runRoster(ctx context.Context, a *app, args []string, w io.Writer) error {
	fs := newFlags("roster")
	out := fs.String("out", "", "write the workbook to this file instead of the archive")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *out == "" {
		exp, err := a.exporter.ExportRoster(ctx)
		if err != nil {
			return err
		}
		return printJSON(w, exp)
	}
	payload, err := core.RenderRoster(a.service.State().Students)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, payload, 0o600); err != nil {
		return fmt.Errorf("write roster: %w", err)
	}
	_, err = fmt.Fprintln(w, *out)
	return err
}

func runBackups(ctx context.Context, a *app, _ []string, w io.Writer) error {
	infos, err := a.exporter.Backups(ctx)
	if err != nil {
		return err
	}
	return printJSON(w, infos)
}

func runPrune(ctx context.Context, a *app, args []string, w io.Writer) error {
	fs := newFlags("prune")
	keep := fs.Int("keep", a.cfg.Backup.Keep, "number of newest backups to keep")
	if err := parse(fs, args); err != nil {
		return err
	}
	removed, err := a.exporter.PruneBackups(ctx, *keep)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "removed %d backups\n", removed)
	return err
}

func runImport(ctx context.Context, a *app, args []string, w io.Writer) error {
	if len(args) != 1 {
		return usageError{msg: "expected one backup key"}
	}
	state, err := a.exporter.ImportSnapshot(ctx, args[0])
	if err != nil {
		return err
	}
	return printJSON(w, core.Overview(state))
}

func runInsights(ctx context.Context, a *app, _ []string, w io.Writer) error {
	_, err := fmt.Fprintln(w, a.service.Insights(ctx, a.summarizer, a.cfg.Advisor.Timeout))
	return err
}

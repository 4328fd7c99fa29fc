package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"positionScope/internal/position"
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Reconcile the owner's positions once and print them as JSON lines",
		RunE:  runList,
	}
	addReadFlags(cmd)
	addIndexFlags(cmd)
	return cmd
}

func runList(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	owner, err := a.address("owner", a.cfg.Owner)
	if err != nil {
		return err
	}
	idx, err := a.maybeIndex(cmd)
	if err != nil {
		return err
	}
	if idx != nil {
		if err := idx.Sync(ctx); err != nil {
			return fmt.Errorf("ownership sync: %w", err)
		}
	}

	session, err := a.session(cmd, owner, idx)
	if err != nil {
		return err
	}
	report, err := session.Reconcile(ctx)
	if err != nil {
		return err
	}
	logReport(a.logger, report)

	return printCache(session)
}

func logReport(logger *zap.Logger, report position.Report) {
	fields := []zap.Field{
		zap.String("owner", report.Owner.Hex()),
		zap.Uint64("generation", report.Generation),
		zap.Int("positions", report.Positions),
		zap.Int("staked", report.Staked),
		zap.Int("failed_batches", report.FailedBatches),
		zap.Int("record_errors", len(report.RecordErrors)),
		zap.Bool("stale", report.Stale),
	}
	if report.StakedErr != nil {
		fields = append(fields, zap.NamedError("staked_error", report.StakedErr))
	}
	logger.Info("reconciliation report", fields...)
	for _, rec := range report.RecordErrors {
		logger.Warn("record dropped",
			zap.String("kind", rec.Kind),
			zap.String("token_id", rec.TokenID),
			zap.String("stage", rec.Stage),
			zap.String("error", rec.Error),
		)
	}
}

type cacheLine struct {
	Kind     string      `json:"kind"`
	Owner    string      `json:"owner"`
	Position interface{} `json:"position"`
}

func printCache(session *position.Session) error {
	enc := json.NewEncoder(os.Stdout)
	owner := session.Owner()
	for _, pos := range session.Cache().Positions() {
		if err := enc.Encode(cacheLine{Kind: "position", Owner: owner.Hex(), Position: pos}); err != nil {
			return err
		}
	}
	for _, pos := range session.Cache().StakedPositions() {
		if err := enc.Encode(cacheLine{Kind: "staked", Owner: owner.Hex(), Position: pos}); err != nil {
			return err
		}
	}
	totals := session.Totals()
	return enc.Encode(map[string]string{
		"kind":           "staked_totals",
		"owner":          owner.Hex(),
		"staked_total_a": totals.StakedA.String(),
		"staked_total_b": totals.StakedB.String(),
	})
}

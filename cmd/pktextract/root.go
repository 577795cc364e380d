package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	pkterrors "github.com/frozenpine/pktextract/errors"
	"github.com/frozenpine/pktextract/extract"
	"github.com/frozenpine/pktextract/internal/config"
	"github.com/frozenpine/pktextract/internal/log"
)

const (
	exitOK    = 0
	exitFail  = 1
	exitUsage = 2
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pktextract <input> <output>",
		Short: "Extract tcp payloads from a raw ipv4/tcp record file",
		Long: `pktextract walks a file of back to back ipv4/tcp records (no pcap or
ethernet framing), skips ip and tcp options and writes the payload of every
record, in order and without framing, to the output file.

The output file is created if absent and truncated if present.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 2 {
				return pkterrors.NewStageError(
					pkterrors.StageUsage, -1,
					errors.Wrapf(pkterrors.ErrUsage, "expected 2 arguments, got %d", len(args)),
				)
			}

			return nil
		},
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE:          runExtract,
	}

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return errors.Wrap(pkterrors.ErrUsage, err.Error())
	})

	config.RegisterFlags(cmd.Flags())

	return cmd
}

func runExtract(cmd *cobra.Command, args []string) error {
	v, err := config.New(cmd.Flags())
	if err != nil {
		return pkterrors.NewStageError(pkterrors.StageConfig, -1, err)
	}

	cfg, err := config.Load(v)
	if err != nil {
		return pkterrors.NewStageError(pkterrors.StageConfig, -1, err)
	}

	if err := log.Init(cfg.Log, cmd.ErrOrStderr()); err != nil {
		return pkterrors.NewStageError(pkterrors.StageConfig, -1, err)
	}
	defer log.Close()

	logger := log.GetLogger()

	stats, err := extractFile(cmd.Context(), cfg, args[0], args[1], logger)
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"input":   args[0],
		"output":  args[1],
		"records": stats.Records,
		"bytes":   stats.PayloadBytes,
		"clamped": stats.Clamped,
	}).Info("Payload extraction completed")

	return nil
}

// extractFile opens both files, runs the extractor and releases both files
// on every return path.
func extractFile(
	ctx context.Context, cfg *config.Config,
	input, output string, logger *logrus.Logger,
) (stats extract.Stats, err error) {
	fin, err := os.Open(input)
	if err != nil {
		return stats, pkterrors.NewStageError(pkterrors.StageInputOpen, -1, err)
	}
	defer fin.Close()

	info, err := fin.Stat()
	if err != nil {
		return stats, pkterrors.NewStageError(pkterrors.StageInputOpen, -1, err)
	}

	fout, err := os.OpenFile(output, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return stats, pkterrors.NewStageError(pkterrors.StageOutputOpen, -1, err)
	}
	defer func() {
		if closeErr := fout.Close(); closeErr != nil && err == nil {
			err = pkterrors.NewStageError(pkterrors.StageFlush, -1, closeErr)
		}
	}()

	opts := []extract.Option{
		extract.WithUnderflowPolicy(cfg.Underflow),
		extract.WithLogger(logger),
	}

	if logger.IsLevelEnabled(logrus.DebugLevel) {
		opts = append(opts, extract.WithRecordHandler(func(rec *extract.Record) {
			logger.WithFields(logrus.Fields{
				"index":   rec.Index,
				"offset":  rec.Offset,
				"src":     rec.Session.SrcAddr(),
				"dst":     rec.Session.DstAddr(),
				"ihl":     rec.IP.IHL(),
				"doff":    rec.TCP.DataOffset(),
				"payload": rec.PayloadLen,
			}).Debug("Record extracted")
		}))
	}

	src := io.NewSectionReader(fin, 0, info.Size())
	dst := bufio.NewWriter(fout)

	return extract.New(src, dst, opts...).Run(ctx)
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return execute(ctx, newRootCmd(), os.Args[1:], os.Stderr)
}

func execute(ctx context.Context, cmd *cobra.Command, args []string, stderr io.Writer) int {
	if args == nil {
		args = []string{}
	}

	cmd.SetArgs(args)
	cmd.SetOut(stderr)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)

	switch pkterrors.Class(err) {
	case pkterrors.ClassNone:
		return exitOK
	case pkterrors.ClassUsage:
		var stageErr *pkterrors.StageError
		if errors.As(err, &stageErr) && stageErr.Stage == pkterrors.StageConfig {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		fmt.Fprintln(stderr, cmd.UsageString())
		return exitUsage
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFail
	}
}

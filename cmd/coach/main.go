// Command coach analyzes chess games and positions and prints JSON reports.
//
//	coach analyze -pgn FILE -color white|black [-user ID] [-preset NAME] [-fen START]
//	coach position -fen FEN [-preset NAME]
//	coach weaknesses -user ID
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/park285/cheese-coach/internal/coachbuilder"
	appcfg "github.com/park285/cheese-coach/internal/config"
	"github.com/park285/cheese-coach/internal/obslog"
	"github.com/park285/cheese-coach/pkg/coachdto"
)

var errUsage = errors.New("usage: coach analyze|position|weaknesses [flags]")

func main() {
	if err := obslog.InitFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		os.Exit(1)
	}
	defer obslog.L().Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		writeJSON(os.Stdout, coachdto.ErrorResponse{Error: coachdto.FromError(err)})
		obslog.L().Error("command failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "analyze", "position", "weaknesses":
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var (
		pgnPath = fs.String("pgn", "", "PGN or move list file, - for stdin")
		fen     = fs.String("fen", "", "position to analyze, or start position of the move list")
		color   = fs.String("color", "white", "side the report is written for")
		user    = fs.String("user", "", "user id for persistence and weakness reports")
		preset  = fs.String("preset", "", "analysis preset: quick, standard or deep")
	)
	if err := fs.Parse(rest); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	cfg, err := appcfg.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if *preset != "" {
		cfg.AnalysisPreset = *preset
	}
	var opts []coachbuilder.Option
	if cmd == "weaknesses" {
		opts = append(opts, coachbuilder.WithoutEvaluator())
	}
	deps, err := coachbuilder.New(ctx, cfg, obslog.L(), opts...)
	if err != nil {
		return err
	}
	defer deps.Close()

	switch cmd {
	case "analyze":
		if *pgnPath == "" {
			return fmt.Errorf("%w: analyze needs -pgn", errUsage)
		}
		text, err := readInput(*pgnPath, stdin)
		if err != nil {
			return err
		}
		req := coachdto.AnalyzeGameRequest{PGN: text, StartFEN: *fen, UserColor: strings.ToLower(*color), UserID: *user}
		result, err := deps.Analyzer.AnalyzeGame(ctx, req.ToGameRequest(deps.Budget))
		if err != nil {
			return err
		}
		return writeJSON(stdout, result)

	case "position":
		if *fen == "" {
			return fmt.Errorf("%w: position needs -fen", errUsage)
		}
		result, err := deps.Analyzer.AnalyzePosition(ctx, *fen, deps.Budget)
		if err != nil {
			return err
		}
		return writeJSON(stdout, result)

	case "weaknesses":
		report, err := deps.Analyzer.WeaknessReportForUser(ctx, *user)
		if err != nil {
			return err
		}
		return writeJSON(stdout, coachdto.WeaknessReportResponse{UserID: *user, Weaknesses: report})
	}
	return nil
}

func readInput(path string, stdin io.Reader) (string, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(raw), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

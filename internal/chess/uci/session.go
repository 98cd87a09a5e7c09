package uci

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	defaultReadyTimeout = 4 * time.Second
	drainTimeout        = 2 * time.Second
	closeGrace          = time.Second
	lineBuffer          = 256
)

var (
	// ErrSearchTimeout means the search was stopped at its deadline. The
	// session is still usable unless it also reports Broken.
	ErrSearchTimeout = errors.New("uci search timeout")
	// ErrProtocol means the engine produced output that could not be parsed.
	ErrProtocol = errors.New("uci protocol error")
	// ErrEngineExited means the engine's output stream ended.
	ErrEngineExited = errors.New("uci engine exited")
)

type Options struct {
	Threads int
	HashMB  int
	MultiPV int
}

type Limits struct {
	Depth          int
	MoveTimeMillis int
	NodeCap        int
}

// Line is one principal variation as last reported for its multipv slot.
type Line struct {
	MultiPV   int
	Depth     int
	ScoreCP   int
	Mate      *int
	Principal []string
}

type Session struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	lines  chan string
	logger *zap.Logger

	readErr error
	mu      sync.Mutex
	search  sync.Mutex
	broken  atomic.Bool

	closeOnce sync.Once
	closeErr  error
}

// NewSession starts the engine and completes the uci/isready handshake.
// ctx bounds the handshake only; the process lives until Close.
func NewSession(ctx context.Context, binaryPath string, args []string, opt Options, logger *zap.Logger) (*Session, error) {
	if err := validateOptions(opt); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cmd := exec.Command(binaryPath, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdoutPipe.Close()
		return nil, fmt.Errorf("start engine: %w", err)
	}

	s := &Session{
		cmd:    cmd,
		stdin:  stdin,
		lines:  make(chan string, lineBuffer),
		logger: logger,
	}
	go s.readLoop(stdoutPipe)

	if err := s.initialize(ctx, opt); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

type SearchRequest struct {
	FEN    string
	Moves  []string
	Limits Limits
}

type SearchResponse struct {
	Lines    []Line
	BestMove string
}

// Search runs one go command to completion. When ctx or the derived search
// deadline expires, the engine is told to stop and its output is drained to
// bestmove before ErrSearchTimeout is returned.
func (s *Session) Search(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	s.search.Lock()
	defer s.search.Unlock()

	if s.broken.Load() {
		return SearchResponse{}, fmt.Errorf("%w: session is broken", ErrEngineExited)
	}

	goTokens, err := buildGoTokens(req.Limits)
	if err != nil {
		return SearchResponse{}, err
	}
	positionCmd := buildPositionCommand(req.FEN, req.Moves)
	if err := s.send(positionCmd); err != nil {
		return SearchResponse{}, s.writeFailed("send position", err)
	}
	goCmd := strings.Join(goTokens, " ")
	if err := s.send(goCmd + "\n"); err != nil {
		return SearchResponse{}, s.writeFailed("send go", err)
	}

	deadline := computeSearchTimeout(req.Limits)
	searchCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	lines := make(map[int]Line)
	var protoErr error
	for {
		line, err := s.readLine(searchCtx)
		if err != nil {
			if errors.Is(err, ErrEngineExited) {
				s.broken.Store(true)
				return SearchResponse{}, err
			}
			s.logger.Warn("uci search interrupted, stopping engine",
				zap.String("position", strings.TrimSpace(positionCmd)),
				zap.String("go", goCmd),
				zap.Duration("deadline", deadline),
				zap.Error(err),
			)
			if drainErr := s.stopAndDrain(); drainErr != nil {
				return SearchResponse{}, fmt.Errorf("%w: drain after stop: %v", ErrEngineExited, drainErr)
			}
			if errors.Is(err, context.DeadlineExceeded) {
				return SearchResponse{}, fmt.Errorf("%w after %s: %w", ErrSearchTimeout, deadline, err)
			}
			return SearchResponse{}, err
		}
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "info "):
			l, ok, err := parseInfo(line)
			if err != nil && protoErr == nil {
				protoErr = err
			}
			if ok {
				lines[l.MultiPV] = l
			}
		case strings.HasPrefix(line, "bestmove"):
			if protoErr != nil {
				return SearchResponse{}, protoErr
			}
			var best string
			if parts := strings.Fields(line); len(parts) >= 2 && parts[1] != "(none)" {
				best = parts[1]
			}
			return SearchResponse{Lines: collapseLines(lines), BestMove: best}, nil
		}
	}
}

// Broken reports whether the session can no longer be trusted with a search.
func (s *Session) Broken() bool { return s.broken.Load() }

func (s *Session) stopAndDrain() error {
	if err := s.send("stop\n"); err != nil {
		s.broken.Store(true)
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		line, err := s.readLine(ctx)
		if err != nil {
			s.broken.Store(true)
			return err
		}
		if strings.HasPrefix(line, "bestmove") {
			return nil
		}
	}
}

func (s *Session) writeFailed(what string, err error) error {
	s.broken.Store(true)
	return fmt.Errorf("%w: %s: %v", ErrEngineExited, what, err)
}

func buildPositionCommand(fen string, moves []string) string {
	var sb strings.Builder
	if strings.TrimSpace(fen) == "" || fen == "startpos" {
		sb.WriteString("position startpos")
	} else {
		sb.WriteString("position fen ")
		sb.WriteString(fen)
	}
	if len(moves) > 0 {
		sb.WriteString(" moves ")
		sb.WriteString(strings.Join(moves, " "))
	}
	sb.WriteString("\n")
	return sb.String()
}

func validateOptions(opt Options) error {
	if opt.HashMB <= 0 {
		return fmt.Errorf("hash size must be > 0: %d", opt.HashMB)
	}
	if opt.MultiPV <= 0 {
		return fmt.Errorf("multipv must be > 0: %d", opt.MultiPV)
	}
	if opt.Threads < 0 {
		return fmt.Errorf("threads must be >= 0: %d", opt.Threads)
	}
	return nil
}

func buildGoTokens(l Limits) ([]string, error) {
	args := []string{"go"}
	if l.Depth > 0 {
		args = append(args, "depth", strconv.Itoa(l.Depth))
	}
	if l.MoveTimeMillis > 0 {
		args = append(args, "movetime", strconv.Itoa(l.MoveTimeMillis))
	}
	if l.NodeCap > 0 {
		args = append(args, "nodes", strconv.Itoa(l.NodeCap))
	}
	if len(args) == 1 {
		return nil, fmt.Errorf("no search limits specified")
	}
	return args, nil
}

func computeSearchTimeout(l Limits) time.Duration {
	if l.MoveTimeMillis > 0 {
		return time.Duration(l.MoveTimeMillis)*time.Millisecond*2 + time.Second
	}
	if l.Depth > 0 {
		base := time.Duration(l.Depth) * 300 * time.Millisecond
		if base < 6*time.Second {
			base = 6 * time.Second
		}
		if base > 20*time.Second {
			base = 20 * time.Second
		}
		return base
	}
	return 6 * time.Second
}

// parseInfo extracts a scored principal variation from an info line. Lines
// without a score or pv, and bound-only scores, are skipped.
func parseInfo(line string) (Line, bool, error) {
	parts := strings.Fields(line)
	out := Line{MultiPV: 1}
	var (
		scored bool
		bound  bool
		pvIdx  = -1
	)

	for i := 1; i < len(parts); i++ {
		switch parts[i] {
		case "string":
			return Line{}, false, nil
		case "depth":
			if i+1 < len(parts) {
				if v, err := strconv.Atoi(parts[i+1]); err == nil {
					out.Depth = v
				}
				i++
			}
		case "multipv":
			if i+1 < len(parts) {
				if v, err := strconv.Atoi(parts[i+1]); err == nil && v > 0 {
					out.MultiPV = v
				}
				i++
			}
		case "score":
			if i+2 >= len(parts) {
				return Line{}, false, fmt.Errorf("%w: truncated score in %q", ErrProtocol, line)
			}
			kind, raw := parts[i+1], parts[i+2]
			v, err := strconv.Atoi(raw)
			if err != nil {
				return Line{}, false, fmt.Errorf("%w: score %s %q", ErrProtocol, kind, raw)
			}
			switch kind {
			case "cp":
				out.ScoreCP = v
			case "mate":
				m := v
				out.Mate = &m
			default:
				return Line{}, false, fmt.Errorf("%w: score kind %q", ErrProtocol, kind)
			}
			scored = true
			i += 2
		case "lowerbound", "upperbound":
			bound = true
		case "pv":
			pvIdx = i + 1
			i = len(parts)
		}
	}

	if !scored || bound || pvIdx == -1 || pvIdx >= len(parts) {
		return Line{}, false, nil
	}
	out.Principal = append([]string(nil), parts[pvIdx:]...)
	return out, true, nil
}

func collapseLines(m map[int]Line) []Line {
	if len(m) == 0 {
		return nil
	}
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	result := make([]Line, 0, len(keys))
	for _, k := range keys {
		result = append(result, m[k])
	}
	return result
}

func (s *Session) EnsureReady(ctx context.Context) error {
	readyCtx, cancel := context.WithTimeout(ctx, defaultReadyTimeout)
	defer cancel()

	if err := s.send("isready\n"); err != nil {
		return s.writeFailed("send isready", err)
	}
	if err := s.awaitToken(readyCtx, "readyok"); err != nil {
		return fmt.Errorf("wait readyok: %w", err)
	}
	return nil
}

func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.broken.Store(true)
		_ = s.send("quit\n")
		s.mu.Lock()
		_ = s.stdin.Close()
		s.mu.Unlock()

		done := make(chan error, 1)
		go func() { done <- s.cmd.Wait() }()
		select {
		case err := <-done:
			var exitErr *exec.ExitError
			if err != nil && !errors.As(err, &exitErr) {
				s.closeErr = err
			}
		case <-time.After(closeGrace):
			_ = s.cmd.Process.Kill()
			<-done
		}
	})
	return s.closeErr
}

func (s *Session) initialize(ctx context.Context, opt Options) error {
	initCtx, cancel := context.WithTimeout(ctx, defaultReadyTimeout)
	defer cancel()

	if err := s.send("uci\n"); err != nil {
		return fmt.Errorf("send uci: %w", err)
	}
	if err := s.awaitToken(initCtx, "uciok"); err != nil {
		return fmt.Errorf("wait uciok: %w", err)
	}

	if err := s.applyOptions(opt); err != nil {
		return err
	}

	if err := s.send("isready\n"); err != nil {
		return fmt.Errorf("send isready: %w", err)
	}
	if err := s.awaitToken(initCtx, "readyok"); err != nil {
		return fmt.Errorf("wait readyok: %w", err)
	}
	return nil
}

func (s *Session) applyOptions(opt Options) error {
	threadCount := opt.Threads
	if threadCount <= 0 {
		threadCount = 1
	}
	cmds := []string{
		fmt.Sprintf("setoption name Threads value %d\n", threadCount),
		fmt.Sprintf("setoption name Hash value %d\n", opt.HashMB),
		fmt.Sprintf("setoption name MultiPV value %d\n", opt.MultiPV),
		"setoption name UCI_LimitStrength value false\n",
	}
	for _, cmd := range cmds {
		if err := s.send(cmd); err != nil {
			return fmt.Errorf("apply options: %w", err)
		}
	}
	return nil
}

func (s *Session) send(msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.stdin, msg)
	return err
}

func (s *Session) awaitToken(ctx context.Context, token string) error {
	for {
		line, err := s.readLine(ctx)
		if err != nil {
			return err
		}
		if strings.Contains(line, token) {
			return nil
		}
	}
}

// readLoop is the only reader of the engine's stdout for the session's lifetime.
func (s *Session) readLoop(r io.Reader) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		s.lines <- strings.TrimSpace(sc.Text())
	}
	s.readErr = sc.Err()
	close(s.lines)
}

func (s *Session) readLine(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-s.lines:
		if !ok {
			if s.readErr != nil {
				return "", fmt.Errorf("%w: %v", ErrEngineExited, s.readErr)
			}
			return "", ErrEngineExited
		}
		return line, nil
	}
}

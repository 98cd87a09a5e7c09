// Package cloudeval evaluates positions through a cloud-evaluation HTTP
// endpoint that serves cached engine analyses.
package cloudeval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/cheese-coach/internal/analysis"
	"github.com/park285/cheese-coach/internal/chess/rules"
	"github.com/park285/cheese-coach/internal/domain"
)

const evalPath = "/api/cloud-eval"

type Client struct {
	baseURL string
	http    *fasthttp.Client
	logger  *zap.Logger

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.defaultTimeout = d
		}
	}
}

func WithMaxConnsPerHost(n int) Option {
	return func(c *Client) { c.http.MaxConnsPerHost = n }
}

// WithRetry sets the attempt count for 502/503/504 answers and transport errors.
func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithDial replaces the TCP dialer, for example with an in-memory listener.
func WithDial(dial func(addr string) (net.Conn, error)) Option {
	return func(c *Client) { c.http.Dial = dial }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		logger:         zap.NewNop(),
		defaultTimeout: 5 * time.Second,
		retryMax:       2,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ analysis.Evaluator = (*Client)(nil)

type cloudLine struct {
	Moves string `json:"moves"`
	CP    *int   `json:"cp"`
	Mate  *int   `json:"mate"`
}

type cloudResponse struct {
	FEN    string      `json:"fen"`
	KNodes int         `json:"knodes"`
	Depth  int         `json:"depth"`
	PVs    []cloudLine `json:"pvs"`
}

// Evaluate fetches the stored analysis of req.FEN. Only the line count of the
// budget applies; depth and move time are whatever the service has cached.
func (c *Client) Evaluate(ctx context.Context, req analysis.EvaluationRequest) (domain.Evaluation, error) {
	pos, err := rules.ParseFEN(req.FEN)
	if err != nil {
		return domain.Evaluation{}, fmt.Errorf("%w: %v", analysis.ErrInvalidInput, err)
	}

	q := url.Values{}
	q.Set("fen", pos.FEN())
	q.Set("multiPv", strconv.Itoa(req.Budget.LineCount()))

	var body cloudResponse
	if err := c.getJSON(ctx, evalPath+"?"+q.Encode(), &body); err != nil {
		c.logger.Debug("cloud eval failed", zap.String("fen", req.FEN), zap.Error(err))
		return domain.Evaluation{}, err
	}
	return toEvaluation(body, pos.Turn() == nchess.Black)
}

func toEvaluation(body cloudResponse, blackToMove bool) (domain.Evaluation, error) {
	sign := 1
	if blackToMove {
		sign = -1
	}
	lines := make([]domain.PrincipalVariation, 0, len(body.PVs))
	for _, pv := range body.PVs {
		moves := strings.Fields(pv.Moves)
		if len(moves) == 0 {
			continue
		}
		if len(moves) > domain.MaxPrincipalMoves {
			moves = moves[:domain.MaxPrincipalMoves]
		}
		line := domain.PrincipalVariation{
			FirstMove: moves[0],
			Depth:     body.Depth,
			Moves:     moves,
		}
		switch {
		case pv.Mate != nil:
			line.MateIn = domain.MateIn(sign * *pv.Mate)
		case pv.CP != nil:
			line.Centipawns = sign * *pv.CP
		default:
			return domain.Evaluation{}, fmt.Errorf("%w: line %q has no score", analysis.ErrEvaluatorProtocol, pv.Moves)
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return domain.Evaluation{}, fmt.Errorf("%w: cloud eval returned no lines", analysis.ErrEvaluatorProtocol)
	}
	return domain.Evaluation{
		Centipawns: lines[0].Centipawns,
		MateIn:     lines[0].MateIn,
		Depth:      body.Depth,
		Lines:      lines,
	}, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(c.baseURL + path)
	req.Header.Set("Accept", "application/json")

	attempts := c.retryMax
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return errors.Join(analysis.ErrEvaluatorTimeout, err)
		}
		err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx))
		if err != nil {
			lastErr = transportError(err)
			if errors.Is(lastErr, analysis.ErrEvaluatorTimeout) || attempt == attempts {
				return lastErr
			}
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		status := resp.StatusCode()
		if status < 200 || status >= 300 {
			lastErr = fmt.Errorf("%w: cloud eval status=%d body=%s", analysis.ErrEvaluatorUnavailable, status, truncate(string(resp.Body()), 256))
			if attempt == attempts || !shouldRetryStatus(status) {
				return lastErr
			}
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return fmt.Errorf("%w: decode cloud eval: %v", analysis.ErrEvaluatorProtocol, err)
		}
		return nil
	}
	return lastErr
}

func transportError(err error) error {
	if errors.Is(err, fasthttp.ErrTimeout) || errors.Is(err, fasthttp.ErrDialTimeout) {
		return errors.Join(analysis.ErrEvaluatorTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errors.Join(analysis.ErrEvaluatorTimeout, err)
	}
	return fmt.Errorf("%w: %v", analysis.ErrEvaluatorUnavailable, err)
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 4 {
		attempt = 4
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

package fetcher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Outcome is the classification of one fetch attempt.
type Outcome int

const (
	// OutcomeSuccess: HTTP 200 with a fully read body.
	OutcomeSuccess Outcome = iota
	// OutcomeConnectFailure: the connection could not be established.
	OutcomeConnectFailure
	// OutcomeConnectTimeout: the connection attempt used up the whole budget.
	OutcomeConnectTimeout
	// OutcomeReadTimeout: connected, but the response did not complete in time.
	OutcomeReadTimeout
	// OutcomeIncompleteBody: the body ended before the server said it would.
	OutcomeIncompleteBody
	// OutcomeTransportError: any other transport-level failure.
	OutcomeTransportError
	// OutcomeBadStatus: a response with a non-200 status.
	OutcomeBadStatus
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeConnectFailure:
		return "connect failure"
	case OutcomeConnectTimeout:
		return "connect timeout"
	case OutcomeReadTimeout:
		return "read timeout"
	case OutcomeIncompleteBody:
		return "incomplete read"
	case OutcomeTransportError:
		return "transport error"
	case OutcomeBadStatus:
		return "bad status"
	}
	return "unknown"
}

// Result is what one fetch attempt produced. Body is only set on success,
// StatusCode only when a response arrived at all.
type Result struct {
	Outcome    Outcome
	StatusCode int
	Body       string
}

// Fetcher retrieves Release files with a fixed end-to-end timeout and a
// static identifying User-Agent.
type Fetcher struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
	logger    *slog.Logger
}

// New creates a Fetcher. The timeout is end-to-end: it covers connecting,
// waiting, and reading the whole body. It should be generous: a Release file
// is around 13 KiB, and hitting this limit should mean
// so-slow-it's-basically-stalled throughput.
func New(timeout time.Duration, userAgent string, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		timeout:   timeout,
		userAgent: userAgent,
		logger:    logger,
	}
}

// Fetch issues a single GET to url and classifies the outcome. It never
// returns an error: every failure mode maps onto an Outcome so the caller
// can fold it into the mirror's failure transition and keep going.
func (f *Fetcher) Fetch(ctx context.Context, url string) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		f.logger.Error("building request failed",
			slog.String("url", url), slog.Any("err", err))
		return Result{Outcome: OutcomeTransportError}
	}
	req.Header.Set("User-Agent", f.userAgent)

	start := time.Now()
	res, err := f.client.Do(req)
	if err != nil {
		outcome := f.classifyRequestError(err, time.Since(start))
		f.logger.Error(outcome.String(),
			slog.String("url", url), slog.Any("err", err))
		return Result{Outcome: outcome}
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		f.logger.Warn("retrieval returned bad status",
			slog.String("url", url), slog.Int("status", res.StatusCode))
		return Result{Outcome: OutcomeBadStatus, StatusCode: res.StatusCode}
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		outcome := classifyBodyError(err)
		f.logger.Error(outcome.String(),
			slog.String("url", url), slog.Any("err", err))
		return Result{Outcome: outcome, StatusCode: res.StatusCode}
	}

	f.logger.Info("successfully retrieved release file", slog.String("url", url))
	return Result{Outcome: OutcomeSuccess, StatusCode: res.StatusCode, Body: string(body)}
}

// classifyRequestError sorts a client.Do error into the connect/read/other
// buckets. Dial errors are connect problems; a dial that consumed the whole
// budget is a connect timeout rather than a plain refusal.
func (f *Fetcher) classifyRequestError(err error, elapsed time.Duration) Outcome {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		if opErr.Timeout() || elapsed >= f.timeout {
			return OutcomeConnectTimeout
		}
		return OutcomeConnectFailure
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return OutcomeReadTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return OutcomeReadTimeout
	}
	return OutcomeTransportError
}

// classifyBodyError sorts an error reading an already-started body.
func classifyBodyError(err error) Outcome {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return OutcomeReadTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return OutcomeReadTimeout
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return OutcomeIncompleteBody
	}
	return OutcomeIncompleteBody
}

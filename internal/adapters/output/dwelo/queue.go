package dwelo

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"time"
)

type request struct {
	method string
	path   string
	query  url.Values
	body   []byte
}

type response struct {
	status int
	body   []byte
}

type result struct {
	resp response
	err  error
}

type job struct {
	ctx  context.Context
	req  request
	done chan result
}

// Queue funnels every vendor call through one worker. Calls run strictly one
// at a time in FIFO order with a fixed pause after each one, so the Dwelo
// backend never sees more than one request per delay.
type Queue struct {
	do     func(context.Context, request) (response, error)
	delay  time.Duration
	retry  RetryConfig
	logger *slog.Logger

	jobs     chan *job
	stop     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

func NewQueue(do func(context.Context, request) (response, error), delay time.Duration, retry RetryConfig, logger *slog.Logger) *Queue {
	q := &Queue{
		do:      do,
		delay:   delay,
		retry:   retry,
		logger:  logger,
		jobs:    make(chan *job, 256),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go q.run()
	return q
}

// Enqueue waits for req to be processed. If ctx ends first the request still
// keeps its place in line but its result is dropped.
func (q *Queue) Enqueue(ctx context.Context, req request) (response, error) {
	select {
	case <-q.stop:
		return response{}, ErrQueueClosed
	default:
	}

	j := &job{ctx: ctx, req: req, done: make(chan result, 1)}
	select {
	case <-q.stop:
		return response{}, ErrQueueClosed
	case <-ctx.Done():
		return response{}, ctx.Err()
	case q.jobs <- j:
	}

	select {
	case r := <-j.done:
		return r.resp, r.err
	case <-ctx.Done():
		return response{}, ctx.Err()
	case <-q.stopped:
		// The worker may have answered just before exiting.
		select {
		case r := <-j.done:
			return r.resp, r.err
		default:
			return response{}, ErrQueueClosed
		}
	}
}

// Close stops the worker and fails everything still waiting.
func (q *Queue) Close() {
	q.stopOnce.Do(func() { close(q.stop) })
	<-q.stopped
}

func (q *Queue) run() {
	defer close(q.stopped)
	for {
		select {
		case <-q.stop:
			q.drain()
			return
		case j := <-q.jobs:
			if err := j.ctx.Err(); err != nil {
				j.done <- result{err: err}
				continue
			}
			resp, err := q.process(j)
			j.done <- result{resp: resp, err: err}

			if !q.pause() {
				q.drain()
				return
			}
		}
	}
}

func (q *Queue) process(j *job) (response, error) {
	var resp response
	err := withRetry(j.ctx, q.retry, func(attempt int) error {
		r, err := q.do(j.ctx, j.req)
		if err != nil {
			return err
		}
		resp = r
		if err := checkStatus(j.req.method, j.req.path, r.status, r.body); err != nil {
			q.logger.Warn("dwelo request failed",
				"method", j.req.method, "path", j.req.path, "status", r.status, "attempt", attempt)
			return err
		}
		return nil
	})
	return resp, err
}

func (q *Queue) pause() bool {
	if q.delay <= 0 {
		return true
	}
	t := time.NewTimer(q.delay)
	defer t.Stop()
	select {
	case <-q.stop:
		return false
	case <-t.C:
		return true
	}
}

func (q *Queue) drain() {
	for {
		select {
		case j := <-q.jobs:
			j.done <- result{err: ErrQueueClosed}
		default:
			return
		}
	}
}

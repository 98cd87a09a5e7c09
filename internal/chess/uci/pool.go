package uci

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"sync"

	"go.uber.org/zap"
)

type PoolConfig struct {
	BinaryPath string
	// Args are passed to every engine process.
	Args              []string
	PerBucketCapacity int
	Logger            *zap.Logger
}

// Pool keeps idle sessions per option set. A session serves one search at a time.
type Pool struct {
	binaryPath        string
	args              []string
	perBucketCapacity int
	logger            *zap.Logger

	mu       sync.Mutex
	buckets  map[string]*sessionBucket
	sessions map[*Session]*sessionBucket
}

func NewPool(cfg PoolConfig) (*Pool, error) {
	if cfg.BinaryPath == "" {
		return nil, fmt.Errorf("binary path required")
	}
	path, err := exec.LookPath(cfg.BinaryPath)
	if err != nil {
		return nil, fmt.Errorf("engine binary check: %w", err)
	}

	capacity := cfg.PerBucketCapacity
	if capacity <= 0 {
		capacity = defaultPerBucketCapacity()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Pool{
		binaryPath:        path,
		args:              append([]string(nil), cfg.Args...),
		perBucketCapacity: capacity,
		logger:            logger,
		buckets:           make(map[string]*sessionBucket),
		sessions:          make(map[*Session]*sessionBucket),
	}
	return p, nil
}

func (p *Pool) Acquire(ctx context.Context, opt Options) (*Session, error) {
	bucket := p.getBucket(opt)

	for {
		select {
		case session := <-bucket.idle:
			if s, ok := p.revive(ctx, session, bucket); ok {
				return s, nil
			}
			continue
		default:
		}

		session, err := bucket.create(ctx)
		if err == nil {
			p.track(session, bucket)
			return session, nil
		}
		if !errors.Is(err, errBucketAtCapacity) {
			return nil, err
		}

		select {
		case session := <-bucket.idle:
			if s, ok := p.revive(ctx, session, bucket); ok {
				return s, nil
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (p *Pool) revive(ctx context.Context, session *Session, bucket *sessionBucket) (*Session, bool) {
	if session == nil {
		return nil, false
	}
	if session.Broken() {
		bucket.discard(session)
		return nil, false
	}
	if err := session.EnsureReady(ctx); err != nil {
		p.logger.Warn("idle uci session not ready, discarding", zap.String("bucket", bucket.key), zap.Error(err))
		bucket.discard(session)
		return nil, false
	}
	p.track(session, bucket)
	return session, true
}

// Release returns a session to its bucket. It is closed instead when err is
// non-nil or the session reports Broken.
func (p *Pool) Release(session *Session, err error) {
	if session == nil {
		return
	}

	p.mu.Lock()
	bucket, ok := p.sessions[session]
	if !ok {
		p.mu.Unlock()
		_ = session.Close()
		return
	}
	delete(p.sessions, session)
	p.mu.Unlock()

	if err != nil || session.Broken() {
		bucket.discard(session)
		return
	}
	if !bucket.put(session) {
		bucket.discard(session)
	}
}

func (p *Pool) Close() error {
	p.mu.Lock()
	buckets := make([]*sessionBucket, 0, len(p.buckets))
	for _, b := range p.buckets {
		buckets = append(buckets, b)
	}
	p.sessions = make(map[*Session]*sessionBucket)
	p.mu.Unlock()

	var errs []error
	for _, bucket := range buckets {
		for {
			select {
			case session := <-bucket.idle:
				if session == nil {
					continue
				}
				if err := session.Close(); err != nil {
					errs = append(errs, err)
				}
				bucket.decrement()
			default:
				goto nextBucket
			}
		}
	nextBucket:
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func (p *Pool) track(session *Session, bucket *sessionBucket) {
	p.mu.Lock()
	p.sessions[session] = bucket
	p.mu.Unlock()
}

func (p *Pool) getBucket(opt Options) *sessionBucket {
	key := optionsKey(opt)
	p.mu.Lock()
	bucket, ok := p.buckets[key]
	if !ok {
		bucket = newSessionBucket(p, opt, p.perBucketCapacity)
		p.buckets[key] = bucket
	}
	p.mu.Unlock()
	return bucket
}

type sessionBucket struct {
	key      string
	opt      Options
	capacity int
	pool     *Pool

	mu    sync.Mutex
	total int
	idle  chan *Session
}

var errBucketAtCapacity = errors.New("session bucket at capacity")

func newSessionBucket(p *Pool, opt Options, capacity int) *sessionBucket {
	if capacity <= 0 {
		capacity = 1
	}
	return &sessionBucket{
		key:      optionsKey(opt),
		opt:      opt,
		capacity: capacity,
		pool:     p,
		idle:     make(chan *Session, capacity),
	}
}

func (b *sessionBucket) create(ctx context.Context) (*Session, error) {
	b.mu.Lock()
	if b.total >= b.capacity {
		b.mu.Unlock()
		return nil, errBucketAtCapacity
	}
	b.total++
	b.mu.Unlock()

	session, err := NewSession(ctx, b.pool.binaryPath, b.pool.args, b.opt, b.pool.logger)
	if err != nil {
		b.decrement()
		return nil, err
	}
	b.pool.logger.Debug("uci session started", zap.String("bucket", b.key))
	return session, nil
}

func (b *sessionBucket) put(session *Session) bool {
	select {
	case b.idle <- session:
		return true
	default:
		return false
	}
}

func (b *sessionBucket) discard(session *Session) {
	if session != nil {
		_ = session.Close()
	}
	b.decrement()
}

func (b *sessionBucket) decrement() {
	b.mu.Lock()
	if b.total > 0 {
		b.total--
	}
	b.mu.Unlock()
}

// Stats reports open and idle sessions across all buckets.
func (p *Pool) Stats() (open, idle int) {
	p.mu.Lock()
	buckets := make([]*sessionBucket, 0, len(p.buckets))
	for _, b := range p.buckets {
		buckets = append(buckets, b)
	}
	p.mu.Unlock()
	for _, b := range buckets {
		b.mu.Lock()
		open += b.total
		b.mu.Unlock()
		idle += len(b.idle)
	}
	return open, idle
}

func optionsKey(opt Options) string {
	return fmt.Sprintf("thr=%d|hash=%d|multipv=%d", opt.Threads, opt.HashMB, opt.MultiPV)
}

func defaultPerBucketCapacity() int {
	cpu := runtime.NumCPU()
	if cpu < 2 {
		return 2
	}
	if cpu > 4 {
		return 4
	}
	return cpu
}

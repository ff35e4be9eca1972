package xcron

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
)

var (
	// ErrNilJob 表示任务为 nil。
	ErrNilJob = errors.New("xcron: job cannot be nil")
	// ErrJobPanic 表示任务执行时发生 panic。
	ErrJobPanic = errors.New("xcron: job panicked")
	// ErrInvalidSpec 表示 cron 表达式无法解析。
	ErrInvalidSpec = errors.New("xcron: invalid spec")
)

// Scheduler 基于 robfig/cron/v3 的调度器。
type Scheduler struct {
	cron  *cron.Cron
	opts  *schedulerOptions
	stats *Stats

	ctx    context.Context    // 所有任务执行的基础上下文，Stop 时取消
	cancel context.CancelFunc
	wg     sync.WaitGroup // 追踪 WithImmediate 启动的立即执行任务
}

// New 创建新的调度器。
//
// 不带参数时使用本地时区、分钟级精度、默认日志。
func New(opts ...SchedulerOption) *Scheduler {
	options := defaultSchedulerOptions()
	for _, opt := range opts {
		opt(options)
	}

	c := cron.New(
		cron.WithLocation(options.location),
		cron.WithParser(options.parser),
		cron.WithLogger(cronLogger{logger: options.logger}),
	)
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:   c,
		opts:   options,
		stats:  newStats(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Validate 使用调度器的解析器检查表达式。
func (s *Scheduler) Validate(spec string) error {
	if _, err := s.opts.parser.Parse(spec); err != nil {
		return fmt.Errorf("%w: %q: %w", ErrInvalidSpec, spec, err)
	}
	return nil
}

// AddFunc 添加函数任务
func (s *Scheduler) AddFunc(spec string, cmd func(ctx context.Context) error, opts ...JobOption) (JobID, error) {
	if cmd == nil {
		return 0, ErrNilJob
	}
	return s.AddJob(spec, JobFunc(cmd), opts...)
}

// AddJob 添加 Job 接口任务
func (s *Scheduler) AddJob(spec string, job Job, opts ...JobOption) (JobID, error) {
	if job == nil {
		return 0, ErrNilJob
	}

	jobOpts := defaultJobOptions()
	for _, opt := range opts {
		opt(jobOpts)
	}

	w := &jobWrapper{
		job:      job,
		opts:     jobOpts,
		logger:   s.opts.logger,
		observer: s.opts.observer,
		stats:    s.stats,
		baseCtx:  s.ctx,
	}

	id, err := s.cron.AddJob(spec, w)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidSpec, spec, err)
	}

	if jobOpts.immediate {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			w.Run()
		}()
	}
	return id, nil
}

// Remove 移除任务
func (s *Scheduler) Remove(id JobID) {
	s.cron.Remove(id)
}

// Start 启动调度器（非阻塞）。
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop 停止调度并取消正在执行任务的上下文。
// 返回的 context 在所有正在执行的任务（含立即执行任务）结束后 Done。
func (s *Scheduler) Stop() context.Context {
	s.cancel()
	cronCtx := s.cron.Stop()

	done, finish := context.WithCancel(context.Background())
	go func() {
		<-cronCtx.Done()
		s.wg.Wait()
		finish()
	}()
	return done
}

// Entries 返回所有已注册的任务
func (s *Scheduler) Entries() []cron.Entry {
	return s.cron.Entries()
}

// Stats 返回执行统计
func (s *Scheduler) Stats() *Stats {
	return s.stats
}

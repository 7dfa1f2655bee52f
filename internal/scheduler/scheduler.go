package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LJTian/TrendingArchive/internal/collector"
	"github.com/LJTian/TrendingArchive/internal/logger"
	"github.com/robfig/cron/v3"
)

// ErrRunInProgress 上一轮采集尚未结束
var ErrRunInProgress = errors.New("ingestion run already in progress")

const (
	OutcomeFetched     = "fetched"
	OutcomeSkipped     = "skipped"
	OutcomeFailed      = "failed"
	OutcomeWriteFailed = "write_failed"
)

// Writer 持久化一批条目，整批成功或整批回滚
type Writer interface {
	SaveBatch(ctx context.Context, source string, items []collector.Item) (int, error)
}

type Options struct {
	// MinInterval 非强制运行时同一数据源两次处理的最小间隔
	MinInterval time.Duration
	Pacer       Pacer
	State       *State
	Metrics     *Metrics
	Logger      logger.Logger
	Now         func() time.Time
}

type SourceReport struct {
	Source    string
	Outcome   string
	Fetched   int
	Stored    int
	FromCache bool
	Err       error
}

type RunReport struct {
	Forced    bool
	StartedAt time.Time
	Duration  time.Duration
	Cancelled bool
	Sources   []SourceReport
}

// Count 统计某种结果的数据源个数
func (r *RunReport) Count(outcome string) int {
	n := 0
	for _, s := range r.Sources {
		if s.Outcome == outcome {
			n++
		}
	}
	return n
}

type Scheduler struct {
	cron        *cron.Cron
	registry    *collector.Registry
	writer      Writer
	state       *State
	pacer       Pacer
	metrics     *Metrics
	log         logger.Logger
	now         func() time.Time
	minInterval time.Duration

	running atomic.Bool
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

// New spec 为 cron 表达式（5 段），为空时不注册定时任务
func New(spec string, registry *collector.Registry, w Writer, opts Options) (*Scheduler, error) {
	if opts.State == nil {
		opts.State = NewState()
	}
	if opts.Pacer == nil {
		opts.Pacer = NoopPacer{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	cl := cronLogger{log: opts.Logger}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.SkipIfStillRunning(cl), cron.Recover(cl)),
	)

	s := &Scheduler{
		cron:        c,
		registry:    registry,
		writer:      w,
		state:       opts.State,
		pacer:       opts.Pacer,
		metrics:     opts.Metrics,
		log:         opts.Logger,
		now:         opts.Now,
		minInterval: opts.MinInterval,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	if spec != "" {
		if _, err := c.AddFunc(spec, s.scheduledRun); err != nil {
			return nil, fmt.Errorf("add cron job %q: %w", spec, err)
		}
	}
	return s, nil
}

// State 暴露调度状态，便于排查
func (s *Scheduler) State() *State {
	return s.state
}

// Start 启动定时任务；runOnStart 时立即强制跑一轮
func (s *Scheduler) Start(runOnStart bool) {
	s.cron.Start()
	if !runOnStart {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.RunAll(s.ctx, true); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Warn("startup ingestion run", logger.Error(err))
		}
	}()
}

// Stop 停止定时任务并等待进行中的采集退出（在数据源之间退出）
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()
}

func (s *Scheduler) scheduledRun() {
	if _, err := s.RunAll(s.ctx, false); err != nil {
		if errors.Is(err, ErrRunInProgress) {
			s.log.Info("previous ingestion run still active, skipping tick")
			return
		}
		if !errors.Is(err, context.Canceled) {
			s.log.Warn("scheduled ingestion run", logger.Error(err))
		}
	}
}

// RunAll 按注册顺序串行处理所有数据源。force 跳过时间闸门。
// 同一时刻只允许一轮，重入返回 ErrRunInProgress
func (s *Scheduler) RunAll(ctx context.Context, force bool) (*RunReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer s.running.Store(false)

	report := &RunReport{Forced: force, StartedAt: s.now()}
	s.log.Info("ingestion run started", logger.Bool("forced", force), logger.Int("sources", s.registry.Len()))

	for _, f := range s.registry.Fetchers() {
		if ctx.Err() != nil {
			report.Cancelled = true
			break
		}
		report.Sources = append(report.Sources, s.runSource(ctx, f, force))
	}

	report.Duration = s.now().Sub(report.StartedAt)
	s.metrics.runDuration.Observe(report.Duration.Seconds())
	s.log.Info("ingestion run finished",
		logger.Duration("duration", report.Duration),
		logger.Int(OutcomeFetched, report.Count(OutcomeFetched)),
		logger.Int(OutcomeSkipped, report.Count(OutcomeSkipped)),
		logger.Int(OutcomeFailed, report.Count(OutcomeFailed)),
		logger.Int(OutcomeWriteFailed, report.Count(OutcomeWriteFailed)),
		logger.Bool("cancelled", report.Cancelled),
	)
	if report.Cancelled {
		return report, ctx.Err()
	}
	return report, nil
}

func (s *Scheduler) runSource(ctx context.Context, f collector.Fetcher, force bool) SourceReport {
	name := f.Name()
	log := s.log.With(logger.String("source", name))
	rep := SourceReport{Source: name}

	if !force {
		if last, ok := s.state.LastProcessed(name); ok {
			if elapsed := s.now().Sub(last); elapsed < s.minInterval {
				log.Info("skip source, processed recently",
					logger.Duration("elapsed", elapsed),
					logger.Duration("min_interval", s.minInterval))
				rep.Outcome = OutcomeSkipped
				s.metrics.fetches.WithLabelValues(name, rep.Outcome).Inc()
				return rep
			}
		}
	}

	if err := s.pacer.Wait(ctx); err != nil {
		log.Warn("pacer wait aborted", logger.Error(err))
		rep.Outcome = OutcomeFailed
		rep.Err = err
		s.metrics.fetches.WithLabelValues(name, rep.Outcome).Inc()
		return rep
	}

	res, err := safeFetch(ctx, f)
	if err != nil {
		// 抓取异常不记录处理时间，下一轮会重试
		log.Error("fetch failed", logger.Error(err))
		rep.Outcome = OutcomeFailed
		rep.Err = err
		s.metrics.fetches.WithLabelValues(name, rep.Outcome).Inc()
		return rep
	}

	rep.Outcome = OutcomeFetched
	rep.Fetched = len(res.Items)
	rep.FromCache = res.FromCache

	if len(res.Items) > 0 {
		n, err := s.writer.SaveBatch(ctx, name, res.Items)
		if err != nil {
			log.Error("save batch failed", logger.Int("items", len(res.Items)), logger.Error(err))
			rep.Outcome = OutcomeWriteFailed
			rep.Err = err
		} else {
			rep.Stored = n
			s.metrics.stored.WithLabelValues(name).Add(float64(n))
		}
	} else {
		log.Info("source returned no items")
	}

	// 写入回滚也记为已处理，重试留给下一次闸门放行
	at := s.now()
	s.state.MarkProcessed(name, at)
	s.metrics.fetches.WithLabelValues(name, rep.Outcome).Inc()
	s.metrics.lastSuccess.WithLabelValues(name).Set(float64(at.Unix()))

	log.Info("source processed",
		logger.Int("fetched", rep.Fetched),
		logger.Int("stored", rep.Stored),
		logger.Bool("from_cache", rep.FromCache))
	return rep
}

func safeFetch(ctx context.Context, f collector.Fetcher) (res collector.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fetch %s panicked: %v", f.Name(), r)
		}
	}()
	// 入库总是取实时数据，缓存只服务 /api/live
	return f.Fetch(ctx, true), nil
}

// cronLogger 把 cron 的日志转到 zap
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append(kvFields(keysAndValues), logger.Error(err))...)
}

func kvFields(kv []interface{}) []logger.Field {
	fields := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		fields = append(fields, logger.Any(key, kv[i+1]))
	}
	return fields
}

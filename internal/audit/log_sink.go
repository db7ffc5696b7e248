package audit

import (
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const DefaultBufferSize = 1024

type record struct {
	event  string
	fields Fields
}

// LogSink writes each record as one JSON line through zap.
// Records are queued and written by a background goroutine; when the
// queue is full the record is dropped.
type LogSink struct {
	logger *zap.Logger
	queue  chan record
	onDrop func(event string)

	dropped atomic.Uint64

	mu     sync.RWMutex // guards closed against an in-flight enqueue
	closed bool
	quit   chan struct{}
	done   chan struct{}
	once   sync.Once
}

type LogSinkOption func(*LogSink)

// WithDropHandler is called (on the emitting goroutine) for each dropped record.
func WithDropHandler(fn func(event string)) LogSinkOption {
	return func(s *LogSink) { s.onDrop = fn }
}

func NewLogSink(logger *zap.Logger, bufferSize int, opts ...LogSinkOption) *LogSink {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}

	s := &LogSink{
		logger: logger,
		queue:  make(chan record, bufferSize),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.run()
	return s
}

// NewLogger builds the zap logger used for audit lines: the message key
// carries the event name and zap's own time/level keys are omitted since
// every record brings its own timestamp.
func NewLogger(ws zapcore.WriteSyncer) *zap.Logger {
	encoderConfig := zapcore.EncoderConfig{
		MessageKey: "event",
		LineEnding: zapcore.DefaultLineEnding,
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), ws, zapcore.InfoLevel)
	return zap.New(core)
}

func (s *LogSink) Emit(event string, fields Fields) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		s.drop(event)
		return
	}

	select {
	case s.queue <- record{event: event, fields: fields}:
	default:
		s.drop(event)
	}
}

// Dropped number of records lost to a full queue or a closed sink
func (s *LogSink) Dropped() uint64 {
	return s.dropped.Load()
}

// Close stops accepting records, flushes the queue and syncs the logger.
func (s *LogSink) Close() error {
	s.once.Do(func() {
		// once closed is set under the write lock no Emit can still be
		// sending, so everything queued is drained by run
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		close(s.quit)
		<-s.done
	})
	// stdout/stderr return EINVAL on Sync on most platforms
	_ = s.logger.Sync()
	return nil
}

func (s *LogSink) drop(event string) {
	s.dropped.Add(1)
	if s.onDrop != nil {
		s.onDrop(event)
	}
}

func (s *LogSink) run() {
	defer close(s.done)

	for {
		select {
		case rec := <-s.queue:
			s.write(rec)
		case <-s.quit:
			for {
				select {
				case rec := <-s.queue:
					s.write(rec)
				default:
					return
				}
			}
		}
	}
}

func (s *LogSink) write(rec record) {
	keys := make([]string, 0, len(rec.fields))
	for k := range rec.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	zfields := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		zfields = append(zfields, zap.Any(k, rec.fields[k]))
	}
	s.logger.Info(rec.event, zfields...)
}

package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/clinisight/agent-orchestrator/config"
	"go.uber.org/zap"
)

// Report is one hard-failure notification for the external error collector.
// Tags identify where the failure happened without carrying payload content.
type Report struct {
	Message   string            `json:"message"`
	Tags      map[string]string `json:"tags"`
	Timestamp time.Time         `json:"timestamp"`
}

// NewReport builds a report tagged with the standard failure dimensions.
func NewReport(message, tenantID, eventType, agentName string) *Report {
	return &Report{
		Message: message,
		Tags: map[string]string{
			"tenantId":  tenantID,
			"eventType": eventType,
			"agentName": agentName,
		},
		Timestamp: time.Now().UTC(),
	}
}

// WithErrorKind tags the report with the failure's error category. Audit
// write failures are a compliance gap and must stay individually trackable at
// the collector, so the kind is a tag rather than part of the message.
func (r *Report) WithErrorKind(kind string) *Report {
	if kind != "" {
		r.Tags["errorKind"] = kind
	}
	return r
}

// Reporter delivers hard-failure reports to an external collector. Capture is
// strictly fire-and-forget: it never blocks the caller and a collector outage
// never affects event processing.
type Reporter interface {
	Capture(report *Report)
	Stop(timeout time.Duration) error
}

// HTTPReporter ships reports to an HTTP collector endpoint through a buffered
// channel drained by background workers. When the buffer is full the report is
// dropped with a warning rather than applying backpressure.
type HTTPReporter struct {
	endpoint    string
	client      *http.Client
	logger      *zap.Logger
	reportChan  chan *Report
	workerCount int
	wg          sync.WaitGroup
	started     bool
	mu          sync.Mutex
}

// NewHTTPReporter creates a reporter and starts its workers. When the
// configured endpoint is empty a NoopReporter is returned instead, so callers
// never need to special-case a disabled collector.
func NewHTTPReporter(cfg config.TelemetryConfig, logger *zap.Logger) Reporter {
	if cfg.Endpoint == "" {
		logger.Info("telemetry endpoint not configured, reporting disabled")
		return &NoopReporter{}
	}

	r := &HTTPReporter{
		endpoint:    cfg.Endpoint,
		client:      &http.Client{Timeout: cfg.Timeout},
		logger:      logger,
		reportChan:  make(chan *Report, cfg.BufferSize),
		workerCount: cfg.WorkerCount,
	}
	r.start()
	return r
}

func (r *HTTPReporter) start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := 0; i < r.workerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
	r.started = true
	r.logger.Info("started telemetry reporter",
		zap.Int("worker_count", r.workerCount),
		zap.Int("buffer_size", cap(r.reportChan)))
}

// Capture queues a report for delivery. Non-blocking: when the buffer is full
// the report is dropped and logged, never delaying the caller.
func (r *HTTPReporter) Capture(report *Report) {
	// The send stays under the lock so Stop cannot close the channel between
	// the started check and the send. The send itself never blocks.
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return
	}

	select {
	case r.reportChan <- report:
	default:
		r.logger.Warn("telemetry buffer full, dropping report",
			zap.String("message", report.Message),
			zap.Any("tags", report.Tags))
	}
}

// Stop drains pending reports and stops the workers. Returns an error when the
// drain does not finish within the timeout.
func (r *HTTPReporter) Stop(timeout time.Duration) error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return nil
	}
	r.started = false
	r.mu.Unlock()

	r.logger.Info("stopping telemetry reporter", zap.Int("pending_reports", len(r.reportChan)))
	close(r.reportChan)

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("telemetry reporter stop timeout after %v", timeout)
	}
}

func (r *HTTPReporter) worker(id int) {
	defer r.wg.Done()

	for report := range r.reportChan {
		if err := r.deliver(report); err != nil {
			// Delivery failures are logged and swallowed. Telemetry is
			// best-effort and must never feed back into event processing.
			r.logger.Warn("telemetry delivery failed",
				zap.Int("worker_id", id),
				zap.Error(err),
				zap.String("message", report.Message))
		}
	}
}

func (r *HTTPReporter) deliver(report *Report) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.client.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build report request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver report: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("collector rejected report: status %d", resp.StatusCode)
	}
	return nil
}

// NoopReporter discards all reports. Used when no collector is configured.
type NoopReporter struct{}

func (n *NoopReporter) Capture(*Report) {}

func (n *NoopReporter) Stop(time.Duration) error { return nil }

package observer

import (
	"context"
	"sync"
	"time"

	"go-doc-verifier/pkg/models"

	"github.com/sirupsen/logrus"
)

// VerificationEvent represents a step in the life of one verification request
type VerificationEvent struct {
	EventType      EventType              `json:"event_type"`
	Timestamp      time.Time              `json:"timestamp"`
	VerificationID string                 `json:"verification_id"`
	DocumentURL    string                 `json:"document_url,omitempty"`
	ProcessingTime time.Duration          `json:"processing_time"`
	Success        bool                   `json:"success"`
	OverallStatus  models.Status          `json:"overall_status,omitempty"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of verification event
type EventType string

const (
	// VerificationStarted when both inputs have been received
	VerificationStarted EventType = "verification_started"
	// VerificationCompleted when the aggregator produced a result
	VerificationCompleted EventType = "verification_completed"
	// VerificationFailed when the request ended without a result
	VerificationFailed EventType = "verification_failed"
	// DocumentFetched when a remote document is downloaded
	DocumentFetched EventType = "document_fetched"
	// DocumentFetchFailed when a remote document could not be downloaded
	DocumentFetchFailed EventType = "document_fetch_failed"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event VerificationEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event VerificationEvent)
}

// LoggingObserver logs verification events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles verification events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event VerificationEvent) {
	fields := logrus.Fields{
		"event_type":      event.EventType,
		"verification_id": event.VerificationID,
		"processing_time": event.ProcessingTime,
		"success":         event.Success,
	}
	if event.DocumentURL != "" {
		fields["document_url"] = event.DocumentURL
	}
	if event.OverallStatus != "" {
		fields["overall_status"] = event.OverallStatus
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := o.logger.WithFields(fields)
	switch event.EventType {
	case VerificationStarted:
		entry.Info("Document verification started")
	case VerificationCompleted:
		entry.Info("Document verification completed")
	case VerificationFailed:
		entry.Error("Document verification failed")
	case DocumentFetched:
		entry.Debug("Document fetched successfully")
	case DocumentFetchFailed:
		entry.Error("Document fetch failed")
	default:
		entry.Info("Verification event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// Metrics is a point-in-time copy of the collected counters
type Metrics struct {
	TotalVerifications  int64   `json:"total_verifications"`
	Completed           int64   `json:"completed_verifications"`
	Failed              int64   `json:"failed_verifications"`
	Authentic           int64   `json:"authentic_documents"`
	Tampered            int64   `json:"tampered_documents"`
	DocumentFetchErrors int64   `json:"document_fetch_errors"`
	AvgProcessingSec    float64 `json:"avg_processing_time_sec"`
}

// MetricsObserver collects metrics from verification events
type MetricsObserver struct {
	mu                  sync.RWMutex
	totalVerifications  int64
	completed           int64
	failed              int64
	authentic           int64
	tampered            int64
	fetchErrors         int64
	totalProcessingTime time.Duration
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{}
}

// OnEvent handles verification events by collecting metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event VerificationEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case VerificationStarted:
		o.totalVerifications++
	case VerificationCompleted:
		o.completed++
		o.totalProcessingTime += event.ProcessingTime
		switch event.OverallStatus {
		case models.StatusAuthentic:
			o.authentic++
		case models.StatusTampered:
			o.tampered++
		}
	case VerificationFailed:
		o.failed++
	case DocumentFetchFailed:
		o.fetchErrors++
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// GetMetrics returns current metrics
func (o *MetricsObserver) GetMetrics() Metrics {
	o.mu.RLock()
	defer o.mu.RUnlock()

	avg := 0.0
	if o.completed > 0 {
		avg = (o.totalProcessingTime / time.Duration(o.completed)).Seconds()
	}

	return Metrics{
		TotalVerifications:  o.totalVerifications,
		Completed:           o.completed,
		Failed:              o.failed,
		Authentic:           o.authentic,
		Tampered:            o.tampered,
		DocumentFetchErrors: o.fetchErrors,
		AvgProcessingSec:    avg,
	}
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
	inflight  sync.WaitGroup
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers notifies all observers of an event without blocking the caller
func (p *EventPublisher) NotifyObservers(ctx context.Context, event VerificationEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, observer := range observers {
		p.inflight.Add(1)
		go func(obs Observer) {
			defer p.inflight.Done()
			defer func() {
				if r := recover(); r != nil {
					logrus.WithField("observer", obs.GetObserverName()).
						WithField("panic", r).
						Error("Observer panicked while handling event")
				}
			}()
			obs.OnEvent(ctx, event)
		}(observer)
	}
}

// Wait blocks until every notification sent so far has been handled
func (p *EventPublisher) Wait() {
	p.inflight.Wait()
}

package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"dealdesk/pkg/logger"
	"dealdesk/pkg/models"
	"dealdesk/pkg/negotiation"
	"dealdesk/pkg/store"
)

var (
	jobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dealdesk_analysis_jobs_total",
		Help: "Analysis jobs processed, labelled by outcome.",
	}, []string{"outcome"})
	jobsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dealdesk_analysis_jobs_dropped_total",
		Help: "Analysis jobs rejected because the queue was full.",
	})
	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dealdesk_analysis_queue_depth",
		Help: "Current number of queued analysis jobs.",
	})
)

// pending tracks in-flight jobs per negotiation so the API can report
// whether analysis is still running for a conversation.
var (
	pendingMu sync.Mutex
	pending   = map[string]int{}
)

func pendingAdd(negID string, delta int) {
	pendingMu.Lock()
	defer pendingMu.Unlock()
	n := pending[negID] + delta
	if n <= 0 {
		delete(pending, negID)
		return
	}
	pending[negID] = n
}

// Pending reports whether any analysis job for the negotiation is
// queued or being processed.
func Pending(negID string) bool {
	pendingMu.Lock()
	defer pendingMu.Unlock()
	return pending[negID] > 0
}

// scoreTimeout bounds one scorer call; a hung upstream must not stall
// the worker loop.
var scoreTimeout = 30 * time.Second

// RunWorker consumes jobs from the queue until stop is closed or the
// queue is closed. Item.Done() is guaranteed even when processing
// fails.
func RunWorker(q *Queue, s Scorer, stop <-chan struct{}) {
	for {
		select {
		case it, ok := <-q.Out():
			if !ok {
				return
			}
			func(it *Item) {
				defer it.Done()
				defer pendingAdd(it.Job.Negotiation, -1)
				defer queueDepth.Set(float64(q.Len()))
				if err := process(it.Job, s); err != nil {
					jobsProcessed.WithLabelValues("error").Inc()
					logger.Warn("analysis_job_failed", "negotiation", it.Job.Negotiation, "message", it.Job.MessageID, "error", err)
					return
				}
				jobsProcessed.WithLabelValues("ok").Inc()
			}(it)
		case <-stop:
			return
		}
	}
}

// contextScorer is implemented by scorers that can use conversation
// history in their prompt.
type contextScorer interface {
	ScoreInContext(ctx context.Context, negID, text string) (*Result, error)
}

func process(job *Job, s Scorer) error {
	ctx, cancel := context.WithTimeout(context.Background(), scoreTimeout)
	defer cancel()

	var res *Result
	var err error
	if cs, ok := s.(contextScorer); ok {
		res, err = cs.ScoreInContext(ctx, job.Negotiation, string(job.Body))
	} else {
		res, err = s.Score(ctx, string(job.Body))
	}
	if err != nil {
		return fmt.Errorf("score: %w", err)
	}

	if err := store.AttachSentiment(job.MessageID, res.Sentiment); err != nil {
		// a concurrent retry may have landed first; not a failure
		if errors.Is(err, store.ErrSentimentSet) {
			logger.Debug("sentiment_already_set", "message", job.MessageID)
		} else {
			return fmt.Errorf("attach sentiment: %w", err)
		}
	}

	if !job.AIEnabled || res.Suggestion == "" {
		return nil
	}
	err = store.AppendMessage(&models.ConversationMessage{
		Negotiation: job.Negotiation,
		Sender:      "ai-assistant",
		Body:        res.Suggestion,
		Kind:        models.KindAISuggestion,
	})
	if err != nil {
		// the negotiation may have closed while the job was queued;
		// suggestions for closed negotiations are simply dropped
		if errors.Is(err, negotiation.ErrNotActive) {
			logger.Debug("suggestion_dropped_closed", "negotiation", job.Negotiation)
			return nil
		}
		return fmt.Errorf("append suggestion: %w", err)
	}
	logger.Info("suggestion_appended", "negotiation", job.Negotiation, "source_message", job.MessageID)
	return nil
}

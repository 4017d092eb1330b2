package store

import (
	"bytes"

	"github.com/cockroachdb/pebble"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	negotiationsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dealdesk_negotiations_created_total",
		Help: "Number of negotiations created.",
	})
	negotiationTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dealdesk_negotiation_transitions_total",
		Help: "Number of negotiation status transitions, by target status.",
	}, []string{"status"})
	messagesAppended = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dealdesk_messages_appended_total",
		Help: "Number of conversation messages appended, by kind.",
	}, []string{"kind"})
	sentimentAttached = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dealdesk_sentiment_attached_total",
		Help: "Number of sentiment scores attached to messages.",
	})
	contractsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dealdesk_contracts_created_total",
		Help: "Number of contracts created.",
	})
	contractTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dealdesk_contract_transitions_total",
		Help: "Number of contract status transitions, by target status.",
	}, []string{"status"})
	signaturesRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dealdesk_signatures_recorded_total",
		Help: "Number of collaborator signatures recorded.",
	})
)

// Stats is a coarse record count snapshot used by the admin endpoints.
type Stats struct {
	Negotiations int `json:"negotiations"`
	Messages     int `json:"messages"`
	Contracts    int `json:"contracts"`
	Templates    int `json:"templates"`
}

// CountStats walks the keyspace and counts records per family. It is a
// full scan; admin-only usage.
func CountStats() (Stats, error) {
	var s Stats
	if db == nil {
		return s, errNotOpen
	}
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return s, err
	}
	defer iter.Close()
	for iter.First(); iter.Valid(); iter.Next() {
		k := iter.Key()
		switch {
		case bytes.HasPrefix(k, []byte("negotiation:")):
			if bytes.HasSuffix(k, []byte(":meta")) {
				s.Negotiations++
			} else if bytes.Contains(k, []byte(":msg:")) {
				s.Messages++
			}
		case bytes.HasPrefix(k, []byte("contract:")):
			if bytes.HasSuffix(k, []byte(":meta")) {
				s.Contracts++
			}
		case bytes.HasPrefix(k, []byte("template:")):
			s.Templates++
		}
	}
	return s, iter.Error()
}

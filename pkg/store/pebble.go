package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	"dealdesk/pkg/logger"
	"dealdesk/pkg/models"
	"dealdesk/pkg/negotiation"
	"dealdesk/pkg/utils"
)

var (
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrSentimentSet is returned when a sentiment attach is attempted
	// on a message that already carries a score. First write wins.
	ErrSentimentSet = errors.New("sentiment already set")
)

var db *pebble.DB

var dbPath string

// seq reduces key collisions when multiple messages share the same
// nanosecond timestamp.
var seq uint64

// appendMu serializes the status check with the message/transition
// write so a transition to a terminal state cannot interleave between
// "negotiation is active" and the append landing in the store.
var appendMu sync.Mutex

// Open opens (or creates) a Pebble database at the given path and keeps
// a global handle for simple usage in this package.
func Open(path string) error {
	var err error
	logger.Info("opening_store", "path", path)
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("store_open_failed", "path", path, "error", err)
		return err
	}
	dbPath = path
	logger.Info("store_opened", "path", path)
	return nil
}

// Close closes the opened pebble DB if present.
func Close() error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	db = nil
	logger.Info("store_closed")
	return nil
}

// Ready reports whether the store is opened and ready.
func Ready() bool { return db != nil }

var errNotOpen = errors.New("store not opened; call store.Open first")

// CreateNegotiation persists a new negotiation record. The caller is
// expected to have validated and normalized the record already.
func CreateNegotiation(n *models.Negotiation) error {
	if db == nil {
		return errNotOpen
	}
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal negotiation: %w", err)
	}
	if err := db.Set(negMetaKey(n.ID), data, pebble.Sync); err != nil {
		logger.Error("save_negotiation_failed", "negotiation", n.ID, "error", err)
		return err
	}
	negotiationsCreated.Inc()
	logger.Info("negotiation_saved", "negotiation", n.ID, "status", string(n.Status))
	return nil
}

// GetNegotiation returns the negotiation record for the given id.
func GetNegotiation(id string) (*models.Negotiation, error) {
	if db == nil {
		return nil, errNotOpen
	}
	v, closer, err := db.Get(negMetaKey(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer closer.Close()
	var n models.Negotiation
	if err := json.Unmarshal(v, &n); err != nil {
		return nil, fmt.Errorf("invalid stored negotiation: %w", err)
	}
	return &n, nil
}

// ListNegotiations returns all negotiation records.
func ListNegotiations() ([]models.Negotiation, error) {
	if db == nil {
		return nil, errNotOpen
	}
	prefix := []byte("negotiation:")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.Negotiation
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		if !bytes.HasSuffix(iter.Key(), []byte(":meta")) {
			continue
		}
		var n models.Negotiation
		if err := json.Unmarshal(iter.Value(), &n); err != nil {
			continue
		}
		out = append(out, n)
	}
	return out, iter.Error()
}

// TransitionNegotiation moves a negotiation to a terminal status and
// appends a system message recording the change. The new record is
// visible to all subsequent reads once this returns.
func TransitionNegotiation(id string, target models.NegotiationStatus, actor string) (*models.Negotiation, error) {
	if db == nil {
		return nil, errNotOpen
	}
	appendMu.Lock()
	defer appendMu.Unlock()

	n, err := GetNegotiation(id)
	if err != nil {
		return nil, err
	}
	if err := negotiation.CanTransition(n.Status, target); err != nil {
		return nil, err
	}
	now := time.Now().UTC().UnixNano()
	n.Status = target
	n.UpdatedTS = now

	data, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal negotiation: %w", err)
	}

	// system message marking the transition, written atomically with
	// the status change
	sys := models.ConversationMessage{
		ID:          utils.GenMessageID(),
		Negotiation: id,
		Sender:      actor,
		Body:        "negotiation " + string(target),
		Kind:        models.KindSystem,
		TS:          now,
	}
	msgData, err := json.Marshal(sys)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal system message: %w", err)
	}
	key, err := MsgKey(id, now, nextSeq())
	if err != nil {
		return nil, err
	}

	wb := db.NewBatch()
	_ = wb.Set(negMetaKey(id), data, nil)
	_ = wb.Set([]byte(key), msgData, nil)
	_ = wb.Set(msgIndexKey(sys.ID), []byte(key), nil)
	if err := db.Apply(wb, pebble.Sync); err != nil {
		logger.Error("transition_failed", "negotiation", id, "target", string(target), "error", err)
		return nil, err
	}
	negotiationTransitions.WithLabelValues(string(target)).Inc()
	logger.Info("negotiation_transitioned", "negotiation", id, "status", string(target), "actor", actor)
	return n, nil
}

func nextSeq() uint64 {
	seq++
	return seq
}

// AppendMessage validates the negotiation is active and durably appends
// the message, assigning id and server timestamp when missing. The
// status check and the write happen under one lock so a concurrent
// transition cannot slip between them.
func AppendMessage(m *models.ConversationMessage) error {
	if db == nil {
		return errNotOpen
	}
	appendMu.Lock()
	defer appendMu.Unlock()

	n, err := GetNegotiation(m.Negotiation)
	if err != nil {
		return err
	}
	if err := negotiation.ValidateAppend(n, m.Body, m.Kind); err != nil {
		return err
	}

	if m.ID == "" {
		m.ID = utils.GenMessageID()
	}
	m.TS = time.Now().UTC().UnixNano()

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	key, err := MsgKey(m.Negotiation, m.TS, nextSeq())
	if err != nil {
		return err
	}

	n.UpdatedTS = m.TS
	negData, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal negotiation: %w", err)
	}

	wb := db.NewBatch()
	_ = wb.Set([]byte(key), data, nil)
	_ = wb.Set(msgIndexKey(m.ID), []byte(key), nil)
	_ = wb.Set(negMetaKey(n.ID), negData, nil)
	if err := db.Apply(wb, pebble.Sync); err != nil {
		logger.Error("append_message_failed", "negotiation", m.Negotiation, "key", key, "error", err)
		return err
	}
	messagesAppended.WithLabelValues(string(m.Kind)).Inc()
	logger.Info("message_appended", "negotiation", m.Negotiation, "id", m.ID, "kind", string(m.Kind))
	return nil
}

// ListMessages returns messages for a negotiation in insertion order.
// after is an exclusive message-id cursor; limit, when positive, keeps
// only the last limit entries of the selected window.
func ListMessages(negID string, limit int, after string) ([]models.ConversationMessage, error) {
	if db == nil {
		return nil, errNotOpen
	}
	if _, err := GetNegotiation(negID); err != nil {
		return nil, err
	}
	prefix := negMsgPrefix(negID)
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	start := prefix
	if after != "" {
		pk, err := messagePrimaryKey(after)
		if err != nil {
			// a stale cursor must not silently replay the whole log
			return nil, err
		}
		// seek past the cursor message
		start = append(append([]byte(nil), pk...), 0x00)
	}

	var out []models.ConversationMessage
	for iter.SeekGE(start); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var m models.ConversationMessage
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			logger.Error("list_messages_invalid_json", "negotiation", negID, "key", string(iter.Key()), "error", err)
			continue
		}
		out = append(out, m)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	if limit > 0 && limit < len(out) {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func messagePrimaryKey(msgID string) ([]byte, error) {
	v, closer, err := db.Get(msgIndexKey(msgID))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer closer.Close()
	return append([]byte(nil), v...), nil
}

// GetMessage returns a single message by id.
func GetMessage(msgID string) (*models.ConversationMessage, error) {
	if db == nil {
		return nil, errNotOpen
	}
	pk, err := messagePrimaryKey(msgID)
	if err != nil {
		return nil, err
	}
	v, closer, err := db.Get(pk)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer closer.Close()
	var m models.ConversationMessage
	if err := json.Unmarshal(v, &m); err != nil {
		return nil, fmt.Errorf("invalid stored message: %w", err)
	}
	return &m, nil
}

// AttachSentiment records the analysis score for a message. The score
// must be within [-1, 1] and may be written at most once; later calls
// fail with ErrSentimentSet.
func AttachSentiment(msgID string, score float64) error {
	if db == nil {
		return errNotOpen
	}
	if score < -1 || score > 1 {
		return fmt.Errorf("%w: sentiment score %v out of range", negotiation.ErrValidation, score)
	}
	appendMu.Lock()
	defer appendMu.Unlock()

	pk, err := messagePrimaryKey(msgID)
	if err != nil {
		return err
	}
	v, closer, err := db.Get(pk)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	var m models.ConversationMessage
	uerr := json.Unmarshal(v, &m)
	closer.Close()
	if uerr != nil {
		return fmt.Errorf("invalid stored message: %w", uerr)
	}
	if m.Sentiment != nil {
		return ErrSentimentSet
	}
	m.Sentiment = &score
	nb, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := db.Set(pk, nb, pebble.Sync); err != nil {
		logger.Error("attach_sentiment_failed", "id", msgID, "error", err)
		return err
	}
	sentimentAttached.Inc()
	logger.Info("sentiment_attached", "id", msgID, "score", score)
	return nil
}

package store

import (
	"fmt"
	"strings"
)

// Key layout:
//
//	negotiation:<negID>:meta                         negotiation record
//	negotiation:<negID>:msg:<%020d ts>-<%06d seq>    conversation message
//	msgkey:<msgID>                                   message id -> primary key
//	contract:<ctrID>:meta                            contract record
//	contract:<ctrID>:collab:<colID>                  collaborator record
//	contract:<ctrID>:sig:<sigID>                     signature record
//	collabkey:<colID>                                collaborator id -> primary key
//	template:<tplID>                                 contract template record
//
// The zero-padded timestamp plus an in-process sequence keeps message
// keys strictly ordered by insertion even when two appends share the
// same nanosecond.

func negMetaKey(negID string) []byte {
	return []byte("negotiation:" + negID + ":meta")
}

func negMsgPrefix(negID string) []byte {
	return []byte("negotiation:" + negID + ":msg:")
}

// MsgKey builds a message key for the given negotiation, timestamp and
// sequence. Negotiation ids must not contain the key separator.
func MsgKey(negID string, ts int64, seq uint64) (string, error) {
	if negID == "" || strings.ContainsRune(negID, ':') {
		return "", fmt.Errorf("invalid negotiation id %q", negID)
	}
	return fmt.Sprintf("negotiation:%s:msg:%020d-%06d", negID, ts, seq), nil
}

func msgIndexKey(msgID string) []byte {
	return []byte("msgkey:" + msgID)
}

func contractMetaKey(ctrID string) []byte {
	return []byte("contract:" + ctrID + ":meta")
}

func collabKey(ctrID, colID string) []byte {
	return []byte("contract:" + ctrID + ":collab:" + colID)
}

func collabPrefix(ctrID string) []byte {
	return []byte("contract:" + ctrID + ":collab:")
}

func collabIndexKey(colID string) []byte {
	return []byte("collabkey:" + colID)
}

func sigKey(ctrID, sigID string) []byte {
	return []byte("contract:" + ctrID + ":sig:" + sigID)
}

func sigPrefix(ctrID string) []byte {
	return []byte("contract:" + ctrID + ":sig:")
}

func templateKey(tplID string) []byte {
	return []byte("template:" + tplID)
}

package utils

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

func newULID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Now(), entropy).String()
}

// Typed id constructors. The prefix makes keys self-describing in the
// store and in logs; the ULID part keeps ids lexically sortable by
// creation time.
func GenNegotiationID() string  { return "neg_" + newULID() }
func GenMessageID() string      { return "msg_" + newULID() }
func GenContractID() string     { return "ctr_" + newULID() }
func GenTemplateID() string     { return "tpl_" + newULID() }
func GenCollaboratorID() string { return "col_" + newULID() }
func GenSignatureID() string    { return "sig_" + newULID() }

// MakeSlug builds a URL-friendly slug from a title and an id suffix.
func MakeSlug(title, id string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	var b strings.Builder
	lastDash := true
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return id
	}
	// keep the tail of the id so slugs stay unique
	if len(id) > 8 {
		id = id[len(id)-8:]
	}
	return slug + "-" + strings.ToLower(id)
}

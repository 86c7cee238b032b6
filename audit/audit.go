// Package audit builds append-only audit entries. Every entry carries a
// BLAKE2b-256 digest over its content and the digest of the previous entry
// of the same entity, so a rewritten or removed row breaks the chain.
package audit

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Dosada05/tournament-settlement/models"
	"github.com/Dosada05/tournament-settlement/repositories"
	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

var ErrChainBroken = errors.New("audit chain broken")

// Option adjusts an entry before it is sealed.
type Option func(*models.AuditLog)

// WithTime stamps the entry with the time of the state change it describes.
func WithTime(t time.Time) Option {
	return func(e *models.AuditLog) { e.CreatedAt = t.UTC() }
}

type Recorder struct {
	now func() time.Time
}

func NewRecorder(now func() time.Time) *Recorder {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Recorder{now: now}
}

// Record appends one entry through repo. Call it with the repositories of the
// transaction that performs the state change the entry describes.
func (r *Recorder) Record(ctx context.Context, repo repositories.AuditRepository, actor models.Actor, entityType models.AuditEntityType, entityID int, details models.AuditDetails, opts ...Option) (*models.AuditLog, error) {
	raw, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("marshal audit details %s: %w", details.AuditAction(), err)
	}

	entry := &models.AuditLog{
		ID:         uuid.NewString(),
		AdminID:    actor.UserID,
		Action:     details.AuditAction(),
		EntityType: entityType,
		EntityID:   strconv.Itoa(entityID),
		Details:    raw,
		IPAddress:  actor.IPAddress,
		UserAgent:  actor.UserAgent,
		CreatedAt:  r.now().UTC(),
	}
	for _, opt := range opts {
		opt(entry)
	}
	// Postgres keeps microseconds; seal what will be read back.
	entry.CreatedAt = entry.CreatedAt.UTC().Truncate(time.Microsecond)

	prev, err := repo.LastDigest(ctx, entry.EntityType, entry.EntityID)
	if err != nil {
		return nil, err
	}
	entry.PrevDigest = prev
	entry.Digest = Digest(entry)

	if err := repo.Append(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Digest returns the hex BLAKE2b-256 of the entry content chained to PrevDigest.
// Details are hashed in canonical form, so a JSONB round trip that reorders
// keys or adds whitespace keeps the digest.
func Digest(e *models.AuditLog) string {
	h, _ := blake2b.New256(nil) // nil key never fails
	for _, part := range []string{
		e.PrevDigest,
		e.ID,
		strconv.Itoa(e.AdminID),
		string(e.Action),
		string(e.EntityType),
		e.EntityID,
		canonicalJSON(e.Details),
		e.IPAddress,
		e.UserAgent,
		e.CreatedAt.UTC().Format(time.RFC3339Nano),
	} {
		h.Write([]byte(strconv.Itoa(len(part))))
		h.Write([]byte{':'})
		h.Write([]byte(part))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// canonicalJSON re-encodes raw with sorted keys and no insignificant
// whitespace. Numbers keep their literal text.
func canonicalJSON(raw []byte) string {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return string(raw)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return string(raw)
	}
	return string(out)
}

// VerifyChain checks entries of one entity in append order.
func VerifyChain(entries []*models.AuditLog) error {
	prev := ""
	for i, e := range entries {
		if e.PrevDigest != prev {
			return fmt.Errorf("%w: entry %d (%s) does not link to its predecessor", ErrChainBroken, i, e.ID)
		}
		if Digest(e) != e.Digest {
			return fmt.Errorf("%w: entry %d (%s) digest mismatch", ErrChainBroken, i, e.ID)
		}
		prev = e.Digest
	}
	return nil
}

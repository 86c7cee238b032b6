package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/Dosada05/tournament-settlement/models"
	"github.com/Dosada05/tournament-settlement/repositories"
	"github.com/shopspring/decimal"
)

// Sub-microsecond part is dropped on sealing.
var recordedAt = time.Date(2025, 3, 1, 10, 0, 0, 123_456_789, time.UTC)

func recordThree(t *testing.T) ([]*models.AuditLog, *repositories.MemoryStore) {
	t.Helper()
	store := repositories.NewMemoryStore()
	rec := NewRecorder(nil)
	actor := models.Actor{UserID: 1, Role: models.RoleAdmin, IPAddress: "10.0.0.1", UserAgent: "test"}

	for i := 1; i <= 3; i++ {
		_, err := rec.Record(context.Background(), store.Audit(), actor, models.EntityPayment, 7,
			models.InstallmentPaidDetails{TournamentID: 7, Installment: i, Amount: decimal.NewFromInt(int64(i * 100))},
			WithTime(recordedAt.Add(time.Duration(i)*time.Second)))
		if err != nil {
			t.Fatalf("Record #%d: %v", i, err)
		}
	}
	// Другая сущность не должна влиять на цепочку.
	if _, err := rec.Record(context.Background(), store.Audit(), actor, models.EntityTournament, 7,
		models.TournamentCancelledDetails{TournamentID: 7, Reason: "rain"}); err != nil {
		t.Fatalf("Record tournament: %v", err)
	}

	entries, err := store.Audit().ListByEntity(context.Background(), models.EntityPayment, "7")
	if err != nil {
		t.Fatalf("ListByEntity: %v", err)
	}
	return entries, store
}

func TestRecordChainsDigests(t *testing.T) {
	entries, _ := recordThree(t)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].PrevDigest != "" {
		t.Fatalf("first entry must start the chain, got prev %q", entries[0].PrevDigest)
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].PrevDigest != entries[i-1].Digest {
			t.Fatalf("entry %d does not link to entry %d", i, i-1)
		}
	}
	if err := VerifyChain(entries); err != nil {
		t.Fatalf("VerifyChain: %v", err)
	}
	if entries[0].Action != models.ActionInstallmentPaid || entries[0].IPAddress != "10.0.0.1" {
		t.Fatalf("unexpected entry metadata: %+v", entries[0])
	}
}

func TestVerifyChainDetectsTampering(t *testing.T) {
	t.Run("ModifiedDetails", func(t *testing.T) {
		entries, _ := recordThree(t)
		entries[1].Details = []byte(`{"tournament_id":7,"installment":2,"amount":"1"}`)
		if err := VerifyChain(entries); !errors.Is(err, ErrChainBroken) {
			t.Fatalf("expected ErrChainBroken, got %v", err)
		}
	})
	t.Run("RemovedEntry", func(t *testing.T) {
		entries, _ := recordThree(t)
		entries = append(entries[:1], entries[2:]...)
		if err := VerifyChain(entries); !errors.Is(err, ErrChainBroken) {
			t.Fatalf("expected ErrChainBroken, got %v", err)
		}
	})
}

// jsonbText renders details the way Postgres returns a JSONB column: keys
// ordered by length then bytes, a space after every separator.
func jsonbText(t *testing.T, raw []byte) []byte {
	t.Helper()
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("unmarshal details: %v", err)
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) < len(keys[j])
		}
		return keys[i] < keys[j]
	})
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%q: %s", k, fields[k]))
	}
	return []byte("{" + strings.Join(parts, ", ") + "}")
}

func TestVerifyChainSurvivesPostgresRoundTrip(t *testing.T) {
	entries, _ := recordThree(t)
	want := recordedAt.Add(time.Second).Truncate(time.Microsecond)
	if !entries[0].CreatedAt.Equal(want) {
		t.Fatalf("expected entry sealed at %v, got %v", want, entries[0].CreatedAt)
	}

	session := time.FixedZone("IST", 5*3600+1800)
	for _, e := range entries {
		e.Details = jsonbText(t, e.Details)
		e.CreatedAt = e.CreatedAt.Truncate(time.Microsecond).In(session)
	}
	if bytes.Equal(entries[0].Details, []byte(`{"tournament_id":7,"installment":1,"amount":"100"}`)) {
		t.Fatalf("details were not reformatted: %s", entries[0].Details)
	}
	if err := VerifyChain(entries); err != nil {
		t.Fatalf("VerifyChain after round trip: %v", err)
	}

	entries[2].Details = []byte(`{"amount": "1", "installment": 3, "tournament_id": 7}`)
	if err := VerifyChain(entries); !errors.Is(err, ErrChainBroken) {
		t.Fatalf("expected ErrChainBroken for a changed amount, got %v", err)
	}
}

func TestDetailsDecodeByAction(t *testing.T) {
	entries, _ := recordThree(t)
	d, err := models.DecodeAuditDetails(entries[2].Action, entries[2].Details)
	if err != nil {
		t.Fatalf("DecodeAuditDetails: %v", err)
	}
	paid, ok := d.(*models.InstallmentPaidDetails)
	if !ok {
		t.Fatalf("expected *InstallmentPaidDetails, got %T", d)
	}
	if paid.Installment != 3 || !paid.Amount.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("unexpected details: %+v", paid)
	}
}

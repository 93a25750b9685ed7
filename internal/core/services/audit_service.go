package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"easymoney-loans/internal/adapters/persistence/models"
	"easymoney-loans/internal/adapters/persistence/repositories"
	"easymoney-loans/internal/core/domain"

	"github.com/google/uuid"
)

// Audit errors
var (
	ErrAuditChainBroken = errors.New("audit chain integrity check failed")
)

// genesisHash anchors the first ledger entry. The first hash covers the
// entry content alone.
const genesisHash = ""

// ledgerTimeFormat pads the fractional seconds to a fixed width.
// Entries are ordered by this text column, so lexicographic order over
// stored timestamps must match time order; RFC3339Nano trims trailing
// zeros and breaks that.
const ledgerTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// AuditEntry is the input for one ledger append
type AuditEntry struct {
	EntityType string
	EntityID   string
	Action     string
	Before     map[string]any
	After      map[string]any
	Actor      domain.Actor
	Reason     string
}

// ChainMismatch reports one broken link found during verification
type ChainMismatch struct {
	EntryID      string `json:"entry_id"`
	Position     int    `json:"position"`
	StoredHash   string `json:"stored_hash"`
	ComputedHash string `json:"computed_hash"`
}

// VerifyResult summarizes a full-chain verification pass
type VerifyResult struct {
	Valid        bool            `json:"valid"`
	EntriesTotal int             `json:"entries_total"`
	Mismatches   []ChainMismatch `json:"mismatches"`
}

// AuditService maintains the append-only tamper-evident ledger.
// Appends are serialized through a single mutex so the previous-hash
// read and the insert form one critical section.
type AuditService struct {
	auditRepo *repositories.AuditRepository
	mu        sync.Mutex
}

// NewAuditService creates a new audit service
func NewAuditService(auditRepo *repositories.AuditRepository) *AuditService {
	return &AuditService{auditRepo: auditRepo}
}

// Append records one ledger entry chained onto the latest stored hash.
// Returns the created entry, or an error the caller may downgrade to a
// warning when the business write itself already succeeded.
func (s *AuditService) Append(ctx context.Context, entry AuditEntry) (*models.AuditLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prevHash := genesisHash
	latest, err := s.auditRepo.GetLatest(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger head: %w", err)
	}
	createdAt := time.Now().UTC().Format(ledgerTimeFormat)
	if latest != nil {
		prevHash = latest.IntegrityHash
		if createdAt <= latest.CreatedAt {
			// Clock skew or two appends on the same nanosecond; the
			// new entry must stay the strict head of the ledger
			if prev, parseErr := time.Parse(time.RFC3339Nano, latest.CreatedAt); parseErr == nil {
				createdAt = prev.Add(time.Nanosecond).UTC().Format(ledgerTimeFormat)
			}
		}
	}

	log := &models.AuditLog{
		ID:          uuid.New().String(),
		EntityType:  entry.EntityType,
		EntityID:    entry.EntityID,
		Action:      entry.Action,
		ActorUserID: entry.Actor.ID,
		ActorName:   entry.Actor.Name,
		CreatedAt:   createdAt,
	}
	if entry.Reason != "" {
		r := entry.Reason
		log.Reason = &r
	}
	if entry.Before != nil {
		b, err := json.Marshal(entry.Before)
		if err != nil {
			return nil, fmt.Errorf("failed to encode before snapshot: %w", err)
		}
		str := string(b)
		log.BeforeJSON = &str
	}
	if entry.After != nil {
		a, err := json.Marshal(entry.After)
		if err != nil {
			return nil, fmt.Errorf("failed to encode after snapshot: %w", err)
		}
		str := string(a)
		log.AfterJSON = &str
	}

	hash, err := computeEntryHash(log, prevHash)
	if err != nil {
		return nil, err
	}
	log.IntegrityHash = hash

	if err := s.auditRepo.Create(ctx, log); err != nil {
		return nil, fmt.Errorf("failed to append audit entry: %w", err)
	}
	return log, nil
}

// Verify walks the whole ledger oldest-first, recomputing every hash.
// Mismatch reporting stops after 5 entries; one broken link poisons
// every hash after it, so a long list adds nothing.
func (s *AuditService) Verify(ctx context.Context) (*VerifyResult, error) {
	logs, err := s.auditRepo.ListChronological(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}

	result := &VerifyResult{Valid: true, EntriesTotal: len(logs), Mismatches: []ChainMismatch{}}
	prevHash := genesisHash
	for i, log := range logs {
		computed, err := computeEntryHash(log, prevHash)
		if err != nil {
			return nil, err
		}
		if computed != log.IntegrityHash {
			result.Valid = false
			if len(result.Mismatches) < 5 {
				result.Mismatches = append(result.Mismatches, ChainMismatch{
					EntryID:      log.ID,
					Position:     i,
					StoredHash:   log.IntegrityHash,
					ComputedHash: computed,
				})
			}
		}
		prevHash = log.IntegrityHash
	}
	return result, nil
}

// List returns recent entries, newest first, with optional filters
func (s *AuditService) List(ctx context.Context, filter repositories.ListFilter) ([]models.AuditLogResponse, error) {
	logs, err := s.auditRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	responses := make([]models.AuditLogResponse, 0, len(logs))
	for _, log := range logs {
		responses = append(responses, log.ToResponse())
	}
	return responses, nil
}

// computeEntryHash hashes the canonical JSON of the entry content plus
// the previous hash. The id and the hash itself stay out of the hashed
// content; encoding/json sorts map keys, which keeps the serialization
// canonical across recomputations.
func computeEntryHash(log *models.AuditLog, prevHash string) (string, error) {
	content := map[string]any{
		"entity_type":   log.EntityType,
		"entity_id":     log.EntityID,
		"action":        log.Action,
		"actor_user_id": log.ActorUserID,
		"actor_name":    log.ActorName,
		"created_at":    log.CreatedAt,
	}
	if log.Reason != nil {
		content["reason"] = *log.Reason
	} else {
		content["reason"] = nil
	}
	content["before"] = decodeSnapshot(log.BeforeJSON)
	content["after"] = decodeSnapshot(log.AfterJSON)

	payload, err := json.Marshal(content)
	if err != nil {
		return "", fmt.Errorf("failed to serialize audit content: %w", err)
	}
	sum := sha256.Sum256(append(payload, []byte(prevHash)...))
	return hex.EncodeToString(sum[:]), nil
}

func decodeSnapshot(raw *string) any {
	if raw == nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(*raw), &m); err != nil {
		return *raw
	}
	return m
}

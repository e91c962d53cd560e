package supplier

import (
	"context"

	"github.com/google/uuid"

	"github.com/AudicoSA/audico-management-team-sub005/internal/domain/catalog"
)

// ---------------------------------------------------------------------------
// Authority Guard
// ---------------------------------------------------------------------------

// Decision is the authority guard's verdict for one candidate record.
type Decision string

const (
	// DecisionWrite allows the upsert to proceed.
	DecisionWrite Decision = "write"
	// DecisionSkip blocks the upsert to protect authoritative data.
	DecisionSkip Decision = "skip"
)

// SupplierDirectory resolves a supplier's connector type. The persistence
// layer implements it; tests use a map.
type SupplierDirectory interface {
	SupplierType(ctx context.Context, id uuid.UUID) (ConnectorType, error)
}

// AuthorityGuard decides whether a candidate record may overwrite the
// currently stored record for the same natural key. This is the loop
// prevention for the whole engine: without it, a broad low-fidelity manual
// feed re-imported after an export would clobber per-supplier data.
//
// The rule: no existing record always writes; an existing record owned by an
// authoritative (non-manual) supplier is never overwritten by the manual
// fallback; everything else writes.
type AuthorityGuard struct {
	directory SupplierDirectory
}

// NewAuthorityGuard creates a guard backed by the given directory.
func NewAuthorityGuard(directory SupplierDirectory) *AuthorityGuard {
	return &AuthorityGuard{directory: directory}
}

// Decide returns the verdict for an incoming record. existing is nil when
// the natural key is unclaimed. Directory lookup failures fail open to
// DecisionWrite only when the existing owner cannot be resolved AND the
// incoming supplier is not manual; a manual candidate with an unresolvable
// owner is skipped, because skipping is the safe direction for the fallback.
func (g *AuthorityGuard) Decide(ctx context.Context, existing *catalog.UnifiedProduct, incomingSupplierID uuid.UUID) (Decision, error) {
	if existing == nil {
		return DecisionWrite, nil
	}
	if existing.SupplierID == incomingSupplierID {
		return DecisionWrite, nil
	}

	incomingType, err := g.directory.SupplierType(ctx, incomingSupplierID)
	if err != nil {
		return DecisionSkip, err
	}
	if incomingType != ConnectorTypeManual {
		return DecisionWrite, nil
	}

	ownerType, err := g.directory.SupplierType(ctx, existing.SupplierID)
	if err != nil {
		return DecisionSkip, err
	}
	if ownerType.IsAuthoritative() {
		return DecisionSkip, nil
	}
	return DecisionWrite, nil
}

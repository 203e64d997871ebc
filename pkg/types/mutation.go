package types

import "time"

// MutationKind identifies the domain mutation that succeeded upstream.
type MutationKind string

const (
	MutationRate         MutationKind = "rate"
	MutationReview       MutationKind = "review"
	MutationFollow       MutationKind = "follow"
	MutationStatusChange MutationKind = "status_change"
	MutationListEdit     MutationKind = "list_edit"
)

// MutationEvent describes a mutation that has already succeeded against the
// system of record. It drives cache invalidation and notification fan-out;
// neither path may fail the mutation retroactively.
//
// UpdatedFields carries the collaborator's mutation result verbatim. When a
// new value is locally derivable from it, stores are patched in place;
// server-computed aggregates are never reconstructed here, the affected entry
// is evicted instead.
type MutationEvent struct {
	Kind            MutationKind   `json:"kind"`
	PrimaryEntityID string         `json:"primaryEntityId"`
	ActorID         string         `json:"actorId"`
	AffectedUserIDs []string       `json:"affectedUserIds,omitempty"`
	UpdatedFields   map[string]any `json:"updatedFields,omitempty"`
	OccurredAt      time.Time      `json:"occurredAt"`
}

package application

import (
	"fmt"
	"testing"

	"github.com/bnema/cuedesk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLogRecentReturnsNewestLast(t *testing.T) {
	t.Parallel()

	log := NewAuditLog(5)
	for i := range 3 {
		log.Append(domain.AuditEntry{Action: fmt.Sprintf("a%d", i)})
	}

	recent := log.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "a1", recent[0].Action)
	assert.Equal(t, "a2", recent[1].Action)
	assert.Len(t, log.Recent(0), 3)
	assert.Len(t, log.Recent(50), 3)
}

func TestAuditLogDropsOldestOnOverflow(t *testing.T) {
	t.Parallel()

	log := NewAuditLog(3)
	for i := range 7 {
		log.Append(domain.AuditEntry{Action: fmt.Sprintf("a%d", i)})
	}

	assert.Equal(t, 3, log.Len())
	var actions []string
	for _, entry := range log.Recent(0) {
		actions = append(actions, entry.Action)
	}
	assert.Equal(t, []string{"a4", "a5", "a6"}, actions)
}

func TestAuditLogEntriesAreNotAliased(t *testing.T) {
	t.Parallel()

	log := NewAuditLog(2)
	params := map[string]any{"id": "x"}
	log.Append(domain.AuditEntry{Action: "delete_scene", Params: params})
	params["id"] = "changed"

	recent := log.Recent(1)
	recent[0].Params["id"] = "mutated"

	assert.Equal(t, "x", log.Recent(1)[0].Params["id"])
}

func TestAuditLogDefaultCapacity(t *testing.T) {
	t.Parallel()

	assert.Equal(t, domain.DefaultAuditCapacity, NewAuditLog(0).Capacity())
}

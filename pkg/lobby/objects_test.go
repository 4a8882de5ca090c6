package lobby

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestObjectRegistry(distributeOrphans bool) (*SessionRegistry, *ObjectRegistry) {
	sessions := NewSessionRegistry(RegistryOptions{
		MaxSessions:               6,
		MaxMembersPerSession:      4,
		DistributeOrphanedObjects: distributeOrphans,
	})
	return sessions, NewObjectRegistry(sessions, distributeOrphans)
}

func TestCreateObject_RejectsUnknownSessionOrMember(t *testing.T) {
	sessions, objects := newTestObjectRegistry(true)
	session, authority, err := sessions.CreateSession("A", 1.0)
	require.NoError(t, err)

	assert.Nil(t, objects.CreateObject("missing-session", authority.ID, ScopePerMember, nil, nil))
	assert.Nil(t, objects.CreateObject(session.ID, "missing-member", ScopePerMember, nil, nil))
}

func TestCreateObject_DefaultsOwnerToCreator(t *testing.T) {
	sessions, objects := newTestObjectRegistry(true)
	session, authority, err := sessions.CreateSession("A", 1.0)
	require.NoError(t, err)

	obj := objects.CreateObject(session.ID, authority.ID, ScopePerMember, map[string]interface{}{"type": "ship"}, nil)
	require.NotNil(t, obj)
	assert.Equal(t, authority.ID, obj.OwnerMemberID)
	assert.Equal(t, uint64(1), obj.Version)
	assert.Equal(t, 1, objects.CountByType(session.ID, "ship"))
}

// TestDeleteObject_IsIdempotent exercises scenario 2: deleting the same
// object twice is a no-op on the second call, not an error.
func TestDeleteObject_IsIdempotent(t *testing.T) {
	sessions, objects := newTestObjectRegistry(true)
	session, authority, err := sessions.CreateSession("A", 1.0)
	require.NoError(t, err)
	obj := objects.CreateObject(session.ID, authority.ID, ScopePerMember, map[string]interface{}{"type": "bullet"}, nil)
	require.NotNil(t, obj)

	first := objects.DeleteObject(session.ID, obj.ID)
	require.NotNil(t, first)
	assert.Equal(t, obj.ID, first.ID)

	second := objects.DeleteObject(session.ID, obj.ID)
	assert.Nil(t, second)

	assert.Equal(t, 0, objects.CountByType(session.ID, "bullet"))
	assert.Nil(t, objects.GetObject(session.ID, obj.ID))
}

// TestHandleMemberDeparture_PerMemberDeleted exercises the PerMember half
// of scenario 3.
func TestHandleMemberDeparture_PerMemberDeleted(t *testing.T) {
	sessions, objects := newTestObjectRegistry(true)
	session, authority, err := sessions.CreateSession("A", 1.0)
	require.NoError(t, err)
	_, p1, err := sessions.JoinSession(session.ID, "P1")
	require.NoError(t, err)

	ship := objects.CreateObject(session.ID, authority.ID, ScopePerMember, map[string]interface{}{"type": "ship"}, nil)
	require.NotNil(t, ship)

	effects := objects.HandleMemberDeparture(session.ID, authority.ID, []string{p1.ID})
	assert.Contains(t, effects.DeletedIDs, ship.ID)
	assert.Contains(t, effects.AffectedTypes, "ship")
	assert.Empty(t, effects.Migrations)
	assert.Nil(t, objects.GetObject(session.ID, ship.ID))
}

// TestHandleMemberDeparture_PerSessionMigratesToSoleRemaining exercises
// scenario 3's PerSession migration when only one member remains --
// distribution has no effect since there is nothing to distribute across.
func TestHandleMemberDeparture_PerSessionMigratesToSoleRemaining(t *testing.T) {
	sessions, objects := newTestObjectRegistry(true)
	session, authority, err := sessions.CreateSession("A", 1.0)
	require.NoError(t, err)
	_, p1, err := sessions.JoinSession(session.ID, "P1")
	require.NoError(t, err)

	asteroid := objects.CreateObject(session.ID, authority.ID, ScopePerSession, map[string]interface{}{"type": "asteroid"}, nil)
	require.NotNil(t, asteroid)
	initialVersion := asteroid.Version

	effects := objects.HandleMemberDeparture(session.ID, authority.ID, []string{p1.ID})
	require.Len(t, effects.Migrations, 1)
	assert.Equal(t, asteroid.ID, effects.Migrations[0].ObjectID)
	assert.Equal(t, p1.ID, effects.Migrations[0].NewOwnerID)

	got := objects.GetObject(session.ID, asteroid.ID)
	require.NotNil(t, got)
	assert.Equal(t, p1.ID, got.OwnerMemberID)
	assert.Greater(t, got.Version, initialVersion)
}

// TestHandleMemberDeparture_DistributesAcrossRemainingMembers exercises
// scenario 4 with distribution enabled: orphans round-robin across more
// than one remaining member instead of collapsing onto the first.
func TestHandleMemberDeparture_DistributesAcrossRemainingMembers(t *testing.T) {
	sessions, objects := newTestObjectRegistry(true)
	session, authority, err := sessions.CreateSession("A", 1.0)
	require.NoError(t, err)
	_, p1, err := sessions.JoinSession(session.ID, "P1")
	require.NoError(t, err)
	_, p2, err := sessions.JoinSession(session.ID, "P2")
	require.NoError(t, err)

	var created []*Object
	for i := 0; i < 4; i++ {
		obj := objects.CreateObject(session.ID, authority.ID, ScopePerSession, map[string]interface{}{"type": "asteroid", "n": i}, nil)
		require.NotNil(t, obj)
		created = append(created, obj)
	}

	effects := objects.HandleMemberDeparture(session.ID, authority.ID, []string{p1.ID, p2.ID})
	require.Len(t, effects.Migrations, 4)

	owners := map[string]int{}
	for _, m := range effects.Migrations {
		owners[m.NewOwnerID]++
	}
	assert.Len(t, owners, 2, "distribution should spread ownership across both remaining members")
	assert.Equal(t, 2, owners[p1.ID])
	assert.Equal(t, 2, owners[p2.ID])
}

// TestHandleMemberDeparture_NoDistributionCollapsesToFirstRemaining
// exercises scenario 4 with distribution disabled: every orphan goes to
// the first remaining member.
func TestHandleMemberDeparture_NoDistributionCollapsesToFirstRemaining(t *testing.T) {
	sessions, objects := newTestObjectRegistry(false)
	session, authority, err := sessions.CreateSession("A", 1.0)
	require.NoError(t, err)
	_, p1, err := sessions.JoinSession(session.ID, "P1")
	require.NoError(t, err)
	_, p2, err := sessions.JoinSession(session.ID, "P2")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		obj := objects.CreateObject(session.ID, authority.ID, ScopePerSession, map[string]interface{}{"type": "asteroid"}, nil)
		require.NotNil(t, obj)
	}

	effects := objects.HandleMemberDeparture(session.ID, authority.ID, []string{p1.ID, p2.ID})
	require.Len(t, effects.Migrations, 3)
	for _, m := range effects.Migrations {
		assert.Equal(t, p1.ID, m.NewOwnerID)
	}
}

// TestHandleMemberDeparture_PerSessionUntouchedWhenNoRemainingMembers
// covers the last-member-leaving edge case: nothing to migrate to, so
// the objects are left as-is for the caller to discard with the session.
func TestHandleMemberDeparture_PerSessionUntouchedWhenNoRemainingMembers(t *testing.T) {
	sessions, objects := newTestObjectRegistry(true)
	session, authority, err := sessions.CreateSession("A", 1.0)
	require.NoError(t, err)

	obj := objects.CreateObject(session.ID, authority.ID, ScopePerSession, map[string]interface{}{"type": "asteroid"}, nil)
	require.NotNil(t, obj)

	effects := objects.HandleMemberDeparture(session.ID, authority.ID, nil)
	assert.Empty(t, effects.Migrations)
	assert.Empty(t, effects.DeletedIDs)
	assert.NotNil(t, objects.GetObject(session.ID, obj.ID))
}

// TestCountByType_ReflectsEmptyAfterLastDelete exercises scenario 5:
// CountByType must read zero once the last object of a type is deleted.
func TestCountByType_ReflectsEmptyAfterLastDelete(t *testing.T) {
	sessions, objects := newTestObjectRegistry(true)
	session, authority, err := sessions.CreateSession("A", 1.0)
	require.NoError(t, err)

	obj := objects.CreateObject(session.ID, authority.ID, ScopePerMember, map[string]interface{}{"type": "bullet"}, nil)
	require.NotNil(t, obj)
	require.Equal(t, 1, objects.CountByType(session.ID, "bullet"))

	objects.DeleteObject(session.ID, obj.ID)
	assert.Equal(t, 0, objects.CountByType(session.ID, "bullet"))
}

// TestUpdateObject_OptimisticConcurrencyRace exercises scenario 6: of two
// concurrent updates racing on the same expected version, exactly one
// succeeds and the object ends at version 2, never 3.
func TestUpdateObject_OptimisticConcurrencyRace(t *testing.T) {
	sessions, objects := newTestObjectRegistry(true)
	session, authority, err := sessions.CreateSession("A", 1.0)
	require.NoError(t, err)

	obj := objects.CreateObject(session.ID, authority.ID, ScopePerSession, map[string]interface{}{"type": "ship", "x": 0}, nil)
	require.NotNil(t, obj)
	expected := obj.Version

	var wg sync.WaitGroup
	results := make([]*Object, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = objects.UpdateObject(session.ID, obj.ID, map[string]interface{}{"x": i}, &expected)
		}(i)
	}
	wg.Wait()

	var successes int
	for _, r := range results {
		if r != nil {
			successes++
		}
	}
	assert.Equal(t, 1, successes, "exactly one racing update with a matching expected version should succeed")

	final := objects.GetObject(session.ID, obj.ID)
	require.NotNil(t, final)
	assert.Equal(t, expected+1, final.Version)
}

func TestUpdateObject_VersionMismatchIsSilentNoop(t *testing.T) {
	sessions, objects := newTestObjectRegistry(true)
	session, authority, err := sessions.CreateSession("A", 1.0)
	require.NoError(t, err)
	obj := objects.CreateObject(session.ID, authority.ID, ScopePerMember, nil, nil)
	require.NotNil(t, obj)

	stale := obj.Version + 5
	result := objects.UpdateObject(session.ID, obj.ID, map[string]interface{}{"x": 1}, &stale)
	assert.Nil(t, result)
}

func TestUpdateObjects_BatchSkipsFailedPatchesIndependently(t *testing.T) {
	sessions, objects := newTestObjectRegistry(true)
	session, authority, err := sessions.CreateSession("A", 1.0)
	require.NoError(t, err)
	ok1 := objects.CreateObject(session.ID, authority.ID, ScopePerMember, nil, nil)
	ok2 := objects.CreateObject(session.ID, authority.ID, ScopePerMember, nil, nil)
	require.NotNil(t, ok1)
	require.NotNil(t, ok2)

	badVersion := uint64(99)
	patches := []ObjectPatch{
		{ObjectID: ok1.ID, Data: map[string]interface{}{"a": 1}},
		{ObjectID: "missing", Data: map[string]interface{}{"a": 1}},
		{ObjectID: ok2.ID, Data: map[string]interface{}{"a": 2}, ExpectedVersion: &badVersion},
	}

	updated := objects.UpdateObjects(session.ID, patches)
	require.Len(t, updated, 1)
	assert.Equal(t, ok1.ID, updated[0].ID)
}

func TestListSessionObjects_DeterministicOrder(t *testing.T) {
	sessions, objects := newTestObjectRegistry(true)
	session, authority, err := sessions.CreateSession("A", 1.0)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		obj := objects.CreateObject(session.ID, authority.ID, ScopePerMember, map[string]interface{}{"type": fmt.Sprintf("t%d", i)}, nil)
		require.NotNil(t, obj)
	}

	first := objects.ListSessionObjects(session.ID)
	second := objects.ListSessionObjects(session.ID)
	require.Len(t, first, 5)
	assert.Equal(t, first, second)
}

func TestDropSession_ClearsTypeIndex(t *testing.T) {
	sessions, objects := newTestObjectRegistry(true)
	session, authority, err := sessions.CreateSession("A", 1.0)
	require.NoError(t, err)
	obj := objects.CreateObject(session.ID, authority.ID, ScopePerMember, map[string]interface{}{"type": "ship"}, nil)
	require.NotNil(t, obj)
	require.Equal(t, 1, objects.CountByType(session.ID, "ship"))

	objects.DropSession(session.ID)
	assert.Equal(t, 0, objects.CountByType(session.ID, "ship"))
}

package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digidem/comapeo-cloud/auth"
)

// TestStore runs the auth.Store conformance suite against an empty store.
// Every implementation must pass it.
func TestStore(t *testing.T, store auth.Store) {
	testCoordinators(t, store)
	testMembers(t, store)
	testTokenPrecedence(t, store)
	testMagicLinks(t, store)
}

func testCoordinators(t *testing.T, store auth.Store) {
	coordinators, err := store.ListCoordinators()
	require.NoError(t, err)
	require.Empty(t, coordinators, "store should start empty")

	rivers := auth.Coordinator{
		PhoneNumber: "+15551234",
		ProjectName: "Rivers",
	}
	forests := auth.Coordinator{
		PhoneNumber: "+15552222",
		ProjectName: "Forests",
	}
	require.NoError(t, store.UpsertCoordinator(rivers))
	require.NoError(t, store.UpsertCoordinator(forests))

	coordinators, err = store.ListCoordinators()
	require.NoError(t, err)
	assert.Len(t, coordinators, 2)

	found, err := store.CoordinatorByPhone(rivers.PhoneNumber)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "Rivers", found.ProjectName)

	found, err = store.CoordinatorByProject("Forests")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, forests.PhoneNumber, found.PhoneNumber)

	found, err = store.CoordinatorByPhone("+10000000")
	require.NoError(t, err)
	assert.Nil(t, found, "unknown phone should resolve to nil, not an error")

	// Upsert replaces the record matched by phone.
	rivers.Token = "token-rivers"
	require.NoError(t, store.UpsertCoordinator(rivers))
	coordinators, err = store.ListCoordinators()
	require.NoError(t, err)
	assert.Len(t, coordinators, 2, "upsert should not duplicate")

	found, err = store.CoordinatorByPhone(rivers.PhoneNumber)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "token-rivers", found.Token)

	require.NoError(t, store.DeleteCoordinator(forests.PhoneNumber))
	found, err = store.CoordinatorByPhone(forests.PhoneNumber)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func testMembers(t *testing.T, store auth.Store) {
	member := auth.Member{
		PhoneNumber:      "+15555678",
		Token:            "token-member",
		CoordinatorPhone: "+15551234",
		ProjectName:      "Rivers",
	}
	require.NoError(t, store.AppendMember(member))

	err := store.AppendMember(member)
	assert.Error(t, err, "appending the same phone twice should fail")

	members, err := store.ListMembers()
	require.NoError(t, err)
	assert.Len(t, members, 1)

	found, err := store.MemberByPhone(member.PhoneNumber)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "Rivers", found.ProjectName)
	assert.Equal(t, "+15551234", found.CoordinatorPhone)

	found, err = store.MemberByPhone("+10000000")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func testTokenPrecedence(t *testing.T, store auth.Store) {
	owner, err := store.OwnerByToken("token-rivers")
	require.NoError(t, err)
	require.NotNil(t, owner)
	assert.Equal(t, "+15551234", owner.Phone())
	assert.Equal(t, "Rivers", owner.Project())

	// The "Bearer " scheme is stripped before comparison.
	owner, err = store.OwnerByToken("Bearer token-member")
	require.NoError(t, err)
	require.NotNil(t, owner)
	assert.Equal(t, "+15555678", owner.Phone())

	owner, err = store.OwnerByToken("no-such-token")
	require.NoError(t, err)
	assert.Nil(t, owner)

	owner, err = store.OwnerByToken("")
	require.NoError(t, err)
	assert.Nil(t, owner, "empty token should never resolve")

	// A token present in both collections resolves to the coordinator.
	require.NoError(t, store.AppendMember(auth.Member{
		PhoneNumber: "+15559999",
		Token:       "token-rivers",
		ProjectName: "Elsewhere",
	}))
	owner, err = store.OwnerByToken("token-rivers")
	require.NoError(t, err)
	require.NotNil(t, owner)
	assert.Equal(t, "Rivers", owner.Project(), "coordinator should win on token collision")
}

func testMagicLinks(t *testing.T, store auth.Store) {
	links, err := store.MagicLinksFor("token-member")
	require.NoError(t, err)
	require.Empty(t, links)

	link, err := store.CreateMagicLink("token-member")
	require.NoError(t, err)
	assert.NotEmpty(t, link.Token)
	assert.False(t, link.Used)
	assert.False(t, link.CreatedAt.IsZero())

	other, err := store.CreateMagicLink("token-member")
	require.NoError(t, err)
	assert.NotEqual(t, link.Token, other.Token, "link tokens must be unique")

	links, err = store.MagicLinksFor("token-member")
	require.NoError(t, err)
	assert.Len(t, links, 2)

	found, owner, err := store.MagicLink(link.Token)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.NotNil(t, owner)
	assert.Equal(t, "+15555678", owner.Phone())
	assert.False(t, found.Used)

	found, owner, err = store.MagicLink("no-such-link")
	require.NoError(t, err)
	assert.Nil(t, found)
	assert.Nil(t, owner)

	require.NoError(t, store.InvalidateMagicLink(link.Token))
	found, _, err = store.MagicLink(link.Token)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.True(t, found.Used, "invalidation should persist")

	// The used transition is granted exactly once.
	err = store.InvalidateMagicLink(link.Token)
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrMagicLinkUsed)

	assert.Error(t, store.InvalidateMagicLink("no-such-token"))

	// A link whose creating credential no longer resolves keeps its record
	// but loses its owner.
	orphan, err := store.CreateMagicLink("rotated-away")
	require.NoError(t, err)
	found, owner, err = store.MagicLink(orphan.Token)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Nil(t, owner)
}

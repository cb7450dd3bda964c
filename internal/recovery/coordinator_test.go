package recovery

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/zivra/zivra-custody/pkg/types"
)

func TestVotesRequired(t *testing.T) {
	tests := []struct {
		guardians int
		required  int
	}{
		{guardians: 2, required: 2},
		{guardians: 3, required: 2},
		{guardians: 4, required: 3},
		{guardians: 5, required: 3},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.required, VotesRequired(tt.guardians),
			"quorum for %d guardians", tt.guardians)
	}
}

func TestInSnapshot(t *testing.T) {
	a, b, outsider := uuid.New(), uuid.New(), uuid.New()
	snapshot := []uuid.UUID{a, b}

	assert.True(t, inSnapshot(snapshot, a))
	assert.True(t, inSnapshot(snapshot, b))
	assert.False(t, inSnapshot(snapshot, outsider))
	assert.False(t, inSnapshot(nil, a))
}

func TestRemainingVoters(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	request := &types.RecoveryRequest{
		GuardianIDs:   []uuid.UUID{a, b, c},
		VotesRequired: 2,
	}

	assert.Equal(t, 3, remainingVoters(request, nil))

	votes := []*types.RecoveryVote{
		{RequestID: request.ID, GuardianID: a, Approve: false},
	}
	assert.Equal(t, 2, remainingVoters(request, votes))

	votes = append(votes, &types.RecoveryVote{RequestID: request.ID, GuardianID: b, Approve: true})
	assert.Equal(t, 1, remainingVoters(request, votes))
}

// With 3 guardians and a quorum of 2, two rejections leave only one
// possible approval and the request becomes unapprovable.
func TestQuorumReachability(t *testing.T) {
	request := &types.RecoveryRequest{
		GuardianIDs:   []uuid.UUID{uuid.New(), uuid.New(), uuid.New()},
		VotesRequired: 2,
	}

	votes := []*types.RecoveryVote{
		{GuardianID: request.GuardianIDs[0], Approve: false},
		{GuardianID: request.GuardianIDs[1], Approve: false},
	}

	approvals := 0
	for _, v := range votes {
		if v.Approve {
			approvals++
		}
	}
	assert.Less(t, approvals+remainingVoters(request, votes), request.VotesRequired)
}

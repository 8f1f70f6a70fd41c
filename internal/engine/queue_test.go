package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xiaot623/caucus/internal/domain"
)

func TestSpeakerQueueIgnoresDuplicates(t *testing.T) {
	var q SpeakerQueue
	assert.True(t, q.Enqueue("USA"))
	assert.True(t, q.Enqueue("China"))
	assert.False(t, q.Enqueue("USA"))
	assert.Equal(t, []string{"USA", "China"}, q.Order())

	assert.True(t, q.RaisePlacard("Japan"))
	assert.False(t, q.RaisePlacard("Japan"))
	assert.Equal(t, []string{"Japan"}, q.Placards())
}

func TestSpeakerQueueReorderKeepsMembership(t *testing.T) {
	var q SpeakerQueue
	q.Enqueue("USA")
	q.Enqueue("China")
	q.Enqueue("Japan")

	require.NoError(t, q.Reorder([]string{"Japan", "USA", "China"}))
	assert.Equal(t, []string{"Japan", "USA", "China"}, q.Order())

	assert.ErrorIs(t, q.Reorder([]string{"Japan", "USA"}), domain.ErrQueueMismatch)
	assert.ErrorIs(t, q.Reorder([]string{"Japan", "USA", "USA"}), domain.ErrQueueMismatch)
	assert.ErrorIs(t, q.Reorder([]string{"Japan", "USA", "France"}), domain.ErrQueueMismatch)
	assert.Equal(t, []string{"Japan", "USA", "China"}, q.Order())
}

func TestSpeakerQueuePromoteAndDequeue(t *testing.T) {
	var q SpeakerQueue
	q.Enqueue("USA")
	q.Enqueue("China")
	q.Promote("China")
	q.Promote("Japan")
	assert.Equal(t, []string{"Japan", "China", "USA"}, q.Order())

	id, ok := q.DequeueNext()
	assert.True(t, ok)
	assert.Equal(t, "Japan", id)
	assert.True(t, q.Remove("USA"))
	assert.False(t, q.Remove("USA"))
	assert.Equal(t, []string{"China"}, q.Order())
}

func TestNewRosterValidation(t *testing.T) {
	_, err := NewRoster(nil)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = NewRoster([]domain.AttendeeSpec{{ID: "USA"}, {ID: "USA"}})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = NewRoster([]domain.AttendeeSpec{{ID: "USA", Human: true}, {ID: "China", Human: true}})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	r, err := NewRoster([]domain.AttendeeSpec{{ID: "USA"}, {ID: "China", Status: domain.AttendancePresentAndVoting}})
	require.NoError(t, err)
	usa, err := r.Get("USA")
	require.NoError(t, err)
	assert.Equal(t, domain.AttendanceAbsent, usa.Status)
	assert.Equal(t, 1, r.Voters())
}

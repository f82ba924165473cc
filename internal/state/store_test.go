package state

import (
	"sync"
	"testing"

	"github.com/liliang-cn/ragdesk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessions(ids ...string) []domain.Session {
	out := make([]domain.Session, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.Session{ID: domain.SessionID(id), Name: "S" + id})
	}
	return out
}

func TestStore_StaleSessionListDropped(t *testing.T) {
	s := NewStore()

	older := s.BeginSessionsRefresh()
	newer := s.BeginSessionsRefresh()

	assert.True(t, s.ApplySessions(newer, sessions("2", "1")))
	assert.False(t, s.ApplySessions(older, sessions("1")))

	snap := s.Snapshot()
	require.Len(t, snap.Sessions, 2)
	assert.Equal(t, domain.SessionID("2"), snap.Sessions[0].ID)
}

func TestStore_ActivateClearsMessagesAndSources(t *testing.T) {
	s := NewStore()
	require.True(t, s.ApplySessions(s.BeginSessionsRefresh(), sessions("1", "2")))

	_, ok := s.Activate("1")
	require.True(t, ok)
	require.True(t, s.ApplyMessages(s.BeginMessagesLoad(), "1", []domain.Message{{Role: domain.RoleUser, Message: "hi"}}))
	require.True(t, s.ReplaceSources("1", []domain.Source{{Table: "t"}}))

	_, ok = s.Activate("2")
	require.True(t, ok)
	snap := s.Snapshot()
	assert.Equal(t, domain.SessionID("2"), snap.ActiveID())
	assert.Empty(t, snap.Messages)
	assert.Empty(t, snap.Sources)

	_, ok = s.Activate("9")
	assert.False(t, ok)
	assert.Equal(t, domain.SessionID("2"), s.ActiveID())
}

func TestStore_MessagesForPreviousSessionDropped(t *testing.T) {
	s := NewStore()
	require.True(t, s.ApplySessions(s.BeginSessionsRefresh(), sessions("1", "2")))
	s.Activate("1")

	tok := s.BeginMessagesLoad()
	s.Activate("2")

	assert.False(t, s.ApplyMessages(tok, "1", []domain.Message{{Message: "late"}}))
	assert.Empty(t, s.Snapshot().Messages)
}

func TestStore_RemoveActiveSessionIsAtomic(t *testing.T) {
	s := NewStore()
	require.True(t, s.ApplySessions(s.BeginSessionsRefresh(), sessions("1", "2")))
	s.Activate("1")
	s.ApplyMessages(s.BeginMessagesLoad(), "1", []domain.Message{{Message: "m"}})
	s.ReplaceSources("1", []domain.Source{{Table: "t"}})

	var observed []Snapshot
	s.OnChange(func() { observed = append(observed, s.Snapshot()) })

	pending := s.BeginSessionsRefresh()
	assert.True(t, s.RemoveSession("1"))

	require.Len(t, observed, 1)
	snap := observed[0]
	assert.Nil(t, snap.Active)
	assert.Empty(t, snap.Messages)
	assert.Empty(t, snap.Sources)
	require.Len(t, snap.Sessions, 1)
	assert.Equal(t, domain.SessionID("2"), snap.Sessions[0].ID)

	// A list fetched before the delete must not resurrect it.
	assert.False(t, s.ApplySessions(pending, sessions("1", "2")))
}

func TestStore_RemoveInactiveKeepsActive(t *testing.T) {
	s := NewStore()
	require.True(t, s.ApplySessions(s.BeginSessionsRefresh(), sessions("1", "2")))
	s.Activate("2")

	assert.False(t, s.RemoveSession("1"))
	assert.Equal(t, domain.SessionID("2"), s.ActiveID())
}

func TestStore_ActiveVanishesFromList(t *testing.T) {
	s := NewStore()
	require.True(t, s.ApplySessions(s.BeginSessionsRefresh(), sessions("1")))
	s.Activate("1")
	s.ReplaceSources("1", []domain.Source{{Table: "t"}})

	require.True(t, s.ApplySessions(s.BeginSessionsRefresh(), sessions("3")))
	snap := s.Snapshot()
	assert.Nil(t, snap.Active)
	assert.Empty(t, snap.Sources)
}

func TestStore_ActiveRefreshedFromList(t *testing.T) {
	s := NewStore()
	require.True(t, s.ApplySessions(s.BeginSessionsRefresh(), sessions("1")))
	s.Activate("1")

	updated := sessions("1")
	updated[0].MessageCount = 2
	require.True(t, s.ApplySessions(s.BeginSessionsRefresh(), updated))
	assert.Equal(t, 2, s.Snapshot().Active.MessageCount)
}

func TestStore_AddSessionInvalidatesPendingList(t *testing.T) {
	s := NewStore()
	pending := s.BeginSessionsRefresh()
	s.AddSession(domain.Session{ID: "5", Name: "new"})
	s.AddSession(domain.Session{ID: "5", Name: "new"})

	assert.False(t, s.ApplySessions(pending, nil))
	_, ok := s.Lookup("5")
	assert.True(t, ok)
	assert.Len(t, s.Snapshot().Sessions, 1)
}

func TestStore_ReplaceSourcesRequiresActive(t *testing.T) {
	s := NewStore()
	require.True(t, s.ApplySessions(s.BeginSessionsRefresh(), sessions("1", "2")))
	s.Activate("2")

	assert.False(t, s.ReplaceSources("1", []domain.Source{{Table: "t"}}))
	assert.Empty(t, s.Sources())
	assert.True(t, s.ReplaceSources("2", []domain.Source{{Table: "t"}}))
	assert.Len(t, s.Sources(), 1)
}

func TestStore_InFlightPerSession(t *testing.T) {
	s := NewStore()
	require.True(t, s.ApplySessions(s.BeginSessionsRefresh(), sessions("1", "2")))
	s.Activate("1")

	assert.True(t, s.TryBeginAsk("1"))
	assert.False(t, s.TryBeginAsk("1"))
	assert.True(t, s.TryBeginAsk("2"))
	assert.True(t, s.Snapshot().Sending)

	s.EndAsk("1")
	assert.False(t, s.Busy("1"))
	assert.True(t, s.Busy("2"))
	assert.False(t, s.Snapshot().Sending)
}

func TestStore_StatsTokens(t *testing.T) {
	s := NewStore()
	older := s.BeginStatsLoad()
	newer := s.BeginStatsLoad()

	assert.True(t, s.ApplyStats(newer, domain.SystemStats{TotalChunks: 2}))
	assert.False(t, s.ApplyStats(older, domain.SystemStats{TotalChunks: 1}))
	assert.Equal(t, 2, s.Snapshot().Stats.TotalChunks)
}

func TestStore_ConcurrentTransitions(t *testing.T) {
	s := NewStore()
	require.True(t, s.ApplySessions(s.BeginSessionsRefresh(), sessions("1", "2", "3")))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		id := domain.SessionID([]string{"1", "2", "3"}[i%3])
		go func() {
			defer wg.Done()
			s.Activate(id)
			s.ApplyMessages(s.BeginMessagesLoad(), id, []domain.Message{{Message: string(id)}})
		}()
		go func() {
			defer wg.Done()
			_ = s.Snapshot()
		}()
	}
	wg.Wait()

	snap := s.Snapshot()
	require.NotNil(t, snap.Active)
	for _, m := range snap.Messages {
		assert.Equal(t, string(snap.Active.ID), m.Message)
	}
}

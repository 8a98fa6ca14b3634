package conversation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/wms-askbot/internal/domain"
	"github.com/ashureev/wms-askbot/internal/session"
	"github.com/stretchr/testify/require"
)

func TestServiceCreatesAndPersistsSessions(t *testing.T) {
	h := newHarness()
	store := session.NewStore(time.Minute)
	svc := NewService(h.eng, store)

	require.Equal(t, NewSession(), svc.Current("k1"))

	s, reply := svc.Turn(context.Background(), "k1", Input{Action: ActionMessage, Text: "show me open orders"})
	require.Equal(t, OutcomePending, reply.Outcome)
	require.Equal(t, domain.StateConfirm, s.State)

	stored, ok := store.Load("k1")
	require.True(t, ok)
	require.Equal(t, s, stored)

	require.Equal(t, NewSession(), svc.Current("k2"), "sessions are isolated per key")
}

func TestServiceSerializesTurnsPerKey(t *testing.T) {
	h := newHarness()
	svc := NewService(h.eng, session.NewStore(time.Minute))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.Turn(context.Background(), "k", Input{Action: ActionMessage, Text: "hello"})
		}()
	}
	wg.Wait()

	s := svc.Current("k")
	require.True(t, s.Valid())
	userTurns := 0
	for _, m := range s.Messages {
		if m.Role == domain.RoleUser {
			userTurns++
		}
	}
	require.Equal(t, 10, userTurns)
}

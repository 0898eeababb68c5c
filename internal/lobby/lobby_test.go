package lobby

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wordduel/wordduel-backend/internal/engine"
	"github.com/wordduel/wordduel-backend/pkg/types"
)

type stubWords struct {
	seq []string
	i   int
}

func (s *stubWords) RandomWord(int) (string, error) {
	w := s.seq[s.i%len(s.seq)]
	s.i++
	return w, nil
}

func (s *stubWords) Contains(word string) bool {
	for _, w := range s.seq {
		if w == word {
			return true
		}
	}
	return false
}

func (s *stubWords) Lengths() []int { return []int{5} }

func testDeps() engine.Deps {
	n := 0
	return engine.Deps{
		Words: &stubWords{seq: []string{"баран", "мороз", "трава"}},
		NewID: func() string {
			n++
			return fmt.Sprintf("p%d", n)
		},
		Now: time.Now,
	}
}

func newTestLobby(t *testing.T, cfg engine.Config, grace time.Duration, onClose func()) (*Lobby, *engine.State) {
	t.Helper()
	deps := testDeps()
	st, err := engine.NewState("AB12C", deps, cfg, "host")
	require.NoError(t, err)
	if onClose == nil {
		onClose = func() {}
	}
	l := New(context.Background(), zap.NewNop(), st, deps, grace, onClose)
	t.Cleanup(func() {
		select {
		case l.Inbox() <- Shutdown{}:
		default:
		}
	})
	return l, st
}

func defaultCfg() engine.Config {
	return engine.Config{WordLength: 5, AttemptsLimit: 4, HostLeavePolicy: engine.HostLeaveDelete}
}

// helper: receive one push with a timeout so tests never hang
func recvPush(t *testing.T, ch <-chan Push, within time.Duration) Push {
	t.Helper()
	select {
	case p, ok := <-ch:
		if !ok {
			t.Fatalf("client outbox closed unexpectedly")
		}
		return p
	case <-time.After(within):
		t.Fatalf("timed out waiting for push")
		return Push{} // unreachable
	}
}

// helper: drain pushes until one carries a snapshot in the wanted phase
func waitForPhase(t *testing.T, ch <-chan Push, phase string, within time.Duration) *types.Snapshot {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case p, ok := <-ch:
			if !ok {
				t.Fatalf("outbox closed while waiting for phase %q", phase)
			}
			if p.Snapshot != nil && p.Snapshot.Phase == phase {
				return p.Snapshot
			}
		case <-deadline:
			t.Fatalf("timed out waiting for phase %q", phase)
		}
	}
}

// helper: drain pushes until a close instruction arrives
func waitForClose(t *testing.T, ch <-chan Push, within time.Duration) Push {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case p, ok := <-ch:
			if !ok {
				t.Fatalf("outbox closed without a close push")
			}
			if p.CloseCode != 0 {
				return p
			}
		case <-deadline:
			t.Fatalf("timed out waiting for close push")
		}
	}
}

func getView(t *testing.T, l *Lobby) View {
	t.Helper()
	reply := make(chan View, 1)
	l.Inbox() <- GetState{Reply: reply}
	select {
	case v := <-reply:
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for view")
		return View{} // unreachable
	}
}

func attach(t *testing.T, l *Lobby, connID, playerID string) chan Push {
	t.Helper()
	out := make(chan Push, 16)
	reply := make(chan error, 1)
	l.Inbox() <- Attach{ConnID: connID, PlayerID: playerID, Outbox: out, Reply: reply}
	require.NoError(t, <-reply)
	return out
}

func joinPlayer(t *testing.T, l *Lobby, name string) string {
	t.Helper()
	reply := make(chan JoinResult, 1)
	l.Inbox() <- JoinPlayer{Name: name, Reply: reply}
	res := <-reply
	require.NoError(t, res.Err)
	require.NotEmpty(t, res.PlayerID)
	return res.PlayerID
}

func sendCmd(t *testing.T, l *Lobby, cmd engine.Command) error {
	t.Helper()
	reply := make(chan error, 1)
	l.Inbox() <- FromClient{Cmd: cmd, Reply: reply}
	select {
	case err := <-reply:
		return err
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for command reply")
		return nil // unreachable
	}
}

func TestAttach_UnknownPlayerRejected(t *testing.T) {
	l, _ := newTestLobby(t, defaultCfg(), time.Minute, nil)

	out := make(chan Push, 4)
	reply := make(chan error, 1)
	l.Inbox() <- Attach{ConnID: "c1", PlayerID: "ghost", Outbox: out, Reply: reply}
	require.ErrorIs(t, <-reply, engine.ErrUnknownPlayer)

	assert.Equal(t, 0, getView(t, l).NumConns)
}

func TestAttach_RegistersAndBroadcasts(t *testing.T) {
	l, st := newTestLobby(t, defaultCfg(), time.Minute, nil)

	out := attach(t, l, "c1", st.HostID)
	p := recvPush(t, out, 2*time.Second)
	require.NotNil(t, p.Snapshot)
	assert.Equal(t, "AB12C", p.Snapshot.Code)
	assert.Equal(t, string(engine.PhaseWaiting), p.Snapshot.Phase)

	v := getView(t, l)
	assert.Equal(t, 1, v.NumConns)
}

func TestJoinPlayer_AdmitsAndNotifiesEveryone(t *testing.T) {
	l, st := newTestLobby(t, defaultCfg(), time.Minute, nil)
	hostOut := attach(t, l, "c1", st.HostID)
	recvPush(t, hostOut, 2*time.Second) // attach snapshot

	guest := joinPlayer(t, l, "guest")

	p := recvPush(t, hostOut, 2*time.Second)
	require.NotNil(t, p.Snapshot)
	require.Len(t, p.Snapshot.Players, 2)

	v := getView(t, l)
	assert.Contains(t, v.Players, guest)
}

func TestBroadcast_MasksOpponentGuesses(t *testing.T) {
	l, st := newTestLobby(t, defaultCfg(), time.Minute, nil)
	hostOut := attach(t, l, "c1", st.HostID)
	guest := joinPlayer(t, l, "guest")
	guestOut := attach(t, l, "c2", guest)

	require.NoError(t, sendCmd(t, l, engine.Command{Type: engine.CmdStart, PlayerID: st.HostID}))
	require.NoError(t, sendCmd(t, l, engine.Command{Type: engine.CmdGuess, PlayerID: st.HostID, Word: "мороз"}))

	find := func(snap *types.Snapshot, id string) types.PlayerView {
		for _, pv := range snap.Players {
			if pv.ID == id {
				return pv
			}
		}
		t.Fatalf("player %s missing from snapshot", id)
		return types.PlayerView{} // unreachable
	}

	var hostSnap, guestSnap *types.Snapshot
	deadline := time.After(2 * time.Second)
	for hostSnap == nil || guestSnap == nil {
		select {
		case p := <-hostOut:
			if p.Snapshot != nil && find(p.Snapshot, st.HostID).GuessCount == 1 {
				hostSnap = p.Snapshot
			}
		case p := <-guestOut:
			if p.Snapshot != nil && find(p.Snapshot, st.HostID).GuessCount == 1 {
				guestSnap = p.Snapshot
			}
		case <-deadline:
			t.Fatal("timed out waiting for post-guess snapshots")
		}
	}

	hostView := find(hostSnap, st.HostID)
	require.Len(t, hostView.Guesses, 1)
	assert.Equal(t, "мороз", hostView.Guesses[0].Word)

	opponentView := find(guestSnap, st.HostID)
	assert.Equal(t, 1, opponentView.GuessCount)
	assert.Empty(t, opponentView.Guesses, "opponents never see guess contents")
}

func TestCommand_RejectionDoesNotBroadcast(t *testing.T) {
	l, st := newTestLobby(t, defaultCfg(), time.Minute, nil)
	out := attach(t, l, "c1", st.HostID)
	recvPush(t, out, 2*time.Second)
	before := getView(t, l).Version

	err := sendCmd(t, l, engine.Command{Type: engine.CmdGuess, PlayerID: st.HostID, Word: "мороз"})
	require.ErrorIs(t, err, engine.ErrNotActive)

	assert.Equal(t, before, getView(t, l).Version)
	select {
	case p := <-out:
		t.Fatalf("unexpected push after rejected command: %+v", p)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestKick_ClosesTargetConnection(t *testing.T) {
	l, st := newTestLobby(t, defaultCfg(), time.Minute, nil)
	attach(t, l, "c1", st.HostID)
	guest := joinPlayer(t, l, "guest")
	guestOut := attach(t, l, "c2", guest)

	require.NoError(t, sendCmd(t, l, engine.Command{Type: engine.CmdKick, PlayerID: st.HostID, TargetID: guest}))

	p := waitForClose(t, guestOut, 2*time.Second)
	assert.Equal(t, CloseKicked, p.CloseCode)

	v := getView(t, l)
	assert.Equal(t, 1, v.NumConns)
	assert.NotContains(t, v.Players, guest)
}

func TestLeave_ClosesOwnConnection(t *testing.T) {
	l, st := newTestLobby(t, defaultCfg(), time.Minute, nil)
	attach(t, l, "c1", st.HostID)
	guest := joinPlayer(t, l, "guest")
	guestOut := attach(t, l, "c2", guest)

	require.NoError(t, sendCmd(t, l, engine.Command{Type: engine.CmdLeave, PlayerID: guest}))

	p := waitForClose(t, guestOut, 2*time.Second)
	assert.Equal(t, CloseLeft, p.CloseCode)
}

func TestDelete_ClosesEveryoneAndShutsDown(t *testing.T) {
	closed := make(chan struct{})
	l, st := newTestLobby(t, defaultCfg(), time.Minute, func() { close(closed) })
	hostOut := attach(t, l, "c1", st.HostID)
	guest := joinPlayer(t, l, "guest")
	guestOut := attach(t, l, "c2", guest)

	require.NoError(t, sendCmd(t, l, engine.Command{Type: engine.CmdDelete, PlayerID: st.HostID}))

	p := waitForClose(t, hostOut, 2*time.Second)
	assert.Equal(t, CloseDeleted, p.CloseCode)
	p = waitForClose(t, guestOut, 2*time.Second)
	assert.Equal(t, CloseDeleted, p.CloseCode)

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("onClose never fired after delete")
	}
}

func TestDetach_MarksPlayerDisconnected(t *testing.T) {
	l, st := newTestLobby(t, defaultCfg(), time.Minute, nil)
	hostOut := attach(t, l, "c1", st.HostID)
	recvPush(t, hostOut, 2*time.Second)
	guest := joinPlayer(t, l, "guest")
	attach(t, l, "c2", guest)

	l.Inbox() <- Detach{ConnID: "c2"}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case p, ok := <-hostOut:
			if !ok {
				t.Fatal("host outbox closed")
			}
			if p.Snapshot == nil {
				continue
			}
			for _, pv := range p.Snapshot.Players {
				if pv.ID == guest && !pv.Connected {
					assert.Len(t, p.Snapshot.Players, 2, "disconnect keeps the player on the roster")
					return
				}
			}
		case <-deadline:
			t.Fatal("host never saw the guest go offline")
		}
	}
}

func TestAbandon_GraceReclaimsConnectionlessLobby(t *testing.T) {
	closed := make(chan struct{})
	newTestLobby(t, defaultCfg(), 50*time.Millisecond, func() { close(closed) })

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("abandoned lobby was never reclaimed")
	}
}

func TestAbandon_AttachCancelsPendingGrace(t *testing.T) {
	closed := make(chan struct{})
	l, st := newTestLobby(t, defaultCfg(), 100*time.Millisecond, func() { close(closed) })
	attach(t, l, "c1", st.HostID)

	select {
	case <-closed:
		t.Fatal("lobby reclaimed despite a live connection")
	case <-time.After(300 * time.Millisecond):
	}
	assert.Equal(t, 1, getView(t, l).NumConns)
}

func TestBroadcast_DropsSlowClients(t *testing.T) {
	l, st := newTestLobby(t, defaultCfg(), time.Minute, nil)

	// Unbuffered outbox with no reader: the very first broadcast must drop it
	// rather than block the lobby goroutine.
	out := make(chan Push)
	reply := make(chan error, 1)
	l.Inbox() <- Attach{ConnID: "c1", PlayerID: st.HostID, Outbox: out, Reply: reply}
	require.NoError(t, <-reply)

	v := getView(t, l)
	assert.Equal(t, 0, v.NumConns)
}

func TestBroadcast_DroppingLastClientRearmsAbandon(t *testing.T) {
	closed := make(chan struct{})
	l, st := newTestLobby(t, defaultCfg(), 100*time.Millisecond, func() { close(closed) })

	out := make(chan Push)
	reply := make(chan error, 1)
	l.Inbox() <- Attach{ConnID: "c1", PlayerID: st.HostID, Outbox: out, Reply: reply}
	require.NoError(t, <-reply)

	// The transport's deferred detach for a dropped conn finds nothing; the
	// grace timer must already be armed by the drop itself.
	l.Inbox() <- Detach{ConnID: "c1"}

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("lobby with zero connections was never reclaimed")
	}
}

func TestKick_LastConnectionRearmsAbandon(t *testing.T) {
	closed := make(chan struct{})
	l, st := newTestLobby(t, defaultCfg(), 100*time.Millisecond, func() { close(closed) })
	guest := joinPlayer(t, l, "guest")
	attach(t, l, "c1", guest) // only the guest holds a socket

	require.NoError(t, sendCmd(t, l, engine.Command{Type: engine.CmdKick, PlayerID: st.HostID, TargetID: guest}))

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("lobby with zero connections was never reclaimed after kick")
	}
}

func TestTimedRound_ExpiresOnTheClock(t *testing.T) {
	cfg := defaultCfg()
	cfg.Timed = true
	cfg.RoundSeconds = 1
	l, st := newTestLobby(t, cfg, time.Minute, nil)
	out := attach(t, l, "c1", st.HostID)

	require.NoError(t, sendCmd(t, l, engine.Command{Type: engine.CmdStart, PlayerID: st.HostID}))

	snap := waitForPhase(t, out, string(engine.PhaseRoundEnd), 5*time.Second)
	assert.Empty(t, snap.WinnerID)
	assert.NotEmpty(t, snap.RevealedWord, "secret is revealed when the clock wins")
}

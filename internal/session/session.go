// Package session owns one participant's view of one room: seat
// assignment, turn gating, move application, termination and restart. All
// room mutations go through the store and local state only advances after a
// confirmed write; remote changes arrive through a dispatch.Dispatcher and
// are reconciled against the authoritative snapshot they carry.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"velha-online/internal/dispatch"
	"velha-online/internal/game"
	"velha-online/internal/store"
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseHosting
	PhaseActive
	PhaseTerminal
)

var (
	ErrCreateConflict = errors.New("could not allocate a free room code")
	ErrRoomFull       = errors.New("room already has two players")
	ErrRoomClosed     = errors.New("room has already finished")
	ErrNotYourTurn    = errors.New("not your turn")
	ErrCellOccupied   = errors.New("cell already occupied")
	ErrNoActiveRoom   = errors.New("no active game")
	ErrBusy           = errors.New("a write is already in flight")
	ErrGameInProgress = errors.New("game still in progress")
)

// createAttempts bounds code regeneration when a generated code collides.
const createAttempts = 5

// Update is the presentation contract: everything a renderer needs after
// any accepted local operation or reconciled remote change.
type Update struct {
	RoomID    string
	Board     game.Board
	MyTurn    bool
	Status    store.Status
	Winner    store.Seat
	PlayerOne string
	PlayerTwo string
	Notice    string
}

// Session is one participant's local session. Not persisted; it holds at
// most one live dispatcher (subscription pair) at a time.
type Session struct {
	ID    string
	store store.Store

	codeLen int

	mu          sync.Mutex
	phase       Phase
	roomID      string
	mark        game.Mark
	seat        store.Seat
	name        string
	myTurn      bool
	busy        bool
	board       game.Board
	status      store.Status
	winner      store.Seat
	playerOne   string
	playerTwo   string
	lastApplied time.Time

	disp *dispatch.Dispatcher

	updates chan Update
	chat    chan store.ChatMessage
}

func New(st store.Store, codeLen int) *Session {
	if codeLen <= 0 {
		codeLen = DefaultCodeLen
	}
	return &Session{
		ID:      uuid.NewString(),
		store:   st,
		codeLen: codeLen,
		updates: make(chan Update, 16),
		chat:    make(chan store.ChatMessage, 32),
	}
}

// Updates streams presentation snapshots. Slow consumers lose intermediate
// snapshots, never the ability to catch up: every Update is complete.
func (s *Session) Updates() <-chan Update { return s.updates }

// Chat streams the peer's messages. The participant's own messages are not
// echoed back.
func (s *Session) Chat() <-chan store.ChatMessage { return s.chat }

// Host creates a room with the caller in seat one and opens the
// notification stream. On a code collision it regenerates and retries a
// bounded number of times before giving up with ErrCreateConflict.
func (s *Session) Host(ctx context.Context, displayName string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.busy {
		return "", ErrBusy
	}
	s.busy = true
	defer func() { s.busy = false }()

	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = "Player"
	}

	var code string
	for attempt := 0; attempt < createAttempts; attempt++ {
		code = GenerateCode(s.codeLen)
		err := s.store.CreateRoom(ctx, store.Room{
			ID:        code,
			PlayerOne: displayName,
			Board:     game.NewBoard().Encode(),
			TurnOwner: game.MarkX,
			Status:    store.StatusWaiting,
		})
		if errors.Is(err, store.ErrRoomExists) {
			log.Printf("session %s: code %s taken, regenerating", s.ID, code)
			code = ""
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create room: %w", err)
		}
		break
	}
	if code == "" {
		return "", ErrCreateConflict
	}

	r, err := s.store.GetRoom(ctx, code)
	if err != nil {
		return "", fmt.Errorf("read back created room: %w", err)
	}

	s.bindLocked(r, game.MarkX, displayName)
	s.phase = PhaseHosting
	s.emitLocked("room created, waiting for an opponent")
	return code, nil
}

// Join seats the caller as player two via a conditional update. Losing the
// race for the seat surfaces ErrRoomFull; seat two is never overwritten.
func (s *Session) Join(ctx context.Context, code, displayName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.busy {
		return ErrBusy
	}
	s.busy = true
	defer func() { s.busy = false }()

	code = strings.ToUpper(strings.TrimSpace(code))
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = "Player"
	}

	r, err := s.store.GetRoom(ctx, code)
	if err != nil {
		return err
	}
	if r.Status.Finished() {
		return ErrRoomClosed
	}
	if r.PlayerTwo != "" {
		return ErrRoomFull
	}

	playing := store.StatusPlaying
	err = s.store.UpdateRoom(ctx, code, store.RoomPatch{
		PlayerTwo: &displayName,
		Status:    &playing,
	}, r.Version)
	if errors.Is(err, store.ErrVersionConflict) {
		// someone else took the seat between our read and write
		return ErrRoomFull
	}
	if err != nil {
		return fmt.Errorf("join room: %w", err)
	}

	r, err = s.store.GetRoom(ctx, code)
	if err != nil {
		return fmt.Errorf("read back joined room: %w", err)
	}

	s.bindLocked(r, game.MarkO, displayName)
	s.phase = PhaseActive
	s.emitLocked(fmt.Sprintf("joined room %s", code))
	return nil
}

// SubmitMove validates against the authoritative room state (never just
// the local turn flag), then writes board, turn owner and — when the move
// ends the game — status and winner in one combined update.
func (s *Session) SubmitMove(ctx context.Context, idx int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseActive {
		log.Printf("session %s: move ignored, no active game", s.ID)
		return ErrNoActiveRoom
	}
	if s.busy {
		return ErrBusy
	}
	if !s.myTurn {
		log.Printf("session %s: move ignored, not our turn", s.ID)
		return ErrNotYourTurn
	}
	s.busy = true
	defer func() { s.busy = false }()

	r, err := s.store.GetRoom(ctx, s.roomID)
	if err != nil {
		return err
	}
	if r.Status.Finished() {
		s.reconcileLocked(r, "")
		return ErrRoomClosed
	}
	if r.Status != store.StatusPlaying || r.TurnOwner != s.mark {
		s.reconcileLocked(r, "")
		return ErrNotYourTurn
	}

	board, err := game.ParseBoard(r.Board)
	if err != nil {
		return fmt.Errorf("authoritative board corrupt: %w", err)
	}
	if idx < 0 || idx >= game.Size {
		return game.ErrIllegalMove
	}
	if board[idx] != game.Empty {
		return ErrCellOccupied
	}

	next, err := game.ApplyMove(board, idx, s.mark)
	if err != nil {
		// unreachable if the checks above hold; a programming error
		return err
	}

	wire := next.Encode()
	nextOwner := game.NextMark(s.mark)
	patch := store.RoomPatch{Board: &wire, TurnOwner: &nextOwner}

	outcome := game.DetectOutcome(next)
	switch outcome.Kind {
	case game.OutcomeWin:
		status := store.StatusFinishedWin
		winner := store.SeatOf(outcome.Winner)
		patch.Status = &status
		patch.Winner = &winner
	case game.OutcomeDraw:
		status := store.StatusFinishedDraw
		patch.Status = &status
	}

	if err := s.store.UpdateRoom(ctx, s.roomID, patch, r.Version); err != nil {
		// the write did not land; local state stays untouched
		return err
	}

	s.board = next
	s.myTurn = false
	if patch.Status != nil {
		s.status = *patch.Status
		s.phase = PhaseTerminal
	}
	if patch.Winner != nil {
		s.winner = *patch.Winner
	}
	s.emitLocked("")
	return nil
}

// Restart clears the board and hands the turn back to X, keeping both
// participants. Either seat may call it once the game is terminal. A
// concurrent restart by the peer is absorbed as a no-op.
func (s *Session) Restart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseTerminal && s.phase != PhaseActive {
		return ErrNoActiveRoom
	}
	if s.busy {
		return ErrBusy
	}
	s.busy = true
	defer func() { s.busy = false }()

	r, err := s.store.GetRoom(ctx, s.roomID)
	if err != nil {
		return err
	}
	if r.Status == store.StatusPlaying {
		if r.Board == game.NewBoard().Encode() {
			// already restarted (by us or the peer)
			s.reconcileLocked(r, "")
			return nil
		}
		return ErrGameInProgress
	}
	if !r.Status.Finished() {
		return ErrGameInProgress
	}

	wire := game.NewBoard().Encode()
	owner := game.MarkX
	playing := store.StatusPlaying
	noWinner := store.Seat("")
	err = s.store.UpdateRoom(ctx, s.roomID, store.RoomPatch{
		Board:     &wire,
		TurnOwner: &owner,
		Status:    &playing,
		Winner:    &noWinner,
	}, r.Version)
	if errors.Is(err, store.ErrVersionConflict) {
		// lost the race; if the peer's write was the same restart we are done
		fresh, gerr := s.store.GetRoom(ctx, s.roomID)
		if gerr == nil && fresh.Status == store.StatusPlaying && fresh.Board == wire {
			s.reconcileLocked(fresh, "")
			return nil
		}
		return err
	}
	if err != nil {
		return fmt.Errorf("restart: %w", err)
	}

	s.board = game.NewBoard()
	s.status = store.StatusPlaying
	s.winner = ""
	s.myTurn = s.mark == game.MarkX
	s.phase = PhaseActive
	s.emitLocked("game restarted")
	return nil
}

// SendChat appends one message to the room's chat log.
func (s *Session) SendChat(ctx context.Context, text string) error {
	s.mu.Lock()
	roomID, name := s.roomID, s.name
	s.mu.Unlock()

	if roomID == "" {
		return ErrNoActiveRoom
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return s.store.AppendMessage(ctx, store.ChatMessage{
		RoomID:     roomID,
		PlayerName: name,
		Text:       text,
	})
}

// Leave releases the notification stream and returns the session to idle.
func (s *Session) Leave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeDispatcherLocked()
	s.phase = PhaseIdle
	s.roomID = ""
	s.mark = ""
	s.seat = ""
	s.myTurn = false
	s.lastApplied = time.Time{}
}

// State returns the current presentation snapshot.
func (s *Session) State() Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked("")
}

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Session) Mark() game.Mark {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mark
}

func (s *Session) RoomID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID
}

// HandleRoomEvent reconciles a remote room snapshot into local state.
// Snapshots not newer than the last applied one are ignored, which makes
// redelivered events (including redelivered restarts) no-ops.
func (s *Session) HandleRoomEvent(ev store.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.Room.ID != s.roomID {
		return
	}
	if !ev.Room.UpdatedAt.After(s.lastApplied) {
		log.Printf("session %s: ignoring stale snapshot of room %s", s.ID, s.roomID)
		return
	}

	notice := ""
	if ev.Kind == store.EventUpdate && ev.Old != nil &&
		ev.Old.PlayerTwo == "" && ev.Room.PlayerTwo != "" {
		notice = fmt.Sprintf("%s joined the room", ev.Room.PlayerTwo)
	}
	if s.status.Finished() && ev.Room.Status == store.StatusPlaying {
		notice = "game restarted"
	}

	s.reconcileLocked(ev.Room, notice)
}

func (s *Session) handleChat(msg store.ChatMessage) {
	s.mu.Lock()
	name := s.name
	s.mu.Unlock()
	if msg.PlayerName == name {
		return
	}
	select {
	case s.chat <- msg:
	default:
		log.Printf("session %s: chat consumer too slow, dropping message", s.ID)
	}
}

// bindLocked attaches the session to a freshly read room and swaps the
// notification stream over to it. The previous stream, if any, is released
// first; a session holds exactly one.
func (s *Session) bindLocked(r store.Room, mark game.Mark, displayName string) {
	s.closeDispatcherLocked()

	board, err := game.ParseBoard(r.Board)
	if err != nil {
		log.Printf("session %s: room %s has a corrupt board, starting empty: %v", s.ID, r.ID, err)
		board = game.NewBoard()
	}

	s.roomID = r.ID
	s.mark = mark
	s.seat = store.SeatOf(mark)
	s.name = displayName
	s.board = board
	s.status = r.Status
	s.winner = r.Winner
	s.playerOne = r.PlayerOne
	s.playerTwo = r.PlayerTwo
	s.myTurn = r.TurnOwner == mark
	s.lastApplied = r.UpdatedAt

	s.disp = dispatch.Open(s.store, r.ID, s.HandleRoomEvent, s.handleChat)
}

func (s *Session) closeDispatcherLocked() {
	if s.disp != nil {
		s.disp.Close()
		s.disp = nil
	}
}

// reconcileLocked applies an authoritative snapshot. The turn flag is
// always derived, never trusted independently.
func (s *Session) reconcileLocked(r store.Room, notice string) {
	board, err := game.ParseBoard(r.Board)
	if err != nil {
		log.Printf("session %s: dropping snapshot with corrupt board: %v", s.ID, err)
		return
	}

	s.board = board
	s.status = r.Status
	s.winner = r.Winner
	s.playerOne = r.PlayerOne
	s.playerTwo = r.PlayerTwo
	if r.UpdatedAt.After(s.lastApplied) {
		s.lastApplied = r.UpdatedAt
	}

	switch {
	case r.Status.Finished():
		s.phase = PhaseTerminal
		s.myTurn = false
	case r.Status == store.StatusPlaying:
		s.phase = PhaseActive
		s.myTurn = r.TurnOwner == s.mark
	default:
		s.phase = PhaseHosting
		s.myTurn = r.TurnOwner == s.mark
	}

	s.emitLocked(notice)
}

func (s *Session) snapshotLocked(notice string) Update {
	return Update{
		RoomID:    s.roomID,
		Board:     s.board,
		MyTurn:    s.myTurn,
		Status:    s.status,
		Winner:    s.winner,
		PlayerOne: s.playerOne,
		PlayerTwo: s.playerTwo,
		Notice:    notice,
	}
}

func (s *Session) emitLocked(notice string) {
	select {
	case s.updates <- s.snapshotLocked(notice):
	default:
		log.Printf("session %s: update consumer too slow, dropping snapshot", s.ID)
	}
}

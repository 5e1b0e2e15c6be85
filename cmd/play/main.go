// Local two-seat demo: hosts a room and joins it from a second session over
// the in-memory store, then plays from stdin. Exercises the full
// host/join/move/restart flow without a browser.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"velha-online/internal/game"
	"velha-online/internal/session"
	"velha-online/internal/store"
)

func main() {
	log.SetOutput(os.Stderr)

	ctx := context.Background()
	st := store.NewMemoryStore()

	p1 := session.New(st, session.DefaultCodeLen)
	p2 := session.New(st, session.DefaultCodeLen)
	drain(p1, "Player 1")
	drain(p2, "Player 2")

	code, err := p1.Host(ctx, "Player 1")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("room %s created\n", code)
	if err := p2.Join(ctx, code, "Player 2"); err != nil {
		log.Fatal(err)
	}

	reader := bufio.NewReader(os.Stdin)
	for {
		sess := awaitTurn(p1, p2)
		if sess == nil {
			state := p1.State()
			printBoard(state.Board)
			switch state.Status {
			case store.StatusFinishedWin:
				fmt.Printf("game over, %s wins\n", state.Winner)
			case store.StatusFinishedDraw:
				fmt.Println("game over, draw")
			}
			fmt.Println("type r to restart, anything else to quit")
			line, _ := reader.ReadString('\n')
			if strings.TrimSpace(line) != "r" {
				return
			}
			if err := p1.Restart(ctx); err != nil {
				log.Fatal(err)
			}
			continue
		}

		state := sess.State()
		printBoard(state.Board)
		fmt.Printf("%s (%s), cell 0-8 or 'c <text>' to chat: ", playerLabel(sess, p1), sess.Mark())
		line, _ := reader.ReadString('\n')
		line = strings.TrimSpace(line)

		if text, ok := strings.CutPrefix(line, "c "); ok {
			if err := sess.SendChat(ctx, text); err != nil {
				fmt.Println("chat failed:", err)
			}
			continue
		}

		idx, err := strconv.Atoi(line)
		if err != nil {
			fmt.Println("expected a cell number 0-8")
			continue
		}
		if err := sess.SubmitMove(ctx, idx); err != nil {
			fmt.Println("move rejected:", err)
		}
	}
}

// awaitTurn polls until one session owns the move, or returns nil when the
// game has reached a terminal status.
func awaitTurn(p1, p2 *session.Session) *session.Session {
	for {
		s1, s2 := p1.State(), p2.State()
		if s1.Status.Finished() && s2.Status.Finished() {
			return nil
		}
		if s1.MyTurn {
			return p1
		}
		if s2.MyTurn {
			return p2
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func playerLabel(sess, p1 *session.Session) string {
	if sess == p1 {
		return "Player 1"
	}
	return "Player 2"
}

func drain(s *session.Session, who string) {
	go func() {
		for range s.Updates() {
		}
	}()
	go func() {
		for msg := range s.Chat() {
			fmt.Printf("[chat to %s] %s: %s\n", who, msg.PlayerName, msg.Text)
		}
	}()
}

func printBoard(b game.Board) {
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			c := b[row*3+col]
			if c == game.Empty {
				fmt.Print(". ")
			} else {
				fmt.Printf("%s ", c)
			}
		}
		fmt.Println()
	}
}

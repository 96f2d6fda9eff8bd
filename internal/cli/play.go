package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bananagame/banago/internal/client"
	"github.com/bananagame/banago/internal/domain"
	"github.com/bananagame/banago/internal/game"
	"github.com/bananagame/banago/internal/question"
)

func newPlayCmd() *cobra.Command {
	var (
		serverURL   string
		username    string
		password    string
		level       string
		questionURL string
	)

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play one timed round from the terminal",
		Long: `Play one timed round from the terminal.

Type the answer value and press enter. Commands: p pauses or resumes,
r retries a failed question fetch, q ends the round.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd.Context(), serverURL, username, password, level, questionURL)
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "score service base URL")
	cmd.Flags().StringVar(&username, "username", "", "player username")
	cmd.Flags().StringVar(&password, "password", "", "player password")
	cmd.Flags().StringVar(&level, "level", string(domain.LevelEasy), "difficulty: Easy, Medium or Hard")
	cmd.Flags().StringVar(&questionURL, "question-url", question.DefaultURL, "question provider URL")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func runPlay(ctx context.Context, serverURL, username, password, levelStr, questionURL string) error {
	level, err := domain.ParseLevel(levelStr)
	if err != nil {
		return err
	}

	token, err := client.Login(ctx, serverURL, username, password, nil)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	cl := client.New(client.Config{
		BaseURL:  serverURL,
		Token:    token,
		Username: username,
	})

	done := make(chan domain.RoundResult, 1)
	eng, err := game.NewEngine(game.Config{
		Username: username,
		Level:    level,
		Source:   question.NewAdapter(question.Config{URL: questionURL}),
		Sink: func(r domain.RoundResult) {
			done <- r
		},
		OnEvent: printEvent,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Level %s: %d seconds, %d points per correct answer. Good luck!\n",
		level, level.TimerSeconds(), level.PointsPerCorrect())

	if err := eng.Start(ctx); err != nil {
		return err
	}

	input := make(chan string)
	go readLines(input)

	for {
		select {
		case <-ctx.Done():
			eng.Stop()
			return ctx.Err()

		case result := <-done:
			return finishRound(ctx, cl, result)

		case line := <-input:
			handleInput(eng, line)
		}
	}
}

func handleInput(eng *game.Engine, line string) {
	switch line {
	case "p":
		if err := eng.TogglePause(); err != nil {
			fmt.Println(err)
		}
	case "r":
		if err := eng.RetryFetch(); err != nil {
			fmt.Println(err)
		}
	case "q":
		eng.Stop()
	default:
		v, err := strconv.Atoi(line)
		if err != nil {
			fmt.Printf("unrecognized input %q\n", line)
			return
		}
		if err := eng.SelectAnswer(v); err != nil {
			fmt.Println(err)
		}
	}
}

func finishRound(ctx context.Context, cl *client.Client, result domain.RoundResult) error {
	fmt.Printf("\nGame over! Your score: %d\n", result.Points)

	rec := domain.ScoreRecord{
		Username: result.Username,
		Points:   result.Points,
		Date:     time.Now(),
	}
	if err := cl.Submit(ctx, rec); err != nil {
		return fmt.Errorf("submit score: %w", err)
	}
	fmt.Println("Score submitted.")

	if best, ok, err := cl.FetchPersonalBest(ctx, result.Username); err == nil && ok {
		fmt.Printf("Personal best: %d\n", best)
	}

	entries, err := cl.Leaderboard(ctx, 10)
	if err != nil {
		return fmt.Errorf("fetch leaderboard: %w", err)
	}
	if len(entries) > 0 {
		fmt.Println("\nLeaderboard:")
		for i, e := range entries {
			fmt.Printf("%2d. %-20s %5d  %s\n", i+1, e.Username, e.Points, e.Date.Format(time.DateOnly))
		}
	}
	return nil
}

func printEvent(ev game.Event) {
	switch ev.Kind {
	case game.EventQuestion:
		fmt.Printf("\nPuzzle: %s\n", ev.State.Question.ImageRef)
		fmt.Printf("Options: %v  (%ds left, score %d)\n", ev.State.Options, ev.State.RemainingSeconds, ev.State.Score)
	case game.EventCorrect:
		fmt.Printf("Correct! Score: %d\n", ev.State.Score)
	case game.EventIncorrect:
		fmt.Println("Incorrect, try again.")
	case game.EventPaused:
		fmt.Println("Paused. The puzzle is hidden; p resumes.")
	case game.EventResumed:
		fmt.Printf("Resumed with %ds left.\n", ev.State.RemainingSeconds)
	case game.EventFetchFailed:
		fmt.Printf("Could not fetch the next puzzle (%v); r retries.\n", ev.Err)
	case game.EventTick:
		if ev.State.RemainingSeconds > 0 && ev.State.RemainingSeconds%10 == 0 {
			fmt.Printf("%ds left\n", ev.State.RemainingSeconds)
		}
	}
}

func readLines(out chan<- string) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" {
			out <- line
		}
	}
}

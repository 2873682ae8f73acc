// Package cli provides the interactive question REPL.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/google/uuid"

	"github.com/jwkim/ragmate/internal/config"
	"github.com/jwkim/ragmate/internal/engine"
)

const (
	Version = "0.1.0"

	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
)

// resetTokens are bare inputs that clear the current session instead of
// being asked as questions.
var resetTokens = map[string]bool{
	"reset": true, "clear": true, "초기화": true, "리셋": true,
}

// resetAllTokens clear every session
var resetAllTokens = map[string]bool{
	"reset all": true, "clear all": true, "전체 초기화": true,
}

// exitTokens end the REPL
var exitTokens = map[string]bool{
	"exit": true, "quit": true, "종료": true,
}

// Run starts the interactive REPL against eng. Each REPL process gets its
// own session ID, so parallel terminals never share memory.
func Run(eng *engine.Engine, cfg *config.Config) error {
	printWelcome(cfg)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            fmt.Sprintf("%sYou: %s", colorGreen, colorReset),
		HistoryFile:       historyFilePath(),
		HistoryLimit:      1000,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Printf("\n%sGoodbye! 👋%s\n", colorCyan, colorReset)
		cancel()
		rl.Close()
		os.Exit(0)
	}()

	sessionID := uuid.New().String()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				fmt.Printf("\n%sPress Ctrl+C again or type exit to quit%s\n", colorYellow, colorReset)
				continue
			}
			if err == io.EOF {
				fmt.Printf("\n%sGoodbye! 👋%s\n", colorCyan, colorReset)
				return nil
			}
			return fmt.Errorf("failed to read input: %w", err)
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		switch {
		case exitTokens[strings.ToLower(input)]:
			fmt.Printf("%sGoodbye! 👋%s\n", colorCyan, colorReset)
			return nil

		case resetAllTokens[strings.ToLower(input)]:
			if err := eng.ResetAllSessions(ctx); err != nil {
				fmt.Printf("%s❌ Failed to reset sessions: %v%s\n", colorRed, err, colorReset)
			} else {
				fmt.Printf("%s✅ All sessions reset%s\n\n", colorGreen, colorReset)
			}

		case resetTokens[strings.ToLower(input)]:
			if err := eng.ResetSession(ctx, sessionID); err != nil {
				fmt.Printf("%s❌ Failed to reset session: %v%s\n", colorRed, err, colorReset)
			} else {
				fmt.Printf("%s✅ Conversation reset%s\n\n", colorGreen, colorReset)
			}

		case input == "/config":
			fmt.Println(cfg.String())

		case input == "/help":
			printHelp()

		default:
			answer, err := eng.Ask(ctx, sessionID, input)
			if err != nil {
				fmt.Printf("\n%s❌ Error: %v%s\n\n", colorRed, err, colorReset)
				continue
			}
			fmt.Printf("\n%sRAGMate: %s%s\n\n", colorBlue, colorReset, answer)
		}
	}
}

func printWelcome(cfg *config.Config) {
	fmt.Printf("\n%s🤖 RAGMate v%s%s - Career Q&A Assistant\n", colorCyan, Version, colorReset)
	fmt.Printf("%sModel: %s (%s)%s\n", colorGray, cfg.Model.Model, cfg.Model.Backend, colorReset)
	fmt.Printf("%sType /help for help, exit to quit%s\n\n", colorGray, colorReset)
}

func printHelp() {
	fmt.Printf(`
%s📚 RAGMate Help%s

%sCommands:%s
  reset, clear, 초기화, 리셋  - Reset this conversation
  reset all, clear all        - Reset every session
  /config                     - Show current configuration
  /help                       - Show this help message
  exit, quit, 종료            - Exit

%sExamples:%s
  "이력 요약을 알려주세요"
  "가장 최근 프로젝트에서 맡은 역할은?"
  "협업할 때 어떤 방식을 선호해?"

`, colorCyan, colorReset, colorYellow, colorReset, colorYellow, colorReset)
}

// historyFilePath returns the readline history path, or "" to disable
func historyFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	dir := filepath.Join(homeDir, ".ragmate")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return ""
	}
	return filepath.Join(dir, "history")
}

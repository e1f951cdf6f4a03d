package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"chatwire/client"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerURL          string        `env:"CHAT_SERVER_URL,default=http://localhost:8080"`
	Token              string        `env:"CHAT_TOKEN,required=true"`
	UserID             string        `env:"CHAT_USER_ID,required=true"`
	LogLevel           string        `env:"LOG_LEVEL,default=INFO"`
	MinLoadingDuration time.Duration `env:"MIN_LOADING_DURATION,default=0s"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	// 1. Load configuration; a local .env is convenient during development.
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open the authenticated realtime connection.
	socket, err := client.DialSocket(ctx, config.ServerURL, config.Token)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to %s: %w", config.ServerURL, err)
	}
	defer func() {
		log.Info("Closing connection...")
		_ = socket.Close()
	}()

	fetcher := client.NewHistoryClient(config.ServerURL, config.Token)
	session := client.NewSession(log, client.Config{
		MinLoadingDuration: config.MinLoadingDuration,
	}, config.UserID, fetcher, socket)

	session.OnNotice(func(code, reason string) {
		fmt.Printf("!! send failed (%s): %s\n", code, reason)
	})
	session.Roster().OnChange(func(ids []string) {
		fmt.Printf("-- online: %s\n", strings.Join(ids, ", "))
	})
	session.View().OnScroll(func() {
		render(session)
	})

	// 4. Read loop feeding the session until the connection drops.
	errChan := make(chan error, 1)
	go func() {
		errChan <- socket.Listen(ctx, session.HandleFrame)
	}()

	fmt.Printf(">>> Connected to %s as %s. Commands: /peer <id>, /quit\n",
		config.ServerURL, config.UserID)

	// 5. Input loop: slash commands switch peers, anything else is a message.
	input := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			input <- scanner.Text()
		}
		close(input)
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info("Stopping client...")
			return exitOK, nil
		case err := <-errChan:
			if ctx.Err() != nil {
				return exitOK, nil
			}
			return exitRuntime, fmt.Errorf("connection lost: %w", err)
		case line, ok := <-input:
			if !ok {
				return exitOK, nil
			}
			if err := handleLine(ctx, session, line); err != nil {
				if err == errQuit {
					return exitOK, nil
				}
				fmt.Printf("!! %v\n", err)
			}
		}
	}
}

var errQuit = fmt.Errorf("quit")

func handleLine(ctx context.Context, session *client.Session, line string) error {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return nil
	case line == "/quit":
		return errQuit
	case strings.HasPrefix(line, "/peer "):
		session.SelectPeer(ctx, strings.TrimSpace(strings.TrimPrefix(line, "/peer ")))
		return nil
	default:
		return session.Send(ctx, line, "")
	}
}

// render reprints the conversation tail after every view mutation.
func render(session *client.Session) {
	messages := session.View().Messages()
	if len(messages) == 0 {
		return
	}
	last := messages[len(messages)-1]
	marker := ""
	if last.ProvisionalID != "" {
		marker = " (sending...)"
	}
	body := last.Text
	if body == "" {
		body = "[image] " + last.Image
	}
	fmt.Printf("[%s] %s: %s%s\n",
		last.CreatedAt.Format(time.TimeOnly), last.SenderID, body, marker)
}

// Command chatcli is a terminal client for the chat server.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Placeboguy/anonymous-chat2/internal/chat"
	"github.com/Placeboguy/anonymous-chat2/internal/chatclient"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("error: %v", err)
	}
}

func run() error {
	server := flag.String("server", "http://localhost:8080", "chat server base URL")
	username := flag.String("user", "", "username")
	password := flag.String("password", os.Getenv("CHAT_PASSWORD"), "password (or set CHAT_PASSWORD)")
	flag.Parse()

	if *username == "" || *password == "" {
		flag.Usage()
		return errors.New("-user and -password are required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg := chatclient.Config{BaseURL: *server}

	login, err := chatclient.Login(ctx, cfg, *username, *password)
	if err != nil {
		return err
	}
	fmt.Println(login.Message)

	client, err := chatclient.Dial(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Authenticate(ctx, login.Token); err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}

	typing := chatclient.NewTypingTracker(chatclient.DefaultTypingInterval)
	typingTicker := time.NewTicker(250 * time.Millisecond)
	defer typingTicker.Stop()

	readErr := make(chan error, 1)
	go func() { readErr <- printEvents(ctx, client, typing) }()

	fmt.Println("Type messages to chat, /quit to exit.")

	inputCh := make(chan string)
	go readInput(inputCh)

	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nShutting down...")
			return nil
		case err := <-readErr:
			return err
		case <-typingTicker.C:
			for _, name := range typing.Expire() {
				fmt.Printf("... %s stopped typing\n", name)
			}
		case line, ok := <-inputCh:
			if !ok {
				fmt.Println("\nInput closed.")
				return nil
			}
			msg := strings.TrimSpace(line)
			switch msg {
			case "":
				// A bare Enter counts as typing activity.
				if _, err := client.Typing(ctx); err != nil {
					return fmt.Errorf("typing: %w", err)
				}
				continue
			case "/quit":
				fmt.Println("Bye!")
				return nil
			}
			if err := client.Send(ctx, msg); err != nil {
				return fmt.Errorf("send: %w", err)
			}
		}
	}
}

func printEvents(ctx context.Context, client *chatclient.Client, typing *chatclient.TypingTracker) error {
	for {
		evt, err := client.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("connection lost: %w", err)
		}
		if err := printEvent(evt, typing); err != nil {
			fmt.Printf("unreadable %s event: %v\n", evt.Type, err)
		}
	}
}

func printEvent(evt chatclient.Event, typing *chatclient.TypingTracker) error {
	switch evt.Type {
	case chat.EventAuthenticated:
		var p chat.AuthenticatedPayload
		if err := evt.Decode(&p); err != nil {
			return err
		}
		fmt.Printf("*** signed in as %s\n", p.User.Username)
	case chat.EventAuthFailed:
		var p chat.AuthFailedPayload
		if err := evt.Decode(&p); err != nil {
			return err
		}
		fmt.Printf("*** authentication failed: %s\n", p.Message)
	case chat.EventHistory:
		var history []chat.ChatMessage
		if err := evt.Decode(&history); err != nil {
			return err
		}
		for _, m := range history {
			printMessage(m)
		}
	case chat.EventMessage:
		var m chat.ChatMessage
		if err := evt.Decode(&m); err != nil {
			return err
		}
		printMessage(m)
	case chat.EventUserTyping:
		var p chat.UserTypingPayload
		if err := evt.Decode(&p); err != nil {
			return err
		}
		if typing.Seen(p.Username) {
			fmt.Printf("... %s is typing\n", p.Username)
		}
	case chat.EventOnlineCount:
		var count int
		if err := evt.Decode(&count); err != nil {
			return err
		}
		fmt.Printf("*** %d online\n", count)
	case chat.EventError:
		var p chat.ErrorPayload
		if err := evt.Decode(&p); err != nil {
			return err
		}
		fmt.Printf("!!! %s: %s\n", p.Code, p.Message)
	}
	return nil
}

func printMessage(m chat.ChatMessage) {
	fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Local().Format(time.Kitchen), m.Username, m.Text)
}

func readInput(dst chan<- string) {
	defer close(dst)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		dst <- scanner.Text()
	}
}

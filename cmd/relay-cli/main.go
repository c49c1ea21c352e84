// Command relay-cli is a terminal client of the chat relay.
//
//	/who   lists the connected names
//	/quit  leaves the chat
package main

import (
	"bufio"
	"chat-relay/infrastructure/grpc/client"
	"chat-relay/sink"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "relay-cli: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()
	config, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	name := flag.String("name", config.Name, "Name to claim")
	flag.Parse()
	if strings.TrimSpace(*name) == "" {
		return errors.New("a name is required (-name or RELAY_NAME)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := grpc.NewClient(config.GrpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return err
	}
	defer conn.Close()

	relay, err := client.Connect(ctx, conn)
	if err != nil {
		return err
	}
	if err := relay.ClaimName(*name); err != nil {
		return err
	}

	timeline := sink.NewTimeline(*name)
	r := &renderer{colours: config.Colours}
	received := make(chan error, 1)
	go func() {
		for {
			evt, err := relay.Receive()
			if err != nil {
				received <- err
				return
			}
			_ = timeline.Consume(ctx, evt)
			if line := r.line(evt); line != "" {
				fmt.Println(line)
			}
		}
	}()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	defer renderSummary(os.Stdout, timeline)
	for {
		select {
		case <-ctx.Done():
			return relay.Leave()
		case err := <-received:
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		case line, ok := <-lines:
			if !ok || line == "/quit" {
				return relay.Leave()
			}
			if line == "/who" {
				names, err := client.Who(ctx, conn)
				if err != nil {
					fmt.Fprintf(os.Stderr, "who: %v\n", err)
					continue
				}
				renderWho(os.Stdout, names)
				continue
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			if err := relay.Say(line); err != nil {
				return err
			}
		}
	}
}

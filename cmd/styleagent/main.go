// Command styleagent runs the outfit recommendation service as an
// interactive console. A leader agent parses each request, fans
// category tasks out to four worker agents over the in-process mailbox
// fabric, and prints the collected outfit.
//
// Configuration is read from styleagent.toml (or the standard config
// locations); without a file the mock provider is used, which makes
// the binary runnable offline.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Timwood0x10/StyleAgent/agent"
	"github.com/Timwood0x10/StyleAgent/config"
	"github.com/Timwood0x10/StyleAgent/shutdown"
)

// Shutdown phases: workers drain before shared infrastructure closes.
const (
	phaseWorkers = 10
	phaseRuntime = 20
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "styleagent:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, path, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	rt, err := agent.NewRuntime(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workers := agent.StartWorkers(ctx, rt)
	leader := agent.NewLeader(rt)

	coord := shutdown.NewCoordinator(shutdown.Config{DefaultTimeout: 15 * time.Second})
	coord.RegisterFuncWithPhase("workers", func(ctx context.Context) error {
		cancel()
		agent.StopWorkers(workers)
		return nil
	}, phaseWorkers)
	coord.RegisterFuncWithPhase("runtime", func(ctx context.Context) error {
		return rt.Close()
	}, phaseRuntime)
	coord.HandleSignals()

	fmt.Println("StyleAgent — outfit recommendations")
	if path != "" {
		fmt.Println("config:", path)
	} else {
		fmt.Println("config: defaults (provider:", cfg.LLM.Provider+")")
	}
	fmt.Println(`describe yourself, e.g. "Tom, male, 32 years old, programmer, feeling a bit down"`)
	fmt.Println(`type "quit" to exit`)
	fmt.Println()

	lines := make(chan string)
	go readLines(lines)

	for {
		fmt.Print("> ")
		select {
		case <-coord.Done():
			return coord.Err()
		case line, ok := <-lines:
			if !ok {
				coord.Trigger()
				<-coord.Done()
				return coord.Err()
			}
			input := strings.TrimSpace(line)
			switch input {
			case "":
				continue
			case "quit", "exit":
				coord.Trigger()
				<-coord.Done()
				return coord.Err()
			}

			result, err := leader.Process(ctx, input)
			if err != nil {
				fmt.Fprintln(os.Stderr, "request failed:", err)
				continue
			}
			fmt.Println()
			fmt.Println(result.Display())
			if dlq := rt.Fabric.AllDeadLetters(); len(dlq) > 0 {
				for recipient, entries := range dlq {
					fmt.Printf("note: %d dead-lettered message(s) for %s\n", len(entries), recipient)
				}
			}
			fmt.Println()
		}
	}
}

func readLines(out chan<- string) {
	defer close(out)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		out <- scanner.Text()
	}
}

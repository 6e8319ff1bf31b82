// ABOUTME: Command-line remote control for eTabla players
// ABOUTME: Finds a player via mDNS or -addr and sends one command
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Resonate-Protocol/etabla-go/internal/discovery"
	"github.com/Resonate-Protocol/etabla-go/internal/remote"
)

var (
	addr    = flag.String("addr", "", "Player address host:port (skip mDNS)")
	name    = flag.String("name", "etabla-ctl", "Controller name")
	timeout = flag.Duration("timeout", 5*time.Second, "Discovery and connect timeout")
	verbose = flag.Bool("v", false, "Log connection details")
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: etabla-ctl [flags] <command> [arg]

Commands:
  status            print the player state once
  play | stop | toggle
  tempo <bpm>       set tempo (40-300)
  key <name>        set key (C, C#, Db, ... B)
  pattern <taal>    switch taal
  fine <cents>      set fine-tune (-100..100)
  watch             print status and beats until interrupted

Flags:
`)
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}
	if !*verbose {
		log.SetOutput(io.Discard)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	target := *addr
	if target == "" {
		p, err := discover(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		target = p.Addr()
		fmt.Printf("Found %s at %s\n", p.Name, target)
	}

	dialCtx, dialCancel := context.WithTimeout(ctx, *timeout)
	c, err := remote.Dial(dialCtx, remote.ClientConfig{Addr: target, Name: *name})
	dialCancel()
	if err != nil {
		fatalf("connect %s: %v", target, err)
	}
	defer c.Close()

	if err := run(ctx, c, flag.Arg(0), flag.Args()[1:]); err != nil {
		fatalf("%v", err)
	}
}

func discover(ctx context.Context) (*discovery.PlayerInfo, error) {
	m := discovery.NewManager(discovery.Config{})
	defer m.Stop()
	if err := m.Browse(); err != nil {
		return nil, fmt.Errorf("discovery: %w", err)
	}

	select {
	case p := <-m.Players():
		return p, nil
	case <-time.After(*timeout):
		return nil, fmt.Errorf("no player found after %s", *timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func run(ctx context.Context, c *remote.Client, cmd string, args []string) error {
	arg := func() (string, error) {
		if len(args) != 1 {
			return "", fmt.Errorf("%s needs one argument", cmd)
		}
		return args[0], nil
	}
	number := func() (float64, error) {
		s, err := arg()
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%s: invalid number %q", cmd, s)
		}
		return v, nil
	}

	var err error
	switch cmd {
	case "status":
		return printNext(ctx, c)
	case "watch":
		return watch(ctx, c)
	case "play":
		err = c.Play()
	case "stop":
		err = c.Stop()
	case "toggle":
		err = c.Toggle()
	case "tempo":
		var v float64
		if v, err = number(); err == nil {
			err = c.SendRequest(remote.RequestPatch{Tempo: &v})
		}
	case "fine":
		var v float64
		if v, err = number(); err == nil {
			err = c.SendRequest(remote.RequestPatch{FineTune: &v})
		}
	case "key":
		var s string
		if s, err = arg(); err == nil {
			err = c.SendRequest(remote.RequestPatch{Key: &s})
		}
	case "pattern":
		var s string
		if s, err = arg(); err == nil {
			err = c.SendRequest(remote.RequestPatch{Pattern: &s})
		}
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		return err
	}

	// Give the player a moment to reject the command
	select {
	case e := <-c.Errors:
		return fmt.Errorf("%s rejected: %s", e.Error, e.Message)
	case <-time.After(300 * time.Millisecond):
		return nil
	}
}

func printNext(ctx context.Context, c *remote.Client) error {
	select {
	case st := <-c.Statuses:
		printStatus(st)
		return nil
	case <-c.Done():
		return fmt.Errorf("connection closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func watch(ctx context.Context, c *remote.Client) error {
	for {
		select {
		case st := <-c.Statuses:
			printStatus(st)
		case e := <-c.Errors:
			fmt.Printf("error: %s: %s\n", e.Error, e.Message)
		case <-c.Done():
			return fmt.Errorf("connection closed")
		case <-ctx.Done():
			return nil
		}
	}
}

func printStatus(st remote.StatusPayload) {
	line := fmt.Sprintf("%-9s %s %.0f BPM %s", st.State, st.Pattern, st.Tempo, st.Key)
	if st.FineTune != 0 {
		line += fmt.Sprintf(" %+.0f¢", st.FineTune)
	}
	if st.SourcePath != "" {
		line += fmt.Sprintf("  [%s x%.3f %+.2fst]", st.SourcePath, st.TempoRatio, st.Semitones)
	}
	if st.Playing && st.BeatsPerCycle > 0 && st.Beat > 0 {
		line += fmt.Sprintf("  beat %d/%d", st.Beat, st.BeatsPerCycle)
	}
	if st.Error != "" {
		line += "  error: " + st.Error
	}
	fmt.Println(line)
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "etabla-ctl: "+format+"\n", args...)
	os.Exit(1)
}

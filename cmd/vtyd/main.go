package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/drake/vty/config"
	"github.com/drake/vty/debug"
	"github.com/drake/vty/engine"
	"github.com/drake/vty/network"
	"github.com/drake/vty/session"
)

func main() {
	listen := flag.String("listen", config.ListenAddress(), "listen address")
	prompt := flag.String("prompt", "vty> ", "session prompt")
	password := flag.String("password", "", "require this password at session start")
	flag.Parse()
	userScripts := flag.Args()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := network.NewServer(network.HandlerFunc(func(ctx context.Context, c *network.Conn) {
		cfg := session.Config{
			Prompt:      *prompt,
			IdleTimeout: config.IdleTimeout(),
		}
		if *password != "" {
			cfg.Login = loginFunc(*password)
		}

		sess := session.New(c, session.HandlerFunc(handleLine), cfg)

		// Scripting: init.lua plus any scripts named on the command
		// line. A script error is reported but not fatal.
		eng := engine.NewEngine(sess)
		if err := eng.Init(); err == nil {
			defer eng.Close()
			if _, statErr := os.Stat(config.InitFile()); statErr == nil {
				if err := eng.DoFile(config.InitFile()); err != nil {
					sess.Printf("init.lua: %v\n", err)
				}
			}
			if err := eng.LoadUserScripts(userScripts); err != nil {
				sess.Printf("scripts: %v\n", err)
			}
			sess.AttachEngine(eng)
		}

		if err := sess.Run(ctx); err != nil {
			log.Printf("session %v: %v", c.RemoteAddr(), err)
		}
	}))

	if err := srv.Listen(ctx, *listen); err != nil {
		fmt.Fprintln(os.Stderr, "listen:", err)
		os.Exit(1)
	}
	defer srv.Close()
	log.Printf("vtyd listening on %v", srv.Addr())

	debug.NewMonitor(ctx, srv).Start()

	<-ctx.Done()
}

// loginFunc builds the password gate for new sessions.
func loginFunc(want string) func(*session.Session) error {
	return func(s *session.Session) error {
		for tries := 0; tries < 3; tries++ {
			got, err := s.PromptPassword("Password: ")
			if err != nil {
				return err
			}
			if got == want {
				return nil
			}
			s.WriteString("Bad password.\n")
		}
		s.WriteString("Too many failures.\n")
		return fmt.Errorf("authentication failed")
	}
}

// handleLine is the demo command set.
func handleLine(s *session.Session, line string) {
	cmd, rest, _ := strings.Cut(strings.TrimSpace(line), " ")

	switch cmd {
	case "":

	case "help":
		s.WriteString("commands: help echo window term page confirm quit\n")

	case "echo":
		s.Printf("%s\n", rest)

	case "window":
		if cols, rows, ok := s.Conn().Negotiator().WindowSize(); ok {
			s.Printf("window: %d x %d\n", cols, rows)
		} else {
			s.WriteString("window: not reported\n")
		}

	case "term":
		if tt := s.Conn().Negotiator().TerminalType(); tt != "" {
			s.Printf("terminal: %s\n", tt)
		} else {
			s.WriteString("terminal: not reported\n")
		}

	case "page":
		n, err := strconv.Atoi(rest)
		if err != nil || n <= 0 {
			n = 50
		}
		page(s, n)

	case "confirm":
		k, err := s.PromptKey("Proceed? [y/n] ")
		if err != nil {
			return
		}
		s.WriteString("\n")
		if k.Value == 'y' || k.Value == 'Y' {
			s.WriteString("confirmed\n")
		} else {
			s.WriteString("cancelled\n")
		}

	case "quit", "exit":
		s.WriteString("bye\n")
		s.Quit()

	default:
		s.Printf("unknown command: %s\n", cmd)
	}
}

// page prints numbered lines with a --More-- stop every screenful,
// the single-keystroke prompt the steal path exists for.
func page(s *session.Session, n int) {
	const screen = 20
	for i := 1; i <= n; i++ {
		s.Printf("line %d of %d\n", i, n)
		if i%screen == 0 && i < n {
			k, err := s.PromptKey("--More--")
			if err != nil {
				return
			}
			s.WriteString("\r        \r")
			if k.Value == 'q' || k.Value == 'Q' {
				return
			}
		}
	}
}

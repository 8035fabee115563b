package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NicolasHaas/cliniclink/pkg/app"
	"github.com/NicolasHaas/cliniclink/pkg/config"
	"github.com/NicolasHaas/cliniclink/pkg/logging"
	"github.com/NicolasHaas/cliniclink/pkg/realtime"
	"github.com/NicolasHaas/cliniclink/pkg/version"
)

const usage = `usage: clinicctl [flags] <command> [args]

commands:
  login <email> <password>   authenticate and store the session
  logout                     close the channel and forget the session
  whoami                     print the stored session and the server profile
  appointments [status]      list appointments
  doctors                    list doctors
  pending                    list accounts awaiting approval (clerk)
  approve <user-id>          approve an account (clerk)
  reject <user-id>           reject an account (clerk)
  watch                      stream realtime events as JSON lines
  version                    print the build version

flags:
`

func main() {
	cfgPath := flag.String("config", "", "YAML config file (default "+config.DefaultPath()+")")
	apiURL := flag.String("api", "", "API base URL, overrides the config file")
	wsURL := flag.String("ws", "", "WebSocket URL, overrides the config file")
	dbPath := flag.String("db", "", "session database path, overrides the config file")
	metricsAddr := flag.String("metrics", "", "HTTP bind address for /metrics while watching (empty to disable)")
	logLevel := flag.String("log-level", "", "Log level: "+logging.LevelNames())
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if flag.Arg(0) == "version" {
		fmt.Println(version.Full())
		return
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if *apiURL != "" {
		cfg.APIBaseURL = *apiURL
	}
	if *wsURL != "" {
		cfg.WSURL = *wsURL
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	if err := logging.Setup(cfg.Logging()); err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging config: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, flag.Arg(0), flag.Args()[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "clinicctl: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, cmd string, args []string) error {
	a, err := app.Open(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Warn("close", "err", err)
		}
	}()

	switch cmd {
	case "login":
		if len(args) != 2 {
			return errors.New("login needs <email> <password>")
		}
		data, err := a.API.Auth.Login(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("logged in as %s %s (%s)\n", data.FirstName, data.LastName, data.Role)
		return nil

	case "logout":
		return a.Logout()

	case "whoami":
		sess := a.Sessions.Get()
		if !sess.LoggedIn {
			fmt.Println("not logged in")
			return nil
		}
		me, err := a.API.Users.Me(ctx)
		if err != nil {
			return err
		}
		return printJSON(map[string]any{
			"session": map[string]string{
				"userId": sess.UserID,
				"role":   sess.Role,
				"name":   sess.DisplayName,
				"token":  logging.Redact(sess.Token),
			},
			"profile": me,
		})

	case "appointments":
		status := ""
		if len(args) > 0 {
			status = args[0]
		}
		list, err := a.API.Appointments.List(ctx, status)
		if err != nil {
			return err
		}
		return printJSON(list)

	case "doctors":
		list, err := a.API.Doctors.List(ctx)
		if err != nil {
			return err
		}
		return printJSON(list)

	case "pending":
		list, err := a.API.Users.Pending(ctx)
		if err != nil {
			return err
		}
		return printJSON(list)

	case "approve", "reject":
		if len(args) != 1 {
			return fmt.Errorf("%s needs <user-id>", cmd)
		}
		if cmd == "approve" {
			return a.API.Users.Approve(ctx, args[0])
		}
		return a.API.Users.Reject(ctx, args[0])

	case "watch":
		return watch(ctx, a)

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// watch prints every realtime event until interrupted.
func watch(ctx context.Context, a *app.App) error {
	if !a.Sessions.Get().LoggedIn {
		return errors.New("not logged in")
	}
	a.Metrics.Serve(ctx, a.Config.MetricsAddr)
	a.Metrics.StartPeriodicLog(time.Minute, ctx.Done())

	enc := json.NewEncoder(os.Stdout)
	a.Channel.Subscribe(realtime.Subscriber{
		OnEvent: func(e realtime.Event) {
			_ = enc.Encode(map[string]any{"event": e.Name(), "data": e.Payload()})
		},
		OnStateChange: func(s realtime.State) {
			slog.Info("channel", "state", s.String())
		},
		OnError: func(err error) {
			slog.Warn("channel error", "err", err, "cause", errors.Unwrap(err))
		},
	})
	a.Resume()

	<-ctx.Done()
	a.Channel.Disconnect()
	a.Metrics.LogSummary()
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

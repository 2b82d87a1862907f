package main

import (
	"bufio"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/ghalamif/AegisSense"
	"github.com/ghalamif/AegisSense/internal/status"
	"github.com/ghalamif/AegisSense/internal/tui"
)

//go:embed assets/banner_color.ansi
var bannerColor string

//go:embed assets/banner_plain.txt
var bannerPlain string

const defaultConfig = "./data/config.yaml"

func main() {
	if len(os.Args) < 2 {
		fmt.Print(selectBanner())
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "run":
		fmt.Print(selectBanner())
		err = runCommand(os.Args[2:])
	case "validate":
		err = validateCommand(os.Args[2:])
	case "status":
		err = statusCommand(os.Args[2:])
	case "toggle", "pause", "resume":
		err = acquisitionCommand(cmd, os.Args[2:])
	case "stats":
		err = statsCommand(os.Args[2:])
	case "help", "-h", "--help":
		fmt.Print(selectBanner())
		printUsage()
		return
	default:
		printUsage()
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		log.Fatalf("aegis-sense %s: %v", cmd, err)
	}
}

func runCommand(args []string) error {
	fs := pflag.NewFlagSet("run", pflag.ExitOnError)
	cfgPath := fs.StringP("config", "c", defaultConfig, "Path to configuration file")
	address := fs.String("address", "", "Connect to this peripheral address without scanning")
	resume := fs.Bool("resume", false, "Start with acquisition running instead of paused")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := aegissense.LoadConfig(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *address != "" {
		cfg.Peripheral.Address = *address
		cfg.Peripheral.SkipDiscovery = true
	}
	if *resume {
		paused := false
		cfg.Acquisition.StartPaused = &paused
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := aegissense.NewRuntime(cfg)
	if err != nil {
		return err
	}
	if err := rt.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func validateCommand(args []string) error {
	fs := pflag.NewFlagSet("validate", pflag.ExitOnError)
	cfgPath := fs.StringP("config", "c", defaultConfig, "Path to configuration file to validate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if _, err := aegissense.LoadConfig(*cfgPath); err != nil {
		return err
	}
	fmt.Printf("config %s looks good\n", *cfgPath)
	return nil
}

// statusCommand opens the live panel on a terminal and prints one snapshot
// otherwise.
func statusCommand(args []string) error {
	fs := pflag.NewFlagSet("status", pflag.ExitOnError)
	addr := fs.StringP("addr", "a", ":9100", "Status server address")
	interval := fs.Duration("interval", time.Second, "Refresh interval of the live panel")
	once := fs.Bool("once", false, "Print a single snapshot and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := status.NewClient(*addr, nil)
	if !*once && term.IsTerminal(int(os.Stdout.Fd())) {
		err := tui.Run(ctx, client, *interval)
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	st, err := client.Status(ctx)
	if err != nil {
		return err
	}
	printStatus(st)
	return nil
}

func acquisitionCommand(cmd string, args []string) error {
	fs := pflag.NewFlagSet(cmd, pflag.ExitOnError)
	addr := fs.StringP("addr", "a", ":9100", "Status server address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := status.NewClient(*addr, nil)
	var (
		st  status.Status
		err error
	)
	switch cmd {
	case "pause":
		st, err = client.SetPaused(ctx, true)
	case "resume":
		st, err = client.SetPaused(ctx, false)
	default:
		st, err = client.Toggle(ctx)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Acquisition: %s\n", st.Acquisition)
	return nil
}

func printStatus(st status.Status) {
	fmt.Printf("Acquisition: %s\n", st.Acquisition)
	fmt.Printf("Last Message: %s\n", st.LastMessage)
	fmt.Printf("Link: %s %s\n", st.LinkState, st.Address)
	fmt.Printf("Messages: %d (last %.3fs apart)\n", st.Messages, st.DeltaSeconds)
	if len(st.Row) == len(st.Header) {
		for i, h := range st.Header {
			fmt.Printf("  %-14s %s\n", h, st.Row[i])
		}
	}
}

func selectBanner() string {
	if os.Getenv("NO_COLOR") != "" || !term.IsTerminal(int(os.Stdout.Fd())) {
		return bannerPlain
	}
	return bannerColor
}

func statsCommand(args []string) error {
	fs := pflag.NewFlagSet("stats", pflag.ExitOnError)
	url := fs.String("url", "http://localhost:9100/metrics", "Prometheus metrics endpoint")
	interval := fs.Duration("interval", 2*time.Second, "Refresh interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	fmt.Printf("Streaming metrics from %s (Ctrl+C to stop)\n", *url)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := printMetricsSnapshot(ctx, *url); err != nil {
				fmt.Fprintf(os.Stderr, "stats error: %v\n", err)
			}
		}
	}
}

var statsTargets = []string{
	"aegis_notifications_received_total",
	"aegis_records_written_total",
	"aegis_records_degraded_total",
	"aegis_acquisition_running",
	"aegis_supervisor_state",
	"aegis_queue_length",
	"aegis_wal_size_bytes",
}

func printMetricsSnapshot(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	values := make(map[string]float64, len(statsTargets))
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		for _, key := range statsTargets {
			if strings.HasPrefix(line, key+" ") {
				var value float64
				if _, err := fmt.Sscanf(line, key+" %g", &value); err == nil {
					values[key] = value
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	fmt.Printf("[%s] received=%.0f written=%.0f degraded=%.0f running=%.0f state=%.0f queue=%.0f wal_bytes=%.0f\n",
		time.Now().Format(time.RFC3339),
		values["aegis_notifications_received_total"],
		values["aegis_records_written_total"],
		values["aegis_records_degraded_total"],
		values["aegis_acquisition_running"],
		values["aegis_supervisor_state"],
		values["aegis_queue_length"],
		values["aegis_wal_size_bytes"],
	)
	return nil
}

func printUsage() {
	fmt.Printf(`AegisSense CLI

Usage:
  aegis-sense <command> [flags]

Commands:
  run        Connect to the sensor and record telemetry using the provided config
  validate   Load and validate a config file without starting the runtime
  status     Show the live status panel (space toggles acquisition)
  toggle     Flip acquisition between Running and Paused
  pause      Pause acquisition
  resume     Resume acquisition
  stats      Poll the Prometheus metrics endpoint and print live counters

Examples:
  aegis-sense run --config ./data/config.yaml
  aegis-sense run --address AA:BB:CC:DD:EE:FF --resume
  aegis-sense status --addr localhost:9100
  aegis-sense stats --url http://localhost:9100/metrics --interval 1s
`)
}

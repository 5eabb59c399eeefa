package main

import (
	"bufio"
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/waitroll/waitroll/internal/config"
	"github.com/waitroll/waitroll/internal/history"
	"github.com/waitroll/waitroll/internal/logging"
	"github.com/waitroll/waitroll/internal/proxy"
	"github.com/waitroll/waitroll/internal/runner"
	"github.com/waitroll/waitroll/internal/submit"
	"github.com/waitroll/waitroll/internal/web"
)

var (
	cfgFile string
	verbose bool
)

func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

// loadConfig falls back to built-in defaults when no config file exists yet.
func loadConfig() (*config.Config, error) {
	path := resolveConfigPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.Default(), nil
	}
	return config.Load(path)
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "waitroll",
		Short: "Waitroll - bulk waitlist signup automation",
		Long: `Waitroll submits a list of email addresses to a waitlist API, one at a
time, rotating outbound proxies and randomizing the occupation field per
request. Every outcome is appended to a per-run result file and kept in a
local submission history.`,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.waitroll/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug logs")

	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	var (
		emailsFile  string
		proxiesFile string
		resultsFile string
		delayMin    float64
		delayMax    float64
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Submit all listed email addresses to the waitlist",
		Long: `Load the email list and proxy list, then submit each address in order
through a randomly chosen proxy, pacing submissions with a randomized delay.

One result line per email is written to the results file as soon as the
outcome is known, so an interrupted run still leaves a valid prefix.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if emailsFile != "" {
				cfg.Inputs.Emails = emailsFile
			}
			if proxiesFile != "" {
				cfg.Inputs.Proxies = proxiesFile
			}
			if resultsFile != "" {
				cfg.Output.Results = resultsFile
			}
			if cmd.Flags().Changed("delay-min") {
				cfg.Delay.MinSeconds = delayMin
			}
			if cmd.Flags().Changed("delay-max") {
				cfg.Delay.MaxSeconds = delayMax
			}

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			return runRun(cfg)
		},
	}

	cmd.Flags().StringVar(&emailsFile, "emails", "", "email list file (one address per line)")
	cmd.Flags().StringVar(&proxiesFile, "proxies", "", "proxy list file (host:port:username:password per line)")
	cmd.Flags().StringVar(&resultsFile, "results", "", "result file to write")
	cmd.Flags().Float64Var(&delayMin, "delay-min", 0, "minimum delay between submissions in seconds")
	cmd.Flags().Float64Var(&delayMax, "delay-max", 0, "maximum delay between submissions in seconds")

	return cmd
}

func runRun(cfg *config.Config) error {
	log, closeLog, err := logging.New(cfg.Output.Log, verbose)
	if err != nil {
		return err
	}
	defer closeLog()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	pool := proxy.Load(cfg.Inputs.Proxies, rng, log)

	// History recording is best-effort; the run proceeds without it.
	var rec submit.Recorder
	store, err := history.NewStore(history.DefaultDBPath())
	if err != nil {
		log.Warn("failed to open submission history", "err", err)
	} else {
		defer store.Close()
		rec = store
	}

	client := submit.New(
		cfg.Waitlist.URL,
		time.Duration(cfg.Waitlist.TimeoutSeconds)*time.Second,
		pool,
		rng,
		rec,
		log,
	)

	r := runner.New(client, rng, log, runner.Options{
		ResultsPath:     cfg.Output.Results,
		DelayMinSeconds: cfg.Delay.MinSeconds,
		DelayMaxSeconds: cfg.Delay.MaxSeconds,
	})

	tally, err := r.Run(context.Background(), cfg.Inputs.Emails)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("📊 Complete: %d successful, %d failed\n", tally.Succeeded, tally.Failed)
	return nil
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long:  "Create a new configuration file with input paths and pacing settings.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit()
		},
	}
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("⚙️  Waitroll Configuration Setup")
	fmt.Println("================================")
	fmt.Println()

	cfg := config.Default()

	fmt.Println("📋 Input files")
	fmt.Println()
	if v := prompt(reader, fmt.Sprintf("Email list [%s]: ", cfg.Inputs.Emails)); v != "" {
		cfg.Inputs.Emails = v
	}
	if v := prompt(reader, fmt.Sprintf("Proxy list [%s]: ", cfg.Inputs.Proxies)); v != "" {
		cfg.Inputs.Proxies = v
	}

	fmt.Println()
	fmt.Println("📤 Output files")
	fmt.Println()
	if v := prompt(reader, fmt.Sprintf("Results file [%s]: ", cfg.Output.Results)); v != "" {
		cfg.Output.Results = v
	}
	if v := prompt(reader, fmt.Sprintf("Log file [%s]: ", cfg.Output.Log)); v != "" {
		cfg.Output.Log = v
	}

	fmt.Println()
	fmt.Println("⏱️  Pacing")
	fmt.Println("  (the delay between submissions is drawn uniformly from this range)")
	fmt.Println()
	cfg.Delay.MinSeconds = promptFloat(reader, "Minimum delay in seconds: ")
	cfg.Delay.MaxSeconds = promptFloat(reader, "Maximum delay in seconds: ")

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	configPath := resolveConfigPath()
	if err := config.Save(configPath, cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Println()
	fmt.Printf("✅ Configuration saved to: %s\n", configPath)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Printf("  1. Put one email address per line in %s\n", cfg.Inputs.Emails)
	fmt.Printf("  2. Put host:port:username:password proxies in %s (optional)\n", cfg.Inputs.Proxies)
	fmt.Println("  3. Run 'waitroll check' to verify the proxy list")
	fmt.Println("  4. Run 'waitroll run' to start submitting")

	return nil
}

func checkCmd() *cobra.Command {
	var (
		proxiesFile string
		proxyType   string
		probeURL    string
		timeoutSec  int
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check which proxies in the list are alive",
		Long: `Probe every proxy in the list, in order, by fetching a probe URL through
it. Supports HTTP CONNECT proxies and SOCKS5 (--type socks5).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if proxiesFile == "" {
				proxiesFile = cfg.Inputs.Proxies
			}
			return runCheck(cfg, proxiesFile, proxyType, probeURL, timeoutSec)
		},
	}

	cmd.Flags().StringVar(&proxiesFile, "proxies", "", "proxy list file (default from config)")
	cmd.Flags().StringVar(&proxyType, "type", proxy.CheckHTTP, "proxy type: http | socks5")
	cmd.Flags().StringVar(&probeURL, "probe", "http://httpbin.org/get", "URL fetched through each proxy")
	cmd.Flags().IntVar(&timeoutSec, "timeout", 10, "timeout in seconds per proxy")

	return cmd
}

func runCheck(cfg *config.Config, proxiesFile, proxyType, probeURL string, timeoutSec int) error {
	log, closeLog, err := logging.New(cfg.Output.Log, verbose)
	if err != nil {
		return err
	}
	defer closeLog()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	pool := proxy.Load(proxiesFile, rng, log)
	if pool.Len() == 0 {
		fmt.Println("No proxies to check.")
		return nil
	}

	fmt.Printf("🔎 Checking %d proxies...\n", pool.Len())
	fmt.Println()

	results := pool.CheckAll(context.Background(), proxy.CheckOptions{
		ProbeURL: probeURL,
		Type:     proxyType,
		Timeout:  time.Duration(timeoutSec) * time.Second,
	})

	alive := 0
	for i, res := range results {
		addr := res.Record.Host + ":" + res.Record.Port
		if res.Alive {
			alive++
			fmt.Printf("[%d/%d] ✅ %s (%d, %dms)\n", i+1, len(results), addr, res.StatusCode, res.LatencyMs)
		} else {
			fmt.Printf("[%d/%d] ❌ %s (%s)\n", i+1, len(results), addr, res.Err)
		}
	}

	fmt.Println()
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("📊 Alive: %d/%d\n", alive, len(results))
	return nil
}

func statusCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show submission history and statistics",
		Long:  "Display recent submissions and overall statistics from the local history.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Number of recent submissions to show")

	return cmd
}

func runStatus(limit int) error {
	store, err := history.NewStore(history.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer store.Close()

	total, succeeded, failed, err := store.Stats()
	if err != nil {
		return fmt.Errorf("failed to get stats: %w", err)
	}

	monthSucceeded, monthFailed, err := store.MonthlyStats()
	if err != nil {
		return fmt.Errorf("failed to get monthly stats: %w", err)
	}

	fmt.Println("📊 Waitroll Statistics")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()
	fmt.Println("All Time:")
	fmt.Printf("  Total submissions: %d\n", total)
	fmt.Printf("  Successful: %d\n", succeeded)
	fmt.Printf("  Failed: %d\n", failed)
	fmt.Println()
	fmt.Println("This Month:")
	fmt.Printf("  Successful: %d\n", monthSucceeded)
	fmt.Printf("  Failed: %d\n", monthFailed)

	records, err := store.Recent(limit)
	if err != nil {
		return fmt.Errorf("failed to get recent submissions: %w", err)
	}

	if len(records) > 0 {
		fmt.Println()
		fmt.Printf("📜 Recent Submissions (last %d)\n", limit)
		fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

		for _, r := range records {
			status := "✅"
			if !r.Success {
				status = "❌"
			}
			fmt.Printf("%s %s - %s (%s)\n",
				status,
				r.SubmittedAt.Format("2006-01-02 15:04"),
				r.Email,
				r.Occupation,
			)
		}
	}

	return nil
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the submission history over a local JSON API",
		Long: `Start a local read-only JSON API over the submission history:

  GET /api/stats        overall and monthly counters
  GET /api/submissions  recent submissions (?limit=N)

The server binds to localhost only.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 8080, "Port to listen on")

	return cmd
}

func runServe(port int) error {
	store, err := history.NewStore(history.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer store.Close()

	server := web.NewServer(port, store)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	return server.Start()
}

func prompt(reader *bufio.Reader, message string) string {
	fmt.Print(message)
	input, err := reader.ReadString('\n')
	if err != nil {
		return ""
	}
	return strings.TrimSpace(input)
}

func promptFloat(reader *bufio.Reader, message string) float64 {
	for {
		v := prompt(reader, message)
		f, err := strconv.ParseFloat(v, 64)
		if err == nil && f >= 0 {
			return f
		}
		fmt.Println("  Please enter a non-negative number.")
	}
}

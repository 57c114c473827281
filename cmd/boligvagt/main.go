package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/boligvagt/boligvagt/internal/browser"
	"github.com/boligvagt/boligvagt/internal/config"
	"github.com/boligvagt/boligvagt/internal/history"
	"github.com/boligvagt/boligvagt/internal/inbox"
	"github.com/boligvagt/boligvagt/internal/notify"
	"github.com/boligvagt/boligvagt/internal/template"
	"github.com/boligvagt/boligvagt/internal/term"
	"github.com/boligvagt/boligvagt/internal/web"
)

var cfgFile string

// errSessionExpired aborts a run when the portal no longer accepts the
// configured cookies. Retrying other listings would only repeat the failure.
var errSessionExpired = errors.New("portal session expired")

func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "boligvagt",
		Short: "Boligvagt - Automated rental listing watcher for Boligportal",
		Long: `Boligvagt polls a mailbox for Boligportal digest emails, opens each new
listing in a headless browser, filters out blocked keywords and short-term
leases, and sends a prewritten contact message to the landlord.

Every processed listing is recorded locally and can be inspected with the
status command or the web dashboard.`,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.boligvagt/config.yaml)")

	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(onceCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(classifyCmd())
	rootCmd.AddCommand(linksCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long:  "Create a new configuration file with your mailbox, portal and notification settings.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit()
		},
	}
}

func onceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Process unread digest emails once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce()
		},
	}
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch the mailbox and process digests as they arrive",
		Long: `Process any unread digest emails, then keep an IMAP IDLE connection open
and handle new digests the moment they land. Runs until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch()
		},
	}
}

func classifyCmd() *cobra.Command {
	var threshold float64

	cmd := &cobra.Command{
		Use:   "classify [text]",
		Short: "Classify a listing text as short-term or not",
		Long: `Run the short-term lease classifier over a listing text given as an
argument, or over stdin when no argument is given. Prints the result as JSON.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClassify(args, threshold)
		},
	}

	cmd.Flags().Float64Var(&threshold, "months", 0, "short-term cutoff in months (default from config or SHORT_TERM_MONTHS)")

	return cmd
}

func linksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "links [file]",
		Short: "Extract listing links from a digest email HTML file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLinks(args)
		},
	}
}

func statusCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show processed listings and statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "number of recent listings to show")

	return cmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the local web dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("🏠 Boligvagt Configuration Setup")
	fmt.Println("================================")
	fmt.Println()

	cfg := &config.Config{}

	fmt.Println("📬 Mailbox receiving Boligportal digests")
	fmt.Println("  (For Gmail, generate an App Password at https://myaccount.google.com/apppasswords)")
	fmt.Println()

	provider := prompt(reader, "Provider (gmail/outlook/imap) [gmail]: ")
	if provider == "" {
		provider = "gmail"
	}
	cfg.Inbox.Provider = provider
	if provider == "imap" {
		cfg.Inbox.Server = prompt(reader, "IMAP server: ")
		cfg.Inbox.Port = 993
	}
	cfg.Inbox.Email = prompt(reader, "Email address: ")
	cfg.Inbox.Password = prompt(reader, "App password: ")

	fmt.Println()
	fmt.Println("🏠 Portal settings")
	fmt.Println()

	msg := prompt(reader, "Contact message for landlords (enter to keep the default): ")
	if msg != "" {
		cfg.Portal.Message = msg
	}
	cfg.Portal.BlockKeywords = prompt(reader, "Block keywords, comma separated (optional): ")

	fmt.Println()
	fmt.Println("🍪 Portal session")
	fmt.Println("  Export your boligportal.dk cookies to a JSON file while logged in.")
	fmt.Println()
	cfg.Browser.CookiesPath = prompt(reader, "Path to cookies JSON file: ")

	fmt.Println()
	fmt.Println("🔔 Notifications (optional)")
	fmt.Println()
	cfg.Notify.DiscordWebhookURL = prompt(reader, "Discord webhook URL (optional): ")

	configPath := resolveConfigPath()
	if err := config.Save(configPath, cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Println()
	fmt.Printf("✅ Configuration saved to: %s\n", configPath)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Review and edit the config file if needed")
	fmt.Println("  2. Run 'boligvagt once' to process unread digests")
	fmt.Println("  3. Run 'boligvagt watch' to keep watching the mailbox")
	fmt.Println("  4. Run 'boligvagt serve' for the dashboard")

	return nil
}

func runOnce() error {
	cfg, store, notifiers, err := setup()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := signalContext()
	defer cancel()

	monitor := inbox.NewMonitor(cfg.Inbox, cfg.Portal.FromAddress)
	if err := monitor.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to inbox: %w", err)
	}
	defer monitor.Disconnect()

	emails, err := monitor.FetchUnreadDigests(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch digests: %w", err)
	}
	if len(emails) == 0 {
		fmt.Println("No unread digest emails found.")
		return nil
	}

	fmt.Printf("📨 Found %d unread digest(s)\n", len(emails))
	for _, email := range emails {
		if err := processDigest(ctx, cfg, store, notifiers, monitor, email); err != nil {
			if errors.Is(err, errSessionExpired) {
				return err
			}
			fmt.Printf("⚠️  Digest %q: %v\n", email.Subject, err)
		}
	}
	return nil
}

func runWatch() error {
	cfg, store, notifiers, err := setup()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := signalContext()
	defer cancel()

	monitor := inbox.NewMonitor(cfg.Inbox, cfg.Portal.FromAddress)
	if err := monitor.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to inbox: %w", err)
	}
	defer monitor.Disconnect()

	// Catch up on anything that arrived while we were not running.
	emails, err := monitor.FetchUnreadDigests(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch digests: %w", err)
	}
	for _, email := range emails {
		if err := processDigest(ctx, cfg, store, notifiers, monitor, email); err != nil {
			if errors.Is(err, errSessionExpired) {
				return err
			}
			fmt.Printf("⚠️  Digest %q: %v\n", email.Subject, err)
		}
	}

	fmt.Println("👀 Watching for new digests... (Ctrl+C to stop)")
	err = monitor.WatchForDigests(ctx, func(email inbox.Email) {
		fmt.Printf("📨 New digest: %s\n", email.Subject)
		if err := processDigest(ctx, cfg, store, notifiers, monitor, email); err != nil {
			fmt.Printf("⚠️  Digest %q: %v\n", email.Subject, err)
			if errors.Is(err, errSessionExpired) {
				cancel()
			}
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("watch error: %w", err)
	}
	return nil
}

// processDigest extracts the listing links from one digest email, walks each
// new listing in a fresh browser session, and marks the email as read.
func processDigest(ctx context.Context, cfg *config.Config, store *history.Store, notifiers notify.Multi, monitor *inbox.Monitor, email inbox.Email) error {
	if email.MessageID != "" {
		done, err := store.IsMessageProcessed(email.MessageID)
		if err == nil && done {
			return nil
		}
	}

	html := email.HTMLBody
	if html == "" {
		html = email.Body
	}
	links, err := inbox.ExtractListingLinks(html)
	if err != nil {
		return fmt.Errorf("failed to parse digest: %w", err)
	}

	fmt.Printf("🧩 Digest %q: %d listing link(s)\n", email.Subject, len(links))
	notifiers.Notify(ctx, notify.EventParsed, "", fmt.Sprintf("%d", len(links)))

	var fresh []string
	for _, link := range links {
		seen, err := store.HasListing(link)
		if err != nil {
			return err
		}
		if !seen {
			fresh = append(fresh, link)
		}
	}

	if len(fresh) > 0 {
		if err := walkListings(ctx, cfg, store, notifiers, fresh); err != nil {
			return err
		}
	}

	// The digest is done, even if individual listings failed; failures are
	// recorded per listing and retrying the whole email would redo contacts.
	if email.UID > 0 {
		if err := monitor.MarkSeen([]uint32{email.UID}); err != nil {
			fmt.Printf("⚠️  Could not mark digest as read: %v\n", err)
		}
	}
	if email.MessageID != "" {
		if err := store.MarkMessageProcessed(email.MessageID); err != nil {
			fmt.Printf("⚠️  Could not record digest: %v\n", err)
		}
	}
	return nil
}

func walkListings(ctx context.Context, cfg *config.Config, store *history.Store, notifiers notify.Multi, links []string) error {
	cookies, err := browser.LoadCookies(cfg.Browser.CookiesJSON, cfg.Browser.CookiesPath)
	if err != nil {
		return fmt.Errorf("failed to load cookies: %w", err)
	}

	msgEngine, err := template.NewEngine(cfg.Portal.Message)
	if err != nil {
		return err
	}

	bcfg := browser.DefaultConfig()
	bcfg.Headless = cfg.Browser.Headless
	bcfg.ScreenshotDir = cfg.Browser.ScreenshotDir
	if cfg.Browser.TimeoutSec > 0 {
		bcfg.Timeout = time.Duration(cfg.Browser.TimeoutSec) * time.Second
	}

	session, err := browser.New(bcfg)
	if err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	defer session.Close()

	if err := session.SetCookies(cookies); err != nil {
		return fmt.Errorf("failed to set cookies: %w", err)
	}

	for i, link := range links {
		fmt.Printf("  [%d/%d] %s\n", i+1, len(links), link)
		if err := processListing(ctx, cfg, store, notifiers, session, msgEngine, link); err != nil {
			if errors.Is(err, errSessionExpired) {
				return err
			}
			fmt.Printf("      ⚠️  %v\n", err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

func processListing(ctx context.Context, cfg *config.Config, store *history.Store, notifiers notify.Multi, session *browser.Session, msgEngine *template.Engine, url string) error {
	if err := session.Visit(url); err != nil {
		recordListing(store, url, "", history.StatusFailed, nil, err.Error())
		notifiers.Notify(ctx, notify.EventFailed, url, err.Error())
		return err
	}

	valid, err := session.SessionValid()
	if err != nil {
		return err
	}
	if !valid {
		notifiers.Notify(ctx, notify.EventExpiredSession, url, "Cookies are invalid or expired")
		return errSessionExpired
	}

	if challenge, err := session.DetectChallenge(); err == nil && challenge.Found {
		fmt.Printf("      ⏭️  %s\n", challenge.Description)
		recordListing(store, url, "", history.StatusSkipped, nil, challenge.Description)
		notifiers.Notify(ctx, notify.EventSkipped, url, challenge.Description)
		return nil
	}

	if current, err := session.CurrentURL(); err == nil && browser.AlreadyContacted(current) {
		fmt.Println("      ℹ️  Already contacted")
		recordListing(store, url, "", history.StatusAlready, nil, "")
		notifiers.Notify(ctx, notify.EventAlready, url, "")
		return nil
	}

	info, err := session.Info()
	if err != nil {
		fmt.Printf("      ⚠️  Could not read listing info: %v\n", err)
	}
	detail := strings.TrimSpace(strings.Join([]string{info.Title, info.Address}, " | "))
	detail = strings.Trim(detail, " |")

	if keyword, blocked, err := session.BlockKeywordMatch(cfg.BlockKeywordList()); err == nil && blocked {
		fmt.Printf("      🚫 Blocked keyword: %s\n", keyword)
		l := &history.Listing{URL: url, Title: info.Title, Status: history.StatusBlocked, BlockKeyword: keyword}
		if err := store.AddListing(l); err != nil {
			fmt.Printf("      ⚠️  Could not record listing: %v\n", err)
		}
		notifiers.Notify(ctx, notify.EventBlocked, url, keyword)
		return nil
	}

	text, err := session.ListingText()
	if err != nil {
		fmt.Printf("      ⚠️  Could not read listing text: %v\n", err)
	}

	shortTermSuspected := false
	var res term.Result
	if text != "" {
		res = term.Classify(text, cfg.Portal.ThresholdMonths, time.Now())
		if res.IsShortTerm {
			if res.Confidence == term.ConfidenceHigh {
				fmt.Printf("      ⏳ Short-term: %s\n", res.Reason)
				recordListing(store, url, info.Title, history.StatusShortTerm, &res, "")
				notifiers.Notify(ctx, notify.EventShortTerm, url, res.Reason)
				return nil
			}
			// Lower confidence still contacts, but flags the notification.
			shortTermSuspected = true
		}
	}

	message, err := msgEngine.Render(info.Title, info.Address, url)
	if err != nil {
		return err
	}
	if err := session.Contact(message); err != nil {
		switch {
		case errors.Is(err, browser.ErrAlreadyContacted):
			fmt.Println("      ℹ️  Already contacted")
			recordListing(store, url, info.Title, history.StatusAlready, nil, "")
			notifiers.Notify(ctx, notify.EventAlready, url, detail)
		default:
			if cfg.Browser.ScreenshotDir != "" {
				if shot, serr := session.TakeScreenshot("contact-failed"); serr == nil {
					fmt.Printf("      📸 Screenshot: %s\n", shot)
				}
			}
			recordListing(store, url, info.Title, history.StatusFailed, nil, err.Error())
			notifiers.Notify(ctx, notify.EventFailed, url, err.Error())
		}
		return nil
	}

	fmt.Println("      ✅ Message sent")
	var recorded *term.Result
	if shortTermSuspected {
		recorded = &res
		detail = strings.TrimSpace(detail + " | ⚠️ Short term suspected")
	}
	recordListing(store, url, info.Title, history.StatusSent, recorded, "")
	notifiers.Notify(ctx, notify.EventSent, url, detail)
	return nil
}

func recordListing(store *history.Store, url, title string, status history.Status, res *term.Result, reason string) {
	l := &history.Listing{URL: url, Title: title, Status: status, Reason: reason}
	if res != nil {
		l.ShortTerm = res.IsShortTerm
		l.Confidence = string(res.Confidence)
		l.Reason = res.Reason
		if res.EndDate != nil {
			l.EndDate = *res.EndDate
		}
	}
	if err := store.AddListing(l); err != nil {
		fmt.Printf("      ⚠️  Could not record listing: %v\n", err)
	}
}

func runClassify(args []string, threshold float64) error {
	var text string
	if len(args) > 0 {
		text = strings.Join(args, " ")
	} else {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		text = string(data)
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("no listing text given")
	}

	if threshold <= 0 {
		if cfg, err := config.Load(resolveConfigPath()); err == nil {
			threshold = cfg.Portal.ThresholdMonths
		}
	}

	res := term.Classify(text, threshold, time.Now())

	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runLinks(args []string) error {
	var data []byte
	var err error
	if len(args) > 0 {
		data, err = os.ReadFile(args[0])
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return fmt.Errorf("failed to read digest HTML: %w", err)
	}

	links, err := inbox.ExtractListingLinks(string(data))
	if err != nil {
		return fmt.Errorf("failed to parse digest: %w", err)
	}
	for _, link := range links {
		fmt.Println(link)
	}
	fmt.Fprintf(os.Stderr, "%d link(s)\n", len(links))
	return nil
}

func runStatus(limit int) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := store.GetStats()
	if err != nil {
		return fmt.Errorf("failed to load stats: %w", err)
	}

	fmt.Println("📊 Boligvagt status")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("  Total processed:   %d\n", stats.Total)
	fmt.Printf("  ✅ Sent:           %d\n", stats.Sent)
	fmt.Printf("  ℹ️  Already:        %d\n", stats.Already)
	fmt.Printf("  🚫 Blocked:        %d\n", stats.Blocked)
	fmt.Printf("  ⏳ Short-term:     %d\n", stats.ShortTerm)
	fmt.Printf("  ⏭️  Skipped:        %d\n", stats.Skipped)
	fmt.Printf("  ⚠️  Failed:         %d\n", stats.Failed)
	fmt.Println()

	listings, err := store.GetRecentListings(limit)
	if err != nil {
		return fmt.Errorf("failed to load listings: %w", err)
	}
	if len(listings) == 0 {
		fmt.Println("No listings processed yet.")
		return nil
	}

	fmt.Printf("Recent listings (%d):\n", len(listings))
	for _, l := range listings {
		title := l.Title
		if title == "" {
			title = l.URL
		}
		fmt.Printf("  %s  %-10s  %s\n", l.ProcessedAt.Format("2006-01-02 15:04"), l.Status, title)
		if l.Reason != "" {
			fmt.Printf("      %s\n", l.Reason)
		}
	}
	return nil
}

func runServe() error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	store, err := openStoreWith(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	server, err := web.NewServer(cfg, store)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, cancel := signalContext()
	defer cancel()
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		server.Shutdown(shutdownCtx)
	}()

	return server.Start()
}

// setup loads and validates the config and opens the shared stores used by
// the once and watch commands.
func setup() (*config.Config, *history.Store, notify.Multi, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.ValidateInbox(); err != nil {
		fmt.Println("📧 Inbox polling is not configured.")
		fmt.Println()
		fmt.Println("Add the following to your config.yaml:")
		fmt.Println()
		fmt.Println("inbox:")
		fmt.Println("  provider: gmail")
		fmt.Println("  email: your-email@gmail.com")
		fmt.Println("  password: your-app-password  # Use an App Password, not your main password")
		return nil, nil, nil, err
	}

	store, err := openStoreWith(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	return cfg, store, notify.New(cfg.Notify), nil
}

func openStore() (*history.Store, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		// Status works without a config file; fall back to the default path.
		return history.NewStore(history.DefaultDBPath())
	}
	return openStoreWith(cfg)
}

func openStoreWith(cfg *config.Config) (*history.Store, error) {
	path := cfg.History.Path
	if path == "" {
		path = history.DefaultDBPath()
	}
	store, err := history.NewStore(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	return store, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		cancel()
	}()
	return ctx, cancel
}

func prompt(reader *bufio.Reader, message string) string {
	fmt.Print(message)
	input, err := reader.ReadString('\n')
	if err != nil {
		return ""
	}
	return strings.TrimSpace(input)
}

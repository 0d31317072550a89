package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"presence/internal/config"
	"presence/internal/engine"
	"presence/internal/history"
	"presence/internal/identity"
	"presence/internal/llm"
	"presence/internal/logging"
	"presence/internal/memory"
	"presence/internal/prompt"
	"presence/internal/roles"
	"presence/internal/social"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "presence",
	Short: "presence - autonomous social presence engine",
	Long: `presence runs AI personas that watch group chats and decide for
themselves whether, when, and how to speak.

Each (agent, chat) pair runs an independent evaluation loop with three
passes: an observer that maintains the agent's notes, an intent judge that
rates its willingness to speak, and a reply pass that actually sends when
the willingness is high enough.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// initCmd writes a default configuration
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration and data directory",
	RunE:  runInit,
}

// agentCmd groups agent management
var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Manage agents and their watched chats",
}

var agentCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create an agent with default persona files",
	Args:  cobra.ExactArgs(1),
	RunE:  agentCreate,
}

var agentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List agents and their targets",
	RunE:  agentList,
}

var agentWatchCmd = &cobra.Command{
	Use:   "watch [agent-name] [target-id] [target-name]",
	Short: "Attach a chat target to an agent",
	Args:  cobra.ExactArgs(3),
	RunE:  agentWatch,
}

var agentDisableCmd = &cobra.Command{
	Use:   "disable [agent-name]",
	Short: "Stop scheduling evaluations for an agent",
	Args:  cobra.ExactArgs(1),
	RunE:  agentSetDisabled(true),
}

var agentEnableCmd = &cobra.Command{
	Use:   "enable [agent-name]",
	Short: "Resume scheduling evaluations for an agent",
	Args:  cobra.ExactArgs(1),
	RunE:  agentSetDisabled(false),
}

// memoryCmd groups workspace inspection
var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect agent memory files",
}

var memoryReadCmd = &cobra.Command{
	Use:   "read [agent-name] [path]",
	Short: "Print one memory file, e.g. SOUL.md or social/SOCIAL_MEMORY.md",
	Args:  cobra.ExactArgs(2),
	RunE:  memoryRead,
}

// runCmd starts the evaluation loops
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the evaluation loops for every agent and target",
	Long: `Starts every registered (agent, target) loop and feeds inbound
messages from stdin, one per line:

  target_id|sender_id|sender_name|message text

Outbound messages are printed to stdout. A real chat connector replaces
both ends of this pipe.`,
	RunE: runEngine,
}

// promptDumpCmd renders one role prompt for inspection
var promptDumpCmd = &cobra.Command{
	Use:   "prompt-dump [agent-name] [target-id] [role]",
	Short: "Render the prompt one role pass would receive",
	Args:  cobra.ExactArgs(3),
	RunE:  promptDump,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: <data-dir>/config.yaml)")

	var direct bool
	agentWatchCmd.Flags().BoolVar(&direct, "direct", false, "Target is a direct chat, not a group")

	agentCmd.AddCommand(agentCreateCmd)
	agentCmd.AddCommand(agentListCmd)
	agentCmd.AddCommand(agentWatchCmd)
	agentCmd.AddCommand(agentDisableCmd)
	agentCmd.AddCommand(agentEnableCmd)

	memoryCmd.AddCommand(memoryReadCmd)

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(memoryCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(promptDumpCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return filepath.Join(config.DefaultConfig().DataDir, "config.yaml")
}

func loadConfig() (*config.Config, error) {
	return config.Load(resolveConfigPath())
}

func rosterPath(cfg *config.Config) string {
	return filepath.Join(cfg.DataDir, "agents.yaml")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := resolveConfigPath()
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists at %s", path)
	}

	cfg := config.DefaultConfig()
	if err := cfg.Save(path); err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.WorkspaceRoot(), 0755); err != nil {
		return err
	}

	logger.Info("Initialized", zap.String("config", path), zap.String("data_dir", cfg.DataDir))
	fmt.Printf("Wrote %s\nSet GEMINI_API_KEY and add agents with `presence agent create`.\n", path)
	return nil
}

func agentCreate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	name := args[0]

	roster, err := social.LoadRoster(rosterPath(cfg))
	if err != nil {
		return err
	}

	agent := social.Agent{
		ID:   uuid.New().String(),
		Name: name,
	}
	if err := roster.AddAgent(agent); err != nil {
		return err
	}

	store := memory.NewStore(cfg.WorkspaceRoot())
	if err := store.EnsureDefaultFiles(agent.ID, agent.Name); err != nil {
		return err
	}
	if err := roster.Save(rosterPath(cfg)); err != nil {
		return err
	}

	logger.Info("Agent created", zap.String("id", agent.ID), zap.String("name", name))
	fmt.Printf("Created agent %s (%s)\nPersona files: %s\n", name, agent.ID, store.AgentWorkspace(agent.ID))
	return nil
}

func agentList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	roster, err := social.LoadRoster(rosterPath(cfg))
	if err != nil {
		return err
	}

	if len(roster.Entries) == 0 {
		fmt.Println("No agents. Create one with `presence agent create <name>`.")
		return nil
	}
	for _, entry := range roster.Entries {
		state := ""
		if entry.Agent.Disabled {
			state = " (disabled)"
		}
		fmt.Printf("%s  %s%s\n", entry.Agent.ID, entry.Agent.Name, state)
		for _, target := range entry.Targets {
			fmt.Printf("    %s  %s [%s]\n", target.ID, target.Name, target.Kind)
		}
	}
	return nil
}

func agentWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	roster, err := social.LoadRoster(rosterPath(cfg))
	if err != nil {
		return err
	}

	entry := roster.FindByName(args[0])
	if entry == nil {
		return fmt.Errorf("no agent named %q", args[0])
	}

	kind := social.TargetGroup
	if direct, _ := cmd.Flags().GetBool("direct"); direct {
		kind = social.TargetDirect
	}
	target := social.Target{ID: args[1], Name: args[2], Kind: kind}
	if err := roster.AddTarget(entry.Agent.ID, target); err != nil {
		return err
	}
	if err := roster.Save(rosterPath(cfg)); err != nil {
		return err
	}

	fmt.Printf("%s now watches %s (%s)\n", entry.Agent.Name, target.Name, target.ID)
	return nil
}

func agentSetDisabled(disabled bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		roster, err := social.LoadRoster(rosterPath(cfg))
		if err != nil {
			return err
		}
		entry := roster.FindByName(args[0])
		if entry == nil {
			return fmt.Errorf("no agent named %q", args[0])
		}
		entry.Agent.Disabled = disabled
		if err := roster.Save(rosterPath(cfg)); err != nil {
			return err
		}

		state := "enabled"
		if disabled {
			state = "disabled"
		}
		fmt.Printf("%s is now %s\n", entry.Agent.Name, state)
		return nil
	}
}

func memoryRead(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	roster, err := social.LoadRoster(rosterPath(cfg))
	if err != nil {
		return err
	}
	entry := roster.FindByName(args[0])
	if entry == nil {
		return fmt.Errorf("no agent named %q", args[0])
	}

	store := memory.NewStore(cfg.WorkspaceRoot())
	content, err := store.Read(entry.Agent.ID, args[1])
	if err != nil {
		if memory.IsNotFound(err) {
			return fmt.Errorf("%s has no file %s", entry.Agent.Name, args[1])
		}
		return err
	}
	fmt.Println(content)
	return nil
}

func runEngine(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := logging.Initialize(cfg.DataDir); err != nil {
		logger.Warn("File logging unavailable", zap.Error(err))
	}
	defer logging.Close()

	roster, err := social.LoadRoster(rosterPath(cfg))
	if err != nil {
		return err
	}

	hist, err := history.Open(cfg.HistoryDBPath())
	if err != nil {
		return err
	}
	defer hist.Close()

	store := memory.NewStore(cfg.WorkspaceRoot())
	store.SetConfirmer(&terminalConfirmer{})

	client, err := llm.NewGenAIClient(cfg.LLM.APIKey, cfg.LLM.Model)
	if err != nil {
		return err
	}

	session, err := identity.NewSession(identity.OwnerIdentity{
		OwnerQQ:   cfg.Identity.OwnerQQ,
		OwnerName: cfg.Identity.OwnerName,
	})
	if err != nil {
		return err
	}

	eval := engine.NewEvaluator(engine.EvaluatorConfig{
		Memory:  store,
		History: hist,
		Sender:  &stdoutSender{},
		Client:  client,
		Session: session,
		Scheme:  schemeFrom(cfg),
		Limits:  cfg.Limits,
	})
	eng := engine.New(cfg, eval, hist)

	watcher, err := memory.NewPersonaWatcher(store, func(agentID, path string) {
		logger.Info("Persona changed", zap.String("agent", agentID), zap.String("path", path))
		eng.WakeAgent(agentID)
	})
	if err != nil {
		return err
	}
	defer watcher.Stop()

	pairs := 0
	for _, entry := range roster.Entries {
		if entry.Agent.Disabled {
			continue
		}
		if err := store.EnsureDefaultFiles(entry.Agent.ID, entry.Agent.Name); err != nil {
			return err
		}
		if err := watcher.WatchAgent(entry.Agent.ID); err != nil {
			logger.Warn("Cannot watch persona files", zap.String("agent", entry.Agent.ID), zap.Error(err))
		}
		for _, target := range entry.Targets {
			if err := eng.AddPair(entry.Agent, target); err != nil {
				return err
			}
			pairs++
		}
	}
	if pairs == 0 {
		return fmt.Errorf("no (agent, target) pairs registered; use `presence agent watch`")
	}
	watcher.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("Received shutdown signal")
		cancel()
	}()

	eng.Start(ctx)
	defer eng.Stop()

	logger.Info("Engine running", zap.Int("pairs", pairs), zap.String("interval", cfg.Loop.Interval))
	fmt.Println("Feed messages as: target_id|sender_id|sender_name|text (Ctrl-C to stop)")

	feedStdin(ctx, eng)
	return nil
}

// feedStdin reads inbound messages from stdin until EOF or cancellation.
func feedStdin(ctx context.Context, eng *engine.Engine) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "|", 4)
		if len(parts) != 4 {
			fmt.Fprintln(os.Stderr, "expected target_id|sender_id|sender_name|text")
			continue
		}
		msg := social.Message{
			ID:         uuid.New().String(),
			TargetID:   parts[0],
			SenderID:   parts[1],
			SenderName: parts[2],
			Content:    parts[3],
			Timestamp:  time.Now(),
		}
		if err := eng.OnMessage(msg); err != nil {
			logger.Error("Failed to record message", zap.Error(err))
		}
	}
}

func promptDump(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	roster, err := social.LoadRoster(rosterPath(cfg))
	if err != nil {
		return err
	}
	entry := roster.FindByName(args[0])
	if entry == nil {
		return fmt.Errorf("no agent named %q", args[0])
	}

	var target *social.Target
	for i := range entry.Targets {
		if entry.Targets[i].ID == args[1] {
			target = &entry.Targets[i]
		}
	}
	if target == nil {
		return fmt.Errorf("agent %s does not watch target %s", args[0], args[1])
	}

	role := social.Role(args[2])
	if !role.Valid() {
		return fmt.Errorf("role must be one of observer, intent, reply")
	}

	store := memory.NewStore(cfg.WorkspaceRoot())
	session, err := identity.NewSession(identity.OwnerIdentity{
		OwnerQQ:   cfg.Identity.OwnerQQ,
		OwnerName: cfg.Identity.OwnerName,
	})
	if err != nil {
		return err
	}

	hist, err := history.Open(cfg.HistoryDBPath())
	if err != nil {
		return err
	}
	defer hist.Close()

	ts, err := roles.Build(role, entry.Agent, *target, roles.Deps{
		Memory:  store,
		History: hist,
		Sender:  &stdoutSender{},
	})
	if err != nil {
		return err
	}

	doc, err := prompt.NewAssembler(store, cfg.Limits).Assemble(prompt.Input{
		Agent:     entry.Agent,
		Target:    *target,
		Role:      role,
		Lurk:      entry.Agent.LurkModeFor(target.ID),
		Scheme:    schemeFrom(cfg),
		Session:   session,
		Now:       time.Now(),
		ToolNotes: ts.Notes,
	})
	if err != nil {
		return err
	}

	fmt.Println(doc.Render())
	return nil
}

func schemeFrom(cfg *config.Config) identity.DelimiterScheme {
	return identity.DelimiterScheme{
		NameLeft:     cfg.Identity.NameLeft,
		NameRight:    cfg.Identity.NameRight,
		MessageLeft:  cfg.Identity.MessageLeft,
		MessageRight: cfg.Identity.MessageRight,
	}
}

// stdoutSender prints outbound messages. A chat connector implements
// roles.Sender in production.
type stdoutSender struct{}

func (s *stdoutSender) SendMessage(_ context.Context, target social.Target, content string, numChunks int) error {
	fmt.Printf(">> [%s %s] (%d chunk(s)) %s\n", target.Kind, target.ID, numChunks, content)
	return nil
}

// terminalConfirmer asks on the controlling terminal before a persona file
// write. Stdin belongs to the message feed, so the prompt reads /dev/tty;
// without a terminal the edit is declined.
type terminalConfirmer struct{}

func (c *terminalConfirmer) ConfirmSoulEdit(_ context.Context, agentID, preview string) (bool, error) {
	tty, err := os.Open("/dev/tty")
	if err != nil {
		fmt.Fprintf(os.Stderr, "persona edit for %s declined: no terminal available\n", agentID)
		return false, nil
	}
	defer tty.Close()

	fmt.Printf("\nAgent %s wants to change its persona file:\n---\n%s\n---\nAllow? [y/N] ", agentID, preview)
	return readConfirmation(tty), nil
}

// readConfirmation consumes one line and reports whether it affirms.
func readConfirmation(r io.Reader) bool {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

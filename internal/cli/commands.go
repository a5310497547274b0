// Package cli implements the interactive admin console: live room and
// session tables, play statistics, and moderation commands.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/schoolerbbh/bbh-server/internal/account"
	"github.com/schoolerbbh/bbh-server/internal/config"
	"github.com/schoolerbbh/bbh-server/internal/db"
	"github.com/schoolerbbh/bbh-server/internal/events"
	"github.com/schoolerbbh/bbh-server/internal/game"
)

// CLI provides an interactive command-line interface.
type CLI struct {
	cfg       *config.Config
	eventBus  *events.EventBus
	registry  *game.Registry
	accounts  *account.Store
	stats     *db.StatsStore
	startedAt time.Time
}

// NewCLI creates a new CLI handler.
func NewCLI(cfg *config.Config, eventBus *events.EventBus, registry *game.Registry, accounts *account.Store, stats *db.StatsStore) *CLI {
	return &CLI{
		cfg:       cfg,
		eventBus:  eventBus,
		registry:  registry,
		accounts:  accounts,
		stats:     stats,
		startedAt: time.Now(),
	}
}

// Start begins the interactive CLI loop. It returns when stdin closes or the
// context is cancelled.
func (c *CLI) Start(ctx context.Context) {
	fmt.Println("\nbbh-server CLI ready. Type 'help' for available commands.")
	fmt.Println("─────────────────────────────────────────────────────")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Print("bbh> ")
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}

			parts := strings.Fields(line)
			cmd := strings.ToLower(parts[0])
			args := parts[1:]

			if err := c.execute(ctx, cmd, args); err != nil {
				fmt.Printf("Error: %v\n", err)
			}
		}
	}
}

// execute processes a single CLI command.
func (c *CLI) execute(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "help", "h", "?":
		c.printHelp()
	case "status", "s":
		c.printStatus()
	case "rooms", "r":
		c.printRooms()
	case "sessions", "who":
		c.printSessions()
	case "stats":
		return c.printStats(args)
	case "kick":
		return c.cmdKick(args)
	case "broadcast", "say":
		return c.cmdBroadcast(ctx, args)
	case "quit", "exit", "q":
		fmt.Println("Shutting down bbh-server...")
		c.eventBus.Emit(ctx, events.Event{
			Type:   events.EventShutdown,
			Source: "cli",
		})
	default:
		fmt.Printf("Unknown command: '%s'. Type 'help' for available commands.\n", cmd)
	}
	return nil
}

// printHelp displays available commands.
func (c *CLI) printHelp() {
	fmt.Println("\n╔══════════════════════════════════════════════════════════╗")
	fmt.Println("║                  bbh-server CLI Commands                 ║")
	fmt.Println("╠══════════════════════════════════════════════════════════╣")
	fmt.Println("║  status            Show server status summary            ║")
	fmt.Println("║  rooms             List active rooms                     ║")
	fmt.Println("║  sessions          List connected players                ║")
	fmt.Println("║  stats [n]         Show top accounts by logins           ║")
	fmt.Println("║  kick <slot>       Disconnect the player on a slot       ║")
	fmt.Println("║  broadcast <msg>   Send a chat line to everyone          ║")
	fmt.Println("║  quit              Shutdown the server                   ║")
	fmt.Println("║  help              Show this help message                ║")
	fmt.Println("╚══════════════════════════════════════════════════════════╝")
	fmt.Println()
}

func (c *CLI) printStatus() {
	gd := c.cfg.GetGameData()
	fmt.Printf("\n  Game Port:     %d\n", gd.Port)
	fmt.Printf("  Uptime:        %s\n", time.Since(c.startedAt).Round(time.Second))
	fmt.Printf("  Sessions:      %d\n", c.registry.SessionCount())
	fmt.Printf("  Rooms:         %d\n", c.registry.RoomCount())
	fmt.Printf("  Accounts:      %d\n", c.accounts.Count())
	fmt.Println()
}

func (c *CLI) printRooms() {
	rooms := c.registry.Rooms()
	fmt.Println()

	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"Room", "Maps", "Players", "Remaining"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)

	for _, r := range rooms {
		name := r.Name
		remaining := fmt.Sprintf("%ds", r.RemainingSec)
		if r.Lobby {
			name = "(lobby)"
			remaining = "-"
		}
		tw.Append([]string{
			name,
			r.Settings,
			fmt.Sprintf("%d", r.Members),
			remaining,
		})
	}

	tw.Render()
	fmt.Println()
}

func (c *CLI) printSessions() {
	sessions := c.registry.Sessions()
	fmt.Println()

	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"Slot", "Username", "Account", "Room", "Remote"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)

	for _, s := range sessions {
		room := s.Room
		if room == config.LobbyName {
			room = "(lobby)"
		}
		tw.Append([]string{
			fmt.Sprintf("%03d", s.Slot),
			s.Username,
			fmt.Sprintf("%d", s.AccountID),
			room,
			s.RemoteAddr,
		})
	}

	tw.Render()
	fmt.Println()
}

func (c *CLI) printStats(args []string) error {
	limit := 10
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("invalid count: %s", args[0])
		}
		limit = n
	}

	accounts, err := c.stats.TopAccounts(limit)
	if err != nil {
		return err
	}
	fmt.Println()

	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"Account", "Username", "Logins", "Rooms Made", "Last Seen"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)

	for _, a := range accounts {
		lastSeen := "-"
		if a.LastSeen != nil {
			lastSeen = a.LastSeen.Local().Format(time.RFC3339)
		}
		tw.Append([]string{
			fmt.Sprintf("%d", a.AccountID),
			a.Username,
			fmt.Sprintf("%d", a.Logins),
			fmt.Sprintf("%d", a.RoomsMade),
			lastSeen,
		})
	}

	tw.Render()
	fmt.Println()
	return nil
}

func (c *CLI) cmdKick(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: kick <slot>")
	}
	slot, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid slot: %s", args[0])
	}

	if !c.registry.Kick(slot) {
		return fmt.Errorf("no session on slot %d", slot)
	}
	fmt.Printf("Kicked slot %03d\n", slot)
	return nil
}

func (c *CLI) cmdBroadcast(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: broadcast <message>")
	}
	message := strings.Join(args, " ")
	c.registry.BroadcastChat(ctx, message)
	fmt.Printf("Broadcast sent: %s\n", message)
	return nil
}

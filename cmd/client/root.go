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
	"sync"

	"groupchat/internal/client"
	"groupchat/internal/models"
	"groupchat/internal/types"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	serverKey = "server"
	userKey   = "user"
	roomKey   = "room"
	debugKey  = "debug"

	// a gap longer than this between two messages prints a separator
	gapMinutes = 5
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "groupchat",
	Short: "Terminal client for the group chat server",
	Long: `groupchat logs in as one of the server's roster users, joins a room and
prints its traffic. Type a line to send it. Commands:

  /room <name>   switch rooms
  /more          load older history
  /users         list users and where they are
  /quit          leave`,
	SilenceUsage: true,
	RunE:         run,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.groupchat.yaml)")
	rootCmd.Flags().String("server", "http://localhost:8080", "chat server base URL")
	rootCmd.Flags().StringP("user", "u", "", "roster display name to log in as")
	rootCmd.Flags().StringP("room", "r", "Global", "room to join")
	rootCmd.Flags().Bool("debug", false, "verbose logging")

	viper.BindPFlag(serverKey, rootCmd.Flags().Lookup("server"))
	viper.BindPFlag(userKey, rootCmd.Flags().Lookup("user"))
	viper.BindPFlag(roomKey, rootCmd.Flags().Lookup("room"))
	viper.BindPFlag(debugKey, rootCmd.Flags().Lookup("debug"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".groupchat")
	}

	viper.SetEnvPrefix("GROUPCHAT")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintln(os.Stderr, "Error reading config file:", err)
		}
	}
}

func run(cmd *cobra.Command, args []string) error {
	server := viper.GetString(serverKey)
	username := viper.GetString(userKey)
	if username == "" {
		return errors.New("--user is required")
	}

	level := zerolog.WarnLevel
	if viper.GetBool(debugKey) {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	auth, err := client.Login(ctx, server, username)
	if err != nil {
		return err
	}

	manager, err := client.NewManager(server, auth.Token, logger)
	if err != nil {
		return err
	}
	chat := client.NewChat(auth.User.UserID, manager)
	defer chat.Close()

	// The terminal is the open message view.
	chat.State().SetViewOpen(true)

	session, err := chat.Join(ctx, viper.GetString(roomKey))
	if err != nil {
		return err
	}

	names := newNameBook(ctx, server)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Logged in as %s (%s). /quit to leave.\n", auth.User.Username, auth.User.CountryCode)

	lines := make(chan string)
	go readLines(cmd.InOrStdin(), lines)

	var lastSent string
	for {
		select {
		case <-ctx.Done():
			return nil

		case env, ok := <-session.Events():
			if !ok {
				return errors.New("connection to server lost")
			}
			if err := chat.State().Apply(env); err != nil {
				logger.Debug().Err(err).Msg("bad event")
				continue
			}
			lastSent = render(out, env, names, lastSent)

		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, next, err := handleLine(ctx, out, chat, server, names, line)
			if err != nil {
				fmt.Fprintln(out, "!", err)
			}
			if quit {
				return nil
			}
			if next != nil {
				session = next
			}
		}
	}
}

func handleLine(ctx context.Context, out io.Writer, chat *client.Chat, server string, names *nameBook, line string) (bool, *client.Session, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil, nil
	}
	if !strings.HasPrefix(line, "/") {
		return false, nil, chat.Send(ctx, line)
	}

	cmd, arg, _ := strings.Cut(line, " ")
	switch cmd {
	case "/quit":
		return true, nil, nil
	case "/room":
		s, err := chat.Join(ctx, arg)
		if err == nil {
			fmt.Fprintf(out, "-- now in %s --\n", strings.TrimSpace(arg))
		}
		return false, s, err
	case "/more":
		if err := chat.LoadMore(ctx); errors.Is(err, client.ErrNothingToLoad) {
			fmt.Fprintln(out, "-- no older messages --")
			return false, nil, nil
		} else if err != nil {
			return false, nil, err
		}
		return false, nil, nil
	case "/users":
		users, err := client.Users(ctx, server)
		if err != nil {
			return false, nil, err
		}
		names.update(users)
		for _, u := range users {
			where := "offline"
			if u.Online {
				where = "in " + u.Room
			}
			fmt.Fprintf(out, "  %-8s %-6s %s\n", u.Username, u.CountryCode, where)
		}
		return false, nil, nil
	default:
		return false, nil, fmt.Errorf("unknown command %s", cmd)
	}
}

func render(out io.Writer, env types.Envelope, names *nameBook, lastSent string) string {
	switch env.Event {
	case types.EventMessage:
		var m models.ChatMessage
		if err := decode(env, &m); err != nil {
			return lastSent
		}
		if lastSent != "" {
			if gap, err := models.MinutesBetween(m.SentTime, lastSent); err == nil && gap > gapMinutes {
				fmt.Fprintln(out, "   ·")
			}
		}
		if m.IsSystem() {
			fmt.Fprintf(out, "-- %s --\n", m.Text)
		} else {
			fmt.Fprintf(out, "[%s] %s: %s\n", m.SentTime, names.name(m.SenderID), m.Text)
		}
		return m.SentTime

	case types.EventRoomUsers:
		var ru models.RoomUsers
		if err := decode(env, &ru); err != nil {
			return lastSent
		}
		names.update(ru.Users)
		fmt.Fprintf(out, "-- %s: %s --\n", ru.Room, strings.Join(usernames(ru.Users), ", "))

	case types.EventHistory:
		var page models.HistoryPage
		if err := decode(env, &page); err != nil {
			return lastSent
		}
		if len(page.History) == 0 {
			return lastSent
		}
		fmt.Fprintf(out, "-- %d older messages --\n", len(page.History))
		for i := len(page.History) - 1; i >= 0; i-- {
			m := page.History[i]
			fmt.Fprintf(out, "[%s] %s: %s\n", m.SentTime, names.name(m.SenderID), m.Text)
		}
		if page.HasNext {
			fmt.Fprintln(out, "-- /more for older --")
		}
	}
	return lastSent
}

func readLines(in io.Reader, lines chan<- string) {
	defer close(lines)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		lines <- scanner.Text()
	}
}

func usernames(users []models.User) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.Username)
	}
	return out
}

// nameBook resolves sender ids to display names.
type nameBook struct {
	mu    sync.Mutex
	names map[string]string
}

func newNameBook(ctx context.Context, server string) *nameBook {
	b := &nameBook{names: map[string]string{models.SystemUserID: "Admin"}}
	if users, err := client.Users(ctx, server); err == nil {
		b.update(users)
	}
	return b
}

func (b *nameBook) update(users []models.User) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, u := range users {
		b.names[u.UserID] = u.Username
	}
}

func (b *nameBook) name(id string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n, ok := b.names[id]; ok {
		return n
	}
	return "user " + id
}

func decode(env types.Envelope, v any) error {
	return json.Unmarshal(env.Data, v)
}

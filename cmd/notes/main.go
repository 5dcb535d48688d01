package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"notes-go/internal/app"
	"notes-go/internal/config"
	"notes-go/internal/notes"
	"notes-go/internal/prefs"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const timeLayout = "2006-01-02 15:04:05"

func main() {
	// A missing .env is the common case.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, map[string]string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, defaults, nil
}

// newApp reads the config and creates a NotesApp. The caller must defer
// a.Close(). observer may be nil.
func newApp(ctx context.Context, observer notes.Observer) (*app.NotesApp, error) {
	cfg, defaults, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.NewNotesApp(ctx, cfg, defaults["session_key"], observer)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	if a.Identity() == nil {
		a.Close(ctx)
		return nil, errors.New("not signed in: set NOTES_ID_TOKEN or auth.token_file")
	}
	return a, nil
}

// newPreferences opens the preference stores without starting a session.
func newPreferences() (*notes.Preferences, error) {
	cfg, defaults, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return prefs.NewFromConfig(cfg.Preferences, defaults["session_key"])
}

// confirm asks a yes/no question on the terminal. Without a terminal the
// answer is no and --yes is required.
func confirm(prompt string) (bool, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false, errors.New("stdin is not a terminal; pass --yes to confirm")
	}
	fmt.Printf("%s [y/N] ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("reading answer: %w", err)
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

// lineWidth is the terminal width, or 0 when stdout is not a terminal.
func lineWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 0
	}
	w, _, err := term.GetSize(fd)
	if err != nil {
		return 0
	}
	return w
}

func truncate(s string, width int) string {
	if width <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(r[:width-1]) + "…"
}

var rootCmd = &cobra.Command{
	Use:          "notes",
	Short:        "Folder-organized rich-text notes",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		userID, _ := cmd.Flags().GetString("user")
		if userID == "" {
			userID = uuid.New().String()
		}

		cfg := config.NewConfig(userID, defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("User ID:  %s\n", userID)
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, defaults, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("User ID:     %s\n", cfg.UserID)
		fmt.Printf("Base Dir:    %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:     %s\n", cfg.LogDir)
		fmt.Printf("Database:    %s\n", cfg.Database.Type)
		fmt.Printf("Blobs:       %s\n", cfg.Blobs.Type)
		fmt.Printf("Auth:        %s\n", cfg.Auth.Type)
		fmt.Printf("Preferences: %s\n", cfg.Preferences.Type)
		fmt.Printf("Session:     %s\n", defaults["session_key"])
		return nil
	},
}

// folders command
var foldersCmd = &cobra.Command{
	Use:   "folders",
	Short: "Manage folders",
}

var foldersListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the folder tree",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, nil)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		st, err := a.Session().State(ctx)
		if err != nil {
			return err
		}
		tree, err := a.Session().Tree(ctx)
		if err != nil {
			return err
		}
		printTree(tree, st.ActiveFolder)
		return nil
	},
}

var foldersCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parent, _ := cmd.Flags().GetString("parent")

		ctx := cmd.Context()
		a, err := newApp(ctx, nil)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		id, err := a.Session().CreateFolder(ctx, args[0], parent)
		if err != nil {
			return fmt.Errorf("creating folder: %w", err)
		}
		fmt.Printf("Created folder %s\n", id)
		return nil
	},
}

var foldersRenameCmd = &cobra.Command{
	Use:   "rename ID NAME",
	Short: "Rename a folder",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, nil)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		if err := a.Session().RenameFolder(ctx, args[0], args[1]); err != nil {
			return fmt.Errorf("renaming folder: %w", err)
		}
		fmt.Printf("Renamed folder %s\n", args[0])
		return nil
	},
}

var foldersDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete an empty folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			ok, err := confirm(fmt.Sprintf("Delete folder %s?", args[0]))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("Aborted.")
				return nil
			}
		}

		ctx := cmd.Context()
		a, err := newApp(ctx, nil)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		if err := a.Session().DeleteFolder(ctx, args[0]); err != nil {
			var guard *notes.FolderDeleteError
			if errors.As(err, &guard) {
				return fmt.Errorf("cannot delete folder: %w", err)
			}
			return fmt.Errorf("deleting folder: %w", err)
		}
		fmt.Printf("Deleted folder %s\n", args[0])
		return nil
	},
}

// list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List notes in a folder",
	RunE: func(cmd *cobra.Command, args []string) error {
		folder, _ := cmd.Flags().GetString("folder")

		ctx := cmd.Context()
		a, err := newApp(ctx, nil)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		list, err := a.ListNotes(ctx, folder)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("No notes.")
			return nil
		}

		width := lineWidth()
		for _, n := range list {
			line := fmt.Sprintf("%s  %s  %s  %s", n.ID, n.UpdatedAt.Local().Format(timeLayout), n.Title, n.Preview)
			fmt.Println(truncate(line, width))
		}
		return nil
	},
}

// show command
var showCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Print a note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, nil)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		n, err := a.Session().LookupNote(ctx, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Title:   %s\n", n.Title)
		fmt.Printf("Folder:  %s\n", n.FolderID)
		fmt.Printf("Created: %s\n", n.CreatedAt.Local().Format(timeLayout))
		fmt.Printf("Updated: %s\n\n", n.UpdatedAt.Local().Format(timeLayout))
		for _, op := range n.RichContent.Ops {
			switch in := op.Insert.(type) {
			case notes.TextInsert:
				fmt.Print(string(in))
			case notes.ImageInsert:
				mini := ""
				if on, _ := op.Attributes["mini"].(bool); on {
					mini = " (mini)"
				}
				fmt.Printf("[image%s %s]", mini, in.Source)
			}
		}
		fmt.Println()
		return nil
	},
}

// new command
var newCmd = &cobra.Command{
	Use:   "new",
	Short: "Create a note",
	RunE: func(cmd *cobra.Command, args []string) error {
		folder, _ := cmd.Flags().GetString("folder")
		text, _ := cmd.Flags().GetString("text")
		file, _ := cmd.Flags().GetString("file")
		images, _ := cmd.Flags().GetStringArray("image")

		if file != "" {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading note text: %w", err)
			}
			text = string(data)
		}

		ctx := cmd.Context()
		a, err := newApp(ctx, nil)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		id, err := a.CreateNote(ctx, app.NoteInput{FolderID: folder, Text: text, Images: images})
		if err != nil {
			return fmt.Errorf("creating note: %w", err)
		}
		fmt.Printf("Created note %s\n", id)
		return nil
	},
}

// edit command
var editCmd = &cobra.Command{
	Use:   "edit ID",
	Short: "Change a note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, _ := cmd.Flags().GetString("text")
		appendText, _ := cmd.Flags().GetString("append")
		images, _ := cmd.Flags().GetStringArray("image")
		if text == "" && appendText == "" && len(images) == 0 {
			return errors.New("nothing to change: pass --text, --append or --image")
		}

		ctx := cmd.Context()
		a, err := newApp(ctx, nil)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		if err := a.EditNote(ctx, args[0], app.NoteInput{Text: text, Append: appendText, Images: images}); err != nil {
			return fmt.Errorf("editing note: %w", err)
		}
		fmt.Printf("Saved note %s\n", args[0])
		return nil
	},
}

// delete command
var deleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			ok, err := confirm(fmt.Sprintf("Delete note %s?", args[0]))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("Aborted.")
				return nil
			}
		}

		ctx := cmd.Context()
		a, err := newApp(ctx, nil)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		if _, err := a.Session().LookupNote(ctx, args[0]); err != nil {
			return err
		}
		if err := a.Session().DeleteNote(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted note %s\n", args[0])
		return nil
	},
}

// watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print folder and note updates until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		folder, _ := cmd.Flags().GetString("folder")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, &printObserver{})
		if err != nil {
			return err
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			a.Close(closeCtx)
		}()

		if err := a.UseFolder(ctx, folder); err != nil {
			return err
		}
		fmt.Println("Watching for changes. Press Ctrl-C to stop.")
		<-ctx.Done()
		return nil
	},
}

// prefs command
var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "View and change display preferences",
}

var prefsGetCmd = &cobra.Command{
	Use:   "get [KEY]",
	Short: "Show preferences",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPreferences()
		if err != nil {
			return err
		}

		flags := p.Flags()
		if len(args) == 1 {
			v, ok := flags[args[0]]
			if !ok {
				return fmt.Errorf("unknown preference %q", args[0])
			}
			fmt.Println(v)
			return nil
		}
		for _, key := range []string{notes.KeyCompact, notes.KeyFoldersCollapsed, notes.KeyLayoutFlipped} {
			fmt.Printf("%-24s %t\n", key, flags[key])
		}
		fmt.Printf("%-24s %s\n", notes.KeyActiveFolder, p.ActiveFolder())
		fmt.Printf("%-24s %s\n", notes.KeyActiveNote, p.ActiveNote())
		return nil
	},
}

var prefsSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Set a display preference",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		on, err := strconv.ParseBool(args[1])
		if err != nil {
			return fmt.Errorf("invalid value %q: want true or false", args[1])
		}

		p, err := newPreferences()
		if err != nil {
			return err
		}
		if err := p.SetFlag(args[0], on); err != nil {
			return err
		}
		fmt.Printf("%s = %t\n", args[0], on)
		return nil
	},
}

// session command
var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage the shell session",
}

var sessionEndCmd = &cobra.Command{
	Use:   "end",
	Short: "Forget the active folder and note for this session",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPreferences()
		if err != nil {
			return err
		}
		if err := p.EndSession(); err != nil {
			return fmt.Errorf("ending session: %w", err)
		}
		fmt.Println("Session ended.")
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().String("user", "", "User ID for the static identity (default: a new UUID)")
	configCmd.AddCommand(configListCmd)

	// folders subcommands
	foldersCmd.AddCommand(foldersListCmd)
	foldersCmd.AddCommand(foldersCreateCmd)
	foldersCreateCmd.Flags().String("parent", "", "Parent folder ID")
	foldersCmd.AddCommand(foldersRenameCmd)
	foldersCmd.AddCommand(foldersDeleteCmd)
	foldersDeleteCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(foldersCmd)
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringP("folder", "f", "", "Folder ID (default: the active folder)")
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(newCmd)
	newCmd.Flags().StringP("folder", "f", "", "Folder ID (default: the active folder)")
	newCmd.Flags().StringP("text", "t", "", "Note text")
	newCmd.Flags().String("file", "", "Read note text from a file")
	newCmd.Flags().StringArrayP("image", "i", nil, "Image file to embed (repeatable)")
	newCmd.MarkFlagsMutuallyExclusive("text", "file")
	rootCmd.AddCommand(editCmd)
	editCmd.Flags().StringP("text", "t", "", "Replace the note text")
	editCmd.Flags().StringP("append", "a", "", "Append a line to the note")
	editCmd.Flags().StringArrayP("image", "i", nil, "Image file to embed (repeatable)")
	editCmd.MarkFlagsMutuallyExclusive("text", "append")
	rootCmd.AddCommand(deleteCmd)
	deleteCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringP("folder", "f", "", "Folder ID (default: the active folder)")

	prefsCmd.AddCommand(prefsGetCmd)
	prefsCmd.AddCommand(prefsSetCmd)
	rootCmd.AddCommand(prefsCmd)

	sessionCmd.AddCommand(sessionEndCmd)
	rootCmd.AddCommand(sessionCmd)
}

package main

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"sysync/internal/app"
	"sysync/internal/catalog"
	"sysync/internal/config"
	"sysync/internal/sysync"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a SyncApp. The caller must defer
// app.Close(). operation identifies the CLI command being run.
func newApp(operation string) (*app.SyncApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewSyncApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// readPassphrase prompts on stderr and reads without echo.
func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	pass, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(pass), nil
}

// consoleReporter prints a progress line that overwrites itself.
func consoleReporter(label string) sysync.Reporter {
	return sysync.ReporterFunc(func(percent float64) {
		fmt.Printf("\r%s: %5.1f%%", label, percent)
		if percent >= 100 {
			fmt.Println()
		}
	})
}

var rootCmd = &cobra.Command{
	Use:   "sysync",
	Short: "Application settings backup tool",
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

		cfg := config.NewConfig(defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("Server:     %s\n", cfg.Server.Addr)
		fmt.Printf("Catalog:    %s\n", cfg.Catalog.Type)
		fmt.Printf("Store:      %s\n", cfg.Store.Type)
		fmt.Printf("Encryption: %s\n", cfg.Encryption.Type)
		fmt.Printf("Apps:       %d configured\n", len(cfg.Apps))
		return nil
	},
}

var configStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check catalog schema status",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		if err := catalog.SchemaStatus(cfg.Catalog); err != nil {
			return err
		}
		fmt.Println("Catalog schema is up to date.")
		return nil
	},
}

// encryption setup command
var encryptionCmd = &cobra.Command{
	Use:   "encryption",
	Short: "Manage archive encryption",
}

var encryptionSetupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Generate an encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("encryption-setup")
		if err != nil {
			return err
		}
		defer a.Close()

		pass, err := readPassphrase("Passphrase for new key: ")
		if err != nil {
			return err
		}
		confirm, err := readPassphrase("Confirm passphrase: ")
		if err != nil {
			return err
		}
		if pass != confirm {
			return fmt.Errorf("passphrases do not match")
		}

		if err := a.SetupEncryption(pass); err != nil {
			return fmt.Errorf("setting up encryption: %w", err)
		}
		fmt.Println("Encryption keys generated.")
		return nil
	},
}

// apps command
var appsCmd = &cobra.Command{
	Use:   "apps",
	Short: "List configured applications",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("apps")
		if err != nil {
			return err
		}
		defer a.Close()

		apps := a.Apps()
		if len(apps) == 0 {
			fmt.Println("No applications configured.")
			return nil
		}

		for _, info := range apps {
			fmt.Printf("%s  (%s/%s)  %d setting(s)\n", info.Name, info.Category, info.Type, len(info.Settings))
			for _, s := range info.Settings {
				fmt.Printf("    %-20s  %s\n", s.Name, s.Path)
			}
		}
		return nil
	},
}

// backup command
var backupCmd = &cobra.Command{
	Use:   "backup APP",
	Short: "Back up an application's settings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("backup")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Backup(args[0], consoleReporter("Backing up "+args[0])); err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}
		fmt.Printf("Backup of %s complete.\n", args[0])
		return nil
	},
}

// backups command
var backupsCmd = &cobra.Command{
	Use:   "backups",
	Short: "List stored backups",
	RunE: func(cmd *cobra.Command, args []string) error {
		appName, _ := cmd.Flags().GetString("app")

		a, err := newApp("backups")
		if err != nil {
			return err
		}
		defer a.Close()

		grouped, err := a.ListBackups(appName)
		if err != nil {
			return err
		}
		if len(grouped) == 0 {
			fmt.Println("No backups recorded.")
			return nil
		}

		names := make([]string, 0, len(grouped))
		for name := range grouped {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			fmt.Printf("%s:\n", name)
			if len(grouped[name]) == 0 {
				fmt.Println("    (none)")
				continue
			}
			for _, b := range grouped[name] {
				fmt.Printf("    #%-4d  %s  %10d bytes  %s\n",
					b.ID,
					b.CreatedAt.Format("2006-01-02 15:04:05"),
					b.Size,
					b.Filename,
				)
			}
		}
		return nil
	},
}

// restore command
var restoreCmd = &cobra.Command{
	Use:   "restore ID",
	Short: "Restore settings from a backup",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, _ := cmd.Flags().GetStringArray("path")

		var id int64
		if _, err := fmt.Sscanf(args[0], "%d", &id); err != nil || id <= 0 {
			return fmt.Errorf("invalid backup id: %s", args[0])
		}

		a, err := newApp("restore")
		if err != nil {
			return err
		}
		defer a.Close()

		encrypted, err := a.IsEncrypted(id)
		if err != nil {
			return err
		}

		var pass string
		if encrypted {
			pass, err = readPassphrase("Passphrase: ")
			if err != nil {
				return err
			}
		}

		if err := a.Restore(id, paths, pass, consoleReporter("Restoring")); err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}
		fmt.Printf("Backup #%d restored.\n", id)
		return nil
	},
}

// delete command
var deleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a backup",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var id int64
		if _, err := fmt.Sscanf(args[0], "%d", &id); err != nil || id <= 0 {
			return fmt.Errorf("invalid backup id: %s", args[0])
		}

		a, err := newApp("delete")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Delete(id); err != nil {
			return fmt.Errorf("delete failed: %w", err)
		}
		fmt.Printf("Backup #%d deleted.\n", id)
		return nil
	},
}

// download command
var downloadCmd = &cobra.Command{
	Use:   "download ID",
	Short: "Export a backup archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("output")

		var id int64
		if _, err := fmt.Sscanf(args[0], "%d", &id); err != nil || id <= 0 {
			return fmt.Errorf("invalid backup id: %s", args[0])
		}

		a, err := newApp("download")
		if err != nil {
			return err
		}
		defer a.Close()

		path, err := a.Download(id, out)
		if err != nil {
			return fmt.Errorf("download failed: %w", err)
		}
		fmt.Printf("Archive written to %s\n", path)
		return nil
	},
}

// log command
var logCmd = &cobra.Command{
	Use:   "log [OPERATION_ID]",
	Short: "View engine logs",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		opID := ""
		if len(args) == 1 {
			opID = args[0]
		}
		return app.ReadLog(cfg.LogDir, opID, os.Stdout)
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View operation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("history")
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.History(limit)
		if err != nil {
			return err
		}
		if len(ops) == 0 {
			fmt.Println("No operations recorded.")
			return nil
		}

		for _, op := range ops {
			duration := ""
			if op.FinishedAt != nil {
				d := op.FinishedAt.Sub(op.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-10s  %s  %-8s  %s\n",
				op.ID,
				op.Operation,
				op.StartedAt.Format("2006-01-02 15:04:05"),
				op.Status,
				duration,
			)
		}
		return nil
	},
}

// usage command
var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "View storage usage",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("usage")
		if err != nil {
			return err
		}
		defer a.Close()

		usage, err := a.StorageUsage()
		if err != nil {
			return err
		}
		fmt.Printf("Backups: %d\n", usage.BackupCount)
		fmt.Printf("Total:   %d bytes\n", usage.TotalSize)
		return nil
	},
}

// serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("serve")
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return a.Serve(ctx)
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configStatusCmd)
	encryptionCmd.AddCommand(encryptionSetupCmd)

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(encryptionCmd)
	rootCmd.AddCommand(appsCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(backupsCmd)
	backupsCmd.Flags().String("app", "", "Only list backups for this application")
	rootCmd.AddCommand(restoreCmd)
	restoreCmd.Flags().StringArray("path", nil, "Restore only the setting with this source path (repeatable)")
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(downloadCmd)
	downloadCmd.Flags().StringP("output", "o", "", "Destination file (default: original filename)")
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
	rootCmd.AddCommand(usageCmd)
	rootCmd.AddCommand(serveCmd)
}

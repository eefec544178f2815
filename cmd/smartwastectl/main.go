package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/smartwaste/smartwaste-api/config"
	"github.com/smartwaste/smartwaste-api/databases"
	"github.com/smartwaste/smartwaste-api/identity"
	"github.com/smartwaste/smartwaste-api/models"
)

var rootCmd = &cobra.Command{
	Use:   "smartwastectl",
	Short: "SmartWaste operator CLI",
	Long: `smartwastectl runs maintenance tasks against the SmartWaste database.
It reads the same environment as the API server (DB_URI, DB_NAME, ADMIN_*).`,
	SilenceUsage: true,
}

func main() {
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().Duration("timeout", 30*time.Second, "overall command timeout")
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("timeout", rootCmd.PersistentFlags().Lookup("timeout"))

	rootCmd.AddCommand(createAdminCmd(), listUsersCmd(), syncCollectorRolesCmd(), hashPasswordCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

// stores are the collections the commands work on
type stores struct {
	users      databases.UserDatabase
	collectors databases.CollectorDatabase
}

func withStores(parent context.Context, fn func(ctx context.Context, conf *config.Config, s stores) error) error {
	conf := config.New()
	if conf.URL == "" {
		return fmt.Errorf("DB_URI is not set")
	}
	ctx, cancel := context.WithTimeout(parent, viper.GetDuration("timeout"))
	defer cancel()

	client, err := databases.NewClient(conf)
	if err != nil {
		return err
	}
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	db := databases.NewDatabase(conf, client)
	return fn(ctx, conf, stores{
		users:      databases.NewUserDatabase(db),
		collectors: databases.NewCollectorDatabase(db),
	})
}

func createAdminCmd() *cobra.Command {
	var username, email, password, phone string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create the administrator account unless it exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStores(cmd.Context(), func(ctx context.Context, conf *config.Config, s stores) error {
				acct := identity.AdminAccount{
					Username: conf.Admin.Username,
					Email:    conf.Admin.Email,
					Password: conf.Admin.Password,
					Phone:    conf.Admin.Phone,
				}
				if cmd.Flags().Changed("username") {
					acct.Username = username
				}
				if cmd.Flags().Changed("email") {
					acct.Email = email
				}
				if cmd.Flags().Changed("password") {
					acct.Password = password
				}
				if cmd.Flags().Changed("phone") {
					acct.Phone = phone
				}
				if acct.Password == "" {
					return fmt.Errorf("a password is required (--password or ADMIN_PASSWORD)")
				}
				user, err := identity.EnsureAdmin(ctx, s.users, acct)
				if err != nil {
					return err
				}
				return printUsers([]models.User{*user})
			})
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "admin username (default ADMIN_USERNAME)")
	cmd.Flags().StringVar(&email, "email", "", "admin email (default ADMIN_EMAIL)")
	cmd.Flags().StringVar(&password, "password", "", "admin password (default ADMIN_PASSWORD)")
	cmd.Flags().StringVar(&phone, "phone", "", "admin phone (default ADMIN_PHONE)")
	return cmd
}

func listUsersCmd() *cobra.Command {
	var role string
	var limit, page int
	cmd := &cobra.Command{
		Use:   "list-users",
		Short: "List user accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStores(cmd.Context(), func(ctx context.Context, _ *config.Config, s stores) error {
				users, err := identity.NewAdmin(s.users, s.collectors, nil).ListUsers(ctx, role, limit, page)
				if err != nil {
					return err
				}
				return printUsers(users)
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "only users holding this role (resident, collector, admin)")
	cmd.Flags().IntVar(&limit, "limit", 0, "page size, 0 for all")
	cmd.Flags().IntVar(&page, "page", 0, "page number")
	return cmd
}

func syncCollectorRolesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync-collector-roles",
		Short: "Grant the collector role to every user with a collector profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStores(cmd.Context(), func(ctx context.Context, _ *config.Config, s stores) error {
				fixed, err := identity.NewEnforcer(s.users, s.collectors).SyncAll(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]int{"updated": fixed})
				}
				fmt.Printf("updated %d user(s)\n", fixed)
				return nil
			})
		},
	}
}

func hashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print the bcrypt hash stored for a password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := bcrypt.GenerateFromPassword([]byte(args[0]), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			fmt.Println(string(hash))
			return nil
		},
	}
}

func printUsers(users []models.User) error {
	if viper.GetBool("json") {
		return printJSON(users)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Username", "Name", "Email", "Phone", "Roles", "Home"})
	for _, u := range users {
		home := ""
		if u.HasHomeLocation() {
			home = fmt.Sprintf("%.5f, %.5f", *u.LocationLat, *u.LocationLng)
		}
		tw.AppendRow(table.Row{u.ID.Hex(), u.Username, u.FullName, u.Email, u.Phone, strings.Join(u.Roles, ","), home})
	}
	tw.AppendFooter(table.Row{"", "", "", "", "", "Total", len(users)})
	tw.Render()
	return nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

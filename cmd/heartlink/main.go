// Command heartlink is a thin terminal front end over the SDK, mainly for
// poking at a deployment: inspect the session, list and switch profiles,
// send a message, or tail a conversation live.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	heartlink "github.com/heartlink/heartlink-client"
)

var (
	email    string
	password string
)

func main() {
	// Local .env is a convenience for development; absence is fine.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "heartlink",
		Short:         "heartlink backend client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&email, "email", os.Getenv("HEARTLINK_EMAIL"), "account email")
	root.PersistentFlags().StringVar(&password, "password", os.Getenv("HEARTLINK_PASSWORD"), "account password")

	root.AddCommand(whoamiCmd(), profilesCmd(), switchCmd(), sendCmd(), watchCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// signedInClient builds a client from HEARTLINK_* env config and signs in
// with the credential flags.
func signedInClient(ctx context.Context) (*heartlink.Client, error) {
	if email == "" || password == "" {
		return nil, fmt.Errorf("credentials required: --email/--password or HEARTLINK_EMAIL/HEARTLINK_PASSWORD")
	}
	c, err := heartlink.NewFromEnv()
	if err != nil {
		return nil, err
	}
	if _, err := c.SignIn(ctx, email, password); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account and its active profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := signedInClient(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			sess, err := c.Session()
			if err != nil {
				return err
			}
			fmt.Printf("account: %s (%s)\n", sess.AccountID, sess.Email)

			profile, err := c.ActiveProfile(ctx)
			if errors.Is(err, heartlink.ErrNoActiveProfile) {
				fmt.Println("active profile: none")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Printf("active profile: %s (%s)\n", profile.FullName, profile.ID)
			return nil
		},
	}
}

func profilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List all profiles under the account",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := signedInClient(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			profiles, err := c.ManagedProfiles(ctx)
			if err != nil {
				return err
			}
			for _, p := range profiles {
				marker := " "
				if p.IsActive {
					marker = "*"
				}
				fmt.Printf("%s %s  %s\n", marker, p.ID, p.FullName)
			}
			return nil
		},
	}
}

func switchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "switch <profile-id>",
		Short: "Make the given profile the account's active profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := signedInClient(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			session := c.NewProfileSession(nil)
			profile, err := session.SwitchTo(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("switched to %s (%s)\n", profile.FullName, profile.ID)
			return nil
		},
	}
}

func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <peer-profile-id> <message>",
		Short: "Send a message to another profile",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := signedInClient(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			conv, err := c.NewConversation(ctx, args[0])
			if err != nil {
				return err
			}
			defer conv.Close()

			if _, err := conv.Send(ctx, args[1]); err != nil {
				return err
			}

			flushCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			if err := conv.Flush(flushCtx); err != nil {
				return err
			}
			fmt.Println("sent")
			return nil
		},
	}
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <peer-profile-id>",
		Short: "Tail a conversation live until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c, err := signedInClient(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			printed := 0
			conv, err := c.NewConversation(ctx, args[0], heartlink.OnChange(func(msgs []heartlink.DisplayMessage) {
				for ; printed < len(msgs); printed++ {
					m := msgs[printed]
					who := "them"
					if m.FromMe {
						who = "me"
					}
					fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Format(time.TimeOnly), who, m.Content)
				}
			}))
			if err != nil {
				return err
			}
			defer conv.Close()

			if _, err := conv.LoadHistory(ctx); err != nil {
				return err
			}

			<-ctx.Done()
			return nil
		},
	}
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/zjrosen/mqttdesk/internal/domain"
	"github.com/zjrosen/mqttdesk/internal/log"
	"github.com/zjrosen/mqttdesk/internal/presentation"
	"github.com/zjrosen/mqttdesk/internal/store"
)

var (
	listJSON bool
	addForm  domain.BrokerForm
)

var brokersCmd = &cobra.Command{
	Use:   "brokers",
	Short: "Manage stored brokers without starting the UI",
}

var brokersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored brokers",
	Long: `List stored brokers and their subscription history.

Passwords are never printed.

Examples:
  # Aligned table
  mqttdesk brokers list

  # JSON, e.g. for jq
  mqttdesk brokers list --json | jq '.[].endpoint'`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStore(cmd.Context(), func(ctx context.Context, st *store.Store) error {
			brokers, err := st.Brokers(ctx)
			if err != nil {
				return err
			}
			histories := make(map[int]*domain.SubscribeHistory, len(brokers))
			for _, b := range brokers {
				h, err := st.History(ctx, b.ID)
				if err != nil {
					return err
				}
				histories[b.ID] = h
			}

			formatter := presentation.NewFormatter(os.Stdout)
			dtos := presentation.FromDomainBrokers(brokers, histories)
			if listJSON {
				return formatter.FormatBrokers(dtos)
			}
			return formatter.FormatBrokersTable(dtos)
		})
	},
}

var brokersAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a broker",
	Long: `Add a broker to the store. Unset fields take the same defaults as a
broker added from the UI.

Examples:
  mqttdesk brokers add --name local
  mqttdesk brokers add --name prod --addr mqtt.example.com --port 8883 \
    --user alice --password secret --params "clean_start=false session_expiry=3600"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStore(cmd.Context(), func(ctx context.Context, st *store.Store) error {
			id, err := st.NextID(ctx)
			if err != nil {
				return err
			}
			b, err := applyAddFlags(cmd, domain.NewBroker(id))
			if err != nil {
				return err
			}
			if err := st.SaveBroker(ctx, b); err != nil {
				return err
			}
			return presentation.NewFormatter(os.Stdout).FormatResult(presentation.FromDomainBroker(b, nil))
		})
	},
}

var brokersRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Remove a broker and its subscription history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid broker id %q: %w", args[0], err)
		}
		return withStore(cmd.Context(), func(ctx context.Context, st *store.Store) error {
			return st.DeleteBroker(ctx, id)
		})
	},
}

func init() {
	brokersListCmd.Flags().BoolVar(&listJSON, "json", false, "print JSON instead of a table")

	flags := brokersAddCmd.Flags()
	flags.StringVar(&addForm.Name, "name", "", "display name")
	flags.StringVar(&addForm.ClientID, "client-id", "", "MQTT client id")
	flags.StringVar(&addForm.Addr, "addr", "", "broker host")
	flags.StringVar(&addForm.Port, "port", "", "broker port")
	flags.StringVar(&addForm.Params, "params", "", "connect options, e.g. clean_start=false")
	flags.StringVar(&addForm.UserName, "user", "", "user name (enables credentials)")
	flags.StringVar(&addForm.Password, "password", "", "password")

	brokersCmd.AddCommand(brokersListCmd, brokersAddCmd, brokersRmCmd)
	rootCmd.AddCommand(brokersCmd)
}

// applyAddFlags overlays the flags that were set onto the defaults of b.
func applyAddFlags(cmd *cobra.Command, b domain.Broker) (domain.Broker, error) {
	form := domain.FormFromBroker(b)
	set := func(name string, dst *string, v string) {
		if cmd.Flags().Changed(name) {
			*dst = v
		}
	}
	set("name", &form.Name, addForm.Name)
	set("client-id", &form.ClientID, addForm.ClientID)
	set("addr", &form.Addr, addForm.Addr)
	set("port", &form.Port, addForm.Port)
	set("params", &form.Params, addForm.Params)
	set("user", &form.UserName, addForm.UserName)
	set("password", &form.Password, addForm.Password)
	if cmd.Flags().Changed("user") {
		form.UseCredentials = true
	}
	return form.Apply(b)
}

func withStore(ctx context.Context, fn func(context.Context, *store.Store) error) error {
	if cfgErr != nil {
		return cfgErr
	}
	closeLog, err := initLogging(cfg, debugEnabled())
	if err != nil {
		return err
	}
	defer closeLog()

	st, _, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.ErrorErr(log.CatStore, "closing store", err)
		}
	}()
	return fn(ctx, st)
}

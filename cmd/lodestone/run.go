package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lodestone-mc/lodestone/pkg/backend"
	"github.com/lodestone-mc/lodestone/pkg/config"
	"github.com/lodestone-mc/lodestone/pkg/notify"
	"github.com/lodestone-mc/lodestone/pkg/paths"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Watch the instance tree and report state changes",
	Long: `Run the backend engine: load every instance under the instances
directory, watch the tree for external changes, and print state-change
notifications until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := paths.New(dataDir)
		if err != nil {
			return err
		}
		cfg, err := config.Load(p.ConfigFile())
		if err != nil {
			return err
		}

		send := notify.NewSender(256)
		b, err := backend.New(p, cfg, send)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go printMessages(send)
		return b.Run(ctx)
	},
}

func printMessages(send *notify.Sender) {
	for m := range send.Messages() {
		switch msg := m.(type) {
		case notify.InstanceAdded:
			fmt.Printf("instance added:    %s (%s, %s)\n", msg.Name, msg.Version, msg.Loader)
		case notify.InstanceModified:
			fmt.Printf("instance changed:  %s (%s, %s)\n", msg.Name, msg.Version, msg.Loader)
		case notify.InstanceRemoved:
			fmt.Printf("instance removed:  slot %d\n", msg.ID.Slot)
		case notify.LoadStateChanged:
			fmt.Printf("state:             %s is %s\n", msg.Resource, msg.State)
		case notify.WorldsLoaded:
			fmt.Printf("worlds loaded:     %d entries\n", len(msg.Worlds))
		case notify.ServersLoaded:
			fmt.Printf("servers loaded:    %d entries\n", len(msg.Servers))
		case notify.ModsLoaded:
			fmt.Printf("mods loaded:       %d entries\n", len(msg.Mods))
		case notify.Progress:
			if msg.Finished != notify.FinishNone || msg.Failed {
				fmt.Printf("transfer:          %s (%d/%d bytes)\n", msg.Title, msg.Current, msg.Total)
			}
		case notify.Info:
			fmt.Printf("notice:            %s\n", msg.Text)
		case notify.Error:
			fmt.Fprintf(os.Stderr, "error:             %s\n", msg.Text)
		}
	}
}

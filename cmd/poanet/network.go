package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/cuemby/poanet/pkg/manager"
	"github.com/spf13/cobra"
)

// Network commands
var networkCmd = &cobra.Command{
	Use:   "network",
	Short: "Manage networks",
}

var networkCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a network and start its bootnode",
	Long: `Create a private clique network.

The bootnode key, the initial genesis document and the compose manifest are
written under the data directory, then the bootnode container is started and
its enode recorded. Signers are added afterwards with 'poanet node add'.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		chainID, _ := cmd.Flags().GetInt64("chain-id")
		blockTime, _ := cmd.Flags().GetUint64("block-time")

		b, err := newBackend()
		if err != nil {
			return err
		}
		defer b.Close()

		fmt.Printf("Creating network '%s'\n", args[0])
		fmt.Printf("  Chain ID: %d\n", chainID)
		fmt.Printf("  Block Time: %ds\n", blockTime)
		fmt.Println()

		n, err := b.CreateNetwork(cmd.Context(), manager.CreateNetworkRequest{
			Name:      args[0],
			ChainID:   chainID,
			BlockTime: blockTime,
		})
		if err != nil {
			return err
		}

		fmt.Println("✓ Network created")
		fmt.Printf("  Bootnode: %s\n", n.BootnodeEnode)
		return nil
	},
}

var networkListCmd = &cobra.Command{
	Use:   "list",
	Short: "List networks",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := newBackend()
		if err != nil {
			return err
		}
		defer b.Close()

		networks, err := b.ListNetworks()
		if err != nil {
			return err
		}
		if len(networks) == 0 {
			fmt.Println("No networks")
			return nil
		}

		fmt.Printf("%-20s %-10s %-10s %-6s\n", "NAME", "CHAIN ID", "BLOCK TIME", "NODES")
		for _, n := range networks {
			fmt.Printf("%-20s %-10d %-10s %-6d\n", n.Name, n.ChainID, fmt.Sprintf("%ds", n.BlockTime), len(n.Nodes))
		}
		return nil
	},
}

var networkInspectCmd = &cobra.Command{
	Use:   "inspect NAME",
	Short: "Show a network and its nodes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := newBackend()
		if err != nil {
			return err
		}
		defer b.Close()

		n, err := b.GetNetwork(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Network: %s\n", n.Name)
		fmt.Printf("  Chain ID: %d\n", n.ChainID)
		fmt.Printf("  Block Time: %ds\n", n.BlockTime)
		fmt.Printf("  Bootnode: %s\n", n.BootnodeEnode)
		fmt.Println()
		fmt.Printf("%-20s %-10s %-7s %s\n", "NODE", "ROLE", "PORT", "ADDRESS")
		for _, node := range n.Nodes {
			fmt.Printf("%-20s %-10s %-7d %s\n", node.Name, node.Role, node.Port, node.Address)
		}
		return nil
	},
}

var networkStatusCmd = &cobra.Command{
	Use:   "status [NAME]",
	Short: "Show running services of one network or all of them",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := newBackend()
		if err != nil {
			return err
		}
		defer b.Close()

		if len(args) == 1 {
			status, err := b.NetworkStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s: %s\n", status.Network, formatServices(status.RunningServices))
			return nil
		}

		statuses, err := b.ListStatuses(cmd.Context())
		if err != nil {
			return err
		}
		for _, status := range statuses {
			fmt.Printf("%s: %s\n", status.Network, formatServices(status.RunningServices))
		}
		return nil
	},
}

var networkStartCmd = &cobra.Command{
	Use:   "start NAME",
	Short: "Start every service of a network",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := newBackend()
		if err != nil {
			return err
		}
		defer b.Close()

		if err := b.StartNetwork(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("✓ Network %s started\n", args[0])
		return nil
	},
}

var networkStopCmd = &cobra.Command{
	Use:   "stop NAME",
	Short: "Stop every service of a network",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := newBackend()
		if err != nil {
			return err
		}
		defer b.Close()

		if err := b.StopNetwork(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("✓ Network %s stopped\n", args[0])
		return nil
	},
}

var networkRemoveCmd = &cobra.Command{
	Use:     "remove NAME",
	Aliases: []string{"rm"},
	Short:   "Tear a network down and delete its state",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := newBackend()
		if err != nil {
			return err
		}
		defer b.Close()

		if err := b.RemoveNetwork(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("✓ Network %s removed\n", args[0])
		return nil
	},
}

var networkGenesisCmd = &cobra.Command{
	Use:   "genesis NAME",
	Short: "Print the genesis document of a network",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := newBackend()
		if err != nil {
			return err
		}
		defer b.Close()

		doc, err := b.Genesis(args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	},
}

var networkCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Compare every roster with its compose manifest",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := newBackend()
		if err != nil {
			return err
		}
		defer b.Close()

		drifts, err := b.Check(cmd.Context())
		if err != nil {
			return err
		}

		drifted := 0
		for _, d := range drifts {
			if !d.Drifted() {
				fmt.Printf("✓ %s in sync\n", d.Network)
				continue
			}
			drifted++
			fmt.Printf("✗ %s drifted\n", d.Network)
			if len(d.MissingInManifest) > 0 {
				fmt.Printf("  In roster only: %s\n", strings.Join(d.MissingInManifest, ", "))
			}
			if len(d.MissingInRoster) > 0 {
				fmt.Printf("  In manifest only: %s\n", strings.Join(d.MissingInRoster, ", "))
			}
		}
		if drifted > 0 {
			return fmt.Errorf("%d network(s) drifted", drifted)
		}
		return nil
	},
}

func init() {
	networkCmd.AddCommand(networkCreateCmd)
	networkCmd.AddCommand(networkListCmd)
	networkCmd.AddCommand(networkInspectCmd)
	networkCmd.AddCommand(networkStatusCmd)
	networkCmd.AddCommand(networkStartCmd)
	networkCmd.AddCommand(networkStopCmd)
	networkCmd.AddCommand(networkRemoveCmd)
	networkCmd.AddCommand(networkGenesisCmd)
	networkCmd.AddCommand(networkCheckCmd)

	networkCreateCmd.Flags().Int64("chain-id", 0, "Chain ID of the network")
	networkCreateCmd.Flags().Uint64("block-time", 5, "Clique block period in seconds")
	_ = networkCreateCmd.MarkFlagRequired("chain-id")
}

func formatServices(services []string) string {
	if len(services) == 0 {
		return "no running services"
	}
	return strings.Join(services, ", ")
}

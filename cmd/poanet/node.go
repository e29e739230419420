package main

import (
	"fmt"

	"github.com/cuemby/poanet/pkg/manager"
	"github.com/cuemby/poanet/pkg/types"
	"github.com/spf13/cobra"
)

// Node commands
var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Manage the nodes of a network",
}

var nodeAddCmd = &cobra.Command{
	Use:   "add NETWORK NAME",
	Short: "Add a node to a network and start it",
	Long: `Add a node to a network.

An account is created for the node, the genesis document is regenerated (a
signer joins the clique authority set) and the node's compose service is
started.

Roles: signer, member, bootstrap, rpc.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		role, _ := cmd.Flags().GetString("role")
		password, _ := cmd.Flags().GetString("password")
		balance, _ := cmd.Flags().GetString("balance")

		b, err := newBackend()
		if err != nil {
			return err
		}
		defer b.Close()

		fmt.Printf("Adding node '%s' to network '%s'\n", args[1], args[0])
		fmt.Printf("  Role: %s\n", role)
		if balance != "" {
			fmt.Printf("  Initial Balance: %s wei\n", balance)
		}
		fmt.Println()

		node, err := b.AddNode(cmd.Context(), manager.AddNodeRequest{
			Network:        args[0],
			Node:           args[1],
			Password:       password,
			Role:           types.NodeRole(role),
			InitialBalance: balance,
		})
		if err != nil {
			return err
		}

		fmt.Println("✓ Node started")
		fmt.Printf("  Address: %s\n", node.Address)
		fmt.Printf("  P2P Port: %d\n", node.Port)
		return nil
	},
}

var nodeRemoveCmd = &cobra.Command{
	Use:     "remove NETWORK NAME",
	Aliases: []string{"rm"},
	Short:   "Remove a node and regenerate the genesis document",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := newBackend()
		if err != nil {
			return err
		}
		defer b.Close()

		if err := b.RemoveNode(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("✓ Node %s removed from %s\n", args[1], args[0])
		return nil
	},
}

var nodeStartCmd = &cobra.Command{
	Use:   "start NETWORK NAME",
	Short: "Start a node",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := newBackend()
		if err != nil {
			return err
		}
		defer b.Close()

		if err := b.StartNode(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("✓ Node %s started\n", args[1])
		return nil
	},
}

var nodeStopCmd = &cobra.Command{
	Use:   "stop NETWORK NAME",
	Short: "Stop a node",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := newBackend()
		if err != nil {
			return err
		}
		defer b.Close()

		if err := b.StopNode(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("✓ Node %s stopped\n", args[1])
		return nil
	},
}

var nodeLogsCmd = &cobra.Command{
	Use:   "logs NETWORK NAME",
	Short: "Print the container logs of a node",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := newBackend()
		if err != nil {
			return err
		}
		defer b.Close()

		logs, err := b.NodeLogs(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Print(logs)
		return nil
	},
}

var nodeHealthCmd = &cobra.Command{
	Use:   "health NETWORK NAME",
	Short: "Probe a node through its published ports",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := newBackend()
		if err != nil {
			return err
		}
		defer b.Close()

		report, err := b.NodeHealth(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}

		fmt.Printf("Node %s (%s)\n", report.Node, report.State)
		for name, res := range report.Checks {
			mark := "✓"
			if !res.Healthy {
				mark = "✗"
			}
			fmt.Printf("  %s %s: %s\n", mark, name, res.Message)
		}
		if !report.Healthy {
			return fmt.Errorf("node %s is unhealthy", report.Node)
		}
		return nil
	},
}

func init() {
	nodeCmd.AddCommand(nodeAddCmd)
	nodeCmd.AddCommand(nodeRemoveCmd)
	nodeCmd.AddCommand(nodeStartCmd)
	nodeCmd.AddCommand(nodeStopCmd)
	nodeCmd.AddCommand(nodeLogsCmd)
	nodeCmd.AddCommand(nodeHealthCmd)

	nodeAddCmd.Flags().String("role", string(types.NodeRoleSigner), "Node role")
	nodeAddCmd.Flags().String("password", "", "Password of the node account")
	nodeAddCmd.Flags().String("balance", "", "Genesis balance of the node account, in wei")
	_ = nodeAddCmd.MarkFlagRequired("password")
}

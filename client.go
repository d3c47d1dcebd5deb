package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"crypto/tls"

	"github.com/go-pluto/orset/comm"
	"github.com/go-pluto/orset/config"
	"github.com/go-pluto/orset/crypto"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
)

// Variables

// Timeout for a single client command.
var clientTimeout = 10 * time.Second

// Functions

// dialReplica connects to the replica named by --addr or,
// if empty, to the listen address of the config file.
// TLS material is taken from the config file if present.
func dialReplica(ctx context.Context, flags *globalFlags) (*grpc.ClientConn, error) {

	var tlsConfig *tls.Config

	addr := flags.addr

	conf, err := config.LoadConfig(flags.config)
	if err != nil {

		if addr == "" {
			return nil, err
		}
	} else {

		if addr == "" {
			addr = conf.ListenAddr
		}

		if conf.TLS.Enabled() {

			tlsConfig, err = crypto.NewInternalTLSConfig(conf.TLS.CertLoc, conf.TLS.KeyLoc, conf.TLS.RootCertLoc)
			if err != nil {
				return nil, err
			}
		}
	}

	return comm.Dial(ctx, addr, comm.SenderOptions(tlsConfig)...)
}

// clientCmd wraps run into a command that
// is handed a connected client.
func clientCmd(flags *globalFlags, cmd *cobra.Command, run func(ctx context.Context, cmd *cobra.Command, client *comm.Client, args []string) error) *cobra.Command {

	cmd.Flags().StringVar(&flags.addr, "addr", "", "Address of the replica to talk to, defaults to ListenAddr of the config file.")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {

		ctx, cancel := context.WithTimeout(cmd.Context(), clientTimeout)
		defer cancel()

		conn, err := dialReplica(ctx, flags)
		if err != nil {
			return err
		}
		defer conn.Close()

		return run(ctx, cmd, comm.NewClient(conn), args)
	}

	return cmd
}

func newAddCmd(flags *globalFlags) *cobra.Command {

	return clientCmd(flags, &cobra.Command{
		Use:   "add ELEMENT",
		Short: "Add an element to the set",
		Args:  cobra.ExactArgs(1),
	}, func(ctx context.Context, cmd *cobra.Command, client *comm.Client, args []string) error {

		t, err := client.Add(ctx, args[0])
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), t)

		return nil
	})
}

func newRemoveCmd(flags *globalFlags) *cobra.Command {

	return clientCmd(flags, &cobra.Command{
		Use:   "remove ELEMENT",
		Short: "Remove all observed instances of an element",
		Args:  cobra.ExactArgs(1),
	}, func(ctx context.Context, cmd *cobra.Command, client *comm.Client, args []string) error {
		return client.Remove(ctx, args[0])
	})
}

func newContainsCmd(flags *globalFlags) *cobra.Command {

	return clientCmd(flags, &cobra.Command{
		Use:   "contains ELEMENT",
		Short: "Report whether an element is in the set",
		Args:  cobra.ExactArgs(1),
	}, func(ctx context.Context, cmd *cobra.Command, client *comm.Client, args []string) error {

		ok, err := client.Contains(ctx, args[0])
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), ok)

		return nil
	})
}

func newListCmd(flags *globalFlags) *cobra.Command {

	return clientCmd(flags, &cobra.Command{
		Use:   "list",
		Short: "Print all elements of the set",
		Args:  cobra.NoArgs,
	}, func(ctx context.Context, cmd *cobra.Command, client *comm.Client, args []string) error {

		rendered, err := client.List(ctx)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), rendered)

		return nil
	})
}

func newStateCmd(flags *globalFlags) *cobra.Command {

	return clientCmd(flags, &cobra.Command{
		Use:   "state",
		Short: "Dump the full replica state including tombstones as JSON",
		Args:  cobra.NoArgs,
	}, func(ctx context.Context, cmd *cobra.Command, client *comm.Client, args []string) error {

		msg, err := client.Pull(ctx)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")

		return enc.Encode(msg)
	})
}

func newPKICmd() *cobra.Command {

	opts := crypto.PKIOptions{}

	cmd := &cobra.Command{
		Use:   "pki REPLICA...",
		Short: "Generate a root certificate and one certificate per replica",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {

			opts.Names = args

			if err := crypto.GeneratePKI(opts); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote PKI for %d replicas to %s\n", len(args), opts.Dir)

			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Dir, "dir", "private", "Directory to write certificates and keys to.")
	cmd.Flags().StringSliceVar(&opts.Hosts, "hosts", []string{"127.0.0.1", "localhost"}, "IP addresses and DNS names to put into replica certificates.")
	cmd.Flags().DurationVar(&opts.ValidFor, "valid-for", 90*24*time.Hour, "Validity period of all certificates.")
	cmd.Flags().IntVar(&opts.RSABits, "rsa-bits", 2048, "Size of generated RSA keys.")

	return cmd
}

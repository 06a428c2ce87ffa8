// Package tags implements the tag store sub-commands.
package tags

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"

	"github.com/BadBoiLabs/cetf/go/cetf"
	"github.com/BadBoiLabs/cetf/go/cetf/api"
	cmdCommon "github.com/BadBoiLabs/cetf/go/cetf-node/cmd/common"
	"github.com/BadBoiLabs/cetf/go/common/backoff"
	"github.com/BadBoiLabs/cetf/go/common/logging"
	"github.com/BadBoiLabs/cetf/go/consensus/api/transaction"
	"github.com/BadBoiLabs/cetf/go/storage"
	storageAPI "github.com/BadBoiLabs/cetf/go/storage/api"
)

const (
	cfgCaller = "caller"
	cfgNonce  = "nonce"
	cfgHeight = "height"
	cfgHex    = "hex"

	// openTimeout bounds how long to wait for a database held by another
	// process.
	openTimeout = 10 * time.Second
)

var (
	tagsCmd = &cobra.Command{
		Use:   "tags",
		Short: "tag store utilities",
	}

	initCmd = &cobra.Command{
		Use:   "init",
		Short: "construct the tag store as the system identity",
		Args:  cobra.NoArgs,
		RunE:  runWithHost(doInit),
	}

	enqueueCmd = &cobra.Command{
		Use:   "enqueue <tag> [<tag>...]",
		Short: "enqueue tags at the caller's height",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runWithHost(doEnqueue),
	}

	clearCmd = &cobra.Command{
		Use:   "clear",
		Short: "clear a tag queue as the system identity",
		Args:  cobra.NoArgs,
		RunE:  runWithHost(doClear),
	}

	showCmd = &cobra.Command{
		Use:   "show",
		Short: "show the queued tags",
		Args:  cobra.NoArgs,
		RunE:  runWithHost(doShow),
	}

	submitCmd = &cobra.Command{
		Use:   "submit <hex-cbor-transaction>",
		Short: "execute an encoded transaction",
		Args:  cobra.ExactArgs(1),
		RunE:  runWithHost(doSubmit),
	}

	rootCmd = &cobra.Command{
		Use:   "root",
		Short: "show the committed tag store root",
		Args:  cobra.NoArgs,
		RunE:  runWithHost(doRoot),
	}

	callerFlags  = flag.NewFlagSet("", flag.ContinueOnError)
	enqueueFlags = flag.NewFlagSet("", flag.ContinueOnError)
	clearFlags   = flag.NewFlagSet("", flag.ContinueOnError)
	showFlags    = flag.NewFlagSet("", flag.ContinueOnError)
	nonceFlags   = flag.NewFlagSet("", flag.ContinueOnError)

	logger = logging.GetLogger("cmd/tags")
)

type hostFn func(ctx context.Context, cmd *cobra.Command, host *cetf.Host, args []string) error

func runWithHost(fn hostFn) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := cmdCommon.Init(); err != nil {
			cmdCommon.EarlyLogAndExit(err)
		}

		ctx := context.Background()
		backend, err := openBackend(ctx)
		if err != nil {
			logger.Error("failed to open storage backend",
				"err", err,
			)
			return err
		}
		defer backend.Close()

		return fn(ctx, cmd, cetf.NewHost(backend, cetf.NewConfig()), args)
	}
}

func openBackend(ctx context.Context) (storageAPI.Backend, error) {
	cfg, err := storage.NewConfig(cmdCommon.DataDir())
	if err != nil {
		return nil, err
	}

	// Another process may briefly hold the database lock.
	var backend storageAPI.Backend
	err = backoff.Retry(ctx, backoff.NewExponentialBackOff(openTimeout), func() error {
		var openErr error
		if backend, openErr = storage.New(cfg); openErr != nil {
			logger.Debug("failed to open storage backend, retrying",
				"backend", cfg.Backend,
				"err", openErr,
			)
		}
		return openErr
	})
	if err != nil {
		return nil, err
	}
	return backend, nil
}

func callerFromFlags(cmd *cobra.Command, defaultAddr api.Address) (api.Caller, error) {
	caller := api.Caller{Address: defaultAddr}

	nonce, err := cmd.Flags().GetUint64(cfgNonce)
	if err != nil {
		return caller, err
	}
	caller.Nonce = nonce

	if cmd.Flags().Lookup(cfgCaller) == nil {
		return caller, nil
	}
	addr, err := cmd.Flags().GetString(cfgCaller)
	if err != nil {
		return caller, err
	}
	if addr != "" {
		if err = caller.Address.UnmarshalText([]byte(addr)); err != nil {
			return caller, err
		}
	}
	return caller, nil
}

func heightFromFlags(cmd *cobra.Command) (*api.Height, error) {
	if !cmd.Flags().Changed(cfgHeight) {
		return nil, nil
	}
	h, err := cmd.Flags().GetUint64(cfgHeight)
	if err != nil {
		return nil, err
	}
	height := api.Height(h)
	return &height, nil
}

func doInit(ctx context.Context, cmd *cobra.Command, host *cetf.Host, args []string) error {
	caller, err := callerFromFlags(cmd, api.SystemAddress)
	if err != nil {
		return err
	}
	if err = host.Execute(ctx, caller, cetf.Construct{}); err != nil {
		return err
	}

	return printRoot(ctx, cmd.OutOrStdout(), host)
}

func doEnqueue(ctx context.Context, cmd *cobra.Command, host *cetf.Host, args []string) error {
	caller, err := callerFromFlags(cmd, api.Address{})
	if err != nil {
		return err
	}
	isHex, _ := cmd.Flags().GetBool(cfgHex)

	// Tags are enqueued independently, a bad tag does not stop the rest.
	var result *multierror.Error
	for _, arg := range args {
		tag := api.Tag(arg)
		if isHex {
			if tag, err = hex.DecodeString(arg); err != nil {
				result = multierror.Append(result, fmt.Errorf("malformed tag '%s': %w", arg, err))
				continue
			}
		}
		if err = host.Execute(ctx, caller, cetf.EnqueueTag{Tag: tag}); err != nil {
			result = multierror.Append(result, fmt.Errorf("failed to enqueue tag '%s': %w", arg, err))
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s at height %d\n", tag, caller.Height())
	}

	return result.ErrorOrNil()
}

func doClear(ctx context.Context, cmd *cobra.Command, host *cetf.Host, args []string) error {
	caller, err := callerFromFlags(cmd, api.SystemAddress)
	if err != nil {
		return err
	}
	height, err := heightFromFlags(cmd)
	if err != nil {
		return err
	}
	if err = host.Execute(ctx, caller, cetf.ClearTag{Height: height}); err != nil {
		return err
	}

	return printRoot(ctx, cmd.OutOrStdout(), host)
}

func doShow(ctx context.Context, cmd *cobra.Command, host *cetf.Host, args []string) error {
	height, err := heightFromFlags(cmd)
	if err != nil {
		return err
	}

	var heights []api.Height
	switch height {
	case nil:
		if heights, err = host.Heights(ctx); err != nil {
			return err
		}
	default:
		heights = []api.Height{*height}
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"Height", "Index", "Tag"})
	for _, h := range heights {
		queue, qerr := host.Tags(ctx, h)
		if qerr != nil {
			return qerr
		}
		for i, tag := range queue {
			table.Append([]string{h.String(), strconv.Itoa(i), tag.String()})
		}
	}
	table.Render()

	return nil
}

func doSubmit(ctx context.Context, cmd *cobra.Command, host *cetf.Host, args []string) error {
	raw, err := hex.DecodeString(strings.TrimSpace(args[0]))
	if err != nil {
		return fmt.Errorf("malformed transaction: %w", err)
	}
	tx, err := transaction.Decode(raw)
	if err != nil {
		return err
	}

	from := api.SystemAddress
	if addr, _ := cmd.Flags().GetString(cfgCaller); addr != "" {
		if err = from.UnmarshalText([]byte(addr)); err != nil {
			return err
		}
	}

	w := cmd.OutOrStdout()
	txHash := tx.Hash()
	tx.PrettyPrint("", w)
	fmt.Fprintf(w, "Hash:   %s\n", txHash)

	logger.Info("submitting transaction",
		"tx_hash", txHash,
		"method", tx.Method,
		"from", from,
	)
	if err = host.ExecuteTransaction(ctx, from, tx); err != nil {
		return err
	}

	return printRoot(ctx, w, host)
}

func doRoot(ctx context.Context, cmd *cobra.Command, host *cetf.Host, args []string) error {
	return printRoot(ctx, cmd.OutOrStdout(), host)
}

func printRoot(ctx context.Context, w io.Writer, host *cetf.Host) error {
	root, err := host.Root(ctx)
	if err != nil {
		return err
	}
	if root == nil {
		fmt.Fprintln(w, "uninitialized")
		return nil
	}
	fmt.Fprintln(w, root.String())

	return nil
}

// Register registers the tags sub-command and all of its children.
func Register(parentCmd *cobra.Command) {
	initCmd.Flags().AddFlagSet(nonceFlags)
	enqueueCmd.Flags().AddFlagSet(nonceFlags)
	enqueueCmd.Flags().AddFlagSet(callerFlags)
	enqueueCmd.Flags().AddFlagSet(enqueueFlags)
	clearCmd.Flags().AddFlagSet(nonceFlags)
	clearCmd.Flags().AddFlagSet(clearFlags)
	showCmd.Flags().AddFlagSet(showFlags)
	submitCmd.Flags().AddFlagSet(callerFlags)

	for _, v := range []*cobra.Command{
		initCmd,
		enqueueCmd,
		clearCmd,
		showCmd,
		submitCmd,
		rootCmd,
	} {
		tagsCmd.AddCommand(v)
	}

	parentCmd.AddCommand(tagsCmd)
}

func init() {
	nonceFlags.Uint64(cfgNonce, 0, "caller sequence number")

	callerFlags.String(cfgCaller, "", "caller address (hex, defaults to the system address)")

	enqueueFlags.Bool(cfgHex, false, "tags are hex encoded")

	clearFlags.Uint64(cfgHeight, 0, "height to clear (defaults to the nonce)")
	showFlags.Uint64(cfgHeight, 0, "only show the given height")
}

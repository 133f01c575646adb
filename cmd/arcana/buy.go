package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/naveenspark/arcana/internal/browser"
	"github.com/naveenspark/arcana/internal/checkout"
	"github.com/naveenspark/arcana/internal/session"
)

func newBuyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "buy",
		Short: "Buy drucoins with PayPal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := setup()
			if err != nil {
				return err
			}
			defer env.Close()
			approver := &terminalApprover{in: bufio.NewReader(cmd.InOrStdin()), out: cmd.OutOrStdout(), open: browser.Open}
			return env.buy(cmd.Context(), approver, cmd.OutOrStdout())
		},
	}
}

func (e *appEnv) buy(ctx context.Context, approver checkout.Approver, out io.Writer) error {
	val := session.New(e.api, e.log)
	if val.Validate(ctx, false) == session.StateInvalid {
		return errors.New("not signed in: run arcana login")
	}
	flow := checkout.Flow{
		Payments:    e.api,
		Balance:     val,
		Approver:    approver,
		ApproveBase: e.cfg.ApproveURL,
		Log:         e.log,
	}
	capture, err := flow.Run(ctx)
	switch {
	case errors.Is(err, checkout.ErrCancelled):
		fmt.Fprintln(out, "Purchase cancelled.") //nolint:errcheck
		return nil
	case errors.Is(err, checkout.ErrDeclined):
		return errors.New("the payment was declined, nothing was charged")
	case err != nil:
		return err
	}
	fmt.Fprintf(out, "Payment captured. Balance: %d drucoins\n", capture.Drucoins) //nolint:errcheck
	return nil
}

// terminalApprover opens the approval page and waits for the user to come
// back and press Enter.
type terminalApprover struct {
	in   *bufio.Reader
	out  io.Writer
	open func(url string) error
}

func (a *terminalApprover) Approve(ctx context.Context, approvalURL string) (bool, error) {
	if err := a.open(approvalURL); err != nil {
		fmt.Fprintf(a.out, "Open this URL to approve the payment:\n  %s\n", approvalURL) //nolint:errcheck
	}
	fmt.Fprint(a.out, "Approve the payment in your browser, then press Enter (c to cancel): ") //nolint:errcheck
	line, err := a.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("read answer: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if errors.Is(err, io.EOF) && line == "" {
		return false, nil
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "c", "cancel", "n", "no":
		return false, nil
	}
	return true, nil
}

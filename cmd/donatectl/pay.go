package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"inua-fund-server/client"
	"inua-fund-server/config"
	"inua-fund-server/mpesa"
	"inua-fund-server/poller"
	"inua-fund-server/utils"
)

type payOptions struct {
	phone       string
	amount      float64
	name        string
	email       string
	purpose     string
	server      string
	interval    time.Duration
	maxAttempts int
}

func newPayCmd() *cobra.Command {
	opts := &payOptions{}

	cmd := &cobra.Command{
		Use:   "pay",
		Short: "Send an STK push and wait for the payment to complete",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if opts.server == "" {
				opts.server = cfg.APIBaseURL
			}
			if opts.interval == 0 {
				opts.interval = cfg.PollInterval
			}
			if opts.maxAttempts == 0 {
				opts.maxAttempts = cfg.PollMaxAttempts
			}

			log := utils.NewLogger("donatectl", cfg.LogLevel)
			log.SetOutput(os.Stderr)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			api := client.New(opts.server, 30*time.Second)
			return runPay(ctx, api, api, opts, cmd.OutOrStdout(), log)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.phone, "phone", "", "M-Pesa number (07XXXXXXXX, 01XXXXXXXX or 254XXXXXXXXX)")
	f.Float64Var(&opts.amount, "amount", 0, "amount in KES")
	f.StringVar(&opts.name, "name", "", "donor name")
	f.StringVar(&opts.email, "email", "", "email for the receipt")
	f.StringVar(&opts.purpose, "purpose", "", "what the donation is for")
	f.StringVar(&opts.server, "server", "", "donation server URL (default API_BASE_URL)")
	f.DurationVar(&opts.interval, "interval", 0, "time between status checks (default POLL_INTERVAL)")
	f.IntVar(&opts.maxAttempts, "max-attempts", 0, "status checks before giving up (default POLL_MAX_ATTEMPTS)")
	_ = cmd.MarkFlagRequired("phone")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

type initiator interface {
	InitiatePayment(ctx context.Context, req mpesa.PaymentRequest) (*mpesa.STKPushResponse, error)
}

func runPay(ctx context.Context, api initiator, querier poller.StatusQuerier, opts *payOptions, out io.Writer, log *logrus.Logger) error {
	if !mpesa.ValidPhone(opts.phone) {
		return errors.New("please enter a valid M-Pesa number")
	}
	if opts.amount <= 0 {
		return errors.New("amount must be greater than zero")
	}
	if opts.maxAttempts <= 0 {
		opts.maxAttempts = poller.DefaultMaxAttempts
	}
	if opts.interval <= 0 {
		opts.interval = poller.DefaultInterval
	}

	resp, err := api.InitiatePayment(ctx, mpesa.PaymentRequest{
		Phone:   opts.phone,
		Name:    opts.name,
		Amount:  opts.amount,
		Email:   opts.email,
		Purpose: opts.purpose,
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "STK push sent. Check your phone and enter your M-Pesa PIN.")

	p := poller.New(querier, resp.CheckoutRequestID, poller.Config{
		Interval:    opts.interval,
		MaxAttempts: opts.maxAttempts,
		OnTick: func(attempt int, state poller.State) {
			if !state.Terminal() {
				fmt.Fprintf(out, "Waiting for payment (%d/%d)...\n", attempt, opts.maxAttempts)
			}
		},
	}, log)

	err = p.Run(ctx)
	switch p.State() {
	case poller.StateSucceeded:
		fmt.Fprintln(out, "Payment successful! Thank you for your donation.")
		return nil
	case poller.StateCancelled:
		fmt.Fprintf(out, "Stopped waiting. If you complete the payment it will still be recorded under %s.\n", resp.CheckoutRequestID)
		return nil
	default:
		return err
	}
}

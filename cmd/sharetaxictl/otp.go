package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sharetaxi/sharetaxi/internal/config"
	"github.com/sharetaxi/sharetaxi/internal/httpclient"
	"github.com/sharetaxi/sharetaxi/internal/service"
	"github.com/sharetaxi/sharetaxi/internal/twilio"
)

var (
	otpTo     string
	otpVerify bool
)

var otpTestCmd = &cobra.Command{
	Use:   "otp-test",
	Short: "Send a test SMS through the configured provider",
	Long: `Sends a test message to --to using Twilio when TWILIO_FROM_NUMBER is set,
or the development log sender otherwise. With --verify it starts a Twilio
Verify verification instead, which sends a real code.

Example:
  sharetaxictl otp-test --to 98765 43210`,
	Args: cobra.NoArgs,
	RunE: runOTPTest,
}

func init() {
	otpTestCmd.Flags().StringVar(&otpTo, "to", "", "Destination phone number")
	otpTestCmd.Flags().BoolVar(&otpVerify, "verify", false, "Use Twilio Verify instead of a plain SMS")
	_ = otpTestCmd.MarkFlagRequired("to")
}

func runOTPTest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	phone, err := service.NormalizePhone(otpTo)
	if err != nil {
		return fmt.Errorf("%q: %w", otpTo, err)
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	client := twilio.New(twilio.Config{
		AccountSID:       cfg.TwilioAccountSID,
		AuthToken:        cfg.TwilioAuthToken,
		VerifyServiceSID: cfg.TwilioVerifyServiceSID,
		FromNumber:       cfg.TwilioFromNumber,
		BaseURL:          cfg.TwilioBaseURL,
		VerifyBaseURL:    cfg.TwilioVerifyBaseURL,
	}, httpclient.New())

	if otpVerify {
		if !cfg.TwilioVerifyEnabled() {
			return fmt.Errorf("--verify needs TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_VERIFY_SERVICE_SID")
		}
		if err := client.StartVerification(ctx, phone); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "verification started for %s\n", service.MaskPhone(phone))
		return nil
	}

	var sender service.SMSSender = service.LogSMSSender{Logger: logger}
	provider := "log (use -v to print it)"
	if cfg.TwilioSMSEnabled() {
		sender = client
		provider = "twilio"
	}

	if err := sender.SendSMS(ctx, phone, "ShareTaxi test message. No action needed."); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "sent via %s to %s\n", provider, service.MaskPhone(phone))
	return nil
}

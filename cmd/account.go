package main

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Dmedina-coder/SuperGramola/internal/services"
	"github.com/Dmedina-coder/SuperGramola/internal/shared"
	"github.com/urfave/cli/v3"
)

// AccountPrice shows the per-track price, or sets it when an amount in euros
// is given. Zero disables the payment gate (free queuing).
func (r *Runner) AccountPrice(ctx context.Context, cmd *cli.Command) error {
	email, err := r.email(cmd)
	if err != nil {
		return err
	}
	accounts := r.accounts()

	if arg := cmd.StringArg("euros"); arg != "" {
		euros, err := strconv.ParseFloat(arg, 64)
		if err != nil || euros < 0 {
			return fmt.Errorf("%w: price must be a non-negative amount in euros", shared.ErrInvalidInput)
		}
		cents := int64(math.Round(euros * 100))
		if err := accounts.SetTrackPriceCents(ctx, email, cents); err != nil {
			return err
		}
		if cents == 0 {
			return r.writePlain("✓ Per-track price cleared, queuing is free\n")
		}
		return r.writePlain("✓ Per-track price set to %.2f EUR\n", float64(cents)/100)
	}

	cents, err := accounts.TrackPriceCents(ctx, email)
	if err != nil {
		return err
	}
	if cents == 0 {
		return r.writePlain("Per-track price: free\n")
	}
	return r.writePlain("Per-track price: %.2f EUR\n", float64(cents)/100)
}

// AccountVenue shows the bar's metadata, or updates it when --name or
// --address is given. The backend geocodes the address for the proximity
// oracle.
func (r *Runner) AccountVenue(ctx context.Context, cmd *cli.Command) error {
	email, err := r.email(cmd)
	if err != nil {
		return err
	}
	accounts := r.accounts()

	name := cmd.String("name")
	address := cmd.String("address")
	if name != "" || address != "" {
		current, err := accounts.VenueData(ctx, email)
		if err != nil {
			current = &services.VenueData{}
		}
		if name != "" {
			current.Name = name
		}
		if address != "" {
			current.Location = address
		}
		if err := accounts.SetVenueData(ctx, email, *current); err != nil {
			return err
		}
		return r.writePlain("✓ Venue updated: %s, %s\n", current.Name, current.Location)
	}

	data, err := accounts.VenueData(ctx, email)
	if err != nil {
		return err
	}
	r.writePlain("Name: %s\n", data.Name)
	r.writePlain("Address: %s\n", data.Location)
	return nil
}

// SubscriptionStatus shows whether the venue's subscription is current.
func (r *Runner) SubscriptionStatus(ctx context.Context, cmd *cli.Command) error {
	email, err := r.email(cmd)
	if err != nil {
		return err
	}

	active, err := r.accounts().SubscriptionActive(ctx, email)
	if err != nil {
		return err
	}
	if active {
		return r.writePlain("Subscription: ✓ Active\n")
	}
	return r.writePlain("Subscription: ✗ Inactive, renew with 'gramola account subscription renew'\n")
}

// SubscriptionRenew pays the subscription renewal by card: prepare the
// intent at the backend, confirm the charge with the processor, then record
// the settlement.
func (r *Runner) SubscriptionRenew(ctx context.Context, cmd *cli.Command) error {
	email, err := r.email(cmd)
	if err != nil {
		return err
	}
	payments := r.payments()

	details, err := parseCardFlags(cmd)
	if err != nil {
		return err
	}

	cents := payments.SubscriptionCostCents(ctx)
	r.logger.Info("preparing subscription payment", "amount_cents", cents)

	prepared, err := payments.PrepareSubscriptionPayment(ctx)
	if err != nil {
		return err
	}
	if prepared.AmountCents > 0 {
		cents = prepared.AmountCents
	}

	processor := r.processor()
	capture := processor.CreateCapture()
	if err := capture.Mount("cli"); err != nil {
		return err
	}
	defer capture.Unmount()
	capture.SetDetails(details)

	result, err := processor.ConfirmPayment(ctx, prepared.ClientSecret, capture, cmd.String("name"), email)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrPaymentDeclined, err)
	}
	if result.Status != "succeeded" {
		return fmt.Errorf("%w: status %s", shared.ErrPaymentDeclined, result.Status)
	}

	intentID := prepared.PaymentIntentID
	if result.ID != "" {
		intentID = result.ID
	}
	if err := payments.ConfirmSubscriptionPayment(ctx, email, intentID, cents, prepared.TransactionID); err != nil {
		return err
	}

	return r.writePlain("✓ Subscription renewed (%.2f EUR)\n", float64(cents)/100)
}

// parseCardFlags builds card details from --card-number, --expiry and --cvc.
func parseCardFlags(cmd *cli.Command) (services.CardDetails, error) {
	expiry := strings.SplitN(cmd.String("expiry"), "/", 2)
	if len(expiry) != 2 {
		return services.CardDetails{}, fmt.Errorf("%w: expiry must be MM/YY", shared.ErrInvalidFlag)
	}
	month, err := strconv.Atoi(strings.TrimSpace(expiry[0]))
	if err != nil {
		return services.CardDetails{}, fmt.Errorf("%w: expiry must be MM/YY", shared.ErrInvalidFlag)
	}
	year, err := strconv.Atoi(strings.TrimSpace(expiry[1]))
	if err != nil {
		return services.CardDetails{}, fmt.Errorf("%w: expiry must be MM/YY", shared.ErrInvalidFlag)
	}
	if year < 100 {
		year += 2000
	}

	return services.CardDetails{
		Number:   cmd.String("card-number"),
		ExpMonth: month,
		ExpYear:  year,
		CVC:      cmd.String("cvc"),
	}, nil
}

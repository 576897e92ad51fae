package main

import (
	"context"
	"errors"
	"testing"

	"github.com/Dmedina-coder/SuperGramola/internal/services"
	"github.com/Dmedina-coder/SuperGramola/internal/shared"
	"github.com/urfave/cli/v3"
)

func TestParseCardFlags(t *testing.T) {
	parse := func(t *testing.T, args ...string) (services.CardDetails, error) {
		t.Helper()
		var details services.CardDetails
		var parseErr error
		cmd := &cli.Command{
			Name: "probe",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "card-number"},
				&cli.StringFlag{Name: "expiry"},
				&cli.StringFlag{Name: "cvc"},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				details, parseErr = parseCardFlags(cmd)
				return nil
			},
		}
		if err := cmd.Run(context.Background(), append([]string{"probe"}, args...)); err != nil {
			t.Fatalf("probe command failed: %v", err)
		}
		return details, parseErr
	}

	t.Run("Valid Card", func(t *testing.T) {
		details, err := parse(t,
			"--card-number", "4242424242424242",
			"--expiry", "12/30",
			"--cvc", "123")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if details.Number != "4242424242424242" {
			t.Errorf("expected card number to carry over, got %q", details.Number)
		}
		if details.ExpMonth != 12 {
			t.Errorf("expected month 12, got %d", details.ExpMonth)
		}
		if details.ExpYear != 2030 {
			t.Errorf("expected two-digit year expanded to 2030, got %d", details.ExpYear)
		}
		if details.CVC != "123" {
			t.Errorf("expected cvc 123, got %q", details.CVC)
		}
	})

	t.Run("Four Digit Year", func(t *testing.T) {
		details, err := parse(t,
			"--card-number", "4242424242424242",
			"--expiry", "01/2031",
			"--cvc", "123")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if details.ExpYear != 2031 {
			t.Errorf("expected year 2031, got %d", details.ExpYear)
		}
	})

	t.Run("Malformed Expiry", func(t *testing.T) {
		for _, expiry := range []string{"", "12", "ab/30", "12/xy"} {
			_, err := parse(t,
				"--card-number", "4242424242424242",
				"--expiry", expiry,
				"--cvc", "123")
			if !errors.Is(err, shared.ErrInvalidFlag) {
				t.Errorf("expiry %q: expected ErrInvalidFlag, got %v", expiry, err)
			}
		}
	})
}

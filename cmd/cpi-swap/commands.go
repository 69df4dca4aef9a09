package main

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/jupiter"
	"github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/solana"
	cpi_swap "github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/solana/cpiswap"
	"github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/solana/token"
	"github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/swap"
)

const (
	usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

	defaultAmount         = 2_000_000
	defaultSlippageBps    = 50
	defaultMinSlippageBps = 50
	defaultMaxSlippageBps = 1000

	explorerTransactionUrl = "https://explorer.solana.com/tx/%s"
)

func routeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "input-mint",
			Value: usdcMint,
			Usage: "Mint the vault spends",
		},
		&cli.StringFlag{
			Name:  "output-mint",
			Value: base58.Encode(token.WrappedSolMint),
			Usage: "Mint the vault receives",
		},
		&cli.Uint64Flag{
			Name:  "amount",
			Value: defaultAmount,
			Usage: "Amount of the input mint, in quarks",
		},
		&cli.UintFlag{
			Name:  "slippage-bps",
			Value: defaultSlippageBps,
			Usage: "Quoted slippage tolerance in basis points",
		},
		&cli.UintFlag{
			Name:  "max-accounts",
			Usage: "Upper bound on the accounts a route may use, 0 for no limit",
		},
		&cli.BoolFlag{
			Name:  "direct-routes-only",
			Usage: "Only consider single hop routes",
		},
	}
}

func programFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "program",
		Usage: "CPI swap program address, overriding the configured one",
	}
}

// cpiProgram resolves the program a command operates on: --program when
// given, otherwise the swap configuration.
func cpiProgram(c *cli.Context, configProvider swap.ConfigProvider) (ed25519.PublicKey, error) {
	if c.IsSet("program") {
		return decodePublicKeyFlag(c, "program")
	}

	program, err := swap.ConfiguredProgram(c.Context, configProvider)
	if err != nil {
		return nil, err
	}
	return program.Program, nil
}

func quoteCommand() *cli.Command {
	return &cli.Command{
		Name:  "quote",
		Usage: "Fetch the best Jupiter route for a swap",
		Flags: routeFlags(),
		Action: func(c *cli.Context) error {
			ctx, end := commandContext(c)
			defer end()

			req, err := quoteRequestFromFlags(c)
			if err != nil {
				return err
			}

			quote, err := jupiter.NewClient(c.String("api-base-url")).GetQuote(ctx, req)
			if err != nil {
				return errors.Wrap(err, "error getting quote")
			}

			printQuote(quote)
			return nil
		},
	}
}

func swapCommand() *cli.Command {
	flags := append(routeFlags(),
		programFlag(),
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "Print the signed transaction as base64 instead of submitting it",
		},
		&cli.BoolFlag{
			Name:  "confirm",
			Usage: "Wait for the submitted transaction to be confirmed",
		},
		&cli.BoolFlag{
			Name:  "wrap-and-unwrap-sol",
			Value: true,
			Usage: "Let the route wrap and unwrap native SOL",
		},
		&cli.UintFlag{
			Name:  "min-slippage-bps",
			Value: defaultMinSlippageBps,
			Usage: "Lower bound for dynamic slippage",
		},
		&cli.UintFlag{
			Name:  "max-slippage-bps",
			Value: defaultMaxSlippageBps,
			Usage: "Upper bound for dynamic slippage",
		},
		&cli.Uint64Flag{
			Name:  "prioritization-fee-lamports",
			Usage: "Priority fee requested from the route, 0 to let Jupiter decide",
		},
		&cli.PathFlag{
			Name:  "route-file",
			Usage: "Assemble a saved /swap-instructions response instead of requesting a route",
		},
	)

	return &cli.Command{
		Name:  "swap",
		Usage: "Swap tokens held by the vault",
		Flags: flags,
		Action: func(c *cli.Context) error {
			ctx, end := commandContext(c)
			defer end()

			log := logrus.StandardLogger().WithField("type", "cmd/cpi-swap")

			payer, err := loadKeypair()
			if err != nil {
				return err
			}

			configProvider, err := swapConfigProvider(c)
			if err != nil {
				return err
			}

			program, err := cpiProgram(c, configProvider)
			if err != nil {
				return err
			}
			vault, _, err := cpi_swap.GetVaultAddress(program)
			if err != nil {
				return errors.Wrap(err, "error deriving vault address")
			}

			quoteReq, err := quoteRequestFromFlags(c)
			if err != nil {
				return err
			}

			var route *jupiter.SwapInstructions
			if path := c.Path("route-file"); len(path) > 0 {
				route, err = loadRoute(path)
			} else {
				route, err = requestRoute(ctx, c, quoteReq, vault, payer.Public().(ed25519.PublicKey))
			}
			if err != nil {
				return err
			}

			rpc := solana.New(c.String("rpc-url"))
			assembler := swap.NewRPCAssembler(rpc, configProvider)

			req := &swap.Request{
				Route:      route,
				Payer:      payer,
				Program:    program,
				InputMint:  quoteReq.InputMint,
				OutputMint: quoteReq.OutputMint,
			}

			if c.Bool("dry-run") {
				result, err := assembler.Assemble(ctx, req)
				if err != nil {
					return err
				}

				fmt.Printf("Transaction (%d bytes):\n", result.Transaction.Size())
				fmt.Println(base64.StdEncoding.EncodeToString(result.Transaction.Marshal()))
				return nil
			}

			result, err := assembler.Execute(ctx, req)
			if err != nil {
				var rejected *swap.SubmissionRejectedError
				if errors.As(err, &rejected) {
					for _, line := range rejected.Logs {
						log.Info(line)
					}
				}
				return err
			}

			fmt.Printf("Signature: %s\n", result.Signature.String())
			fmt.Printf(explorerTransactionUrl+"\n", result.Signature.String())

			if !c.Bool("confirm") {
				return nil
			}

			status, err := rpc.GetSignatureStatus(ctx, result.Signature, solana.CommitmentConfirmed)
			if err != nil {
				return errors.Wrap(err, "error confirming transaction")
			}
			if status.ErrorResult != nil {
				return errors.Wrap(status.ErrorResult, "transaction failed")
			}

			fmt.Printf("Confirmed in slot %d\n", status.Slot)
			return nil
		},
	}
}

func vaultCommand() *cli.Command {
	return &cli.Command{
		Name:  "vault",
		Usage: "Print the vault address and its token accounts",
		Flags: []cli.Flag{
			programFlag(),
			&cli.StringSliceFlag{
				Name:  "mint",
				Value: cli.NewStringSlice(usdcMint, base58.Encode(token.WrappedSolMint)),
				Usage: "Mints to derive vault token accounts for",
			},
			&cli.BoolFlag{
				Name:  "token-2022",
				Usage: "Derive token accounts for the Token-2022 program",
			},
		},
		Action: func(c *cli.Context) error {
			configProvider, err := swapConfigProvider(c)
			if err != nil {
				return err
			}

			program, err := cpiProgram(c, configProvider)
			if err != nil {
				return err
			}

			vault, bump, err := cpi_swap.GetVaultAddress(program)
			if err != nil {
				return errors.Wrap(err, "error deriving vault address")
			}

			tokenProgram := token.ProgramKey
			if c.Bool("token-2022") {
				tokenProgram = token.Token2022ProgramKey
			}

			fmt.Printf("Vault: %s (bump %d)\n", base58.Encode(vault), bump)
			for _, encoded := range c.StringSlice("mint") {
				mint, err := decodePublicKey(encoded)
				if err != nil {
					return errors.Wrapf(err, "invalid mint %s", encoded)
				}

				account, err := cpi_swap.GetVaultTokenAccountAddress(&cpi_swap.GetVaultTokenAccountAddressArgs{
					Vault:        vault,
					Mint:         mint,
					TokenProgram: tokenProgram,
				})
				if err != nil {
					return err
				}
				fmt.Printf("  %s: %s\n", encoded, base58.Encode(account))
			}
			return nil
		},
	}
}

func quoteRequestFromFlags(c *cli.Context) (*jupiter.QuoteRequest, error) {
	inputMint, err := decodePublicKeyFlag(c, "input-mint")
	if err != nil {
		return nil, err
	}
	outputMint, err := decodePublicKeyFlag(c, "output-mint")
	if err != nil {
		return nil, err
	}

	maxAccounts := c.Uint("max-accounts")
	if maxAccounts > 255 {
		return nil, errors.Errorf("max-accounts must be at most 255, got %d", maxAccounts)
	}

	return &jupiter.QuoteRequest{
		InputMint:        inputMint,
		OutputMint:       outputMint,
		Amount:           c.Uint64("amount"),
		SlippageBps:      uint16(c.Uint("slippage-bps")),
		SwapMode:         jupiter.SwapModeExactIn,
		OnlyDirectRoutes: c.Bool("direct-routes-only"),
		MaxAccounts:      uint8(maxAccounts),
	}, nil
}

func printQuote(quote *jupiter.Quote) {
	fmt.Printf("Route: %s\n", quote.GetRouteDescription())
	fmt.Printf("  In:  %d\n", quote.GetInAmount())
	fmt.Printf("  Out: %d (min %d)\n", quote.GetOutAmount(), quote.GetEstimatedSwapAmount())
	fmt.Printf("  Price impact: %s%%\n", quote.GetPriceImpactPct())
}

func decodePublicKeyFlag(c *cli.Context, name string) (ed25519.PublicKey, error) {
	key, err := decodePublicKey(c.String(name))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid --%s", name)
	}
	return key, nil
}

func decodePublicKey(encoded string) (ed25519.PublicKey, error) {
	decoded, err := base58.Decode(encoded)
	if err != nil {
		return nil, err
	}
	if len(decoded) != ed25519.PublicKeySize {
		return nil, errors.Errorf("invalid public key length: %d", len(decoded))
	}
	return decoded, nil
}

func requestRoute(ctx context.Context, c *cli.Context, quoteReq *jupiter.QuoteRequest, vault, payer ed25519.PublicKey) (*jupiter.SwapInstructions, error) {
	jupiterClient := jupiter.NewClient(c.String("api-base-url"))

	quote, err := jupiterClient.GetQuote(ctx, quoteReq)
	if err != nil {
		return nil, errors.Wrap(err, "error getting quote")
	}
	printQuote(quote)

	route, err := jupiterClient.GetSwapInstructions(ctx, &jupiter.SwapInstructionsRequest{
		Quote:                   quote,
		UserPublicKey:           vault,
		Payer:                   payer,
		WrapAndUnwrapSol:        c.Bool("wrap-and-unwrap-sol"),
		DynamicComputeUnitLimit: true,
		DynamicSlippage: &jupiter.DynamicSlippage{
			MinBps: uint16(c.Uint("min-slippage-bps")),
			MaxBps: uint16(c.Uint("max-slippage-bps")),
		},
		PrioritizationFeeLamports: c.Uint64("prioritization-fee-lamports"),
	})
	if err != nil {
		return nil, errors.Wrap(err, "error getting swap instructions")
	}
	return route, nil
}

// loadRoute reads a /swap-instructions response saved to disk. The route must
// have been requested with the vault as the user.
func loadRoute(path string) (*jupiter.SwapInstructions, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "error reading route file")
	}

	route, err := swap.DecodeSwapInstructions(body)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid route file %s", path)
	}
	return route, nil
}

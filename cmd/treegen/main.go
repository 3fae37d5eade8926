package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/urfave/cli/v2"

	"github.com/driplabs/merkledrop-go/pkg/auth"
	"github.com/driplabs/merkledrop-go/pkg/merkle"
	"github.com/driplabs/merkledrop-go/pkg/types"
)

// allocationEntry is one line of the operator's allocations file.
type allocationEntry struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

// treeOutput is what treegen prints: the root plus a ready-to-post proof
// per account.
type treeOutput struct {
	Root   string        `json:"root"`
	Leaves int           `json:"leaves"`
	Claims []claimOutput `json:"claims"`
}

type claimOutput struct {
	Account string   `json:"account"`
	Amount  string   `json:"amount"`
	Proof   []string `json:"proof"`
}

func main() {
	app := &cli.App{
		Name:  "treegen",
		Usage: "Build a merkle allocation tree for the distributor",
		Description: `Reads an allocations JSON file ([{"account": "0x..", "amount": "100"}, ...]),
builds the commitment tree, and prints the root plus a claim request body
per account. The root goes to the distributor via POST /admin/root; each
claim body goes to POST /claim.`,
		Commands: []*cli.Command{
			{
				Name:      "build",
				Usage:     "Build the tree and print root plus per-account proofs",
				ArgsUsage: "<allocations.json>",
				Action:    runBuild,
			},
			{
				Name:  "sign",
				Usage: "Sign an admin request body for the X-Admin-Signature header",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "key",
						Usage:    "Hex private key of the admin account",
						EnvVars:  []string{"DROP_ADMIN_PRIVATE_KEY"},
						Required: true,
					},
					&cli.StringFlag{
						Name:     "body",
						Usage:    "Exact JSON request body to sign",
						Required: true,
					},
				},
				Action: runSign,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func runBuild(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one allocations file, got %d args", c.NArg())
	}

	data, err := os.ReadFile(c.Args().First())
	if err != nil {
		return fmt.Errorf("failed to read allocations file: %w", err)
	}

	var entries []allocationEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("failed to parse allocations file: %w", err)
	}

	allocs := make([]*types.Allocation, 0, len(entries))
	for i, entry := range entries {
		if !common.IsHexAddress(entry.Account) {
			return fmt.Errorf("entry %d: %q is not a valid hex address", i, entry.Account)
		}
		amount, err := types.ParseAmount(entry.Amount)
		if err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		allocs = append(allocs, &types.Allocation{
			Account: common.HexToAddress(entry.Account),
			Amount:  amount,
		})
	}

	tree, err := merkle.BuildTree(allocs)
	if err != nil {
		return fmt.Errorf("failed to build tree: %w", err)
	}

	out := treeOutput{
		Root:   hexutil.Encode(tree.Root[:]),
		Leaves: len(allocs),
		Claims: make([]claimOutput, 0, len(allocs)),
	}
	for _, alloc := range allocs {
		proof, err := tree.Proof(alloc.Account)
		if err != nil {
			return err
		}
		out.Claims = append(out.Claims, claimOutput{
			Account: alloc.Account.Hex(),
			Amount:  alloc.Amount.String(),
			Proof:   types.EncodeProof(proof),
		})
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

func runSign(c *cli.Context) error {
	sig, err := auth.SignMessage([]byte(c.String("body")), c.String("key"))
	if err != nil {
		return err
	}
	fmt.Println(hexutil.Encode(sig))
	return nil
}

package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"example.com/backstage/services/identifier/internal/api/handlers"
	"example.com/backstage/services/identifier/internal/identifier"
	"example.com/backstage/services/identifier/internal/mapping"
	"example.com/backstage/services/identifier/internal/sequence"
	"example.com/backstage/services/identifier/internal/services"
)

var decodeCmd = &cobra.Command{
	Use:   "decode <identifier>",
	Short: "Decode a batch number or serial",
	Long: `Prints the fields of a batch number, full serial or short serial as JSON.
Batch numbers and full serials are decoded offline. Short serials are resolved
through the configured database.`,
	Args: cobra.ExactArgs(1),
	RunE: runDecode,
}

var validateCmd = &cobra.Command{
	Use:   "validate <identifier>",
	Short: "Check an identifier",
	Long: `Checks the structure of an identifier. Full serials are verified offline
against their check digit; batch numbers and short serials must also exist in
the configured database.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(validateCmd)
}

// offline reports whether id can be handled without a store
func offline(id string) bool {
	return len(id) != identifier.ShortSerialLength
}

// withService runs fn against an offline service for batch numbers and full
// serials, and against the configured stores otherwise.
func withService(id string, needStore bool, fn func(svc *services.IdentifierService) error) error {
	if !needStore {
		svc := services.NewIdentifierService(sequence.NewAllocator(sequence.NewMemoryStore()), mapping.NewMemoryStore(), nil, nil, nil, nil)
		return fn(svc)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rt, err := bootstrap(cfg, "identifier-cli")
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(rt.service)
}

func runDecode(cmd *cobra.Command, args []string) error {
	id := args[0]
	return withService(id, !offline(id), func(svc *services.IdentifierService) error {
		rec, err := svc.Decode(context.Background(), id)
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(handlers.NewDecodedResponse(rec), "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to encode decoded identifier")
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	})
}

func runValidate(cmd *cobra.Command, args []string) error {
	id := args[0]
	needStore := len(id) == identifier.BatchNumberLength || len(id) == identifier.ShortSerialLength
	return withService(id, needStore, func(svc *services.IdentifierService) error {
		if !svc.Validate(context.Background(), id) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s invalid\n", id)
			return errors.Errorf("%s is not a valid identifier", id)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s valid\n", id)
		return nil
	})
}

package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/troyapi/troy/internal/openapi"
)

func newOpenAPICmd() *cobra.Command {
	var (
		baseURL    string
		outputFile string
	)

	cmd := &cobra.Command{
		Use:   "openapi",
		Short: "Generate the OpenAPI specification",
		Long: `Generate the OpenAPI 3.1 specification for this Troy deployment. The
commodity list comes from the configuration file, so the spec matches what
the server would actually quote.`,
		Example: `  troy openapi                                  # print to stdout
  troy openapi -o spec.json                     # write to file
  troy openapi --base-url https://api.example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOpenAPI(baseURL, outputFile)
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "http://localhost:8080", "Server URL to embed in the spec")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write spec to file instead of stdout")

	return cmd
}

func runOpenAPI(baseURL, outputFile string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	commodities := make([]string, 0, len(cfg.Prices.Commodities))
	for name := range cfg.Prices.Commodities {
		commodities = append(commodities, name)
	}
	sort.Strings(commodities)

	spec := openapi.GenerateSpec(baseURL, commodities)

	jsonBytes, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal spec: %w", err)
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, jsonBytes, 0644); err != nil {
			return fmt.Errorf("write spec: %w", err)
		}
		fmt.Printf("Wrote OpenAPI spec to %s\n", outputFile)
		return nil
	}

	fmt.Println(string(jsonBytes))
	return nil
}

package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/quatton/paydesk/pkg/papi"
	"github.com/quatton/paydesk/pkg/papi/routes"
	"github.com/spf13/cobra"
)

var openapiCmd = &cobra.Command{
	Use:     "openapi",
	Aliases: []string{"spec"},
	Short:   "Generate OpenAPI specification",
	Long:    `Outputs the OpenAPI document for the stub without starting the server or its stores.`,
	Run:     generateOpenAPI,
}

var (
	openapiOutput    string
	openapiDowngrade bool
)

func init() {
	rootCmd.AddCommand(openapiCmd)
	openapiCmd.Flags().StringVarP(&openapiOutput, "output", "o", "", "Write output to file (default stdout)")
	openapiCmd.Flags().BoolVar(&openapiDowngrade, "downgrade", true, "Downgrade OpenAPI to 3.0 when generating the document")
}

func generateOpenAPI(cmd *cobra.Command, args []string) {
	api := papi.NewApi(true)
	routes.RegisterAPI(api.Api, nil)

	var (
		doc []byte
		err error
	)
	if openapiDowngrade {
		doc, err = api.Api.OpenAPI().Downgrade()
	} else {
		doc, err = json.Marshal(api.Api.OpenAPI())
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to generate OpenAPI document: %v\n", err)
		os.Exit(1)
	}

	if openapiOutput == "" {
		fmt.Println(string(doc))
		return
	}

	if err := os.WriteFile(openapiOutput, doc, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write OpenAPI document to %s: %v\n", openapiOutput, err)
		os.Exit(1)
	}
}

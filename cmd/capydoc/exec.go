package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/nasdf/capydoc/graphql"

	"github.com/spf13/cobra"
	"github.com/vektah/gqlparser/v2/formatter"
)

var (
	execQuery      string
	execVariables  string
	execOperation  string
	execImportPath string
	execExportPath string
)

var execCmd = &cobra.Command{
	Use:   "exec [query-file]",
	Short: "Execute a GraphQL operation and print the response",
	Long: `Execute a GraphQL operation read from a file, standard input ("-"), or
the --query flag. The store may be seeded from a CAR archive and written to
one after the operation.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		params := graphql.QueryParams{Query: execQuery, OperationName: execOperation}
		if len(args) == 1 {
			data, err := readInput(args[0])
			if err != nil {
				return err
			}
			params.Query = string(data)
		}
		if params.Query == "" {
			return errors.New("a query file or --query is required")
		}
		if execVariables != "" {
			if err := json.Unmarshal([]byte(execVariables), &params.Variables); err != nil {
				return fmt.Errorf("parsing variables: %w", err)
			}
		}

		db, err := openDB(ctx)
		if err != nil {
			return err
		}
		defer db.Close(ctx)

		if execImportPath != "" {
			f, err := os.Open(execImportPath)
			if err != nil {
				return err
			}
			_, err = db.Import(ctx, f)
			f.Close()
			if err != nil {
				return fmt.Errorf("importing %s: %w", execImportPath, err)
			}
		}

		res := db.Execute(ctx, params)
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
		if len(res.Errors) > 0 {
			return errors.New("operation failed")
		}

		if execExportPath != "" {
			f, err := os.Create(execExportPath)
			if err != nil {
				return err
			}
			defer f.Close()
			root, err := db.Export(ctx, f)
			if err != nil {
				return fmt.Errorf("exporting %s: %w", execExportPath, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "exported root %s\n", root)
		}
		return nil
	},
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the generated GraphQL schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close(cmd.Context())

		formatter.NewFormatter(cmd.OutOrStdout()).FormatSchema(db.GraphQLSchema())
		return nil
	},
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func init() {
	execCmd.Flags().StringVarP(&execQuery, "query", "q", "", "GraphQL operation to execute")
	execCmd.Flags().StringVar(&execVariables, "variables", "", "Operation variables as a JSON object")
	execCmd.Flags().StringVar(&execOperation, "operation", "", "Name of the operation to execute")
	execCmd.Flags().StringVar(&execImportPath, "import", "", "CAR archive to load before executing")
	execCmd.Flags().StringVar(&execExportPath, "export", "", "CAR archive to write after executing")
	rootCmd.AddCommand(execCmd, schemaCmd)
}

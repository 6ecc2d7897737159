// Command facetctl inspects and rewrites storefront facet query strings
// offline, using the same parser and controller as the server.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"storefront/internal/config"
	"storefront/internal/domain"
	"storefront/internal/facet"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootFlags struct {
	content bool
	path    string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:          "facetctl",
		Short:        "Inspect and rewrite facet filter query strings",
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVar(&flags.content, "content", false, "use the content facet parameter (_csfq)")
	root.PersistentFlags().StringVar(&flags.path, "path", "/search", "page path used for the navigation target")

	root.AddCommand(newParseCmd(flags), newToggleCmd(flags), newStateCmd(flags))
	return root
}

func newParseCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "parse <query>",
		Short: "Print the facet selection encoded in a query string",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := parseQuery(args[0])
			if err != nil {
				return err
			}
			sel := facet.ParseSelected(query, flags.content)
			out := make(map[string][]string, len(sel))
			for name := range sel {
				out[name] = sel.Keys(name)
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}

func newToggleCmd(flags *rootFlags) *cobra.Command {
	var (
		facetName string
		value     string
		checked   bool
	)
	cmd := &cobra.Command{
		Use:   "toggle <query>",
		Short: "Apply one checkbox change and print the resulting location",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(facetName) == "" || strings.TrimSpace(value) == "" {
				return fmt.Errorf("--facet and --value are required")
			}
			query, err := parseQuery(args[0])
			if err != nil {
				return err
			}
			ctrl := facet.NewController(flags.path, query, flags.content, nil, facet.DefaultOptions())
			ctrl.Toggle(facetName, value, checked)
			_, err = fmt.Fprintln(cmd.OutOrStdout(), ctrl.Location())
			return err
		},
	}
	cmd.Flags().StringVar(&facetName, "facet", "", "facet name")
	cmd.Flags().StringVar(&value, "value", "", "facet value key")
	cmd.Flags().BoolVar(&checked, "checked", true, "check (true) or uncheck (false) the value")
	return cmd
}

func newStateCmd(flags *rootFlags) *cobra.Command {
	var (
		facetsFile  string
		sortingFile string
	)
	cmd := &cobra.Command{
		Use:   "state <query>",
		Short: "Build the facet list state for a query and a facet response file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := parseQuery(args[0])
			if err != nil {
				return err
			}
			var facets []domain.Facet
			if facetsFile != "" {
				raw, err := os.ReadFile(facetsFile)
				if err != nil {
					return fmt.Errorf("read facets: %w", err)
				}
				if err := json.Unmarshal(raw, &facets); err != nil {
					return fmt.Errorf("decode facets: %w", err)
				}
			}
			sorting, err := config.LoadFacetSorting(sortingFile)
			if err != nil {
				return err
			}
			opts := config.Load().FacetOptions(sorting)
			ctrl := facet.NewController(flags.path, query, flags.content, facets, opts)
			return printJSON(cmd.OutOrStdout(), ctrl.State())
		},
	}
	cmd.Flags().StringVar(&facetsFile, "facets", "", "JSON file with the server facet response")
	cmd.Flags().StringVar(&sortingFile, "sorting", "", "facet sort-order file (JSON or YAML)")
	return cmd
}

func parseQuery(raw string) (url.Values, error) {
	query, err := url.ParseQuery(strings.TrimPrefix(strings.TrimSpace(raw), "?"))
	if err != nil {
		return nil, fmt.Errorf("parse query: %w", err)
	}
	return query, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	classifiersRules   []string
	classifiersPlugins []string
)

var classifiersCmd = &cobra.Command{
	Use:   "list-classifiers",
	Short: "List the benchmark types the given classifiers cover",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := buildRegistry(classifiersRules, classifiersPlugins)
		if err != nil {
			return err
		}
		names := registry.Names()
		if len(names) == 0 {
			fmt.Println("No classifiers loaded. Pass --rules and/or --plugin.")
			return nil
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	},
}

func init() {
	classifiersCmd.Flags().StringSliceVar(&classifiersRules, "rules", nil, "YAML rule classifier files")
	classifiersCmd.Flags().StringSliceVar(&classifiersPlugins, "plugin", nil, "Go plugin classifier files")
}

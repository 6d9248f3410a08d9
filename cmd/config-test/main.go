package main

import (
	"flag"
	"fmt"
	"os"
	"reflect"

	"github.com/chrissnell/signalcontrol/pkg/config"
)

func main() {
	var (
		yamlFile   = flag.String("yaml", "", "Path to YAML configuration file")
		sqliteFile = flag.String("sqlite", "", "Path to SQLite configuration file")
	)
	flag.Parse()

	if *yamlFile == "" || *sqliteFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -yaml <config.yaml> -sqlite <config.db>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("Configuration Comparison Test")
	fmt.Println("===========================")

	fmt.Printf("Loading YAML configuration: %s\n", *yamlFile)
	yamlConfig, err := config.NewYAMLProvider(*yamlFile).LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading YAML config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Loading SQLite configuration: %s\n", *sqliteFile)
	sqliteProvider, err := config.NewSQLiteProvider(*sqliteFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating SQLite provider: %v\n", err)
		os.Exit(1)
	}
	defer sqliteProvider.Close()

	sqliteConfig, err := sqliteProvider.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading SQLite config: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nComparison Results:")
	fmt.Println("==================")

	sections := []struct {
		name         string
		yaml, sqlite any
	}{
		{"feed", yamlConfig.Feed, sqliteConfig.Feed},
		{"timing", yamlConfig.Timing, sqliteConfig.Timing},
		{"controller", yamlConfig.Controller, sqliteConfig.Controller},
		{"rest", yamlConfig.RESTServer, sqliteConfig.RESTServer},
	}

	mismatches := 0
	for _, s := range sections {
		if reflect.DeepEqual(s.yaml, s.sqlite) {
			fmt.Printf("✓ %s configuration matches\n", s.name)
			continue
		}
		mismatches++
		fmt.Printf("✗ %s configuration differs\n", s.name)
		fmt.Printf("  YAML:   %+v\n", s.yaml)
		fmt.Printf("  SQLite: %+v\n", s.sqlite)
	}

	fmt.Println("\nTest completed!")
	if mismatches > 0 {
		os.Exit(1)
	}
}

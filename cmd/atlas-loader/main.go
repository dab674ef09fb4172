package main

import (
	"flag"
	"fmt"
	"os"

	"ariga.io/atlas-provider-gorm/gormschema"
	"gorm.io/gorm/schema"

	"github.com/guoxiaopeng875/txcorrelation/internal/data"
	"github.com/guoxiaopeng875/txcorrelation/pkg/orm/metadata"
)

var flagDialect string

func main() {
	flag.StringVar(&flagDialect, "dialect", "mysql", "database dialect (mysql, sqlite, postgres)")
	flag.Parse()

	models := data.Models()
	namer := schema.NamingStrategy{}
	for _, m := range models {
		if _, err := metadata.Resolve(m, namer); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}

	stmts, err := gormschema.New(flagDialect).Load(models...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if _, err := os.Stdout.WriteString(stmts); err != nil {
		fmt.Fprintf(os.Stderr, "error writing output: %v\n", err)
		os.Exit(1)
	}
}

// Command parse-statement parses a bank statement from a local file and
// prints the rows it found. Useful for checking a bank's parser config
// against a real statement without touching storage or the queue.
//
// Text files are parsed directly; PDFs go through the Gemini extractor,
// which needs GEMINI_API_KEY set.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/ametsa/bachat-core/internal/domain"
	"github.com/ametsa/bachat-core/internal/logger"
	"github.com/ametsa/bachat-core/internal/pipeline"
	"github.com/ametsa/bachat-core/internal/statement"
)

func main() {
	var (
		filePath    = flag.String("file", "", "path to a statement file (text or PDF)")
		bankCode    = flag.String("bank", "", "bank code to force (e.g. HDFC, SBI); autodetected if empty")
		openingRs   = flag.String("opening", "", "opening balance in rupees, overrides the one in the statement")
		model       = flag.String("model", pipeline.DefaultExtractModel, "Gemini model for PDF text extraction")
		showBalance = flag.Bool("balances", false, "print the running balance column")
	)
	flag.Parse()

	log := logger.Setup("info", true)

	if *filePath == "" {
		fmt.Fprintln(os.Stderr, "usage: parse-statement -file statement.pdf [-bank HDFC]")
		os.Exit(1)
	}

	data, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatal().Err(err).Str("file", *filePath).Msg("reading statement")
	}

	ctx := context.Background()

	var extractor pipeline.TextExtractor = pipeline.PlainTextExtractor{}
	if bytes.HasPrefix(data, []byte("%PDF")) || !utf8.Valid(data) {
		gem, err := pipeline.NewGeminiTextExtractor(ctx, *model)
		if err != nil {
			log.Fatal().Err(err).Msg("creating gemini extractor")
		}
		extractor = gem
	}
	text, err := extractor.Extract(ctx, data)
	if err != nil {
		log.Fatal().Err(err).Msg("extracting statement text")
	}

	var openingHint int64
	if *openingRs != "" {
		openingHint, err = domain.ParsePaisa(*openingRs)
		if err != nil {
			log.Fatal().Err(err).Msg("parsing -opening")
		}
	}

	registry := statement.NewRegistry()
	var result statement.ParseResult
	if *bankCode != "" {
		result = registry.ParseAs(strings.ToUpper(*bankCode), statement.SplitPages(text), openingHint)
	} else {
		result = pipeline.DetectAndParse(registry, text, openingHint)
	}

	fmt.Printf("bank: %s\nrows: %d\n\n", result.BankCode, len(result.Transactions))
	for _, txn := range result.Transactions {
		sign := "+"
		if txn.Direction == domain.DirectionDebit {
			sign = "-"
		}
		line := fmt.Sprintf("%s  %s%12s", txn.TxnDate, sign, domain.FormatPaisa(txn.AmountPaisa))
		if *showBalance {
			line += fmt.Sprintf("  bal %12s", domain.FormatPaisa(txn.BalancePaisa))
		}
		fmt.Printf("%s  %s\n", line, txn.Description)
	}
}

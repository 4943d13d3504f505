package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	x402 "github.com/rplryan/x402-payment-harness"
)

func main() {
	var (
		keyFlag    = flag.String("key", "", "Private key hex (0x-prefixed)")
		envKeyFlag = flag.String("env-key", "", "Environment variable containing the private key")
		toFlag     = flag.String("to", "", "Recipient address (overrides server challenge)")
		amountFlag = flag.String("amount", "", "Amount in USD, e.g. 0.005 (overrides server challenge)")
		network    = flag.String("network", x402.DefaultNetwork, "Network (CAIP-2 id or alias)")
		method     = flag.String("method", http.MethodGet, "HTTP method")
		timeout    = flag.Duration("timeout", 30*time.Second, "Request timeout")
		signOnly   = flag.Bool("sign-only", false, "Print the X-PAYMENT header without making any request")
		verbose    = flag.Bool("v", false, "Show payment header and full response")
		jsonOut    = flag.Bool("json", false, "Output as JSON")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: x402-pay [flags] URL\n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "Pay an x402-protected URL from the command line.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	privateKey := *keyFlag
	if *envKeyFlag != "" {
		privateKey = os.Getenv(*envKeyFlag)
		if privateKey == "" {
			log.Fatalf("environment variable %q not set", *envKeyFlag)
		}
	}
	if privateKey == "" {
		log.Fatal("private key required: use -key or -env-key")
	}

	signer, err := x402.NewPrivateKeySigner(privateKey)
	if err != nil {
		log.Fatalf("failed to create signer: %v", err)
	}

	cfg := x402.PaymentConfig{
		Signer:  signer,
		To:      *toFlag,
		Amount:  *amountFlag,
		Network: *network,
	}

	if *signOnly {
		header, err := x402.SignPaymentHeader(cfg)
		if err != nil {
			log.Fatalf("signing failed: %v", err)
		}
		fmt.Println(header)
		return
	}

	url := flag.Arg(0)
	if url == "" {
		flag.Usage()
		os.Exit(2)
	}

	client := x402.NewClient(x402.WithHTTPClient(&http.Client{Timeout: *timeout}))

	if !*jsonOut {
		log.Printf("sender: %s", signer.Address().Hex())
		log.Printf("paying %s %s", *method, url)
	}

	result := client.Pay(context.Background(), x402.Request{Method: *method, URL: url}, cfg)

	if *jsonOut {
		printJSON(result, *verbose)
	} else {
		printText(result, *verbose)
	}

	if !result.Success {
		os.Exit(1)
	}
}

func printJSON(result *x402.PaymentResult, verbose bool) {
	output := map[string]any{
		"success":     result.Success,
		"status_code": result.StatusCode,
	}
	if decoded := result.DecodedBody(); decoded != nil {
		output["response"] = decoded
	} else if len(result.Body) > 0 {
		output["response"] = map[string]any{"raw": string(result.Body)}
	}
	if result.Err != nil {
		output["error"] = result.Err.Error()
	}
	if result.Receipt != nil {
		output["receipt"] = result.Receipt
	}
	if verbose && result.PaymentHeader != "" {
		output["payment_header"] = result.PaymentHeader
	}
	data, _ := json.MarshalIndent(output, "", "  ")
	fmt.Println(string(data))
}

func printText(result *x402.PaymentResult, verbose bool) {
	if result.Success {
		fmt.Printf("payment successful (HTTP %d)\n", result.StatusCode)
		if result.Receipt != nil {
			fmt.Printf("settled: %s on %s\n", result.Receipt.Transaction, result.Receipt.Network)
		}
	} else {
		fmt.Printf("payment failed (HTTP %d)\n", result.StatusCode)
		if result.Err != nil {
			fmt.Printf("error: %v\n", result.Err)
		}
	}

	if verbose {
		if result.PaymentHeader != "" {
			fmt.Printf("\nX-PAYMENT header sent:\n%s\n", result.PaymentHeader)
		}
		if result.Diagnostic != nil {
			fmt.Printf("diagnostic: %v\n", result.Diagnostic)
		}
		if len(result.Body) > 0 {
			fmt.Printf("\nresponse:\n%s\n", result.Body)
		}
	}
}

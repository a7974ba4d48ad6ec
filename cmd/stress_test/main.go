package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/rl1809/crm/internal/adapter/handler"
	"github.com/rl1809/crm/internal/core/service"
)

func main() {
	cmd := &cli.App{
		Name:  "crm-stress",
		Usage: "race concurrent create_customer calls for one email",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: "localhost:50051", Usage: "gRPC address of the CRM server"},
			&cli.IntFlag{Name: "n", Value: 50, Usage: "concurrent create_customer calls"},
		},
		Action: func(c *cli.Context) error {
			return run(c.Context, c.String("addr"), c.Int("n"))
		},
	}
	if err := cmd.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, addr string, totalRequests int) error {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close()
	client := handler.NewClient(conn)

	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	// Every request races for the same fresh email
	email := "stress-" + uuid.NewString() + "@example.com"
	input, _ := json.Marshal(service.CreateCustomerInput{Name: "Stress Test", Email: email})

	// Counters
	var successCount atomic.Int32
	var duplicateCount atomic.Int32
	var errorCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			resp, err := client.Mutate(ctx, &handler.MutationRequest{Kind: service.KindCreateCustomer, Input: input})
			switch {
			case err != nil:
				errorCount.Add(1)
				log.Printf("rpc error: %v", err)
			case resp.Success:
				successCount.Add(1)
			case resp.Error != nil && resp.Error.Kind == "DuplicateEmail":
				duplicateCount.Add(1)
			default:
				errorCount.Add(1)
				log.Printf("unexpected failure: %+v", resp.Error)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Results
	success := successCount.Load()
	dup := duplicateCount.Load()
	failed := errorCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Email:            %s\n", email)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Created:          %d\n", success)
	fmt.Printf("Duplicate:        %d\n", dup)
	fmt.Printf("Errors:           %d\n", failed)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	// Assertions
	if success == 1 && dup == int32(totalRequests-1) {
		fmt.Printf("PASS: Exactly 1 customer created, %d rejected as duplicate\n", dup)
	} else {
		fmt.Printf("FAIL: Expected 1 created/%d duplicate, got %d/%d (%d errors)\n",
			totalRequests-1, success, dup, failed)
	}

	// Verify the store holds exactly one row for the email
	filter, _ := json.Marshal(handler.CustomerQuery{Email: email})
	resp, err := client.Query(ctx, &handler.QueryRequest{Entity: "customers", Filter: filter})
	if err != nil {
		return fmt.Errorf("query customers: %w", err)
	}
	rows, _ := resp.Data.([]any)
	if len(rows) == 1 {
		fmt.Println("PASS: One customer row stored")
	} else {
		fmt.Printf("FAIL: Expected 1 stored customer, got %d\n", len(rows))
	}
	return nil
}

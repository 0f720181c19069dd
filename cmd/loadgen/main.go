// loadgen fires concurrent checkouts at a running server and checks that
// the ledger never oversold: successes must equal the initial stock.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "server base URL")
	productID := flag.String("product", "", "product id to order")
	variantID := flag.String("variant", "", "variant id (optional)")
	initialStock := flag.Int("stock", 20, "stock the product starts with")
	totalRequests := flag.Int("requests", 50, "concurrent checkout attempts")
	flag.Parse()

	if *productID == "" {
		log.Fatal("-product is required")
	}

	client := &http.Client{Timeout: 10 * time.Second}

	var successCount atomic.Int32
	var soldOutCount atomic.Int32
	var conflictCount atomic.Int32
	var otherCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < *totalRequests; i++ {
		wg.Add(1)
		go func(userID int) {
			defer wg.Done()

			body, _ := json.Marshal(map[string]any{
				"user_id": fmt.Sprintf("user-%d", userID),
				"lines": []map[string]any{{
					"product_id": *productID,
					"variant_id": *variantID,
					"quantity":   1,
				}},
			})

			resp, err := client.Post(*baseURL+"/api/orders", "application/json", bytes.NewReader(body))
			if err != nil {
				otherCount.Add(1)
				return
			}
			resp.Body.Close()

			switch resp.StatusCode {
			case http.StatusCreated:
				successCount.Add(1)
			case http.StatusBadRequest:
				soldOutCount.Add(1)
			case http.StatusConflict:
				conflictCount.Add(1)
			default:
				otherCount.Add(1)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()

	fmt.Println("========== LOAD TEST RESULTS ==========")
	fmt.Printf("Initial Stock:     %d\n", *initialStock)
	fmt.Printf("Total Requests:    %d\n", *totalRequests)
	fmt.Printf("Orders Created:    %d\n", success)
	fmt.Printf("Sold Out (400):    %d\n", soldOutCount.Load())
	fmt.Printf("Conflicts (409):   %d\n", conflictCount.Load())
	fmt.Printf("Other Failures:    %d\n", otherCount.Load())
	fmt.Printf("Duration:          %v\n", elapsed)
	fmt.Println("=======================================")

	if int(success) <= *initialStock {
		fmt.Println("PASS: no oversell")
	} else {
		fmt.Printf("FAIL: %d orders succeeded against stock of %d\n", success, *initialStock)
	}
}

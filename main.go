// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
)

func main() {
	fmt.Println("📱 plapofy-sync - Offline-First Loan Submission Queue")
	fmt.Println("=====================================================")
	fmt.Println()
	fmt.Println("plapofy-sync provides the offline-first submission core for a mobile")
	fmt.Println("loan origination client: a durable local queue of loan, credit-line")
	fmt.Println("and disbursement requests, background sync jobs with transient/permanent")
	fmt.Println("error classification, and read-cache reconciliation against the server.")
	fmt.Println()

	fmt.Println("📚 Available Examples:")
	fmt.Println()
	fmt.Println("1. 🌐 Loan Server Example (examples/loan_server/)")
	fmt.Println("   Reference loan origination API backed by PostgreSQL")
	fmt.Println("   Features: JWT auth, idempotent submissions, business-rule rejections")
	fmt.Println("   Run: cd examples/loan_server && go run .")
	fmt.Println()

	fmt.Println("2. 📱 Device Simulator (examples/device_sim/)")
	fmt.Println("   Simulates a device queueing submissions offline and syncing them")
	fmt.Println("   Features: SQLite queue, duplicate guard, backoff retry loop")
	fmt.Println("   Run: cd examples/device_sim && go run .")
	fmt.Println()
}

// Command pulse-scheduler is a stand-in for the lab's pulse scheduler.
// It answers /schedule with deterministic timings so the placement
// service can be exercised end to end without control hardware.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/http"

	contracts "qplace/contracts/scheduler"
)

// Cycle counts per instruction kind, loosely modelled on a transmon
// device with a 1ns cycle.
const (
	dt             = 1e-9
	oneQubitCycles = 160
	twoQubitCycles = 800
	measureCycles  = 4400
)

func main() {
	addr := flag.String("addr", ":9090", "listen address")
	flag.Parse()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/schedule", handleSchedule)

	log.Printf("pulse scheduler mock listening on %s", *addr)
	if err := http.ListenAndServe(*addr, mux); err != nil {
		log.Fatal(err)
	}
}

func handleSchedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req contracts.ScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	resp := contracts.ScheduleResponse{Duration: duration(req.Gates), Dt: dt}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("encode response: %v", err)
	}
}

// duration sums per-gate cycle counts as if gates ran back to back. Real
// schedulers overlap disjoint qubits; a serial sum is enough here because
// callers only compare totals produced by the same source.
func duration(gates []contracts.Gate) int {
	total := 0
	for _, g := range gates {
		switch {
		case g.Name == "barrier":
			// no pulses
		case g.Name == "measure":
			total += measureCycles
		case len(g.Qubits) >= 2:
			total += twoQubitCycles
		default:
			total += oneQubitCycles
		}
	}
	return total
}

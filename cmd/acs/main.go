// acs is the Rodistaa anti-fraud and compliance service. It evaluates
// operational submissions (bookings, POD uploads, KYC documents, GPS
// traces) against a hot-reloadable rule file and enforces the outcome:
// blocking entities, freezing shipments, raising ops tickets, and
// recording every decision on a hash-chained audit ledger.
//
// Usage:
//
//	# Start the enforcement gateway
//	acs run
//
//	# Start with a custom configuration file
//	acs run --config /etc/acs/config.yaml
//
//	# Validate a rule file without starting
//	acs lint --file config/rules.yaml
//
//	# Verify the audit chain
//	acs verify --stream acs
//
//	# Show version information
//	acs version
package main

func main() {
	Execute()
}
